package premint

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/mintkit/intents/go/mechanisms/evm"
)

// ProbeMintFee reads the executor's per-token protocol fee. supported is
// false when the deployed executor has no mintFee getter, in which case the
// caller should fall back to evm.DefaultMintFee.
func ProbeMintFee(ctx context.Context, reader evm.ChainReader, executor, collection string) (fee *big.Int, supported bool, err error) {
	result, err := reader.ReadContract(ctx, executor, PremintExecutorABI, "mintFee", common.HexToAddress(collection))
	if err != nil {
		if isRevert(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read mint fee: %w", err)
	}

	value, ok := result.(*big.Int)
	if !ok {
		return nil, false, fmt.Errorf("unexpected mint fee result type %T", result)
	}
	return value, true, nil
}

// GetMintFee returns the executor's fee, or DefaultMintFee when the getter
// is missing. It is never cached.
func GetMintFee(ctx context.Context, reader evm.ChainReader, executor, collection string) (*big.Int, error) {
	fee, supported, err := ProbeMintFee(ctx, reader, executor, collection)
	if err != nil {
		return nil, err
	}
	if !supported {
		return new(big.Int).Set(evm.DefaultMintFee), nil
	}
	return fee, nil
}

// isRevert reports whether err is an execution revert rather than a
// transport failure.
func isRevert(err error) bool {
	if _, ok := evm.RevertDataFromError(err); ok {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
