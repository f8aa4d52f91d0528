package mints

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

var unwrapArguments abi.Arguments

func init() {
	addressType, _ := abi.NewType("address", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)
	unwrapArguments = abi.Arguments{{Type: addressType}, {Type: bytesType}}
}

// EncodeUnwrapAndForward encodes the unwrapper's safeTransferData: the
// target to call and the calldata to call it with. The unwrapper attaches
// the redeemed value plus any additional value to that call.
func EncodeUnwrapAndForward(target string, callData []byte) ([]byte, error) {
	if !evm.IsValidAddress(target) {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput,
			fmt.Sprintf("invalid forward target %q", target), nil)
	}
	return unwrapArguments.Pack(common.HexToAddress(target), bytesOrEmpty(callData))
}

// DecodeUnwrapAndForward reverses EncodeUnwrapAndForward.
func DecodeUnwrapAndForward(data []byte) (target string, callData []byte, err error) {
	values, err := unwrapArguments.Unpack(data)
	if err != nil || len(values) != 2 {
		return "", nil, intents.WrapIntentError(intents.ErrCodeInvalidInput, "malformed unwrap-and-forward payload", err)
	}
	addr, ok1 := values[0].(common.Address)
	call, ok2 := values[1].([]byte)
	if !ok1 || !ok2 {
		return "", nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "malformed unwrap-and-forward payload", nil)
	}
	return addr.Hex(), call, nil
}

// UnwrapPermitParams describes credit tokens to unwrap into a forwarded
// call.
type UnwrapPermitParams struct {
	Owner      string
	Unwrapper  string
	TokenIDs   []*big.Int
	Quantities []*big.Int
	// Target and CallData are the forwarded call, for example a bridge
	// deposit.
	Target   string
	CallData []byte
	Deadline *big.Int
	// Nonce is random when nil.
	Nonce *big.Int
}

// BuildUnwrapAndForwardPermit builds the batch permit an owner signs to send
// credit tokens to the unwrapper with a forwarded call.
func BuildUnwrapAndForwardPermit(params UnwrapPermitParams) (PermitSafeTransferBatch, error) {
	if !evm.IsValidAddress(params.Unwrapper) {
		return PermitSafeTransferBatch{}, intents.NewIntentError(intents.ErrCodeInvalidInput, "unwrapper address is not configured", nil)
	}
	if err := validateQuantities(params.TokenIDs, params.Quantities); err != nil {
		return PermitSafeTransferBatch{}, err
	}
	data, err := EncodeUnwrapAndForward(params.Target, params.CallData)
	if err != nil {
		return PermitSafeTransferBatch{}, err
	}

	nonce := params.Nonce
	if nonce == nil {
		if nonce, err = evm.CreateRandomNonce(); err != nil {
			return PermitSafeTransferBatch{}, err
		}
	}

	permit := PermitSafeTransferBatch{
		Owner:            params.Owner,
		To:               evm.NormalizeAddress(params.Unwrapper),
		TokenIDs:         copyBigs(params.TokenIDs),
		Quantities:       copyBigs(params.Quantities),
		SafeTransferData: data,
		Nonce:            nonce,
		Deadline:         params.Deadline,
	}
	if err := validatePermit(permit); err != nil {
		return PermitSafeTransferBatch{}, err
	}
	return permit, nil
}

// RedeemableValue sums tokenPrice(id) * quantity over a batch: the native
// value the unwrapper releases for it.
func RedeemableValue(ctx context.Context, reader evm.ChainReader, mints1155 string, tokenIDs, quantities []*big.Int) (*big.Int, error) {
	if err := validateQuantities(tokenIDs, quantities); err != nil {
		return nil, err
	}

	total := new(big.Int)
	for i, id := range tokenIDs {
		result, err := reader.ReadContract(ctx, mints1155, Mints1155ABI, "tokenPrice", new(big.Int).Set(id))
		if err != nil {
			return nil, fmt.Errorf("read token price of %s: %w", id, err)
		}
		price, ok := result.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected token price result type %T", result)
		}
		total.Add(total, new(big.Int).Mul(price, quantities[i]))
	}
	return total, nil
}

// SignUnwrapPermit signs a permit built by BuildUnwrapAndForwardPermit.
func SignUnwrapPermit(ctx context.Context, signer evm.ClientEvmSigner, mints1155 string, chainID *big.Int, permit PermitSafeTransferBatch, now time.Time) (*SignedPermit, error) {
	signature, err := SignPermit(ctx, signer, mints1155, chainID, permit, nowOr(now))
	if err != nil {
		return nil, err
	}
	return &SignedPermit{Permit: permit, Signature: signature}, nil
}
