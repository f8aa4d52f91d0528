package premint

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

// CollectParams is a redeemer's runtime choices for collecting a premint.
type CollectParams struct {
	// Minter is the redeemer paying for the mint.
	Minter   string
	Quantity uint64
	// MintComment is optional.
	MintComment string
	// MintReferral receives the mint referral reward when set.
	MintReferral string
	// MintRecipient overrides the token recipient. Defaults to Minter.
	MintRecipient string
	// FirstMinter overrides first-minter attribution. Defaults to Minter.
	FirstMinter string
}

// CollectCall is a ready-to-submit premint collection.
type CollectCall struct {
	evm.ContractCall
	MintFee *big.Int
}

// ValidateCollect checks the parts of a collect request that need no I/O.
func ValidateCollect(premint SignedPremint, params CollectParams) error {
	if params.Quantity < 1 {
		return intents.NewIntentError(intents.ErrCodeInvalidQuantity,
			fmt.Sprintf("quantity must be at least 1, got %d", params.Quantity), nil)
	}
	if !evm.IsValidAddress(params.Minter) {
		return intents.NewIntentError(intents.ErrCodeMissingAccount, "minter account is required", nil)
	}
	if version := premint.Premint.ConfigVersion(); version != V1 && version != V2 {
		return intents.NewIntentError(intents.ErrCodeUnsupportedPremintVersion,
			fmt.Sprintf("collecting premint config version %q is not supported", version), nil)
	}
	if !evm.IsValidAddress(premint.CollectionAddress) {
		return intents.NewIntentError(intents.ErrCodeInvalidInput, "premint has no collection address", nil)
	}
	return nil
}

// CollectValue is (mintFee + pricePerToken) * quantity.
func CollectValue(mintFee, pricePerToken *big.Int, quantity uint64) *big.Int {
	perToken := new(big.Int).Add(bigOrZero(mintFee), bigOrZero(pricePerToken))
	return perToken.Mul(perToken, new(big.Int).SetUint64(quantity))
}

// CollectArgs holds the encoded premint() arguments, shared by the direct
// and credit-token collect paths.
type CollectArgs struct {
	ContractConfig ContractConfigArgs
	Collection     common.Address
	Premint        EncodedConfig
	Signature      []byte
	MintArguments  MintArguments
	FirstMinter    common.Address
	SignerContract common.Address
}

// BuildCollectArgs resolves defaults and encodes a stored premint for
// collection. It performs no I/O.
func BuildCollectArgs(premint SignedPremint, params CollectParams) (CollectArgs, error) {
	if err := ValidateCollect(premint, params); err != nil {
		return CollectArgs{}, err
	}

	encoded, err := EncodePremintConfig(premint.Premint)
	if err != nil {
		return CollectArgs{}, err
	}
	signature, err := evm.HexToBytes(premint.Signature)
	if err != nil {
		return CollectArgs{}, intents.WrapIntentError(intents.ErrCodeInvalidInput, "invalid premint signature", err)
	}

	minter := common.HexToAddress(params.Minter)
	recipient := minter
	if params.MintRecipient != "" {
		recipient = common.HexToAddress(params.MintRecipient)
	}
	firstMinter := minter
	if params.FirstMinter != "" {
		firstMinter = common.HexToAddress(params.FirstMinter)
	}

	return CollectArgs{
		ContractConfig: EncodeContractConfig(premint.Collection),
		Collection:     common.HexToAddress(premint.CollectionAddress),
		Premint:        encoded,
		Signature:      signature,
		MintArguments: MintArguments{
			MintRecipient:         recipient,
			MintComment:           params.MintComment,
			MintRewardsRecipients: []common.Address{evm.AddressOrZero(params.MintReferral)},
		},
		FirstMinter:    firstMinter,
		SignerContract: evm.ZeroAddress,
	}, nil
}

// BuildCollectCall turns a stored premint into a premint() call on the
// executor with the exact value to attach. The mint fee is read fresh on
// every call.
func BuildCollectCall(ctx context.Context, reader evm.ChainReader, executor string, premint SignedPremint, params CollectParams) (*CollectCall, error) {
	args, err := BuildCollectArgs(premint, params)
	if err != nil {
		return nil, err
	}

	mintFee, err := GetMintFee(ctx, reader, executor, premint.CollectionAddress)
	if err != nil {
		return nil, err
	}

	return &CollectCall{
		ContractCall: evm.ContractCall{
			Address:      evm.NormalizeAddress(executor),
			ABI:          PremintExecutorABI,
			FunctionName: "premint",
			Args: []interface{}{
				args.ContractConfig,
				args.Collection,
				args.Premint,
				args.Signature,
				new(big.Int).SetUint64(params.Quantity),
				args.MintArguments,
				args.FirstMinter,
				args.SignerContract,
			},
			Value: CollectValue(mintFee, premint.Premint.TokenConfig.Price(), params.Quantity),
		},
		MintFee: mintFee,
	}, nil
}
