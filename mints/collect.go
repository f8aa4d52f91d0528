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
	"github.com/mintkit/intents/go/premint"
)

// CollectAction is what the manager does with received credit tokens.
// Implemented by CollectToken and CollectPremint.
type CollectAction interface {
	collectAction()
}

// CollectToken mints an existing token through a sale strategy.
type CollectToken struct {
	Collection string
	TokenID    *big.Int
	// Minter is the sale strategy. Defaults to the fixed price minter.
	Minter        string
	MintRecipient string
	MintComment   string
	MintReferral  string
	// PricePerToken is paid in native currency on top of the credit tokens.
	PricePerToken *big.Int
}

// CollectPremint creates the premint's token, and its collection if needed,
// then mints it. Params.Quantity must equal the credit tokens spent.
type CollectPremint struct {
	Premint premint.SignedPremint
	Params  premint.CollectParams
}

func (CollectToken) collectAction()   {}
func (CollectPremint) collectAction() {}

// CollectMintArguments is the manager's CollectMintArguments struct.
type CollectMintArguments struct {
	MintRewardsRecipients []common.Address `abi:"mintRewardsRecipients"`
	MinterArguments       []byte           `abi:"minterArguments"`
	MintComment           string           `abi:"mintComment"`
}

var fixedPriceMinterArguments abi.Arguments

func init() {
	addressType, _ := abi.NewType("address", "", nil)
	stringType, _ := abi.NewType("string", "", nil)
	fixedPriceMinterArguments = abi.Arguments{{Type: addressType}, {Type: stringType}}
}

// EncodeCollect encodes action as the call the manager executes when it
// receives credit tokens. The result is the safeTransferData of both the
// direct and the permit path.
func EncodeCollect(action CollectAction) ([]byte, error) {
	switch a := action.(type) {
	case CollectToken:
		return encodeCollectToken(a)
	case CollectPremint:
		return encodeCollectPremint(a)
	case nil:
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "collect action is required", nil)
	default:
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, fmt.Sprintf("unsupported collect action %T", action), nil)
	}
}

func encodeCollectToken(a CollectToken) ([]byte, error) {
	if !evm.IsValidAddress(a.Collection) || a.TokenID == nil {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "collection and token id are required", nil)
	}
	if !evm.IsValidAddress(a.MintRecipient) {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "mint recipient is required", nil)
	}
	minter := a.Minter
	if minter == "" {
		minter = evm.FixedPriceMinterAddress
	}

	minterArguments, err := fixedPriceMinterArguments.Pack(common.HexToAddress(a.MintRecipient), a.MintComment)
	if err != nil {
		return nil, fmt.Errorf("encode minter arguments: %w", err)
	}

	return managerABI.Pack("collect",
		common.HexToAddress(a.Collection),
		common.HexToAddress(minter),
		new(big.Int).Set(a.TokenID),
		CollectMintArguments{
			MintRewardsRecipients: []common.Address{evm.AddressOrZero(a.MintReferral)},
			MinterArguments:       minterArguments,
			MintComment:           a.MintComment,
		},
	)
}

func encodeCollectPremint(a CollectPremint) ([]byte, error) {
	args, err := premint.BuildCollectArgs(a.Premint, a.Params)
	if err != nil {
		return nil, err
	}
	return managerABI.Pack("collectPremint",
		args.ContractConfig,
		args.Collection,
		args.Premint,
		args.Signature,
		args.MintArguments,
		args.FirstMinter,
		args.SignerContract,
	)
}

// CollectWithMintsParams spends credit tokens on a collect action.
type CollectWithMintsParams struct {
	TokenIDs   []*big.Int
	Quantities []*big.Int
	Action     CollectAction
}

func (p CollectWithMintsParams) validate() (*big.Int, error) {
	if err := validateQuantities(p.TokenIDs, p.Quantities); err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, q := range p.Quantities {
		total.Add(total, q)
	}
	if a, ok := p.Action.(CollectPremint); ok && total.Cmp(new(big.Int).SetUint64(a.Params.Quantity)) != 0 {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidQuantity,
			fmt.Sprintf("premint quantity %d does not match %s credit tokens", a.Params.Quantity, total), nil)
	}
	return total, nil
}

// BuildCollectWithMints builds the direct path: the holder sends credit
// tokens to the manager together with the encoded collect call.
func BuildCollectWithMints(contracts evm.ContractAddresses, params CollectWithMintsParams) (*evm.ContractCall, error) {
	total, err := params.validate()
	if err != nil {
		return nil, err
	}
	data, err := EncodeCollect(params.Action)
	if err != nil {
		return nil, err
	}

	return &evm.ContractCall{
		Address:      evm.NormalizeAddress(contracts.Mints1155),
		ABI:          Mints1155ABI,
		FunctionName: "transferBatchToManagerAndCall",
		Args:         []interface{}{copyBigs(params.TokenIDs), copyBigs(params.Quantities), data},
		Value:        new(big.Int).Mul(actionPrice(params.Action), total),
	}, nil
}

// CollectPermitParams describes a gasless collect signed by the holder.
type CollectPermitParams struct {
	CollectWithMintsParams
	Contracts evm.ContractAddresses
	ChainID   *big.Int
	Deadline  *big.Int
	// Nonce is random when nil.
	Nonce *big.Int
	Now   time.Time
}

// SignedPermit is a permit and its owner signature.
type SignedPermit struct {
	Permit    PermitSafeTransferBatch `json:"permit"`
	Signature []byte                  `json:"signature"`
}

// SignCollectPermit builds and signs a batch permit moving credit tokens to
// the manager with the encoded collect call. Paid mints cannot use this
// path since a permit carries no native value.
func SignCollectPermit(ctx context.Context, signer evm.ClientEvmSigner, params CollectPermitParams) (*SignedPermit, error) {
	if signer == nil {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "a signer is required", nil)
	}
	if _, err := params.validate(); err != nil {
		return nil, err
	}
	data, err := EncodeCollect(params.Action)
	if err != nil {
		return nil, err
	}
	if actionPrice(params.Action).Sign() > 0 {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "paid mints cannot be collected with a permit", nil)
	}

	nonce := params.Nonce
	if nonce == nil {
		if nonce, err = evm.CreateRandomNonce(); err != nil {
			return nil, err
		}
	}

	permit := PermitSafeTransferBatch{
		Owner:            signer.Address(),
		To:               params.Contracts.MintsManager,
		TokenIDs:         copyBigs(params.TokenIDs),
		Quantities:       copyBigs(params.Quantities),
		SafeTransferData: data,
		Nonce:            nonce,
		Deadline:         params.Deadline,
	}
	signature, err := SignPermit(ctx, signer, params.Contracts.Mints1155, params.ChainID, permit, nowOr(params.Now))
	if err != nil {
		return nil, err
	}
	return &SignedPermit{Permit: permit, Signature: signature}, nil
}

// actionPrice is the native price per token of an encoded action.
func actionPrice(action CollectAction) *big.Int {
	switch a := action.(type) {
	case CollectToken:
		return bigOrZero(a.PricePerToken)
	case CollectPremint:
		return bigOrZero(a.Premint.Premint.TokenConfig.Price())
	}
	return new(big.Int)
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
