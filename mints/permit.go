package mints

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

const (
	// DomainName is the EIP-712 domain of credit-token permits.
	DomainName    = "Mints"
	DomainVersion = "1"
)

// Permit is a signed authorization to move credit tokens on the owner's
// behalf. Implemented by PermitSafeTransfer and PermitSafeTransferBatch.
type Permit interface {
	// PrimaryType is the EIP-712 struct name.
	PrimaryType() string
	PermitOwner() string
	PermitDeadline() *big.Int
	PermitTransferData() []byte

	fields() []evm.TypedDataField
	message() map[string]interface{}
	// call returns the permit function and its on-chain permit argument.
	call() (string, interface{})
}

// PermitSafeTransfer authorizes a single-id transfer.
type PermitSafeTransfer struct {
	Owner            string   `json:"owner"`
	To               string   `json:"to"`
	TokenID          *big.Int `json:"tokenId"`
	Quantity         *big.Int `json:"quantity"`
	SafeTransferData []byte   `json:"safeTransferData"`
	Nonce            *big.Int `json:"nonce"`
	Deadline         *big.Int `json:"deadline"`
}

// PermitSafeTransferBatch authorizes a multi-id transfer.
type PermitSafeTransferBatch struct {
	Owner            string     `json:"owner"`
	To               string     `json:"to"`
	TokenIDs         []*big.Int `json:"tokenIds"`
	Quantities       []*big.Int `json:"quantities"`
	SafeTransferData []byte     `json:"safeTransferData"`
	Nonce            *big.Int   `json:"nonce"`
	Deadline         *big.Int   `json:"deadline"`
}

func (PermitSafeTransfer) PrimaryType() string          { return "PermitSafeTransfer" }
func (p PermitSafeTransfer) PermitOwner() string        { return p.Owner }
func (p PermitSafeTransfer) PermitDeadline() *big.Int   { return p.Deadline }
func (p PermitSafeTransfer) PermitTransferData() []byte { return p.SafeTransferData }

func (PermitSafeTransfer) fields() []evm.TypedDataField {
	return []evm.TypedDataField{
		{Name: "owner", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "quantity", Type: "uint256"},
		{Name: "safeTransferData", Type: "bytes"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}

func (p PermitSafeTransfer) message() map[string]interface{} {
	return map[string]interface{}{
		"owner":            evm.NormalizeAddress(p.Owner),
		"to":               evm.NormalizeAddress(p.To),
		"tokenId":          bigOrZero(p.TokenID),
		"quantity":         bigOrZero(p.Quantity),
		"safeTransferData": bytesOrEmpty(p.SafeTransferData),
		"nonce":            bigOrZero(p.Nonce),
		"deadline":         bigOrZero(p.Deadline),
	}
}

type permitArgs struct {
	Owner            common.Address `abi:"owner"`
	To               common.Address `abi:"to"`
	TokenID          *big.Int       `abi:"tokenId"`
	Quantity         *big.Int       `abi:"quantity"`
	SafeTransferData []byte         `abi:"safeTransferData"`
	Nonce            *big.Int       `abi:"nonce"`
	Deadline         *big.Int       `abi:"deadline"`
}

func (p PermitSafeTransfer) call() (string, interface{}) {
	return "permitSafeTransfer", permitArgs{
		Owner:            common.HexToAddress(p.Owner),
		To:               common.HexToAddress(p.To),
		TokenID:          bigOrZero(p.TokenID),
		Quantity:         bigOrZero(p.Quantity),
		SafeTransferData: bytesOrEmpty(p.SafeTransferData),
		Nonce:            bigOrZero(p.Nonce),
		Deadline:         bigOrZero(p.Deadline),
	}
}

func (PermitSafeTransferBatch) PrimaryType() string          { return "PermitSafeTransferBatch" }
func (p PermitSafeTransferBatch) PermitOwner() string        { return p.Owner }
func (p PermitSafeTransferBatch) PermitDeadline() *big.Int   { return p.Deadline }
func (p PermitSafeTransferBatch) PermitTransferData() []byte { return p.SafeTransferData }

func (PermitSafeTransferBatch) fields() []evm.TypedDataField {
	return []evm.TypedDataField{
		{Name: "owner", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "tokenIds", Type: "uint256[]"},
		{Name: "quantities", Type: "uint256[]"},
		{Name: "safeTransferData", Type: "bytes"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}

func (p PermitSafeTransferBatch) message() map[string]interface{} {
	return map[string]interface{}{
		"owner":            evm.NormalizeAddress(p.Owner),
		"to":               evm.NormalizeAddress(p.To),
		"tokenIds":         copyBigs(p.TokenIDs),
		"quantities":       copyBigs(p.Quantities),
		"safeTransferData": bytesOrEmpty(p.SafeTransferData),
		"nonce":            bigOrZero(p.Nonce),
		"deadline":         bigOrZero(p.Deadline),
	}
}

// PermitBatchArgs is the on-chain PermitSafeTransferBatch struct.
type PermitBatchArgs struct {
	Owner            common.Address `abi:"owner"`
	To               common.Address `abi:"to"`
	TokenIDs         []*big.Int     `abi:"tokenIds"`
	Quantities       []*big.Int     `abi:"quantities"`
	SafeTransferData []byte         `abi:"safeTransferData"`
	Nonce            *big.Int       `abi:"nonce"`
	Deadline         *big.Int       `abi:"deadline"`
}

func (p PermitSafeTransferBatch) args() PermitBatchArgs {
	return PermitBatchArgs{
		Owner:            common.HexToAddress(p.Owner),
		To:               common.HexToAddress(p.To),
		TokenIDs:         copyBigs(p.TokenIDs),
		Quantities:       copyBigs(p.Quantities),
		SafeTransferData: bytesOrEmpty(p.SafeTransferData),
		Nonce:            bigOrZero(p.Nonce),
		Deadline:         bigOrZero(p.Deadline),
	}
}

func (p PermitSafeTransferBatch) call() (string, interface{}) {
	return "permitSafeTransferBatch", p.args()
}

// PermitTypedData builds the structure an owner signs for permit against
// the credit-token contract at mints1155.
func PermitTypedData(mints1155 string, chainID *big.Int, permit Permit) (evm.TypedData, error) {
	if err := validatePermit(permit); err != nil {
		return evm.TypedData{}, err
	}
	if !evm.IsValidAddress(mints1155) || chainID == nil {
		return evm.TypedData{}, intents.NewIntentError(intents.ErrCodeInvalidInput, "credit-token contract and chain id are required", nil)
	}

	return evm.TypedData{
		Domain: evm.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainID:           new(big.Int).Set(chainID),
			VerifyingContract: evm.NormalizeAddress(mints1155),
		},
		Types: map[string][]evm.TypedDataField{
			permit.PrimaryType(): permit.fields(),
		},
		PrimaryType: permit.PrimaryType(),
		Message:     permit.message(),
	}, nil
}

// ValidatePermitDeadline rejects a deadline that is not strictly after now.
// A permit whose deadline equals the current second is already unusable.
func ValidatePermitDeadline(deadline *big.Int, now time.Time) error {
	if deadline == nil {
		return intents.NewIntentError(intents.ErrCodeInvalidInput, "deadline is required", nil)
	}
	if deadline.Cmp(big.NewInt(now.Unix())) <= 0 {
		return intents.NewIntentError(intents.ErrCodeDeadlineExpired,
			fmt.Sprintf("deadline %s is not after %d", deadline, now.Unix()),
			map[string]interface{}{"deadline": deadline.String(), "now": now.Unix()})
	}
	return nil
}

// SignPermit signs permit as its owner. The deadline is checked locally
// first, so an expired permit never reaches the signer.
func SignPermit(ctx context.Context, signer evm.ClientEvmSigner, mints1155 string, chainID *big.Int, permit Permit, now time.Time) ([]byte, error) {
	if signer == nil {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "a signer is required", nil)
	}
	if err := ValidatePermitDeadline(permit.PermitDeadline(), now); err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer.Address(), permit.PermitOwner()) {
		return nil, intents.NewIntentError(intents.ErrCodeSignerMismatch,
			fmt.Sprintf("signer %s is not the permit owner %s", signer.Address(), permit.PermitOwner()), nil)
	}

	td, err := PermitTypedData(mints1155, chainID, permit)
	if err != nil {
		return nil, err
	}
	return evm.SignTypedData(ctx, signer, td)
}

// VerifyPermit checks that signature recovers to the permit owner and that
// the deadline has not passed.
func VerifyPermit(mints1155 string, chainID *big.Int, permit Permit, signature []byte, now time.Time) error {
	if err := ValidatePermitDeadline(permit.PermitDeadline(), now); err != nil {
		return err
	}
	td, err := PermitTypedData(mints1155, chainID, permit)
	if err != nil {
		return err
	}
	recovered, err := evm.RecoverTypedDataSigner(td, signature)
	if err != nil {
		return intents.WrapIntentError(intents.ErrCodeSignerMismatch, "unrecoverable permit signature", err)
	}
	if recovered != common.HexToAddress(permit.PermitOwner()) {
		return intents.NewIntentError(intents.ErrCodeSignerMismatch,
			fmt.Sprintf("permit signed by %s, owner is %s", recovered.Hex(), permit.PermitOwner()), nil)
	}
	return nil
}

// PermitCall builds the gasless submission of a signed permit to the
// credit-token contract. Anyone may submit it.
func PermitCall(mints1155 string, permit Permit, signature []byte) evm.ContractCall {
	fn, arg := permit.call()
	return evm.ContractCall{
		Address:      evm.NormalizeAddress(mints1155),
		ABI:          Mints1155ABI,
		FunctionName: fn,
		Args:         []interface{}{arg, signature},
		Value:        new(big.Int),
	}
}

func validatePermit(permit Permit) error {
	switch p := permit.(type) {
	case PermitSafeTransfer:
		if !evm.IsValidAddress(p.Owner) {
			return intents.NewIntentError(intents.ErrCodeMissingAccount, "permit owner is required", nil)
		}
		if !evm.IsValidAddress(p.To) {
			return intents.NewIntentError(intents.ErrCodeInvalidInput, "permit recipient is required", nil)
		}
		return validateQuantities([]*big.Int{p.TokenID}, []*big.Int{p.Quantity})
	case PermitSafeTransferBatch:
		if !evm.IsValidAddress(p.Owner) {
			return intents.NewIntentError(intents.ErrCodeMissingAccount, "permit owner is required", nil)
		}
		if !evm.IsValidAddress(p.To) {
			return intents.NewIntentError(intents.ErrCodeInvalidInput, "permit recipient is required", nil)
		}
		return validateQuantities(p.TokenIDs, p.Quantities)
	case nil:
		return intents.NewIntentError(intents.ErrCodeInvalidInput, "permit is required", nil)
	default:
		return intents.NewIntentError(intents.ErrCodeInvalidInput, fmt.Sprintf("unsupported permit %T", permit), nil)
	}
}

func validateQuantities(tokenIDs, quantities []*big.Int) error {
	if len(tokenIDs) == 0 || len(tokenIDs) != len(quantities) {
		return intents.NewIntentError(intents.ErrCodeInvalidQuantity,
			fmt.Sprintf("got %d token ids and %d quantities", len(tokenIDs), len(quantities)), nil)
	}
	for i := range tokenIDs {
		if tokenIDs[i] == nil || tokenIDs[i].Sign() < 0 {
			return intents.NewIntentError(intents.ErrCodeInvalidInput, "token ids must be non-negative", nil)
		}
		if quantities[i] == nil || quantities[i].Sign() <= 0 {
			return intents.NewIntentError(intents.ErrCodeInvalidQuantity, "quantities must be at least 1", nil)
		}
	}
	return nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func copyBigs(values []*big.Int) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = bigOrZero(v)
	}
	return out
}

func bytesOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
