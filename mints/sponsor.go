package mints

import (
	"bytes"
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
	// SponsorDomainName is the EIP-712 domain of sponsored-call promises.
	SponsorDomainName    = "MintsEthUnwrapperAndCaller"
	SponsorDomainVersion = "1"
	sponsorPrimaryType   = "PermitWithAdditionalValue"
)

// SponsoredCall is an executor's promise to attach AdditionalValue when
// submitting the owner permit whose safeTransferData is SafeTransferData.
type SponsoredCall struct {
	SafeTransferData []byte   `json:"safeTransferData"`
	AdditionalValue  *big.Int `json:"additionalValue"`
	Deadline         *big.Int `json:"deadline"`
}

// SponsoredCallTypedData builds the structure the executor signs.
func SponsoredCallTypedData(unwrapper string, chainID *big.Int, call SponsoredCall) (evm.TypedData, error) {
	if !evm.IsValidAddress(unwrapper) || chainID == nil {
		return evm.TypedData{}, intents.NewIntentError(intents.ErrCodeInvalidInput, "unwrapper and chain id are required", nil)
	}
	return evm.TypedData{
		Domain: evm.TypedDataDomain{
			Name:              SponsorDomainName,
			Version:           SponsorDomainVersion,
			ChainID:           new(big.Int).Set(chainID),
			VerifyingContract: evm.NormalizeAddress(unwrapper),
		},
		Types: map[string][]evm.TypedDataField{
			sponsorPrimaryType: {
				{Name: "safeTransferData", Type: "bytes"},
				{Name: "additionalValue", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: sponsorPrimaryType,
		Message: map[string]interface{}{
			"safeTransferData": bytesOrEmpty(call.SafeTransferData),
			"additionalValue":  bigOrZero(call.AdditionalValue),
			"deadline":         bigOrZero(call.Deadline),
		},
	}, nil
}

// SignSponsoredCall signs call as the executor.
func SignSponsoredCall(ctx context.Context, signer evm.ClientEvmSigner, unwrapper string, chainID *big.Int, call SponsoredCall, now time.Time) ([]byte, error) {
	if signer == nil {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "an executor signer is required", nil)
	}
	if err := ValidatePermitDeadline(call.Deadline, nowOr(now)); err != nil {
		return nil, err
	}
	td, err := SponsoredCallTypedData(unwrapper, chainID, call)
	if err != nil {
		return nil, err
	}
	return evm.SignTypedData(ctx, signer, td)
}

// SponsoredSubmission is everything a relay needs to execute an
// owner-signed unwrap with executor-funded additional value.
type SponsoredSubmission struct {
	Permit           PermitSafeTransferBatch
	PermitSignature  []byte
	Sponsor          SponsoredCall
	SponsorSignature []byte
}

// SponsorValidation names the parties a submission must match.
type SponsorValidation struct {
	Contracts evm.ContractAddresses
	ChainID   *big.Int
	// Executor is the only address whose promises are honored.
	Executor string
	Now      time.Time
}

// ValidateSponsoredCall checks a submission before anything is sent:
// the executor promise recovers to the configured executor, is unexpired
// and is bound to the exact payload the owner signed; the owner permit
// recovers to its owner, targets the unwrapper and is unexpired.
// Signature mismatches are authorization failures and must not be retried.
func ValidateSponsoredCall(v SponsorValidation, s SponsoredSubmission) error {
	now := nowOr(v.Now)
	if !evm.IsValidAddress(v.Contracts.MintsEthUnwrapper) {
		return intents.NewIntentError(intents.ErrCodeInvalidInput, "unwrapper address is not configured", nil)
	}

	td, err := SponsoredCallTypedData(v.Contracts.MintsEthUnwrapper, v.ChainID, s.Sponsor)
	if err != nil {
		return err
	}
	executor, err := evm.RecoverTypedDataSigner(td, s.SponsorSignature)
	if err != nil {
		return intents.WrapIntentError(intents.ErrCodeSignerMismatch, "unrecoverable executor signature", err)
	}
	if executor != common.HexToAddress(v.Executor) {
		return intents.NewIntentError(intents.ErrCodeSignerMismatch,
			fmt.Sprintf("sponsored call signed by %s, expected executor %s", executor.Hex(), v.Executor), nil)
	}
	if err := ValidatePermitDeadline(s.Sponsor.Deadline, now); err != nil {
		return err
	}
	if !bytes.Equal(s.Sponsor.SafeTransferData, s.Permit.SafeTransferData) {
		return intents.NewIntentError(intents.ErrCodeInvalidInput, "sponsored call is bound to a different payload", nil)
	}

	if !strings.EqualFold(s.Permit.To, v.Contracts.MintsEthUnwrapper) {
		return intents.NewIntentError(intents.ErrCodeInvalidInput,
			fmt.Sprintf("permit sends to %s, not the unwrapper", s.Permit.To), nil)
	}
	return VerifyPermit(v.Contracts.Mints1155, v.ChainID, s.Permit, s.PermitSignature, now)
}

// BuildSponsoredCall builds the unwrapper submission carrying the promised
// additional value.
func BuildSponsoredCall(unwrapper string, s SponsoredSubmission) evm.ContractCall {
	return evm.ContractCall{
		Address:      evm.NormalizeAddress(unwrapper),
		ABI:          UnwrapperABI,
		FunctionName: "permitWithAdditionalValue",
		Args:         []interface{}{s.Permit.args(), s.PermitSignature},
		Value:        bigOrZero(s.Sponsor.AdditionalValue),
	}
}

// DecodeCallFailed recovers the inner failure of a forwarded call from a
// CallFailed revert, decoding custom errors of the credit-token contracts.
func DecodeCallFailed(revertData []byte) (*evm.InnerRevert, error) {
	return evm.DecodeCallFailed(revertData, &knownErrors)
}
