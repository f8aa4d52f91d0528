package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ToAPITypes converts typed data into the go-ethereum representation used for
// hashing. An EIP712Domain type is derived from the domain when absent.
func (td TypedData) ToAPITypes() apitypes.TypedData {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: td.PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              td.Domain.Name,
			Version:           td.Domain.Version,
			ChainId:           (*math.HexOrDecimal256)(td.Domain.ChainID),
			VerifyingContract: td.Domain.VerifyingContract,
		},
		Message: td.Message,
	}

	for typeName, fields := range td.Types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{
				Name: field.Name,
				Type: field.Type,
			}
		}
		typedData.Types[typeName] = typedFields
	}

	if _, exists := typedData.Types["EIP712Domain"]; !exists {
		typedData.Types["EIP712Domain"] = domainFields(td.Domain)
	}

	return typedData
}

// domainFields returns the EIP712Domain schema for the fields a domain sets.
// Order is fixed by EIP-712: name, version, chainId, verifyingContract.
func domainFields(domain TypedDataDomain) []apitypes.Type {
	fields := make([]apitypes.Type, 0, 4)
	if domain.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if domain.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if domain.ChainID != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if domain.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	return fields
}

// HashTypedData returns the EIP-712 digest of td.
//
// The hash is computed as: keccak256("\x19\x01" + domainSeparator + structHash)
// and is what a signer signs and a verifier reconstructs.
func HashTypedData(td TypedData) ([]byte, error) {
	typedData := td.ToAPITypes()

	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	// 0x19 0x01 <domainSeparator> <dataHash>
	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// SignTypedDataWithKey hashes and signs typed data with raw key material.
// The returned signature is 65 bytes with v in {27, 28}.
func SignTypedDataWithKey(td TypedData, sign func(digest []byte) ([]byte, error)) ([]byte, error) {
	digest, err := HashTypedData(td)
	if err != nil {
		return nil, err
	}
	signature, err := sign(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	if len(signature) != 65 {
		return nil, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if signature[64] < 27 {
		signature[64] += 27
	}
	return signature, nil
}

// RecoverTypedDataSigner recovers the address that produced signature over td.
// This is a pure operation: no contract call is made.
func RecoverTypedDataSigner(td TypedData, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}

	digest, err := HashTypedData(td)
	if err != nil {
		return common.Address{}, err
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return common.Address{}, fmt.Errorf("invalid signature recovery id: %d", signature[64])
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}

// VerifyTypedDataSigner reports whether signature over td was produced by
// expected.
func VerifyTypedDataSigner(td TypedData, signature []byte, expected string) (bool, error) {
	recovered, err := RecoverTypedDataSigner(td, signature)
	if err != nil {
		return false, err
	}
	return recovered == common.HexToAddress(expected), nil
}
