package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mintkit/intents/go/mechanisms/evm"
)

// ClientSigner implements evm.ClientEvmSigner using an ECDSA private key.
// This provides client-side EIP-712 signing for premint attestations,
// credit-token permits and sponsored-call promises.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClientSignerFromPrivateKey creates a client signer from a hex-encoded private key.
//
// Args:
//
//	privateKeyHex: Hex-encoded private key (with or without "0x" prefix)
//
// Example:
//
//	signer, err := evm.NewClientSignerFromPrivateKey("0x1234...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	signed, err := manager.Create(ctx, premint.CreateParams{
//	    Collection:  collection,
//	    TokenConfig: tokenConfig,
//	    Signer:      signer,
//	})
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return NewClientSigner(privateKey), nil
}

// NewClientSigner wraps an already parsed private key.
func NewClientSigner(privateKey *ecdsa.PrivateKey) *ClientSigner {
	return &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the Ethereum address of the signer.
func (s *ClientSigner) Address() string {
	return s.address.Hex()
}

// SignTypedData signs EIP-712 typed data and returns a 65-byte (r, s, v)
// signature with v in {27, 28}.
func (s *ClientSigner) SignTypedData(
	ctx context.Context,
	domain evm.TypedDataDomain,
	types map[string][]evm.TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	td := evm.TypedData{
		Domain:      domain,
		Types:       types,
		PrimaryType: primaryType,
		Message:     message,
	}
	return evm.SignTypedDataWithKey(td, func(digest []byte) ([]byte, error) {
		return crypto.Sign(digest, s.privateKey)
	})
}

// PrivateKey exposes the key for transaction signing by ChainClient.
func (s *ClientSigner) PrivateKey() *ecdsa.PrivateKey {
	return s.privateKey
}
