package evm

import (
	"context"
	"math/big"
	"testing"

	"github.com/mintkit/intents/go/mechanisms/evm"
)

const (
	testKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewClientSignerFromPrivateKey(t *testing.T) {
	for _, key := range []string{testKey, testKey[2:]} {
		signer, err := NewClientSignerFromPrivateKey(key)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if signer.Address() != testAddress {
			t.Errorf("address = %s, want %s", signer.Address(), testAddress)
		}
	}

	if _, err := NewClientSignerFromPrivateKey("0xnothex"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestClientSignerSignTypedData(t *testing.T) {
	signer, err := NewClientSignerFromPrivateKey(testKey)
	if err != nil {
		t.Fatal(err)
	}

	td := evm.TypedData{
		Domain: evm.TypedDataDomain{
			Name:              "Mints",
			Version:           "1",
			ChainID:           big.NewInt(7777777),
			VerifyingContract: evm.Mints1155Address,
		},
		Types: map[string][]evm.TypedDataField{
			"Ping": {{Name: "value", Type: "uint256"}},
		},
		PrimaryType: "Ping",
		Message:     map[string]interface{}{"value": big.NewInt(7)},
	}

	sig, err := evm.SignTypedData(context.Background(), signer, td)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}

	ok, err := evm.VerifyTypedDataSigner(td, sig, testAddress)
	if err != nil || !ok {
		t.Errorf("signature should verify for %s: %v %v", testAddress, ok, err)
	}
}
