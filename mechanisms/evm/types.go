package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TypedDataDomain represents the EIP-712 domain separator
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedData is the exact domain + schema + message triple a signer signs and a
// verifier reconstructs. Field order inside Types is part of the wire
// contract with the verifying contract.
type TypedData struct {
	Domain      TypedDataDomain             `json:"domain"`
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Message     map[string]interface{}      `json:"message"`
}

// ClientEvmSigner defines the interface for client-side EVM signing operations
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address
	Address() string

	// SignTypedData signs EIP-712 typed data
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)
}

// SignTypedData signs td with signer.
func SignTypedData(ctx context.Context, signer ClientEvmSigner, td TypedData) ([]byte, error) {
	return signer.SignTypedData(ctx, td.Domain, td.Types, td.PrimaryType, td.Message)
}

// ChainReader reads verifying-contract state.
type ChainReader interface {
	// ReadContract reads data from a smart contract
	ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error)
}

// ChainWriter submits calls and waits for their confirmation.
type ChainWriter interface {
	// SimulateAndSend simulates the call against latest state and, if it
	// does not revert, signs and broadcasts it. Returns the tx hash.
	SimulateAndSend(ctx context.Context, call ContractCall) (string, error)

	// WaitForTransactionReceipt waits for a transaction to be mined
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)
}

// ChainTransport is the full read/write chain collaborator.
type ChainTransport interface {
	ChainReader
	ChainWriter
}

// ContractCall is a fully-formed, not yet submitted contract call.
type ContractCall struct {
	Address      string        `json:"address"`
	ABI          []byte        `json:"-"`
	FunctionName string        `json:"functionName"`
	Args         []interface{} `json:"args"`
	// Value is the native currency attached to the call, in wei.
	Value *big.Int `json:"value"`
}

// TransactionReceipt represents the receipt of a mined transaction
type TransactionReceipt struct {
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	TxHash      string `json:"transactionHash"`
	Logs        []Log  `json:"logs"`
}

// Log is a single event log from a receipt.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    []byte         `json:"data"`
}

// ContractAddresses holds the per-chain deployment of the protocol contracts.
type ContractAddresses struct {
	PremintExecutor   string
	FixedPriceMinter  string
	Mints1155         string
	MintsManager      string
	MintsEthUnwrapper string
}
