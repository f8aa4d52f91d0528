package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mintkit/intents/go/mechanisms/evm"
)

// defaultReceiptPollInterval is how often WaitForTransactionReceipt polls.
const defaultReceiptPollInterval = 2 * time.Second

// ChainClient implements evm.ChainTransport on top of a JSON-RPC endpoint.
// Writes require a signer; a ChainClient without one is read-only.
type ChainClient struct {
	client       *ethclient.Client
	signer       *ClientSigner
	chainID      *big.Int
	pollInterval time.Duration
}

// NewChainClient dials rpcURL. signer may be nil for a read-only client.
func NewChainClient(ctx context.Context, rpcURL string, signer *ClientSigner) (*ChainClient, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	cli, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	return &ChainClient{
		client:       cli,
		signer:       signer,
		chainID:      chainID,
		pollInterval: defaultReceiptPollInterval,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *ChainClient) Close() {
	c.client.Close()
}

// ChainID returns the chain id reported by the endpoint at dial time.
func (c *ChainClient) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Ping checks that the endpoint answers.
func (c *ChainClient) Ping(ctx context.Context) error {
	if _, err := c.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("rpc unreachable: %w", err)
	}
	return nil
}

// ReadContract reads data from a smart contract.
// Single return values are returned unwrapped; multiple values as []interface{}.
func (c *ChainClient) ReadContract(
	ctx context.Context,
	contractAddress string,
	abiBytes []byte,
	functionName string,
	args ...interface{},
) (interface{}, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := contractABI.Pack(functionName, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	msg := ethereum.CallMsg{
		To:   &addr,
		Data: data,
	}

	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	outputs, err := contractABI.Unpack(functionName, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}

	if len(outputs) == 0 {
		return nil, nil
	}
	if len(outputs) == 1 {
		return outputs[0], nil
	}
	return outputs, nil
}

// SimulateAndSend runs call as an eth_call from the signer first so reverts
// surface with their revert data, then signs and broadcasts it.
func (c *ChainClient) SimulateAndSend(ctx context.Context, call evm.ContractCall) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("client is read-only")
	}

	contractABI, err := abi.JSON(strings.NewReader(string(call.ABI)))
	if err != nil {
		return "", fmt.Errorf("failed to parse ABI: %w", err)
	}

	data, err := contractABI.Pack(call.FunctionName, call.Args...)
	if err != nil {
		return "", fmt.Errorf("failed to pack method call: %w", err)
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	to := common.HexToAddress(call.Address)
	from := common.HexToAddress(c.signer.Address())
	if _, err := c.client.CallContract(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	}, nil); err != nil {
		// keep the rpc error in the chain so revert data can be recovered
		return "", fmt.Errorf("simulate %s: %w", call.FunctionName, err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.signer.PrivateKey(), c.chainID)
	if err != nil {
		return "", fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	opts.Value = value

	bound := bind.NewBoundContract(to, contractABI, c.client, c.client, c.client)
	tx, err := bound.Transact(opts, call.FunctionName, call.Args...)
	if err != nil {
		return "", fmt.Errorf("send %s: %w", call.FunctionName, err)
	}
	return tx.Hash().Hex(), nil
}

// WaitForTransactionReceipt polls until the transaction is mined or ctx ends.
func (c *ChainClient) WaitForTransactionReceipt(ctx context.Context, txHash string) (*evm.TransactionReceipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil {
			logs := make([]evm.Log, 0, len(receipt.Logs))
			for _, l := range receipt.Logs {
				logs = append(logs, evm.Log{Address: l.Address, Topics: l.Topics, Data: l.Data})
			}
			var blockNumber uint64
			if receipt.BlockNumber != nil {
				blockNumber = receipt.BlockNumber.Uint64()
			}
			return &evm.TransactionReceipt{
				Status:      receipt.Status,
				BlockNumber: blockNumber,
				TxHash:      receipt.TxHash.Hex(),
				Logs:        logs,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
