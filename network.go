package intents

import (
	"fmt"
	"math/big"
	"strings"
)

// Network represents a blockchain network identifier in CAIP-2 format
// Format: namespace:reference (e.g., "eip155:8453" for Base mainnet)
type Network string

// Parse splits the network into namespace and reference components
func (n Network) Parse() (namespace, reference string, err error) {
	parts := strings.Split(string(n), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid network format: %s", n)
	}
	return parts[0], parts[1], nil
}

// ChainID returns the numeric EVM chain id of an eip155 network.
func (n Network) ChainID() (*big.Int, error) {
	namespace, reference, err := n.Parse()
	if err != nil {
		return nil, err
	}
	if namespace != "eip155" {
		return nil, fmt.Errorf("unsupported network namespace: %s", namespace)
	}
	chainID, ok := new(big.Int).SetString(reference, 10)
	if !ok || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id in network: %s", n)
	}
	return chainID, nil
}

// NetworkFromChainID builds the CAIP-2 identifier for an EVM chain id.
func NetworkFromChainID(chainID *big.Int) Network {
	return Network("eip155:" + chainID.String())
}

// ChainInfo describes a chain the protocol contracts are deployed on.
type ChainInfo struct {
	Network Network
	// APIName is the chain identifier used by the premint storage service.
	APIName string
	Testnet bool
}

// Supported chains
var (
	NetworkZora        Network = "eip155:7777777"
	NetworkZoraSepolia Network = "eip155:999999999"
	NetworkBase        Network = "eip155:8453"
	NetworkBaseSepolia Network = "eip155:84532"
	NetworkOptimism    Network = "eip155:10"
	NetworkArbitrum    Network = "eip155:42161"
	NetworkMainnet     Network = "eip155:1"
	NetworkSepolia     Network = "eip155:11155111"

	Chains = map[Network]ChainInfo{
		NetworkZora:        {Network: NetworkZora, APIName: "ZORA-MAINNET"},
		NetworkZoraSepolia: {Network: NetworkZoraSepolia, APIName: "ZORA-SEPOLIA", Testnet: true},
		NetworkBase:        {Network: NetworkBase, APIName: "BASE-MAINNET"},
		NetworkBaseSepolia: {Network: NetworkBaseSepolia, APIName: "BASE-SEPOLIA", Testnet: true},
		NetworkOptimism:    {Network: NetworkOptimism, APIName: "OPTIMISM-MAINNET"},
		NetworkArbitrum:    {Network: NetworkArbitrum, APIName: "ARBITRUM-MAINNET"},
		NetworkMainnet:     {Network: NetworkMainnet, APIName: "ETHEREUM-MAINNET"},
		NetworkSepolia:     {Network: NetworkSepolia, APIName: "ETHEREUM-SEPOLIA", Testnet: true},
	}
)

// GetChainInfo looks up a supported chain.
func GetChainInfo(network Network) (ChainInfo, error) {
	info, ok := Chains[network]
	if !ok {
		return ChainInfo{}, fmt.Errorf("unsupported network: %s", network)
	}
	return info, nil
}
