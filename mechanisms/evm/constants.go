package evm

import (
	"fmt"
	"math/big"

	intents "github.com/mintkit/intents/go"
)

const (
	// Transaction status
	TxStatusSuccess = 1
	TxStatusFailed  = 0

	// PremintExecutorAddress is the premint executor proxy. It is also the
	// factory used for deterministic collection address prediction.
	// Same address on all supported chains.
	PremintExecutorAddress = "0x7777773606e7e46C8Ba8B98C08f5cD218e31d340"

	// FixedPriceMinterAddress is the default fixed price sale strategy.
	FixedPriceMinterAddress = "0x04E2516A2c207E84a1839755675dfd8eF6302F0a"

	// Mints1155Address is the credit token (MINTs) ERC-1155 contract.
	Mints1155Address = "0x7777777d57c1C6e472fa379b7b3B6c6ba3835073"

	// MintsManagerAddress is the custodial manager that redeems credit tokens.
	MintsManagerAddress = "0x77777770cA269366c7208aFcF36FE2C6F7f7608B"
)

var (
	// DefaultMintFee is used when the premint executor predates the mintFee()
	// getter: 0.000777 ETH.
	DefaultMintFee = big.NewInt(777000000000000)

	// DefaultContracts is the canonical deployment, shared by every supported
	// chain. The unwrapper has no canonical address and must be configured.
	DefaultContracts = ContractAddresses{
		PremintExecutor:  PremintExecutorAddress,
		FixedPriceMinter: FixedPriceMinterAddress,
		Mints1155:        Mints1155Address,
		MintsManager:     MintsManagerAddress,
	}

	// contractOverrides holds per-network deployments that differ from
	// DefaultContracts.
	contractOverrides = map[intents.Network]ContractAddresses{}
)

// GetContracts returns the protocol contract addresses for a network.
func GetContracts(network intents.Network) (ContractAddresses, error) {
	if _, err := intents.GetChainInfo(network); err != nil {
		return ContractAddresses{}, err
	}
	if override, ok := contractOverrides[network]; ok {
		return override, nil
	}
	return DefaultContracts, nil
}

// RegisterContracts overrides the deployment used for a network.
func RegisterContracts(network intents.Network, addresses ContractAddresses) error {
	if _, err := network.ChainID(); err != nil {
		return err
	}
	for name, addr := range map[string]string{
		"premintExecutor":   addresses.PremintExecutor,
		"fixedPriceMinter":  addresses.FixedPriceMinter,
		"mints1155":         addresses.Mints1155,
		"mintsManager":      addresses.MintsManager,
		"mintsEthUnwrapper": addresses.MintsEthUnwrapper,
	} {
		if addr != "" && !IsValidAddress(addr) {
			return fmt.Errorf("invalid %s address: %s", name, addr)
		}
	}
	contractOverrides[network] = addresses
	return nil
}

// CallFailedABI describes the wrapper error the credit-token contracts raise
// when a forwarded call reverts inside an atomic batch transfer.
var CallFailedABI = []byte(`[
	{
		"type": "error",
		"name": "CallFailed",
		"inputs": [{"name": "reason", "type": "bytes"}]
	}
]`)
