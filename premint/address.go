package premint

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

// CollectionRef names the collection a premint targets: either an address
// of an existing (or already resolved) collection, or the creation config of
// one that does not exist yet. Implemented by CollectionAddress and
// CollectionConfig.
type CollectionRef interface {
	collectionRef()
}

// CollectionAddress refers to a collection by address.
type CollectionAddress string

// CollectionConfig refers to a collection by its creation config.
type CollectionConfig ContractCreationConfig

func (CollectionAddress) collectionRef() {}
func (CollectionConfig) collectionRef()  {}

// ResolveCollectionAddress returns the address ref has or will have once it
// is created. An address is returned as-is with no call; a config costs one
// read against factory. The signer's entitlement is not checked here.
func ResolveCollectionAddress(ctx context.Context, reader evm.ChainReader, factory string, ref CollectionRef) (string, error) {
	switch r := ref.(type) {
	case CollectionAddress:
		if !evm.IsValidAddress(string(r)) {
			return "", intents.NewIntentError(intents.ErrCodeInvalidInput,
				fmt.Sprintf("invalid collection address %q", string(r)), nil)
		}
		return evm.NormalizeAddress(string(r)), nil
	case CollectionConfig:
		return predictAddress(ctx, reader, factory, ContractCreationConfig(r))
	case nil:
		return "", intents.NewIntentError(intents.ErrCodeInvalidInput, "collection is required", nil)
	default:
		return "", intents.NewIntentError(intents.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported collection reference %T", ref), nil)
	}
}

func predictAddress(ctx context.Context, reader evm.ChainReader, factory string, config ContractCreationConfig) (string, error) {
	if !evm.IsValidAddress(config.ContractAdmin) {
		return "", intents.NewIntentError(intents.ErrCodeMissingAccount, "collection config needs a contract admin", nil)
	}

	var (
		result interface{}
		err    error
	)
	if len(config.AdditionalAdmins) == 0 {
		result, err = reader.ReadContract(ctx, factory, PremintExecutorABI, "getContractAddress",
			contractConfigNoAdminsArgs{
				ContractAdmin: common.HexToAddress(config.ContractAdmin),
				ContractURI:   config.ContractURI,
				ContractName:  config.ContractName,
			})
	} else {
		result, err = reader.ReadContract(ctx, factory, PremintExecutorABI, "getContractWithAdditionalAdminsAddress",
			EncodeContractConfig(&config))
	}
	if err != nil {
		return "", fmt.Errorf("predict collection address: %w", err)
	}

	addr, ok := result.(common.Address)
	if !ok {
		return "", fmt.Errorf("unexpected collection address result type %T", result)
	}
	return addr.Hex(), nil
}

// collectionConfigOf returns the creation config carried by ref, if any.
func collectionConfigOf(ref CollectionRef) *ContractCreationConfig {
	if c, ok := ref.(CollectionConfig); ok {
		config := ContractCreationConfig(c)
		return &config
	}
	return nil
}
