package premint

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

// AuthorizationParams identifies a signer and the collection it wants to
// act for.
type AuthorizationParams struct {
	Signer            string
	CollectionAddress string
	// ContractAdmin and AdditionalAdmins come from the creation config and
	// only matter while the collection is not deployed.
	ContractAdmin    string
	AdditionalAdmins []string
}

// IsAuthorized asks the executor whether the signer may create, supersede
// or delete premints on the collection. Admin sets can change on-chain, so
// this is always a fresh read.
func IsAuthorized(ctx context.Context, reader evm.ChainReader, executor string, params AuthorizationParams) (bool, error) {
	if !evm.IsValidAddress(params.Signer) {
		return false, intents.NewIntentError(intents.ErrCodeMissingAccount, "signer address is required", nil)
	}

	result, err := reader.ReadContract(ctx, executor, PremintExecutorABI,
		"isAuthorizedToCreatePremintWithAdditionalAdmins",
		common.HexToAddress(params.Signer),
		evm.AddressOrZero(params.ContractAdmin),
		common.HexToAddress(params.CollectionAddress),
		addressList(params.AdditionalAdmins),
	)
	if err != nil {
		return false, fmt.Errorf("authorization check: %w", err)
	}

	authorized, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected authorization result type %T", result)
	}
	return authorized, nil
}

// CheckAuthorization is IsAuthorized that fails with ErrNotAuthorized.
func CheckAuthorization(ctx context.Context, reader evm.ChainReader, executor string, params AuthorizationParams) error {
	ok, err := IsAuthorized(ctx, reader, executor, params)
	if err != nil {
		return err
	}
	if !ok {
		return intents.NewIntentError(intents.ErrCodeNotAuthorized,
			fmt.Sprintf("%s may not create premints on %s", params.Signer, params.CollectionAddress),
			map[string]interface{}{"signer": params.Signer, "collection": params.CollectionAddress})
	}
	return nil
}

func authorizationParams(signer string, premint SignedPremint) AuthorizationParams {
	params := AuthorizationParams{
		Signer:            signer,
		CollectionAddress: premint.CollectionAddress,
	}
	if premint.Collection != nil {
		params.ContractAdmin = premint.Collection.ContractAdmin
		params.AdditionalAdmins = premint.Collection.AdditionalAdmins
	}
	return params
}
