package premint

import (
	"fmt"
	"math/big"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

const (
	// DomainName is the EIP-712 domain name of premint signatures.
	DomainName = "Preminter"

	// PrimaryType is the signed struct of every premint version.
	PrimaryType = "CreatorAttribution"

	tokenConfigType = "TokenCreationConfig"
)

// creatorAttributionFields is shared by every version; only the nested
// token config differs.
var creatorAttributionFields = []evm.TypedDataField{
	{Name: "tokenConfig", Type: tokenConfigType},
	{Name: "uid", Type: "uint32"},
	{Name: "version", Type: "uint32"},
	{Name: "deleted", Type: "bool"},
}

// Token config schemas. Field order must match the verifying contract.
var tokenConfigFields = map[Version][]evm.TypedDataField{
	V1: {
		{Name: "tokenURI", Type: "string"},
		{Name: "maxSupply", Type: "uint256"},
		{Name: "maxTokensPerAddress", Type: "uint64"},
		{Name: "pricePerToken", Type: "uint96"},
		{Name: "mintStart", Type: "uint64"},
		{Name: "mintDuration", Type: "uint64"},
		{Name: "royaltyMintSchedule", Type: "uint32"},
		{Name: "royaltyBPS", Type: "uint32"},
		{Name: "royaltyRecipient", Type: "address"},
		{Name: "fixedPriceMinter", Type: "address"},
	},
	V2: {
		{Name: "tokenURI", Type: "string"},
		{Name: "maxSupply", Type: "uint256"},
		{Name: "royaltyBPS", Type: "uint32"},
		{Name: "payoutRecipient", Type: "address"},
		{Name: "createReferral", Type: "address"},
		{Name: "maxTokensPerAddress", Type: "uint64"},
		{Name: "pricePerToken", Type: "uint96"},
		{Name: "mintStart", Type: "uint64"},
		{Name: "mintDuration", Type: "uint64"},
		{Name: "fixedPriceMinter", Type: "address"},
	},
	V3: {
		{Name: "tokenURI", Type: "string"},
		{Name: "maxSupply", Type: "uint256"},
		{Name: "royaltyBPS", Type: "uint32"},
		{Name: "payoutRecipient", Type: "address"},
		{Name: "createReferral", Type: "address"},
		{Name: "mintStart", Type: "uint64"},
		{Name: "minter", Type: "address"},
		{Name: "premintSalesConfig", Type: "bytes"},
	},
}

// TypedData builds the exact structure a creator signs for premint on the
// collection at verifyingContract. Create, supersede and delete share it.
func TypedData(verifyingContract string, chainID *big.Int, premint PremintConfig) (evm.TypedData, error) {
	version := premint.ConfigVersion()
	fields, ok := tokenConfigFields[version]
	if !ok {
		return evm.TypedData{}, intents.NewIntentError(intents.ErrCodeUnsupportedPremintVersion,
			fmt.Sprintf("unknown premint config version %q", version), nil)
	}
	if !evm.IsValidAddress(verifyingContract) {
		return evm.TypedData{}, intents.NewIntentError(intents.ErrCodeInvalidInput,
			fmt.Sprintf("invalid collection address %q", verifyingContract), nil)
	}
	if chainID == nil {
		return evm.TypedData{}, intents.NewIntentError(intents.ErrCodeInvalidInput, "chain id is required", nil)
	}

	return evm.TypedData{
		Domain: evm.TypedDataDomain{
			Name:              DomainName,
			Version:           string(version),
			ChainID:           new(big.Int).Set(chainID),
			VerifyingContract: evm.NormalizeAddress(verifyingContract),
		},
		Types: map[string][]evm.TypedDataField{
			PrimaryType:     creatorAttributionFields,
			tokenConfigType: fields,
		},
		PrimaryType: PrimaryType,
		Message: map[string]interface{}{
			"tokenConfig": tokenConfigMessage(premint.TokenConfig),
			"uid":         new(big.Int).SetUint64(uint64(premint.UID)),
			"version":     new(big.Int).SetUint64(uint64(premint.Version)),
			"deleted":     premint.Deleted,
		},
	}, nil
}

func tokenConfigMessage(config TokenConfig) map[string]interface{} {
	switch c := config.(type) {
	case TokenConfigV1:
		return map[string]interface{}{
			"tokenURI":            c.TokenURI,
			"maxSupply":           bigOrZero(c.MaxSupply),
			"maxTokensPerAddress": new(big.Int).SetUint64(c.MaxTokensPerAddress),
			"pricePerToken":       bigOrZero(c.PricePerToken),
			"mintStart":           new(big.Int).SetUint64(c.MintStart),
			"mintDuration":        new(big.Int).SetUint64(c.MintDuration),
			"royaltyMintSchedule": new(big.Int).SetUint64(uint64(c.RoyaltyMintSchedule)),
			"royaltyBPS":          new(big.Int).SetUint64(uint64(c.RoyaltyBPS)),
			"royaltyRecipient":    evm.AddressOrZero(c.RoyaltyRecipient).Hex(),
			"fixedPriceMinter":    evm.AddressOrZero(c.FixedPriceMinter).Hex(),
		}
	case TokenConfigV2:
		return map[string]interface{}{
			"tokenURI":            c.TokenURI,
			"maxSupply":           bigOrZero(c.MaxSupply),
			"royaltyBPS":          new(big.Int).SetUint64(uint64(c.RoyaltyBPS)),
			"payoutRecipient":     evm.AddressOrZero(c.PayoutRecipient).Hex(),
			"createReferral":      evm.AddressOrZero(c.CreateReferral).Hex(),
			"maxTokensPerAddress": new(big.Int).SetUint64(c.MaxTokensPerAddress),
			"pricePerToken":       bigOrZero(c.PricePerToken),
			"mintStart":           new(big.Int).SetUint64(c.MintStart),
			"mintDuration":        new(big.Int).SetUint64(c.MintDuration),
			"fixedPriceMinter":    evm.AddressOrZero(c.FixedPriceMinter).Hex(),
		}
	case TokenConfigV3:
		salesConfig := c.PremintSalesConfig
		if salesConfig == nil {
			salesConfig = []byte{}
		}
		return map[string]interface{}{
			"tokenURI":           c.TokenURI,
			"maxSupply":          bigOrZero(c.MaxSupply),
			"royaltyBPS":         new(big.Int).SetUint64(uint64(c.RoyaltyBPS)),
			"payoutRecipient":    evm.AddressOrZero(c.PayoutRecipient).Hex(),
			"createReferral":     evm.AddressOrZero(c.CreateReferral).Hex(),
			"mintStart":          new(big.Int).SetUint64(c.MintStart),
			"minter":             evm.AddressOrZero(c.Minter).Hex(),
			"premintSalesConfig": salesConfig,
		}
	default:
		return nil
	}
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// RecoverSigner returns the address that signed premint for collection.
func RecoverSigner(chainID *big.Int, premint SignedPremint) (string, error) {
	td, err := TypedData(premint.CollectionAddress, chainID, premint.Premint)
	if err != nil {
		return "", err
	}
	sig, err := evm.HexToBytes(premint.Signature)
	if err != nil {
		return "", intents.WrapIntentError(intents.ErrCodeInvalidInput, "invalid signature encoding", err)
	}
	signer, err := evm.RecoverTypedDataSigner(td, sig)
	if err != nil {
		return "", intents.WrapIntentError(intents.ErrCodeInvalidInput, "unrecoverable premint signature", err)
	}
	return signer.Hex(), nil
}
