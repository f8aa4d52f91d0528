package premint

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

// ContractConfigArgs is the on-chain ContractWithAdditionalAdminsCreationConfig.
type ContractConfigArgs struct {
	ContractAdmin    common.Address   `abi:"contractAdmin"`
	ContractURI      string           `abi:"contractURI"`
	ContractName     string           `abi:"contractName"`
	AdditionalAdmins []common.Address `abi:"additionalAdmins"`
}

type contractConfigNoAdminsArgs struct {
	ContractAdmin common.Address `abi:"contractAdmin"`
	ContractURI   string         `abi:"contractURI"`
	ContractName  string         `abi:"contractName"`
}

// EncodedConfig is the on-chain PremintConfigEncoded: the token config is
// abi-encoded separately and tagged with the hashed schema version.
type EncodedConfig struct {
	UID                  uint32   `abi:"uid"`
	Version              uint32   `abi:"version"`
	Deleted              bool     `abi:"deleted"`
	TokenConfig          []byte   `abi:"tokenConfig"`
	PremintConfigVersion [32]byte `abi:"premintConfigVersion"`
}

// MintArguments is the on-chain MintArguments struct.
type MintArguments struct {
	MintRecipient         common.Address   `abi:"mintRecipient"`
	MintComment           string           `abi:"mintComment"`
	MintRewardsRecipients []common.Address `abi:"mintRewardsRecipients"`
}

type tokenConfigV1Args struct {
	TokenURI            string         `abi:"tokenURI"`
	MaxSupply           *big.Int       `abi:"maxSupply"`
	MaxTokensPerAddress uint64         `abi:"maxTokensPerAddress"`
	PricePerToken       *big.Int       `abi:"pricePerToken"`
	MintStart           uint64         `abi:"mintStart"`
	MintDuration        uint64         `abi:"mintDuration"`
	RoyaltyMintSchedule uint32         `abi:"royaltyMintSchedule"`
	RoyaltyBPS          uint32         `abi:"royaltyBPS"`
	RoyaltyRecipient    common.Address `abi:"royaltyRecipient"`
	FixedPriceMinter    common.Address `abi:"fixedPriceMinter"`
}

type tokenConfigV2Args struct {
	TokenURI            string         `abi:"tokenURI"`
	MaxSupply           *big.Int       `abi:"maxSupply"`
	RoyaltyBPS          uint32         `abi:"royaltyBPS"`
	PayoutRecipient     common.Address `abi:"payoutRecipient"`
	CreateReferral      common.Address `abi:"createReferral"`
	MaxTokensPerAddress uint64         `abi:"maxTokensPerAddress"`
	PricePerToken       *big.Int       `abi:"pricePerToken"`
	MintStart           uint64         `abi:"mintStart"`
	MintDuration        uint64         `abi:"mintDuration"`
	FixedPriceMinter    common.Address `abi:"fixedPriceMinter"`
}

type tokenConfigV3Args struct {
	TokenURI           string         `abi:"tokenURI"`
	MaxSupply          *big.Int       `abi:"maxSupply"`
	RoyaltyBPS         uint32         `abi:"royaltyBPS"`
	PayoutRecipient    common.Address `abi:"payoutRecipient"`
	CreateReferral     common.Address `abi:"createReferral"`
	MintStart          uint64         `abi:"mintStart"`
	Minter             common.Address `abi:"minter"`
	PremintSalesConfig []byte         `abi:"premintSalesConfig"`
}

// tokenConfigArguments holds the single-tuple argument list used to
// abi.encode each token config version.
var tokenConfigArguments = map[Version]abi.Arguments{}

func init() {
	for version, fields := range tokenConfigFields {
		components := make([]abi.ArgumentMarshaling, len(fields))
		for i, f := range fields {
			components[i] = abi.ArgumentMarshaling{Name: f.Name, Type: f.Type}
		}
		tupleType, err := abi.NewType("tuple", "", components)
		if err != nil {
			panic(fmt.Sprintf("invalid token config v%s abi: %v", version, err))
		}
		tokenConfigArguments[version] = abi.Arguments{{Type: tupleType}}
	}
}

// EncodeTokenConfig abi-encodes a token config the way the executor decodes
// PremintConfigEncoded.tokenConfig.
func EncodeTokenConfig(config TokenConfig) ([]byte, error) {
	if config == nil {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "token config is required", nil)
	}

	var value interface{}
	switch c := config.(type) {
	case TokenConfigV1:
		value = tokenConfigV1Args{
			TokenURI:            c.TokenURI,
			MaxSupply:           bigOrZero(c.MaxSupply),
			MaxTokensPerAddress: c.MaxTokensPerAddress,
			PricePerToken:       bigOrZero(c.PricePerToken),
			MintStart:           c.MintStart,
			MintDuration:        c.MintDuration,
			RoyaltyMintSchedule: c.RoyaltyMintSchedule,
			RoyaltyBPS:          c.RoyaltyBPS,
			RoyaltyRecipient:    evm.AddressOrZero(c.RoyaltyRecipient),
			FixedPriceMinter:    evm.AddressOrZero(c.FixedPriceMinter),
		}
	case TokenConfigV2:
		value = tokenConfigV2Args{
			TokenURI:            c.TokenURI,
			MaxSupply:           bigOrZero(c.MaxSupply),
			RoyaltyBPS:          c.RoyaltyBPS,
			PayoutRecipient:     evm.AddressOrZero(c.PayoutRecipient),
			CreateReferral:      evm.AddressOrZero(c.CreateReferral),
			MaxTokensPerAddress: c.MaxTokensPerAddress,
			PricePerToken:       bigOrZero(c.PricePerToken),
			MintStart:           c.MintStart,
			MintDuration:        c.MintDuration,
			FixedPriceMinter:    evm.AddressOrZero(c.FixedPriceMinter),
		}
	case TokenConfigV3:
		salesConfig := c.PremintSalesConfig
		if salesConfig == nil {
			salesConfig = []byte{}
		}
		value = tokenConfigV3Args{
			TokenURI:           c.TokenURI,
			MaxSupply:          bigOrZero(c.MaxSupply),
			RoyaltyBPS:         c.RoyaltyBPS,
			PayoutRecipient:    evm.AddressOrZero(c.PayoutRecipient),
			CreateReferral:     evm.AddressOrZero(c.CreateReferral),
			MintStart:          c.MintStart,
			Minter:             evm.AddressOrZero(c.Minter),
			PremintSalesConfig: salesConfig,
		}
	}

	encoded, err := tokenConfigArguments[config.PremintVersion()].Pack(value)
	if err != nil {
		return nil, fmt.Errorf("encode v%s token config: %w", config.PremintVersion(), err)
	}
	return encoded, nil
}

// HashedVersion is the bytes32 tag the executor uses to select the decoder.
func HashedVersion(version Version) [32]byte {
	return crypto.Keccak256Hash([]byte(version))
}

// EncodePremintConfig converts a premint config into its on-chain form.
func EncodePremintConfig(premint PremintConfig) (EncodedConfig, error) {
	tokenConfig, err := EncodeTokenConfig(premint.TokenConfig)
	if err != nil {
		return EncodedConfig{}, err
	}
	return EncodedConfig{
		UID:                  premint.UID,
		Version:              premint.Version,
		Deleted:              premint.Deleted,
		TokenConfig:          tokenConfig,
		PremintConfigVersion: HashedVersion(premint.ConfigVersion()),
	}, nil
}

// EncodeContractConfig converts a creation config into its on-chain form.
// A nil config, used for collections that already exist, encodes as the
// zero struct.
func EncodeContractConfig(config *ContractCreationConfig) ContractConfigArgs {
	if config == nil {
		return ContractConfigArgs{AdditionalAdmins: []common.Address{}}
	}
	return ContractConfigArgs{
		ContractAdmin:    evm.AddressOrZero(config.ContractAdmin),
		ContractURI:      config.ContractURI,
		ContractName:     config.ContractName,
		AdditionalAdmins: addressList(config.AdditionalAdmins),
	}
}

func addressList(addresses []string) []common.Address {
	out := make([]common.Address, len(addresses))
	for i, a := range addresses {
		out[i] = common.HexToAddress(a)
	}
	return out
}
