package premint

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	intents "github.com/mintkit/intents/go"
)

// Version is the premint schema version. It travels alongside every config
// and selects both the signed schema and the on-chain encoding.
type Version string

const (
	V1 Version = "1"
	V2 Version = "2"
	// V3 can be signed and stored but not collected.
	V3 Version = "3"
)

// ContractCreationConfig describes a collection that may not exist yet.
type ContractCreationConfig struct {
	ContractAdmin    string   `json:"contractAdmin"`
	ContractURI      string   `json:"contractURI"`
	ContractName     string   `json:"contractName"`
	AdditionalAdmins []string `json:"additionalAdmins,omitempty"`
}

// TokenConfig is a versioned token creation config. Implemented by
// TokenConfigV1, TokenConfigV2 and TokenConfigV3.
type TokenConfig interface {
	// PremintVersion is the schema version the config belongs to.
	PremintVersion() Version
	// Price is the sale price per token in wei, or nil when the version has
	// no fixed price field.
	Price() *big.Int
	URI() string

	sealed()
}

// TokenConfigV1 is the original token creation config.
type TokenConfigV1 struct {
	TokenURI            string   `json:"tokenURI"`
	MaxSupply           *big.Int `json:"maxSupply"`
	MaxTokensPerAddress uint64   `json:"maxTokensPerAddress"`
	PricePerToken       *big.Int `json:"pricePerToken"`
	MintStart           uint64   `json:"mintStart"`
	MintDuration        uint64   `json:"mintDuration"`
	RoyaltyMintSchedule uint32   `json:"royaltyMintSchedule"`
	RoyaltyBPS          uint32   `json:"royaltyBPS"`
	RoyaltyRecipient    string   `json:"royaltyRecipient"`
	FixedPriceMinter    string   `json:"fixedPriceMinter"`
}

func (TokenConfigV1) PremintVersion() Version { return V1 }
func (c TokenConfigV1) Price() *big.Int       { return c.PricePerToken }
func (c TokenConfigV1) URI() string           { return c.TokenURI }
func (TokenConfigV1) sealed()                 {}

// TokenConfigV2 adds a create referral and renames the royalty recipient to
// payout recipient.
type TokenConfigV2 struct {
	TokenURI            string   `json:"tokenURI"`
	MaxSupply           *big.Int `json:"maxSupply"`
	RoyaltyBPS          uint32   `json:"royaltyBPS"`
	PayoutRecipient     string   `json:"payoutRecipient"`
	CreateReferral      string   `json:"createReferral"`
	MaxTokensPerAddress uint64   `json:"maxTokensPerAddress"`
	PricePerToken       *big.Int `json:"pricePerToken"`
	MintStart           uint64   `json:"mintStart"`
	MintDuration        uint64   `json:"mintDuration"`
	FixedPriceMinter    string   `json:"fixedPriceMinter"`
}

func (TokenConfigV2) PremintVersion() Version { return V2 }
func (c TokenConfigV2) Price() *big.Int       { return c.PricePerToken }
func (c TokenConfigV2) URI() string           { return c.TokenURI }
func (TokenConfigV2) sealed()                 {}

// TokenConfigV3 delegates sales to an arbitrary minter configured with
// opaque PremintSalesConfig bytes.
type TokenConfigV3 struct {
	TokenURI           string   `json:"tokenURI"`
	MaxSupply          *big.Int `json:"maxSupply"`
	RoyaltyBPS         uint32   `json:"royaltyBPS"`
	PayoutRecipient    string   `json:"payoutRecipient"`
	CreateReferral     string   `json:"createReferral"`
	MintStart          uint64   `json:"mintStart"`
	Minter             string   `json:"minter"`
	PremintSalesConfig []byte   `json:"premintSalesConfig"`
}

func (TokenConfigV3) PremintVersion() Version { return V3 }
func (TokenConfigV3) Price() *big.Int         { return nil }
func (c TokenConfigV3) URI() string           { return c.TokenURI }
func (TokenConfigV3) sealed()                 {}

// PremintConfig is the signed unit: a token config plus its identity,
// supersession counter and tombstone flag.
type PremintConfig struct {
	TokenConfig TokenConfig
	// UID identifies the logical premint within one collection.
	UID uint32
	// Version increases by one on every supersession.
	Version uint32
	// Deleted retires the uid permanently.
	Deleted bool
}

// ConfigVersion returns the schema version of the config.
func (c PremintConfig) ConfigVersion() Version {
	if c.TokenConfig == nil {
		return ""
	}
	return c.TokenConfig.PremintVersion()
}

type premintConfigJSON struct {
	ConfigVersion Version         `json:"premintConfigVersion"`
	TokenConfig   json.RawMessage `json:"tokenConfig"`
	UID           uint32          `json:"uid"`
	Version       uint32          `json:"version"`
	Deleted       bool            `json:"deleted"`
}

// MarshalJSON writes the schema version next to the config.
func (c PremintConfig) MarshalJSON() ([]byte, error) {
	if c.TokenConfig == nil {
		return nil, fmt.Errorf("premint config has no token config")
	}
	token, err := json.Marshal(c.TokenConfig)
	if err != nil {
		return nil, err
	}
	return json.Marshal(premintConfigJSON{
		ConfigVersion: c.ConfigVersion(),
		TokenConfig:   token,
		UID:           c.UID,
		Version:       c.Version,
		Deleted:       c.Deleted,
	})
}

// UnmarshalJSON decodes the token config named by premintConfigVersion.
func (c *PremintConfig) UnmarshalJSON(data []byte) error {
	var raw premintConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var token TokenConfig
	switch raw.ConfigVersion {
	case V1:
		var v TokenConfigV1
		if err := json.Unmarshal(raw.TokenConfig, &v); err != nil {
			return fmt.Errorf("decode v1 token config: %w", err)
		}
		token = v
	case V2:
		var v TokenConfigV2
		if err := json.Unmarshal(raw.TokenConfig, &v); err != nil {
			return fmt.Errorf("decode v2 token config: %w", err)
		}
		token = v
	case V3:
		var v TokenConfigV3
		if err := json.Unmarshal(raw.TokenConfig, &v); err != nil {
			return fmt.Errorf("decode v3 token config: %w", err)
		}
		token = v
	default:
		return fmt.Errorf("unknown premint config version %q", raw.ConfigVersion)
	}

	*c = PremintConfig{
		TokenConfig: token,
		UID:         raw.UID,
		Version:     raw.Version,
		Deleted:     raw.Deleted,
	}
	return nil
}

// SignedPremint is a premint config, the signature over it and the
// collection it targets.
type SignedPremint struct {
	Network intents.Network `json:"network"`
	// CollectionAddress is the resolved (possibly not yet deployed) target.
	CollectionAddress string `json:"collectionAddress"`
	// Collection is set when the collection is created by the first collect.
	Collection *ContractCreationConfig `json:"collection,omitempty"`
	Premint    PremintConfig           `json:"premint"`
	// Signature is the 0x-prefixed 65-byte creator signature.
	Signature string `json:"signature"`
}

// AttestationStore stores signed premints keyed by collection and uid and
// returns only the authoritative (highest version) one.
type AttestationStore interface {
	// Get returns the authoritative premint, or an error matching
	// intents.ErrNotFound.
	Get(ctx context.Context, network intents.Network, collection string, uid uint32) (*SignedPremint, error)

	// PostSignature stores a signed premint.
	PostSignature(ctx context.Context, premint SignedPremint) error

	// NextUID returns an unused uid for the collection.
	NextUID(ctx context.Context, network intents.Network, collection string) (uint32, error)
}

// CheckSupersession reports whether next may replace current as the
// authoritative premint for its uid. current may be nil.
func CheckSupersession(current *SignedPremint, next PremintConfig) error {
	if current == nil {
		return nil
	}
	if current.Premint.Deleted {
		return intents.NewIntentError(intents.ErrCodePremintDeleted,
			fmt.Sprintf("premint uid %d is deleted", next.UID),
			map[string]interface{}{"version": current.Premint.Version})
	}
	if next.Version <= current.Premint.Version {
		return intents.NewIntentError(intents.ErrCodeStaleVersion,
			fmt.Sprintf("version %d does not supersede version %d", next.Version, current.Premint.Version),
			map[string]interface{}{"uid": next.UID, "current": current.Premint.Version, "attempted": next.Version})
	}
	return nil
}
