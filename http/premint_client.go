package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/premint"
)

// DefaultPremintAPIURL is the public premint attestation service
const DefaultPremintAPIURL = "https://api.zora.co/premint"

// PremintAPIConfig configures the premint API client
type PremintAPIConfig struct {
	// URL is the base URL of the premint service
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// AuthProvider provides authentication headers (optional)
	AuthProvider AuthProvider

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// PremintAPIClient stores and fetches signed premints through the premint
// HTTP service. It implements premint.AttestationStore.
type PremintAPIClient struct {
	rest restClient
}

var _ premint.AttestationStore = (*PremintAPIClient)(nil)

// NewPremintAPIClient creates a new premint API client
func NewPremintAPIClient(config *PremintAPIConfig) *PremintAPIClient {
	if config == nil {
		config = &PremintAPIConfig{}
	}
	url := strings.TrimRight(config.URL, "/")
	if url == "" {
		url = DefaultPremintAPIURL
	}
	return &PremintAPIClient{
		rest: newRESTClient("premint api", url, config.HTTPClient, config.AuthProvider, config.Timeout),
	}
}

// premintRecord is the service's wire form of a signed premint.
type premintRecord struct {
	ChainName         string                          `json:"chain_name"`
	CollectionAddress string                          `json:"collection_address"`
	Collection        *premint.ContractCreationConfig `json:"collection,omitempty"`
	Premint           premint.PremintConfig           `json:"premint"`
	Signature         string                          `json:"signature"`
}

type nextUIDResponse struct {
	NextUID uint32 `json:"next_uid"`
}

// Get fetches the authoritative premint for a collection and uid.
func (c *PremintAPIClient) Get(ctx context.Context, network intents.Network, collection string, uid uint32) (*premint.SignedPremint, error) {
	chain, err := intents.GetChainInfo(network)
	if err != nil {
		return nil, err
	}

	var record premintRecord
	path := fmt.Sprintf("/signature/%s/%s/%d", chain.APIName, strings.ToLower(collection), uid)
	if err := c.rest.getJSON(ctx, path, &record); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, intents.WrapIntentError(intents.ErrCodeNotFound,
				fmt.Sprintf("no premint for %s uid %d on %s", collection, uid, network), err)
		}
		return nil, err
	}

	return &premint.SignedPremint{
		Network:           network,
		CollectionAddress: record.CollectionAddress,
		Collection:        record.Collection,
		Premint:           record.Premint,
		Signature:         record.Signature,
	}, nil
}

// PostSignature submits a signed premint. The service rejects versions that
// do not supersede the stored one.
func (c *PremintAPIClient) PostSignature(ctx context.Context, p premint.SignedPremint) error {
	chain, err := intents.GetChainInfo(p.Network)
	if err != nil {
		return err
	}

	record := premintRecord{
		ChainName:         chain.APIName,
		CollectionAddress: strings.ToLower(p.CollectionAddress),
		Collection:        p.Collection,
		Premint:           p.Premint,
		Signature:         p.Signature,
	}
	if err := c.rest.postJSON(ctx, "/signature", record, nil); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return intents.WrapIntentError(intents.ErrCodeStaleVersion, "premint service rejected the version", err)
		}
		return err
	}
	return nil
}

// NextUID asks the service for an unused uid.
func (c *PremintAPIClient) NextUID(ctx context.Context, network intents.Network, collection string) (uint32, error) {
	chain, err := intents.GetChainInfo(network)
	if err != nil {
		return 0, err
	}

	var resp nextUIDResponse
	path := fmt.Sprintf("/signature/%s/%s/next_uid", chain.APIName, strings.ToLower(collection))
	if err := c.rest.getJSON(ctx, path, &resp); err != nil {
		return 0, err
	}
	return resp.NextUID, nil
}
