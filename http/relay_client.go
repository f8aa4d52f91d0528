package http

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mintkit/intents/go/relay"
)

// DefaultRelayAPIURL is the public bridge quoting service
const DefaultRelayAPIURL = "https://api.relay.link"

// RelayConfig configures the bridge quote client
type RelayConfig struct {
	URL          string
	HTTPClient   *http.Client
	AuthProvider AuthProvider
	Timeout      time.Duration
	// QuoteTTL is how long a quote is considered fresh when the service
	// does not say (optional, defaults to 30s)
	QuoteTTL time.Duration
}

// RelayClient fetches cross-chain call quotes. It implements relay.Quoter.
type RelayClient struct {
	rest     restClient
	quoteTTL time.Duration
	now      func() time.Time
}

var _ relay.Quoter = (*RelayClient)(nil)

// NewRelayClient creates a new bridge quote client
func NewRelayClient(config *RelayConfig) *RelayClient {
	if config == nil {
		config = &RelayConfig{}
	}
	url := strings.TrimRight(config.URL, "/")
	if url == "" {
		url = DefaultRelayAPIURL
	}
	ttl := config.QuoteTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &RelayClient{
		rest:     newRESTClient("relay api", url, config.HTTPClient, config.AuthProvider, config.Timeout),
		quoteTTL: ttl,
		now:      time.Now,
	}
}

type relayTx struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type relayQuoteRequest struct {
	User                string    `json:"user"`
	Recipient           string    `json:"recipient,omitempty"`
	OriginChainID       uint64    `json:"originChainId"`
	DestinationChainID  uint64    `json:"destinationChainId"`
	OriginCurrency      string    `json:"originCurrency"`
	DestinationCurrency string    `json:"destinationCurrency"`
	Amount              string    `json:"amount"`
	TradeType           string    `json:"tradeType"`
	Txs                 []relayTx `json:"txs,omitempty"`
}

type relayQuoteResponse struct {
	Steps []struct {
		ID    string `json:"id"`
		Items []struct {
			Data relayTx `json:"data"`
		} `json:"items"`
	} `json:"steps"`
	Fees struct {
		Relayer struct {
			Amount string `json:"amount"`
		} `json:"relayer"`
	} `json:"fees"`
	Details struct {
		CurrencyOut struct {
			Amount string `json:"amount"`
		} `json:"currencyOut"`
		ExpiresAt int64 `json:"expiresAt,omitempty"`
	} `json:"details"`
}

const nativeCurrency = "0x0000000000000000000000000000000000000000"

// Quote asks the service for an origin-chain deposit that executes
// req.DestinationCall on the destination chain.
func (c *RelayClient) Quote(ctx context.Context, req relay.QuoteRequest) (*relay.Quote, error) {
	origin, err := req.Origin.ChainID()
	if err != nil {
		return nil, err
	}
	destination, err := req.Destination.ChainID()
	if err != nil {
		return nil, err
	}

	amount := "0"
	if req.DestinationCall.Value != nil {
		amount = req.DestinationCall.Value.String()
	}
	body := relayQuoteRequest{
		User:                req.Depositor,
		Recipient:           req.Recipient,
		OriginChainID:       origin.Uint64(),
		DestinationChainID:  destination.Uint64(),
		OriginCurrency:      nativeCurrency,
		DestinationCurrency: nativeCurrency,
		Amount:              amount,
		TradeType:           "EXACT_OUTPUT",
	}
	if req.DestinationCall.To != "" {
		body.Txs = []relayTx{{
			To:    req.DestinationCall.To,
			Data:  hexutil.Encode(req.DestinationCall.Data),
			Value: amount,
		}}
	}

	var resp relayQuoteResponse
	if err := c.rest.postJSON(ctx, "/quote", body, &resp); err != nil {
		return nil, err
	}
	return c.toQuote(resp)
}

func (c *RelayClient) toQuote(resp relayQuoteResponse) (*relay.Quote, error) {
	if len(resp.Steps) == 0 || len(resp.Steps[0].Items) == 0 {
		return nil, fmt.Errorf("relay quote has no deposit step")
	}
	tx := resp.Steps[0].Items[0].Data

	data, err := hexutil.Decode(orEmptyHex(tx.Data))
	if err != nil {
		return nil, fmt.Errorf("relay quote calldata: %w", err)
	}
	value, err := parseAmount(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("relay quote value: %w", err)
	}
	fee, err := parseAmount(resp.Fees.Relayer.Amount)
	if err != nil {
		return nil, fmt.Errorf("relay quote fee: %w", err)
	}
	out, err := parseAmount(resp.Details.CurrencyOut.Amount)
	if err != nil {
		return nil, fmt.Errorf("relay quote output: %w", err)
	}

	expiresAt := c.now().Add(c.quoteTTL)
	if resp.Details.ExpiresAt > 0 {
		expiresAt = time.Unix(resp.Details.ExpiresAt, 0)
	}

	return &relay.Quote{
		Call:      relay.Call{To: tx.To, Data: data, Value: value},
		FeeValue:  fee,
		AmountOut: out,
		ExpiresAt: expiresAt,
	}, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func orEmptyHex(s string) string {
	if s == "" {
		return "0x"
	}
	return s
}
