package http

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/relay"
)

const relayQuoteJSON = `{
  "steps": [{"id": "deposit", "items": [{"data": {
    "to": "0xa5f565650890fba1824ee0f21ebbbf660a179934",
    "data": "0xdeadbeef",
    "value": "1050000000000000"
  }}]}],
  "fees": {"relayer": {"amount": "50000000000000"}},
  "details": {"currencyOut": {"amount": "1000000000000000"}, "expiresAt": 1900000000}
}`

func TestRelayClientQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/quote", r.URL.Path)

		var body relayQuoteRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, uint64(7777777), body.OriginChainID)
		assert.Equal(t, uint64(8453), body.DestinationChainID)
		assert.Equal(t, "0x5555555555555555555555555555555555555555", body.User)
		assert.Equal(t, "1000000000000000", body.Amount)
		assert.Equal(t, "EXACT_OUTPUT", body.TradeType)
		if assert.Len(t, body.Txs, 1) {
			assert.Equal(t, "0x0102", body.Txs[0].Data)
		}

		w.Write([]byte(relayQuoteJSON))
	}))
	defer server.Close()

	client := NewRelayClient(&RelayConfig{URL: server.URL})
	quote, err := client.Quote(context.Background(), relay.QuoteRequest{
		Origin:      intents.NetworkZora,
		Destination: intents.NetworkBase,
		Depositor:   "0x5555555555555555555555555555555555555555",
		Recipient:   "0x9876543210987654321098765432109876543210",
		DestinationCall: relay.Call{
			To:    "0x1234567890123456789012345678901234567890",
			Data:  []byte{0x01, 0x02},
			Value: big.NewInt(1_000_000_000_000_000),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "0xa5f565650890fba1824ee0f21ebbbf660a179934", quote.Call.To)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, quote.Call.Data)
	assert.Equal(t, "1050000000000000", quote.Call.Value.String())
	assert.Equal(t, "50000000000000", quote.FeeValue.String())
	assert.Equal(t, "1000000000000000", quote.AmountOut.String())
	assert.Equal(t, time.Unix(1900000000, 0), quote.ExpiresAt)
}

func TestRelayClientQuoteErrors(t *testing.T) {
	ctx := context.Background()
	req := relay.QuoteRequest{Origin: intents.NetworkZora, Destination: intents.NetworkBase}

	t.Run("Service error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"amount too low"}`))
		}))
		defer server.Close()

		_, err := NewRelayClient(&RelayConfig{URL: server.URL}).Quote(ctx, req)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Contains(t, statusErr.Body, "amount too low")
	})

	t.Run("No deposit step", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"steps": []}`))
		}))
		defer server.Close()

		_, err := NewRelayClient(&RelayConfig{URL: server.URL}).Quote(ctx, req)
		assert.ErrorContains(t, err, "no deposit step")
	})

	t.Run("Bad origin", func(t *testing.T) {
		_, err := NewRelayClient(nil).Quote(ctx, relay.QuoteRequest{Origin: "solana:mainnet", Destination: intents.NetworkBase})
		assert.Error(t, err)
	})
}

func TestRelayClientDefaultExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"steps": [{"items": [{"data": {"to": "0xa5f565650890fba1824ee0f21ebbbf660a179934", "value": "10"}}]}]}`))
	}))
	defer server.Close()

	now := time.Unix(1_700_000_000, 0)
	client := NewRelayClient(&RelayConfig{URL: server.URL, QuoteTTL: time.Minute})
	client.now = func() time.Time { return now }

	quote, err := client.Quote(context.Background(), relay.QuoteRequest{Origin: intents.NetworkZora, Destination: intents.NetworkBase})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), quote.ExpiresAt)
	assert.Empty(t, quote.Call.Data)
	assert.Equal(t, "0", quote.AmountOut.String())
}
