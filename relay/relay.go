// Package relay funds cross-chain calls with credit tokens: it fetches a
// bridge quote, sizes the executor top-up and builds the owner's unwrap
// permit, then re-checks the quote before submission.
package relay

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
	"github.com/mintkit/intents/go/mints"
)

// DefaultSlippageBps is the tolerance used when a caller passes none.
const DefaultSlippageBps = 100

// Call is a call to execute on the origin chain.
type Call struct {
	To    string   `json:"to"`
	Data  []byte   `json:"data"`
	Value *big.Int `json:"value"`
}

// QuoteRequest asks the bridging service how to deliver a call on the
// destination chain, funded from the origin chain.
type QuoteRequest struct {
	Origin      intents.Network `json:"origin"`
	Destination intents.Network `json:"destination"`
	// Depositor pays on the origin chain; the unwrapper when funded by
	// credit tokens.
	Depositor string `json:"depositor"`
	Recipient string `json:"recipient"`
	// DestinationCall runs on the destination chain once funds arrive.
	DestinationCall Call `json:"destinationCall"`
}

// Quote is the bridging service's answer.
type Quote struct {
	// Call is the origin-chain deposit, Call.Value being the total native
	// value it needs.
	Call Call `json:"call"`
	// FeeValue is the part of Call.Value kept by the bridge.
	FeeValue *big.Int `json:"feeValue"`
	// AmountOut is what arrives on the destination chain.
	AmountOut *big.Int  `json:"amountOut"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Quoter fetches bridge quotes.
type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// IsQuoteChangeExceedingSlippage reports whether a new quote delivers less
// than original by more than slippageBps basis points. Increases are never
// slippage.
func IsQuoteChangeExceedingSlippage(original, updated *big.Int, slippageBps int64) bool {
	if original == nil || updated == nil || original.Sign() <= 0 {
		return false
	}
	if updated.Cmp(original) >= 0 {
		return false
	}
	drop := new(big.Int).Sub(original, updated)
	drop.Mul(drop, big.NewInt(10_000))
	// compare drop/original > bps without truncating
	return drop.Cmp(new(big.Int).Mul(original, big.NewInt(slippageBps))) > 0
}

// Funder prepares credit-token funded bridge deposits.
type Funder struct {
	quoter    Quoter
	reader    evm.ChainReader
	network   intents.Network
	chainID   *big.Int
	contracts evm.ContractAddresses
	logger    logrus.FieldLogger
}

// NewFunder creates a funder for the origin network. The unwrapper address
// must be present in contracts.
func NewFunder(network intents.Network, contracts evm.ContractAddresses, quoter Quoter, reader evm.ChainReader, logger logrus.FieldLogger) (*Funder, error) {
	chainID, err := network.ChainID()
	if err != nil {
		return nil, err
	}
	if !evm.IsValidAddress(contracts.MintsEthUnwrapper) {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "unwrapper address is not configured", nil)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Funder{
		quoter:    quoter,
		reader:    reader,
		network:   network,
		chainID:   chainID,
		contracts: contracts,
		logger:    logger.WithField("component", "relay"),
	}, nil
}

// FundingParams describes a bridge deposit paid with credit tokens.
type FundingParams struct {
	Owner           string
	TokenIDs        []*big.Int
	Quantities      []*big.Int
	Destination     intents.Network
	Recipient       string
	DestinationCall Call
	Deadline        *big.Int
}

// FundingPlan is a prepared funding: the owner signs Permit, an executor
// promises TopUp.
type FundingPlan struct {
	Quote           *Quote
	Request         QuoteRequest
	Permit          mints.PermitSafeTransferBatch
	TypedData       evm.TypedData
	RedeemableValue *big.Int
	// TopUp is the native value the executor must add so the deposit is
	// fully funded.
	TopUp *big.Int
}

// PrepareBridgeFunding fetches a quote, values the credit tokens and builds
// the unwrap permit for the owner to sign.
func (f *Funder) PrepareBridgeFunding(ctx context.Context, params FundingParams) (*FundingPlan, error) {
	if !evm.IsValidAddress(params.Owner) {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "owner address is required", nil)
	}

	req := QuoteRequest{
		Origin:          f.network,
		Destination:     params.Destination,
		Depositor:       f.contracts.MintsEthUnwrapper,
		Recipient:       params.Recipient,
		DestinationCall: params.DestinationCall,
	}
	quote, err := f.quoter.Quote(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bridge quote: %w", err)
	}

	redeemable, err := mints.RedeemableValue(ctx, f.reader, f.contracts.Mints1155, params.TokenIDs, params.Quantities)
	if err != nil {
		return nil, err
	}

	required := new(big.Int)
	if quote.Call.Value != nil {
		required.Set(quote.Call.Value)
	}
	topUp := new(big.Int).Sub(required, redeemable)
	if topUp.Sign() < 0 {
		topUp.SetInt64(0)
	}

	permit, err := mints.BuildUnwrapAndForwardPermit(mints.UnwrapPermitParams{
		Owner:      params.Owner,
		Unwrapper:  f.contracts.MintsEthUnwrapper,
		TokenIDs:   params.TokenIDs,
		Quantities: params.Quantities,
		Target:     quote.Call.To,
		CallData:   quote.Call.Data,
		Deadline:   params.Deadline,
	})
	if err != nil {
		return nil, err
	}
	td, err := mints.PermitTypedData(f.contracts.Mints1155, f.chainID, permit)
	if err != nil {
		return nil, err
	}

	f.logger.WithFields(logrus.Fields{
		"owner":       params.Owner,
		"destination": string(params.Destination),
		"required":    required.String(),
		"redeemable":  redeemable.String(),
		"topUp":       topUp.String(),
	}).Info("bridge funding prepared")

	return &FundingPlan{
		Quote:           quote,
		Request:         req,
		Permit:          permit,
		TypedData:       td,
		RedeemableValue: redeemable,
		TopUp:           topUp,
	}, nil
}

// RequoteCheck re-fetches the plan's quote and fails with a
// QuoteSlippageError when the delivered amount dropped beyond
// slippageBps. The fresh quote is returned either way so the caller can
// rebuild the plan.
func (f *Funder) RequoteCheck(ctx context.Context, plan *FundingPlan, slippageBps int64) (*Quote, error) {
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}
	fresh, err := f.quoter.Quote(ctx, plan.Request)
	if err != nil {
		return nil, fmt.Errorf("bridge requote: %w", err)
	}
	if IsQuoteChangeExceedingSlippage(plan.Quote.AmountOut, fresh.AmountOut, slippageBps) {
		return fresh, &intents.QuoteSlippageError{
			Original:    plan.Quote.AmountOut,
			New:         fresh.AmountOut,
			SlippageBps: slippageBps,
		}
	}
	return fresh, nil
}
