package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/extensions/idempotency"
	"github.com/mintkit/intents/go/mechanisms/evm"
	"github.com/mintkit/intents/go/mints"
)

// PermitRequest is the owner's signed batch permit. Integers are decimal
// strings and byte fields are 0x-prefixed hex.
type PermitRequest struct {
	Owner            string   `json:"owner" binding:"required"`
	To               string   `json:"to" binding:"required"`
	TokenIDs         []string `json:"tokenIds" binding:"required"`
	Quantities       []string `json:"quantities" binding:"required"`
	SafeTransferData string   `json:"safeTransferData"`
	Nonce            string   `json:"nonce" binding:"required"`
	Deadline         string   `json:"deadline" binding:"required"`
}

// SponsoredCallRequest is the executor's promise.
type SponsoredCallRequest struct {
	SafeTransferData string `json:"safeTransferData"`
	AdditionalValue  string `json:"additionalValue" binding:"required"`
	Deadline         string `json:"deadline" binding:"required"`
}

// SubmitRequest is the body of POST /v1/sponsored-calls.
type SubmitRequest struct {
	Permit           PermitRequest        `json:"permit"`
	PermitSignature  string               `json:"permitSignature" binding:"required"`
	SponsoredCall    SponsoredCallRequest `json:"sponsoredCall"`
	SponsorSignature string               `json:"sponsorSignature" binding:"required"`
}

// SubmitResponse reports the mined outcome of a submission.
type SubmitResponse struct {
	ID              string `json:"id"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	Success         bool   `json:"success"`
	FailureReason   string `json:"failureReason,omitempty"`
	Deduplicated    bool   `json:"deduplicated"`
}

// ErrorResponse is returned for every rejected request.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (s *Server) handleSponsoredCall(c *gin.Context) {
	log := s.logger.WithField("requestId", c.GetString("requestID"))

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.incCall("rejected")
		s.writeError(c, intents.WrapIntentError(intents.ErrCodeInvalidInput, "invalid request body", err))
		return
	}

	submission, err := req.toSubmission()
	if err != nil {
		s.metrics.incCall("rejected")
		s.writeError(c, err)
		return
	}

	key := append(append([]byte{}, submission.PermitSignature...), submission.SponsorSignature...)

	err = mints.ValidateSponsoredCall(mints.SponsorValidation{
		Contracts: s.contracts,
		ChainID:   s.chainID,
		Executor:  s.executor,
		Now:       s.now(),
	}, submission)
	if errors.Is(err, intents.ErrDeadlineExpired) {
		// a retry of a submission that was mined before its deadline
		if cached := s.guard.Cached(key); cached != nil {
			s.metrics.incCall("deduplicated")
			c.JSON(http.StatusOK, toResponse(cached, true))
			return
		}
	}
	if err != nil {
		log.WithError(err).WithField("owner", submission.Permit.Owner).Warn("sponsored call rejected")
		s.metrics.incCall("rejected")
		s.writeError(c, err)
		return
	}

	result, deduplicated, err := s.guard.Do(c.Request.Context(), key, func(ctx context.Context) (*idempotency.Result, error) {
		return s.submit(ctx, log, submission)
	})
	if err != nil {
		s.metrics.incCall("failed")
		s.writeError(c, err)
		return
	}

	status := "mined"
	if deduplicated {
		status = "deduplicated"
	} else if !result.Success {
		status = "reverted"
	}
	s.metrics.incCall(status)

	c.JSON(http.StatusOK, toResponse(result, deduplicated))
}

func toResponse(result *idempotency.Result, deduplicated bool) SubmitResponse {
	return SubmitResponse{
		ID:              result.ID,
		TransactionHash: result.TransactionHash,
		BlockNumber:     result.BlockNumber,
		Success:         result.Success,
		FailureReason:   result.FailureReason,
		Deduplicated:    deduplicated,
	}
}

// submit sends the sponsored call and waits for it to be mined. A simulated
// CallFailed revert is decoded into the inner contract error.
func (s *Server) submit(ctx context.Context, log logrus.FieldLogger, submission mints.SponsoredSubmission) (*idempotency.Result, error) {
	start := time.Now()
	call := mints.BuildSponsoredCall(s.contracts.MintsEthUnwrapper, submission)

	txHash, err := s.chain.SimulateAndSend(ctx, call)
	if err != nil {
		if revertData, ok := evm.RevertDataFromError(err); ok {
			if inner, decodeErr := mints.DecodeCallFailed(revertData); decodeErr == nil {
				log.WithField("revert", inner.String()).Warn("sponsored call reverted in simulation")
				return nil, intents.NewIntentError(intents.ErrCodeSubmissionFailed,
					fmt.Sprintf("forwarded call reverted: %s", inner),
					map[string]interface{}{"reason": inner.String(), "revertData": evm.BytesToHex(inner.Data)})
			}
		}
		log.WithError(err).Error("sponsored call submission failed")
		return nil, intents.WrapIntentError(intents.ErrCodeSubmissionFailed, "submission failed", err)
	}
	log = log.WithField("txHash", txHash)
	log.Info("sponsored call submitted")

	waitCtx, cancel := context.WithTimeout(ctx, s.receiptTimeout)
	defer cancel()
	receipt, err := s.chain.WaitForTransactionReceipt(waitCtx, txHash)
	if err != nil {
		log.WithError(err).Error("waiting for receipt failed")
		return nil, intents.NewIntentError(intents.ErrCodeSubmissionFailed,
			fmt.Sprintf("transaction %s not confirmed: %v", txHash, err),
			map[string]interface{}{"transactionHash": txHash})
	}
	s.metrics.observeSubmission(time.Since(start).Seconds())

	result := &idempotency.Result{
		TransactionHash: txHash,
		BlockNumber:     receipt.BlockNumber,
		Success:         receipt.Status == 1,
	}
	if !result.Success {
		result.FailureReason = "transaction reverted"
		log.WithField("block", receipt.BlockNumber).Warn("sponsored call reverted on chain")
		return result, nil
	}

	if v := submission.Sponsor.AdditionalValue; v != nil && v.Sign() > 0 {
		f, _ := new(big.Float).SetInt(v).Float64()
		s.metrics.addValue(f)
	}
	log.WithField("block", receipt.BlockNumber).Info("sponsored call mined")
	return result, nil
}

func (s *Server) writeError(c *gin.Context, err error) {
	resp := ErrorResponse{Code: intents.ErrCodeSubmissionFailed, Message: err.Error()}
	var ie *intents.IntentError
	if errors.As(err, &ie) {
		resp.Code = ie.Code
		resp.Details = ie.Details
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		resp.Code = "canceled"
	}
	c.JSON(statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, intents.ErrInvalidInput), errors.Is(err, intents.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, intents.ErrSignerMismatch), errors.Is(err, intents.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, intents.ErrDeadlineExpired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, intents.ErrSubmissionFailed):
		var ie *intents.IntentError
		if errors.As(err, &ie) && ie.Details["reason"] != nil {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (r SubmitRequest) toSubmission() (mints.SponsoredSubmission, error) {
	permit, err := r.Permit.toPermit()
	if err != nil {
		return mints.SponsoredSubmission{}, err
	}
	sponsor, err := r.SponsoredCall.toSponsoredCall()
	if err != nil {
		return mints.SponsoredSubmission{}, err
	}
	permitSig, err := decodeHexField("permitSignature", r.PermitSignature)
	if err != nil {
		return mints.SponsoredSubmission{}, err
	}
	sponsorSig, err := decodeHexField("sponsorSignature", r.SponsorSignature)
	if err != nil {
		return mints.SponsoredSubmission{}, err
	}
	return mints.SponsoredSubmission{
		Permit:           permit,
		PermitSignature:  permitSig,
		Sponsor:          sponsor,
		SponsorSignature: sponsorSig,
	}, nil
}

func (p PermitRequest) toPermit() (mints.PermitSafeTransferBatch, error) {
	if !evm.IsValidAddress(p.Owner) || !evm.IsValidAddress(p.To) {
		return mints.PermitSafeTransferBatch{}, invalidField("permit.owner/to", "must be addresses")
	}
	if len(p.TokenIDs) != len(p.Quantities) {
		return mints.PermitSafeTransferBatch{}, intents.NewIntentError(intents.ErrCodeInvalidQuantity,
			"tokenIds and quantities differ in length", nil)
	}
	tokenIDs, err := parseBigs("permit.tokenIds", p.TokenIDs)
	if err != nil {
		return mints.PermitSafeTransferBatch{}, err
	}
	quantities, err := parseBigs("permit.quantities", p.Quantities)
	if err != nil {
		return mints.PermitSafeTransferBatch{}, err
	}
	data, err := decodeHexField("permit.safeTransferData", p.SafeTransferData)
	if err != nil {
		return mints.PermitSafeTransferBatch{}, err
	}
	nonce, err := parseBig("permit.nonce", p.Nonce)
	if err != nil {
		return mints.PermitSafeTransferBatch{}, err
	}
	deadline, err := parseBig("permit.deadline", p.Deadline)
	if err != nil {
		return mints.PermitSafeTransferBatch{}, err
	}
	return mints.PermitSafeTransferBatch{
		Owner:            p.Owner,
		To:               p.To,
		TokenIDs:         tokenIDs,
		Quantities:       quantities,
		SafeTransferData: data,
		Nonce:            nonce,
		Deadline:         deadline,
	}, nil
}

func (r SponsoredCallRequest) toSponsoredCall() (mints.SponsoredCall, error) {
	data, err := decodeHexField("sponsoredCall.safeTransferData", r.SafeTransferData)
	if err != nil {
		return mints.SponsoredCall{}, err
	}
	value, err := parseBig("sponsoredCall.additionalValue", r.AdditionalValue)
	if err != nil {
		return mints.SponsoredCall{}, err
	}
	deadline, err := parseBig("sponsoredCall.deadline", r.Deadline)
	if err != nil {
		return mints.SponsoredCall{}, err
	}
	return mints.SponsoredCall{SafeTransferData: data, AdditionalValue: value, Deadline: deadline}, nil
}

func parseBig(field, s string) (*big.Int, error) {
	v, err := evm.ParseBigInt(s)
	if err != nil || v.Sign() < 0 {
		return nil, invalidField(field, "must be a non-negative decimal integer")
	}
	return v, nil
}

func parseBigs(field string, values []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, s := range values {
		v, err := parseBig(fmt.Sprintf("%s[%d]", field, i), s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeHexField(field, s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	b, err := evm.HexToBytes(s)
	if err != nil {
		return nil, invalidField(field, "must be hex")
	}
	return b, nil
}

func invalidField(field, problem string) error {
	return intents.NewIntentError(intents.ErrCodeInvalidInput,
		fmt.Sprintf("%s %s", field, problem),
		map[string]interface{}{"field": field})
}
