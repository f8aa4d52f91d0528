// Package server is the sponsored relay: it accepts an owner's credit-token
// permit together with an executor promise to attach additional value,
// validates both signatures and submits the permit to the unwrapper once.
package server

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/extensions/idempotency"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

const defaultReceiptTimeout = 2 * time.Minute

// Config wires the relay to its network and collaborators.
type Config struct {
	Network   intents.Network
	Contracts evm.ContractAddresses
	// Executor is the address whose sponsored-call promises are honored;
	// normally the address the relay submits from.
	Executor string
	Chain    evm.ChainWriter
	// Guard deduplicates submissions (optional, defaults to an in-memory guard)
	Guard          *idempotency.Guard
	Logger         logrus.FieldLogger
	ReceiptTimeout time.Duration
}

// Pinger is implemented by chain clients that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	network        intents.Network
	chainID        *big.Int
	contracts      evm.ContractAddresses
	executor       string
	chain          evm.ChainWriter
	guard          *idempotency.Guard
	logger         logrus.FieldLogger
	metrics        *metricsRegistry
	receiptTimeout time.Duration
	now            func() time.Time
	engine         *gin.Engine

	mu         sync.Mutex
	httpServer *http.Server
}

// New builds the relay and its routes.
func New(cfg Config) (*Server, error) {
	chainID, err := cfg.Network.ChainID()
	if err != nil {
		return nil, err
	}
	if !evm.IsValidAddress(cfg.Contracts.MintsEthUnwrapper) {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "unwrapper address is not configured", nil)
	}
	if !evm.IsValidAddress(cfg.Executor) {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "executor address is required", nil)
	}
	if cfg.Chain == nil {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "a chain writer is required", nil)
	}

	guard := cfg.Guard
	if guard == nil {
		guard = idempotency.NewGuard()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timeout := cfg.ReceiptTimeout
	if timeout == 0 {
		timeout = defaultReceiptTimeout
	}

	var inFlight func() float64
	if store, ok := guard.Store().(*idempotency.InMemoryStore); ok {
		inFlight = func() float64 { return float64(store.InFlight()) }
	}

	s := &Server{
		network:        cfg.Network,
		chainID:        chainID,
		contracts:      cfg.Contracts,
		executor:       evm.NormalizeAddress(cfg.Executor),
		chain:          cfg.Chain,
		guard:          guard,
		logger:         logger.WithField("component", "sponsor-relay"),
		metrics:        newMetricsRegistry(inFlight),
		receiptTimeout: timeout,
		now:            time.Now,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestID(), s.accessLog())
	engine.POST("/v1/sponsored-calls", s.handleSponsoredCall)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(s.metrics.handler()))
	s.engine = engine

	return s, nil
}

// Handler returns the relay's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.WithField("addr", addr).Info("sponsor relay listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"requestId": c.GetString("requestID"),
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latencyMs": time.Since(start).Milliseconds(),
		}).Debug("request served")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"network":  string(s.network),
		"executor": s.executor,
	}

	pinger, ok := s.chain.(Pinger)
	if !ok {
		c.JSON(http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	start := time.Now()
	if err := pinger.Ping(ctx); err != nil {
		resp["status"] = "degraded"
		resp["rpc"] = gin.H{"connected": false, "error": err.Error()}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp["rpc"] = gin.H{
		"connected": true,
		"latencyMs": float64(time.Since(start).Microseconds()) / 1000.0,
	}
	c.JSON(http.StatusOK, resp)
}
