// Command sponsor-relay runs the sponsored-call relay: it submits owner
// credit-token permits to the unwrapper with value promised by its executor key.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/mintkit/intents/go/config"
	"github.com/mintkit/intents/go/extensions/idempotency"
	"github.com/mintkit/intents/go/server"
	evmsigners "github.com/mintkit/intents/go/signers/evm"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("config error")
	}

	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("logLevel", cfg.LogLevel).Warn("unknown log level, using info")
	}

	contracts, err := cfg.Contracts.Resolve(cfg.Chain.Network)
	if err != nil {
		logger.WithError(err).Fatal("contracts error")
	}

	signer, err := evmsigners.NewClientSignerFromPrivateKey(cfg.Executor.PrivateKey)
	if err != nil {
		logger.WithError(err).Fatal("executor key error")
	}

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 15*time.Second)
	chain, err := evmsigners.NewChainClient(dialCtx, cfg.Chain.RPCURL, signer)
	cancelDial()
	if err != nil {
		logger.WithError(err).Fatal("rpc error")
	}
	defer chain.Close()

	expected, _ := cfg.Chain.Network.ChainID()
	if chain.ChainID().Cmp(expected) != 0 {
		logger.WithFields(logrus.Fields{
			"network": cfg.Chain.Network,
			"rpc":     chain.ChainID().String(),
		}).Fatal("rpc endpoint serves a different chain")
	}

	relay, err := server.New(server.Config{
		Network:        cfg.Chain.Network,
		Contracts:      contracts,
		Executor:       signer.Address(),
		Chain:          chain,
		Guard:          idempotency.NewGuard(idempotency.WithTTL(cfg.Idempotency.TTL)),
		Logger:         logger,
		ReceiptTimeout: cfg.Chain.ReceiptTimeout,
	})
	if err != nil {
		logger.WithError(err).Fatal("server error")
	}

	logger.WithFields(logrus.Fields{
		"network":   cfg.Chain.Network,
		"executor":  signer.Address(),
		"unwrapper": contracts.MintsEthUnwrapper,
	}).Info("starting sponsor relay")

	go func() {
		if err := relay.Start(cfg.Server.Addr()); err != nil {
			logger.WithError(err).Error("server stopped")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := relay.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("shutdown incomplete")
	}
}
