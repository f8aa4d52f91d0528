package premint

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
)

// Manager owns the uid/version/deleted lifecycle of premints on one chain.
// State is always read fresh from the store before a version is computed;
// the verifying contract remains the final arbiter.
type Manager struct {
	network   intents.Network
	chainID   *big.Int
	store     AttestationStore
	reader    evm.ChainReader
	contracts evm.ContractAddresses
	logger    logrus.FieldLogger
}

type managerConfig struct {
	contracts *evm.ContractAddresses
	logger    logrus.FieldLogger
}

// Option configures a Manager.
type Option func(*managerConfig)

// WithContracts overrides the protocol deployment for the manager's network.
func WithContracts(contracts evm.ContractAddresses) Option {
	return func(c *managerConfig) {
		c.contracts = &contracts
	}
}

// WithLogger sets the logger. Default: logrus.StandardLogger().
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// NewManager creates a lifecycle manager for network backed by store.
func NewManager(network intents.Network, store AttestationStore, reader evm.ChainReader, opts ...Option) (*Manager, error) {
	cfg := &managerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	chainID, err := network.ChainID()
	if err != nil {
		return nil, err
	}
	if store == nil || reader == nil {
		return nil, fmt.Errorf("premint manager needs a store and a chain reader")
	}

	var contracts evm.ContractAddresses
	if cfg.contracts != nil {
		contracts = *cfg.contracts
	} else if contracts, err = evm.GetContracts(network); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Manager{
		network:   network,
		chainID:   chainID,
		store:     store,
		reader:    reader,
		contracts: contracts,
		logger:    logger.WithField("network", string(network)),
	}, nil
}

// Network returns the chain the manager operates on.
func (m *Manager) Network() intents.Network {
	return m.network
}

// CreateParams describes a new premint.
type CreateParams struct {
	Collection  CollectionRef
	TokenConfig TokenConfig
	// UID is taken from the store when nil.
	UID    *uint32
	Signer evm.ClientEvmSigner
	// CheckSignature verifies on-chain that the signer may create premints
	// on the collection before anything is published.
	CheckSignature bool
}

// UpdateParams supersedes the token config of an existing premint.
type UpdateParams struct {
	Collection string
	UID        uint32
	// Update receives the current token config and returns its replacement.
	Update         func(current TokenConfig) (TokenConfig, error)
	Signer         evm.ClientEvmSigner
	CheckSignature bool
}

// DeleteParams retires a premint uid.
type DeleteParams struct {
	Collection     string
	UID            uint32
	Signer         evm.ClientEvmSigner
	CheckSignature bool
}

// Create signs and publishes version 0 of a new premint.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*SignedPremint, error) {
	if params.Signer == nil {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "a signer is required to create a premint", nil)
	}
	if params.TokenConfig == nil {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "token config is required", nil)
	}

	collection, err := ResolveCollectionAddress(ctx, m.reader, m.contracts.PremintExecutor, params.Collection)
	if err != nil {
		return nil, err
	}

	var uid uint32
	if params.UID != nil {
		uid = *params.UID
	} else if uid, err = m.store.NextUID(ctx, m.network, collection); err != nil {
		return nil, fmt.Errorf("next uid: %w", err)
	}

	premint := PremintConfig{
		TokenConfig: params.TokenConfig,
		UID:         uid,
		Version:     0,
	}
	return m.signAndPublish(ctx, collection, collectionConfigOf(params.Collection), premint, params.Signer, params.CheckSignature)
}

// Update fetches the authoritative premint, applies the update and
// publishes it as version+1.
func (m *Manager) Update(ctx context.Context, params UpdateParams) (*SignedPremint, error) {
	if params.Update == nil {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "update function is required", nil)
	}

	current, err := m.current(ctx, params.Collection, params.UID, params.Signer)
	if err != nil {
		return nil, err
	}

	next, err := params.Update(current.Premint.TokenConfig)
	if err != nil {
		return nil, err
	}
	if next == nil || next.PremintVersion() != current.Premint.ConfigVersion() {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput,
			"updated token config must keep the premint config version", nil)
	}

	premint := PremintConfig{
		TokenConfig: next,
		UID:         current.Premint.UID,
		Version:     current.Premint.Version + 1,
	}
	return m.signAndPublish(ctx, current.CollectionAddress, current.Collection, premint, params.Signer, params.CheckSignature)
}

// Delete re-signs the authoritative config as version+1 with deleted set.
// If the store lags the chain the delete can be stale; that surfaces as a
// submission failure from the verifying side and is not retried here.
func (m *Manager) Delete(ctx context.Context, params DeleteParams) (*SignedPremint, error) {
	current, err := m.current(ctx, params.Collection, params.UID, params.Signer)
	if err != nil {
		return nil, err
	}

	premint := current.Premint
	premint.Version++
	premint.Deleted = true
	return m.signAndPublish(ctx, current.CollectionAddress, current.Collection, premint, params.Signer, params.CheckSignature)
}

// Get returns the authoritative premint for a collection and uid.
func (m *Manager) Get(ctx context.Context, collection string, uid uint32) (*SignedPremint, error) {
	if !evm.IsValidAddress(collection) {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput,
			fmt.Sprintf("invalid collection address %q", collection), nil)
	}
	return m.store.Get(ctx, m.network, evm.NormalizeAddress(collection), uid)
}

// Publish stores an already signed premint. The current authoritative
// version is read first: a version that does not supersede it, or any
// version after a delete, is rejected. With checkSignature the recovered
// signer must be authorized on-chain before anything is posted.
func (m *Manager) Publish(ctx context.Context, premint SignedPremint, checkSignature bool) error {
	if premint.Network == "" {
		premint.Network = m.network
	}
	if premint.Network != m.network {
		return intents.NewIntentError(intents.ErrCodeInvalidInput,
			fmt.Sprintf("premint is for %s, manager is for %s", premint.Network, m.network), nil)
	}
	if !evm.IsValidAddress(premint.CollectionAddress) {
		return intents.NewIntentError(intents.ErrCodeInvalidInput, "premint has no collection address", nil)
	}
	premint.CollectionAddress = evm.NormalizeAddress(premint.CollectionAddress)

	current, err := m.store.Get(ctx, m.network, premint.CollectionAddress, premint.Premint.UID)
	if err != nil && !errors.Is(err, intents.ErrNotFound) {
		return fmt.Errorf("fetch current premint: %w", err)
	}
	if err := CheckSupersession(current, premint.Premint); err != nil {
		return err
	}

	log := m.logger.WithFields(logrus.Fields{
		"collection": premint.CollectionAddress,
		"uid":        premint.Premint.UID,
		"version":    premint.Premint.Version,
		"deleted":    premint.Premint.Deleted,
	})

	if checkSignature {
		signer, err := RecoverSigner(m.chainID, premint)
		if err != nil {
			return err
		}
		if err := CheckAuthorization(ctx, m.reader, m.contracts.PremintExecutor, authorizationParams(signer, premint)); err != nil {
			log.WithField("signer", signer).Warn("premint signer not authorized")
			return err
		}
	}

	if err := m.store.PostSignature(ctx, premint); err != nil {
		return intents.WrapIntentError(intents.ErrCodeSubmissionFailed, "post premint signature", err)
	}
	log.Info("premint published")
	return nil
}

// BuildCollect fetches the authoritative premint and builds its collect
// call with a freshly read mint fee.
func (m *Manager) BuildCollect(ctx context.Context, collection string, uid uint32, params CollectParams) (*CollectCall, error) {
	premint, err := m.Get(ctx, collection, uid)
	if err != nil {
		return nil, err
	}
	if premint.Premint.Deleted {
		return nil, intents.NewIntentError(intents.ErrCodePremintDeleted,
			fmt.Sprintf("premint uid %d is deleted", uid), nil)
	}
	return BuildCollectCall(ctx, m.reader, m.contracts.PremintExecutor, *premint, params)
}

func (m *Manager) current(ctx context.Context, collection string, uid uint32, signer evm.ClientEvmSigner) (*SignedPremint, error) {
	if signer == nil {
		return nil, intents.NewIntentError(intents.ErrCodeMissingAccount, "a signer is required", nil)
	}
	current, err := m.Get(ctx, collection, uid)
	if err != nil {
		return nil, err
	}
	if current.Premint.Deleted {
		return nil, intents.NewIntentError(intents.ErrCodePremintDeleted,
			fmt.Sprintf("premint uid %d is deleted", uid), nil)
	}
	return current, nil
}

func (m *Manager) signAndPublish(
	ctx context.Context,
	collection string,
	collectionConfig *ContractCreationConfig,
	premint PremintConfig,
	signer evm.ClientEvmSigner,
	checkSignature bool,
) (*SignedPremint, error) {
	td, err := TypedData(collection, m.chainID, premint)
	if err != nil {
		return nil, err
	}
	signature, err := evm.SignTypedData(ctx, signer, td)
	if err != nil {
		return nil, fmt.Errorf("sign premint: %w", err)
	}

	signed := SignedPremint{
		Network:           m.network,
		CollectionAddress: evm.NormalizeAddress(collection),
		Collection:        collectionConfig,
		Premint:           premint,
		Signature:         evm.BytesToHex(signature),
	}
	if err := m.Publish(ctx, signed, checkSignature); err != nil {
		return nil, err
	}
	return &signed, nil
}
