// Package storage provides premint attestation stores for self-hosted
// deployments and tests. Every store keeps only the authoritative
// (highest version) premint per collection and uid.
package storage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/premint"
)

type collectionKey struct {
	network    intents.Network
	collection string
}

type premintKey struct {
	collectionKey
	uid uint32
}

func keyOf(network intents.Network, collection string) collectionKey {
	return collectionKey{network: network, collection: strings.ToLower(collection)}
}

// MemoryStore is an in-process premint.AttestationStore.
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	premints map[premintKey]premint.SignedPremint
	nextUID  map[collectionKey]uint64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		premints: make(map[premintKey]premint.SignedPremint),
		nextUID:  make(map[collectionKey]uint64),
	}
}

// Get returns the authoritative premint.
func (s *MemoryStore) Get(_ context.Context, network intents.Network, collection string, uid uint32) (*premint.SignedPremint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.premints[premintKey{keyOf(network, collection), uid}]
	if !ok {
		return nil, notFound(network, collection, uid)
	}
	return &p, nil
}

// PostSignature stores p if it supersedes the current premint for its uid.
func (s *MemoryStore) PostSignature(_ context.Context, p premint.SignedPremint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := keyOf(p.Network, p.CollectionAddress)
	key := premintKey{ck, p.Premint.UID}

	var current *premint.SignedPremint
	if existing, ok := s.premints[key]; ok {
		current = &existing
	}
	if err := premint.CheckSupersession(current, p.Premint); err != nil {
		return err
	}

	s.premints[key] = p
	if next := uint64(p.Premint.UID) + 1; next > s.nextUID[ck] {
		s.nextUID[ck] = next
	}
	return nil
}

// NextUID reserves and returns an unused uid. Uids start at 1.
func (s *MemoryStore) NextUID(_ context.Context, network intents.Network, collection string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := keyOf(network, collection)
	uid := s.nextUID[ck]
	if uid == 0 {
		uid = 1
	}
	if uid > math.MaxUint32 {
		return 0, errUIDsExhausted(network, collection)
	}
	s.nextUID[ck] = uid + 1
	return uint32(uid), nil
}

func errUIDsExhausted(network intents.Network, collection string) error {
	return intents.NewIntentError(intents.ErrCodeInvalidInput,
		fmt.Sprintf("no uids left on %s for %s", network, collection),
		map[string]interface{}{"network": string(network), "collection": collection})
}

func notFound(network intents.Network, collection string, uid uint32) error {
	return intents.NewIntentError(intents.ErrCodeNotFound,
		fmt.Sprintf("no premint for %s uid %d on %s", collection, uid, network), nil)
}
