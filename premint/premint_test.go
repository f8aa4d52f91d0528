package premint_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
	"github.com/mintkit/intents/go/premint"
	evmsigners "github.com/mintkit/intents/go/signers/evm"
	"github.com/mintkit/intents/go/storage"
)

var (
	chainID       = big.NewInt(999999999)
	collectionHex = "0x1234567890123456789012345678901234567890"
	collectorHex  = "0x9876543210987654321098765432109876543210"
)

type revertError struct{}

func (revertError) Error() string          { return "execution reverted" }
func (revertError) ErrorData() interface{} { return "0x" }

// fakeChain answers premint executor reads. Arguments are packed with the
// real ABI so encoding mistakes fail the test.
type fakeChain struct {
	mu         sync.Mutex
	executor   abi.ABI
	authorized map[common.Address]bool
	// mintFee nil means the executor predates the getter.
	mintFee *big.Int
	calls   map[string]int
}

func newFakeChain(t *testing.T) *fakeChain {
	parsed, err := abi.JSON(bytes.NewReader(premint.PremintExecutorABI))
	require.NoError(t, err)
	return &fakeChain{
		executor:   parsed,
		authorized: map[common.Address]bool{},
		calls:      map[string]int{},
	}
}

func (f *fakeChain) ReadContract(_ context.Context, address string, _ []byte, fn string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[fn]++

	packed, err := f.executor.Pack(fn, args...)
	if err != nil {
		return nil, err
	}

	switch fn {
	case "getContractAddress", "getContractWithAdditionalAdminsAddress":
		salt := crypto.Keccak256Hash(packed[4:])
		return crypto.CreateAddress2(common.HexToAddress(address), salt, crypto.Keccak256([]byte("collection"))), nil
	case "isAuthorizedToCreatePremintWithAdditionalAdmins":
		return f.authorized[args[0].(common.Address)], nil
	case "mintFee":
		if f.mintFee == nil {
			return nil, revertError{}
		}
		return new(big.Int).Set(f.mintFee), nil
	}
	return nil, nil
}

func (f *fakeChain) callCount(fn string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[fn]
}

// countingStore records posts reaching the underlying store.
type countingStore struct {
	*storage.MemoryStore
	posts int
}

func (s *countingStore) PostSignature(ctx context.Context, p premint.SignedPremint) error {
	s.posts++
	return s.MemoryStore.PostSignature(ctx, p)
}

func newSigner(t *testing.T) *evmsigners.ClientSigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return evmsigners.NewClientSigner(key)
}

func v2Config(price int64) premint.TokenConfigV2 {
	return premint.TokenConfigV2{
		TokenURI:            "ipfs://bafy-token",
		MaxSupply:           big.NewInt(1000),
		RoyaltyBPS:          500,
		PayoutRecipient:     collectorHex,
		MaxTokensPerAddress: 10,
		PricePerToken:       big.NewInt(price),
		MintDuration:        7 * 24 * 3600,
		FixedPriceMinter:    evm.FixedPriceMinterAddress,
	}
}

func testConfigs() map[premint.Version]premint.TokenConfig {
	return map[premint.Version]premint.TokenConfig{
		premint.V1: premint.TokenConfigV1{
			TokenURI:            "ipfs://bafy-v1",
			MaxSupply:           big.NewInt(100),
			MaxTokensPerAddress: 5,
			PricePerToken:       big.NewInt(1000),
			MintDuration:        3600,
			RoyaltyMintSchedule: 20,
			RoyaltyBPS:          250,
			RoyaltyRecipient:    collectorHex,
			FixedPriceMinter:    evm.FixedPriceMinterAddress,
		},
		premint.V2: v2Config(1000),
		premint.V3: premint.TokenConfigV3{
			TokenURI:           "ipfs://bafy-v3",
			MaxSupply:          big.NewInt(100),
			RoyaltyBPS:         250,
			PayoutRecipient:    collectorHex,
			Minter:             evm.FixedPriceMinterAddress,
			PremintSalesConfig: []byte{0x01, 0x02},
		},
	}
}

func TestTypedDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	signer := newSigner(t)

	for version, config := range testConfigs() {
		t.Run("Version "+string(version), func(t *testing.T) {
			p := premint.PremintConfig{TokenConfig: config, UID: 7, Version: 3}
			td, err := premint.TypedData(collectionHex, chainID, p)
			require.NoError(t, err)
			assert.Equal(t, "Preminter", td.Domain.Name)
			assert.Equal(t, string(version), td.Domain.Version)
			assert.Equal(t, "CreatorAttribution", td.PrimaryType)

			sig, err := evm.SignTypedData(ctx, signer, td)
			require.NoError(t, err)

			recovered, err := premint.RecoverSigner(chainID, premint.SignedPremint{
				CollectionAddress: collectionHex,
				Premint:           p,
				Signature:         evm.BytesToHex(sig),
			})
			require.NoError(t, err)
			assert.Equal(t, signer.Address(), recovered)
		})
	}
}

func TestTypedDataBindsEveryField(t *testing.T) {
	base := premint.PremintConfig{TokenConfig: v2Config(0), UID: 1}
	baseHash := hashOf(t, collectionHex, base)

	deleted := base
	deleted.Deleted = true
	superseded := base
	superseded.Version = 1

	assert.NotEqual(t, baseHash, hashOf(t, collectionHex, deleted), "deleted flag must be signed")
	assert.NotEqual(t, baseHash, hashOf(t, collectionHex, superseded), "version must be signed")
	assert.NotEqual(t, baseHash, hashOf(t, collectorHex, base), "collection must be the verifying contract")
}

func hashOf(t *testing.T, collection string, p premint.PremintConfig) string {
	t.Helper()
	td, err := premint.TypedData(collection, chainID, p)
	require.NoError(t, err)
	h, err := evm.HashTypedData(td)
	require.NoError(t, err)
	return evm.BytesToHex(h)
}

func TestPremintConfigJSON(t *testing.T) {
	for version, config := range testConfigs() {
		p := premint.PremintConfig{TokenConfig: config, UID: 3, Version: 1}
		raw, err := json.Marshal(p)
		require.NoError(t, err)

		var decoded premint.PremintConfig
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, version, decoded.ConfigVersion())
		assert.Equal(t, hashOf(t, collectionHex, p), hashOf(t, collectionHex, decoded))
	}

	var decoded premint.PremintConfig
	err := json.Unmarshal([]byte(`{"premintConfigVersion":"9","tokenConfig":{}}`), &decoded)
	assert.Error(t, err)
}

func TestResolveCollectionAddress(t *testing.T) {
	ctx := context.Background()
	config := premint.CollectionConfig{
		ContractAdmin: collectorHex,
		ContractURI:   "ipfs://contract",
		ContractName:  "Testnet Collection",
	}

	t.Run("Same config resolves to the same address", func(t *testing.T) {
		chain := newFakeChain(t)
		a, err := premint.ResolveCollectionAddress(ctx, chain, evm.PremintExecutorAddress, config)
		require.NoError(t, err)
		b, err := premint.ResolveCollectionAddress(ctx, chain, evm.PremintExecutorAddress, config)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Equal(t, 2, chain.callCount("getContractAddress"))
	})

	t.Run("Any field change moves the address", func(t *testing.T) {
		chain := newFakeChain(t)
		base, err := premint.ResolveCollectionAddress(ctx, chain, evm.PremintExecutorAddress, config)
		require.NoError(t, err)

		variants := map[string]premint.CollectionConfig{}
		admin := config
		admin.ContractAdmin = collectionHex
		variants["admin"] = admin
		name := config
		name.ContractName = "Other"
		variants["name"] = name
		uri := config
		uri.ContractURI = "ipfs://other"
		variants["uri"] = uri

		for field, variant := range variants {
			addr, err := premint.ResolveCollectionAddress(ctx, chain, evm.PremintExecutorAddress, variant)
			require.NoError(t, err)
			assert.NotEqual(t, base, addr, "changing %s must change the address", field)
		}
	})

	t.Run("Additional admins use the admins-aware factory read", func(t *testing.T) {
		chain := newFakeChain(t)
		withAdmins := config
		withAdmins.AdditionalAdmins = []string{collectionHex}
		_, err := premint.ResolveCollectionAddress(ctx, chain, evm.PremintExecutorAddress, withAdmins)
		require.NoError(t, err)
		assert.Equal(t, 1, chain.callCount("getContractWithAdditionalAdminsAddress"))
	})

	t.Run("Known address passes through without a read", func(t *testing.T) {
		chain := newFakeChain(t)
		addr, err := premint.ResolveCollectionAddress(ctx, chain, evm.PremintExecutorAddress,
			premint.CollectionAddress("0x1234567890123456789012345678901234567890"))
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(collectionHex).Hex(), addr)
		assert.Empty(t, chain.calls)
	})

	t.Run("Invalid address is rejected", func(t *testing.T) {
		_, err := premint.ResolveCollectionAddress(ctx, newFakeChain(t), evm.PremintExecutorAddress,
			premint.CollectionAddress("nope"))
		assert.ErrorIs(t, err, intents.ErrInvalidInput)
	})
}

func TestCollectValue(t *testing.T) {
	fee := big.NewInt(777000000000000)

	assert.Equal(t, "1554000000000000", premint.CollectValue(fee, big.NewInt(0), 2).String())
	assert.Equal(t, "101554000000000000", premint.CollectValue(fee, big.NewInt(50000000000000000), 2).String())
}

func storedPremint(t *testing.T, config premint.TokenConfig) premint.SignedPremint {
	t.Helper()
	p := premint.PremintConfig{TokenConfig: config, UID: 1}
	td, err := premint.TypedData(collectionHex, chainID, p)
	require.NoError(t, err)
	sig, err := evm.SignTypedData(context.Background(), newSigner(t), td)
	require.NoError(t, err)
	return premint.SignedPremint{
		Network:           intents.NetworkZoraSepolia,
		CollectionAddress: collectionHex,
		Collection: &premint.ContractCreationConfig{
			ContractAdmin: collectorHex,
			ContractURI:   "ipfs://contract",
			ContractName:  "Testnet Collection",
		},
		Premint:   p,
		Signature: evm.BytesToHex(sig),
	}
}

func TestBuildCollectCall(t *testing.T) {
	ctx := context.Background()

	t.Run("Builds premint call with defaults", func(t *testing.T) {
		chain := newFakeChain(t)
		chain.mintFee = big.NewInt(777000000000000)
		sp := storedPremint(t, v2Config(50000000000000000))

		call, err := premint.BuildCollectCall(ctx, chain, evm.PremintExecutorAddress, sp, premint.CollectParams{
			Minter:   collectorHex,
			Quantity: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, "premint", call.FunctionName)
		assert.Equal(t, "101554000000000000", call.Value.String())

		args := call.Args[5].(premint.MintArguments)
		assert.Equal(t, common.HexToAddress(collectorHex), args.MintRecipient)
		assert.Equal(t, []common.Address{{}}, args.MintRewardsRecipients)
		assert.Equal(t, common.HexToAddress(collectorHex), call.Args[6])

		_, err = chain.executor.Pack(call.FunctionName, call.Args...)
		require.NoError(t, err, "call arguments must pack against the executor ABI")
	})

	t.Run("Overrides recipient referral and first minter", func(t *testing.T) {
		chain := newFakeChain(t)
		chain.mintFee = big.NewInt(1)
		referral := "0x0000000000000000000000000000000000000abc"
		call, err := premint.BuildCollectCall(ctx, chain, evm.PremintExecutorAddress, storedPremint(t, v2Config(0)), premint.CollectParams{
			Minter:        collectorHex,
			Quantity:      1,
			MintRecipient: collectionHex,
			MintReferral:  referral,
			FirstMinter:   referral,
		})
		require.NoError(t, err)

		args := call.Args[5].(premint.MintArguments)
		assert.Equal(t, common.HexToAddress(collectionHex), args.MintRecipient)
		assert.Equal(t, []common.Address{common.HexToAddress(referral)}, args.MintRewardsRecipients)
		assert.Equal(t, common.HexToAddress(referral), call.Args[6])
	})

	t.Run("Missing fee getter falls back to default fee", func(t *testing.T) {
		chain := newFakeChain(t)
		call, err := premint.BuildCollectCall(ctx, chain, evm.PremintExecutorAddress, storedPremint(t, v2Config(0)), premint.CollectParams{
			Minter:   collectorHex,
			Quantity: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, "1554000000000000", call.Value.String())
		assert.Equal(t, evm.DefaultMintFee.String(), call.MintFee.String())
	})

	t.Run("Fee is read on every build", func(t *testing.T) {
		chain := newFakeChain(t)
		chain.mintFee = big.NewInt(100)
		sp := storedPremint(t, v2Config(0))
		params := premint.CollectParams{Minter: collectorHex, Quantity: 1}

		first, err := premint.BuildCollectCall(ctx, chain, evm.PremintExecutorAddress, sp, params)
		require.NoError(t, err)
		chain.mintFee = big.NewInt(200)
		second, err := premint.BuildCollectCall(ctx, chain, evm.PremintExecutorAddress, sp, params)
		require.NoError(t, err)

		assert.Equal(t, "100", first.Value.String())
		assert.Equal(t, "200", second.Value.String())
		assert.Equal(t, 2, chain.callCount("mintFee"))
	})

	t.Run("Input validation happens before any read", func(t *testing.T) {
		cases := []struct {
			name    string
			premint premint.SignedPremint
			params  premint.CollectParams
			want    error
		}{
			{"zero quantity", storedPremint(t, v2Config(0)), premint.CollectParams{Minter: collectorHex}, intents.ErrInvalidQuantity},
			{"missing minter", storedPremint(t, v2Config(0)), premint.CollectParams{Quantity: 1}, intents.ErrMissingAccount},
			{"v3 config", storedPremint(t, testConfigs()[premint.V3]), premint.CollectParams{Minter: collectorHex, Quantity: 1}, intents.ErrUnsupportedPremintVersion},
		}
		for _, tc := range cases {
			chain := newFakeChain(t)
			_, err := premint.BuildCollectCall(ctx, chain, evm.PremintExecutorAddress, tc.premint, tc.params)
			assert.ErrorIs(t, err, tc.want, tc.name)
			assert.Empty(t, chain.calls, tc.name)
		}
	})
}

func newManager(t *testing.T, chain *fakeChain, store premint.AttestationStore) *premint.Manager {
	t.Helper()
	m, err := premint.NewManager(intents.NetworkZoraSepolia, store, chain)
	require.NoError(t, err)
	return m
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain(t)
	store := &countingStore{MemoryStore: storage.NewMemoryStore()}
	manager := newManager(t, chain, store)

	creator := newSigner(t)
	chain.authorized[common.HexToAddress(creator.Address())] = true

	uid := uint32(105)
	created, err := manager.Create(ctx, premint.CreateParams{
		Collection: premint.CollectionConfig{
			ContractAdmin: creator.Address(),
			ContractURI:   "ipfs://contract",
			ContractName:  "Lifecycle",
		},
		TokenConfig:    v2Config(0),
		UID:            &uid,
		Signer:         creator,
		CheckSignature: true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), created.Premint.Version)
	assert.Equal(t, 1, chain.callCount("isAuthorizedToCreatePremintWithAdditionalAdmins"))

	collection := created.CollectionAddress
	fetched, err := manager.Get(ctx, collection, uid)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), fetched.Premint.Version)

	updated, err := manager.Update(ctx, premint.UpdateParams{
		Collection: collection,
		UID:        uid,
		Update: func(current premint.TokenConfig) (premint.TokenConfig, error) {
			c := current.(premint.TokenConfigV2)
			c.PricePerToken = big.NewInt(50000000000000000)
			return c, nil
		},
		Signer:         creator,
		CheckSignature: true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), updated.Premint.Version)

	fetched, err = manager.Get(ctx, collection, uid)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), fetched.Premint.Version)
	assert.Equal(t, "50000000000000000", fetched.Premint.TokenConfig.Price().String())
	assert.NotNil(t, fetched.Collection, "creation config is carried across supersessions")

	t.Run("Republishing an older version is rejected", func(t *testing.T) {
		err := manager.Publish(ctx, *created, false)
		assert.ErrorIs(t, err, intents.ErrStaleVersion)
	})

	t.Run("Collect uses the authoritative version", func(t *testing.T) {
		chain.mintFee = big.NewInt(777000000000000)
		call, err := manager.BuildCollect(ctx, collection, uid, premint.CollectParams{Minter: collectorHex, Quantity: 2})
		require.NoError(t, err)
		assert.Equal(t, "101554000000000000", call.Value.String())
	})

	deleted, err := manager.Delete(ctx, premint.DeleteParams{
		Collection: collection,
		UID:        uid,
		Signer:     creator,
	})
	require.NoError(t, err)
	assert.True(t, deleted.Premint.Deleted)
	assert.Equal(t, uint32(2), deleted.Premint.Version)
	assert.Equal(t, "50000000000000000", deleted.Premint.TokenConfig.Price().String())

	t.Run("Deleted uid is terminal", func(t *testing.T) {
		_, err := manager.Update(ctx, premint.UpdateParams{
			Collection: collection,
			UID:        uid,
			Update:     func(c premint.TokenConfig) (premint.TokenConfig, error) { return c, nil },
			Signer:     creator,
		})
		assert.ErrorIs(t, err, intents.ErrPremintDeleted)

		resurrect := *updated
		resurrect.Premint.Version = 3
		td, err := premint.TypedData(collection, chainID, resurrect.Premint)
		require.NoError(t, err)
		sig, err := evm.SignTypedData(ctx, creator, td)
		require.NoError(t, err)
		resurrect.Signature = evm.BytesToHex(sig)

		assert.ErrorIs(t, manager.Publish(ctx, resurrect, true), intents.ErrPremintDeleted)

		_, err = manager.BuildCollect(ctx, collection, uid, premint.CollectParams{Minter: collectorHex, Quantity: 1})
		assert.ErrorIs(t, err, intents.ErrPremintDeleted)
	})
}

func TestManagerAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("Unauthorized signer never reaches the store", func(t *testing.T) {
		chain := newFakeChain(t)
		store := &countingStore{MemoryStore: storage.NewMemoryStore()}
		manager := newManager(t, chain, store)

		_, err := manager.Create(ctx, premint.CreateParams{
			Collection:     premint.CollectionAddress(collectionHex),
			TokenConfig:    v2Config(0),
			Signer:         newSigner(t),
			CheckSignature: true,
		})
		assert.ErrorIs(t, err, intents.ErrNotAuthorized)
		assert.Zero(t, store.posts)
	})

	t.Run("Opting out skips the on-chain check", func(t *testing.T) {
		chain := newFakeChain(t)
		store := &countingStore{MemoryStore: storage.NewMemoryStore()}
		manager := newManager(t, chain, store)

		created, err := manager.Create(ctx, premint.CreateParams{
			Collection:  premint.CollectionAddress(collectionHex),
			TokenConfig: v2Config(0),
			Signer:      newSigner(t),
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), created.Premint.UID, "uid comes from the store when not supplied")
		assert.Zero(t, chain.callCount("isAuthorizedToCreatePremintWithAdditionalAdmins"))
		assert.Equal(t, 1, store.posts)
	})

	t.Run("Signature over other data recovers a different signer", func(t *testing.T) {
		chain := newFakeChain(t)
		creator := newSigner(t)
		chain.authorized[common.HexToAddress(creator.Address())] = true
		manager := newManager(t, chain, storage.NewMemoryStore())

		sp := storedPremint(t, v2Config(0))
		td, err := premint.TypedData(collectionHex, chainID, sp.Premint)
		require.NoError(t, err)
		sig, err := evm.SignTypedData(ctx, creator, td)
		require.NoError(t, err)
		sp.Signature = evm.BytesToHex(sig)
		require.NoError(t, manager.Publish(ctx, sp, true))

		tampered := sp
		tampered.Premint.Version = 1
		tampered.Premint.TokenConfig = v2Config(1)
		assert.ErrorIs(t, manager.Publish(ctx, tampered, true), intents.ErrNotAuthorized)
	})
}
