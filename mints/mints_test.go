package mints

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intents "github.com/mintkit/intents/go"
	"github.com/mintkit/intents/go/mechanisms/evm"
	"github.com/mintkit/intents/go/premint"
	evmsigners "github.com/mintkit/intents/go/signers/evm"
)

var (
	testChainID   = big.NewInt(7777777)
	testNow       = time.Unix(1_700_000_000, 0)
	testDeadline  = big.NewInt(1_700_000_600)
	testUnwrapper = "0x5555555555555555555555555555555555555555"
	testTarget    = "0x6666666666666666666666666666666666666666"
	testContracts = evm.ContractAddresses{
		PremintExecutor:   evm.PremintExecutorAddress,
		FixedPriceMinter:  evm.FixedPriceMinterAddress,
		Mints1155:         evm.Mints1155Address,
		MintsManager:      evm.MintsManagerAddress,
		MintsEthUnwrapper: testUnwrapper,
	}
)

func newSigner(t *testing.T) *evmsigners.ClientSigner {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return evmsigners.NewClientSigner(key)
}

// recordingSigner fails the test if it is ever asked to sign.
type recordingSigner struct {
	address string
	calls   int
}

func (s *recordingSigner) Address() string { return s.address }
func (s *recordingSigner) SignTypedData(context.Context, evm.TypedDataDomain, map[string][]evm.TypedDataField, string, map[string]interface{}) ([]byte, error) {
	s.calls++
	return nil, errors.New("should not sign")
}

func bigs(values ...int64) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestPermitSignAndVerify(t *testing.T) {
	ctx := context.Background()
	owner := newSigner(t)

	permits := map[string]Permit{
		"single": PermitSafeTransfer{
			Owner: owner.Address(), To: evm.MintsManagerAddress,
			TokenID: big.NewInt(1), Quantity: big.NewInt(3),
			SafeTransferData: []byte{0xab}, Nonce: big.NewInt(9), Deadline: testDeadline,
		},
		"batch": PermitSafeTransferBatch{
			Owner: owner.Address(), To: evm.MintsManagerAddress,
			TokenIDs: bigs(1, 2), Quantities: bigs(3, 4),
			SafeTransferData: []byte{0xab}, Nonce: big.NewInt(9), Deadline: testDeadline,
		},
	}

	for name, permit := range permits {
		t.Run(name, func(t *testing.T) {
			sig, err := SignPermit(ctx, owner, evm.Mints1155Address, testChainID, permit, testNow)
			require.NoError(t, err)
			require.NoError(t, VerifyPermit(evm.Mints1155Address, testChainID, permit, sig, testNow))

			td, err := PermitTypedData(evm.Mints1155Address, testChainID, permit)
			require.NoError(t, err)
			assert.Equal(t, "Mints", td.Domain.Name)
			assert.Equal(t, permit.PrimaryType(), td.PrimaryType)

			err = VerifyPermit(evm.Mints1155Address, big.NewInt(8453), permit, sig, testNow)
			assert.ErrorIs(t, err, intents.ErrSignerMismatch, "signature must not verify on another chain")

			call := PermitCall(evm.Mints1155Address, permit, sig)
			_, err = mints1155ABI.Pack(call.FunctionName, call.Args...)
			require.NoError(t, err)
		})
	}

	t.Run("Tampered batch does not verify", func(t *testing.T) {
		permit := permits["batch"].(PermitSafeTransferBatch)
		sig, err := SignPermit(ctx, owner, evm.Mints1155Address, testChainID, permit, testNow)
		require.NoError(t, err)

		permit.Quantities = bigs(3, 5)
		err = VerifyPermit(evm.Mints1155Address, testChainID, permit, sig, testNow)
		assert.ErrorIs(t, err, intents.ErrSignerMismatch)
	})

	t.Run("Only the owner may sign", func(t *testing.T) {
		_, err := SignPermit(ctx, newSigner(t), evm.Mints1155Address, testChainID, permits["single"], testNow)
		assert.ErrorIs(t, err, intents.ErrSignerMismatch)
	})
}

func TestValidatePermitDeadline(t *testing.T) {
	now := time.Unix(1000, 0)

	assert.NoError(t, ValidatePermitDeadline(big.NewInt(1001), now))
	assert.ErrorIs(t, ValidatePermitDeadline(big.NewInt(1000), now), intents.ErrDeadlineExpired)
	assert.ErrorIs(t, ValidatePermitDeadline(big.NewInt(999), now), intents.ErrDeadlineExpired)
	assert.ErrorIs(t, ValidatePermitDeadline(nil, now), intents.ErrInvalidInput)

	t.Run("Expired permit never reaches the signer", func(t *testing.T) {
		signer := &recordingSigner{address: "0x9876543210987654321098765432109876543210"}
		permit := PermitSafeTransfer{
			Owner: signer.address, To: evm.MintsManagerAddress,
			TokenID: big.NewInt(1), Quantity: big.NewInt(1), Deadline: big.NewInt(1000),
		}
		_, err := SignPermit(context.Background(), signer, evm.Mints1155Address, testChainID, permit, now)
		assert.ErrorIs(t, err, intents.ErrDeadlineExpired)
		assert.Zero(t, signer.calls)
	})
}

func TestEncodeCollect(t *testing.T) {
	t.Run("Existing token", func(t *testing.T) {
		data, err := EncodeCollect(CollectToken{
			Collection:    "0x1234567890123456789012345678901234567890",
			TokenID:       big.NewInt(4),
			MintRecipient: "0x9876543210987654321098765432109876543210",
			MintComment:   "gm",
		})
		require.NoError(t, err)

		method := managerABI.Methods["collect"]
		assert.Equal(t, method.ID, data[:4])
		values, err := method.Inputs.Unpack(data[4:])
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(evm.FixedPriceMinterAddress), values[1])
		assert.Equal(t, "4", values[2].(*big.Int).String())
	})

	t.Run("Missing recipient is rejected", func(t *testing.T) {
		_, err := EncodeCollect(CollectToken{Collection: "0x1234567890123456789012345678901234567890", TokenID: big.NewInt(1)})
		assert.ErrorIs(t, err, intents.ErrMissingAccount)
	})

	t.Run("Premint v3 is rejected", func(t *testing.T) {
		_, err := EncodeCollect(CollectPremint{
			Premint: premint.SignedPremint{
				CollectionAddress: "0x1234567890123456789012345678901234567890",
				Premint:           premint.PremintConfig{TokenConfig: premint.TokenConfigV3{}},
			},
			Params: premint.CollectParams{Minter: "0x9876543210987654321098765432109876543210", Quantity: 1},
		})
		assert.ErrorIs(t, err, intents.ErrUnsupportedPremintVersion)
	})

	t.Run("Nil action is rejected", func(t *testing.T) {
		_, err := EncodeCollect(nil)
		assert.ErrorIs(t, err, intents.ErrInvalidInput)
	})
}

func testPremint(t *testing.T, price int64) premint.SignedPremint {
	t.Helper()
	creator := newSigner(t)
	p := premint.PremintConfig{
		TokenConfig: premint.TokenConfigV2{
			TokenURI:         "ipfs://token",
			MaxSupply:        big.NewInt(10),
			PricePerToken:    big.NewInt(price),
			PayoutRecipient:  creator.Address(),
			FixedPriceMinter: evm.FixedPriceMinterAddress,
		},
		UID: 2,
	}
	collection := "0x1234567890123456789012345678901234567890"
	td, err := premint.TypedData(collection, testChainID, p)
	require.NoError(t, err)
	sig, err := evm.SignTypedData(context.Background(), creator, td)
	require.NoError(t, err)
	return premint.SignedPremint{
		Network:           intents.NetworkZora,
		CollectionAddress: collection,
		Premint:           p,
		Signature:         evm.BytesToHex(sig),
	}
}

func TestBuildCollectWithMints(t *testing.T) {
	minter := "0x9876543210987654321098765432109876543210"

	t.Run("Premint collect pays only the token price", func(t *testing.T) {
		call, err := BuildCollectWithMints(testContracts, CollectWithMintsParams{
			TokenIDs:   bigs(1, 2),
			Quantities: bigs(1, 2),
			Action: CollectPremint{
				Premint: testPremint(t, 1000),
				Params:  premint.CollectParams{Minter: minter, Quantity: 3},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "transferBatchToManagerAndCall", call.FunctionName)
		assert.Equal(t, "3000", call.Value.String())

		_, err = mints1155ABI.Pack(call.FunctionName, call.Args...)
		require.NoError(t, err)
		data := call.Args[2].([]byte)
		assert.Equal(t, managerABI.Methods["collectPremint"].ID, data[:4])
	})

	t.Run("Premint quantity must match credit tokens", func(t *testing.T) {
		_, err := BuildCollectWithMints(testContracts, CollectWithMintsParams{
			TokenIDs:   bigs(1),
			Quantities: bigs(2),
			Action: CollectPremint{
				Premint: testPremint(t, 0),
				Params:  premint.CollectParams{Minter: minter, Quantity: 3},
			},
		})
		assert.ErrorIs(t, err, intents.ErrInvalidQuantity)
	})

	t.Run("Mismatched ids and quantities are rejected", func(t *testing.T) {
		_, err := BuildCollectWithMints(testContracts, CollectWithMintsParams{
			TokenIDs:   bigs(1, 2),
			Quantities: bigs(1),
			Action:     CollectToken{},
		})
		assert.ErrorIs(t, err, intents.ErrInvalidQuantity)
	})
}

func TestSignCollectPermit(t *testing.T) {
	ctx := context.Background()
	owner := newSigner(t)

	params := CollectPermitParams{
		CollectWithMintsParams: CollectWithMintsParams{
			TokenIDs:   bigs(1),
			Quantities: bigs(2),
			Action: CollectPremint{
				Premint: testPremint(t, 0),
				Params:  premint.CollectParams{Minter: owner.Address(), Quantity: 2},
			},
		},
		Contracts: testContracts,
		ChainID:   testChainID,
		Deadline:  testDeadline,
		Now:       testNow,
	}

	signed, err := SignCollectPermit(ctx, owner, params)
	require.NoError(t, err)
	assert.Equal(t, evm.MintsManagerAddress, signed.Permit.To)
	assert.NotNil(t, signed.Permit.Nonce)
	require.NoError(t, VerifyPermit(evm.Mints1155Address, testChainID, signed.Permit, signed.Signature, testNow))

	direct, err := EncodeCollect(params.Action)
	require.NoError(t, err)
	assert.Equal(t, direct, signed.Permit.SafeTransferData, "both paths share the encoded call")

	t.Run("Paid mint cannot use a permit", func(t *testing.T) {
		paid := params
		paid.Action = CollectPremint{
			Premint: testPremint(t, 5),
			Params:  premint.CollectParams{Minter: owner.Address(), Quantity: 2},
		}
		_, err := SignCollectPermit(ctx, owner, paid)
		assert.ErrorIs(t, err, intents.ErrInvalidInput)
	})
}

func TestUnwrapAndForward(t *testing.T) {
	callData := []byte{0xde, 0xad, 0xbe, 0xef}
	data, err := EncodeUnwrapAndForward(testTarget, callData)
	require.NoError(t, err)

	target, decoded, err := DecodeUnwrapAndForward(data)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testTarget).Hex(), target)
	assert.Equal(t, callData, decoded)

	_, _, err = DecodeUnwrapAndForward([]byte{0x01})
	assert.ErrorIs(t, err, intents.ErrInvalidInput)

	_, err = BuildUnwrapAndForwardPermit(UnwrapPermitParams{
		Owner: testTarget, TokenIDs: bigs(1), Quantities: bigs(1), Target: testTarget, Deadline: testDeadline,
	})
	assert.ErrorIs(t, err, intents.ErrInvalidInput, "unwrapper must be configured")
}

type priceReader struct {
	prices map[int64]*big.Int
}

func (r priceReader) ReadContract(_ context.Context, _ string, _ []byte, fn string, args ...interface{}) (interface{}, error) {
	if fn != "tokenPrice" {
		return nil, errors.New("unexpected call " + fn)
	}
	return r.prices[args[0].(*big.Int).Int64()], nil
}

func TestRedeemableValue(t *testing.T) {
	reader := priceReader{prices: map[int64]*big.Int{
		1: big.NewInt(111000000000000),
		2: big.NewInt(777000000000000),
	}}
	value, err := RedeemableValue(context.Background(), reader, evm.Mints1155Address, bigs(1, 2), bigs(2, 3))
	require.NoError(t, err)
	assert.Equal(t, "2553000000000000", value.String())
}

func sponsoredFixture(t *testing.T) (SponsoredSubmission, *evmsigners.ClientSigner) {
	t.Helper()
	ctx := context.Background()
	owner := newSigner(t)
	executor := newSigner(t)

	permit, err := BuildUnwrapAndForwardPermit(UnwrapPermitParams{
		Owner:      owner.Address(),
		Unwrapper:  testUnwrapper,
		TokenIDs:   bigs(1),
		Quantities: bigs(5),
		Target:     testTarget,
		CallData:   []byte{0x01, 0x02},
		Deadline:   testDeadline,
	})
	require.NoError(t, err)
	signed, err := SignUnwrapPermit(ctx, owner, evm.Mints1155Address, testChainID, permit, testNow)
	require.NoError(t, err)

	promise := SponsoredCall{
		SafeTransferData: permit.SafeTransferData,
		AdditionalValue:  big.NewInt(12345),
		Deadline:         big.NewInt(testNow.Unix() + 60),
	}
	promiseSig, err := SignSponsoredCall(ctx, executor, testUnwrapper, testChainID, promise, testNow)
	require.NoError(t, err)

	return SponsoredSubmission{
		Permit:           signed.Permit,
		PermitSignature:  signed.Signature,
		Sponsor:          promise,
		SponsorSignature: promiseSig,
	}, executor
}

func TestValidateSponsoredCall(t *testing.T) {
	submission, executor := sponsoredFixture(t)
	validation := SponsorValidation{
		Contracts: testContracts,
		ChainID:   testChainID,
		Executor:  executor.Address(),
		Now:       testNow,
	}

	require.NoError(t, ValidateSponsoredCall(validation, submission))

	t.Run("Other executor is an authorization failure", func(t *testing.T) {
		v := validation
		v.Executor = testTarget
		err := ValidateSponsoredCall(v, submission)
		assert.ErrorIs(t, err, intents.ErrSignerMismatch)
		assert.False(t, intents.IsRetryable(err))
	})

	t.Run("Expired promise is rejected", func(t *testing.T) {
		v := validation
		v.Now = testNow.Add(2 * time.Minute)
		assert.ErrorIs(t, ValidateSponsoredCall(v, submission), intents.ErrDeadlineExpired)
	})

	t.Run("Promise is bound to the payload", func(t *testing.T) {
		other := submission
		other.Permit.SafeTransferData = append([]byte{}, submission.Permit.SafeTransferData...)
		other.Permit.SafeTransferData[len(other.Permit.SafeTransferData)-1] ^= 0xff
		assert.ErrorIs(t, ValidateSponsoredCall(validation, other), intents.ErrInvalidInput)
	})

	t.Run("Promised value is attached", func(t *testing.T) {
		call := BuildSponsoredCall(testUnwrapper, submission)
		assert.Equal(t, "12345", call.Value.String())
		_, err := unwrapperABI.Pack(call.FunctionName, call.Args...)
		require.NoError(t, err)
	})
}

func TestDecodeCallFailedKnownErrors(t *testing.T) {
	insufficient := unwrapperABI.Errors["InsufficientValue"]
	args, err := insufficient.Inputs.Pack(big.NewInt(10), big.NewInt(5))
	require.NoError(t, err)
	inner := append(append([]byte{}, insufficient.ID[:4]...), args...)

	callFailed := unwrapperABI.Errors["CallFailed"]
	wrapped, err := callFailed.Inputs.Pack(inner)
	require.NoError(t, err)
	data := append(append([]byte{}, callFailed.ID[:4]...), wrapped...)

	decoded, err := DecodeCallFailed(data)
	require.NoError(t, err)
	assert.Equal(t, "InsufficientValue", decoded.Name)

	_, err = DecodeCallFailed(inner)
	assert.ErrorIs(t, err, intents.ErrNotCallFailed)
}
