package evm

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rpc"

	intents "github.com/mintkit/intents/go"
)

var callFailedError abi.Error

func init() {
	parsed, err := abi.JSON(bytes.NewReader(CallFailedABI))
	if err != nil {
		panic(fmt.Sprintf("invalid CallFailed ABI: %v", err))
	}
	callFailedError = parsed.Errors["CallFailed"]
}

// InnerRevert is the failure recovered from inside a CallFailed wrapper.
type InnerRevert struct {
	// Data is the raw inner revert payload.
	Data []byte
	// Selector is the first four bytes of Data, if present.
	Selector [4]byte
	// Name is the matched custom error name, "Error" for Error(string),
	// "Panic" for Panic(uint256), or "" when unknown.
	Name string
	// Reason is the decoded revert string for Error(string) and Panic.
	Reason string
	// Args holds decoded arguments of a matched custom error.
	Args interface{}
}

func (r *InnerRevert) String() string {
	switch {
	case r.Reason != "":
		return r.Reason
	case r.Name != "":
		return fmt.Sprintf("%s(%v)", r.Name, r.Args)
	default:
		return BytesToHex(r.Data)
	}
}

// DecodeCallFailed unwraps a CallFailed(bytes) revert and decodes the inner
// failure. Known lists custom errors the forwarded call may raise and can be
// nil. If data is not a CallFailed error it returns ErrNotCallFailed rather
// than a partially decoded result.
func DecodeCallFailed(data []byte, known *abi.ABI) (*InnerRevert, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], callFailedError.ID[:4]) {
		return nil, intents.NewIntentError(intents.ErrCodeNotCallFailed, "revert data is not a CallFailed error", nil)
	}

	values, err := callFailedError.Inputs.Unpack(data[4:])
	if err != nil || len(values) != 1 {
		return nil, intents.WrapIntentError(intents.ErrCodeNotCallFailed, "malformed CallFailed payload", err)
	}
	inner, ok := values[0].([]byte)
	if !ok {
		return nil, intents.NewIntentError(intents.ErrCodeNotCallFailed, "CallFailed reason is not bytes", nil)
	}

	return decodeInnerRevert(inner, known), nil
}

func decodeInnerRevert(inner []byte, known *abi.ABI) *InnerRevert {
	result := &InnerRevert{Data: inner}
	if len(inner) < 4 {
		return result
	}
	copy(result.Selector[:], inner[:4])

	if reason, err := abi.UnpackRevert(inner); err == nil {
		result.Reason = reason
		if bytes.Equal(inner[:4], panicSelector) {
			result.Name = "Panic"
		} else {
			result.Name = "Error"
		}
		return result
	}

	if known != nil {
		for name, customErr := range known.Errors {
			if !bytes.Equal(customErr.ID[:4], inner[:4]) {
				continue
			}
			args, err := customErr.Unpack(inner)
			if err != nil {
				continue
			}
			result.Name = name
			result.Args = args
			return result
		}
	}
	return result
}

var panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}

// RevertDataFromError extracts revert bytes from a JSON-RPC error, as
// returned by eth_call or gas estimation against a reverting call.
func RevertDataFromError(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		if !strings.HasPrefix(data, "0x") {
			return nil, false
		}
		b, decodeErr := HexToBytes(data)
		if decodeErr != nil {
			return nil, false
		}
		return b, true
	case []byte:
		return data, true
	default:
		return nil, false
	}
}
