package mints

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	mints1155ABI abi.ABI
	managerABI   abi.ABI
	unwrapperABI abi.ABI

	// knownErrors holds the custom errors of every contract above.
	knownErrors = abi.ABI{Errors: map[string]abi.Error{}}
)

func init() {
	for _, c := range []struct {
		name string
		raw  []byte
		dst  *abi.ABI
	}{
		{"mints1155", Mints1155ABI, &mints1155ABI},
		{"manager", MintsManagerABI, &managerABI},
		{"unwrapper", UnwrapperABI, &unwrapperABI},
	} {
		parsed, err := abi.JSON(bytes.NewReader(c.raw))
		if err != nil {
			panic(fmt.Sprintf("invalid %s ABI: %v", c.name, err))
		}
		*c.dst = parsed
		for name, e := range parsed.Errors {
			knownErrors.Errors[name] = e
		}
	}
}
