package chain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Revert reasons the lifecycle protocol gives meaning to. The first two are
// emitted by the platform's ArbWasm precompile, the last by the conventional
// guarded initializer that replaces constructors on this target.
const (
	reasonProgramUpToDate     = "ProgramUpToDate"
	reasonProgramNotActivated = "ProgramNotActivated"
	reasonAlreadyInitialized  = "already initialized"
)

var (
	revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	stringType     = mustType("string")
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// UnpackRevert decodes an Error(string) revert payload.
func UnpackRevert(data []byte) (string, bool) {
	if len(data) < 4 || !bytes.Equal(data[:4], revertSelector) {
		return "", false
	}
	vals, err := abi.Arguments{{Type: stringType}}.Unpack(data[4:])
	if err != nil {
		return "", false
	}
	reason, ok := vals[0].(string)
	return reason, ok
}

// PackRevert encodes a reason string as an Error(string) revert payload.
func PackRevert(reason string) []byte {
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return append(append([]byte{}, revertSelector...), packed...)
}

// classifyRevert maps a revert reason onto the sentinel the lifecycle layer
// keys on. Unknown reasons stay generic ErrExecutionReverted.
func classifyRevert(reason string) error {
	switch {
	case strings.Contains(reason, reasonProgramUpToDate),
		strings.Contains(reason, "already activated"):
		return fmt.Errorf("%w: %s", ErrProgramUpToDate, reason)
	case strings.Contains(reason, reasonProgramNotActivated),
		strings.Contains(reason, "not activated"):
		return fmt.Errorf("%w: %s", ErrNotActivated, reason)
	case strings.Contains(reason, reasonAlreadyInitialized):
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, reason)
	case reason == "":
		return ErrExecutionReverted
	default:
		return fmt.Errorf("%w: %s", ErrExecutionReverted, reason)
	}
}
