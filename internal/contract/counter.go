// Package contract models Stylus programs hosted by the simulated backend.
//
// Programs on this target have no implicit constructor: activation runs no
// code, so constructor logic lives in an explicitly-called initializer
// guarded by a one-shot latch in the instance's own storage.
package contract

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/holiman/uint256"

	"github.com/arblift/stylusctl/internal/chain"
)

const counterJSON = `[
	{"type":"function","name":"initialize","stateMutability":"nonpayable",
	 "inputs":[{"name":"x","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"get_the_number","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

var counterABI = mustABI(counterJSON)

// CounterCode is the synthetic code blob bound to the counter model in the
// simulated backend. The leading bytes are the wasm magic and version.
var CounterCode = append([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, []byte("stylusctl.counter")...)

// Counter stores one number set by its guarded initializer.
type Counter struct {
	mu          sync.Mutex
	initialized bool
	number      uint256.Int
}

// NewCounter returns an uninitialized instance with zeroed storage.
func NewCounter() chain.HostedProgram {
	return &Counter{}
}

func (c *Counter) Invoke(input []byte, _ *uint256.Int, readOnly bool) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("%w: calldata too short", chain.ErrExecutionReverted)
	}
	switch {
	case bytes.Equal(input[:4], counterABI.Methods["initialize"].ID):
		if readOnly {
			return nil, fmt.Errorf("%w: initialize in static call", chain.ErrExecutionReverted)
		}
		return nil, c.initialize(input[4:])
	case bytes.Equal(input[:4], counterABI.Methods["get_the_number"].ID):
		return c.getTheNumber()
	default:
		return nil, fmt.Errorf("%w: unknown selector %x", chain.ErrExecutionReverted, input[:4])
	}
}

// initialize is the constructor replacement. The latch is checked first and
// set as the final mutation, so a failed run leaves the instance retryable.
func (c *Counter) initialize(args []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return fmt.Errorf("%w: counter", chain.ErrAlreadyInitialized)
	}
	vals, err := counterABI.Methods["initialize"].Inputs.Unpack(args)
	if err != nil {
		return fmt.Errorf("%w: initialize args: %v", chain.ErrExecutionReverted, err)
	}
	x, overflow := uint256.FromBig(vals[0].(*big.Int))
	if overflow {
		return fmt.Errorf("%w: initialize arg overflows u256", chain.ErrExecutionReverted)
	}
	c.number.Set(x)
	c.initialized = true
	return nil
}

func (c *Counter) getTheNumber() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Before initialization this is the storage zero value, matching the
	// platform's no-constructor semantics.
	out, err := counterABI.Methods["get_the_number"].Outputs.Pack(c.number.ToBig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrExecutionReverted, err)
	}
	return out, nil
}

// PackInitialize builds initialize(uint256) calldata.
func PackInitialize(x *uint256.Int) []byte {
	input, err := counterABI.Pack("initialize", x.ToBig())
	if err != nil {
		panic(err)
	}
	return input
}

// PackGetTheNumber builds get_the_number() calldata.
func PackGetTheNumber() []byte {
	input, err := counterABI.Pack("get_the_number")
	if err != nil {
		panic(err)
	}
	return input
}

// UnpackGetTheNumber decodes a get_the_number() result.
func UnpackGetTheNumber(output []byte) (*uint256.Int, error) {
	vals, err := counterABI.Unpack("get_the_number", output)
	if err != nil {
		return nil, fmt.Errorf("%w: get_the_number output: %v", chain.ErrCallFailed, err)
	}
	num, overflow := uint256.FromBig(vals[0].(*big.Int))
	if overflow {
		return nil, fmt.Errorf("%w: get_the_number overflows u256", chain.ErrCallFailed)
	}
	return num, nil
}

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
