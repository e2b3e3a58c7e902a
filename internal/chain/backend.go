package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Classified outcomes of external chain calls. Transport and node failures
// wrap ErrCallFailed; everything else is a decoded revert.
var (
	ErrCallFailed         = errors.New("chain: underlying call failed")
	ErrExecutionReverted  = errors.New("chain: execution reverted")
	ErrNotActivated       = errors.New("chain: program not activated")
	ErrProgramUpToDate    = errors.New("chain: program already activated")
	ErrAlreadyInitialized = errors.New("chain: contract already initialized")
	ErrUnknownCode        = errors.New("chain: unknown code blob")
)

// Backend is the execution layer a deployment run talks to. Every method is
// a single external call awaited to completion; none of them retries.
type Backend interface {
	// Deploy submits a deployment transaction and returns the new address.
	Deploy(ctx context.Context, code []byte, value *uint256.Int) (common.Address, error)

	// ActivateProgram calls the ArbWasm precompile for the given program.
	// A second activation of the same code reverts with ErrProgramUpToDate.
	ActivateProgram(ctx context.Context, program common.Address, value *uint256.Int) (version uint16, dataFee *uint256.Int, err error)

	// Send routes a state-changing call to a deployed program.
	Send(ctx context.Context, to common.Address, input []byte, value *uint256.Int) ([]byte, error)

	// Call routes a read-only call to a deployed program.
	Call(ctx context.Context, to common.Address, input []byte) ([]byte, error)

	// BlockNumber queries the ArbSys precompile for the execution layer's
	// own block number. The ambient block number reflects the parent chain
	// and is unsuitable for layer-local logic.
	BlockNumber(ctx context.Context) (uint64, error)
}
