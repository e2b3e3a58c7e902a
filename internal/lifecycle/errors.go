package lifecycle

import (
	"errors"
	"fmt"

	"github.com/arblift/stylusctl/internal/chain"
)

var (
	ErrDuplicateDeployment = errors.New("lifecycle: duplicate deployment")
	ErrNotRegistered       = errors.New("lifecycle: program not registered")
	ErrAlreadyActivated    = errors.New("lifecycle: program already activated")
	ErrAlreadyInitialized  = errors.New("lifecycle: contract already initialized")
	ErrNotActivated        = errors.New("lifecycle: program not activated")
	ErrUnderlyingCall      = errors.New("lifecycle: underlying call failed")
)

// Classify maps a backend error onto the lifecycle taxonomy. Reverts without
// protocol meaning and transport failures both become ErrUnderlyingCall; the
// original error stays wrapped for inspection.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chain.ErrProgramUpToDate):
		return fmt.Errorf("%w: %v", ErrAlreadyActivated, err)
	case errors.Is(err, chain.ErrNotActivated):
		return fmt.Errorf("%w: %v", ErrNotActivated, err)
	case errors.Is(err, chain.ErrAlreadyInitialized):
		return fmt.Errorf("%w: %v", ErrAlreadyInitialized, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnderlyingCall, err)
	}
}
