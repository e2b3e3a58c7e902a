package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/arblift/stylusctl/internal/chain"
	"github.com/arblift/stylusctl/internal/observability"
)

// ActivationGate wraps the external activation call with single-activation
// semantics. Activation is all-or-nothing from the caller's perspective: the
// record flips and the receipt attaches only after the chain call succeeds.
type ActivationGate struct {
	backend  chain.Backend
	registry *Registry
}

// NewActivationGate binds a gate to its backend and registry.
func NewActivationGate(backend chain.Backend, registry *Registry) *ActivationGate {
	return &ActivationGate{backend: backend, registry: registry}
}

// Activate activates a registered program and returns its receipt.
//
// A second activation fails with ErrAlreadyActivated, also when the chain
// reports the program's code as already activated (the platform keys
// activation by code identity, so another deployment of the same code may
// have won). In that case the record is still marked activated, receiptless,
// so the registry view matches the chain.
func (g *ActivationGate) Activate(ctx context.Context, address common.Address, value *uint256.Int) (ActivationReceipt, error) {
	record, ok := g.registry.Lookup(address)
	if !ok {
		return ActivationReceipt{}, fmt.Errorf("%w: %s", ErrNotRegistered, address.Hex())
	}
	if record.Activated {
		return ActivationReceipt{}, fmt.Errorf("%w: %s", ErrAlreadyActivated, address.Hex())
	}

	version, dataFee, err := g.backend.ActivateProgram(ctx, address, value)
	if err != nil {
		if errors.Is(err, chain.ErrProgramUpToDate) {
			if markErr := g.registry.markActivated(address, nil); markErr != nil && !errors.Is(markErr, ErrAlreadyActivated) {
				return ActivationReceipt{}, markErr
			}
			observability.RecordActivation("already_activated")
			return ActivationReceipt{}, fmt.Errorf("%w: %s: %v", ErrAlreadyActivated, address.Hex(), err)
		}
		observability.RecordActivation("error")
		return ActivationReceipt{}, Classify(err)
	}

	receipt := ActivationReceipt{Version: version, DataFee: dataFee}
	if err := g.registry.markActivated(address, &receipt); err != nil {
		return ActivationReceipt{}, err
	}
	observability.RecordActivation("success")
	log.Info().
		Str("address", address.Hex()).
		Uint16("version", version).
		Str("data_fee", feeString(dataFee)).
		Msg("program activated")
	return receipt.clone(), nil
}

func feeString(fee *uint256.Int) string {
	if fee == nil {
		return "0"
	}
	return fee.Dec()
}
