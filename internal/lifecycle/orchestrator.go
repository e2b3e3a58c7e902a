package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"

	"github.com/arblift/stylusctl/internal/chain"
	"github.com/arblift/stylusctl/internal/observability"
)

var ErrInvalidStep = errors.New("lifecycle: invalid bootstrap step")

// Orchestrator sequences the deploy -> register -> activate -> initialize
// lifecycle. Each step is a single external call awaited to completion; no
// step is retried here.
type Orchestrator struct {
	backend  chain.Backend
	registry *Registry
	gate     *ActivationGate
}

// NewOrchestrator wires an orchestrator over one backend and registry.
func NewOrchestrator(backend chain.Backend, registry *Registry) *Orchestrator {
	return &Orchestrator{
		backend:  backend,
		registry: registry,
		gate:     NewActivationGate(backend, registry),
	}
}

// Gate exposes the orchestrator's activation gate for direct use.
func (o *Orchestrator) Gate() *ActivationGate {
	return o.gate
}

// DeployAndBootstrap runs the full lifecycle for one code blob and returns
// the deployed address once every step has resolved.
//
// Deploy and register failures are fatal and leave nothing registered.
// ErrAlreadyActivated from the gate is absorbed: activation is keyed by code
// identity on the platform, so another actor activating the same code first
// leaves the program just as usable. Any initialize failure, including
// ErrAlreadyInitialized, propagates unretried, since a second initializer
// caller indicates an ordering bug upstream.
func (o *Orchestrator) DeployAndBootstrap(ctx context.Context, code []byte, constructorArgs []byte, activationValue *uint256.Int) (common.Address, error) {
	address, err := o.backend.Deploy(ctx, code, nil)
	if err != nil {
		observability.RecordDeployment("error")
		return common.Address{}, Classify(err)
	}
	observability.RecordDeployment("success")

	codeHash := crypto.Keccak256Hash(code)
	if _, err := o.registry.Register(address, codeHash); err != nil {
		return common.Address{}, err
	}

	if _, err := o.gate.Activate(ctx, address, activationValue); err != nil {
		if !errors.Is(err, ErrAlreadyActivated) {
			return common.Address{}, err
		}
		log.Warn().
			Str("address", address.Hex()).
			Str("code_hash", codeHash.Hex()).
			Msg("program code already activated, proceeding")
	}

	if len(constructorArgs) > 0 {
		if _, err := o.backend.Send(ctx, address, constructorArgs, nil); err != nil {
			observability.RecordInitialization("error")
			return common.Address{}, Classify(err)
		}
		observability.RecordInitialization("success")
	}

	log.Info().
		Str("address", address.Hex()).
		Str("code_hash", codeHash.Hex()).
		Msg("program bootstrapped")
	return address, nil
}

// BootstrapStep is one program in a multi-program bootstrap plan. Args may
// reference the addresses of earlier steps, which is how dependent programs
// (pair -> factory style) are initialized in order.
type BootstrapStep struct {
	Name            string
	Code            []byte
	ActivationValue *uint256.Int
	Args            func(deployed map[string]common.Address) ([]byte, error)
}

// Validate enforces the fields a step needs before any chain call is made.
func (s BootstrapStep) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidStep)
	}
	if len(s.Code) == 0 {
		return fmt.Errorf("%w: %s: missing code", ErrInvalidStep, s.Name)
	}
	return nil
}

// Bootstrap runs a plan of interdependent programs strictly in order,
// returning the address of every completed step by name. The first failing
// step aborts the plan; earlier steps stay bootstrapped.
func (o *Orchestrator) Bootstrap(ctx context.Context, steps []BootstrapStep) (map[string]common.Address, error) {
	deployed := make(map[string]common.Address, len(steps))
	for i := range steps {
		step := steps[i]
		if err := step.Validate(); err != nil {
			return deployed, err
		}
		if _, dup := deployed[step.Name]; dup {
			return deployed, fmt.Errorf("%w: duplicate name %q", ErrInvalidStep, step.Name)
		}
		var args []byte
		if step.Args != nil {
			built, err := step.Args(deployed)
			if err != nil {
				return deployed, fmt.Errorf("%w: %s: %v", ErrInvalidStep, step.Name, err)
			}
			args = built
		}
		address, err := o.DeployAndBootstrap(ctx, step.Code, args, step.ActivationValue)
		if err != nil {
			return deployed, fmt.Errorf("bootstrap step %q: %w", step.Name, err)
		}
		deployed[step.Name] = address
	}
	return deployed, nil
}
