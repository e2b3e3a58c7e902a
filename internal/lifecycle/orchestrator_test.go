package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/arblift/stylusctl/internal/chain"
	"github.com/arblift/stylusctl/internal/contract"
	"github.com/arblift/stylusctl/internal/testutil/testlog"
)

func newHarness(t *testing.T) (*chain.SimBackend, *Registry, *Orchestrator) {
	t.Helper()
	backend := chain.NewSimBackend()
	backend.RegisterCode(contract.CounterCode, contract.NewCounter)
	registry := NewRegistry()
	return backend, registry, NewOrchestrator(backend, registry)
}

func TestDeployAndBootstrapFullLifecycle(t *testing.T) {
	testlog.Start(t)
	backend, registry, orchestrator := newHarness(t)
	ctx := context.Background()

	addr, err := orchestrator.DeployAndBootstrap(ctx, contract.CounterCode, contract.PackInitialize(uint256.NewInt(42)), uint256.NewInt(0))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	record, ok := registry.Lookup(addr)
	if !ok || !record.Activated || record.Receipt == nil {
		t.Fatalf("bootstrap left record incomplete: ok=%v %+v", ok, record)
	}

	output, err := backend.Call(ctx, addr, contract.PackGetTheNumber())
	if err != nil {
		t.Fatalf("get_the_number: %v", err)
	}
	num, err := contract.UnpackGetTheNumber(output)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if num.Uint64() != 42 {
		t.Fatalf("expected 42, got %s", num.Dec())
	}
}

func TestSecondInitializeFailsAndStateSticks(t *testing.T) {
	testlog.Start(t)
	backend, _, orchestrator := newHarness(t)
	ctx := context.Background()

	addr, err := orchestrator.DeployAndBootstrap(ctx, contract.CounterCode, contract.PackInitialize(uint256.NewInt(42)), nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	_, err = backend.Send(ctx, addr, contract.PackInitialize(uint256.NewInt(99)), nil)
	if !errors.Is(Classify(err), ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}

	output, err := backend.Call(ctx, addr, contract.PackGetTheNumber())
	if err != nil {
		t.Fatalf("get_the_number: %v", err)
	}
	num, _ := contract.UnpackGetTheNumber(output)
	if num.Uint64() != 42 {
		t.Fatalf("failed initialize must not overwrite state: got %s", num.Dec())
	}
}

func TestInitializeFailurePropagatesThroughBootstrap(t *testing.T) {
	testlog.Start(t)
	_, registry, orchestrator := newHarness(t)
	ctx := context.Background()

	// Truncated initialize calldata: the initializer reverts decoding it.
	bad := contract.PackInitialize(uint256.NewInt(42))[:8]
	_, err := orchestrator.DeployAndBootstrap(ctx, contract.CounterCode, bad, nil)
	if !errors.Is(err, ErrUnderlyingCall) {
		t.Fatalf("expected ErrUnderlyingCall from failed initialize, got %v", err)
	}

	// Deploy and activation precede the initializer, so the record stays
	// registered and activated; only initialization is outstanding.
	records := registry.List()
	if len(records) != 1 {
		t.Fatalf("expected the deployment to stay registered, got %d records", len(records))
	}
	if !records[0].Activated {
		t.Fatalf("record should remain activated after failed initialize: %+v", records[0])
	}
}

func TestGateRejectsReactivationAfterBootstrap(t *testing.T) {
	testlog.Start(t)
	_, _, orchestrator := newHarness(t)
	ctx := context.Background()

	addr, err := orchestrator.DeployAndBootstrap(ctx, contract.CounterCode, nil, nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if _, err := orchestrator.Gate().Activate(ctx, addr, nil); !errors.Is(err, ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated on reactivation, got %v", err)
	}
}

func TestMethodBeforeActivationFails(t *testing.T) {
	testlog.Start(t)
	backend, registry, _ := newHarness(t)
	ctx := context.Background()

	addr, err := backend.Deploy(ctx, contract.CounterCode, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := registry.Register(addr, common.HexToHash("0x01")); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = backend.Call(ctx, addr, contract.PackGetTheNumber())
	if !errors.Is(Classify(err), ErrNotActivated) {
		t.Fatalf("expected ErrNotActivated before activation, got %v", err)
	}
}

func TestZeroValueBeforeInitialize(t *testing.T) {
	testlog.Start(t)
	backend, _, orchestrator := newHarness(t)
	ctx := context.Background()

	// Nil constructor args: deploy and activate only.
	addr, err := orchestrator.DeployAndBootstrap(ctx, contract.CounterCode, nil, nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	output, err := backend.Call(ctx, addr, contract.PackGetTheNumber())
	if err != nil {
		t.Fatalf("get_the_number: %v", err)
	}
	num, _ := contract.UnpackGetTheNumber(output)
	if !num.IsZero() {
		t.Fatalf("constructor-set state must read zero before initialize, got %s", num.Dec())
	}
}

func TestBootstrapAbsorbsActivationRace(t *testing.T) {
	testlog.Start(t)
	_, registry, orchestrator := newHarness(t)
	ctx := context.Background()

	first, err := orchestrator.DeployAndBootstrap(ctx, contract.CounterCode, contract.PackInitialize(uint256.NewInt(1)), nil)
	if err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}

	// Same code again: activation reports already-activated and is
	// absorbed, so the lifecycle reaches the initializer of the fresh
	// instance and completes.
	second, err := orchestrator.DeployAndBootstrap(ctx, contract.CounterCode, contract.PackInitialize(uint256.NewInt(2)), nil)
	if err != nil {
		t.Fatalf("second bootstrap should absorb activation race: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct deployments")
	}
	record, _ := registry.Lookup(second)
	if !record.Activated {
		t.Fatalf("second record should be marked activated: %+v", record)
	}
}

func TestBootstrapPlanThreadsAddresses(t *testing.T) {
	testlog.Start(t)
	_, _, orchestrator := newHarness(t)
	ctx := context.Background()

	var seen common.Address
	deployed, err := orchestrator.Bootstrap(ctx, []BootstrapStep{
		{
			Name: "counter",
			Code: contract.CounterCode,
			Args: func(map[string]common.Address) ([]byte, error) {
				return contract.PackInitialize(uint256.NewInt(7)), nil
			},
		},
		{
			Name: "dependent",
			Code: contract.CounterCode,
			Args: func(deployed map[string]common.Address) ([]byte, error) {
				addr, ok := deployed["counter"]
				if !ok {
					return nil, fmt.Errorf("counter not deployed yet")
				}
				seen = addr
				// A dependent initializer would embed the address; the
				// counter model just takes a number.
				return contract.PackInitialize(uint256.NewInt(8)), nil
			},
		},
	})
	if err != nil {
		t.Fatalf("bootstrap plan: %v", err)
	}
	if len(deployed) != 2 {
		t.Fatalf("expected 2 deployed programs, got %d", len(deployed))
	}
	if seen != deployed["counter"] {
		t.Fatalf("args did not observe earlier step address")
	}
}

func TestBootstrapPlanValidation(t *testing.T) {
	testlog.Start(t)
	_, _, orchestrator := newHarness(t)
	ctx := context.Background()

	if _, err := orchestrator.Bootstrap(ctx, []BootstrapStep{{Name: " ", Code: contract.CounterCode}}); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep for blank name, got %v", err)
	}
	if _, err := orchestrator.Bootstrap(ctx, []BootstrapStep{{Name: "a"}}); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep for empty code, got %v", err)
	}
	if _, err := orchestrator.Bootstrap(ctx, []BootstrapStep{
		{Name: "a", Code: contract.CounterCode},
		{Name: "a", Code: contract.CounterCode},
	}); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep for duplicate name, got %v", err)
	}
}

func TestDeployUnknownCodeIsFatal(t *testing.T) {
	testlog.Start(t)
	backend := chain.NewSimBackend()
	registry := NewRegistry()
	orchestrator := NewOrchestrator(backend, registry)

	_, err := orchestrator.DeployAndBootstrap(context.Background(), []byte("no such code"), nil, nil)
	if !errors.Is(err, ErrUnderlyingCall) {
		t.Fatalf("expected ErrUnderlyingCall, got %v", err)
	}
	if len(registry.List()) != 0 {
		t.Fatalf("failed deployment must leave no registry entry")
	}
}
