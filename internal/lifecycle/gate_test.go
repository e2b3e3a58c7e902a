package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/arblift/stylusctl/internal/chain"
	"github.com/arblift/stylusctl/internal/contract"
	"github.com/arblift/stylusctl/internal/testutil/testlog"
)

func deployCounter(t *testing.T, backend *chain.SimBackend, registry *Registry) common.Address {
	t.Helper()
	backend.RegisterCode(contract.CounterCode, contract.NewCounter)
	addr, err := backend.Deploy(context.Background(), contract.CounterCode, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := registry.Register(addr, crypto.Keccak256Hash(contract.CounterCode)); err != nil {
		t.Fatalf("register: %v", err)
	}
	return addr
}

func TestActivateProducesReceiptOnce(t *testing.T) {
	testlog.Start(t)
	backend := chain.NewSimBackend()
	registry := NewRegistry()
	gate := NewActivationGate(backend, registry)
	addr := deployCounter(t, backend, registry)

	receipt, err := gate.Activate(context.Background(), addr, uint256.NewInt(0))
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if receipt.Version != 1 || !receipt.DataFee.IsZero() {
		t.Fatalf("expected receipt {version:1, dataFee:0}, got {%d, %s}", receipt.Version, receipt.DataFee.Dec())
	}

	if _, err := gate.Activate(context.Background(), addr, uint256.NewInt(0)); !errors.Is(err, ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated, got %v", err)
	}

	record, _ := registry.Lookup(addr)
	if !record.Activated || record.Receipt == nil || record.Receipt.Version != 1 {
		t.Fatalf("receipt not attached to record: %+v", record)
	}
}

func TestActivateUnregisteredProgram(t *testing.T) {
	testlog.Start(t)
	gate := NewActivationGate(chain.NewSimBackend(), NewRegistry())
	_, err := gate.Activate(context.Background(), common.HexToAddress("0x9"), nil)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestActivateAbsorbsCodeHashRace(t *testing.T) {
	testlog.Start(t)
	backend := chain.NewSimBackend()
	registry := NewRegistry()
	gate := NewActivationGate(backend, registry)

	// Two deployments of the same code: the platform keys activation by
	// code hash, so activating the second reports already-activated.
	first := deployCounter(t, backend, registry)
	second, err := backend.Deploy(context.Background(), contract.CounterCode, nil)
	if err != nil {
		t.Fatalf("second deploy: %v", err)
	}
	if _, err := registry.Register(second, crypto.Keccak256Hash(contract.CounterCode)); err != nil {
		t.Fatalf("register second: %v", err)
	}

	if _, err := gate.Activate(context.Background(), first, nil); err != nil {
		t.Fatalf("activate first: %v", err)
	}
	if _, err := gate.Activate(context.Background(), second, nil); !errors.Is(err, ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated on same code hash, got %v", err)
	}

	// The racing record is still marked activated so the registry view
	// matches the chain, but without a receipt of its own.
	record, _ := registry.Lookup(second)
	if !record.Activated || record.Receipt != nil {
		t.Fatalf("racer record should be activated without receipt: %+v", record)
	}
}

func TestActivateSurfacesDataFee(t *testing.T) {
	testlog.Start(t)
	backend := chain.NewSimBackend()
	backend.SetDataFeePerByte(2)
	registry := NewRegistry()
	gate := NewActivationGate(backend, registry)
	addr := deployCounter(t, backend, registry)

	receipt, err := gate.Activate(context.Background(), addr, uint256.NewInt(1000))
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	want := uint64(2 * len(contract.CounterCode))
	if receipt.DataFee.Uint64() != want {
		t.Fatalf("expected dataFee=%d, got %s", want, receipt.DataFee.Dec())
	}
}
