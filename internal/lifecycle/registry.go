package lifecycle

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Registry stores deployed program records by address. It owns the records;
// callers only ever see snapshots.
type Registry struct {
	mu    sync.RWMutex
	items map[common.Address]*DeployedProgram
}

// NewRegistry creates an empty program registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[common.Address]*DeployedProgram)}
}

// Register adds a new unactivated record for a freshly deployed address.
func (r *Registry) Register(address common.Address, codeHash common.Hash) (DeployedProgram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[address]; ok {
		return DeployedProgram{}, fmt.Errorf("%w: %s", ErrDuplicateDeployment, address.Hex())
	}
	record := &DeployedProgram{
		Address:      address,
		CodeHash:     codeHash,
		RegisteredAt: time.Now(),
	}
	r.items[address] = record
	return record.snapshot(), nil
}

// Lookup returns a snapshot of one record. Pure query: stable between
// lifecycle mutations.
func (r *Registry) Lookup(address common.Address) (DeployedProgram, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.items[address]
	if !ok {
		return DeployedProgram{}, false
	}
	return record.snapshot(), true
}

// List returns record snapshots in deterministic address order.
func (r *Registry) List() []DeployedProgram {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeployedProgram, 0, len(r.items))
	for _, record := range r.items {
		out = append(out, record.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out
}

// markActivated flips a record's activation flag, exactly once. A nil
// receipt records an activation observed from outside (external racer won).
func (r *Registry) markActivated(address common.Address, receipt *ActivationReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.items[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, address.Hex())
	}
	if record.Activated {
		return fmt.Errorf("%w: %s", ErrAlreadyActivated, address.Hex())
	}
	record.Activated = true
	if receipt != nil {
		attached := receipt.clone()
		record.Receipt = &attached
	}
	return nil
}
