package contract

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/arblift/stylusctl/internal/chain"
)

// ProxyCode is the code blob bound to the proxy model. Proxies share one
// base logic to keep the compiled artifact under the platform size limit;
// construction happens through the same guarded initializer, forwarded
// delegatecall-style so it runs against the proxy's own storage.
var ProxyCode = append([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, []byte("stylusctl.proxy")...)

// proxyStorage is the per-instance state the shared logic operates on.
type proxyStorage struct {
	initialized bool
	number      uint256.Int
}

// BaseLogic is the shared implementation behind every proxy. It is
// stateless: all reads and writes go to the storage handed in by the
// calling instance.
type BaseLogic struct{}

func (BaseLogic) initialize(store *proxyStorage, args []byte) error {
	if store.initialized {
		return fmt.Errorf("%w: proxy", chain.ErrAlreadyInitialized)
	}
	vals, err := counterABI.Methods["initialize"].Inputs.Unpack(args)
	if err != nil {
		return fmt.Errorf("%w: initialize args: %v", chain.ErrExecutionReverted, err)
	}
	x, overflow := uint256.FromBig(vals[0].(*big.Int))
	if overflow {
		return fmt.Errorf("%w: initialize arg overflows u256", chain.ErrExecutionReverted)
	}
	store.number.Set(x)
	store.initialized = true
	return nil
}

func (BaseLogic) getTheNumber(store *proxyStorage) ([]byte, error) {
	out, err := counterABI.Methods["get_the_number"].Outputs.Pack(store.number.ToBig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrExecutionReverted, err)
	}
	return out, nil
}

// Proxy owns one storage slot set and forwards every call to the shared
// base logic.
type Proxy struct {
	mu    sync.Mutex
	logic *BaseLogic
	store proxyStorage
}

// NewProxyFactory binds deployments of ProxyCode to one shared base logic.
func NewProxyFactory(logic *BaseLogic) chain.ProgramFactory {
	return func() chain.HostedProgram {
		return &Proxy{logic: logic}
	}
}

func (p *Proxy) Invoke(input []byte, _ *uint256.Int, readOnly bool) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("%w: calldata too short", chain.ErrExecutionReverted)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case bytes.Equal(input[:4], counterABI.Methods["initialize"].ID):
		if readOnly {
			return nil, fmt.Errorf("%w: initialize in static call", chain.ErrExecutionReverted)
		}
		return nil, p.logic.initialize(&p.store, input[4:])
	case bytes.Equal(input[:4], counterABI.Methods["get_the_number"].ID):
		return p.logic.getTheNumber(&p.store)
	default:
		return nil, fmt.Errorf("%w: unknown selector %x", chain.ErrExecutionReverted, input[:4])
	}
}
