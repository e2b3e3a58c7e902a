package lifecycle

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Lifecycle states of one deployed program. Transitions are monotonic and
// irreversible: Deployed -> Activated -> Initialized, no skips. The registry
// witnesses the first transition; the second lives in contract storage and
// is observable only through calls.
const (
	StateDeployed  = "deployed"
	StateActivated = "activated"
)

// ActivationReceipt is the immutable result of a successful activation.
type ActivationReceipt struct {
	Version uint16
	DataFee *uint256.Int
}

func (r ActivationReceipt) clone() ActivationReceipt {
	out := ActivationReceipt{Version: r.Version}
	if r.DataFee != nil {
		out.DataFee = new(uint256.Int).Set(r.DataFee)
	}
	return out
}

// DeployedProgram is one registry record. Activated flips exactly once;
// Receipt is attached at that moment and never changes afterwards. A record
// activated by an external racer carries no receipt.
type DeployedProgram struct {
	Address      common.Address
	CodeHash     common.Hash
	Activated    bool
	Receipt      *ActivationReceipt
	RegisteredAt time.Time
}

// State reports the registry-visible lifecycle state.
func (p DeployedProgram) State() string {
	if p.Activated {
		return StateActivated
	}
	return StateDeployed
}

func (p DeployedProgram) snapshot() DeployedProgram {
	out := p
	if p.Receipt != nil {
		receipt := p.Receipt.clone()
		out.Receipt = &receipt
	}
	return out
}
