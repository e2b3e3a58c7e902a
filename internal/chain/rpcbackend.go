package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
)

const defaultPollInterval = 250 * time.Millisecond

// RPCBackend drives the lifecycle against a live execution node over
// JSON-RPC. It targets dev nodes with an unlocked funded account, matching
// how the platform's own integration suites deploy.
type RPCBackend struct {
	client       *rpcClient
	from         common.Address
	pollInterval time.Duration
}

// NewRPCBackend builds a backend over one primary and optional secondary
// endpoints. jwtSecret may be nil for unauthenticated dev nodes.
func NewRPCBackend(urls []string, from common.Address, timeout time.Duration, jwtSecret []byte) *RPCBackend {
	return &RPCBackend{
		client:       newRPCClient(urls, timeout, jwtSecret),
		from:         from,
		pollInterval: defaultPollInterval,
	}
}

func (b *RPCBackend) Deploy(ctx context.Context, code []byte, value *uint256.Int) (common.Address, error) {
	receipt, err := b.sendAndWait(ctx, txArgs{
		From:  b.from,
		Data:  code,
		Value: toHexBig(value),
	})
	if err != nil {
		return common.Address{}, err
	}
	if receipt.ContractAddress == nil {
		return common.Address{}, fmt.Errorf("%w: deployment receipt missing contract address", ErrCallFailed)
	}
	log.Debug().
		Str("address", receipt.ContractAddress.Hex()).
		Uint64("block", uint64(receipt.BlockNumber)).
		Msg("program deployed")
	return *receipt.ContractAddress, nil
}

func (b *RPCBackend) ActivateProgram(ctx context.Context, program common.Address, value *uint256.Int) (uint16, *uint256.Int, error) {
	args := txArgs{
		From:  b.from,
		To:    &ArbWasmAddress,
		Data:  PackActivateProgram(program),
		Value: toHexBig(value),
	}
	// The precompile returns (version, dataFee) which a transaction receipt
	// cannot carry, so simulate first. The simulation also surfaces
	// ProgramUpToDate before any funds move.
	output, err := b.ethCall(ctx, args)
	if err != nil {
		return 0, nil, err
	}
	version, dataFee, err := UnpackActivateProgram(output)
	if err != nil {
		return 0, nil, err
	}
	if _, err := b.sendAndWait(ctx, args); err != nil {
		return 0, nil, err
	}
	return version, dataFee, nil
}

func (b *RPCBackend) Send(ctx context.Context, to common.Address, input []byte, value *uint256.Int) ([]byte, error) {
	args := txArgs{
		From:  b.from,
		To:    &to,
		Data:  input,
		Value: toHexBig(value),
	}
	// Simulate for the return payload and an early decoded revert, then
	// commit. The dev-node model keeps the two views consistent.
	output, err := b.ethCall(ctx, args)
	if err != nil {
		return nil, err
	}
	if _, err := b.sendAndWait(ctx, args); err != nil {
		return nil, err
	}
	return output, nil
}

func (b *RPCBackend) Call(ctx context.Context, to common.Address, input []byte) ([]byte, error) {
	return b.ethCall(ctx, txArgs{From: b.from, To: &to, Data: input})
}

func (b *RPCBackend) BlockNumber(ctx context.Context) (uint64, error) {
	output, err := b.ethCall(ctx, txArgs{From: b.from, To: &ArbSysAddress, Data: PackArbBlockNumber()})
	if err != nil {
		return 0, err
	}
	return UnpackArbBlockNumber(output)
}

func (b *RPCBackend) ethCall(ctx context.Context, args txArgs) ([]byte, error) {
	var out hexutil.Bytes
	if err := b.client.do(ctx, "eth_call", []interface{}{args, "latest"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *RPCBackend) sendAndWait(ctx context.Context, args txArgs) (*txReceipt, error) {
	var txHash common.Hash
	if err := b.client.do(ctx, "eth_sendTransaction", []interface{}{args}, &txHash); err != nil {
		return nil, err
	}
	return b.waitMined(ctx, txHash)
}

// waitMined polls for a receipt. Waiting is a fresh query each tick; the
// transaction is never resubmitted.
func (b *RPCBackend) waitMined(ctx context.Context, txHash common.Hash) (*txReceipt, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		var receipt *txReceipt
		if err := b.client.do(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &receipt); err != nil {
			return nil, err
		}
		if receipt != nil {
			if receipt.Status == 0 {
				return nil, fmt.Errorf("%w: tx %s reverted on chain", ErrExecutionReverted, txHash.Hex())
			}
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for tx %s: %v", ErrCallFailed, txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func toHexBig(value *uint256.Int) *hexutil.Big {
	if value == nil || value.IsZero() {
		return nil
	}
	return (*hexutil.Big)(value.ToBig())
}
