package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// HostedProgram is a Go-modeled contract instance hosted by the simulated
// backend. Input is full calldata (4-byte selector plus arguments); readOnly
// distinguishes eth_call-style queries from state-changing sends.
//
// Initialization state lives inside the hosted instance, never in the
// harness: a program implements its own guarded initializer and reports
// ErrAlreadyInitialized through its returned error.
type HostedProgram interface {
	Invoke(input []byte, value *uint256.Int, readOnly bool) ([]byte, error)
}

// ProgramFactory builds a fresh instance for each deployment of a code blob.
type ProgramFactory func() HostedProgram

type simAccount struct {
	codeHash common.Hash
	program  HostedProgram
}

// SimBackend is an in-memory execution layer for tests and dry runs. It
// reproduces the platform behaviors the lifecycle depends on: activation is
// keyed by code hash (a second deployment of identical bytecode is already
// activated), calls to unactivated programs revert, and every transaction
// advances the layer-local block number.
type SimBackend struct {
	mu         sync.Mutex
	nonce      uint64
	blockNum   uint64
	deployer   common.Address
	version    uint16
	feePerByte uint64
	codes      map[common.Hash]ProgramFactory
	codeLen    map[common.Hash]int
	accounts   map[common.Address]*simAccount
	activated  map[common.Hash]bool
}

// NewSimBackend returns an empty simulated chain at stylus version 1 with a
// zero data fee.
func NewSimBackend() *SimBackend {
	return &SimBackend{
		deployer:  common.HexToAddress("0x3f1Eae7D46d88F08fc2F8ed27FCb2AB183EB2d0E"),
		version:   1,
		codes:     make(map[common.Hash]ProgramFactory),
		codeLen:   make(map[common.Hash]int),
		accounts:  make(map[common.Address]*simAccount),
		activated: make(map[common.Hash]bool),
	}
}

// SetDataFeePerByte prices activation per code byte for fee-sensitive tests.
func (b *SimBackend) SetDataFeePerByte(fee uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.feePerByte = fee
}

// RegisterCode binds a code blob to the Go model instantiated on deployment.
func (b *SimBackend) RegisterCode(code []byte, factory ProgramFactory) common.Hash {
	hash := crypto.Keccak256Hash(code)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[hash] = factory
	b.codeLen[hash] = len(code)
	return hash
}

func (b *SimBackend) Deploy(_ context.Context, code []byte, _ *uint256.Int) (common.Address, error) {
	hash := crypto.Keccak256Hash(code)
	b.mu.Lock()
	defer b.mu.Unlock()
	factory, ok := b.codes[hash]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownCode, hash.Hex())
	}
	addr := crypto.CreateAddress(b.deployer, b.nonce)
	b.nonce++
	b.blockNum++
	b.accounts[addr] = &simAccount{codeHash: hash, program: factory()}
	return addr, nil
}

func (b *SimBackend) ActivateProgram(_ context.Context, program common.Address, _ *uint256.Int) (uint16, *uint256.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	account, ok := b.accounts[program]
	if !ok {
		return 0, nil, fmt.Errorf("%w: no program at %s", ErrExecutionReverted, program.Hex())
	}
	b.blockNum++
	if b.activated[account.codeHash] {
		return 0, nil, classifyRevert(reasonProgramUpToDate)
	}
	b.activated[account.codeHash] = true
	dataFee := uint256.NewInt(b.feePerByte)
	dataFee.Mul(dataFee, uint256.NewInt(uint64(b.codeLen[account.codeHash])))
	return b.version, dataFee, nil
}

func (b *SimBackend) Send(_ context.Context, to common.Address, input []byte, value *uint256.Int) ([]byte, error) {
	b.mu.Lock()
	account, err := b.callableLocked(to)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.blockNum++
	b.mu.Unlock()
	return account.program.Invoke(input, value, false)
}

func (b *SimBackend) Call(_ context.Context, to common.Address, input []byte) ([]byte, error) {
	b.mu.Lock()
	account, err := b.callableLocked(to)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return account.program.Invoke(input, nil, true)
}

func (b *SimBackend) BlockNumber(_ context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockNum, nil
}

// callableLocked gates every program call on activation of its code hash.
func (b *SimBackend) callableLocked(to common.Address) (*simAccount, error) {
	account, ok := b.accounts[to]
	if !ok {
		return nil, fmt.Errorf("%w: no program at %s", ErrExecutionReverted, to.Hex())
	}
	if !b.activated[account.codeHash] {
		return nil, classifyRevert(reasonProgramNotActivated)
	}
	return account, nil
}
