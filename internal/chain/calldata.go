package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Fixed well-known precompile addresses on the Stylus execution layer.
var (
	ArbWasmAddress = common.HexToAddress("0x0000000000000000000000000000000000000071")
	ArbSysAddress  = common.HexToAddress("0x0000000000000000000000000000000000000064")
)

const arbWasmJSON = `[
	{"type":"function","name":"activateProgram","stateMutability":"payable",
	 "inputs":[{"name":"program","type":"address"}],
	 "outputs":[{"name":"version","type":"uint16"},{"name":"dataFee","type":"uint256"}]}
]`

const arbSysJSON = `[
	{"type":"function","name":"arbBlockNumber","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	arbWasmABI = mustABI(arbWasmJSON)
	arbSysABI  = mustABI(arbSysJSON)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PackActivateProgram builds ArbWasm.activateProgram calldata.
func PackActivateProgram(program common.Address) []byte {
	input, err := arbWasmABI.Pack("activateProgram", program)
	if err != nil {
		panic(err) // static arguments cannot fail to pack
	}
	return input
}

// UnpackActivateProgram decodes the (version, dataFee) activation result.
func UnpackActivateProgram(output []byte) (uint16, *uint256.Int, error) {
	vals, err := arbWasmABI.Unpack("activateProgram", output)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: activateProgram output: %v", ErrCallFailed, err)
	}
	version, ok := vals[0].(uint16)
	if !ok {
		return 0, nil, fmt.Errorf("%w: activateProgram version type %T", ErrCallFailed, vals[0])
	}
	feeBig, ok := vals[1].(*big.Int)
	if !ok {
		return 0, nil, fmt.Errorf("%w: activateProgram dataFee type %T", ErrCallFailed, vals[1])
	}
	fee, overflow := uint256.FromBig(feeBig)
	if overflow {
		return 0, nil, fmt.Errorf("%w: activateProgram dataFee overflows u256", ErrCallFailed)
	}
	return version, fee, nil
}

// PackArbBlockNumber builds ArbSys.arbBlockNumber calldata.
func PackArbBlockNumber() []byte {
	input, err := arbSysABI.Pack("arbBlockNumber")
	if err != nil {
		panic(err)
	}
	return input
}

// UnpackArbBlockNumber decodes the layer-local block number.
func UnpackArbBlockNumber(output []byte) (uint64, error) {
	vals, err := arbSysABI.Unpack("arbBlockNumber", output)
	if err != nil {
		return 0, fmt.Errorf("%w: arbBlockNumber output: %v", ErrCallFailed, err)
	}
	numBig, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: arbBlockNumber type %T", ErrCallFailed, vals[0])
	}
	num, overflow := uint256.FromBig(numBig)
	if overflow || !num.IsUint64() {
		return 0, fmt.Errorf("%w: arbBlockNumber out of range", ErrCallFailed)
	}
	return num.Uint64(), nil
}
