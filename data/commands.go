package data

import "github.com/rinzlerlabs/picomodbus/common"

type FunctionCode byte

const (
	ReadCoils              FunctionCode = 0x01
	ReadDiscreteInputs     FunctionCode = 0x02
	ReadHoldingRegisters   FunctionCode = 0x03
	ReadInputRegisters     FunctionCode = 0x04
	WriteSingleCoil        FunctionCode = 0x05
	WriteSingleRegister    FunctionCode = 0x06
	WriteMultipleCoils     FunctionCode = 0x0F
	WriteMultipleRegisters FunctionCode = 0x10
)

const exceptionFlag byte = 0x80

// Quantity bounds per function code group.
const (
	MaxReadBits       = 2000
	MaxReadRegisters  = 125
	MaxWriteBits      = 1968
	MaxWriteRegisters = 123
)

// MaxAddressSpace is the number of addressable items per table; offset plus
// quantity may not run past it.
const MaxAddressSpace = 0x10000

func (f FunctionCode) String() string {
	switch f.Base() {
	case ReadCoils:
		return "ReadCoils"
	case ReadDiscreteInputs:
		return "ReadDiscreteInputs"
	case ReadHoldingRegisters:
		return "ReadHoldingRegisters"
	case ReadInputRegisters:
		return "ReadInputRegisters"
	case WriteSingleCoil:
		return "WriteSingleCoil"
	case WriteSingleRegister:
		return "WriteSingleRegister"
	case WriteMultipleCoils:
		return "WriteMultipleCoils"
	case WriteMultipleRegisters:
		return "WriteMultipleRegisters"
	default:
		return "Unknown"
	}
}

// IsException reports whether f carries the response error flag.
func (f FunctionCode) IsException() bool {
	return byte(f)&exceptionFlag != 0
}

// Exception returns f with the response error flag set.
func (f FunctionCode) Exception() FunctionCode {
	return FunctionCode(byte(f) | exceptionFlag)
}

// Base returns f with the response error flag cleared.
func (f FunctionCode) Base() FunctionCode {
	return FunctionCode(byte(f) &^ exceptionFlag)
}

// Known reports whether f is one of the eight supported function codes.
func (f FunctionCode) Known() bool {
	switch f {
	case ReadCoils, ReadDiscreteInputs, ReadHoldingRegisters, ReadInputRegisters,
		WriteSingleCoil, WriteSingleRegister, WriteMultipleCoils, WriteMultipleRegisters:
		return true
	default:
		return false
	}
}

// CheckQuantity validates quantity against the bounds of f. Function codes
// without a quantity field accept anything.
func (f FunctionCode) CheckQuantity(quantity uint16) error {
	var max int
	switch f {
	case ReadCoils, ReadDiscreteInputs:
		max = MaxReadBits
	case ReadHoldingRegisters, ReadInputRegisters:
		max = MaxReadRegisters
	case WriteMultipleCoils:
		max = MaxWriteBits
	case WriteMultipleRegisters:
		max = MaxWriteRegisters
	default:
		return nil
	}
	if quantity < 1 || int(quantity) > max {
		return common.ErrInvalidArgument
	}
	return nil
}

// CheckRange validates that offset plus quantity stays inside the 16-bit
// address space.
func CheckRange(offset, quantity uint16) error {
	if int(offset)+int(quantity) > MaxAddressSpace {
		return common.ErrInvalidArgument
	}
	return nil
}
