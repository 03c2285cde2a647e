package data

import (
	"testing"

	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/stretchr/testify/assert"
)

func TestFunctionCodeFlags(t *testing.T) {
	assert.False(t, ReadHoldingRegisters.IsException())
	assert.True(t, ReadHoldingRegisters.Exception().IsException())
	assert.Equal(t, FunctionCode(0x83), ReadHoldingRegisters.Exception())
	assert.Equal(t, ReadHoldingRegisters, ReadHoldingRegisters.Exception().Base())
	assert.Equal(t, "ReadHoldingRegisters", ReadHoldingRegisters.Exception().String())
}

func TestFunctionCodeKnown(t *testing.T) {
	for _, f := range []FunctionCode{ReadCoils, ReadDiscreteInputs, ReadHoldingRegisters, ReadInputRegisters,
		WriteSingleCoil, WriteSingleRegister, WriteMultipleCoils, WriteMultipleRegisters} {
		assert.True(t, f.Known(), f.String())
	}
	assert.False(t, FunctionCode(0x07).Known())
	assert.False(t, FunctionCode(0x81).Known())
}

func TestCheckQuantity(t *testing.T) {
	tests := []struct {
		name     string
		function FunctionCode
		quantity uint16
		wantErr  bool
	}{
		{"ReadCoils_Min", ReadCoils, 1, false},
		{"ReadCoils_Max", ReadCoils, 2000, false},
		{"ReadCoils_Zero", ReadCoils, 0, true},
		{"ReadCoils_TooMany", ReadCoils, 2001, true},
		{"ReadHoldingRegisters_Max", ReadHoldingRegisters, 125, false},
		{"ReadHoldingRegisters_TooMany", ReadHoldingRegisters, 126, true},
		{"WriteMultipleCoils_Max", WriteMultipleCoils, 1968, false},
		{"WriteMultipleCoils_TooMany", WriteMultipleCoils, 1969, true},
		{"WriteMultipleRegisters_Max", WriteMultipleRegisters, 123, false},
		{"WriteMultipleRegisters_TooMany", WriteMultipleRegisters, 124, true},
		{"WriteSingleCoil_NoBounds", WriteSingleCoil, 0xFFFF, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.function.CheckQuantity(tt.quantity)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckRange(t *testing.T) {
	assert.NoError(t, CheckRange(0xFFFF, 1))
	assert.NoError(t, CheckRange(0, 2000))
	assert.ErrorIs(t, CheckRange(0xFFFF, 2), common.ErrInvalidArgument)
	assert.ErrorIs(t, CheckRange(0xFF00, 0x0101), common.ErrInvalidArgument)
}
