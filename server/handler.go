package server

import (
	"sync"

	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/rinzlerlabs/picomodbus/data"
	"go.uber.org/zap"
)

// Handlers is the record of request callbacks a Server dispatches to, one
// field per function code group. A nil field answers Illegal Function.
//
// Return contract: nil produces a normal response, a common.Exception
// produces an exception response, any other error aborts the poll without a
// response being sent.
type Handlers struct {
	// ReadCoils fills bits with quantity coil states starting at offset.
	ReadCoils func(offset, quantity uint16, bits *data.Bitfield) error
	// ReadDiscreteInputs fills bits with quantity input states starting
	// at offset.
	ReadDiscreteInputs func(offset, quantity uint16, bits *data.Bitfield) error
	// ReadHoldingRegisters fills registers, len(registers) == quantity.
	ReadHoldingRegisters func(offset, quantity uint16, registers []uint16) error
	// ReadInputRegisters fills registers, len(registers) == quantity.
	ReadInputRegisters func(offset, quantity uint16, registers []uint16) error
	// WriteSingleCoil sets one coil.
	WriteSingleCoil func(offset uint16, value bool) error
	// WriteSingleRegister sets one holding register.
	WriteSingleRegister func(offset, value uint16) error
	// WriteMultipleCoils sets quantity coils from the packed bits.
	WriteMultipleCoils func(offset, quantity uint16, bits *data.Bitfield) error
	// WriteMultipleRegisters sets len(values) holding registers.
	WriteMultipleRegisters func(offset uint16, values []uint16) error
}

// Default table sizes of a DefaultHandler.
const (
	DefaultCoilCount            = 65536
	DefaultDiscreteInputCount   = 65536
	DefaultHoldingRegisterCount = 65536
	DefaultInputRegisterCount   = 65536
)

// DefaultHandler is a datastore-backed implementation of all eight
// callbacks. Access out of table range answers Illegal Data Address.
type DefaultHandler struct {
	logger           *zap.Logger
	mu               sync.RWMutex
	Coils            []bool
	DiscreteInputs   []bool
	HoldingRegisters []uint16
	InputRegisters   []uint16
}

// NewDefaultHandler creates a DefaultHandler with the specified table sizes.
// A zero count selects the full address space for that table.
func NewDefaultHandler(logger *zap.Logger, coilCount, discreteInputCount, holdingRegisterCount, inputRegisterCount int) *DefaultHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if coilCount <= 0 {
		coilCount = DefaultCoilCount
	}
	if discreteInputCount <= 0 {
		discreteInputCount = DefaultDiscreteInputCount
	}
	if holdingRegisterCount <= 0 {
		holdingRegisterCount = DefaultHoldingRegisterCount
	}
	if inputRegisterCount <= 0 {
		inputRegisterCount = DefaultInputRegisterCount
	}
	return &DefaultHandler{
		logger:           logger,
		Coils:            make([]bool, coilCount),
		DiscreteInputs:   make([]bool, discreteInputCount),
		HoldingRegisters: make([]uint16, holdingRegisterCount),
		InputRegisters:   make([]uint16, inputRegisterCount),
	}
}

// Handlers wires all eight callbacks to the datastore.
func (h *DefaultHandler) Handlers() Handlers {
	return Handlers{
		ReadCoils:              h.ReadCoils,
		ReadDiscreteInputs:     h.ReadDiscreteInputs,
		ReadHoldingRegisters:   h.ReadHoldingRegisters,
		ReadInputRegisters:     h.ReadInputRegisters,
		WriteSingleCoil:        h.WriteSingleCoil,
		WriteSingleRegister:    h.WriteSingleRegister,
		WriteMultipleCoils:     h.WriteMultipleCoils,
		WriteMultipleRegisters: h.WriteMultipleRegisters,
	}
}

func readBits(table []bool, offset, quantity uint16, bits *data.Bitfield) error {
	if int(offset)+int(quantity) > len(table) {
		return common.ExceptionIllegalDataAddress
	}
	for i, v := range table[int(offset) : int(offset)+int(quantity)] {
		bits.SetBit(i, v)
	}
	return nil
}

func (h *DefaultHandler) ReadCoils(offset, quantity uint16, bits *data.Bitfield) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.logger.Debug("ReadCoils", zap.Uint16("Offset", offset), zap.Uint16("Quantity", quantity))
	return readBits(h.Coils, offset, quantity, bits)
}

func (h *DefaultHandler) ReadDiscreteInputs(offset, quantity uint16, bits *data.Bitfield) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.logger.Debug("ReadDiscreteInputs", zap.Uint16("Offset", offset), zap.Uint16("Quantity", quantity))
	return readBits(h.DiscreteInputs, offset, quantity, bits)
}

func (h *DefaultHandler) ReadHoldingRegisters(offset, quantity uint16, registers []uint16) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.logger.Debug("ReadHoldingRegisters", zap.Uint16("Offset", offset), zap.Uint16("Quantity", quantity))
	if int(offset)+int(quantity) > len(h.HoldingRegisters) {
		return common.ExceptionIllegalDataAddress
	}
	copy(registers, h.HoldingRegisters[int(offset):int(offset)+int(quantity)])
	return nil
}

func (h *DefaultHandler) ReadInputRegisters(offset, quantity uint16, registers []uint16) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.logger.Debug("ReadInputRegisters", zap.Uint16("Offset", offset), zap.Uint16("Quantity", quantity))
	if int(offset)+int(quantity) > len(h.InputRegisters) {
		return common.ExceptionIllegalDataAddress
	}
	copy(registers, h.InputRegisters[int(offset):int(offset)+int(quantity)])
	return nil
}

func (h *DefaultHandler) WriteSingleCoil(offset uint16, value bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("WriteSingleCoil", zap.Uint16("Offset", offset), zap.Bool("Value", value))
	if int(offset) >= len(h.Coils) {
		return common.ExceptionIllegalDataAddress
	}
	h.Coils[offset] = value
	return nil
}

func (h *DefaultHandler) WriteSingleRegister(offset, value uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("WriteSingleRegister", zap.Uint16("Offset", offset), zap.Uint16("Value", value))
	if int(offset) >= len(h.HoldingRegisters) {
		return common.ExceptionIllegalDataAddress
	}
	h.HoldingRegisters[offset] = value
	return nil
}

func (h *DefaultHandler) WriteMultipleCoils(offset, quantity uint16, bits *data.Bitfield) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("WriteMultipleCoils", zap.Uint16("Offset", offset), zap.Uint16("Quantity", quantity))
	if int(offset)+int(quantity) > len(h.Coils) {
		return common.ExceptionIllegalDataAddress
	}
	for i := 0; i < int(quantity); i++ {
		h.Coils[int(offset)+i] = bits.Bit(i)
	}
	return nil
}

func (h *DefaultHandler) WriteMultipleRegisters(offset uint16, values []uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Debug("WriteMultipleRegisters", zap.Uint16("Offset", offset), zap.Int("Quantity", len(values)))
	if int(offset)+len(values) > len(h.HoldingRegisters) {
		return common.ExceptionIllegalDataAddress
	}
	copy(h.HoldingRegisters[offset:], values)
	return nil
}
