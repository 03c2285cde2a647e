package client

import (
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/rinzlerlabs/picomodbus/data"
	"github.com/rinzlerlabs/picomodbus/transport"
	"github.com/rinzlerlabs/picomodbus/transport/network/tcp"
	"github.com/rinzlerlabs/picomodbus/transport/serial/rtu"
	"go.uber.org/zap"
)

// Client is the master half of the engine: one method per supported function
// code. A Client is confined to one caller at a time.
type Client struct {
	logger      *zap.Logger
	stream      *transport.Stream
	framer      transport.Framer
	destination byte
}

// Option configures a Client at creation time.
type Option func(*Client)

// WithReadTimeout bounds the wall time of one response. Negative disables
// the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.stream.SetReadTimeout(d) }
}

// WithByteTimeout bounds the wall time between consecutive response bytes.
// Negative disables the deadline.
func WithByteTimeout(d time.Duration) Option {
	return func(c *Client) { c.stream.SetByteTimeout(d) }
}

// WithByteSpacing enforces a pause between transmitted bytes. The pause is
// applied on TCP as well as on RTU.
func WithByteSpacing(d time.Duration) Option {
	return func(c *Client) { c.stream.SetByteSpacing(d) }
}

// WithDestination sets the initial unit id requests are addressed to.
func WithDestination(unit byte) Option {
	return func(c *Client) { c.destination = unit }
}

// NewRTU creates a client speaking MODBUS-RTU over conn.
func NewRTU(conn transport.Conn, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	stream := transport.NewStream(conn, logger)
	c := &Client{
		logger:      logger,
		stream:      stream,
		framer:      rtu.NewClientFramer(stream, logger),
		destination: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewTCP creates a client speaking MODBUS-TCP over conn.
func NewTCP(conn transport.Conn, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	stream := transport.NewStream(conn, logger)
	c := &Client{
		logger:      logger,
		stream:      stream,
		framer:      tcp.NewClientFramer(stream, logger),
		destination: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDestination changes the unit id subsequent requests are addressed to.
// On RTU, 0 is the broadcast address.
func (c *Client) SetDestination(unit byte) error {
	if unit > transport.MaxUnitAddress {
		return common.ErrInvalidArgument
	}
	c.destination = unit
	return nil
}

// SetReadTimeout bounds the wall time of one response. Negative disables
// the deadline.
func (c *Client) SetReadTimeout(d time.Duration) {
	c.stream.SetReadTimeout(d)
}

// SetByteTimeout bounds the wall time between consecutive response bytes.
// Negative disables the deadline.
func (c *Client) SetByteTimeout(d time.Duration) {
	c.stream.SetByteTimeout(d)
}

// SetByteSpacing enforces a pause between transmitted bytes. The pause is
// applied on TCP as well as on RTU.
func (c *Client) SetByteSpacing(d time.Duration) {
	c.stream.SetByteSpacing(d)
}

func (c *Client) checkRead(function data.FunctionCode, offset, quantity uint16) error {
	if c.framer.IsBroadcast(c.destination) {
		// A broadcast read has no peer to answer it.
		return common.ErrInvalidArgument
	}
	if err := function.CheckQuantity(quantity); err != nil {
		return err
	}
	return data.CheckRange(offset, quantity)
}

// exchange sends a request PDU and returns the validated response body for
// the same function code. A nil body with a nil error means the request was
// a broadcast and no response is expected.
func (c *Client) exchange(pdu *data.ProtocolDataUnit) ([]byte, error) {
	if err := c.framer.SendRequest(c.destination, pdu); err != nil {
		return nil, err
	}
	if c.framer.IsBroadcast(c.destination) {
		return nil, nil
	}
	resp, err := c.framer.ReceiveResponse()
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Response", zap.Object("PDU", resp))
	if resp.Function == pdu.Function.Exception() {
		if len(resp.Data) != 1 {
			return nil, common.ErrInvalidResponse
		}
		exception := common.Exception(resp.Data[0])
		if !exception.Valid() {
			return nil, common.ErrUnknownExceptionCode
		}
		return nil, exception
	}
	if resp.Function != pdu.Function {
		return nil, common.ErrUnexpectedFunction
	}
	return resp.Data, nil
}

func (c *Client) readBits(function data.FunctionCode, req interface{ Bytes() []byte }, offset, quantity uint16) ([]bool, error) {
	if err := c.checkRead(function, offset, quantity); err != nil {
		return nil, err
	}
	body, err := c.exchange(&data.ProtocolDataUnit{Function: function, Data: req.Bytes()})
	if err != nil {
		return nil, err
	}
	return data.ParseBitsResponse(body, quantity)
}

func (c *Client) readRegisters(function data.FunctionCode, req interface{ Bytes() []byte }, offset, quantity uint16) ([]uint16, error) {
	if err := c.checkRead(function, offset, quantity); err != nil {
		return nil, err
	}
	body, err := c.exchange(&data.ProtocolDataUnit{Function: function, Data: req.Bytes()})
	if err != nil {
		return nil, err
	}
	return data.ParseRegistersResponse(body, quantity)
}

// ReadCoils reads the status of quantity coils starting at offset.
func (c *Client) ReadCoils(offset, quantity uint16) ([]bool, error) {
	return c.readBits(data.ReadCoils, data.NewReadCoilsRequest(offset, quantity), offset, quantity)
}

// ReadDiscreteInputs reads the status of quantity discrete inputs starting
// at offset.
func (c *Client) ReadDiscreteInputs(offset, quantity uint16) ([]bool, error) {
	return c.readBits(data.ReadDiscreteInputs, data.NewReadDiscreteInputsRequest(offset, quantity), offset, quantity)
}

// ReadHoldingRegisters reads the contents of quantity holding registers
// starting at offset.
func (c *Client) ReadHoldingRegisters(offset, quantity uint16) ([]uint16, error) {
	return c.readRegisters(data.ReadHoldingRegisters, data.NewReadHoldingRegistersRequest(offset, quantity), offset, quantity)
}

// ReadInputRegisters reads the contents of quantity input registers starting
// at offset.
func (c *Client) ReadInputRegisters(offset, quantity uint16) ([]uint16, error) {
	return c.readRegisters(data.ReadInputRegisters, data.NewReadInputRegistersRequest(offset, quantity), offset, quantity)
}

// WriteSingleCoil writes one coil at offset.
func (c *Client) WriteSingleCoil(offset uint16, value bool) error {
	req := data.NewWriteSingleCoilRequest(offset, value)
	body, err := c.exchange(&data.ProtocolDataUnit{Function: data.WriteSingleCoil, Data: req.Bytes()})
	if err != nil || body == nil {
		return err
	}
	echoOffset, echoValue, err := data.ParseWriteSingleResponse(body)
	if err != nil {
		return err
	}
	wireValue := data.CoilOff
	if value {
		wireValue = data.CoilOn
	}
	if echoOffset != offset || echoValue != wireValue {
		return common.ErrResponseEchoMismatch
	}
	return nil
}

// WriteSingleRegister writes one holding register at offset.
func (c *Client) WriteSingleRegister(offset, value uint16) error {
	req := data.NewWriteSingleRegisterRequest(offset, value)
	body, err := c.exchange(&data.ProtocolDataUnit{Function: data.WriteSingleRegister, Data: req.Bytes()})
	if err != nil || body == nil {
		return err
	}
	echoOffset, echoValue, err := data.ParseWriteSingleResponse(body)
	if err != nil {
		return err
	}
	if echoOffset != offset || echoValue != value {
		return common.ErrResponseEchoMismatch
	}
	return nil
}

// WriteMultipleCoils writes len(values) coils starting at offset.
func (c *Client) WriteMultipleCoils(offset uint16, values []bool) error {
	quantity := uint16(len(values))
	if err := data.WriteMultipleCoils.CheckQuantity(quantity); err != nil {
		return err
	}
	if err := data.CheckRange(offset, quantity); err != nil {
		return err
	}
	req := data.NewWriteMultipleCoilsRequest(offset, values)
	body, err := c.exchange(&data.ProtocolDataUnit{Function: data.WriteMultipleCoils, Data: req.Bytes()})
	if err != nil || body == nil {
		return err
	}
	echoOffset, echoQuantity, err := data.ParseWriteMultipleResponse(body)
	if err != nil {
		return err
	}
	if echoOffset != offset || echoQuantity != quantity {
		return common.ErrResponseEchoMismatch
	}
	return nil
}

// WriteMultipleRegisters writes len(values) holding registers starting at
// offset.
func (c *Client) WriteMultipleRegisters(offset uint16, values []uint16) error {
	quantity := uint16(len(values))
	if err := data.WriteMultipleRegisters.CheckQuantity(quantity); err != nil {
		return err
	}
	if err := data.CheckRange(offset, quantity); err != nil {
		return err
	}
	req := data.NewWriteMultipleRegistersRequest(offset, values)
	body, err := c.exchange(&data.ProtocolDataUnit{Function: data.WriteMultipleRegisters, Data: req.Bytes()})
	if err != nil || body == nil {
		return err
	}
	echoOffset, echoQuantity, err := data.ParseWriteMultipleResponse(body)
	if err != nil {
		return err
	}
	if echoOffset != offset || echoQuantity != quantity {
		return common.ErrResponseEchoMismatch
	}
	return nil
}
