package rtu

import (
	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/rinzlerlabs/picomodbus/data"
	"github.com/rinzlerlabs/picomodbus/transport"
	"go.uber.org/zap"
)

type framer struct {
	logger       *zap.Logger
	stream       *transport.Stream
	ownAddress   byte
	lastUnit     byte
	lastFunction data.FunctionCode
	broadcast    bool
}

// NewClientFramer wraps stream with RTU framing for the client half.
func NewClientFramer(stream *transport.Stream, logger *zap.Logger) transport.Framer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &framer{
		logger: logger,
		stream: stream,
	}
}

// NewServerFramer wraps stream with RTU framing for the server half.
// ownAddress must be 1..247; an RTU server cannot own the broadcast address.
func NewServerFramer(stream *transport.Stream, logger *zap.Logger, ownAddress byte) (transport.Framer, error) {
	if ownAddress == transport.BroadcastAddress || ownAddress > transport.MaxUnitAddress {
		return nil, common.ErrInvalidArgument
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &framer{
		logger:     logger,
		stream:     stream,
		ownAddress: ownAddress,
	}, nil
}

func (f *framer) IsBroadcast(unit byte) bool {
	return unit == transport.BroadcastAddress
}

func (f *framer) SendRequest(unit byte, pdu *data.ProtocolDataUnit) error {
	if unit > transport.MaxUnitAddress {
		return common.ErrInvalidArgument
	}
	f.lastUnit = unit
	f.lastFunction = pdu.Function
	f.broadcast = unit == transport.BroadcastAddress
	return f.writeFrame(unit, pdu)
}

func (f *framer) SendResponse(req *transport.Request, pdu *data.ProtocolDataUnit) error {
	if req.Broadcast {
		return nil
	}
	return f.writeFrame(f.ownAddress, pdu)
}

func (f *framer) writeFrame(unit byte, pdu *data.ProtocolDataUnit) error {
	adu := make([]byte, 0, len(pdu.Data)+4)
	adu = append(adu, unit)
	adu = append(adu, pdu.Bytes()...)
	crc := Checksum(adu)
	adu = append(adu, byte(crc), byte(crc>>8))
	f.logger.Debug("TX", zap.String("bytes", data.EncodeToString(adu)))
	return f.stream.Put(adu)
}

func (f *framer) ReceiveResponse() (*data.ProtocolDataUnit, error) {
	if f.broadcast {
		return nil, nil
	}
	f.stream.BeginFrame()
	header, err := f.stream.Get(2)
	if err != nil {
		return nil, err
	}
	unit := header[0]
	function := data.FunctionCode(header[1])
	switch {
	case function == f.lastFunction.Exception():
		if _, err := f.stream.Get(1); err != nil {
			return nil, err
		}
	case function == f.lastFunction:
		if err := f.readResponseBody(function); err != nil {
			return nil, err
		}
	default:
		return nil, common.ErrUnexpectedFunction
	}
	if err := f.readChecksum(); err != nil {
		return nil, err
	}
	frame := f.stream.Bytes()
	f.logger.Debug("RX", zap.String("bytes", data.EncodeToString(frame)))
	if unit != f.lastUnit {
		return nil, common.ErrInvalidResponse
	}
	return data.NewProtocolDataUnitFromBytes(frame[1 : len(frame)-2])
}

func (f *framer) readResponseBody(function data.FunctionCode) error {
	switch function {
	case data.ReadCoils, data.ReadDiscreteInputs, data.ReadHoldingRegisters, data.ReadInputRegisters:
		count, err := f.stream.Get(1)
		if err != nil {
			return err
		}
		_, err = f.stream.Get(int(count[0]))
		return err
	case data.WriteSingleCoil, data.WriteSingleRegister, data.WriteMultipleCoils, data.WriteMultipleRegisters:
		_, err := f.stream.Get(4)
		return err
	default:
		return common.ErrUnexpectedFunction
	}
}

func (f *framer) readChecksum() error {
	if _, err := f.stream.Get(2); err != nil {
		return err
	}
	frame := f.stream.Bytes()
	crc := Checksum(frame[:len(frame)-2])
	if frame[len(frame)-2] != byte(crc) || frame[len(frame)-1] != byte(crc>>8) {
		return common.ErrInvalidChecksum
	}
	return nil
}

func (f *framer) ReceiveRequest() (*transport.Request, error) {
	f.stream.BeginFrame()
	header, err := f.stream.Get(2)
	if err != nil {
		return nil, err
	}
	unit := header[0]
	function := data.FunctionCode(header[1])
	ours := unit == f.ownAddress || unit == transport.BroadcastAddress
	if !function.Known() {
		// The body length of an unknown function is unknowable, so the
		// checksum cannot be located. Answer Illegal Function if the
		// frame was for us, drop it otherwise.
		f.logger.Debug("Unknown function code", zap.Uint8("function", byte(function)))
		if !ours {
			return nil, nil
		}
		return &transport.Request{
			UnitID:    unit,
			PDU:       &data.ProtocolDataUnit{Function: function},
			Broadcast: unit == transport.BroadcastAddress,
		}, nil
	}
	if err := f.readRequestBody(function); err != nil {
		return nil, err
	}
	frame := f.stream.Bytes()
	crc := Checksum(frame)
	crcBytes, err := f.stream.Get(2)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("RX", zap.String("bytes", data.EncodeToString(f.stream.Bytes())))
	if crcBytes[0] != byte(crc) || crcBytes[1] != byte(crc>>8) {
		if !ours {
			return nil, nil
		}
		return nil, common.ErrInvalidChecksum
	}
	if !ours {
		f.logger.Debug("Ignoring frame for another unit", zap.Uint8("unit", unit))
		return nil, nil
	}
	pdu, err := data.NewProtocolDataUnitFromBytes(frame[1:])
	if err != nil {
		return nil, err
	}
	return &transport.Request{
		UnitID:    unit,
		PDU:       pdu,
		Broadcast: unit == transport.BroadcastAddress,
	}, nil
}

func (f *framer) readRequestBody(function data.FunctionCode) error {
	switch function {
	case data.ReadCoils, data.ReadDiscreteInputs, data.ReadHoldingRegisters, data.ReadInputRegisters,
		data.WriteSingleCoil, data.WriteSingleRegister:
		_, err := f.stream.Get(4)
		return err
	case data.WriteMultipleCoils, data.WriteMultipleRegisters:
		head, err := f.stream.Get(5)
		if err != nil {
			return err
		}
		_, err = f.stream.Get(int(head[4]))
		return err
	default:
		return common.ErrUnexpectedFunction
	}
}
