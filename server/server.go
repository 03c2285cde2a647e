package server

import (
	"context"
	"errors"
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/rinzlerlabs/picomodbus/data"
	"github.com/rinzlerlabs/picomodbus/transport"
	"github.com/rinzlerlabs/picomodbus/transport/network/tcp"
	"github.com/rinzlerlabs/picomodbus/transport/serial/rtu"
	"go.uber.org/zap"
)

// Server is the slave half of the engine. Poll processes one frame; Serve
// loops Poll. A Server is confined to one caller at a time.
type Server struct {
	logger   *zap.Logger
	stream   *transport.Stream
	framer   transport.Framer
	handlers Handlers
}

// Option configures a Server at creation time.
type Option func(*Server)

// WithReadTimeout bounds the wall time of one incoming frame. Negative
// disables the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.stream.SetReadTimeout(d) }
}

// WithByteTimeout bounds the wall time between consecutive frame bytes.
// Negative disables the deadline.
func WithByteTimeout(d time.Duration) Option {
	return func(s *Server) { s.stream.SetByteTimeout(d) }
}

// WithByteSpacing enforces a pause between transmitted bytes. The pause is
// applied on TCP as well as on RTU.
func WithByteSpacing(d time.Duration) Option {
	return func(s *Server) { s.stream.SetByteSpacing(d) }
}

// NewRTU creates a server speaking MODBUS-RTU over conn, answering to
// ownAddress (1..247) and to broadcast.
func NewRTU(conn transport.Conn, logger *zap.Logger, ownAddress byte, handlers Handlers, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	stream := transport.NewStream(conn, logger)
	framer, err := rtu.NewServerFramer(stream, logger, ownAddress)
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:   logger,
		stream:   stream,
		framer:   framer,
		handlers: handlers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewTCP creates a server speaking MODBUS-TCP over conn. Responses echo the
// unit id of each request.
func NewTCP(conn transport.Conn, logger *zap.Logger, handlers Handlers, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	stream := transport.NewStream(conn, logger)
	s := &Server{
		logger:   logger,
		stream:   stream,
		framer:   tcp.NewServerFramer(stream, logger),
		handlers: handlers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Poll processes one frame: receive, dispatch, respond. Frames addressed to
// another unit are consumed and return nil with no action. Handler errors
// that are not protocol exceptions propagate without a response being sent.
func (s *Server) Poll() error {
	req, err := s.framer.ReceiveRequest()
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}
	s.logger.Debug("Request", zap.Object("Frame", req))
	resp, err := s.dispatch(req)
	if err != nil {
		s.logger.Error("Handler failed", zap.Error(err))
		return err
	}
	if req.Broadcast {
		// Broadcast requests are answered by nobody; exceptions are
		// suppressed along with normal responses.
		return nil
	}
	s.logger.Debug("Response", zap.Object("PDU", resp))
	return s.framer.SendResponse(req, resp)
}

// Serve loops Poll until ctx is cancelled, the transport fails, or a handler
// returns an error that is not a protocol exception. Malformed frames are
// logged and skipped; polls that time out are skipped without logging.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.Poll()
		switch {
		case err == nil:
		case errors.Is(err, common.ErrTimeout):
		case errors.Is(err, common.ErrInvalidResponse):
			s.logger.Debug("Dropped frame", zap.Error(err))
		default:
			return err
		}
	}
}

func (s *Server) dispatch(req *transport.Request) (*data.ProtocolDataUnit, error) {
	pdu := req.PDU
	function := pdu.Function
	exception := func(e common.Exception) *data.ProtocolDataUnit {
		s.logger.Debug("Answering exception", zap.String("Function", function.String()), zap.String("Exception", e.String()))
		return data.NewExceptionResponse(function, e)
	}
	respond := func(body []byte, err error) (*data.ProtocolDataUnit, error) {
		if e, ok := common.AsException(err); ok {
			return exception(e), nil
		}
		if err != nil {
			return nil, err
		}
		return &data.ProtocolDataUnit{Function: function, Data: body}, nil
	}

	switch function {
	case data.ReadCoils, data.ReadDiscreteInputs:
		handler := s.handlers.ReadCoils
		if function == data.ReadDiscreteInputs {
			handler = s.handlers.ReadDiscreteInputs
		}
		if handler == nil {
			return exception(common.ExceptionIllegalFunction), nil
		}
		offset, count, err := data.ParseReadRequest(pdu.Data)
		if err != nil || function.CheckQuantity(count) != nil {
			return exception(common.ExceptionIllegalDataValue), nil
		}
		if data.CheckRange(offset, count) != nil {
			return exception(common.ExceptionIllegalDataAddress), nil
		}
		bits := &data.Bitfield{}
		if err := handler(offset, count, bits); err != nil {
			return respond(nil, err)
		}
		return respond(data.BitsResponseBytes(bits, count), nil)

	case data.ReadHoldingRegisters, data.ReadInputRegisters:
		handler := s.handlers.ReadHoldingRegisters
		if function == data.ReadInputRegisters {
			handler = s.handlers.ReadInputRegisters
		}
		if handler == nil {
			return exception(common.ExceptionIllegalFunction), nil
		}
		offset, count, err := data.ParseReadRequest(pdu.Data)
		if err != nil || function.CheckQuantity(count) != nil {
			return exception(common.ExceptionIllegalDataValue), nil
		}
		if data.CheckRange(offset, count) != nil {
			return exception(common.ExceptionIllegalDataAddress), nil
		}
		registers := make([]uint16, count)
		if err := handler(offset, count, registers); err != nil {
			return respond(nil, err)
		}
		return respond(data.RegistersResponseBytes(registers), nil)

	case data.WriteSingleCoil:
		if s.handlers.WriteSingleCoil == nil {
			return exception(common.ExceptionIllegalFunction), nil
		}
		offset, value, err := data.ParseWriteSingleRequest(pdu.Data)
		if err != nil || (value != data.CoilOn && value != data.CoilOff) {
			return exception(common.ExceptionIllegalDataValue), nil
		}
		if err := s.handlers.WriteSingleCoil(offset, value == data.CoilOn); err != nil {
			return respond(nil, err)
		}
		return respond(data.WriteSingleResponseBytes(offset, value), nil)

	case data.WriteSingleRegister:
		if s.handlers.WriteSingleRegister == nil {
			return exception(common.ExceptionIllegalFunction), nil
		}
		offset, value, err := data.ParseWriteSingleRequest(pdu.Data)
		if err != nil {
			return exception(common.ExceptionIllegalDataValue), nil
		}
		if err := s.handlers.WriteSingleRegister(offset, value); err != nil {
			return respond(nil, err)
		}
		return respond(data.WriteSingleResponseBytes(offset, value), nil)

	case data.WriteMultipleCoils:
		if s.handlers.WriteMultipleCoils == nil {
			return exception(common.ExceptionIllegalFunction), nil
		}
		offset, quantity, values, err := data.ParseWriteMultipleCoilsRequest(pdu.Data)
		if err != nil {
			return exception(common.ExceptionIllegalDataValue), nil
		}
		if data.CheckRange(offset, quantity) != nil {
			return exception(common.ExceptionIllegalDataAddress), nil
		}
		if err := s.handlers.WriteMultipleCoils(offset, quantity, values); err != nil {
			return respond(nil, err)
		}
		return respond(data.WriteMultipleResponseBytes(offset, quantity), nil)

	case data.WriteMultipleRegisters:
		if s.handlers.WriteMultipleRegisters == nil {
			return exception(common.ExceptionIllegalFunction), nil
		}
		offset, values, err := data.ParseWriteMultipleRegistersRequest(pdu.Data)
		if err != nil {
			return exception(common.ExceptionIllegalDataValue), nil
		}
		quantity := uint16(len(values))
		if data.CheckRange(offset, quantity) != nil {
			return exception(common.ExceptionIllegalDataAddress), nil
		}
		if err := s.handlers.WriteMultipleRegisters(offset, values); err != nil {
			return respond(nil, err)
		}
		return respond(data.WriteMultipleResponseBytes(offset, quantity), nil)

	default:
		return exception(common.ExceptionIllegalFunction), nil
	}
}
