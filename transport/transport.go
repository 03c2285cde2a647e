package transport

import (
	"time"

	"github.com/rinzlerlabs/picomodbus/data"
	"go.uber.org/zap/zapcore"
)

// MaxADULength bounds a fully framed message on any transport; the message
// buffer never grows past it.
const MaxADULength = 260

// BroadcastAddress is the RTU unit id that addresses every server at once.
const BroadcastAddress byte = 0

// MaxUnitAddress is the highest assignable RTU unit id.
const MaxUnitAddress byte = 247

// NoTimeout disables a deadline when passed as a timeout.
const NoTimeout = time.Duration(-1)

// Conn is the byte-oriented platform transport supplied by the caller. It is
// the only place the engine blocks.
//
// A negative timeout means block without a deadline. ReadByte returns
// common.ErrTimeout when no byte arrived in time; any other error is treated
// as a transport failure. WriteByte must either write the byte or fail, a
// partial outcome is a transport failure.
type Conn interface {
	ReadByte(timeout time.Duration) (byte, error)
	WriteByte(b byte, timeout time.Duration) error
	Sleep(d time.Duration)
}

// Request is one server-bound frame: unit addressing plus the PDU. Broadcast
// requests are dispatched but answered by nobody.
type Request struct {
	UnitID    byte
	PDU       *data.ProtocolDataUnit
	Broadcast bool
}

func (r *Request) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint8("UnitID", r.UnitID)
	encoder.AddBool("Broadcast", r.Broadcast)
	return encoder.AddObject("PDU", r.PDU)
}

// Framer serialises and deserialises the transport envelope around a PDU.
// Implementations hold the in-flight message state of one engine instance
// and must be confined to one caller at a time.
type Framer interface {
	// SendRequest frames and transmits a request PDU to unit.
	SendRequest(unit byte, pdu *data.ProtocolDataUnit) error
	// ReceiveResponse reads and validates the reply to the last request
	// sent. The returned PDU may be an exception response.
	ReceiveResponse() (*data.ProtocolDataUnit, error)
	// ReceiveRequest reads one incoming frame on the server side. A nil
	// request with a nil error means the frame was consumed but is not
	// ours to answer.
	ReceiveRequest() (*Request, error)
	// SendResponse frames and transmits a response PDU matching req.
	SendResponse(req *Request, pdu *data.ProtocolDataUnit) error
	// IsBroadcast reports whether unit addresses every peer on this
	// transport.
	IsBroadcast(unit byte) bool
}
