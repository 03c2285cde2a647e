package tcp

import (
	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/rinzlerlabs/picomodbus/data"
	"github.com/rinzlerlabs/picomodbus/transport"
	"go.uber.org/zap"
)

const mbapLength = 7

type framer struct {
	logger        *zap.Logger
	stream        *transport.Stream
	transactionID uint16
	lastTID       uint16
	requestTID    uint16
}

// NewClientFramer wraps stream with MBAP framing for the client half. The
// transaction counter starts at zero and wraps.
func NewClientFramer(stream *transport.Stream, logger *zap.Logger) transport.Framer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &framer{
		logger: logger,
		stream: stream,
	}
}

// NewServerFramer wraps stream with MBAP framing for the server half.
// Responses echo the transaction id and unit id of the request.
func NewServerFramer(stream *transport.Stream, logger *zap.Logger) transport.Framer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &framer{
		logger: logger,
		stream: stream,
	}
}

func (f *framer) IsBroadcast(unit byte) bool {
	// Broadcast is an RTU notion; every MBAP request expects a reply.
	return false
}

func (f *framer) SendRequest(unit byte, pdu *data.ProtocolDataUnit) error {
	f.transactionID++
	f.lastTID = f.transactionID
	return f.writeFrame(f.lastTID, unit, pdu)
}

func (f *framer) SendResponse(req *transport.Request, pdu *data.ProtocolDataUnit) error {
	return f.writeFrame(f.requestTID, req.UnitID, pdu)
}

func (f *framer) writeFrame(tid uint16, unit byte, pdu *data.ProtocolDataUnit) error {
	length := len(pdu.Data) + 2 // function code plus unit id
	adu := make([]byte, 0, mbapLength+len(pdu.Data)+1)
	adu = append(adu,
		byte(tid>>8), byte(tid),
		0x00, 0x00,
		byte(length>>8), byte(length),
		unit)
	adu = append(adu, pdu.Bytes()...)
	f.logger.Debug("TX", zap.String("bytes", data.EncodeToString(adu)))
	return f.stream.Put(adu)
}

func (f *framer) readFrame() (tid uint16, unit byte, pdu *data.ProtocolDataUnit, err error) {
	f.stream.BeginFrame()
	header, err := f.stream.Get(mbapLength)
	if err != nil {
		return 0, 0, nil, err
	}
	tid = uint16(header[0])<<8 | uint16(header[1])
	protocol := uint16(header[2])<<8 | uint16(header[3])
	length := int(header[4])<<8 | int(header[5])
	unit = header[6]
	if protocol != 0 {
		return 0, 0, nil, common.ErrProtocolIDMismatch
	}
	// length counts the unit id and the PDU.
	if length < 3 || length-1 > data.MaxPDULength {
		return 0, 0, nil, common.ErrInvalidResponse
	}
	body, err := f.stream.Get(length - 1)
	if err != nil {
		return 0, 0, nil, err
	}
	f.logger.Debug("RX", zap.String("bytes", data.EncodeToString(f.stream.Bytes())))
	pdu, err = data.NewProtocolDataUnitFromBytes(body)
	if err != nil {
		return 0, 0, nil, err
	}
	return tid, unit, pdu, nil
}

func (f *framer) ReceiveResponse() (*data.ProtocolDataUnit, error) {
	tid, _, pdu, err := f.readFrame()
	if err != nil {
		return nil, err
	}
	if tid != f.lastTID {
		return nil, common.ErrTransactionIDMismatch
	}
	return pdu, nil
}

func (f *framer) ReceiveRequest() (*transport.Request, error) {
	tid, unit, pdu, err := f.readFrame()
	if err != nil {
		return nil, err
	}
	f.requestTID = tid
	return &transport.Request{
		UnitID: unit,
		PDU:    pdu,
	}, nil
}
