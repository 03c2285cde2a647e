package rtu

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/rinzlerlabs/picomodbus/data"
	"github.com/rinzlerlabs/picomodbus/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"
)

type fakeConn struct {
	readData []byte
	reads    int
	written  []byte
}

func (f *fakeConn) ReadByte(timeout time.Duration) (byte, error) {
	if len(f.readData) == 0 {
		return 0, common.ErrTimeout
	}
	b := f.readData[0]
	f.readData = f.readData[1:]
	f.reads++
	return b, nil
}

func (f *fakeConn) WriteByte(b byte, timeout time.Duration) error {
	f.written = append(f.written, b)
	return nil
}

func (f *fakeConn) Sleep(d time.Duration) {}

func appendChecksum(frame []byte) []byte {
	crc := Checksum(frame)
	return append(frame, byte(crc), byte(crc>>8))
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, uint16(0xCDC5), Checksum([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A}))
}

func TestSendRequestWireFormat(t *testing.T) {
	conn := &fakeConn{}
	framer := NewClientFramer(transport.NewStream(conn, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	err := framer.SendRequest(0x01, &data.ProtocolDataUnit{
		Function: data.ReadHoldingRegisters,
		Data:     []byte{0x00, 0x00, 0x00, 0x02},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xC4, 0x0B}, conn.written)
}

func TestSendRequestInvalidUnit(t *testing.T) {
	conn := &fakeConn{}
	framer := NewClientFramer(transport.NewStream(conn, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	err := framer.SendRequest(248, &data.ProtocolDataUnit{Function: data.ReadCoils, Data: []byte{0x00, 0x00, 0x00, 0x01}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	assert.Empty(t, conn.written)
}

func sendReadHoldingRegisters(t *testing.T, conn *fakeConn) transport.Framer {
	framer := NewClientFramer(transport.NewStream(conn, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	err := framer.SendRequest(0x01, &data.ProtocolDataUnit{
		Function: data.ReadHoldingRegisters,
		Data:     []byte{0x00, 0x00, 0x00, 0x02},
	})
	require.NoError(t, err)
	return framer
}

func TestReceiveResponse(t *testing.T) {
	conn := &fakeConn{}
	framer := sendReadHoldingRegisters(t, conn)
	conn.readData = appendChecksum([]byte{0x01, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x02})
	pdu, err := framer.ReceiveResponse()
	require.NoError(t, err)
	assert.Equal(t, data.ReadHoldingRegisters, pdu.Function)
	assert.Equal(t, []byte{0x04, 0x00, 0x0A, 0x01, 0x02}, pdu.Data)
}

func TestReceiveResponseInvalidChecksum(t *testing.T) {
	conn := &fakeConn{}
	framer := sendReadHoldingRegisters(t, conn)
	response := appendChecksum([]byte{0x01, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x02})
	response[len(response)-1] ^= 0x01
	conn.readData = response
	_, err := framer.ReceiveResponse()
	assert.ErrorIs(t, err, common.ErrInvalidChecksum)
}

func TestReceiveResponseWrongUnit(t *testing.T) {
	conn := &fakeConn{}
	framer := sendReadHoldingRegisters(t, conn)
	conn.readData = appendChecksum([]byte{0x02, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x02})
	_, err := framer.ReceiveResponse()
	assert.ErrorIs(t, err, common.ErrInvalidResponse)
}

func TestReceiveResponseException(t *testing.T) {
	conn := &fakeConn{}
	framer := sendReadHoldingRegisters(t, conn)
	conn.readData = appendChecksum([]byte{0x01, 0x83, 0x02})
	pdu, err := framer.ReceiveResponse()
	require.NoError(t, err)
	assert.Equal(t, data.ReadHoldingRegisters.Exception(), pdu.Function)
	assert.Equal(t, []byte{0x02}, pdu.Data)
}

func TestReceiveResponseUnexpectedFunction(t *testing.T) {
	conn := &fakeConn{}
	framer := sendReadHoldingRegisters(t, conn)
	conn.readData = appendChecksum([]byte{0x01, 0x04, 0x04, 0x00, 0x0A, 0x01, 0x02})
	_, err := framer.ReceiveResponse()
	assert.ErrorIs(t, err, common.ErrUnexpectedFunction)
}

func TestBroadcastSkipsReceive(t *testing.T) {
	conn := &fakeConn{}
	framer := NewClientFramer(transport.NewStream(conn, zaptest.NewLogger(t)), zaptest.NewLogger(t))
	err := framer.SendRequest(transport.BroadcastAddress, &data.ProtocolDataUnit{
		Function: data.WriteSingleRegister,
		Data:     []byte{0x00, 0x01, 0x00, 0x0A},
	})
	require.NoError(t, err)
	pdu, err := framer.ReceiveResponse()
	require.NoError(t, err)
	assert.Nil(t, pdu)
	assert.Zero(t, conn.reads)
}

func TestNewServerFramerAddressBounds(t *testing.T) {
	logger := zaptest.NewLogger(t)
	_, err := NewServerFramer(transport.NewStream(&fakeConn{}, logger), logger, 0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = NewServerFramer(transport.NewStream(&fakeConn{}, logger), logger, 248)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = NewServerFramer(transport.NewStream(&fakeConn{}, logger), logger, 247)
	assert.NoError(t, err)
}

func newServerFramer(t *testing.T, conn *fakeConn, ownAddress byte) transport.Framer {
	logger := zaptest.NewLogger(t)
	framer, err := NewServerFramer(transport.NewStream(conn, logger), logger, ownAddress)
	require.NoError(t, err)
	return framer
}

func TestReceiveRequest(t *testing.T) {
	conn := &fakeConn{readData: []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xC4, 0x0B}}
	framer := newServerFramer(t, conn, 0x01)
	req, err := framer.ReceiveRequest()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, byte(0x01), req.UnitID)
	assert.False(t, req.Broadcast)
	assert.Equal(t, data.ReadHoldingRegisters, req.PDU.Function)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x02}, req.PDU.Data)
}

func TestReceiveRequestOtherUnitIsConsumed(t *testing.T) {
	conn := &fakeConn{readData: []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xC4, 0x0B}}
	framer := newServerFramer(t, conn, 0x02)
	req, err := framer.ReceiveRequest()
	require.NoError(t, err)
	assert.Nil(t, req)
	assert.Empty(t, conn.readData)
}

func TestReceiveRequestInvalidChecksum(t *testing.T) {
	conn := &fakeConn{readData: []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xC4, 0x0A}}
	framer := newServerFramer(t, conn, 0x01)
	_, err := framer.ReceiveRequest()
	assert.ErrorIs(t, err, common.ErrInvalidChecksum)
}

func TestReceiveRequestBroadcast(t *testing.T) {
	conn := &fakeConn{readData: appendChecksum([]byte{0x00, 0x06, 0x00, 0x01, 0x00, 0x0A})}
	framer := newServerFramer(t, conn, 0x01)
	req, err := framer.ReceiveRequest()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.True(t, req.Broadcast)

	// Responses to broadcast requests are suppressed.
	err = framer.SendResponse(req, &data.ProtocolDataUnit{Function: data.WriteSingleRegister, Data: []byte{0x00, 0x01, 0x00, 0x0A}})
	require.NoError(t, err)
	assert.Empty(t, conn.written)
}

func TestReceiveRequestUnknownFunction(t *testing.T) {
	conn := &fakeConn{readData: []byte{0x01, 0x07, 0x00, 0x00}}
	framer := newServerFramer(t, conn, 0x01)
	req, err := framer.ReceiveRequest()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, data.FunctionCode(0x07), req.PDU.Function)
}

func TestSendResponseWireFormat(t *testing.T) {
	conn := &fakeConn{readData: []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02, 0xC4, 0x0B}}
	framer := newServerFramer(t, conn, 0x01)
	req, err := framer.ReceiveRequest()
	require.NoError(t, err)
	err = framer.SendResponse(req, &data.ProtocolDataUnit{
		Function: data.ReadHoldingRegisters,
		Data:     []byte{0x04, 0x00, 0x0A, 0x01, 0x02},
	})
	require.NoError(t, err)
	assert.Equal(t, appendChecksum([]byte{0x01, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x02}), conn.written)
}

// Any request frame the client emits must parse back through the server
// receive path with identical addressing and PDU.
func TestRequestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		unit := rapid.ByteRange(1, 247).Draw(t, "unit")
		function := rapid.SampledFrom([]data.FunctionCode{
			data.ReadCoils, data.ReadDiscreteInputs, data.ReadHoldingRegisters, data.ReadInputRegisters,
			data.WriteSingleCoil, data.WriteSingleRegister, data.WriteMultipleCoils, data.WriteMultipleRegisters,
		}).Draw(t, "function")
		var body []byte
		switch function {
		case data.WriteMultipleCoils, data.WriteMultipleRegisters:
			head := rapid.SliceOfN(rapid.Byte(), 4, 4).Draw(t, "head")
			payload := rapid.SliceOfN(rapid.Byte(), 0, 128).Draw(t, "payload")
			body = append(append(head, byte(len(payload))), payload...)
		default:
			body = rapid.SliceOfN(rapid.Byte(), 4, 4).Draw(t, "body")
		}

		conn := &fakeConn{}
		logger := zap.NewNop()
		client := NewClientFramer(transport.NewStream(conn, logger), logger)
		pdu := &data.ProtocolDataUnit{Function: function, Data: body}
		if err := client.SendRequest(unit, pdu); err != nil {
			t.Fatalf("send failed: %v", err)
		}

		conn.readData = conn.written
		server, err := NewServerFramer(transport.NewStream(conn, logger), logger, unit)
		if err != nil {
			t.Fatalf("server framer: %v", err)
		}
		req, err := server.ReceiveRequest()
		if err != nil {
			t.Fatalf("receive failed: %v", err)
		}
		if req.UnitID != unit {
			t.Errorf("unit mismatch: sent %d received %d", unit, req.UnitID)
		}
		if !cmp.Equal(pdu.Bytes(), req.PDU.Bytes()) {
			t.Errorf("pdu mismatch: %s", cmp.Diff(pdu.Bytes(), req.PDU.Bytes()))
		}
	})
}
