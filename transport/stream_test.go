package transport

import (
	"errors"
	"testing"
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeConn struct {
	readData []byte
	index    int
	latency  time.Duration
	delays   map[int]time.Duration
	readErr  error
	written  []byte
	writeErr error
	sleeps   []time.Duration
	timeouts []time.Duration
}

func (f *fakeConn) ReadByte(timeout time.Duration) (byte, error) {
	f.timeouts = append(f.timeouts, timeout)
	if f.index >= len(f.readData) {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, common.ErrTimeout
	}
	latency := f.latency
	if d, ok := f.delays[f.index]; ok {
		latency = d
	}
	if timeout >= 0 && latency > timeout {
		time.Sleep(timeout)
		return 0, common.ErrTimeout
	}
	time.Sleep(latency)
	b := f.readData[f.index]
	f.index++
	return b, nil
}

func (f *fakeConn) WriteByte(b byte, timeout time.Duration) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, b)
	return nil
}

func (f *fakeConn) Sleep(d time.Duration) {
	f.sleeps = append(f.sleeps, d)
}

func TestGetAccumulatesFrame(t *testing.T) {
	conn := &fakeConn{readData: []byte{0x01, 0x03, 0x00, 0x00}}
	stream := NewStream(conn, zaptest.NewLogger(t))
	stream.BeginFrame()
	header, err := stream.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03}, header)
	body, err := stream.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00}, body)
	assert.Equal(t, []byte{0x01, 0x03, 0x00, 0x00}, stream.Bytes())
}

func TestGetByteTimeout(t *testing.T) {
	// Three bytes arrive, then the peer pauses for longer than the byte
	// timeout allows.
	conn := &fakeConn{
		readData: []byte{0x01, 0x03, 0x04, 0x00},
		delays:   map[int]time.Duration{3: 500 * time.Millisecond},
	}
	stream := NewStream(conn, zaptest.NewLogger(t))
	stream.SetByteTimeout(100 * time.Millisecond)
	stream.BeginFrame()
	_, err := stream.Get(3)
	require.NoError(t, err)
	_, err = stream.Get(1)
	assert.ErrorIs(t, err, common.ErrTimeout)
}

func TestGetMessageTimeout(t *testing.T) {
	conn := &fakeConn{
		readData: []byte{0x01, 0x03, 0x04, 0x00, 0x0A, 0x01, 0x02},
		latency:  30 * time.Millisecond,
	}
	stream := NewStream(conn, zaptest.NewLogger(t))
	stream.SetReadTimeout(50 * time.Millisecond)
	stream.BeginFrame()
	_, err := stream.Get(7)
	assert.ErrorIs(t, err, common.ErrTimeout)
}

func TestGetNoDeadlines(t *testing.T) {
	conn := &fakeConn{readData: []byte{0x01, 0x02}}
	stream := NewStream(conn, zaptest.NewLogger(t))
	stream.BeginFrame()
	_, err := stream.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{NoTimeout, NoTimeout}, conn.timeouts)
}

func TestGetTransportError(t *testing.T) {
	conn := &fakeConn{readErr: errors.New("read failed")}
	stream := NewStream(conn, zaptest.NewLogger(t))
	stream.BeginFrame()
	_, err := stream.Get(1)
	assert.ErrorIs(t, err, common.ErrTransport)
}

func TestGetFrameTooLong(t *testing.T) {
	conn := &fakeConn{}
	stream := NewStream(conn, zaptest.NewLogger(t))
	stream.BeginFrame()
	_, err := stream.Get(MaxADULength + 1)
	assert.ErrorIs(t, err, common.ErrInvalidResponse)
	assert.Empty(t, conn.timeouts)
}

func TestPutByteSpacing(t *testing.T) {
	conn := &fakeConn{}
	stream := NewStream(conn, zaptest.NewLogger(t))
	stream.SetByteSpacing(5 * time.Millisecond)
	require.NoError(t, stream.Put([]byte{0x01, 0x02, 0x03, 0x04}))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, conn.written)
	// Spacing goes between bytes, not before the first.
	assert.Len(t, conn.sleeps, 3)
}

func TestPutNoSpacingByDefault(t *testing.T) {
	conn := &fakeConn{}
	stream := NewStream(conn, zaptest.NewLogger(t))
	require.NoError(t, stream.Put([]byte{0x01, 0x02}))
	assert.Empty(t, conn.sleeps)
}

func TestPutTransportError(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("write failed")}
	stream := NewStream(conn, zaptest.NewLogger(t))
	err := stream.Put([]byte{0x01})
	assert.ErrorIs(t, err, common.ErrTransport)
}
