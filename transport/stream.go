package transport

import (
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
	"go.uber.org/zap"
)

// Stream wraps a Conn with the engine's timing contract and the fixed
// message buffer. Reads accumulate into the buffer under two deadlines: a
// whole-message deadline armed by BeginFrame and a per-byte deadline.
// Writes go out one byte at a time with optional inter-byte spacing.
type Stream struct {
	logger      *zap.Logger
	conn        Conn
	readTimeout time.Duration
	byteTimeout time.Duration
	byteSpacing time.Duration
	buf         [MaxADULength]byte
	n           int
	deadline    time.Time
	hasDeadline bool
}

func NewStream(conn Conn, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		logger:      logger,
		conn:        conn,
		readTimeout: NoTimeout,
		byteTimeout: NoTimeout,
	}
}

// SetReadTimeout bounds the wall time of one whole message. Negative
// disables the deadline.
func (s *Stream) SetReadTimeout(d time.Duration) {
	s.readTimeout = d
}

// SetByteTimeout bounds the wall time between consecutive bytes of one
// message. Negative disables the deadline.
func (s *Stream) SetByteTimeout(d time.Duration) {
	s.byteTimeout = d
}

// SetByteSpacing enforces a pause between transmitted bytes.
func (s *Stream) SetByteSpacing(d time.Duration) {
	s.byteSpacing = d
}

// BeginFrame resets the message buffer and arms the whole-message deadline.
func (s *Stream) BeginFrame() {
	s.n = 0
	s.hasDeadline = s.readTimeout >= 0
	if s.hasDeadline {
		s.deadline = time.Now().Add(s.readTimeout)
	}
}

// Get reads n more bytes of the current frame and returns them. The slice
// aliases the message buffer and is valid until the next BeginFrame.
func (s *Stream) Get(n int) ([]byte, error) {
	if s.n+n > MaxADULength {
		return nil, common.ErrFrameTooLong
	}
	start := s.n
	for i := 0; i < n; i++ {
		timeout := s.byteTimeout
		if s.hasDeadline {
			remaining := time.Until(s.deadline)
			if remaining <= 0 {
				return nil, common.ErrTimeout
			}
			if timeout < 0 || remaining < timeout {
				timeout = remaining
			}
		}
		b, err := s.conn.ReadByte(timeout)
		if err == common.ErrTimeout {
			return nil, common.ErrTimeout
		}
		if err != nil {
			return nil, common.ErrTransport
		}
		s.buf[s.n] = b
		s.n++
	}
	return s.buf[start:s.n], nil
}

// Put transmits p one byte at a time, sleeping the configured spacing
// between consecutive bytes.
func (s *Stream) Put(p []byte) error {
	for i, b := range p {
		if i > 0 && s.byteSpacing > 0 {
			s.conn.Sleep(s.byteSpacing)
		}
		if err := s.conn.WriteByte(b, s.byteTimeout); err != nil {
			return common.ErrTransport
		}
	}
	return nil
}

// Bytes returns the frame accumulated since the last BeginFrame.
func (s *Stream) Bytes() []byte {
	return s.buf[:s.n]
}
