package platform

import (
	"io"
	"net"
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
)

// NetConn adapts a net.Conn to the engine's byte transport using read and
// write deadlines. The caller owns the connection.
type NetConn struct {
	conn net.Conn
}

func NewNetConn(conn net.Conn) *NetConn {
	return &NetConn{conn: conn}
}

func (c *NetConn) ReadByte(timeout time.Duration) (byte, error) {
	if err := c.conn.SetReadDeadline(deadline(timeout)); err != nil {
		return 0, err
	}
	var b [1]byte
	if _, err := io.ReadFull(c.conn, b[:]); err != nil {
		if isTimeout(err) {
			return 0, common.ErrTimeout
		}
		return 0, err
	}
	return b[0], nil
}

func (c *NetConn) WriteByte(b byte, timeout time.Duration) error {
	if err := c.conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return err
	}
	_, err := c.conn.Write([]byte{b})
	return err
}

func (c *NetConn) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (c *NetConn) Close() error {
	return c.conn.Close()
}

func deadline(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
