package platform

import (
	"io"
	"os"
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
)

// FileConn adapts a deadline-capable *os.File, such as one side of a pty
// pair, to the engine's byte transport.
type FileConn struct {
	file *os.File
}

func NewFileConn(file *os.File) *FileConn {
	return &FileConn{file: file}
}

func (c *FileConn) ReadByte(timeout time.Duration) (byte, error) {
	if err := c.file.SetReadDeadline(deadline(timeout)); err != nil {
		return 0, err
	}
	var b [1]byte
	if _, err := io.ReadFull(c.file, b[:]); err != nil {
		if os.IsTimeout(err) {
			return 0, common.ErrTimeout
		}
		return 0, err
	}
	return b[0], nil
}

func (c *FileConn) WriteByte(b byte, timeout time.Duration) error {
	if err := c.file.SetWriteDeadline(deadline(timeout)); err != nil {
		return err
	}
	_, err := c.file.Write([]byte{b})
	return err
}

func (c *FileConn) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (c *FileConn) Close() error {
	return c.file.Close()
}
