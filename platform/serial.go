package platform

import (
	"io"
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/tarm/serial"
)

// SerialPort adapts a tarm serial port to the engine's byte transport. The
// port has no per-call deadline, so open it with a short ReadTimeout (tens
// of milliseconds); the adapter polls at that granularity until the engine's
// timeout expires.
type SerialPort struct {
	port *serial.Port
}

func NewSerialPort(port *serial.Port) *SerialPort {
	return &SerialPort{port: port}
}

// OpenSerialPort opens name with the given baud rate, 8N1, and a 50ms port
// timeout suitable for the adapter's polling loop.
func OpenSerialPort(name string, baud int) (*SerialPort, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	return &SerialPort{port: port}, nil
}

func (p *SerialPort) ReadByte(timeout time.Duration) (byte, error) {
	var until time.Time
	if timeout >= 0 {
		until = time.Now().Add(timeout)
	}
	var b [1]byte
	for {
		n, err := p.port.Read(b[:])
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 1 {
			return b[0], nil
		}
		if !until.IsZero() && !time.Now().Before(until) {
			return 0, common.ErrTimeout
		}
	}
}

func (p *SerialPort) WriteByte(b byte, timeout time.Duration) error {
	n, err := p.port.Write([]byte{b})
	if err != nil {
		return err
	}
	if n != 1 {
		return io.ErrShortWrite
	}
	return nil
}

func (p *SerialPort) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (p *SerialPort) Close() error {
	return p.port.Close()
}
