package platform

import (
	"errors"
	"sync"
	"time"

	"github.com/rinzlerlabs/picomodbus/common"
	"github.com/rinzlerlabs/picomodbus/transport"
)

var (
	errPipeClosed = errors.New("pipe closed")
	errPipeFull   = errors.New("pipe full")
)

// NewPipe creates an in-memory duplex byte transport: what one end writes
// the other reads. Both ends honor the engine's timeout contract, which
// makes the pipe the test double for driving a client engine against a
// server engine in-process.
func NewPipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan byte, transport.MaxADULength)
	ba := make(chan byte, transport.MaxADULength)
	closed := make(chan struct{})
	once := &sync.Once{}
	a := &PipeEnd{rx: ba, tx: ab, closed: closed, once: once}
	b := &PipeEnd{rx: ab, tx: ba, closed: closed, once: once}
	return a, b
}

type PipeEnd struct {
	rx     chan byte
	tx     chan byte
	closed chan struct{}
	once   *sync.Once
}

func (p *PipeEnd) ReadByte(timeout time.Duration) (byte, error) {
	if timeout < 0 {
		select {
		case b := <-p.rx:
			return b, nil
		case <-p.closed:
			return 0, errPipeClosed
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-p.rx:
		return b, nil
	case <-p.closed:
		return 0, errPipeClosed
	case <-timer.C:
		return 0, common.ErrTimeout
	}
}

func (p *PipeEnd) WriteByte(b byte, timeout time.Duration) error {
	if timeout < 0 {
		select {
		case p.tx <- b:
			return nil
		case <-p.closed:
			return errPipeClosed
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p.tx <- b:
		return nil
	case <-p.closed:
		return errPipeClosed
	case <-timer.C:
		return errPipeFull
	}
}

func (p *PipeEnd) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Close tears down both ends.
func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
