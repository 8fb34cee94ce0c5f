package transport

import (
	"io"
	"sync"
	"time"
)

// DefaultPollTimeout is how long Read waits for data before reporting none.
const DefaultPollTimeout = 10 * time.Millisecond

const readChunkSize = 512

// Readier reports whether a stream can carry data.
type Readier interface {
	Ready() bool
}

// Poller turns a blocking stream into a polling one: Read returns 0 bytes
// and nil error when no data arrived within Timeout.
type Poller struct {
	Stream  io.ReadWriter
	Timeout time.Duration

	startOnce sync.Once
	closeOnce sync.Once
	chunkCh   chan []byte
	done      chan struct{}
	readErr   error
	pending   []byte
	err       error
}

// NewPoller creates a Poller.
func NewPoller(s io.ReadWriter, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{
		Stream:  s,
		Timeout: timeout,
		chunkCh: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

// Read implements io.Reader. It must not be called concurrently.
func (p *Poller) Read(b []byte) (int, error) {
	p.startOnce.Do(func() { go p.readLoop() })
	if len(p.pending) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		timer := time.NewTimer(p.Timeout)
		defer timer.Stop()
		select {
		case chunk, ok := <-p.chunkCh:
			if !ok {
				p.err = p.readErr
				return 0, p.err
			}
			p.pending = chunk
		case <-p.done:
			p.err = io.ErrClosedPipe
			return 0, p.err
		case <-timer.C:
			return 0, nil
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (p *Poller) Write(b []byte) (int, error) {
	return p.Stream.Write(b)
}

// Ready implements Readier, delegating to the stream when supported.
func (p *Poller) Ready() bool {
	if r, ok := p.Stream.(Readier); ok {
		return r.Ready()
	}
	return true
}

// Close implements io.Closer.
func (p *Poller) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.done)
		if closer, ok := p.Stream.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return
}

func (p *Poller) readLoop() {
	defer close(p.chunkCh)
	buf := make([]byte, readChunkSize)
	for {
		n, err := p.Stream.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.chunkCh <- chunk:
			case <-p.done:
				p.readErr = io.ErrClosedPipe
				return
			}
		}
		if err != nil {
			select {
			case <-p.done:
				err = io.ErrClosedPipe
			default:
			}
			p.readErr = err
			return
		}
	}
}
