package transport

import (
	"bytes"
	"io"
	"sync"
)

// buffer is a one-way byte queue whose writes never block.
type buffer struct {
	lock   sync.Mutex
	cond   *sync.Cond
	data   bytes.Buffer
	closed bool
}

func newBuffer() *buffer {
	b := &buffer{}
	b.cond = sync.NewCond(&b.lock)
	return b
}

func (b *buffer) Read(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	for b.data.Len() == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.data.Len() == 0 {
		return 0, io.EOF
	}
	return b.data.Read(p)
}

func (b *buffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	n, _ := b.data.Write(p)
	b.cond.Broadcast()
	return n, nil
}

func (b *buffer) Close() error {
	b.lock.Lock()
	b.closed = true
	b.cond.Broadcast()
	b.lock.Unlock()
	return nil
}

// PipeEnd is one end of an in-memory duplex pipe.
// Reads block until data arrives or the pipe is closed.
type PipeEnd struct {
	rx *buffer
	tx *buffer
}

// Pipe creates a connected pair of PipeEnds.
func Pipe() (*PipeEnd, *PipeEnd) {
	a, b := newBuffer(), newBuffer()
	return &PipeEnd{rx: a, tx: b}, &PipeEnd{rx: b, tx: a}
}

// Read implements io.Reader.
func (e *PipeEnd) Read(p []byte) (int, error) {
	return e.rx.Read(p)
}

// Write implements io.Writer.
func (e *PipeEnd) Write(p []byte) (int, error) {
	return e.tx.Write(p)
}

// Close closes both directions; the peer reads EOF once drained.
func (e *PipeEnd) Close() error {
	e.tx.Close()
	return e.rx.Close()
}
