package suoserial

import (
	"context"
	"io"
	"os"
	"runtime"
	"time"
)

const (
	backspace = 0x08
	del       = 0x7f
)

// LineReader builds command lines from a polled byte stream.
type LineReader struct {
	// Transport is polled one byte at a time.
	Transport io.Reader
	// Echo receives echoed input, it is usually the same stream as Transport.
	Echo io.Writer
	// Stopped is checked at every poll boundary.
	Stopped func() bool
	// Capacity is the line buffer size including the terminator.
	Capacity int
	// PollInterval is the pause after an empty poll, 0 only yields.
	PollInterval time.Duration

	buf       []byte
	one       [1]byte
	swallowLF bool
}

// NewLineReader creates a LineReader reading and echoing on t.
func NewLineReader(t Transport, capacity int) *LineReader {
	return &LineReader{Transport: t, Echo: t, Capacity: capacity}
}

// ReadLine reads one line with the terminator stripped.
// A bare terminator yields an empty line. Lines of Capacity-1 or more
// bytes are drained up to their terminator and fail with ErrLineOverflow.
// In both cases the terminator is written back, even with echo off.
// ErrStopped is returned when the stop flag is raised or ctx is done.
func (r *LineReader) ReadLine(ctx context.Context, echo bool) (string, error) {
	capacity := r.Capacity
	if capacity < 2 {
		capacity = 2
	}
	if cap(r.buf) < capacity {
		r.buf = make([]byte, 0, capacity)
	}
	buf := r.buf[:0]
	for len(buf) < capacity-1 {
		c, err := r.readByte(ctx)
		if err != nil {
			return "", err
		}
		if r.swallowLF {
			r.swallowLF = false
			if c == '\n' {
				continue
			}
		}
		switch c {
		case '\r', '\n':
			r.swallowLF = c == '\r'
			if len(buf) == 0 {
				r.echo(c)
			}
			return string(buf), nil
		case backspace, del:
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
				if echo {
					r.echo(backspace, ' ', backspace)
				}
			}
			continue
		}
		if echo {
			r.echo(c)
		}
		buf = append(buf, c)
	}

	// no room left for the terminator: discard up to the end of the line.
	for {
		c, err := r.readByte(ctx)
		if err != nil {
			return "", err
		}
		if c == '\r' || c == '\n' {
			r.swallowLF = c == '\r'
			r.echo(c)
			return "", ErrLineOverflow
		}
	}
}

func (r *LineReader) readByte(ctx context.Context) (byte, error) {
	for {
		if r.Stopped != nil && r.Stopped() {
			return 0, ErrStopped
		}
		select {
		case <-ctx.Done():
			return 0, ErrStopped
		default:
		}
		n, err := r.Transport.Read(r.one[:])
		if n == 1 {
			return r.one[0], nil
		}
		if err != nil && !os.IsTimeout(err) {
			return 0, err
		}
		if r.PollInterval <= 0 {
			runtime.Gosched()
			continue
		}
		timer := time.NewTimer(r.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ErrStopped
		case <-timer.C:
		}
	}
}

// echo failures are ignored, a lost echo byte must not break the line.
func (r *LineReader) echo(bs ...byte) {
	if r.Echo != nil {
		r.Echo.Write(bs)
	}
}
