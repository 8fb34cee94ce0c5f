package suoserial

import (
	"bytes"
	"io"
	"sync"
)

// scriptTransport replays input one byte per read and records output.
// Once the input is consumed reads fail with eof (io.EOF unless set).
type scriptTransport struct {
	lock   sync.Mutex
	input  []byte
	output bytes.Buffer
	eof    error
	gaps   bool
	toggle bool
}

func newScript(input string) *scriptTransport {
	return &scriptTransport{input: []byte(input), eof: io.EOF}
}

func (s *scriptTransport) Read(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.gaps {
		// every other poll finds nothing.
		if s.toggle = !s.toggle; s.toggle {
			return 0, nil
		}
	}
	if len(s.input) == 0 {
		return 0, s.eof
	}
	p[0], s.input = s.input[0], s.input[1:]
	return 1, nil
}

func (s *scriptTransport) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.output.Write(p)
}

func (s *scriptTransport) remaining() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return string(s.input)
}

func (s *scriptTransport) written() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.output.String()
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
