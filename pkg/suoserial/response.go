package suoserial

import (
	"fmt"

	"github.com/golang/glog"
)

// MaxResponseLen is the longest response text, excluding the line ending.
const MaxResponseLen = 127

// ResponseEnding terminates every response line.
const ResponseEnding = "\n\r"

// FormatResponse formats a response line including its ending.
func FormatResponse(format string, args ...interface{}) []byte {
	msg := fmt.Sprintf(format, args...)
	if len(msg) > MaxResponseLen {
		msg = msg[:MaxResponseLen]
	}
	buf := make([]byte, 0, len(msg)+len(ResponseEnding))
	buf = append(buf, msg...)
	return append(buf, ResponseEnding...)
}

func (s *Session) printfln(format string, args ...interface{}) {
	s.write(FormatResponse(format, args...))
}

func (s *Session) write(p []byte) error {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	_, err := s.Transport.Write(p)
	if err != nil {
		glog.V(2).Infof("write error: %v", err)
	}
	return err
}

type sessionWriter struct {
	s *Session
}

func (w sessionWriter) Write(p []byte) (int, error) {
	if err := w.s.write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
