package suoserial

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// ErrAlreadyRunning is returned when Run is called on a running Session.
var ErrAlreadyRunning = errors.New("session already running")

type sessionState int

const (
	statePrompt   sessionState = iota // write prompt, wait for transport
	stateReadLine                     // read a top-level command line
	stateDispatch                     // run the tokenized command
	stateUpdate                       // in fwupdate sub-protocol
	stateStopped
)

// Session runs the command protocol over a Transport.
// A Session serves one client at a time and runs once.
type Session struct {
	Config    Config
	Transport Transport
	Backend   Backend

	stopped int32
	running int32

	state     sessionState
	reader    *LineReader
	args      []string
	line      string
	work      []byte
	writeLock sync.Mutex
}

// NewSession creates a Session with the default configuration.
func NewSession(t Transport, b Backend) *Session {
	return &Session{
		Config:    DefaultConfig(),
		Transport: t,
		Backend:   b,
	}
}

// Stop requests the session to stop. It is safe to call from any goroutine,
// the session unwinds at its next poll boundary.
func (s *Session) Stop() {
	atomic.StoreInt32(&s.stopped, 1)
}

// Detach stops the session because the transport went away and closes the
// transport if it can be closed.
func (s *Session) Detach() {
	s.Stop()
	glog.Info("transport detached")
	if closer, ok := s.Transport.(io.Closer); ok {
		closer.Close()
	}
}

// Stopped indicates a stop has been requested.
func (s *Session) Stopped() bool {
	return atomic.LoadInt32(&s.stopped) != 0
}

// Running indicates Run is in progress.
func (s *Session) Running() bool {
	return atomic.LoadInt32(&s.running) != 0
}

// WorkBufferSize returns the size of the current work buffer.
func (s *Session) WorkBufferSize() int {
	return len(s.work)
}

// Run implements Runnable. It returns when stopped, when ctx is done or
// when the transport reaches EOF.
func (s *Session) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&s.running, 0)

	if wd := s.Config.Watchdog; wd != nil {
		wd.Suspend()
		defer wd.Resume()
	}
	if s.Backend != nil {
		s.Backend.Init(s.notify)
	}

	s.reader = &LineReader{
		Transport:    s.Transport,
		Echo:         sessionWriter{s},
		Stopped:      s.Stopped,
		Capacity:     s.Config.LineCapacity(),
		PollInterval: s.Config.PollInterval,
	}
	defer s.release()

	glog.V(2).Info("session started")
	for s.state = statePrompt; s.state != stateStopped; {
		s.step(ctx)
	}
	glog.V(2).Info("session stopped")
	return ctx.Err()
}

func (s *Session) step(ctx context.Context) {
	switch s.state {
	case statePrompt:
		s.state = s.prompt(ctx)
	case stateReadLine:
		s.state = s.readCommand(ctx)
	case stateDispatch:
		s.state = s.dispatch()
	case stateUpdate:
		s.state = s.updateStep(ctx)
	}
}

func (s *Session) prompt(ctx context.Context) sessionState {
	if !s.waitReady(ctx) {
		return stateStopped
	}
	s.write([]byte{'>'})
	return stateReadLine
}

func (s *Session) readCommand(ctx context.Context) sessionState {
	line, err := s.reader.ReadLine(ctx, true)
	if err != nil {
		return s.readFailed(ctx, err)
	}
	if line == "" {
		return statePrompt
	}
	s.write([]byte("\r\n"))
	glog.V(2).Infof("command: %q", line)
	s.line, s.args = line, Tokenize(line, MaxArgs)
	return stateDispatch
}

// readFailed decides where a failed line read leads. Stop requests and a
// closed transport end the session, anything else falls back to the prompt.
func (s *Session) readFailed(ctx context.Context, err error) sessionState {
	switch {
	case errors.Is(err, ErrStopped):
		return stateStopped
	case errors.Is(err, ErrLineOverflow):
		glog.Warning("line too long, discarded")
		return statePrompt
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
		glog.Infof("transport closed: %v", err)
		s.Stop()
		return stateStopped
	}
	glog.Errorf("read error: %v", err)
	if !s.sleep(ctx, s.Config.ReadyInterval) {
		return stateStopped
	}
	return statePrompt
}

func (s *Session) waitReady(ctx context.Context) bool {
	if s.Stopped() {
		return false
	}
	r, ok := s.Transport.(Readier)
	if !ok {
		return true
	}
	for !r.Ready() {
		if !s.sleep(ctx, s.Config.ReadyInterval) {
			return false
		}
	}
	return true
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = DefaultReadyInterval
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	return !s.Stopped()
}

func (s *Session) notify(status string) {
	s.printfln("INFO %s", status)
}

func (s *Session) release() {
	s.work = nil
}
