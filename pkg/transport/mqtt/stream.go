package mqtt

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Topic suffixes. The device subscribes rx and publishes tx.
const (
	TopicRx = "rx"
	TopicTx = "tx"
)

// Stream is a byte stream over a pair of topics.
// Read polls: it returns 0 bytes when nothing arrives within Timeout.
type Stream struct {
	Queue    *Queue
	SubTopic string
	PubTopic string
	Timeout  time.Duration

	lock   sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

// NewStream creates a Stream.
func NewStream(q *Queue) *Stream {
	s := &Stream{Queue: q, Timeout: 10 * time.Millisecond}
	s.cond = sync.NewCond(&s.lock)
	return s
}

// WithTopics specifies the topics.
func (s *Stream) WithTopics(sub, pub string) *Stream {
	s.SubTopic, s.PubTopic = sub, pub
	return s
}

// ForDevice sets the topics of the device side:
// SubTopic = name/rx
// PubTopic = name/tx
func (s *Stream) ForDevice(name string) *Stream {
	return s.WithTopics(name+"/"+TopicRx, name+"/"+TopicTx)
}

// ForHost sets the topics of the host side, the reverse of ForDevice.
func (s *Stream) ForHost(name string) *Stream {
	return s.WithTopics(name+"/"+TopicTx, name+"/"+TopicRx)
}

// Open subscribes the receiving topic.
func (s *Stream) Open() error {
	return s.Queue.Sub(s.SubTopic, s.handleMsg)
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.buf.Len() == 0 && !s.closed && s.Timeout > 0 {
		timer := time.AfterFunc(s.Timeout, func() {
			s.lock.Lock()
			s.cond.Broadcast()
			s.lock.Unlock()
		})
		s.cond.Wait()
		timer.Stop()
	}
	if s.buf.Len() > 0 {
		return s.buf.Read(p)
	}
	if s.closed {
		return 0, io.EOF
	}
	return 0, nil
}

// Write implements io.Writer, one message per call.
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.Queue.Pub(s.PubTopic, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Ready indicates the broker connection is up.
func (s *Stream) Ready() bool {
	return s.Queue.Connected()
}

// Close unsubscribes; pending data can still be read.
func (s *Stream) Close() error {
	s.lock.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.lock.Unlock()
	if s.Queue != nil && s.Queue.Client != nil {
		return s.Queue.Unsub(s.SubTopic)
	}
	return nil
}

func (s *Stream) handleMsg(_ string, payload []byte) {
	s.lock.Lock()
	s.buf.Write(payload)
	s.cond.Broadcast()
	s.lock.Unlock()
}
