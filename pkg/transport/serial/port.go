// Package serial carries the protocol over UART and USB-CDC ttys.
package serial

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g. "/dev/ttyUSB0", "/dev/ttyACM0").
	Device string
	// Baud is ignored by USB-CDC.
	Baud int
	// ReadTimeout bounds a single Read, which then returns no data.
	ReadTimeout time.Duration
}

// DefaultConfig returns the default configuration for a device.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 10 * time.Millisecond,
	}
}

// Port is a polling serial port.
type Port struct {
	Device string

	rwc       io.ReadWriteCloser
	detached  int32
	closeOnce sync.Once
	closeErr  error
}

// Open opens a serial port.
func Open(cfg Config) (*Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	glog.Infof("serial: opened %s at %d", cfg.Device, cfg.Baud)
	return New(port, cfg.Device), nil
}

// New wraps an opened port.
func New(rwc io.ReadWriteCloser, device string) *Port {
	return &Port{Device: device, rwc: rwc}
}

// Read implements io.Reader. A read timeout is reported as no data.
func (p *Port) Read(b []byte) (int, error) {
	if atomic.LoadInt32(&p.detached) != 0 {
		return 0, io.ErrClosedPipe
	}
	n, err := p.rwc.Read(b)
	if err == io.EOF && n == 0 {
		return 0, nil
	}
	return n, err
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.rwc.Write(b)
}

// Ready indicates the device is still attached.
func (p *Port) Ready() bool {
	return atomic.LoadInt32(&p.detached) == 0
}

// MarkDetached makes further reads fail, ending the session.
func (p *Port) MarkDetached() {
	atomic.StoreInt32(&p.detached, 1)
}

// Close implements io.Closer. Only the first call closes the device,
// later calls return its result.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.rwc.Close()
	})
	return p.closeErr
}
