// Package host drives the command protocol from the host side.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/suoserial/pkg/suoserial"
)

// Timing defaults.
const (
	DefaultTimeout = 2 * time.Second
	quietPeriod    = 50 * time.Millisecond
)

// ErrInUpdate indicates a top-level command sent in update mode.
var ErrInUpdate = errors.New("in update mode")

// Client talks to a device over a byte stream.
// It is not safe for concurrent use.
type Client struct {
	Variant suoserial.Variant
	Timeout time.Duration
	// OnInfo receives status notifications, from the reading goroutine.
	OnInfo func(status string)

	rw        io.ReadWriter
	events    chan event
	readErr   error
	startOnce sync.Once
	prompted  bool
	inUpdate  bool
}

// NewClient creates a Client.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		Timeout: DefaultTimeout,
		rw:      rw,
		events:  make(chan event, 64),
	}
}

// InUpdate indicates the device is in the update sub-protocol.
func (c *Client) InUpdate() bool {
	return c.inUpdate
}

// Close closes the stream when it is an io.Closer.
func (c *Client) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Sync brings the device to the prompt, leaving the update sub-protocol
// and discarding pending output.
func (c *Client) Sync(ctx context.Context) error {
	c.prompted, c.inUpdate = false, false
	if err := c.writeLine(""); err != nil {
		return err
	}
	if err := c.waitPrompt(ctx); err != nil {
		return err
	}
	last := event{prompt: true}
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return c.closedErr()
			}
			last = ev
		case <-time.After(quietPeriod):
			if !last.prompt {
				return ErrUnexpected
			}
			c.prompted = true
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Command sends a top-level command and returns the response lines.
func (c *Client) Command(ctx context.Context, line string) ([]string, error) {
	if err := c.begin(ctx, line); err != nil {
		return nil, err
	}
	var lines []string
	echoed := false
	for {
		ev, err := c.next(ctx)
		if err != nil {
			return lines, err
		}
		if ev.prompt {
			c.prompted = true
			return lines, nil
		}
		if !echoed && ev.line == line {
			echoed = true
			continue
		}
		lines = append(lines, ev.line)
	}
}

// BufferSize queries the advertised buffer size.
func (c *Client) BufferSize(ctx context.Context) (int, error) {
	cfg := suoserial.Config{Variant: c.Variant}
	cmd := cfg.BufSizeCommand()
	lines, err := c.Command(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if err := checkLines(cmd, lines); err != nil {
		return 0, err
	}
	for _, line := range lines {
		var n int
		if _, err := fmt.Sscanf(line, "OK %d", &n); err == nil {
			return n, nil
		}
	}
	return 0, ErrUnexpected
}

// Alloc allocates the work buffer on the device.
func (c *Client) Alloc(ctx context.Context, size int) error {
	cmd := fmt.Sprintf("%s %d", suoserial.CmdAlloc, size)
	lines, err := c.Command(ctx, cmd)
	if err != nil {
		return err
	}
	return expectOK(cmd, lines)
}

// ReadParams dumps the parameter partition.
func (c *Client) ReadParams(ctx context.Context) ([]byte, error) {
	lines, err := c.Command(ctx, suoserial.CmdReadParam)
	if err != nil {
		return nil, err
	}
	if err := checkLines(suoserial.CmdReadParam, lines); err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(lines))
	for _, line := range lines {
		if len(line) != 2 {
			return data, ErrUnexpected
		}
		b, ok := suoserial.DecodeByte(line[0], line[1])
		if !ok {
			return data, ErrUnexpected
		}
		data = append(data, b)
	}
	return data, nil
}

// EnterUpdate starts the update sub-protocol.
func (c *Client) EnterUpdate(ctx context.Context) error {
	if c.inUpdate {
		return nil
	}
	if err := c.begin(ctx, suoserial.CmdFWUpdate); err != nil {
		return err
	}
	var lines []string
	echoed := false
	for {
		ev, err := c.next(ctx)
		if err != nil {
			return err
		}
		switch {
		case ev.prompt:
			// refused, back at the prompt
			c.prompted = true
			return &ResponseError{Request: suoserial.CmdFWUpdate, Lines: lines}
		case !echoed && ev.line == suoserial.CmdFWUpdate:
			echoed = true
		case ev.line == "OK":
			if len(lines) > 0 {
				glog.Warningf("host: fwupdate: %s", strings.Join(lines, "; "))
			}
			c.inUpdate = true
			return nil
		default:
			lines = append(lines, ev.line)
		}
	}
}

// Request sends a sub-protocol request and returns its response line,
// PATCH_DATA has no response.
func (c *Client) Request(ctx context.Context, verb string, offset uint16, data []byte) (string, error) {
	if !c.inUpdate {
		return "", ErrNotInUpdate
	}
	line := fmt.Sprintf("%s %d %d %s", verb, offset, len(data), suoserial.EncodeHex(data))
	if err := c.writeLine(line); err != nil {
		return "", err
	}
	if verb == suoserial.VerbPatchData {
		return "", nil
	}
	ev, err := c.next(ctx)
	if err != nil {
		return "", err
	}
	if ev.prompt {
		c.inUpdate, c.prompted = false, true
		return "", ErrNotInUpdate
	}
	if !isError(ev.line) {
		return ev.line, nil
	}
	rerr := &ResponseError{Request: verb, Lines: []string{ev.line}}
	if _, ok := rerr.Status(); !ok {
		// malformed request, the device is back at the prompt
		c.inUpdate, c.prompted = false, false
	}
	return "", rerr
}

// ReadStatus reads the update status.
func (c *Client) ReadStatus(ctx context.Context) (uint32, error) {
	return c.readValue(ctx, suoserial.VerbReadStatus)
}

// ReadMemInfo reads the number of image bytes received.
func (c *Client) ReadMemInfo(ctx context.Context) (uint32, error) {
	return c.readValue(ctx, suoserial.VerbReadMemInfo)
}

// ExitUpdate leaves the update sub-protocol.
func (c *Client) ExitUpdate(ctx context.Context) error {
	if !c.inUpdate {
		return nil
	}
	if err := c.writeLine(""); err != nil {
		return err
	}
	c.inUpdate = false
	if err := c.waitPrompt(ctx); err != nil {
		return err
	}
	c.prompted = true
	return nil
}

// begin sends a top-level command line from the prompt.
func (c *Client) begin(ctx context.Context, line string) error {
	if c.inUpdate {
		return ErrInUpdate
	}
	if !c.prompted {
		if err := c.Sync(ctx); err != nil {
			return err
		}
	}
	c.prompted = false
	return c.writeLine(line)
}

func (c *Client) readValue(ctx context.Context, verb string) (uint32, error) {
	resp, err := c.Request(ctx, verb, 0, nil)
	if err != nil {
		return 0, err
	}
	var v uint32
	if _, err := fmt.Sscanf(resp, "OK %d", &v); err != nil {
		return 0, ErrUnexpected
	}
	return v, nil
}

func (c *Client) writeLine(line string) error {
	c.startOnce.Do(func() { go c.readLoop() })
	glog.V(2).Infof("host: send %q", line)
	_, err := c.rw.Write([]byte(line + "\r"))
	return err
}

func (c *Client) waitPrompt(ctx context.Context) error {
	for {
		ev, err := c.next(ctx)
		if err != nil {
			return err
		}
		if ev.prompt {
			return nil
		}
		glog.V(2).Infof("host: skip %q", ev.line)
	}
}

func (c *Client) next(ctx context.Context) (event, error) {
	c.startOnce.Do(func() { go c.readLoop() })
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev, ok := <-c.events:
		if !ok {
			return ev, c.closedErr()
		}
		return ev, nil
	case <-timer.C:
		return event{}, ErrTimeout
	case <-ctx.Done():
		return event{}, ctx.Err()
	}
}

func (c *Client) closedErr() error {
	if c.readErr != nil {
		return c.readErr
	}
	return io.EOF
}

func (c *Client) readLoop() {
	defer close(c.events)
	var sc scanner
	buf := make([]byte, 512)
	for {
		n, err := c.rw.Read(buf)
		sc.feed(buf[:n], c.emit)
		if err != nil {
			c.readErr = err
			return
		}
	}
}

func (c *Client) emit(ev event) {
	if status, ok := isInfo(ev.line); ok {
		glog.V(2).Infof("host: info %s", status)
		if fn := c.OnInfo; fn != nil {
			fn(status)
		}
		return
	}
	c.events <- ev
}

func checkLines(request string, lines []string) error {
	for _, line := range lines {
		if isError(line) {
			return &ResponseError{Request: request, Lines: lines}
		}
	}
	return nil
}

func expectOK(request string, lines []string) error {
	if err := checkLines(request, lines); err != nil {
		return err
	}
	for _, line := range lines {
		if line == "OK" {
			return nil
		}
	}
	return &ResponseError{Request: request, Lines: lines}
}

// Status returns the backend status when the error carries one.
func (e *ResponseError) Status() (suoserial.Status, bool) {
	if len(e.Lines) != 1 {
		return suoserial.StatusOK, false
	}
	name := strings.TrimPrefix(e.Lines[0], "ERROR ")
	for s := suoserial.StatusReadNotPermitted; s <= suoserial.StatusUnknown; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return suoserial.StatusOK, false
}
