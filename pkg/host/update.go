package host

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/suoserial/pkg/suoserial"
	"github.com/robotalks/suoserial/pkg/suota"
)

// DefaultWindow is the number of PATCH_DATA lines sent between
// READ_MEMINFO synchronizations.
const DefaultWindow = 4

// UpdateOptions tunes Update.
type UpdateOptions struct {
	Bank     byte
	Window   int
	Progress func(sent, total int)
}

// Update transfers an image built by suota.BuildImage and commits it.
func (c *Client) Update(ctx context.Context, image []byte, opts UpdateOptions) error {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	bufSize, err := c.BufferSize(ctx)
	if err != nil {
		return &UpdateError{Stage: "probe", Err: err}
	}
	block := bufSize / 2
	if block <= 0 {
		return &UpdateError{Stage: "probe", Err: ErrUnexpected}
	}
	if err := c.Alloc(ctx, block); err != nil {
		return &UpdateError{Stage: "alloc", Err: err}
	}
	if err := c.EnterUpdate(ctx); err != nil {
		return &UpdateError{Stage: "enter", Err: err}
	}
	if _, err := c.Request(ctx, suoserial.VerbWriteStatus, 0, []byte{1}); err != nil {
		return c.failUpdate(ctx, "start", err)
	}
	var memDev [4]byte
	binary.LittleEndian.PutUint32(memDev[:], suota.MemDevValue(suota.MemDevImage, opts.Bank))
	if _, err := c.Request(ctx, suoserial.VerbMemDev, 0, memDev[:]); err != nil {
		return c.failUpdate(ctx, "start", err)
	}

	patchLen, pending := 0, 0
	for sent := 0; sent < len(image); {
		n := len(image) - sent
		if n > block {
			n = block
		}
		if n != patchLen {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(n))
			if _, err := c.Request(ctx, suoserial.VerbPatchLen, 0, b[:]); err != nil {
				return c.failUpdate(ctx, "data", err)
			}
			patchLen = n
		}
		if _, err := c.Request(ctx, suoserial.VerbPatchData, 0, image[sent:sent+n]); err != nil {
			return c.failUpdate(ctx, "data", err)
		}
		sent += n
		if pending++; pending < window && sent < len(image) {
			continue
		}
		pending = 0
		received, err := c.ReadMemInfo(ctx)
		if err != nil {
			return c.failUpdate(ctx, "data", err)
		}
		if int(received) != sent {
			return c.failUpdate(ctx, "data", fmt.Errorf("device received %d of %d bytes", received, sent))
		}
		if opts.Progress != nil {
			opts.Progress(sent, len(image))
		}
	}

	binary.LittleEndian.PutUint32(memDev[:], suota.MemDevValue(suota.MemDevEnd, 0))
	if _, err := c.Request(ctx, suoserial.VerbMemDev, 0, memDev[:]); err != nil {
		return c.failUpdate(ctx, "commit", err)
	}
	glog.Infof("host: image of %d bytes committed", len(image))
	return c.ExitUpdate(ctx)
}

// failUpdate collects the device status, aborts the update and leaves the
// sub-protocol.
func (c *Client) failUpdate(ctx context.Context, stage string, err error) error {
	uerr := &UpdateError{Stage: stage, Err: err}
	if !c.inUpdate {
		return uerr
	}
	if status, serr := c.ReadStatus(ctx); serr == nil {
		uerr.Status = suota.Status(status)
	}
	if c.inUpdate && uerr.Status != suota.StatusIdle && !uerr.Status.IsError() {
		var memDev [4]byte
		binary.LittleEndian.PutUint32(memDev[:], suota.MemDevValue(suota.MemDevAbort, 0))
		c.Request(ctx, suoserial.VerbMemDev, 0, memDev[:])
	}
	c.ExitUpdate(ctx)
	return uerr
}
