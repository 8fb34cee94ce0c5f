package serial

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

// WatchDetach calls fn once the device node disappears, which is how a
// USB-CDC device shows unplugging. It returns when fn has been called or
// ctx is done.
func WatchDetach(ctx context.Context, device string, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(device)); err != nil {
		return err
	}
	device = filepath.Clean(device)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != device {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				glog.Infof("serial: %s detached", device)
				fn()
				return nil
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			glog.Warningf("serial: watch %s: %v", device, err)
		}
	}
}
