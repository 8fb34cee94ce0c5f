// Package daemon serves the command protocol on the configured transport.
package daemon

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/suoserial/pkg/env"
	fx "github.com/robotalks/suoserial/pkg/framework"
	"github.com/robotalks/suoserial/pkg/suoserial"
	"github.com/robotalks/suoserial/pkg/suota"
	"github.com/robotalks/suoserial/pkg/transport"
	"github.com/robotalks/suoserial/pkg/transport/mqtt"
	"github.com/robotalks/suoserial/pkg/transport/serial"
	"github.com/robotalks/suoserial/pkg/transport/websocket"
)

// ReopenDelay is the wait before reopening a lost serial device.
const ReopenDelay = time.Second

// Daemon owns the image backend shared by all sessions.
type Daemon struct {
	Config  *env.Config
	Info    env.DeviceInfo
	Backend *suota.Backend
	Params  io.ReaderAt
	// Reboot is invoked when the host requests a reboot.
	Reboot func()

	params *os.File
}

// New creates a Daemon from the config.
func New(conf *env.Config) (*Daemon, error) {
	d := &Daemon{Config: conf, Info: env.NewDeviceInfo()}
	d.Backend = suota.NewBackend(suota.NewFileStore(conf.ImageDir))
	d.Backend.MaxImageSize = uint32(conf.MaxImageSize)
	d.Backend.Reboot = func() {
		if d.Reboot != nil {
			d.Reboot()
		}
	}
	if conf.ParamFile != "" {
		f, err := os.Open(conf.ParamFile)
		if err != nil {
			return nil, err
		}
		d.params, d.Params = f, f
	}
	return d, nil
}

// Close releases resources.
func (d *Daemon) Close() error {
	if d.params != nil {
		return d.params.Close()
	}
	return nil
}

// NewSession creates a session on a transport.
func (d *Daemon) NewSession(t suoserial.Transport) *suoserial.Session {
	s := suoserial.NewSession(t, d.Backend)
	s.Config = d.Config.SessionConfig()
	s.Config.Params = d.Params
	return s
}

// Runnable returns the runner of the configured transport.
func (d *Daemon) Runnable() fx.Runnable {
	switch d.Config.Transport {
	case env.TransportMQTT:
		return fx.NamedRun("mqtt", fx.RunFunc(d.serveMQTT))
	case env.TransportWebSocket:
		return fx.NamedRun("ws", fx.RunFunc(d.serveWebSocket))
	}
	return fx.Supervise(d.Config.Transport, ReopenDelay, d.serveSerial)
}

// ServeStream runs a session on a blocking stream until it ends.
func (d *Daemon) ServeStream(ctx context.Context, rw io.ReadWriter) error {
	p := transport.NewPoller(rw, d.Config.ReadTimeout)
	defer p.Close()
	return d.NewSession(p).Run(ctx)
}

func (d *Daemon) serveSerial(ctx context.Context) error {
	cfg := serial.DefaultConfig(d.Config.Device)
	cfg.Baud, cfg.ReadTimeout = d.Config.Baud, d.Config.ReadTimeout
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	defer port.Close()
	s := d.NewSession(port)
	if d.Config.Transport == env.TransportUSB {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			err := serial.WatchDetach(watchCtx, cfg.Device, func() {
				port.MarkDetached()
				s.Detach()
			})
			if err != nil && err != context.Canceled {
				glog.Warningf("watch %s: %v", cfg.Device, err)
			}
		}()
	}
	return s.Run(ctx)
}

func (d *Daemon) serveMQTT(ctx context.Context) error {
	name := d.Config.DeviceName(d.Info)
	q, err := mqtt.NewQueueFromURL(d.Config.MQTTURL, "suoserial-"+name)
	if err != nil {
		return err
	}
	if err := q.Connect(); err != nil {
		return err
	}
	defer q.Close()
	stream := mqtt.NewStream(q).ForDevice(name)
	stream.Timeout = d.Config.ReadTimeout
	if err := stream.Open(); err != nil {
		return err
	}
	defer stream.Close()
	glog.Infof("serving on %s%s", q.TopicPrefix, stream.SubTopic)
	return d.NewSession(stream).Run(ctx)
}

func (d *Daemon) serveWebSocket(ctx context.Context) error {
	srv := websocket.NewServer(func(_ context.Context, rwc io.ReadWriteCloser) error {
		return d.ServeStream(ctx, rwc)
	})
	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	server := &http.Server{Addr: d.Config.Listen, Handler: mux}
	glog.Infof("listening on %s", d.Config.Listen)
	err := fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
