package sh

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/robotalks/suoserial/pkg/suoserial"
	"github.com/robotalks/suoserial/pkg/transport/mqtt"
	"github.com/robotalks/suoserial/pkg/transport/serial"
	"github.com/robotalks/suoserial/pkg/transport/websocket"
)

// Target describes how to reach a device.
type Target struct {
	Scheme  string
	Device  string
	Baud    int
	URL     string
	Variant suoserial.Variant
}

// ParseTarget parses a target:
//
//	serial:///dev/ttyUSB0?baud=115200
//	usb:///dev/ttyACM0
//	mqtt://host:1883/prefix/?device=NAME
//	ws://host:8086/
func ParseTarget(target string) (*Target, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target: %v", err)
	}
	t := &Target{Scheme: u.Scheme, URL: target}
	switch u.Scheme {
	case "serial", "usb":
		if u.Path == "" {
			return nil, fmt.Errorf("target %q: device path required", target)
		}
		t.Device = u.Path
		t.Baud = serial.DefaultConfig(u.Path).Baud
		if val := u.Query().Get("baud"); val != "" {
			if t.Baud, err = strconv.Atoi(val); err != nil {
				return nil, fmt.Errorf("target %q: invalid baud: %v", target, err)
			}
		}
		if u.Scheme == "usb" {
			t.Variant = suoserial.VariantUSB
		}
	case "mqtt", "tcp", "ssl":
		q := u.Query()
		if t.Device = q.Get("device"); t.Device == "" {
			return nil, fmt.Errorf("target %q: device name required", target)
		}
		q.Del("device")
		u.RawQuery = q.Encode()
		t.URL = u.String()
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unknown target scheme %q", u.Scheme)
	}
	return t, nil
}

type mqttConn struct {
	*mqtt.Stream
}

func (c mqttConn) Close() error {
	c.Stream.Close()
	return c.Queue.Close()
}

// Dial connects the target.
func (t *Target) Dial() (io.ReadWriteCloser, error) {
	switch t.Scheme {
	case "serial", "usb":
		cfg := serial.DefaultConfig(t.Device)
		cfg.Baud = t.Baud
		cfg.ReadTimeout = 100 * time.Millisecond
		return serial.Open(cfg)
	case "ws", "wss":
		return websocket.Dial(t.URL)
	}
	q, err := mqtt.NewQueueFromURL(t.URL, "suocli-"+strconv.FormatInt(time.Now().UnixNano(), 36))
	if err != nil {
		return nil, err
	}
	if err := q.Connect(); err != nil {
		return nil, err
	}
	s := mqtt.NewStream(q).ForHost(t.Device)
	if err := s.Open(); err != nil {
		q.Close()
		return nil, err
	}
	return mqttConn{s}, nil
}
