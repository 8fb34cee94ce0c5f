package daemon

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/suoserial/pkg/env"
	fx "github.com/robotalks/suoserial/pkg/framework"
	"github.com/robotalks/suoserial/pkg/host"
	"github.com/robotalks/suoserial/pkg/suota"
	"github.com/robotalks/suoserial/pkg/transport"
)

func newTestDaemon(t *testing.T, dir string) *Daemon {
	params := filepath.Join(dir, "params.bin")
	require.NoError(t, ioutil.WriteFile(params, bytes.Repeat([]byte{0xa5}, 84), 0644))
	conf := env.NewConfig()
	conf.Transport = env.TransportWebSocket
	conf.ImageDir = filepath.Join(dir, "images")
	conf.ParamFile = params
	conf.ReadTimeout = time.Millisecond
	d, err := New(conf)
	require.NoError(t, err)
	return d
}

func TestServeStream(t *testing.T) {
	dir, err := ioutil.TempDir("", "daemon")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	d := newTestDaemon(t, dir)
	defer d.Close()
	rebooted := make(chan struct{})
	d.Reboot = func() { close(rebooted) }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	devEnd, hostEnd := transport.Pipe()
	done := make(chan error, 1)
	go func() { done <- d.ServeStream(ctx, devEnd) }()

	client := host.NewClient(hostEnd)
	params, err := client.ReadParams(ctx)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{0xa5}, 84), params)

	img, err := suota.BuildImage("0.9.0", bytes.Repeat([]byte("fw"), 3000), time.Now())
	require.NoError(t, err)
	require.NoError(t, client.Update(ctx, img, host.UpdateOptions{}))

	data, err := ioutil.ReadFile(filepath.Join(dir, "images", "image.bin"))
	require.NoError(t, err)
	require.Equal(t, img, data)

	require.NoError(t, client.EnterUpdate(ctx))
	_, err = client.Request(ctx, "SUOSERIAL_MEM_DEV", 0, []byte{0, 0, 0, suota.MemDevReboot})
	require.NoError(t, err)
	<-rebooted

	// closing the host side ends the session
	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestRunnable(t *testing.T) {
	dir, err := ioutil.TempDir("", "daemon")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	d := newTestDaemon(t, dir)
	defer d.Close()

	d.Config.Transport = env.TransportUSB
	require.Equal(t, env.TransportUSB, d.Runnable().(fx.Named).Name())
	d.Config.Transport = env.TransportMQTT
	require.Equal(t, "mqtt", d.Runnable().(fx.Named).Name())

	d.Config.Transport = env.TransportWebSocket
	d.Config.Listen = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Runnable().Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}
