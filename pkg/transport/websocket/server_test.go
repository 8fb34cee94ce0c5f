package websocket

import (
	"bufio"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerSingleSession(t *testing.T) {
	release := make(chan struct{})
	srv := NewServer(func(ctx context.Context, rwc io.ReadWriteCloser) error {
		line, err := bufio.NewReader(rwc).ReadString('\r')
		if err != nil {
			return err
		}
		if _, err = rwc.Write([]byte("OK " + line)); err != nil {
			return err
		}
		<-release
		return nil
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	first, err := Dial(url)
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Write([]byte("hello\r"))
	require.NoError(t, err)
	buf := make([]byte, 64)
	n, err := first.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "OK hello\r", string(buf[:n]))

	second, err := Dial(url)
	require.NoError(t, err)
	n, err = second.Read(buf)
	require.NoError(t, err)
	require.Equal(t, BusyMessage, string(buf[:n]))
	second.Close()

	close(release)
}
