// Package websocket carries the protocol over a WebSocket connection.
package websocket

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// BusyMessage is sent to a client connecting while a session is active.
const BusyMessage = "ERROR busy\n\r"

// ServeFunc serves one connected client until it returns.
type ServeFunc func(ctx context.Context, rwc io.ReadWriteCloser) error

// Server accepts one WebSocket client at a time.
type Server struct {
	Serve ServeFunc

	busy int32
}

// NewServer creates a Server.
func NewServer(serve ServeFunc) *Server {
	return &Server{Serve: serve}
}

// Handler returns the http.Handler accepting clients.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.handle)
}

func (s *Server) handle(conn *websocket.Conn) {
	defer conn.Close()
	if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
		glog.Warningf("websocket: reject %s, session active", conn.Request().RemoteAddr)
		websocket.Message.Send(conn, []byte(BusyMessage))
		return
	}
	defer atomic.StoreInt32(&s.busy, 0)
	conn.PayloadType = websocket.BinaryFrame
	glog.Infof("websocket: client %s", conn.Request().RemoteAddr)
	if err := s.Serve(conn.Request().Context(), conn); err != nil && err != context.Canceled {
		glog.Warningf("websocket: session: %v", err)
	}
	glog.Infof("websocket: client %s gone", conn.Request().RemoteAddr)
}

// Dial connects to a server, url is like ws://host:port/path.
func Dial(url string) (*websocket.Conn, error) {
	origin := "http://localhost/"
	if strings.HasPrefix(url, "wss://") {
		origin = "https://localhost/"
	}
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}
