// Package ws is the websocket transport of the relay.
// Each connection gets a Sink, a read pump turning frames into chat
// commands and a write pump turning sink events into frames.
package ws

import (
	"chat-relay/errors"
	"chat-relay/services"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	AllowedOrigins []string
	MaxMessageSize int64
	BufferSize     int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Gateway upgrades HTTP requests and runs the connection pumps.
type Gateway struct {
	log      *slog.Logger
	chat     services.IChatService
	options  Options
	upgrader websocket.Upgrader
}

func NewGateway(log *slog.Logger, chat services.IChatService, options Options) *Gateway {
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = 10 * time.Second
	}
	policy := newOriginPolicy(log, options.AllowedOrigins)
	return &Gateway{
		log:     log,
		chat:    chat,
		options: options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
	}
}

// ServeHTTP blocks for the lifetime of the connection.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	sink := NewSink(g.options.BufferSize)
	id := g.chat.Open(sink)
	c := &client{
		id:      id,
		conn:    conn,
		sink:    sink,
		chat:    g.chat,
		log:     g.log.With("connection_id", id, "remote_addr", r.RemoteAddr),
		options: g.options,
	}
	c.log.Debug("Connection opened")

	go c.writePump()
	c.readPump(r.Context())
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, net.ErrClosed) || stderrors.Is(err, io.EOF) || stderrors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure)
}

// isDropped tells the errors a client triggers with bad frames apart from
// engine failures.
func isDropped(err error) bool {
	return stderrors.Is(err, errors.ErrInvalidPayload) || stderrors.Is(err, errors.ErrUnknownEvent)
}

// detached keeps request values but survives the request.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
