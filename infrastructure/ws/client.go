package ws

import (
	"chat-relay/domain"
	"chat-relay/services"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	id      domain.ConnectionID
	conn    *websocket.Conn
	sink    *Sink
	chat    services.IChatService
	log     *slog.Logger
	options Options
}

// readPump turns frames into commands until the connection fails, then
// reports the disconnect.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.sink.Close()
		closeCtx, cancel := detached(ctx, c.options.WriteTimeout)
		defer cancel()
		if err := c.chat.Close(closeCtx, c.id); err != nil {
			c.log.Warn("Disconnect not dispatched", "error", err)
		}
		_ = c.conn.Close()
		c.log.Debug("Connection closed")
	}()

	if c.options.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.options.MaxMessageSize)
	}
	c.extendDeadline()
	c.conn.SetPongHandler(func(string) error {
		c.extendDeadline()
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case stderrors.Is(err, websocket.ErrReadLimit):
				c.log.Info("Frame exceeded maximum size", "max", c.options.MaxMessageSize)
			case isExpectedCloseError(err):
				c.log.Debug("Client disconnected", "error", err)
			default:
				c.log.Info("Websocket read error", "error", err)
			}
			return
		}
		if err := c.handle(ctx, frame); err != nil {
			if isDropped(err) {
				c.log.Debug("Frame dropped", "error", err)
				continue
			}
			c.log.Warn("Command not dispatched", "error", err)
			return
		}
	}
}

func (c *client) handle(ctx context.Context, frame []byte) error {
	name, payload, err := Decode(frame)
	if err != nil {
		return err
	}
	switch p := payload.(type) {
	case *AuthenticatePayload:
		return c.chat.Authenticate(ctx, c.id, p.ID, p.Username)
	case *SendMessagePayload:
		return c.chat.SendMessage(ctx, c.id, p.To, p.Text)
	case *GetHistoryPayload:
		return c.chat.GetHistory(ctx, c.id, p.WithUserID)
	default:
		c.log.Debug("Unhandled event", "event", name)
		return nil
	}
}

func (c *client) extendDeadline() {
	if c.options.PongTimeout <= 0 {
		return
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.options.PongTimeout)); err != nil {
		c.log.Debug("Error setting read deadline", "error", err)
	}
}

// writePump is the only writer of the connection.
func (c *client) writePump() {
	var ticks <-chan time.Time
	if c.options.PingInterval > 0 {
		ticker := time.NewTicker(c.options.PingInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.sink.Done():
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case evt := <-c.sink.Events():
			frame, err := Encode(evt)
			if err != nil {
				c.log.Error("Event not encoded", "event", evt.Name(), "error", err)
				continue
			}
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		case <-ticks:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout)); err != nil {
		c.log.Debug("Error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Info("Websocket write error", "error", err)
		}
		return false
	}
	return true
}
