// Package ws adapts gorilla websocket connections to the duplex channel the
// chat runtime works with, and exposes the upgrade endpoint.
package ws

import (
	"chat-rooms/domain/chat"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	MaxFrameSize int64
}

// Conn is a contract.DuplexConnection over a gorilla websocket.
// Gorilla allows one concurrent writer, so every data write holds writeMu.
// Control frames go through WriteControl which is safe to call concurrently.
type Conn struct {
	id        chat.ConnID
	ws        *websocket.Conn
	log       *slog.Logger
	opts      Options
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	// expired is set once a Receive was cancelled. Gorilla read errors are
	// permanent, so pongs must not move the deadline back out afterwards.
	expired atomic.Bool
}

// NewConn arms the read limit and keepalive of ws and starts pinging it.
func NewConn(id chat.ConnID, ws *websocket.Conn, log *slog.Logger, opts Options) *Conn {
	c := &Conn{
		id:   id,
		ws:   ws,
		log:  log.With("conn_id", id),
		opts: opts,
		done: make(chan struct{}),
	}
	if opts.MaxFrameSize > 0 {
		ws.SetReadLimit(opts.MaxFrameSize)
	}
	_ = ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	ws.SetPongHandler(c.onPong)
	go c.keepAlive()
	return c
}

func (c *Conn) ID() chat.ConnID {
	return c.id
}

// Send writes envelope as one text frame. The write deadline is the earliest
// of ctx's deadline and the configured write wait.
func (c *Conn) Send(ctx context.Context, envelope chat.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.opts.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(envelope)
}

// Receive blocks until a data frame arrives. Cancelling ctx expires the read deadline.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		c.expired.Store(true)
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.logReadError(err)
		return nil, err
	}
	return data, nil
}

// Close sends a close frame with code and reason then drops the socket.
// Only the first call has an effect.
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		frame := websocket.FormatCloseMessage(code, reason)
		if writeErr := c.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.opts.WriteWait)); writeErr != nil &&
			!errors.Is(writeErr, websocket.ErrCloseSent) {
			c.log.Debug("Close frame not sent", "code", code, "error", writeErr)
		}
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) onPong(string) error {
	if c.expired.Load() {
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}
	return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
}

// keepAlive pings the peer every PingInterval. A non-positive interval
// disables pings and leaves only the read deadline.
func (c *Conn) keepAlive() {
	if c.opts.PingInterval <= 0 {
		c.log.Warn("Keepalive disabled", "ping_interval", c.opts.PingInterval)
		return
	}
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.Debug("Ping failed", "error", err)
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (c *Conn) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Info("Frame exceeded maximum size", "max", c.opts.MaxFrameSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug("Peer closed the connection", "error", err)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Debug("Connection closed", "error", err)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseAbnormalClosure):
		c.log.Warn("Unexpected close", "error", err)
	default:
		c.log.Debug("Read failed", "error", err)
	}
}
