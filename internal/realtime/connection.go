package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport errors.
var (
	// ErrConnectionClosed is returned when writing to a closed transport.
	ErrConnectionClosed = errors.New("realtime: connection closed")

	// ErrWriteTimeout is returned when the write queue stays full too long.
	ErrWriteTimeout = errors.New("realtime: write timeout")
)

// Transport is a live push channel to one client. The registry owns
// transports; everything else goes through registry send methods.
type Transport interface {
	// WriteJSON delivers one JSON message, best effort.
	WriteJSON(v any) error

	// Ping probes connection liveness.
	Ping() error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

const (
	// writeQueueSize bounds pending messages per connection.
	writeQueueSize = 100

	// writeDeadline is the per-message websocket write deadline.
	writeDeadline = 5 * time.Second
)

// WSConnection wraps a gorilla websocket connection behind a single
// writer goroutine. Gorilla connections support one concurrent writer;
// broadcasts fan in through the write queue instead.
type WSConnection struct {
	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewWSConnection wraps an upgraded websocket connection and starts
// its writer goroutine.
func NewWSConnection(conn *websocket.Conn) *WSConnection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &WSConnection{
		conn:    conn,
		writeCh: make(chan []byte, writeQueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

func (c *WSConnection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				c.cancel()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.cancel()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues one message for delivery.
func (c *WSConnection) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(writeDeadline):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Ping sends a websocket ping control frame.
// WriteControl is safe to call concurrently with the writer goroutine.
func (c *WSConnection) Ping() error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline))
}

// Close stops the writer goroutine and closes the websocket.
func (c *WSConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}
