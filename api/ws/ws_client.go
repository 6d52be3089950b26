package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024 * 4

	// Any inbound frame: 10 per second with a burst of 20, else disconnect
	messagesPerSecond = 10
	burstLimit        = 20

	// Refresh commands each trigger a full re-fetch against the backend
	refreshesPerSecond = 1
	refreshBurst       = 3
)

type MessageHandler func(client *Client, messageType int, messageBytes []byte)

func NewClient(hub *Hub, conn *websocket.Conn, handler MessageHandler, logger zerolog.Logger) *Client {
	return &Client{
		hub:            hub,
		conn:           conn,
		handler:        handler,
		Send:           make(chan []byte, 128),
		limiter:        rate.NewLimiter(rate.Limit(messagesPerSecond), burstLimit),
		refreshLimiter: rate.NewLimiter(rate.Limit(refreshesPerSecond), refreshBurst),
		logger:         logger,
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	handler        MessageHandler
	Send           chan []byte // Buffered channel of outbound messages.
	limiter        *rate.Limiter
	refreshLimiter *rate.Limiter
	logger         zerolog.Logger

	// initial, when set, is called by the hub on registration and its frames
	// are queued ahead of any broadcast.
	initial func() [][]byte

	mu     sync.Mutex
	closed bool
}

// Enqueue hands message to the write pump without blocking. It reports false
// when the client is gone or its buffer is full.
func (c *Client) Enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// AllowRefresh reports whether this connection may trigger another re-fetch.
func (c *Client) AllowRefresh() bool {
	return c.refreshLimiter.Allow()
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.CloseCh <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		messageType, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("WS close error")
			}
			break
		}

		if !c.limiter.Allow() {
			c.logger.Warn().Msg("Closing connection: message rate limit exceeded")
			break
		}

		c.handler(c, messageType, messageBytes)
	}
}

func (c *Client) WritePump(shutdownCtx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn().Err(err).Msg("WS send error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-shutdownCtx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Websocket service shutting down"),
			)
			return
		}
	}
}
