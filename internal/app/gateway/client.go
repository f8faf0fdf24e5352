/*
Package gateway binds WebSocket connections to sessions of the space hub.

This file defines the Client struct, representing one active WebSocket connection. It decodes the frames
sent by the browser into session messages for the hub (ReadPump), writes the frames the hub delivers back
to the socket (WritePump), and reports the loss of the transport as the session's disconnect.
*/
package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hzspace/internal/app/space"
	"hzspace/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client. Audio chunks are the largest.
	maxMessageSize = 64 * 1024
)

// Submitter enqueues session messages for processing.
type Submitter interface {
	Submit(sessionID string, msg space.Inbound) error
}

// Client struct represents an active WebSocket connection and the session it carries.
type Client struct {
	// session identifier assigned when the connection was accepted.
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	hub Submitter

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// closed once the hub has detached the session; WritePump then ends the connection.
	done      chan struct{}
	closeOnce sync.Once

	// structured logger with session context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance with a send queue of queueSize frames.
func NewClient(id string, conn *websocket.Conn, hub Submitter, queueSize int) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
		logger: logx.Component("Client").With().Str("session_id", id).Logger(),
	}
}

// Deliver queues a frame without blocking. It returns false when the queue is full or the client is closed.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the WritePump, which closes the connection. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// ReadPump handles reading frames from the WebSocket connection until it fails,
// then submits the session's disconnect.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		if !c.processInboundFrame(frame) {
			return
		}
	}
}

// processInboundFrame decodes one frame and hands it to the hub.
// Returns false if the ReadPump loop should terminate.
func (c *Client) processInboundFrame(frame []byte) bool {
	msg, err := space.DecodeInbound(frame)
	if err != nil {
		c.logger.Warn().Err(err).Int("frame_bytes", len(frame)).Msg("Client sent invalid frame")
		return true
	}

	if err := c.hub.Submit(c.id, msg); err != nil {
		c.logger.Warn().Err(err).Str("event", string(msg.Name())).Msg("Hub refused message.")
		return false
	}
	return true
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	if err := c.hub.Submit(c.id, space.Disconnect{}); err != nil && !errors.Is(err, space.ErrHubStopped) {
		c.logger.Error().Err(err).Msg("Failed to submit disconnect")
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump handles writing frames from the send queue to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.writeFrame(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// writeFrame writes one frame under the write deadline.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}

	return true
}
