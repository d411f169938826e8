package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/kestrelgeo/landview/geo"
	"github.com/kestrelgeo/landview/logger"
	"github.com/kestrelgeo/landview/view"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Outbound command buffer per client
	sendBufferSize = 256
)

// Client is one connected browser shell. Each client owns its own map
// session: its own engine, readiness gate, and query pipeline.
type Client struct {
	bridge  *Bridge
	conn    *websocket.Conn
	send    chan *command
	done    chan struct{}
	id      string
	session *view.Session
	engine  *wsEngine

	// clickLimiter drops click floods instead of queueing them; a burst
	// of stale queries wastes backend work the ordering rule will discard
	// anyway.
	clickLimiter *rate.Limiter

	closeOnce sync.Once
}

// sendCommand queues a command for the write pump. A client whose buffer
// is full is too far behind to be useful; the command is dropped and the
// next state-bearing command supersedes it. After close the command is
// discarded: the send channel is never closed, so background session
// goroutines that outlive the connection (vector load waits, deferred
// navigation) can keep calling this safely.
func (c *Client) sendCommand(cmd *command) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- cmd:
	default:
		logger.Warnw("Client send buffer full, dropping command",
			"client_id", c.id,
			"command", cmd.Type,
		)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads messages from the browser until the connection drops.
func (c *Client) readPump() {
	defer func() {
		// During bridge shutdown the registry loop is already gone; do
		// not block on it forever.
		select {
		case c.bridge.unregister <- c:
		case <-c.bridge.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	logger.Debugw("Read pump started", "client_id", c.id)

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			logger.Warnw("JSON unmarshal error",
				"error", err.Error(),
				"client_id", c.id,
			)
			continue
		}

		c.routeMessage(&msg)
	}
}

// handleReadError logs unexpected WebSocket read errors. Expected
// closure codes (going away, abnormal, no status) are silently ignored.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		logger.Warnw("WebSocket read error",
			"error", err.Error(),
			"client_id", c.id,
		)
	}
}

// routeMessage dispatches inbound messages to the session.
func (c *Client) routeMessage(msg *inboundMessage) {
	switch msg.Type {
	case msgReady:
		c.session.Gate().MarkReady()
		logger.Infow("Map engine ready", "client_id", c.id)
	case msgInitFailed:
		c.session.Gate().Fail(initError(msg.Reason))
		logger.Warnw("Map engine failed to initialize",
			"client_id", c.id,
			"reason", msg.Reason,
		)
	case msgClick:
		c.handleClick(msg)
	case msgSetMode:
		c.session.SetDisplayMode(view.DisplayMode(msg.Mode))
	case msgLayerLoaded:
		c.engine.handleLayerLoaded(msg.LayerID, msg.OK, msg.Error)
	case msgLoadJob:
		c.handleLoadJob(msg.JobID)
	case msgPing:
		// Deadline already refreshed by the pong handler.
	default:
		logger.Debugw("Unknown message type",
			"type", msg.Type,
			"client_id", c.id,
		)
	}
}

func (c *Client) handleClick(msg *inboundMessage) {
	if !c.clickLimiter.Allow() {
		logger.Debugw("Click rate limit exceeded", "client_id", c.id)
		return
	}

	point := geo.EnginePoint{X: msg.X, Y: msg.Y, SRID: msg.SRID}
	go func() {
		ctx, cancel := context.WithTimeout(c.bridge.ctx, 30*time.Second)
		defer cancel()
		if err := c.session.HandleClick(ctx, point); err != nil {
			// Rejections already produced a user-facing notice.
			logger.Debugw("Point query not completed",
				"client_id", c.id,
				"error", err.Error(),
			)
		}
	}()
}

func (c *Client) handleLoadJob(jobID string) {
	if jobID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(c.bridge.ctx, 2*time.Minute)
		defer cancel()
		if err := c.session.LoadJob(ctx, jobID); err != nil {
			logger.Warnw("Job resume failed",
				"client_id", c.id,
				"job_id", jobID,
				"error", err.Error(),
			)
		}
	}()
}

// writePump writes queued commands and keepalive pings to the browser.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	logger.Debugw("Write pump started", "client_id", c.id)

	for {
		select {
		case <-c.bridge.ctx.Done():
			logger.Debugw("Write pump stopping due to server shutdown", "client_id", c.id)
			return
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case cmd := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(cmd); err != nil {
				logger.Warnw("Command write error",
					"error", err.Error(),
					"client_id", c.id,
					"command", cmd.Type,
				)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
