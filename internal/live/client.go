package live

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Client is one websocket subscriber.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Inbound is a message sent by the browser.
type Inbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// readPump keeps the read deadline alive and forwards inbound messages.
// It unregisters the client when the connection drops.
func (c *Client) readPump() {
	logger := c.hub.logger.With("operation", "readPump", "client_id", c.ID)
	defer func() {
		c.hub.unregister(c)
		if err := c.conn.Close(); err != nil {
			logger.Debug("Failed to close websocket connection", "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Warn("Failed to set read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Websocket closed unexpectedly", "error", err)
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("Ignoring malformed message", "error", err)
			continue
		}
		if c.hub.onMessage != nil {
			c.hub.onMessage(c.ID, msg)
		}
	}
}

// writePump sends queued events and pings until the send channel closes.
func (c *Client) writePump() {
	logger := c.hub.logger.With("operation", "writePump", "client_id", c.ID)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			logger.Debug("Failed to close websocket connection", "error", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Warn("Failed to set write deadline", "error", err)
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("Write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Warn("Failed to set ping write deadline", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}
