package websocket

import (
	"log"
	"net/http"
	"time"

	"glowworm/types"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader shared by the progress endpoints
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin for development
		// In production, check against allowed origins
		return true
	},
}

// Client represents one connected progress subscriber
type Client struct {
	hub    Hub
	conn   *websocket.Conn
	send   chan types.ProgressUpdate
	taskID string
}

// NewClient creates a new progress subscriber for a task channel
func NewClient(hub Hub, conn *websocket.Conn, taskID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan types.ProgressUpdate, 256),
		taskID: taskID,
	}
}

// StartPumps starts the read and write pumps for the subscriber
func (c *Client) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// readPump drains the connection; subscribers are receive-only, so
// inbound frames are discarded and the pump exists to observe closes
// and answer pings
func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Progress subscriber error: %v", err)
			}
			break
		}
	}
}

// writePump delivers progress frames and keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case update, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				c.conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}

			if err := c.conn.WriteJSON(update); err != nil {
				log.Printf("Progress subscriber write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GetUpgrader returns the WebSocket upgrader
func GetUpgrader() websocket.Upgrader {
	return upgrader
}
