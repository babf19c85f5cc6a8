package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
	sendBuffer = 256
)

// Client is one editor connection to a layout room. Fields other than the
// send queue are fixed at construction.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	closed      bool
	UserID      string
	DisplayName string
	LayoutID    string
	ClientID    string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, layoutID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		UserID:      userID,
		DisplayName: displayName,
		LayoutID:    layoutID,
		ClientID:    clientID,
	}
}

// Serve joins the client to its room and pumps the connection until either
// side closes it or the hub stops.
func (c *Client) Serve(ctx context.Context) {
	if err := c.hub.Register(c); err != nil {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	go c.WritePump(ctx)
	c.ReadPump(ctx)
}

// ReadPump forwards presence updates and operation submissions to the hub.
// Every message is stamped with the connection's identity.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				slog.Debug("read error", "error", err, "client", c.ClientID)
			}
			return
		}
		if typ != websocket.MessageText {
			slog.Warn("binary frame ignored", "client", c.ClientID)
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "client", c.ClientID)
			continue
		}
		if msg.Type != TypePresenceUpdate && msg.Type != TypeOpSubmit {
			slog.Warn("unexpected message type", "type", msg.Type, "client", c.ClientID)
			continue
		}

		msg.UserID = c.UserID
		msg.ClientID = c.ClientID
		msg.LayoutID = c.LayoutID

		c.hub.Submit(c, &msg)
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings. It returns when the hub closes the queue.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// Send queues msg for the write pump. A client that cannot keep up misses
// messages; the next frame brings it back in step. Hub goroutine only.
func (c *Client) Send(msg *Message) {
	if c.closed {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	select {
	case c.send <- data:
	default:
		slog.Warn("send queue full, dropping message", "client", c.ClientID, "type", msg.Type)
	}
}

// close ends the write pump once the queued messages are written.
func (c *Client) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
