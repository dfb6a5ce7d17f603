package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// subscribeRequest is the only inbound message clients send: which lists
// they want events for.
type subscribeRequest struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	ListID string `json:"list_id"`
}

// Client represents a single WebSocket connection and its list
// subscriptions.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte

	mu    sync.Mutex
	lists map[string]struct{}
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		lists: make(map[string]struct{}),
	}
}

func (c *Client) subscribed(listID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lists[listID]
	return ok
}

// Subscribe adds a list to the client's subscription set.
func (c *Client) Subscribe(listID string) {
	c.mu.Lock()
	c.lists[listID] = struct{}{}
	c.mu.Unlock()
}

// Unsubscribe removes a list from the client's subscription set.
func (c *Client) Unsubscribe(listID string) {
	c.mu.Lock()
	delete(c.lists, listID)
	c.mu.Unlock()
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump handles inbound subscribe messages. It returns on error
// (connection close), which triggers cleanup. Malformed messages are
// ignored, not fatal.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil || req.ListID == "" {
			continue
		}
		switch req.Action {
		case "subscribe":
			c.Subscribe(req.ListID)
		case "unsubscribe":
			c.Unsubscribe(req.ListID)
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel; connection is done
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
