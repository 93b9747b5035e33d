package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

// The event feed is low-volume: a handful of check-ins and alerts per
// minute at most. A small buffer is plenty, and the hub drops rather than
// blocks when a browser stops draining it.
const (
	eventBuffer    = 16
	keepAliveEvery = 45 * time.Second
)

// Client is one browser subscribed to the live event feed.
type Client struct {
	hub  *Hub
	conn *ws.Conn
	send chan []byte
}

func NewClient(hub *Hub, conn *ws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, eventBuffer),
	}
}

// Run subscribes the client to the hub and serves it until the browser
// disconnects, then unsubscribes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.deliver(ctx)
	c.awaitClose(ctx)
}

// awaitClose consumes the incoming side of the socket. The feed is one-way,
// so anything the browser sends is dropped; a read error is the disconnect
// signal that tears the client down.
func (c *Client) awaitClose(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// deliver writes queued events to the socket and pings idle connections so
// half-open sockets from sleeping phones get detected and reaped.
func (c *Client) deliver(ctx context.Context) {
	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				// Hub unsubscribed us
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, event); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
