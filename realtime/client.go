package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one websocket connection viewing posts.
type Client struct {
	id       string
	conn     *websocket.Conn
	registry *Registry
	log      *zap.Logger

	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, registry *Registry, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Client{
		id:       id,
		conn:     conn,
		registry: registry,
		log:      log.With(zap.String("conn_id", id)),
		send:     make(chan Event, sendBuffer),
		done:     make(chan struct{}),
	}
}

// ID identifies the connection in logs.
func (c *Client) ID() string { return c.id }

// Deliver queues ev without blocking. It returns false when the connection is
// closed or its buffer is full.
func (c *Client) Deliver(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close terminates the connection; Serve then drops it from the registry.
func (c *Client) Close() error {
	c.shutdown(websocket.CloseGoingAway, "server shutting down")
	return nil
}

// Serve attaches the connection, pumps frames until it ends, and drops it from
// every room exactly once on the way out.
func (c *Client) Serve() {
	c.registry.Attach(c)
	c.log.Debug("client connected")

	go c.writePump()
	c.readPump()

	c.shutdown(websocket.CloseNormalClosure, "")
	rooms := c.registry.Drop(c)
	c.log.Debug("client disconnected", zap.Strings("rooms", rooms))
}

func (c *Client) shutdown(code int, text string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.log.Debug("client read failed", zap.Error(err))
			}
			return
		}

		var in Event
		if err := json.Unmarshal(data, &in); err != nil {
			c.Deliver(Event{Event: EventError, Message: "malformed message"})
			continue
		}
		c.handle(in)
	}
}

func (c *Client) handle(in Event) {
	switch in.Event {
	case EventJoinPost:
		if err := c.registry.Join(c, in.PostID); err != nil {
			msg := "cannot join post"
			if errors.Is(err, ErrInvalidRoom) {
				msg = err.Error()
			}
			c.Deliver(Event{Event: EventError, PostID: in.PostID, Message: msg})
			return
		}
		c.log.Debug("joined post room", zap.String("post_id", in.PostID))
		c.Deliver(Event{Event: EventJoined, PostID: in.PostID})
	case EventLeavePost:
		c.registry.Leave(c, in.PostID)
		c.Deliver(Event{Event: EventLeft, PostID: in.PostID})
	default:
		c.Deliver(Event{Event: EventError, Message: "unknown event"})
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("client write failed", zap.Error(err))
				c.shutdown(websocket.CloseInternalServerErr, "write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(websocket.CloseGoingAway, "ping failed")
				return
			}
		}
	}
}
