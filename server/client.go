package server

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 64 * 1024
)

// Client is one WebSocket connection. It is joined to at most one document
// session at a time.
type Client struct {
	ID    string
	Name  string
	Color string

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
}

var (
	adjectives = []string{"Red", "Blue", "Green", "Gold", "Silver", "Purple", "Orange", "Teal", "Coral", "Jade"}
	animals    = []string{"Fox", "Owl", "Bear", "Wolf", "Hawk", "Deer", "Lynx", "Crow", "Dove", "Seal"}
	colors     = []string{"#e74c3c", "#3498db", "#2ecc71", "#f39c12", "#9b59b6", "#1abc9c", "#e67e22", "#00bcd4", "#ff5722", "#8bc34a"}
)

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		Name:   adjectives[rand.IntN(len(adjectives))] + " " + animals[rand.IntN(len(animals))],
		Color:  colors[rand.IntN(len(colors))],
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: hub.logger.With("client", id),
	}
}

func (c *Client) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// readPump decodes incoming messages and routes them. Messages that do not
// decode or validate are answered here and never reach a session.
func (c *Client) readPump() {
	defer func() {
		if s := c.currentSession(); s != nil {
			s.leave <- c
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", "err", err)
			}
			return
		}
		msg, err := decodeClientMessage(data)
		if err != nil {
			messagesTotal.WithLabelValues("invalid", "error").Inc()
			c.sendError(err.Error())
			continue
		}
		c.route(msg)
	}
}

func (c *Client) route(msg ClientMessage) {
	if msg.Type == MsgJoin {
		if s := c.currentSession(); s != nil {
			c.sendError("already joined to " + s.docID)
			return
		}
		c.hub.joinDoc <- joinRequest{client: c, docID: msg.DocID}
		return
	}
	s := c.currentSession()
	switch {
	case s == nil:
		c.sendError("not joined to a document")
	case msg.DocID != "" && msg.DocID != s.docID:
		c.sendError("joined to " + s.docID + ", not " + msg.DocID)
	default:
		s.incoming <- clientMessage{client: c, msg: msg}
	}
}

// writePump sends queued replies and keeps the connection alive. It sends a
// close frame once the session closes the send channel.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

// sendMsg queues msg without blocking the session. A client that cannot keep
// up loses the message; the next state reply carries the full state anyway.
func (c *Client) sendMsg(msg ServerMessage) {
	select {
	case c.send <- msg.Encode():
	default:
		droppedRepliesTotal.WithLabelValues(msg.Type).Inc()
		if c.logger != nil {
			c.logger.Warn("reply dropped", "type", msg.Type)
		}
	}
}

func (c *Client) sendError(message string) {
	c.sendMsg(ServerMessage{Type: MsgError, Message: message})
}

func (c *Client) Info() ClientInfo {
	return ClientInfo{ID: c.ID, Name: c.Name, Color: c.Color}
}
