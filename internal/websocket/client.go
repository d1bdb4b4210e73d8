package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/pkg/movie"
	"moviesearch-client/pkg/reveal"
	"moviesearch-client/pkg/search"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 512
)

const (
	MessageSearch    = "search"
	MessageReset     = "reset"
	MessageSubmitted = "submitted"
	MessageState     = "state"
	MessageReveal    = "reveal"
	MessageError     = "error"
)

// Session is the search controller owned by one connection.
type Session interface {
	Submit(q search.Query) (uuid.UUID, bool)
	Reset()
	State() search.State
}

// SessionFactory builds a connection's Session, wiring listener in.
type SessionFactory func(listener search.Listener) Session

// Inbound is a client command.
type Inbound struct {
	Type          string `json:"type"`
	Query         string `json:"query,omitempty"`
	WantsOverview *bool  `json:"wants_overview,omitempty"`
	ResultCount   int    `json:"result_count,omitempty"`
}

// Outbound is a server push.
type Outbound struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type RevealFrame struct {
	SessionID uuid.UUID `json:"session_id"`
	Text      string    `json:"text"`
	Done      bool      `json:"done"`
}

// Client is a middleman between the websocket connection and its search
// session.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// ID identifies the connection in logs.
	ID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	session  Session
	revealer *reveal.Revealer
	logger   logger.ILogger

	mu        sync.Mutex
	closed    bool
	overview  *movie.Overview
	revealGen uint64
}

func newClient(hub *Hub, conn *websocket.Conn, revealInterval time.Duration, factory SessionFactory, log logger.ILogger) *Client {
	c := &Client{
		Hub:      hub,
		Conn:     conn,
		ID:       uuid.New(),
		Send:     make(chan []byte, sendBuffer),
		revealer: reveal.NewRevealer(revealInterval),
		logger:   log,
	}
	c.session = factory(c.onState)
	return c
}

// onState runs as the session listener; it must not block.
func (c *Client) onState(st search.State) {
	c.enqueue(Outbound{Type: MessageState, Data: st})

	c.mu.Lock()
	defer c.mu.Unlock()
	if st.Overview == nil {
		if c.overview != nil {
			c.overview = nil
			c.revealGen++
			c.revealer.Stop()
		}
		return
	}
	if st.Overview == c.overview {
		return
	}
	c.overview = st.Overview
	c.revealGen++
	c.startRevealLocked(st.SessionID, st.Overview.Summary, c.revealGen)
}

func (c *Client) startRevealLocked(sessionID uuid.UUID, text string, gen uint64) {
	frames := c.revealer.Start(context.Background(), text)
	go func() {
		for f := range frames {
			c.mu.Lock()
			stale := c.revealGen != gen
			c.mu.Unlock()
			if stale {
				return
			}
			c.enqueue(Outbound{Type: MessageReveal, Data: RevealFrame{SessionID: sessionID, Text: f.Text, Done: f.Done}})
		}
	}()
}

// enqueue never blocks. A client too slow to drain its buffer loses
// messages rather than stalling the session.
func (c *Client) enqueue(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("WSClient", "Failed to marshal message", map[string]interface{}{"type": msg.Type, "error": err.Error()})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
		c.logger.Warn("WSClient", "Send buffer full, dropping message", map[string]interface{}{"conn_id": c.ID, "type": msg.Type})
	}
}

func (c *Client) handleMessage(data []byte) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.enqueue(Outbound{Type: MessageError, Data: map[string]string{"error": "invalid message"}})
		return
	}

	switch in.Type {
	case MessageSearch:
		q := search.Query{Text: in.Query, WantsOverview: true, ResultCount: in.ResultCount}
		if in.WantsOverview != nil {
			q.WantsOverview = *in.WantsOverview
		}
		id, ok := c.session.Submit(q)
		if !ok {
			c.enqueue(Outbound{Type: MessageError, Data: map[string]string{"error": "query is empty"}})
			return
		}
		c.enqueue(Outbound{Type: MessageSubmitted, Data: map[string]string{"session_id": id.String()}})
	case MessageReset:
		c.session.Reset()
	default:
		c.enqueue(Outbound{Type: MessageError, Data: map[string]string{"error": "unknown message type: " + in.Type}})
	}
}

// close stops the session and the send channel. Called once, by the hub.
func (c *Client) close() {
	c.session.Reset()
	c.revealer.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.revealGen++
		close(c.Send)
	}
}

// readPump pumps commands from the websocket connection to the session.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.quit:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WSClient", "Unexpected close", map[string]interface{}{"conn_id": c.ID, "error": err.Error()})
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("WSClient", "Ping failed", map[string]interface{}{"conn_id": c.ID, "error": err.Error()})
				return
			}
		}
	}
}
