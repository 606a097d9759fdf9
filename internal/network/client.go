package network

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/platform/metrics"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// PlayerAction is an incoming command from a frontend.
type PlayerAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client represents one active WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient wraps a raw connection for the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	c.hub.register <- c
}

// ReadPump pumps messages from the websocket connection to the bus.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket read: %v", err)
			}
			break
		}
		metrics.Get().RecordWSMessageIn()

		var action PlayerAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Unparseable player action: %v", err)
			continue
		}
		c.handlePlayerAction(action)
	}
}

// handlePlayerAction translates a frontend command into bus traffic.
// The core only ever sees events; it does not know this client exists.
func (c *Client) handlePlayerAction(action PlayerAction) {
	switch action.Type {
	case "buttonDown":
		var p events.ButtonPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil || p.Button == "" {
			return
		}
		c.trackButton(p.Button, true)
		c.hub.bus.Publish(events.InputButtonDown, p)

	case "buttonUp":
		var p events.ButtonPayload
		if err := json.Unmarshal(action.Payload, &p); err != nil || p.Button == "" {
			return
		}
		c.trackButton(p.Button, false)
		c.hub.bus.Publish(events.InputButtonUp, p)

	case "channelSelect":
		var p struct {
			Channel int `json:"channel"`
		}
		if err := json.Unmarshal(action.Payload, &p); err != nil {
			return
		}
		prev, _ := c.hub.store.Get(state.FieldCurrentChannel).(int)
		if p.Channel == prev {
			return
		}
		c.hub.store.Set(state.FieldCurrentChannel, p.Channel)
		c.hub.bus.Publish(events.GameChannelChanged, events.ChannelPayload{
			Channel:  p.Channel,
			Previous: prev,
		})

	case "visibilityHidden":
		c.hub.store.Set(state.FieldVisible, false)
		c.hub.bus.Publish(events.SystemVisibilityHidden, nil)

	case "visibilityVisible":
		c.hub.store.Set(state.FieldVisible, true)
		c.hub.bus.Publish(events.SystemVisibilityVisible, nil)

	case "powerOff":
		c.hub.store.Set(state.FieldPowerOn, false)
		c.hub.bus.Publish(events.SystemPowerOff, nil)

	default:
		c.hub.logger.Warn("Unknown player action type: %s", action.Type)
	}
}

// trackButton keeps the held-button set in the store current.
func (c *Client) trackButton(button string, down bool) {
	held, _ := c.hub.store.Get(state.FieldHeldButtons).(map[string]bool)
	next := make(map[string]bool, len(held)+1)
	for k, v := range held {
		next[k] = v
	}
	if down {
		next[button] = true
	} else {
		delete(next, button)
	}
	c.hub.store.Set(state.FieldHeldButtons, next)
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
