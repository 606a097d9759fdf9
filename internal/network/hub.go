// Package network exposes the haunting over WebSocket. Collaborator
// frontends (renderer, audio, UI chrome) connect here, receive every
// effect event, and push player input back onto the bus.
package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/platform/metrics"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireMessage is the envelope every outbound frame uses.
type wireMessage struct {
	Event   events.Name `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub maintains the set of active clients and fans bus events out to
// them.
type Hub struct {
	bus    *events.Bus
	store  *state.Store
	logger *logger.Logger

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	unsubs     []func()
}

// NewHub initializes a WebSocket hub over the given bus.
func NewHub(bus *events.Bus, store *state.Store, log *logger.Logger) *Hub {
	return &Hub{
		bus:        bus,
		store:      store,
		logger:     log,
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Attach subscribes the hub to every collaborator-facing event so
// connected frontends see the haunting as it happens.
func (h *Hub) Attach() {
	for _, name := range events.CollaboratorNames() {
		name := name
		h.unsubs = append(h.unsubs, h.bus.Subscribe(name, func(ev events.Event) {
			h.BroadcastEvent(ev.Name, ev.Payload)
		}, 0))
	}
}

// Detach removes the hub's bus subscriptions.
func (h *Hub) Detach() {
	for _, u := range h.unsubs {
		u()
	}
	h.unsubs = nil
}

// Run starts the hub's main loop. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnect()
			h.logger.Info("Collaborator connected")
			h.sendCatchUp(client)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSDisconnect()
				h.logger.Info("Collaborator disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent serializes one event frame and queues it for every
// connected client.
func (h *Hub) BroadcastEvent(name events.Name, payload interface{}) {
	data, err := json.Marshal(wireMessage{Event: name, Payload: payload})
	if err != nil {
		h.logger.Error("Serializing %s for broadcast: %v", name, err)
		return
	}
	select {
	case h.broadcast <- data:
		metrics.Get().RecordWSMessageOut()
	default:
		h.logger.Warn("Broadcast queue full, dropping %s", name)
	}
}

// sendCatchUp pushes the current stage and the recent event history
// to a newly connected client so it can render mid-haunting.
func (h *Hub) sendCatchUp(client *Client) {
	stageFrame, err := json.Marshal(wireMessage{
		Event:   events.HauntingStageChanged,
		Payload: events.StageChangedPayload{Stage: h.store.Stage(), OldStage: h.store.Stage()},
	})
	if err == nil {
		select {
		case client.send <- stageFrame:
		default:
		}
	}

	for _, ev := range h.bus.History(events.CollaboratorNames()...) {
		frame, err := json.Marshal(wireMessage{Event: ev.Name, Payload: ev.Payload})
		if err != nil {
			continue
		}
		select {
		case client.send <- frame:
		default:
			return
		}
	}
}

// ServeWS upgrades an HTTP request to a client connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	client := NewClient(h, conn)
	client.Register()
	go client.WritePump()
	go client.ReadPump()
}
