package network

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

func newTestHub(t *testing.T) (*Hub, *state.Store, *events.Bus) {
	t.Helper()
	log := logger.NewLogger()
	bus := events.NewBus(log)
	store := state.NewStore(log)
	return NewHub(bus, store, log), store, bus
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition never held")
}

func TestButtonActionsReachBusAndStore(t *testing.T) {
	hub, store, bus := newTestHub(t)
	client := &Client{hub: hub, send: make(chan []byte, 16)}

	var downs, ups []string
	bus.Subscribe(events.InputButtonDown, func(ev events.Event) {
		downs = append(downs, ev.Payload.(events.ButtonPayload).Button)
	}, 0)
	bus.Subscribe(events.InputButtonUp, func(ev events.Event) {
		ups = append(ups, ev.Payload.(events.ButtonPayload).Button)
	}, 0)

	client.handlePlayerAction(PlayerAction{Type: "buttonDown", Payload: json.RawMessage(`{"button":"action"}`)})
	client.handlePlayerAction(PlayerAction{Type: "buttonDown", Payload: json.RawMessage(`{"button":"up"}`)})

	if len(downs) != 2 || downs[0] != "action" || downs[1] != "up" {
		t.Errorf("Expected two button-down events, got %v", downs)
	}
	held, _ := store.Get(state.FieldHeldButtons).(map[string]bool)
	if !held["action"] || !held["up"] {
		t.Errorf("Expected both buttons held, got %v", held)
	}

	client.handlePlayerAction(PlayerAction{Type: "buttonUp", Payload: json.RawMessage(`{"button":"action"}`)})

	if len(ups) != 1 || ups[0] != "action" {
		t.Errorf("Expected one button-up event, got %v", ups)
	}
	held, _ = store.Get(state.FieldHeldButtons).(map[string]bool)
	if held["action"] || !held["up"] {
		t.Errorf("Expected only 'up' still held, got %v", held)
	}
}

func TestButtonActionWithoutNameIgnored(t *testing.T) {
	hub, _, bus := newTestHub(t)
	client := &Client{hub: hub, send: make(chan []byte, 16)}

	fired := 0
	bus.Subscribe(events.InputButtonDown, func(events.Event) { fired++ }, 0)

	client.handlePlayerAction(PlayerAction{Type: "buttonDown", Payload: json.RawMessage(`{}`)})
	client.handlePlayerAction(PlayerAction{Type: "buttonDown", Payload: json.RawMessage(`not json`)})

	if fired != 0 {
		t.Errorf("Expected malformed button actions dropped, got %d events", fired)
	}
}

func TestChannelSelectSkipsCurrentChannel(t *testing.T) {
	hub, store, bus := newTestHub(t)
	client := &Client{hub: hub, send: make(chan []byte, 16)}

	var changes []events.ChannelPayload
	bus.Subscribe(events.GameChannelChanged, func(ev events.Event) {
		changes = append(changes, ev.Payload.(events.ChannelPayload))
	}, 0)

	client.handlePlayerAction(PlayerAction{Type: "channelSelect", Payload: json.RawMessage(`{"channel":3}`)})
	client.handlePlayerAction(PlayerAction{Type: "channelSelect", Payload: json.RawMessage(`{"channel":3}`)})

	if len(changes) != 1 {
		t.Fatalf("Expected exactly one channel change, got %d", len(changes))
	}
	if changes[0].Channel != 3 || changes[0].Previous != 1 {
		t.Errorf("Expected change 1 -> 3, got %+v", changes[0])
	}
	if store.Get(state.FieldCurrentChannel) != 3 {
		t.Errorf("Expected store channel 3, got %v", store.Get(state.FieldCurrentChannel))
	}
}

func TestVisibilityAndPowerActions(t *testing.T) {
	hub, store, bus := newTestHub(t)
	client := &Client{hub: hub, send: make(chan []byte, 16)}
	store.Set(state.FieldPowerOn, true)

	hidden, off := 0, 0
	bus.Subscribe(events.SystemVisibilityHidden, func(events.Event) { hidden++ }, 0)
	bus.Subscribe(events.SystemPowerOff, func(events.Event) { off++ }, 0)

	client.handlePlayerAction(PlayerAction{Type: "visibilityHidden", Payload: nil})
	if store.Get(state.FieldVisible) != false || hidden != 1 {
		t.Errorf("Expected hidden visibility recorded and published")
	}

	client.handlePlayerAction(PlayerAction{Type: "visibilityVisible", Payload: nil})
	if store.Get(state.FieldVisible) != true {
		t.Errorf("Expected visibility restored")
	}

	client.handlePlayerAction(PlayerAction{Type: "powerOff", Payload: nil})
	if store.Get(state.FieldPowerOn) != false || off != 1 {
		t.Errorf("Expected power-off recorded and published")
	}
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	fast := &Client{hub: hub, send: make(chan []byte, 16)}
	// A zero-capacity queue nobody drains: every send must take the
	// drop path.
	slow := &Client{hub: hub, send: make(chan []byte)}
	hub.register <- fast
	hub.register <- slow
	waitFor(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 2
	})

	// Registration pushed a catch-up stage frame; get it out of the way.
	drainFrames(t, fast.send, 1)

	hub.BroadcastEvent(events.RenderFlicker, nil)

	waitFor(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	})
	hub.mu.Lock()
	remaining := hub.clients[fast]
	hub.mu.Unlock()
	if !remaining {
		t.Errorf("Expected the fast client to survive the broadcast")
	}

	// The fast client got the frame; the slow client's queue is closed.
	select {
	case frame := <-fast.send:
		var msg wireMessage
		if err := json.Unmarshal(frame, &msg); err != nil || msg.Event != events.RenderFlicker {
			t.Errorf("Expected a flicker frame, got %s (err %v)", frame, err)
		}
	case <-time.After(time.Second):
		t.Errorf("Expected the fast client to receive the broadcast")
	}
	select {
	case _, open := <-slow.send:
		if open {
			t.Errorf("Expected the slow client's queue closed")
		}
	case <-time.After(time.Second):
		t.Errorf("Expected the slow client's queue closed")
	}
}

func TestCatchUpReplaysHistoryToNewClient(t *testing.T) {
	hub, _, bus := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Events published before anyone connects land in the bus history.
	bus.Publish(events.HauntingNarrative, events.NarrativePayload{FragmentID: "frag.static", Text: "..."})

	client := &Client{hub: hub, send: make(chan []byte, 32)}
	hub.register <- client
	waitFor(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == 1
	})

	// First frame is the current stage, then the replayed history.
	frames := drainFrames(t, client.send, 2)
	if frames[0] != string(events.HauntingStageChanged) {
		t.Errorf("Expected a stage frame first, got %s", frames[0])
	}
	if frames[1] != string(events.HauntingNarrative) {
		t.Errorf("Expected the narrative replayed, got %s", frames[1])
	}
}

func drainFrames(t *testing.T, ch chan []byte, n int) []string {
	t.Helper()
	var names []string
	for i := 0; i < n; i++ {
		select {
		case frame := <-ch:
			var msg wireMessage
			if err := json.Unmarshal(frame, &msg); err != nil {
				t.Fatalf("Bad frame %s: %v", frame, err)
			}
			names = append(names, string(msg.Event))
		case <-time.After(time.Second):
			t.Fatalf("Expected %d frames, got %d", n, i)
		}
	}
	return names
}
