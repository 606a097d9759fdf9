package events

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/platform/metrics"
)

// HistorySize bounds the diagnostic ring buffer of recent events.
const HistorySize = 100

// Event is one published occurrence. Payload shape is a contract
// between emitter and subscriber; the bus never inspects it.
type Event struct {
	ID        string      `json:"id"`
	Name      Name        `json:"name"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Handler consumes one delivered event.
type Handler func(Event)

type subscription struct {
	seq      uint64
	priority int
	once     bool
	fn       Handler
}

// Bus is the synchronous publish/subscribe hub. Handlers for a name
// run in the publisher's goroutine, highest priority first; a failing
// handler never stops delivery to the rest.
type Bus struct {
	mu      sync.Mutex
	nextSeq uint64
	subs    map[Name][]*subscription
	history []Event
	logger  *logger.Logger
	clock   func() time.Time
}

// NewBus creates an empty bus.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[Name][]*subscription),
		logger: log,
		clock:  time.Now,
	}
}

// SetClock overrides the bus timestamp source. Test hook.
func (b *Bus) SetClock(clock func() time.Time) {
	b.mu.Lock()
	b.clock = clock
	b.mu.Unlock()
}

// Subscribe registers handler for name at the given priority and
// returns its unsubscribe function. Higher priorities run first;
// equal priorities run in registration order.
func (b *Bus) Subscribe(name Name, handler Handler, priority int) func() {
	return b.subscribe(name, handler, priority, false)
}

// SubscribeOnce registers a handler that fires at most once. The
// subscription is removed before the handler runs, so a handler that
// re-publishes the same event cannot double-fire itself.
func (b *Bus) SubscribeOnce(name Name, handler Handler, priority int) func() {
	return b.subscribe(name, handler, priority, true)
}

func (b *Bus) subscribe(name Name, handler Handler, priority int, once bool) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	sub := &subscription{seq: b.nextSeq, priority: priority, once: once, fn: handler}
	list := append(b.subs[name], sub)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	b.subs[name] = list

	seq := sub.seq
	return func() { b.remove(name, seq) }
}

func (b *Bus) remove(name Name, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s.seq == seq {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers payload to every subscriber of name, synchronously,
// in descending priority order. Publishing to a name nobody listens
// to is a no-op. A panicking handler is logged and skipped; the
// remaining handlers still run.
func (b *Bus) Publish(name Name, payload interface{}) {
	b.mu.Lock()
	evt := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   payload,
		Timestamp: b.clock(),
	}
	b.history = append(b.history, evt)
	if len(b.history) > HistorySize {
		b.history = b.history[len(b.history)-HistorySize:]
	}

	list := b.subs[name]
	targets := make([]*subscription, len(list))
	copy(targets, list)

	// Once-handlers come off the list before they are invoked.
	remaining := list[:0:0]
	removed := false
	for _, s := range list {
		if s.once {
			removed = true
			continue
		}
		remaining = append(remaining, s)
	}
	if removed {
		b.subs[name] = remaining
	}
	b.mu.Unlock()

	metrics.Get().RecordEventPublished()
	for _, s := range targets {
		b.deliver(s, evt)
	}
}

func (b *Bus) deliver(s *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.Get().RecordHandlerPanic()
			if b.logger != nil {
				b.logger.Error("Listener for %s panicked: %v", evt.Name, r)
			}
		}
	}()
	s.fn(evt)
}

// UnsubscribeAll drops every subscription for the given names, or for
// every name when called with none.
func (b *Bus) UnsubscribeAll(names ...Name) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(names) == 0 {
		b.subs = make(map[Name][]*subscription)
		return
	}
	for _, n := range names {
		delete(b.subs, n)
	}
}

// History returns the retained recent events, oldest first, optionally
// filtered by name.
func (b *Bus) History(names ...Name) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(names) == 0 {
		out := make([]Event, len(b.history))
		copy(out, b.history)
		return out
	}
	var out []Event
	for _, e := range b.history {
		for _, n := range names {
			if e.Name == n {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
