// Package metrics provides observability for the console server.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Collector gathers haunting and transport counters.
type Collector struct {
	// Bus
	EventsPublished int64
	HandlerPanics   int64

	// Haunting
	ScaresFired      int64
	ScaresAnswered   int64
	ScaresDiscarded  int64
	StageTransitions int64

	// Persistence
	SavesOK            int64
	SaveErrors         int64
	DecoysInjected     int64
	CorruptionsApplied int64

	// WebSocket
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64

	StartTime time.Time
}

// Global collector instance.
var collector = &Collector{StartTime: time.Now()}

// Get returns the global collector.
func Get() *Collector { return collector }

// Reset zeroes every counter. Test hook.
func (c *Collector) Reset() {
	atomic.StoreInt64(&c.EventsPublished, 0)
	atomic.StoreInt64(&c.HandlerPanics, 0)
	atomic.StoreInt64(&c.ScaresFired, 0)
	atomic.StoreInt64(&c.ScaresAnswered, 0)
	atomic.StoreInt64(&c.ScaresDiscarded, 0)
	atomic.StoreInt64(&c.StageTransitions, 0)
	atomic.StoreInt64(&c.SavesOK, 0)
	atomic.StoreInt64(&c.SaveErrors, 0)
	atomic.StoreInt64(&c.DecoysInjected, 0)
	atomic.StoreInt64(&c.CorruptionsApplied, 0)
	atomic.StoreInt64(&c.WSConnectionsActive, 0)
	atomic.StoreInt64(&c.WSMessagesIn, 0)
	atomic.StoreInt64(&c.WSMessagesOut, 0)
}

func (c *Collector) RecordEventPublished()  { atomic.AddInt64(&c.EventsPublished, 1) }
func (c *Collector) RecordHandlerPanic()    { atomic.AddInt64(&c.HandlerPanics, 1) }
func (c *Collector) RecordScareFired()      { atomic.AddInt64(&c.ScaresFired, 1) }
func (c *Collector) RecordScareAnswered()   { atomic.AddInt64(&c.ScaresAnswered, 1) }
func (c *Collector) RecordScareDiscarded()  { atomic.AddInt64(&c.ScaresDiscarded, 1) }
func (c *Collector) RecordStageTransition() { atomic.AddInt64(&c.StageTransitions, 1) }
func (c *Collector) RecordSaveOK()          { atomic.AddInt64(&c.SavesOK, 1) }
func (c *Collector) RecordSaveError()       { atomic.AddInt64(&c.SaveErrors, 1) }
func (c *Collector) RecordDecoyInjected()   { atomic.AddInt64(&c.DecoysInjected, 1) }
func (c *Collector) RecordCorruption()      { atomic.AddInt64(&c.CorruptionsApplied, 1) }
func (c *Collector) RecordWSConnect()       { atomic.AddInt64(&c.WSConnectionsActive, 1) }
func (c *Collector) RecordWSDisconnect()    { atomic.AddInt64(&c.WSConnectionsActive, -1) }
func (c *Collector) RecordWSMessageIn()     { atomic.AddInt64(&c.WSMessagesIn, 1) }
func (c *Collector) RecordWSMessageOut()    { atomic.AddInt64(&c.WSMessagesOut, 1) }

// Snapshot is the JSON shape served by the metrics endpoint.
type Snapshot struct {
	UptimeSeconds      float64 `json:"uptime_seconds"`
	EventsPublished    int64   `json:"events_published"`
	HandlerPanics      int64   `json:"handler_panics"`
	ScaresFired        int64   `json:"scares_fired"`
	ScaresAnswered     int64   `json:"scares_answered"`
	ScaresDiscarded    int64   `json:"scares_discarded"`
	StageTransitions   int64   `json:"stage_transitions"`
	SavesOK            int64   `json:"saves_ok"`
	SaveErrors         int64   `json:"save_errors"`
	DecoysInjected     int64   `json:"decoys_injected"`
	CorruptionsApplied int64   `json:"corruptions_applied"`
	WSActive           int64   `json:"ws_active"`
	WSMessagesIn       int64   `json:"ws_messages_in"`
	WSMessagesOut      int64   `json:"ws_messages_out"`
}

// TakeSnapshot reads every counter atomically enough for diagnostics.
func (c *Collector) TakeSnapshot() Snapshot {
	return Snapshot{
		UptimeSeconds:      time.Since(c.StartTime).Seconds(),
		EventsPublished:    atomic.LoadInt64(&c.EventsPublished),
		HandlerPanics:      atomic.LoadInt64(&c.HandlerPanics),
		ScaresFired:        atomic.LoadInt64(&c.ScaresFired),
		ScaresAnswered:     atomic.LoadInt64(&c.ScaresAnswered),
		ScaresDiscarded:    atomic.LoadInt64(&c.ScaresDiscarded),
		StageTransitions:   atomic.LoadInt64(&c.StageTransitions),
		SavesOK:            atomic.LoadInt64(&c.SavesOK),
		SaveErrors:         atomic.LoadInt64(&c.SaveErrors),
		DecoysInjected:     atomic.LoadInt64(&c.DecoysInjected),
		CorruptionsApplied: atomic.LoadInt64(&c.CorruptionsApplied),
		WSActive:           atomic.LoadInt64(&c.WSConnectionsActive),
		WSMessagesIn:       atomic.LoadInt64(&c.WSMessagesIn),
		WSMessagesOut:      atomic.LoadInt64(&c.WSMessagesOut),
	}
}

// Handler serves the collector as JSON.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(c.TakeSnapshot())
	})
}
