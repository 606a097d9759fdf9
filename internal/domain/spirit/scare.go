package spirit

import "time"

// ScareRecord is the log entry of one executed scare action and, once
// known, how fast the player reacted to it.
type ScareRecord struct {
	Action     string
	Category   FearCategory
	FiredAt    time.Time
	ReactionMS int64
	Answered   bool // a qualifying input arrived
	Discarded  bool // reaction was too slow to attribute
}

// ScareHistory is a bounded in-memory log of scare records for the
// current session. Oldest entries fall off the front.
type ScareHistory struct {
	records []ScareRecord
	max     int
}

// NewScareHistory creates a history bounded at max records.
func NewScareHistory(max int) *ScareHistory {
	if max <= 0 {
		max = 50
	}
	return &ScareHistory{max: max}
}

// Append records an executed scare, evicting the oldest entry if full.
func (h *ScareHistory) Append(r ScareRecord) {
	h.records = append(h.records, r)
	if len(h.records) > h.max {
		h.records = h.records[len(h.records)-h.max:]
	}
}

// Len returns the number of retained records.
func (h *ScareHistory) Len() int { return len(h.records) }

// Records returns a copy of the retained records, oldest first.
func (h *ScareHistory) Records() []ScareRecord {
	out := make([]ScareRecord, len(h.records))
	copy(out, h.records)
	return out
}

// ResolveLatest attributes a player input at time now to the most
// recently fired unanswered record. Reactions above noiseCutoff are
// marked discarded: the player was not reacting to that scare.
// Returns the resolved record and whether it should feed learning.
func (h *ScareHistory) ResolveLatest(now time.Time, noiseCutoff time.Duration) (ScareRecord, bool) {
	for i := len(h.records) - 1; i >= 0; i-- {
		rec := &h.records[i]
		if rec.Answered || rec.Discarded {
			continue
		}
		rt := now.Sub(rec.FiredAt)
		if rt > noiseCutoff {
			rec.Discarded = true
			return *rec, false
		}
		rec.Answered = true
		rec.ReactionMS = rt.Milliseconds()
		return *rec, true
	}
	return ScareRecord{}, false
}

// Efficiency returns the fraction of records fired within window of
// now whose reaction came in under scaredBelow. No recent scares
// means zero efficiency.
func (h *ScareHistory) Efficiency(now time.Time, window, scaredBelow time.Duration) float64 {
	recent, scared := 0, 0
	for _, rec := range h.records {
		if now.Sub(rec.FiredAt) > window {
			continue
		}
		recent++
		if rec.Answered && !rec.Discarded && rec.ReactionMS < scaredBelow.Milliseconds() {
			scared++
		}
	}
	if recent == 0 {
		return 0
	}
	return float64(scared) / float64(recent)
}
