// Package state holds the single source of truth for a console
// session. Every component reads and writes through the Store's
// accessors so watchers see each mutation; nothing shares state
// through package globals.
package state

import (
	"sync"
	"time"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
)

// Field names one slot in the flat state record.
type Field string

// Session-only fields. Reset on every power cycle, never persisted.
const (
	FieldPowerOn        Field = "powerOn"
	FieldCurrentChannel Field = "currentChannel"
	FieldFrameCount     Field = "frameCount"
	FieldHeldButtons    Field = "heldButtons"
	FieldSessionStart   Field = "sessionStart"
	FieldVisible        Field = "visible"
)

// Haunting fields. Live for a session; personality, fear profile and
// discovered fragments survive into the persisted blob.
const (
	FieldStage           Field = "stage"
	FieldStageEnteredAt  Field = "stageEnteredAt"
	FieldPersonality     Field = "personality"
	FieldFearProfile     Field = "fearProfile"
	FieldScareCount      Field = "scareCount"
	FieldReactionHistory Field = "reactionHistory"
	FieldFragmentsFound  Field = "fragmentsFound"
	FieldCorruptionLevel Field = "corruptionLevel"
)

// Persisted preferences. Always written to durable storage.
const (
	FieldVisitCount     Field = "visitCount"
	FieldTotalPlayMS    Field = "totalPlayMS"
	FieldLastVisitUnix  Field = "lastVisitUnix"
	FieldSecretUnlocked Field = "secretUnlocked"
)

// SnapshotRingSize bounds the in-memory snapshot ring.
const SnapshotRingSize = 10

// ReactionWindow bounds the rolling reaction-time history.
const ReactionWindow = 20

// Watcher observes one field. It receives the new value, the previous
// value, and the field name.
type Watcher func(value, previous interface{}, field Field)

type watcherEntry struct {
	seq uint64
	fn  Watcher
}

// Store is the mutable state record of one console process.
type Store struct {
	mu       sync.RWMutex
	fields   map[Field]interface{}
	watchers map[Field][]watcherEntry
	nextSeq  uint64
	snaps    []map[Field]interface{}
	logger   *logger.Logger
	clock    func() time.Time
}

// NewStore creates a store with every field at its default.
func NewStore(log *logger.Logger) *Store {
	s := &Store{
		watchers: make(map[Field][]watcherEntry),
		logger:   log,
		clock:    time.Now,
	}
	s.fields = defaults(s.clock())
	return s
}

// SetClock overrides the store's time source. Test hook; also resets
// the session start so elapsed time is measured on the same clock.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	s.clock = clock
	s.fields[FieldSessionStart] = clock()
	s.mu.Unlock()
}

func defaults(now time.Time) map[Field]interface{} {
	return map[Field]interface{}{
		FieldPowerOn:        false,
		FieldCurrentChannel: 1,
		FieldFrameCount:     int64(0),
		FieldHeldButtons:    map[string]bool{},
		FieldSessionStart:   now,
		FieldVisible:        true,

		FieldStage:           spirit.StageDormant,
		FieldStageEnteredAt:  now,
		FieldPersonality:     spirit.DefaultPersonality(),
		FieldFearProfile:     spirit.DefaultFearProfile(),
		FieldScareCount:      0,
		FieldReactionHistory: []int64{},
		FieldFragmentsFound:  map[string]bool{},
		FieldCorruptionLevel: 0.0,

		FieldVisitCount:     0,
		FieldTotalPlayMS:    int64(0),
		FieldLastVisitUnix:  int64(0),
		FieldSecretUnlocked: false,
	}
}

// sessionFields are the fields ResetSession restores to defaults.
var sessionFields = []Field{
	FieldPowerOn, FieldCurrentChannel, FieldFrameCount,
	FieldHeldButtons, FieldSessionStart, FieldVisible,
	FieldStage, FieldStageEnteredAt, FieldScareCount,
	FieldReactionHistory, FieldCorruptionLevel,
}

// Get returns the current value of field, or nil for an unknown field.
func (s *Store) Get(field Field) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fields[field]
}

// Set stores value and notifies the field's watchers synchronously
// with (value, previous, field). A panicking watcher is logged and the
// rest still run.
func (s *Store) Set(field Field, value interface{}) {
	s.mu.Lock()
	previous := s.fields[field]
	s.fields[field] = value
	entries := make([]watcherEntry, len(s.watchers[field]))
	copy(entries, s.watchers[field])
	s.mu.Unlock()

	for _, w := range entries {
		s.notify(w, value, previous, field)
	}
}

func (s *Store) notify(w watcherEntry, value, previous interface{}, field Field) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("Watcher for %s panicked: %v", field, r)
		}
	}()
	w.fn(value, previous, field)
}

// Update applies each entry as a sequential Set.
func (s *Store) Update(values map[Field]interface{}) {
	for field, value := range values {
		s.Set(field, value)
	}
}

// Watch registers cb on field and returns its unwatch function.
func (s *Store) Watch(field Field, cb Watcher) func() {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.watchers[field] = append(s.watchers[field], watcherEntry{seq: seq, fn: cb})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.watchers[field]
		for i, w := range list {
			if w.seq == seq {
				s.watchers[field] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Snapshot value-copies the whole record into a bounded ring and
// returns the snapshot's index for Restore.
func (s *Store) Snapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[Field]interface{}, len(s.fields))
	for f, v := range s.fields {
		snap[f] = copyValue(v)
	}
	s.snaps = append(s.snaps, snap)
	if len(s.snaps) > SnapshotRingSize {
		s.snaps = s.snaps[len(s.snaps)-SnapshotRingSize:]
	}
	return len(s.snaps) - 1
}

// Restore overwrites live fields in place from the snapshot at index.
// Returns false if the index is out of range. Watchers are not
// notified; a restore is a wholesale rewind, not a mutation stream.
func (s *Store) Restore(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.snaps) {
		return false
	}
	for f, v := range s.snaps[index] {
		s.fields[f] = copyValue(v)
	}
	return true
}

// ResetSession restores every session-only field to its default.
func (s *Store) ResetSession() {
	now := s.now()
	fresh := defaults(now)
	for _, f := range sessionFields {
		s.Set(f, fresh[f])
	}
}

// ResetAll restores every field to its default. Used by a full wipe.
func (s *Store) ResetAll() {
	fresh := defaults(s.now())
	for f, v := range fresh {
		s.Set(f, v)
	}
}

func (s *Store) now() time.Time {
	s.mu.RLock()
	clock := s.clock
	s.mu.RUnlock()
	return clock()
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]bool:
		out := make(map[string]bool, len(t))
		for k, b := range t {
			out[k] = b
		}
		return out
	case []int64:
		out := make([]int64, len(t))
		copy(out, t)
		return out
	case spirit.FearProfile:
		return t.Clone()
	default:
		return v
	}
}

// Typed accessors. Each tolerates a missing or mistyped field by
// returning the zero value; callers treat that as "defaults".

// PowerOn reports whether the console is powered.
func (s *Store) PowerOn() bool {
	v, _ := s.Get(FieldPowerOn).(bool)
	return v
}

// Stage returns the current possession stage.
func (s *Store) Stage() spirit.Stage {
	v, ok := s.Get(FieldStage).(spirit.Stage)
	if !ok {
		return spirit.StageDormant
	}
	return v
}

// Personality returns the current personality vector.
func (s *Store) Personality() spirit.Personality {
	v, ok := s.Get(FieldPersonality).(spirit.Personality)
	if !ok {
		return spirit.DefaultPersonality()
	}
	return v
}

// FearProfile returns a copy of the current fear profile.
func (s *Store) FearProfile() spirit.FearProfile {
	v, ok := s.Get(FieldFearProfile).(spirit.FearProfile)
	if !ok {
		return spirit.DefaultFearProfile()
	}
	return v.Clone()
}

// PushReaction appends one reaction time to the rolling history,
// keeping only the most recent ReactionWindow entries, and returns
// the new rolling average in milliseconds.
func (s *Store) PushReaction(reactionMS int64) float64 {
	hist, _ := s.Get(FieldReactionHistory).([]int64)
	hist = append(append([]int64{}, hist...), reactionMS)
	if len(hist) > ReactionWindow {
		hist = hist[len(hist)-ReactionWindow:]
	}
	s.Set(FieldReactionHistory, hist)

	sum := int64(0)
	for _, ms := range hist {
		sum += ms
	}
	return float64(sum) / float64(len(hist))
}

// DiscoverFragment marks a narrative fragment as found. Returns true
// the first time an ID is seen.
func (s *Store) DiscoverFragment(id string) bool {
	s.mu.Lock()
	set, _ := s.fields[FieldFragmentsFound].(map[string]bool)
	if set == nil {
		set = map[string]bool{}
	}
	if set[id] {
		s.mu.Unlock()
		return false
	}
	updated := make(map[string]bool, len(set)+1)
	for k := range set {
		updated[k] = true
	}
	updated[id] = true
	s.mu.Unlock()

	s.Set(FieldFragmentsFound, updated)
	return true
}
