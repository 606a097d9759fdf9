package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/platform/metrics"
	"github.com/hollowsignal/haunted-console/server/internal/platform/sched"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

// SaveKey is where the serialized state blob lives in the external
// store. Decoy entries live beside it under their own keys.
const SaveKey = "console.save"

// AutoSaveInterval is the default period between background saves.
const AutoSaveInterval = 30 * time.Second

// corruptionGlyphs are the characters a corrupted save grows.
var corruptionGlyphs = []rune("▓▒░█?#&!")

// Gateway is the only component allowed to touch the durable store.
// It persists the allow-listed state subset, injects decoy entries on
// stage changes, and can deliberately damage the saved blob as a
// narrative effect.
type Gateway struct {
	kv     KV
	store  *state.Store
	bus    *events.Bus
	logger *logger.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	autosave   *sched.Task
	injected   map[string]bool
	basePlayMS int64
	unsubs     []func()
}

// NewGateway wires a gateway over the given backend.
func NewGateway(kv KV, store *state.Store, bus *events.Bus, log *logger.Logger) *Gateway {
	return &Gateway{
		kv:       kv,
		store:    store,
		bus:      bus,
		logger:   log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		injected: make(map[string]bool),
	}
}

// Attach subscribes the gateway to the lifecycle events it saves on:
// stage changes, the page going hidden, and power-off (final save).
func (g *Gateway) Attach() {
	g.unsubs = append(g.unsubs,
		g.bus.Subscribe(events.HauntingStageChanged, func(events.Event) {
			g.saveQuietly("stage change")
		}, 0),
		g.bus.Subscribe(events.SystemVisibilityHidden, func(events.Event) {
			g.saveQuietly("visibility hidden")
		}, 0),
		g.bus.Subscribe(events.SystemPowerOff, func(events.Event) {
			g.StopAutoSave()
		}, 0),
	)
}

// Detach removes the gateway's subscriptions.
func (g *Gateway) Detach() {
	for _, u := range g.unsubs {
		u()
	}
	g.unsubs = nil
}

// Load restores state from the external store. It never fails the
// caller on malformed data: a bad blob is logged and the store keeps
// its defaults. Visit bookkeeping runs either way.
func (g *Gateway) Load(ctx context.Context) {
	raw, found, err := g.kv.Get(ctx, SaveKey)
	switch {
	case err != nil:
		g.logger.Warn("Load failed, keeping defaults: %v", err)
	case !found:
		g.logger.Info("No saved record found. First visit for this medium.")
	default:
		if err := g.store.DeserializeInto([]byte(raw)); err != nil {
			g.logger.Warn("Saved record unreadable, keeping defaults: %v", err)
		}
	}

	visits, _ := g.store.Get(state.FieldVisitCount).(int)
	g.store.Set(state.FieldVisitCount, visits+1)
	g.store.Set(state.FieldLastVisitUnix, time.Now().Unix())

	// Play time accumulated by earlier sessions; this session's elapsed
	// time is added on top at every save.
	base, _ := g.store.Get(state.FieldTotalPlayMS).(int64)
	g.mu.Lock()
	g.basePlayMS = base
	g.mu.Unlock()

	g.bus.Publish(events.PersistenceLoaded, nil)
}

// Save serializes the persistable subset and writes it out. Total
// play time is refreshed first: the persisted base plus everything
// this session has run so far, so repeated saves never double-count.
func (g *Gateway) Save(ctx context.Context) error {
	g.mu.Lock()
	base := g.basePlayMS
	g.mu.Unlock()
	g.store.Set(state.FieldTotalPlayMS, base+g.store.Elapsed().Milliseconds())

	data, err := g.store.Serialize()
	if err != nil {
		metrics.Get().RecordSaveError()
		return err
	}
	if err := g.kv.Set(ctx, SaveKey, string(data)); err != nil {
		metrics.Get().RecordSaveError()
		return fmt.Errorf("save record: %w", err)
	}
	metrics.Get().RecordSaveOK()
	g.bus.Publish(events.PersistenceSaved, nil)
	return nil
}

func (g *Gateway) saveQuietly(reason string) {
	if err := g.Save(context.Background()); err != nil {
		// Next auto-save interval retries with current state.
		g.logger.Warn("Save on %s failed: %v", reason, err)
	}
}

// StartAutoSave begins periodic saves while the console is powered.
func (g *Gateway) StartAutoSave(interval time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.autosave != nil {
		return
	}
	if interval <= 0 {
		interval = AutoSaveInterval
	}
	g.autosave = sched.Every(interval, func() {
		if !g.store.PowerOn() {
			return
		}
		g.saveQuietly("auto-save tick")
	})
}

// StopAutoSave cancels the periodic save after one final synchronous
// save with current state.
func (g *Gateway) StopAutoSave() {
	g.mu.Lock()
	task := g.autosave
	g.autosave = nil
	g.mu.Unlock()
	if task != nil {
		task.Stop()
	}
	g.saveQuietly("power off")
}

// InjectDecoy writes one narrative entry directly into the external
// store, outside the save blob.
func (g *Gateway) InjectDecoy(ctx context.Context, key, value string) error {
	if err := g.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("inject decoy %q: %w", key, err)
	}
	g.mu.Lock()
	g.injected[key] = true
	g.mu.Unlock()
	metrics.Get().RecordDecoyInjected()
	g.bus.Publish(events.PersistenceDecoyInjected, events.DecoyPayload{Key: key})
	return nil
}

// GenerateDecoysForStage writes the fixed decoy set for one stage.
// Sets are additive across stages; re-writing a stage's set is
// harmless since the keys are fixed.
func (g *Gateway) GenerateDecoysForStage(ctx context.Context, stage spirit.Stage) {
	for _, d := range stageDecoys[stage] {
		if err := g.InjectDecoy(ctx, d.Key, d.Value); err != nil {
			g.logger.Warn("Decoy injection failed: %v", err)
		}
	}
}

// PurgeDecoys removes every decoy entry: the stage tables plus
// anything injected ad hoc.
func (g *Gateway) PurgeDecoys(ctx context.Context) error {
	g.mu.Lock()
	keys := make([]string, 0, len(g.injected))
	for k := range g.injected {
		keys = append(keys, k)
	}
	g.injected = make(map[string]bool)
	g.mu.Unlock()

	for _, decoys := range stageDecoys {
		for _, d := range decoys {
			keys = append(keys, d.Key)
		}
	}
	sort.Strings(keys)

	var firstErr error
	for _, k := range keys {
		if err := g.kv.Delete(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FullReset wipes the save blob, every decoy, and the live store.
// The only operation that can undo the entity's progress.
func (g *Gateway) FullReset(ctx context.Context) error {
	if err := g.kv.Delete(ctx, SaveKey); err != nil {
		return fmt.Errorf("delete saved record: %w", err)
	}
	if err := g.PurgeDecoys(ctx); err != nil {
		return fmt.Errorf("purge decoys: %w", err)
	}
	g.store.ResetAll()
	g.mu.Lock()
	g.basePlayMS = 0
	g.mu.Unlock()
	g.bus.Publish(events.PersistenceWiped, nil)
	return nil
}

// CorruptSavedRecord flips one to three top-level fields of the blob
// already in the external store: numbers get a bit flipped, strings
// get a single character replaced. The live store is untouched, and a
// later Load of the damaged blob must not crash; worst case it falls
// back to defaults.
func (g *Gateway) CorruptSavedRecord(ctx context.Context) error {
	raw, found, err := g.kv.Get(ctx, SaveKey)
	if err != nil {
		return fmt.Errorf("read saved record: %w", err)
	}
	if !found {
		return nil
	}

	var record map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// Already corrupted beyond JSON. Leave it be.
		return nil
	}

	var fields []string
	for k, v := range record {
		switch v.(type) {
		case float64, string:
			fields = append(fields, k)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)

	g.mu.Lock()
	count := 1 + g.rng.Intn(3)
	if count > len(fields) {
		count = len(fields)
	}
	g.rng.Shuffle(len(fields), func(i, j int) { fields[i], fields[j] = fields[j], fields[i] })
	for _, k := range fields[:count] {
		record[k] = g.corruptValue(record[k])
	}
	g.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("re-encode corrupted record: %w", err)
	}
	if err := g.kv.Set(ctx, SaveKey, string(data)); err != nil {
		return fmt.Errorf("write corrupted record: %w", err)
	}
	metrics.Get().RecordCorruption()
	g.logger.Event("SAVE_CORRUPTED", fmt.Sprintf("%d field(s) altered", count))
	return nil
}

func (g *Gateway) corruptValue(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		// Flip a low bit of the integer part; stays JSON-encodable,
		// unlike bit-flipping the float's raw representation.
		n := int64(t)
		if math.IsNaN(t) || math.IsInf(t, 0) {
			n = 0
		}
		return float64(n ^ (1 << uint(g.rng.Intn(16))))
	case string:
		if len(t) == 0 {
			return string(corruptionGlyphs[g.rng.Intn(len(corruptionGlyphs))])
		}
		runes := []rune(t)
		runes[g.rng.Intn(len(runes))] = corruptionGlyphs[g.rng.Intn(len(corruptionGlyphs))]
		return string(runes)
	default:
		return v
	}
}
