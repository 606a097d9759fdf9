// Package engine drives the possession timeline.
//
// ARCHITECTURAL RULE: the engine does not reach into other components
// directly. It commits stage changes to the state store and emits
// events on the bus; everything else subscribes and reacts.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/platform/metrics"
	"github.com/hollowsignal/haunted-console/server/internal/platform/sched"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

// CheckInterval is how often the timeline is compared against the
// session clock.
const CheckInterval = 2 * time.Second

// corruptionBaseline is the ambient corruption level set on entering
// each stage. Indexed by stage.
var corruptionBaseline = [...]float64{0, 0.05, 0.15, 0.35, 0.6}

// stageFragments are the narrative fragments revealed when a stage is
// first entered in a session. Empty means the stage reveals nothing.
var stageFragments = [...]struct {
	ID   string
	Text string
}{
	{},
	{"frag.static", "did you hear that? probably just the fan."},
	{"frag.name", "it knows the console was never really turned off."},
	{"frag.owner", "the previous owner stopped answering the door in october."},
	{"frag.you", "there is no previous owner. there is only you."},
}

// DecoyWriter is the slice of the persistence gateway the engine
// needs when a stage is entered.
type DecoyWriter interface {
	GenerateDecoysForStage(ctx context.Context, stage spirit.Stage)
}

// Progression owns the five-stage possession timeline. Stages only
// ever advance on their own; going backwards takes an explicit
// override or a full reset.
type Progression struct {
	bus    *events.Bus
	store  *state.Store
	logger *logger.Logger
	decoys DecoyWriter

	mu       sync.Mutex
	task     *sched.Task
	override bool
	entered  [spirit.StageConsumed + 1]bool
}

// NewProgression builds the state machine over the given store.
func NewProgression(bus *events.Bus, store *state.Store, log *logger.Logger, decoys DecoyWriter) *Progression {
	return &Progression{
		bus:    bus,
		store:  store,
		logger: log,
		decoys: decoys,
	}
}

// Start begins the periodic timeline check. Safe to call once.
func (p *Progression) Start(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task != nil {
		return
	}
	if interval <= 0 {
		interval = CheckInterval
	}
	p.task = sched.Every(interval, p.Check)
	p.logger.Info("Possession timeline armed. Checking every %s.", interval)
}

// Stop halts the periodic check. No transitions fire afterwards.
func (p *Progression) Stop() {
	p.mu.Lock()
	task := p.task
	p.task = nil
	p.mu.Unlock()
	if task != nil {
		task.Stop()
	}
}

// Check compares elapsed session time against the stage thresholds
// and advances through every stage that is due. It never steps
// backwards, no matter what the clock says.
func (p *Progression) Check() {
	if !p.store.PowerOn() {
		return
	}

	p.mu.Lock()
	if p.override {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	expected := p.store.ExpectedStage()
	for p.store.Stage() < expected {
		p.transitionTo(p.store.Stage() + 1)
	}
}

// SetStage forces the timeline to an arbitrary stage and pins it
// there until ClearOverride. Out-of-range values clamp; setting the
// current stage only pins, it does not re-fire entry effects.
func (p *Progression) SetStage(n int) {
	target := spirit.ClampStage(n)

	p.mu.Lock()
	p.override = true
	p.mu.Unlock()

	if target == p.store.Stage() {
		return
	}
	p.transitionTo(target)
}

// ClearOverride resumes automatic progression. The next Check may
// advance immediately if the clock has moved past a threshold.
func (p *Progression) ClearOverride() {
	p.mu.Lock()
	p.override = false
	p.mu.Unlock()
}

// Overridden reports whether the timeline is currently pinned.
func (p *Progression) Overridden() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.override
}

// transitionTo commits the stage change and then runs entry effects.
// The commit and the event always happen, even if an entry effect
// panics: observers must never see a stage the store does not hold.
func (p *Progression) transitionTo(target spirit.Stage) {
	old := p.store.Stage()
	p.store.Update(map[state.Field]interface{}{
		state.FieldStage:          target,
		state.FieldStageEnteredAt: p.store.Now(),
	})
	metrics.Get().RecordStageTransition()
	p.logger.Event("STAGE_CHANGE", old.String()+" -> "+target.String())
	p.bus.Publish(events.HauntingStageChanged, events.StageChangedPayload{
		Stage:    target,
		OldStage: old,
	})

	p.mu.Lock()
	ran := p.entered[target]
	p.entered[target] = true
	p.mu.Unlock()
	if ran {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Stage entry effect panicked at %s: %v", target, r)
		}
	}()
	p.runEntryEffects(target)
}

// runEntryEffects fires the one-time side effects of entering a
// stage: corruption floor, a narrative fragment, and decoy entries in
// the external store.
func (p *Progression) runEntryEffects(stage spirit.Stage) {
	if stage <= spirit.StageDormant {
		return
	}

	if level, _ := p.store.Get(state.FieldCorruptionLevel).(float64); level < corruptionBaseline[stage] {
		p.store.Set(state.FieldCorruptionLevel, corruptionBaseline[stage])
	}

	frag := stageFragments[stage]
	if frag.ID != "" && p.store.DiscoverFragment(frag.ID) {
		p.bus.Publish(events.HauntingNarrative, events.NarrativePayload{
			FragmentID: frag.ID,
			Text:       frag.Text,
		})
	}

	if p.decoys != nil {
		p.decoys.GenerateDecoysForStage(context.Background(), stage)
	}

	switch stage {
	case spirit.StageStirring:
		p.bus.Publish(events.EffectsGlitch, events.GlitchPayload{Severity: 1})
	case spirit.StageActive:
		p.bus.Publish(events.RenderFlicker, nil)
	case spirit.StageAggressive:
		p.bus.Publish(events.UITitleCorrupt, events.TitlePayload{Title: "H▓UNTED C0NSOLE"})
	case spirit.StageConsumed:
		p.bus.Publish(events.EffectsCorruptionStart, events.CorruptionPulsePayload{Intensity: corruptionBaseline[spirit.StageConsumed]})
		p.bus.Publish(events.HauntingJumpscare, events.JumpscarePayload{Variant: "consumed", Intensity: 1.0})
	}
}
