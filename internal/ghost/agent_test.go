package ghost

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

type fakeSaver struct{ saves int }

func (f *fakeSaver) Save(ctx context.Context) error {
	f.saves++
	return nil
}

func newTestAgent(t *testing.T) (*Agent, *state.Store, *events.Bus, *fakeSaver, *time.Time) {
	t.Helper()
	log := logger.NewLogger()
	bus := events.NewBus(log)
	store := state.NewStore(log)

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	store.Set(state.FieldPowerOn, true)

	saver := &fakeSaver{}
	agent := NewAgent(bus, store, log, saver)
	agent.SetClock(func() time.Time { return now })
	return agent, store, bus, saver, &now
}

func TestRepertoireIsCumulative(t *testing.T) {
	byStage := make(map[spirit.Stage]int)
	for _, s := range []spirit.Stage{spirit.StageDormant, spirit.StageStirring, spirit.StageActive, spirit.StageAggressive, spirit.StageConsumed} {
		byStage[s] = len(Available(s))
	}

	if byStage[spirit.StageDormant] != 0 {
		t.Errorf("Expected no actions while dormant, got %d", byStage[spirit.StageDormant])
	}
	for s := spirit.StageStirring; s <= spirit.StageConsumed; s++ {
		if byStage[s] <= byStage[s-1] && s != spirit.StageStirring {
			t.Errorf("Expected stage %s to unlock more actions than %s", s, s-1)
		}
	}

	// Stage 1 actions stay available at stage 4.
	kinds := make(map[string]bool)
	for _, a := range Available(spirit.StageConsumed) {
		kinds[a.Kind] = true
	}
	for _, a := range Available(spirit.StageStirring) {
		if !kinds[a.Kind] {
			t.Errorf("Expected %s still available at CONSUMED", a.Kind)
		}
	}
}

func TestBestFearCategoryDoublesWeight(t *testing.T) {
	agent, store, _, _, _ := newTestAgent(t)

	// Make jumpScares overwhelmingly the player's weak spot and the
	// entity dumb enough to use plain weighted sampling.
	profile := spirit.DefaultFearProfile()
	profile.Adjust(spirit.FearJumpScares, 5.0)
	store.Set(state.FieldFearProfile, profile)
	p := spirit.Personality{Intelligence: 0.2}

	candidates := []Action{
		{Kind: "jumpScare", Category: spirit.FearJumpScares, Weight: 1.0},
		{Kind: "whisper", Category: spirit.FearAudio, Weight: 1.0},
	}

	picks := map[string]int{}
	for i := 0; i < 2000; i++ {
		act, ok := agent.selectAction(candidates, p, store.FearProfile())
		if !ok {
			t.Fatalf("Expected a selection")
		}
		picks[act.Kind]++
	}

	// Doubled weight means jumpScare should win about two thirds of
	// draws. Anything clearly above half proves the boost is applied.
	if picks["jumpScare"] <= picks["whisper"] {
		t.Errorf("Expected boosted category to dominate: %v", picks)
	}
	ratio := float64(picks["jumpScare"]) / 2000.0
	if ratio < 0.55 || ratio > 0.78 {
		t.Errorf("Expected jumpScare share near 2/3, got %.3f", ratio)
	}
}

func TestSmartEntitySamplesFromTopThree(t *testing.T) {
	agent, store, _, _, _ := newTestAgent(t)
	p := spirit.Personality{Intelligence: 0.9}

	candidates := []Action{
		{Kind: "a", Category: spirit.FearAudio, Weight: 5.0},
		{Kind: "b", Category: spirit.FearAudio, Weight: 4.0},
		{Kind: "c", Category: spirit.FearAudio, Weight: 3.0},
		{Kind: "d", Category: spirit.FearAudio, Weight: 0.1},
		{Kind: "e", Category: spirit.FearAudio, Weight: 0.1},
	}

	picks := map[string]int{}
	for i := 0; i < 600; i++ {
		act, _ := agent.selectAction(candidates, p, store.FearProfile())
		picks[act.Kind]++
	}

	if picks["d"] != 0 || picks["e"] != 0 {
		t.Errorf("Expected smart selection confined to top 3, got %v", picks)
	}
	// Uniform over the top 3, not always the maximum.
	for _, k := range []string{"a", "b", "c"} {
		if picks[k] == 0 {
			t.Errorf("Expected every top-3 candidate sampled, got %v", picks)
		}
	}
}

func TestThinkHonorsCooldown(t *testing.T) {
	agent, store, bus, _, _ := newTestAgent(t)
	store.Set(state.FieldStage, spirit.StageStirring)

	fired := 0
	for _, name := range []events.Name{events.RenderStatic, events.AudioSfxPlay, events.UITitleCorrupt} {
		bus.Subscribe(name, func(events.Event) { fired++ }, 0)
	}

	agent.Think()
	if fired == 0 {
		t.Fatalf("Expected the first think to fire a scare")
	}
	after := fired

	agent.Think()
	if fired != after {
		t.Errorf("Expected cooldown to gate the second think")
	}

	count, _ := store.Get(state.FieldScareCount).(int)
	if count != 1 {
		t.Errorf("Expected scare count 1, got %d", count)
	}
}

func TestThinkDoesNothingWhileDormantOrOff(t *testing.T) {
	agent, store, bus, _, _ := newTestAgent(t)

	fired := 0
	for _, name := range events.CollaboratorNames() {
		bus.Subscribe(name, func(events.Event) { fired++ }, 0)
	}

	// Dormant: no scares.
	agent.Think()

	// Powered off: nothing at all, not even mood updates.
	store.Set(state.FieldPowerOn, false)
	store.Set(state.FieldStage, spirit.StageConsumed)
	agent.Think()

	if count, _ := store.Get(state.FieldScareCount).(int); count != 0 {
		t.Errorf("Expected no scares, got %d", count)
	}
	_ = fired
}

func TestFastReactionBoostsFearCategory(t *testing.T) {
	agent, store, _, saver, now := newTestAgent(t)

	before := store.FearProfile()[spirit.FearJumpScares]
	agent.history.Append(spirit.ScareRecord{
		Action:   "jumpScare",
		Category: spirit.FearJumpScares,
		FiredAt:  *now,
	})

	*now = now.Add(1 * time.Second)
	agent.onPlayerInput()

	after := store.FearProfile()[spirit.FearJumpScares]
	if after <= before {
		t.Errorf("Expected jumpScares weight to grow after a fast reaction: %v -> %v", before, after)
	}
	sum := 0.0
	for _, c := range spirit.Categories() {
		sum += store.FearProfile()[c]
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("Expected renormalized profile after learning, sum %v", sum)
	}
	if saver.saves != 1 {
		t.Errorf("Expected learned model persisted once, got %d saves", saver.saves)
	}
}

func TestSlowReactionDecaysFearCategory(t *testing.T) {
	agent, store, _, _, now := newTestAgent(t)

	before := store.FearProfile()[spirit.FearAudio]
	agent.history.Append(spirit.ScareRecord{
		Action:   "whisper",
		Category: spirit.FearAudio,
		FiredAt:  *now,
	})

	*now = now.Add(7 * time.Second)
	agent.onPlayerInput()

	after := store.FearProfile()[spirit.FearAudio]
	if after >= before {
		t.Errorf("Expected audio weight to decay after a slow reaction: %v -> %v", before, after)
	}
}

func TestReactionPastCutoffIsDiscarded(t *testing.T) {
	agent, store, _, saver, now := newTestAgent(t)

	before := store.FearProfile().Clone()
	agent.history.Append(spirit.ScareRecord{
		Action:   "jumpScare",
		Category: spirit.FearJumpScares,
		FiredAt:  *now,
	})

	*now = now.Add(11 * time.Second)
	agent.onPlayerInput()

	for _, c := range spirit.Categories() {
		if store.FearProfile()[c] != before[c] {
			t.Errorf("Expected profile untouched by noise input")
			break
		}
	}
	if saver.saves != 0 {
		t.Errorf("Expected no persistence for discarded reactions")
	}
	hist, _ := store.Get(state.FieldReactionHistory).([]int64)
	if len(hist) != 0 {
		t.Errorf("Expected noise kept out of the rolling window, got %v", hist)
	}
}

func TestSlowAverageRaisesAggression(t *testing.T) {
	agent, store, _, _, now := newTestAgent(t)

	before := store.Personality().Aggression
	agent.history.Append(spirit.ScareRecord{Action: "whisper", Category: spirit.FearAudio, FiredAt: *now})

	// One 6s reaction makes the rolling average 6000ms (> 4s rule).
	*now = now.Add(6 * time.Second)
	agent.onPlayerInput()

	if got := store.Personality().Aggression; math.Abs(got-(before+0.05)) > 1e-9 {
		t.Errorf("Expected aggression +0.05, got %v -> %v", before, got)
	}
}

func TestFastAverageWithPatienceDominantBacksOff(t *testing.T) {
	agent, store, _, _, now := newTestAgent(t)

	// Default personality is patience-dominant (0.7 vs cruelty 0.2).
	before := store.Personality()
	agent.history.Append(spirit.ScareRecord{Action: "jumpScare", Category: spirit.FearJumpScares, FiredAt: *now})

	*now = now.Add(1 * time.Second)
	agent.onPlayerInput()

	got := store.Personality()
	if math.Abs(got.Aggression-(before.Aggression-0.03)) > 1e-9 {
		t.Errorf("Expected patient entity to back off: aggression %v -> %v", before.Aggression, got.Aggression)
	}
}

func TestFastAverageWithCrueltyDominantLeansIn(t *testing.T) {
	agent, store, _, _, now := newTestAgent(t)
	store.Set(state.FieldPersonality, spirit.Personality{Aggression: 0.3, Patience: 0.2, Intelligence: 0.5, Cruelty: 0.8})

	agent.history.Append(spirit.ScareRecord{Action: "jumpScare", Category: spirit.FearJumpScares, FiredAt: *now})

	*now = now.Add(1 * time.Second)
	agent.onPlayerInput()

	if got := store.Personality().Cruelty; math.Abs(got-0.85) > 1e-9 {
		t.Errorf("Expected cruelty +0.05, got %v", got)
	}
}

func TestStageHookNudgesIntelligence(t *testing.T) {
	agent, store, bus, _, _ := newTestAgent(t)
	agent.Attach()
	defer agent.Detach()

	before := store.Personality().Intelligence
	bus.Publish(events.HauntingStageChanged, events.StageChangedPayload{
		Stage:    spirit.StageAggressive,
		OldStage: spirit.StageActive,
	})

	if got := store.Personality().Intelligence; math.Abs(got-(before+0.1)) > 1e-9 {
		t.Errorf("Expected intelligence +0.1 entering stage 3, got %v -> %v", before, got)
	}
}

func TestConsumedStageForcesDesperateMoodAndCooldownFloor(t *testing.T) {
	agent, _, bus, _, _ := newTestAgent(t)
	agent.Attach()
	defer agent.Detach()

	bus.Publish(events.HauntingStageChanged, events.StageChangedPayload{
		Stage:    spirit.StageConsumed,
		OldStage: spirit.StageAggressive,
	})

	if agent.Mood() != MoodDesperate {
		t.Errorf("Expected desperate mood at CONSUMED, got %s", agent.Mood())
	}
	agent.mu.Lock()
	floor := agent.minCooldown
	agent.mu.Unlock()
	if floor != consumedCooldownFloor {
		t.Errorf("Expected cooldown floor %v, got %v", consumedCooldownFloor, floor)
	}
}

func TestNightRatchetAppliesOnce(t *testing.T) {
	agent, store, _, _, _ := newTestAgent(t)

	// Shift both clocks into the haunting hours.
	night := time.Date(2025, 3, 10, 23, 0, 0, 0, time.Local)
	store.SetClock(func() time.Time { return night })
	agent.SetClock(func() time.Time { return night })

	before := store.Personality().Aggression
	agent.updateMood()
	first := store.Personality().Aggression
	if math.Abs(first-(before+0.05)) > 1e-9 {
		t.Errorf("Expected night ratchet +0.05 aggression, got %v -> %v", before, first)
	}

	agent.updateMood()
	if store.Personality().Aggression != first {
		t.Errorf("Expected the ratchet to apply only once per session")
	}
}

func TestMoodChangePublishesEvent(t *testing.T) {
	agent, store, bus, _, _ := newTestAgent(t)

	var moods []string
	bus.Subscribe(events.HauntingMoodChanged, func(ev events.Event) {
		if p, ok := ev.Payload.(events.MoodPayload); ok {
			moods = append(moods, p.Mood)
		}
	}, 0)

	store.Set(state.FieldStage, spirit.StageConsumed)
	agent.updateMood()

	if len(moods) != 1 || moods[0] != MoodDesperate {
		t.Errorf("Expected one desperate mood event, got %v", moods)
	}

	// Same mood again: no duplicate event.
	agent.updateMood()
	if len(moods) != 1 {
		t.Errorf("Expected no event when mood is unchanged, got %v", moods)
	}
}

func TestFullWipeRearmsEnvironmentRatchets(t *testing.T) {
	agent, store, bus, _, _ := newTestAgent(t)
	agent.Attach()
	defer agent.Detach()

	night := time.Date(2025, 3, 10, 23, 0, 0, 0, time.Local)
	store.SetClock(func() time.Time { return night })
	agent.SetClock(func() time.Time { return night })

	agent.updateMood()
	ratcheted := store.Personality().Aggression
	agent.updateMood()
	if store.Personality().Aggression != ratcheted {
		t.Fatalf("Expected the night ratchet spent after one application")
	}

	// A full wipe resets the personality, so the nudge must be able to
	// land again.
	store.Set(state.FieldPersonality, spirit.DefaultPersonality())
	bus.Publish(events.PersistenceWiped, nil)

	before := store.Personality().Aggression
	agent.updateMood()
	after := store.Personality().Aggression
	if math.Abs(after-(before+0.05)) > 1e-9 {
		t.Errorf("Expected night ratchet +0.05 after a wipe, got %v -> %v", before, after)
	}
}

func TestWipeClearsCooldownFloorAndMood(t *testing.T) {
	agent, _, bus, _, _ := newTestAgent(t)
	agent.Attach()
	defer agent.Detach()

	bus.Publish(events.HauntingStageChanged, events.StageChangedPayload{
		Stage:    spirit.StageConsumed,
		OldStage: spirit.StageAggressive,
	})
	if agent.Mood() != MoodDesperate {
		t.Fatalf("Expected desperate mood at CONSUMED, got %s", agent.Mood())
	}

	bus.Publish(events.PersistenceWiped, nil)

	agent.mu.Lock()
	floor := agent.minCooldown
	agent.mu.Unlock()
	if floor != 0 {
		t.Errorf("Expected the cooldown floor cleared, got %v", floor)
	}
	if agent.Mood() != MoodCurious {
		t.Errorf("Expected the mood back to curious, got %s", agent.Mood())
	}
}
