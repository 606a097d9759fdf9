// Package ghost is the entity behind the console. It runs an
// autonomous observe-select-act loop against the shared state store
// and learns from how fast the player reacts to each scare.
package ghost

import (
	"context"
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

const (
	// ThinkInterval is the default decision loop period.
	ThinkInterval = 2 * time.Second

	// NoiseCutoff is the reaction time beyond which a player input is
	// not attributed to the last scare at all.
	NoiseCutoff = 10 * time.Second

	// efficiencyWindow and scaredBelow parameterize the short-horizon
	// scare efficiency used for the mood label.
	efficiencyWindow = 60 * time.Second
	scaredBelow      = 3 * time.Second

	// consumedCooldownFloor applies once the final stage is reached:
	// the formula never drops the entity below this.
	consumedCooldownFloor = 3 * time.Second

	// scareHistorySize bounds the in-memory scare log.
	scareHistorySize = 50
)

// Mood labels. Display only.
const (
	MoodCurious   = "curious"
	MoodPlayful   = "playful"
	MoodAngry     = "angry"
	MoodDesperate = "desperate"
)

// Saver is the slice of the persistence gateway the agent needs to
// persist a freshly learned model.
type Saver interface {
	Save(ctx context.Context) error
}

// Agent is the adaptive scare selector.
type Agent struct {
	bus    *events.Bus
	store  *state.Store
	logger *logger.Logger
	saver  Saver

	mu            sync.Mutex
	rng           *rand.Rand
	clock         func() time.Time
	task          *sched.Task
	history       *spirit.ScareHistory
	cooldownUntil time.Time
	minCooldown   time.Duration
	mood          string
	nightRatchet  bool
	dateRatchet   bool
	unsubs        []func()
}

// NewAgent creates the entity. Call Attach and Start to wake it.
func NewAgent(bus *events.Bus, store *state.Store, log *logger.Logger, saver Saver) *Agent {
	return &Agent{
		bus:     bus,
		store:   store,
		logger:  log,
		saver:   saver,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:   time.Now,
		history: spirit.NewScareHistory(scareHistorySize),
		mood:    MoodCurious,
	}
}

// SetClock replaces the time source. Test hook.
func (a *Agent) SetClock(clock func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clock = clock
}

// Attach subscribes the agent to player input (learning) and stage
// changes (trait nudges).
func (a *Agent) Attach() {
	a.unsubs = append(a.unsubs,
		a.bus.Subscribe(events.InputButtonDown, func(events.Event) {
			a.onPlayerInput()
		}, 0),
		a.bus.Subscribe(events.HauntingStageChanged, func(ev events.Event) {
			if p, ok := ev.Payload.(events.StageChangedPayload); ok {
				a.onStageChanged(p.Stage)
			}
		}, 0),
		a.bus.Subscribe(events.PersistenceWiped, func(events.Event) {
			a.onWiped()
		}, 0),
	)
}

// Detach removes the agent's subscriptions.
func (a *Agent) Detach() {
	for _, u := range a.unsubs {
		u()
	}
	a.unsubs = nil
}

// Start begins the think loop.
func (a *Agent) Start(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.task != nil {
		return
	}
	if interval <= 0 {
		interval = ThinkInterval
	}
	a.task = sched.Every(interval, a.Think)
	a.logger.Info("The entity is awake.")
}

// Stop halts the think loop.
func (a *Agent) Stop() {
	a.mu.Lock()
	task := a.task
	a.task = nil
	a.mu.Unlock()
	if task != nil {
		task.Stop()
	}
}

// Mood returns the current display label.
func (a *Agent) Mood() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mood
}

// History exposes the scare log for debug surfaces.
func (a *Agent) History() []spirit.ScareRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Records()
}

// Think runs one decision cycle: refresh mood, honor cooldown, then
// pick and fire one scare appropriate to the current stage.
func (a *Agent) Think() {
	if !a.store.PowerOn() {
		return
	}
	a.updateMood()

	stage := a.store.Stage()
	if stage == spirit.StageDormant {
		return
	}

	a.mu.Lock()
	now := a.clock()
	if now.Before(a.cooldownUntil) {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	personality := a.store.Personality()
	action, ok := a.selectAction(Available(stage), personality, a.store.FearProfile())
	if !ok {
		return
	}
	a.execute(action, stage, personality, now)
}

// selectAction picks one candidate. The best fear category doubles a
// candidate's weight. A smart entity samples uniformly among the top
// three by weight instead of always chasing the maximum; everyone
// else rolls weighted random over the full table.
func (a *Agent) selectAction(candidates []Action, p spirit.Personality, profile spirit.FearProfile) (Action, bool) {
	if len(candidates) == 0 {
		return Action{}, false
	}

	best := profile.Best()
	weighted := make([]Action, len(candidates))
	copy(weighted, candidates)
	for i := range weighted {
		if weighted[i].Category == best {
			weighted[i].Weight *= 2
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if p.Intelligence > 0.7 {
		sort.SliceStable(weighted, func(i, j int) bool {
			return weighted[i].Weight > weighted[j].Weight
		})
		top := 3
		if len(weighted) < top {
			top = len(weighted)
		}
		return weighted[a.rng.Intn(top)], true
	}

	total := 0.0
	for _, act := range weighted {
		total += act.Weight
	}
	if total <= 0 {
		return weighted[a.rng.Intn(len(weighted))], true
	}
	roll := a.rng.Float64() * total
	for _, act := range weighted {
		roll -= act.Weight
		if roll <= 0 {
			return act, true
		}
	}
	return weighted[len(weighted)-1], true
}

// execute fires the action's events, records the scare, and rearms
// the cooldown from the personality formula.
func (a *Agent) execute(action Action, stage spirit.Stage, p spirit.Personality, now time.Time) {
	a.logger.Event("SCARE", action.Kind)
	action.run(a)
	metrics.Get().RecordScareFired()

	count, _ := a.store.Get(state.FieldScareCount).(int)
	a.store.Set(state.FieldScareCount, count+1)

	cooldown := spirit.Cooldown(stage, p)
	a.mu.Lock()
	a.history.Append(spirit.ScareRecord{
		Action:   action.Kind,
		Category: action.Category,
		FiredAt:  now,
	})
	if cooldown < a.minCooldown {
		cooldown = a.minCooldown
	}
	a.cooldownUntil = now.Add(cooldown)
	a.mu.Unlock()
}

func (a *Agent) randomButton() string {
	buttons := []string{"up", "down", "left", "right", "a", "b"}
	a.mu.Lock()
	defer a.mu.Unlock()
	return buttons[a.rng.Intn(len(buttons))]
}

// onPlayerInput attributes the input to the most recent unanswered
// scare and folds the measured reaction time into the model.
func (a *Agent) onPlayerInput() {
	a.mu.Lock()
	now := a.clock()
	rec, ok := a.history.ResolveLatest(now, NoiseCutoff)
	a.mu.Unlock()

	if !ok {
		if rec.Discarded {
			metrics.Get().RecordScareDiscarded()
		}
		return
	}
	metrics.Get().RecordScareAnswered()
	a.learn(rec)
}

// learn applies the reaction-time rules: fast reactions reinforce the
// fear category that caused them, slow ones decay it, and the rolling
// average steers aggression and cruelty.
func (a *Agent) learn(rec spirit.ScareRecord) {
	profile := a.store.FearProfile()
	switch {
	case rec.ReactionMS < 2000:
		profile.Adjust(rec.Category, 0.1)
	case rec.ReactionMS > 5000:
		profile.Adjust(rec.Category, -0.05)
	}
	a.store.Set(state.FieldFearProfile, profile)

	avg := a.store.PushReaction(rec.ReactionMS)
	personality := a.store.Personality()
	switch {
	case avg > 4000:
		personality = personality.Add(spirit.Personality{Aggression: 0.05})
	case avg < 1500:
		// Player startles easily. A patient entity backs off; a cruel
		// one leans in.
		if personality.Patience >= personality.Cruelty {
			personality = personality.Add(spirit.Personality{Aggression: -0.03})
		} else {
			personality = personality.Add(spirit.Personality{Cruelty: 0.05})
		}
	}
	a.store.Set(state.FieldPersonality, personality)

	if a.saver != nil {
		if err := a.saver.Save(context.Background()); err != nil {
			a.logger.Warn("Persisting learned model failed: %v", err)
		}
	}
}

// onStageChanged nudges traits when the possession deepens.
func (a *Agent) onStageChanged(stage spirit.Stage) {
	if stage >= spirit.StageAggressive {
		p := a.store.Personality().Add(spirit.Personality{Intelligence: 0.1})
		a.store.Set(state.FieldPersonality, p)
	}
	if stage == spirit.StageConsumed {
		a.mu.Lock()
		a.minCooldown = consumedCooldownFloor
		a.mu.Unlock()
		a.setMood(MoodDesperate)
	}
}

// onWiped clears everything this process learned about the session.
// The personality it ratcheted was just reset under it, so night and
// date nudges may apply again; the cooldown floor and scare log go
// with them.
func (a *Agent) onWiped() {
	a.mu.Lock()
	a.nightRatchet = false
	a.dateRatchet = false
	a.minCooldown = 0
	a.cooldownUntil = time.Time{}
	a.history = spirit.NewScareHistory(scareHistorySize)
	a.mu.Unlock()
	a.setMood(MoodCurious)
}

// updateMood recomputes the display label and applies the one-way
// environmental ratchets for night hours and haunted dates.
func (a *Agent) updateMood() {
	night := a.store.IsLocalNight()
	haunted := a.store.IsHauntedDate()

	a.mu.Lock()
	var delta spirit.Personality
	if night && !a.nightRatchet {
		a.nightRatchet = true
		delta = delta.Add(spirit.Personality{Aggression: 0.05, Cruelty: 0.03})
	}
	if haunted && !a.dateRatchet {
		a.dateRatchet = true
		delta = delta.Add(spirit.Personality{Aggression: 0.1, Cruelty: 0.05})
	}
	ratcheted := delta != (spirit.Personality{})
	now := a.clock()
	eff := a.history.Efficiency(now, efficiencyWindow, scaredBelow)
	a.mu.Unlock()

	if ratcheted {
		a.logger.Event("ENVIRONMENT", "the dark hours make it bolder")
		a.store.Set(state.FieldPersonality, a.store.Personality().Add(delta))
	}

	stage := a.store.Stage()
	personality := a.store.Personality()

	var mood string
	switch {
	case stage == spirit.StageConsumed:
		mood = MoodDesperate
	case eff >= 0.5:
		mood = MoodPlayful
	case personality.Aggression > 0.6 || stage >= spirit.StageAggressive:
		mood = MoodAngry
	default:
		mood = MoodCurious
	}
	a.setMood(mood)
}

func (a *Agent) setMood(mood string) {
	a.mu.Lock()
	changed := a.mood != mood
	a.mood = mood
	a.mu.Unlock()
	if changed {
		a.logger.Event("MOOD", mood)
		a.bus.Publish(events.HauntingMoodChanged, events.MoodPayload{Mood: mood})
	}
}
