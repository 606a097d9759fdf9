package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/platform/logger"
	"github.com/hollowsignal/haunted-console/server/internal/platform/sched"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

// AmbientInterval is the default heartbeat of the ambient effect roll.
const AmbientInterval = 5 * time.Second

// ambientOdds are the per-roll probabilities of each spontaneous
// effect, indexed by stage. A dormant console does nothing.
var ambientOdds = [...]struct {
	Flicker    float64
	GhostInput float64
	AudioWarp  float64
	Glitch     float64
}{
	{0, 0, 0, 0},
	{0.08, 0, 0.02, 0.02},
	{0.15, 0.05, 0.06, 0.06},
	{0.25, 0.12, 0.12, 0.12},
	{0.40, 0.20, 0.20, 0.25},
}

var phantomButtons = []string{"up", "down", "left", "right", "a", "b", "select", "start"}

// Ambient rolls spontaneous background effects every few seconds:
// screen flicker, phantom button presses, detuned audio, cosmetic
// glitches. Intensity scales with the possession stage, and the
// entity is bolder at night.
type Ambient struct {
	bus    *events.Bus
	store  *state.Store
	logger *logger.Logger

	mu   sync.Mutex
	rng  *rand.Rand
	task *sched.Task
}

// NewAmbient creates the background effect roller.
func NewAmbient(bus *events.Bus, store *state.Store, log *logger.Logger) *Ambient {
	return &Ambient{
		bus:    bus,
		store:  store,
		logger: log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins the periodic roll.
func (a *Ambient) Start(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.task != nil {
		return
	}
	if interval <= 0 {
		interval = AmbientInterval
	}
	a.task = sched.Every(interval, a.Roll)
}

// Stop halts the roll.
func (a *Ambient) Stop() {
	a.mu.Lock()
	task := a.task
	a.task = nil
	a.mu.Unlock()
	if task != nil {
		task.Stop()
	}
}

// Roll runs one probability pass over the ambient effect table.
func (a *Ambient) Roll() {
	if !a.store.PowerOn() {
		return
	}
	stage := a.store.Stage()
	if stage == spirit.StageDormant {
		return
	}

	odds := ambientOdds[stage]
	boost := 1.0
	if a.store.IsLocalNight() {
		boost = 1.5
	}

	a.mu.Lock()
	flicker := a.rng.Float64() < odds.Flicker*boost
	ghost := a.rng.Float64() < odds.GhostInput*boost
	audio := a.rng.Float64() < odds.AudioWarp*boost
	glitch := a.rng.Float64() < odds.Glitch*boost
	button := phantomButtons[a.rng.Intn(len(phantomButtons))]
	detune := 0.5 + a.rng.Float64()*2.5
	severity := float64(stage) * (0.1 + a.rng.Float64()*0.15)
	a.mu.Unlock()

	if flicker {
		a.bus.Publish(events.RenderFlicker, nil)
	}
	if ghost {
		a.bus.Publish(events.HauntingGhostInput, events.GhostInputPayload{
			Button:     button,
			DurationMS: 80,
		})
		a.logger.Event("PHANTOM_INPUT", button)
	}
	if audio {
		a.bus.Publish(events.AudioCorruption, events.AudioCorruptionPayload{
			Detune:     detune,
			DurationMS: 2000,
		})
	}
	if glitch {
		a.bus.Publish(events.EffectsGlitch, events.GlitchPayload{Severity: severity})
	}
}
