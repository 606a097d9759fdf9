package ghost

import (
	"github.com/hollowsignal/haunted-console/server/internal/domain/spirit"
	"github.com/hollowsignal/haunted-console/server/internal/events"
	"github.com/hollowsignal/haunted-console/server/internal/state"
)

// Action is one entry of the scare repertoire. Stages unlock a
// cumulative superset: everything available at stage 1 stays
// available at stage 4.
type Action struct {
	Kind     string
	Category spirit.FearCategory
	MinStage spirit.Stage
	Weight   float64
	run      func(a *Agent)
}

var repertoire = []Action{
	{
		Kind:     "staticPulse",
		Category: spirit.FearVisual,
		MinStage: spirit.StageStirring,
		Weight:   1.0,
		run: func(a *Agent) {
			a.bus.Publish(events.RenderStatic, nil)
			a.bus.Publish(events.AudioSfxPlay, events.SfxPayload{Sound: "static", Volume: 0.3})
		},
	},
	{
		Kind:     "whisper",
		Category: spirit.FearAudio,
		MinStage: spirit.StageStirring,
		Weight:   1.0,
		run: func(a *Agent) {
			a.bus.Publish(events.AudioSfxPlay, events.SfxPayload{Sound: "whisper", Volume: 0.2})
		},
	},
	{
		Kind:     "titleCorrupt",
		Category: spirit.FearSubliminal,
		MinStage: spirit.StageStirring,
		Weight:   0.8,
		run: func(a *Agent) {
			a.bus.Publish(events.UITitleCorrupt, events.TitlePayload{Title: "hλunted c0nsole"})
		},
	},
	{
		Kind:     "ghostInput",
		Category: spirit.FearGameBreaking,
		MinStage: spirit.StageActive,
		Weight:   1.2,
		run: func(a *Agent) {
			a.bus.Publish(events.HauntingGhostInput, events.GhostInputPayload{
				Button:     a.randomButton(),
				DurationMS: 120,
			})
		},
	},
	{
		Kind:     "audioDistort",
		Category: spirit.FearAudio,
		MinStage: spirit.StageActive,
		Weight:   1.0,
		run: func(a *Agent) {
			a.bus.Publish(events.AudioCorruption, events.AudioCorruptionPayload{
				Detune:     1.5,
				DurationMS: 3000,
			})
		},
	},
	{
		Kind:     "iconSwap",
		Category: spirit.FearSubliminal,
		MinStage: spirit.StageActive,
		Weight:   0.7,
		run: func(a *Agent) {
			a.bus.Publish(events.UIIconChange, events.IconPayload{Icon: "eye"})
		},
	},
	{
		Kind:     "narrativeWhisper",
		Category: spirit.FearSubliminal,
		MinStage: spirit.StageActive,
		Weight:   0.9,
		run: func(a *Agent) {
			a.bus.Publish(events.HauntingNarrative, events.NarrativePayload{
				FragmentID: "frag.whisper",
				Text:       "you left the console on once. it remembers.",
			})
		},
	},
	{
		Kind:     "jumpScare",
		Category: spirit.FearJumpScares,
		MinStage: spirit.StageAggressive,
		Weight:   1.5,
		run: func(a *Agent) {
			a.bus.Publish(events.HauntingJumpscare, events.JumpscarePayload{Variant: "face", Intensity: 0.7})
			a.bus.Publish(events.AudioSfxPlay, events.SfxPayload{Sound: "sting", Volume: 0.9})
		},
	},
	{
		Kind:     "corruptionBurst",
		Category: spirit.FearVisual,
		MinStage: spirit.StageAggressive,
		Weight:   1.2,
		run: func(a *Agent) {
			a.bus.Publish(events.EffectsCorruptionPulse, events.CorruptionPulsePayload{
				Intensity:  0.6,
				DurationMS: 1500,
			})
		},
	},
	{
		Kind:     "channelHijack",
		Category: spirit.FearGameBreaking,
		MinStage: spirit.StageAggressive,
		Weight:   1.0,
		run: func(a *Agent) {
			prev, _ := a.store.Get(state.FieldCurrentChannel).(int)
			a.bus.Publish(events.GameChannelChanged, events.ChannelPayload{
				Channel:  3,
				Previous: prev,
			})
		},
	},
	{
		Kind:     "fakeCrash",
		Category: spirit.FearGameBreaking,
		MinStage: spirit.StageConsumed,
		Weight:   1.3,
		run: func(a *Agent) {
			a.bus.Publish(events.EffectsGlitch, events.GlitchPayload{Severity: 1.0})
			a.bus.Publish(events.UITitleCorrupt, events.TitlePayload{Title: "SIGNAL LOST"})
		},
	},
	{
		Kind:     "screamScare",
		Category: spirit.FearJumpScares,
		MinStage: spirit.StageConsumed,
		Weight:   1.6,
		run: func(a *Agent) {
			a.bus.Publish(events.HauntingJumpscare, events.JumpscarePayload{Variant: "scream", Intensity: 1.0})
			a.bus.Publish(events.AudioSfxPlay, events.SfxPayload{Sound: "scream", Volume: 1.0})
			a.bus.Publish(events.EffectsCorruptionPulse, events.CorruptionPulsePayload{
				Intensity:  1.0,
				DurationMS: 800,
			})
		},
	},
}

// Available returns the repertoire slice unlocked at the given stage.
func Available(stage spirit.Stage) []Action {
	var out []Action
	for _, act := range repertoire {
		if act.MinStage <= stage {
			out = append(out, act)
		}
	}
	return out
}
