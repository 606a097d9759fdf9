// Package events provides the publish/subscribe hub of the haunting
// core. Every component talks through the bus; none of them hold
// references to each other.
//
// The event catalog is closed: emitters and subscribers agree on the
// payload shape per name, the bus itself does not inspect payloads.
package events

import "github.com/hollowsignal/haunted-console/server/internal/domain/spirit"

// Name identifies one event in the closed catalog.
type Name string

// System lifecycle.
const (
	SystemPowerOn           Name = "system.power.on"
	SystemPowerOff          Name = "system.power.off"
	SystemVisibilityHidden  Name = "system.visibility.hidden"
	SystemVisibilityVisible Name = "system.visibility.visible"
	SystemReset             Name = "system.reset"
)

// Player input.
const (
	InputButtonDown Name = "input.button.down"
	InputButtonUp   Name = "input.button.up"
)

// Game surface.
const (
	GameChannelChanged Name = "game.channel.changed"
	GameOver           Name = "game.over"
)

// Audio sink requests.
const (
	AudioSfxPlay    Name = "audio.sfx.play"
	AudioCorruption Name = "audio.corruption"
)

// Haunting core.
const (
	HauntingStageChanged Name = "haunting.stage.changed"
	HauntingMoodChanged  Name = "haunting.mood.changed"
	HauntingGhostInput   Name = "haunting.ghost.input"
	HauntingNarrative    Name = "haunting.narrative.fragment"
	HauntingJumpscare    Name = "haunting.jumpscare"
)

// UI sink requests.
const (
	UITitleCorrupt Name = "ui.title.corrupt"
	UIIconChange   Name = "ui.icon.change"
	UIDebugOverlay Name = "ui.debug.overlay"
)

// Visual effect sink requests.
const (
	EffectsCorruptionStart Name = "effects.corruption.start"
	EffectsCorruptionEnd   Name = "effects.corruption.end"
	EffectsCorruptionPulse Name = "effects.corruption.pulse"
	EffectsGlitch          Name = "effects.glitch"
)

// Persistence notifications.
const (
	PersistenceSaved         Name = "persistence.saved"
	PersistenceLoaded        Name = "persistence.loaded"
	PersistenceDecoyInjected Name = "persistence.decoy.injected"
	PersistenceWiped         Name = "persistence.wiped"
)

// Render hints.
const (
	RenderFlicker Name = "render.flicker"
	RenderStatic  Name = "render.static"
)

// CollaboratorNames lists every event forwarded to external
// collaborators (renderer, audio, UI). Core-internal names like the
// input stream are deliberately not re-broadcast.
func CollaboratorNames() []Name {
	return []Name{
		SystemPowerOn, SystemPowerOff, SystemReset,
		GameChannelChanged, GameOver,
		AudioSfxPlay, AudioCorruption,
		HauntingStageChanged, HauntingMoodChanged, HauntingGhostInput,
		HauntingNarrative, HauntingJumpscare,
		UITitleCorrupt, UIIconChange, UIDebugOverlay,
		EffectsCorruptionStart, EffectsCorruptionEnd,
		EffectsCorruptionPulse, EffectsGlitch,
		PersistenceWiped,
		RenderFlicker, RenderStatic,
	}
}

// StageChangedPayload accompanies HauntingStageChanged.
type StageChangedPayload struct {
	Stage    spirit.Stage `json:"stage"`
	OldStage spirit.Stage `json:"old_stage"`
}

// ButtonPayload accompanies InputButtonDown / InputButtonUp.
type ButtonPayload struct {
	Button string `json:"button"`
}

// GhostInputPayload accompanies HauntingGhostInput: a button press the
// player never made.
type GhostInputPayload struct {
	Button     string `json:"button"`
	DurationMS int    `json:"duration_ms"`
}

// NarrativePayload accompanies HauntingNarrative.
type NarrativePayload struct {
	FragmentID string `json:"fragment_id"`
	Text       string `json:"text"`
}

// CorruptionPulsePayload accompanies EffectsCorruptionPulse and
// EffectsCorruptionStart.
type CorruptionPulsePayload struct {
	Intensity  float64 `json:"intensity"` // 0..1
	DurationMS int     `json:"duration_ms"`
}

// GlitchPayload accompanies EffectsGlitch.
type GlitchPayload struct {
	Severity float64 `json:"severity"` // 0..1
}

// SfxPayload accompanies AudioSfxPlay.
type SfxPayload struct {
	Sound  string  `json:"sound"`
	Volume float64 `json:"volume"`
}

// AudioCorruptionPayload accompanies AudioCorruption.
type AudioCorruptionPayload struct {
	Detune     float64 `json:"detune"` // semitones of pitch warp
	DurationMS int     `json:"duration_ms"`
}

// TitlePayload accompanies UITitleCorrupt.
type TitlePayload struct {
	Title string `json:"title"`
}

// IconPayload accompanies UIIconChange.
type IconPayload struct {
	Icon string `json:"icon"`
}

// JumpscarePayload accompanies HauntingJumpscare.
type JumpscarePayload struct {
	Variant   string  `json:"variant"`
	Intensity float64 `json:"intensity"`
}

// ChannelPayload accompanies GameChannelChanged.
type ChannelPayload struct {
	Channel  int `json:"channel"`
	Previous int `json:"previous"`
}

// MoodPayload accompanies HauntingMoodChanged.
type MoodPayload struct {
	Mood string `json:"mood"`
}

// DecoyPayload accompanies PersistenceDecoyInjected.
type DecoyPayload struct {
	Key string `json:"key"`
}
