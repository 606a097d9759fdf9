package spirit

import "time"

// Stage is the possession level of the console, 0 through 4.
// It is directional progress metadata: under natural elapsed time a
// session only ever moves forward, and only an explicit override or a
// session reset can move it back.
type Stage int

const (
	StageDormant    Stage = 0 // nothing is wrong with this console
	StageStirring   Stage = 1 // brief flickers, easy to dismiss
	StageActive     Stage = 2 // the entity starts interfering
	StageAggressive Stage = 3 // open hostility
	StageConsumed   Stage = 4 // the console belongs to it now
)

// stage entry thresholds, in elapsed session minutes.
var stageThresholds = [...]float64{1, 3, 6, 11}

func (s Stage) String() string {
	switch s {
	case StageDormant:
		return "DORMANT"
	case StageStirring:
		return "STIRRING"
	case StageActive:
		return "ACTIVE"
	case StageAggressive:
		return "AGGRESSIVE"
	case StageConsumed:
		return "CONSUMED"
	default:
		return "UNKNOWN"
	}
}

// ExpectedStage maps elapsed session time onto the stage the haunting
// should have reached: minute 1 wakes it, 3 activates it, 6 turns it
// aggressive, 11 consumes the console. Monotone in elapsed time.
func ExpectedStage(elapsed time.Duration) Stage {
	m := elapsed.Minutes()
	stage := StageDormant
	for i, threshold := range stageThresholds {
		if m >= threshold {
			stage = Stage(i + 1)
		}
	}
	return stage
}

// ClampStage forces an arbitrary integer into the valid stage range.
func ClampStage(n int) Stage {
	if n < int(StageDormant) {
		return StageDormant
	}
	if n > int(StageConsumed) {
		return StageConsumed
	}
	return Stage(n)
}

// Cooldown computes how long the entity waits between scares. Higher
// stages and aggression shorten it, patience stretches it, and it
// never drops below 2 seconds.
func Cooldown(stage Stage, p Personality) time.Duration {
	ms := float64(8000-int(stage)*1500) + p.Patience*3000 - p.Aggression*2000
	if ms < 2000 {
		ms = 2000
	}
	return time.Duration(ms) * time.Millisecond
}
