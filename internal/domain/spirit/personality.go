// Package spirit holds the pure domain model of the entity: its
// personality, what it believes scares the player, the possession
// stages, and the record of every scare it has attempted.
//
// Nothing in this package talks to the bus, the store, or storage.
// It is deterministic and side-effect free so the rules can be tested
// in isolation.
package spirit

// Personality is the four-trait profile governing the entity's tactics.
// Every trait lives in [0,1]; all mutations re-clamp.
type Personality struct {
	Aggression   float64 `json:"aggression"`
	Patience     float64 `json:"patience"`
	Intelligence float64 `json:"intelligence"`
	Cruelty      float64 `json:"cruelty"`
}

// DefaultPersonality is the profile of a freshly woken entity:
// patient, not yet hostile, a little clever.
func DefaultPersonality() Personality {
	return Personality{
		Aggression:   0.3,
		Patience:     0.7,
		Intelligence: 0.5,
		Cruelty:      0.2,
	}
}

// Add returns a new Personality with delta applied trait-wise and
// every trait clamped back into [0,1].
func (p Personality) Add(delta Personality) Personality {
	return Personality{
		Aggression:   clamp01(p.Aggression + delta.Aggression),
		Patience:     clamp01(p.Patience + delta.Patience),
		Intelligence: clamp01(p.Intelligence + delta.Intelligence),
		Cruelty:      clamp01(p.Cruelty + delta.Cruelty),
	}
}

// Clamped returns the personality with every trait forced into [0,1].
// Used when reading a profile back from untrusted storage.
func (p Personality) Clamped() Personality {
	return Personality{
		Aggression:   clamp01(p.Aggression),
		Patience:     clamp01(p.Patience),
		Intelligence: clamp01(p.Intelligence),
		Cruelty:      clamp01(p.Cruelty),
	}
}

func clamp01(v float64) float64 {
	if v != v { // NaN from a corrupted save
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
