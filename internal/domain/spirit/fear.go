package spirit

// FearCategory is one class of scare the entity can attempt.
type FearCategory string

const (
	FearJumpScares   FearCategory = "jumpScares"
	FearSubliminal   FearCategory = "subliminal"
	FearAudio        FearCategory = "audio"
	FearVisual       FearCategory = "visual"
	FearGameBreaking FearCategory = "gameBreaking"
)

// fearOrder is the fixed category order used for deterministic
// iteration and tie-breaking.
var fearOrder = []FearCategory{
	FearJumpScares,
	FearSubliminal,
	FearAudio,
	FearVisual,
	FearGameBreaking,
}

// Categories returns the closed set of fear categories in fixed order.
func Categories() []FearCategory {
	out := make([]FearCategory, len(fearOrder))
	copy(out, fearOrder)
	return out
}

// FearProfile is the entity's belief about which scare category works
// on this particular player. Weights are non-negative and, unless the
// profile is all-zero, sum to 1.
type FearProfile map[FearCategory]float64

// DefaultFearProfile starts with no opinion: equal weight everywhere.
func DefaultFearProfile() FearProfile {
	fp := make(FearProfile, len(fearOrder))
	for _, c := range fearOrder {
		fp[c] = 1.0 / float64(len(fearOrder))
	}
	return fp
}

// Clone returns an independent copy of the profile.
func (fp FearProfile) Clone() FearProfile {
	out := make(FearProfile, len(fp))
	for c, w := range fp {
		out[c] = w
	}
	return out
}

// Adjust adds delta to one category (flooring at zero) and
// renormalizes. Unknown categories are dropped on the way through, so
// a tampered save cannot smuggle extra keys in.
func (fp FearProfile) Adjust(cat FearCategory, delta float64) {
	fp[cat] = fp[cat] + delta
	if fp[cat] < 0 {
		fp[cat] = 0
	}
	fp.Normalize()
}

// Normalize rescales the weights to sum to 1. An all-zero profile is
// left alone until some positive update arrives.
func (fp FearProfile) Normalize() {
	sum := 0.0
	for _, c := range fearOrder {
		w := fp[c]
		if w != w || w < 0 { // NaN or negative from corruption
			w = 0
			fp[c] = 0
		}
		sum += w
	}
	// Drop any key outside the closed catalog.
	for c := range fp {
		if !validCategory(c) {
			delete(fp, c)
		}
	}
	if sum <= 0 {
		return
	}
	for _, c := range fearOrder {
		fp[c] = fp[c] / sum
	}
}

// Best returns the currently highest-weighted category. Ties break on
// the fixed category order so selection stays deterministic.
func (fp FearProfile) Best() FearCategory {
	best := fearOrder[0]
	bestW := fp[best]
	for _, c := range fearOrder[1:] {
		if fp[c] > bestW {
			best = c
			bestW = fp[c]
		}
	}
	return best
}

func validCategory(c FearCategory) bool {
	for _, k := range fearOrder {
		if c == k {
			return true
		}
	}
	return false
}
