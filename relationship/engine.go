package relationship

import (
	"fmt"
)

// Score bounds. Deltas are clamped so a score never leaves this range.
const (
	MinScore = -100
	MaxScore = 100
)

// Tier is one contiguous score band with guidance for how an entity in that
// band behaves toward the player.
type Tier struct {
	Name string
	Min  int // inclusive
	Max  int // inclusive

	// Guidance is internal prompt instruction, never user-facing narrative.
	Guidance string
}

// DefaultTiers covers the full score domain in five bands.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: "Stranger", Min: -100, Max: 20,
			Guidance: "Polite but guarded. Shares no personal information and keeps interactions transactional."},
		{Name: "Acquaintance", Min: 21, Max: 40,
			Guidance: "Recognizes the player and makes small talk. May mention common knowledge and rumors."},
		{Name: "Friend", Min: 41, Max: 70,
			Guidance: "Warm and helpful. Volunteers useful information and minor favors without being asked."},
		{Name: "CloseFriend", Min: 71, Max: 90,
			Guidance: "Trusts the player with personal matters. Takes their side in conflicts and offers meaningful help."},
		{Name: "Confidant", Min: 91, Max: 100,
			Guidance: "Deep loyalty. Shares secrets, takes real risks for the player, and expects the same in return."},
	}
}

// Engine resolves scores to tiers. Immutable after construction.
type Engine struct {
	tiers []Tier
}

// NewEngine validates the table and returns an Engine. Tiers must be sorted
// ascending, contiguous, and together cover exactly [MinScore, MaxScore].
func NewEngine(tiers []Tier) (*Engine, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("relationship: empty tier table")
	}
	if tiers[0].Min != MinScore {
		return nil, fmt.Errorf("relationship: table starts at %d, want %d", tiers[0].Min, MinScore)
	}
	for i, tier := range tiers {
		if tier.Min > tier.Max {
			return nil, fmt.Errorf("relationship: tier %q has min %d > max %d", tier.Name, tier.Min, tier.Max)
		}
		if i > 0 && tier.Min != tiers[i-1].Max+1 {
			return nil, fmt.Errorf("relationship: gap or overlap between %q and %q", tiers[i-1].Name, tier.Name)
		}
	}
	if last := tiers[len(tiers)-1]; last.Max != MaxScore {
		return nil, fmt.Errorf("relationship: table ends at %d, want %d", last.Max, MaxScore)
	}
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return &Engine{tiers: cp}, nil
}

// MustNewEngine panics on an invalid table. For static tables known at
// compile time.
func MustNewEngine(tiers []Tier) *Engine {
	e, err := NewEngine(tiers)
	if err != nil {
		panic(err)
	}
	return e
}

// TierFor returns the tier containing score. Out-of-range scores are clamped
// first, so the lookup is total.
func (e *Engine) TierFor(score int) Tier {
	score = Clamp(score)
	for _, tier := range e.tiers {
		if score >= tier.Min && score <= tier.Max {
			return tier
		}
	}
	// Unreachable given a validated table.
	return e.tiers[len(e.tiers)-1]
}

// InstructionsFor renders the prompt guidance block for one entity at the
// given score.
func (e *Engine) InstructionsFor(entityID string, score int) string {
	tier := e.TierFor(score)
	return fmt.Sprintf("[%s | relationship: %s (%d)] %s", entityID, tier.Name, Clamp(score), tier.Guidance)
}

// Tiers returns a copy of the table.
func (e *Engine) Tiers() []Tier {
	cp := make([]Tier, len(e.tiers))
	copy(cp, e.tiers)
	return cp
}

// Clamp forces a score into [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// ApplyDelta adds delta to score and clamps the result.
func ApplyDelta(score, delta int) int {
	return Clamp(score + delta)
}
