package spawn

import (
	"math/rand"
	"sort"

	"github.com/loomkit/loom/core"
)

// DefaultTopK is how many candidates Rank returns by default.
const DefaultTopK = 4

// Weights tunes the scoring signals. All values are additive contributions.
type Weights struct {
	// RelationToActive applies when the candidate has a recorded relation
	// to an entity already in the scene.
	RelationToActive float64

	// LocaleMatch applies when the candidate's home locale equals the
	// scene location.
	LocaleMatch float64

	// Notability applies when the candidate's notability meets
	// NotabilityThreshold.
	Notability          float64
	NotabilityThreshold int

	// LocaleConflict is subtracted when the candidate has a home locale
	// that differs from the scene location. Waived in hub scenes.
	LocaleConflict float64

	// Tiebreaker is the upper bound of the uniform random jitter added to
	// every score.
	Tiebreaker float64
}

// DefaultWeights returns the standard scoring profile.
func DefaultWeights() Weights {
	return Weights{
		RelationToActive:    3.0,
		LocaleMatch:         2.0,
		Notability:          1.0,
		NotabilityThreshold: 3,
		LocaleConflict:      2.5,
		Tiebreaker:          0.5,
	}
}

// Scene describes the moment a spawn decision is made for.
type Scene struct {
	Location   string
	Hub        bool // hub locations waive locale-conflict penalties
	ActiveCast []string
	Turn       int
}

// Candidate is one ranked spawn suggestion.
type Candidate struct {
	EntityID string
	Score    float64
}

// Options configures a Selector.
type Options struct {
	Weights Weights
	TopK    int

	// Rand supplies the tiebreaker jitter. A seeded source makes ranking
	// fully deterministic.
	Rand *rand.Rand
}

// Selector ranks entities for scene entry. Not safe for concurrent use when
// sharing a Rand; the pipeline calls it from a single goroutine.
type Selector struct {
	opts Options
}

// New creates a Selector.
func New(optFns ...func(o *Options)) *Selector {
	opts := Options{
		Weights: DefaultWeights(),
		TopK:    DefaultTopK,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Selector{opts: opts}
}

// Rank scores every eligible entity and returns the top-K by score
// descending. Entities already on stage and dead entities are excluded.
// Iteration is over sorted IDs so ranking depends only on inputs and the
// injected random source.
func (s *Selector) Rank(entities map[string]*core.EntityRecord, scene Scene) []Candidate {
	active := make(map[string]bool, len(scene.ActiveCast))
	for _, id := range scene.ActiveCast {
		active[id] = true
	}

	ids := make([]string, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var candidates []Candidate
	for _, id := range ids {
		e := entities[id]
		if e == nil || e.Dead || active[id] {
			continue
		}
		candidates = append(candidates, Candidate{
			EntityID: id,
			Score:    s.score(e, scene, active),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	k := s.opts.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func (s *Selector) score(e *core.EntityRecord, scene Scene, active map[string]bool) float64 {
	w := s.opts.Weights
	score := 0.0

	for other := range e.Relations {
		if active[other] {
			score += w.RelationToActive
			break
		}
	}
	if e.Locale != "" && e.Locale == scene.Location {
		score += w.LocaleMatch
	}
	if e.Notability >= w.NotabilityThreshold {
		score += w.Notability
	}
	if !scene.Hub && e.Locale != "" && e.Locale != scene.Location {
		score -= w.LocaleConflict
	}
	if w.Tiebreaker > 0 {
		score += s.randFloat() * w.Tiebreaker
	}
	return score
}

func (s *Selector) randFloat() float64 {
	if s.opts.Rand != nil {
		return s.opts.Rand.Float64()
	}
	return rand.Float64()
}
