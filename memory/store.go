package memory

import (
	"sort"

	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/logging"
)

// Default capacity limits per entity.
const (
	DefaultMaxPerTurn  = 2
	DefaultMaxRetained = 50
)

// DefaultRecallLimit caps how many records Recall returns into prompt
// context per entity.
const DefaultRecallLimit = 5

// Options configures a Store.
type Options struct {
	// MaxPerTurn caps how many memories a single entity can gain in one
	// turn. When exceeded, the oldest record of that turn's batch is
	// dropped in favor of the newcomer.
	MaxPerTurn int

	// MaxRetained caps the total records kept per entity. When exceeded,
	// the oldest non-permanent record is evicted first; permanent records
	// are only evicted when nothing else remains.
	MaxRetained int

	Logger logging.Logger
}

// Store applies the memory lifecycle rules to a session's state. The
// records themselves live on core.GameState, so they travel with the
// session snapshot and never cross sessions; the Store holds only policy
// and is shared safely across sessions.
type Store struct {
	opts Options
}

// New creates a Store with default limits.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{
		MaxPerTurn:  DefaultMaxPerTurn,
		MaxRetained: DefaultMaxRetained,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Store{opts: opts}
}

// expiryFor computes the turn after which a new record expires, or nil for
// permanent records. Importance below the tag's threshold falls through to
// the next weaker rule.
func expiryFor(tag core.MemoryTag, importance, turn int) *int {
	switch tag {
	case core.TagSecret, core.TagTrauma, core.TagGrowth:
		if importance >= 2 {
			return nil
		}
	case core.TagBond, core.TagConflict, core.TagPromise:
		if importance >= 2 {
			t := turn + 50
			return &t
		}
	}
	if tag != core.TagGeneral && importance >= 1 {
		t := turn + 20
		return &t
	}
	t := turn + 10
	return &t
}

// Append records a new memory for an entity on the session's state and
// returns it. Invalid tags are coerced to general. Keywords beyond the cap
// are truncated.
func (s *Store) Append(state *core.GameState, entityID, text string, tag core.MemoryTag, importance, turn int, subject string, keywords []string) *core.MemoryRecord {
	if !core.ValidTag(tag) {
		tag = core.TagGeneral
	}
	if len(keywords) > core.MaxKeywords {
		keywords = keywords[:core.MaxKeywords]
	}

	rec := &core.MemoryRecord{
		ID:              core.NewID(),
		EntityID:        entityID,
		Text:            text,
		Tag:             tag,
		Importance:      importance,
		CreatedTurn:     turn,
		Subject:         subject,
		Keywords:        append([]string(nil), keywords...),
		ExpireAfterTurn: expiryFor(tag, importance, turn),
	}

	list := state.EntityMemories(entityID)

	// Per-turn acceptance cap: the newcomer displaces the oldest record
	// written this turn.
	if n := countTurn(list, turn); n >= s.opts.MaxPerTurn {
		list = dropOldestOfTurn(list, turn)
		s.opts.Logger.Debug("memory per-turn cap hit", "entity", entityID, "turn", turn)
	}
	list = append(list, rec)

	// Retention cap: evict oldest non-permanent first.
	for len(list) > s.opts.MaxRetained {
		list = evictOldest(list)
	}

	state.SetEntityMemories(entityID, list)
	return rec
}

// Recall returns up to limit memories for an entity, most important first
// and newest first among equals. Used when composing prompt context.
func Recall(state *core.GameState, entityID string, limit int) []*core.MemoryRecord {
	out := state.EntityMemories(entityID)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].CreatedTurn > out[j].CreatedTurn
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Sweep removes every record on the state whose expiry horizon is at or
// before currentTurn and returns how many were removed.
func (s *Store) Sweep(state *core.GameState, currentTurn int) int {
	removed := 0
	for _, id := range state.MemoryOwners() {
		list := state.EntityMemories(id)
		kept := make([]*core.MemoryRecord, 0, len(list))
		expired := 0
		for _, rec := range list {
			if rec.Expired(currentTurn) {
				expired++
				continue
			}
			kept = append(kept, rec)
		}
		if expired > 0 {
			state.SetEntityMemories(id, kept)
			removed += expired
		}
	}
	if removed > 0 {
		s.opts.Logger.Debug("memory sweep", "turn", currentTurn, "removed", removed)
	}
	return removed
}

func countTurn(list []*core.MemoryRecord, turn int) int {
	n := 0
	for _, rec := range list {
		if rec.CreatedTurn == turn {
			n++
		}
	}
	return n
}

func dropOldestOfTurn(list []*core.MemoryRecord, turn int) []*core.MemoryRecord {
	for i, rec := range list {
		if rec.CreatedTurn == turn {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// evictOldest removes the oldest non-permanent record, falling back to the
// oldest record outright when every record is permanent.
func evictOldest(list []*core.MemoryRecord) []*core.MemoryRecord {
	for i, rec := range list {
		if !rec.Permanent() {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list[1:]
}
