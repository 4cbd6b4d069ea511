package core

import (
	"time"

	"github.com/google/uuid"
)

// MemoryTag classifies a memory record for decay scheduling. Tags are a
// closed set; anything a model emits outside of it is coerced to TagGeneral.
type MemoryTag string

const (
	// TagBond marks memories about friendship, love or cooperation.
	TagBond MemoryTag = "bond"
	// TagConflict marks memories about hostility, rivalry or betrayal.
	TagConflict MemoryTag = "conflict"
	// TagSecret marks shared secrets or discovered hidden truths.
	TagSecret MemoryTag = "secret"
	// TagTrauma marks injuries, loss and shocking experiences.
	TagTrauma MemoryTag = "trauma"
	// TagGrowth marks skill acquisition, promotion and realization.
	TagGrowth MemoryTag = "growth"
	// TagPromise marks promises, oaths, deals and contracts.
	TagPromise MemoryTag = "promise"
	// TagGeneral is the catch-all for everything else.
	TagGeneral MemoryTag = "general"
)

// ValidTag reports whether t is one of the known memory tags.
func ValidTag(t MemoryTag) bool {
	switch t {
	case TagBond, TagConflict, TagSecret, TagTrauma, TagGrowth, TagPromise, TagGeneral:
		return true
	}
	return false
}

// MaxKeywords caps the keyword list attached to a memory record.
const MaxKeywords = 3

// MemoryRecord is a single appended memory owned by an entity. Records are
// immutable after creation; decay removes them wholesale.
//
// Invariant: ExpireAfterTurn is nil exactly for permanent records
// (secret/trauma/growth with importance >= 2); otherwise it is a turn number
// strictly greater than CreatedTurn.
type MemoryRecord struct {
	ID              string    `json:"id"`
	EntityID        string    `json:"entity_id"`
	Text            string    `json:"text"`
	Tag             MemoryTag `json:"tag"`
	Importance      int       `json:"importance"` // 1..3
	CreatedTurn     int       `json:"created_turn"`
	Subject         string    `json:"subject,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	ExpireAfterTurn *int      `json:"expire_after_turn,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Permanent reports whether the record never decays.
func (r MemoryRecord) Permanent() bool { return r.ExpireAfterTurn == nil }

// Expired reports whether the record should be removed at the given turn.
func (r MemoryRecord) Expired(turn int) bool {
	return r.ExpireAfterTurn != nil && *r.ExpireAfterTurn <= turn
}

// NewID generates a new unique identifier for records and turns.
func NewID() string { return uuid.NewString() }
