package core

// Capabilities are explicit flags describing what an entity can do in a
// scene. The content schema historically discriminated these by key
// presence; they are first-class booleans here.
type Capabilities struct {
	Combatant bool `json:"combatant,omitempty"`
	Merchant  bool `json:"merchant,omitempty"`
	Romance   bool `json:"romance,omitempty"`
}

// RelationshipInfo captures how an entity currently relates to the player in
// narrative terms. The numeric score lives in GameState.Relationships; this
// holds the qualitative rendering the generator maintains.
type RelationshipInfo struct {
	Relation    string `json:"relation,omitempty"`     // e.g. "Stranger", "Ally"
	CallSign    string `json:"call_sign,omitempty"`    // how they address the player
	SpeechStyle string `json:"speech_style,omitempty"` // formal / informal
}

// EntityRecord is the canonical record for a narrative entity. The identity
// fields (ID, Name, Role, Faction, Traits, Locale, Notability, Caps) come
// from the content catalog and never change; the remaining fields are
// mutated by the turn merge step. Records are never deleted, only marked
// Dead.
type EntityRecord struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Role       string       `json:"role,omitempty"`
	Faction    string       `json:"faction,omitempty"`
	Traits     []string     `json:"traits,omitempty"`
	Locale     string       `json:"locale,omitempty"`
	Notability int          `json:"notability,omitempty"`
	Caps       Capabilities `json:"caps,omitempty"`

	// Relations maps related entity IDs to a short relation label
	// ("sister", "rival"). Used by spawn scoring.
	Relations map[string]string `json:"relations,omitempty"`

	// Extensions holds optional profile facts discovered during play
	// (residence, occupation, fears). Only the canonical fields above are
	// typed; everything else lands here.
	Extensions map[string]string `json:"extensions,omitempty"`

	RelationshipInfo RelationshipInfo `json:"relationship_info,omitempty"`
	LastActiveTurn   int              `json:"last_active_turn,omitempty"`
	Dead             bool             `json:"dead,omitempty"`
}

// Clone returns a deep copy safe for independent mutation.
func (e *EntityRecord) Clone() *EntityRecord {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Traits = append([]string(nil), e.Traits...)
	if e.Relations != nil {
		cp.Relations = make(map[string]string, len(e.Relations))
		for k, v := range e.Relations {
			cp.Relations[k] = v
		}
	}
	if e.Extensions != nil {
		cp.Extensions = make(map[string]string, len(e.Extensions))
		for k, v := range e.Extensions {
			cp.Extensions[k] = v
		}
	}
	return &cp
}
