package core

// EventScope qualifies how far a world event radiates.
type EventScope string

const (
	// ScopeLocal affects only the current location.
	ScopeLocal EventScope = "local"
	// ScopeRegional affects the surrounding region.
	ScopeRegional EventScope = "regional"
	// ScopeGlobal affects the whole world.
	ScopeGlobal EventScope = "global"
)

// ValidScope reports whether s is a known event scope.
func ValidScope(s EventScope) bool {
	switch s {
	case ScopeLocal, ScopeRegional, ScopeGlobal:
		return true
	}
	return false
}

// WorldEvent is an append-only record of something that happened in the
// world. Events are read-only once created and never decay; narrative
// summarization consumes them.
type WorldEvent struct {
	Text  string     `json:"text"`
	Turn  int        `json:"turn"`
	Scope EventScope `json:"scope"`
}
