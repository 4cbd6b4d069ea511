package core

import (
	"sort"
	"sync"
	"time"
)

// Item is a single inventory entry.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
}

// PlayerState groups the player-owned mutable fields.
type PlayerState struct {
	Name       string         `json:"name"`
	Attributes map[string]int `json:"attributes,omitempty"`
	Inventory  []Item         `json:"inventory,omitempty"`
	Goals      []string       `json:"goals,omitempty"`
}

// DialogueTurn is one exchange in the running narrative history.
type DialogueTurn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// GameState is the per-session mutable aggregate. It is safe for concurrent
// read access; all writes flow through ApplyTurn, invoked exactly once per
// turn by the pipeline merge step. Readers take a Clone at turn start and
// operate on the immutable snapshot.
//
// Contract:
//   - Mutations update the Updated timestamp
//   - Clone performs deep copies of maps/slices for safe divergence
//   - The turn counter increments exactly once per applied turn
type GameState struct {
	SessionID string `json:"session_id"`
	ContentID string `json:"content_id"` // which content pack / game this session runs
	Persona   string `json:"persona,omitempty"`

	Turn            int                        `json:"turn"`
	Location        string                     `json:"location,omitempty"`
	Mood            string                     `json:"mood,omitempty"`
	ActiveCast      []string                   `json:"active_cast,omitempty"`
	Player          PlayerState                `json:"player"`
	Relationships   map[string]int             `json:"relationships,omitempty"` // entity ID -> score
	Entities        map[string]*EntityRecord   `json:"entities,omitempty"`
	Memories        map[string][]*MemoryRecord `json:"memories,omitempty"` // entity ID -> records
	Events          []WorldEvent               `json:"events,omitempty"`
	History         []DialogueTurn             `json:"history,omitempty"`
	ScenarioSummary string                     `json:"scenario_summary,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	mu sync.RWMutex
}

// NewGameState creates a fresh state for a session bound to a content pack.
func NewGameState(sessionID, contentID string) *GameState {
	now := time.Now().UTC()
	return &GameState{
		SessionID:     sessionID,
		ContentID:     contentID,
		Player:        PlayerState{Attributes: map[string]int{}},
		Relationships: map[string]int{},
		Entities:      map[string]*EntityRecord{},
		Memories:      map[string][]*MemoryRecord{},
		Created:       now,
		Updated:       now,
	}
}

// Clone returns a deep copy of the state safe for independent reads while
// the original continues to be mutated by later turns.
func (s *GameState) Clone() *GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := &GameState{
		SessionID:       s.SessionID,
		ContentID:       s.ContentID,
		Persona:         s.Persona,
		Turn:            s.Turn,
		Location:        s.Location,
		Mood:            s.Mood,
		ActiveCast:      append([]string(nil), s.ActiveCast...),
		ScenarioSummary: s.ScenarioSummary,
		Created:         s.Created,
		Updated:         s.Updated,
	}
	cp.Player = PlayerState{
		Name:      s.Player.Name,
		Inventory: append([]Item(nil), s.Player.Inventory...),
		Goals:     append([]string(nil), s.Player.Goals...),
	}
	if s.Player.Attributes != nil {
		cp.Player.Attributes = make(map[string]int, len(s.Player.Attributes))
		for k, v := range s.Player.Attributes {
			cp.Player.Attributes[k] = v
		}
	}
	cp.Relationships = make(map[string]int, len(s.Relationships))
	for k, v := range s.Relationships {
		cp.Relationships[k] = v
	}
	cp.Entities = make(map[string]*EntityRecord, len(s.Entities))
	for k, v := range s.Entities {
		cp.Entities[k] = v.Clone()
	}
	// Memory records are immutable once written, so the clone copies the
	// lists but shares the records.
	cp.Memories = make(map[string][]*MemoryRecord, len(s.Memories))
	for k, v := range s.Memories {
		cp.Memories[k] = append([]*MemoryRecord(nil), v...)
	}
	cp.Events = append([]WorldEvent(nil), s.Events...)
	cp.History = append([]DialogueTurn(nil), s.History...)
	return cp
}

// Entity returns the record for id, or nil when unknown.
func (s *GameState) Entity(id string) *EntityRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Entities[id]
}

// EntityMemories returns a copy of an entity's memory list in insertion
// order.
func (s *GameState) EntityMemories(entityID string) []*MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*MemoryRecord(nil), s.Memories[entityID]...)
}

// SetEntityMemories replaces an entity's memory list. An empty list removes
// the entry.
func (s *GameState) SetEntityMemories(entityID string, list []*MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Memories == nil {
		s.Memories = map[string][]*MemoryRecord{}
	}
	if len(list) == 0 {
		delete(s.Memories, entityID)
	} else {
		s.Memories[entityID] = append([]*MemoryRecord(nil), list...)
	}
	s.Updated = time.Now().UTC()
}

// MemoryOwners returns the IDs of entities holding at least one memory, in
// sorted order.
func (s *GameState) MemoryOwners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.Memories))
	for id := range s.Memories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MemoryCount returns the total record count across all entities.
func (s *GameState) MemoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.Memories {
		n += len(list)
	}
	return n
}

// EnsureEntity returns the existing record for id or materializes a minimal
// one. Used when generation output references an entity the catalog does not
// know yet.
func (s *GameState) EnsureEntity(id, name string) *EntityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.Entities[id]; ok {
		return rec
	}
	if name == "" {
		name = id
	}
	rec := &EntityRecord{ID: id, Name: name}
	s.Entities[id] = rec
	s.Updated = time.Now().UTC()
	return rec
}

// ApplyTurn merges a turn delta into the state as one atomic transition.
// This is the only mutation path; it increments the turn counter exactly
// once and appends the exchanged dialogue to the history.
func (s *GameState) ApplyTurn(d *StateDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Turn++
	if d == nil {
		s.Updated = time.Now().UTC()
		return
	}

	for id, score := range d.RelationshipScores {
		s.Relationships[id] = score
	}
	if d.Location != "" {
		s.Location = d.Location
	}
	if d.Mood != "" {
		s.Mood = d.Mood
	}
	if d.ActiveCast != nil {
		s.ActiveCast = append([]string(nil), d.ActiveCast...)
		for _, id := range s.ActiveCast {
			if rec, ok := s.Entities[id]; ok {
				rec.LastActiveTurn = s.Turn
			}
		}
	}
	s.Events = append(s.Events, d.Events...)
	for id, facts := range d.ProfileUpdates {
		rec, ok := s.Entities[id]
		if !ok {
			rec = &EntityRecord{ID: id, Name: id}
			s.Entities[id] = rec
		}
		if rec.Extensions == nil {
			rec.Extensions = make(map[string]string, len(facts))
		}
		for k, v := range facts {
			rec.Extensions[k] = v
		}
	}
	for id, info := range d.RelationshipInfo {
		if rec, ok := s.Entities[id]; ok {
			rec.RelationshipInfo = info
		}
	}
	for _, id := range d.Deaths {
		if rec, ok := s.Entities[id]; ok {
			rec.Dead = true
		}
	}
	if d.Summary != "" {
		s.ScenarioSummary = d.Summary
	}
	if d.UserInput != "" {
		s.History = append(s.History, DialogueTurn{Role: "user", Text: d.UserInput})
	}
	if d.Narrative != "" {
		s.History = append(s.History, DialogueTurn{Role: "model", Text: d.Narrative})
	}
	s.Updated = time.Now().UTC()
}
