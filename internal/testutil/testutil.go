// Package testutil provides builders for test fixtures shared across
// packages.
package testutil

import (
	"github.com/loomkit/loom/core"
)

// StateBuilder assembles a GameState fixture.
type StateBuilder struct {
	state *core.GameState
}

// NewState starts a builder for a session.
func NewState(sessionID, contentID string) *StateBuilder {
	return &StateBuilder{state: core.NewGameState(sessionID, contentID)}
}

// At sets the location.
func (b *StateBuilder) At(location string) *StateBuilder {
	b.state.Location = location
	return b
}

// Turn sets the turn counter.
func (b *StateBuilder) Turn(n int) *StateBuilder {
	b.state.Turn = n
	return b
}

// WithEntity adds an entity record.
func (b *StateBuilder) WithEntity(rec *core.EntityRecord) *StateBuilder {
	b.state.Entities[rec.ID] = rec
	return b
}

// WithCast sets the active cast.
func (b *StateBuilder) WithCast(ids ...string) *StateBuilder {
	b.state.ActiveCast = ids
	return b
}

// WithRelationship sets a relationship score.
func (b *StateBuilder) WithRelationship(id string, score int) *StateBuilder {
	b.state.Relationships[id] = score
	return b
}

// Build returns the assembled state.
func (b *StateBuilder) Build() *core.GameState { return b.state }

// Entity builds a minimal entity record.
func Entity(id, name string, mutate ...func(*core.EntityRecord)) *core.EntityRecord {
	rec := &core.EntityRecord{ID: id, Name: name}
	for _, fn := range mutate {
		fn(rec)
	}
	return rec
}
