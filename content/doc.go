// Package content loads and serves the static catalog for a piece of
// content: its entities, locations, and factions. A Catalog is loaded once
// when a session opens and is immutable afterward; mutable per-session
// entity state lives in core.GameState, seeded from catalog records.
package content
