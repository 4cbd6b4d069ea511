// Package core provides the foundational domain types used across the Loom
// engine. It defines the core abstractions for:
//
//   - GameState (the per-session mutable aggregate, mutated only through
//     turn-approved deltas)
//   - EntityRecord (canonical identity plus mutable memory and relationship
//     fields)
//   - MemoryRecord / WorldEvent (tiered decaying memories and permanent
//     world history)
//   - StateDelta / TurnResult (the single-writer merge contract of a turn)
//
// The package intentionally keeps implementation concerns (persistence,
// generation dispatch, pipeline orchestration) out of scope, exposing small
// value types so higher layers and custom backends stay decoupled.
package core
