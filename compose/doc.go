// Package compose assembles generation prompts from game state. A
// ContentProfile is the per-content strategy for rendering the large static
// context and per-turn dynamic context; the Composer combines both into the
// payload handed to the dispatcher. Composition is pure: given the same
// state, profile, and random source it always produces the same payload.
package compose
