// Package pipeline orchestrates one narrative turn. The primary story call
// runs first and is the only stage whose failure fails the turn; the
// auxiliary stages (memory extraction, post-logic, choices, rolling summary)
// consume its output in parallel and each degrades to a typed default on
// failure. All resulting changes are merged into game state as a single
// atomic delta at the end.
package pipeline
