// Package memory keeps per-entity episodic memories with importance-driven
// decay. Every record is written with an expiry horizon derived from its tag
// and importance at creation time; a sweep after each turn removes records
// whose horizon has passed. Nothing re-scores memories after the fact, so a
// record's lifetime is fully determined the moment it is appended.
//
// Records live on the session's GameState, so they serialize with the
// snapshot and one session's sweep can never touch another's; the Store
// carries only the lifecycle policy. Recall orders an entity's records for
// prompt inclusion, most important first.
package memory
