// Package spawn ranks off-stage entities for entry into the active scene.
// Scoring is a weighted sum of boolean signals (locale match, relationship
// to someone already on stage, notability) plus a small random tiebreaker,
// with a penalty for entities whose home locale conflicts with the scene
// unless the scene is a hub where anyone may plausibly appear.
package spawn
