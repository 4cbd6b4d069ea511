// Package session persists game-state snapshots between turns. Snapshots
// are JSON blobs keyed by session ID in a store.Store; a missing or corrupt
// snapshot yields a fresh state rather than an error, so a damaged save can
// never brick a session.
package session
