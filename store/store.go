package store

// Store persists opaque byte payloads under string keys.
//
// Contract:
//   - Get returns (nil, nil) for missing or unreadable entries; errors are
//     reserved for backend failures (I/O, connection loss)
//   - Set overwrites silently
//   - Delete of a missing key is a no-op, not an error
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
