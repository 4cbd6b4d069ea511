package session

import (
	"encoding/json"
	"fmt"

	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/logging"
	"github.com/loomkit/loom/store"
)

// Options configures a Manager.
type Options struct {
	// KeyPrefix namespaces snapshot keys within a shared store.
	KeyPrefix string

	Logger logging.Logger
}

// Manager loads and saves game-state snapshots.
type Manager struct {
	backing store.Store
	opts    Options
}

// New creates a Manager over a backing store.
func New(backing store.Store, optFns ...func(o *Options)) *Manager {
	opts := Options{KeyPrefix: "session"}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Manager{backing: backing, opts: opts}
}

func (m *Manager) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", m.opts.KeyPrefix, sessionID)
}

// Load returns the stored state for a session, or a fresh state when no
// usable snapshot exists. The bool reports whether a snapshot was restored.
func (m *Manager) Load(sessionID, contentID string) (*core.GameState, bool) {
	data, err := m.backing.Get(m.key(sessionID))
	if err != nil {
		m.opts.Logger.Warn("snapshot read failed, starting fresh", "session_id", sessionID, "error", err)
		return core.NewGameState(sessionID, contentID), false
	}
	if data == nil {
		return core.NewGameState(sessionID, contentID), false
	}

	var st core.GameState
	if err := json.Unmarshal(data, &st); err != nil {
		m.opts.Logger.Warn("snapshot corrupt, starting fresh", "session_id", sessionID, "error", err)
		return core.NewGameState(sessionID, contentID), false
	}
	if st.SessionID != sessionID {
		m.opts.Logger.Warn("snapshot session mismatch, starting fresh", "session_id", sessionID, "stored", st.SessionID)
		return core.NewGameState(sessionID, contentID), false
	}
	if st.Relationships == nil {
		st.Relationships = map[string]int{}
	}
	if st.Entities == nil {
		st.Entities = map[string]*core.EntityRecord{}
	}
	if st.Memories == nil {
		st.Memories = map[string][]*core.MemoryRecord{}
	}
	return &st, true
}

// Save snapshots the state.
func (m *Manager) Save(state *core.GameState) error {
	snap := state.Clone()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: marshal snapshot: %w", err)
	}
	if err := m.backing.Set(m.key(snap.SessionID), data); err != nil {
		return fmt.Errorf("session: store snapshot: %w", err)
	}
	m.opts.Logger.Debug("snapshot saved", "session_id", snap.SessionID, "turn", snap.Turn, "bytes", len(data))
	return nil
}

// Delete removes a session's snapshot.
func (m *Manager) Delete(sessionID string) error {
	return m.backing.Delete(m.key(sessionID))
}
