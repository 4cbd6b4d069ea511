package compose

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/memory"
	"github.com/loomkit/loom/model"
)

// DefaultHistoryWindow is how many prior dialogue turns are carried into a
// request.
const DefaultHistoryWindow = 20

// ContentProfile renders the prompt surfaces for one content/game. Chosen
// once when a session opens; implementations must be safe for concurrent
// reads.
type ContentProfile interface {
	// ContentID identifies the content this profile serves.
	ContentID() string

	// StaticContext renders the large invariant block (world rules, lore,
	// persona). It changes rarely, so the result is cacheable.
	StaticContext(state *core.GameState) (string, error)

	// DynamicContext renders the per-turn block: location, mood, active
	// cast, recalled memories, recent events.
	DynamicContext(state *core.GameState) string

	// FormatEntity renders one entity for inclusion in context.
	FormatEntity(rec *core.EntityRecord) string

	// Openers returns example first-turn user inputs. May be empty.
	Openers() []string
}

// Registry maps content IDs to their profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]ContentProfile
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]ContentProfile)}
}

// Register adds a profile, replacing any previous one for the same content.
func (r *Registry) Register(p ContentProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ContentID()] = p
}

// Resolve returns the profile for a content ID.
func (r *Registry) Resolve(contentID string) (ContentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[contentID]
	if !ok {
		return nil, fmt.Errorf("compose: no profile registered for content %q", contentID)
	}
	return p, nil
}

// Payload is a fully assembled prompt ready for dispatch.
type Payload struct {
	System   string
	History  []model.Turn
	UserText string
}

// Options configures a Composer.
type Options struct {
	// HistoryWindow caps how many dialogue turns are included.
	HistoryWindow int

	// Rand drives first-turn opener selection; injectable for
	// deterministic tests.
	Rand *rand.Rand
}

// Composer builds payloads from state using a fixed profile. Pure except
// for the injected random source.
type Composer struct {
	profile ContentProfile
	opts    Options
}

// New creates a Composer bound to a profile.
func New(profile ContentProfile, optFns ...func(o *Options)) *Composer {
	opts := Options{HistoryWindow: DefaultHistoryWindow}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Composer{profile: profile, opts: opts}
}

// Static renders the cacheable context block.
func (c *Composer) Static(state *core.GameState) (string, error) {
	return c.profile.StaticContext(state)
}

// Dynamic assembles the per-turn payload. The static block is passed in by
// the caller, which may have obtained it from cache; an empty static means
// the request carries a cache reference instead.
func (c *Composer) Dynamic(state *core.GameState, static, input string) Payload {
	var sys strings.Builder
	if static != "" {
		sys.WriteString(static)
		sys.WriteString("\n\n")
	}
	sys.WriteString(c.profile.DynamicContext(state))

	if input == "" && state.Turn == 0 {
		input = c.opener()
	}

	return Payload{
		System:   sys.String(),
		History:  c.history(state),
		UserText: input,
	}
}

func (c *Composer) history(state *core.GameState) []model.Turn {
	h := state.History
	window := c.opts.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if len(h) > window {
		h = h[len(h)-window:]
	}
	out := make([]model.Turn, 0, len(h))
	for _, d := range h {
		out = append(out, model.Turn{Role: d.Role, Text: d.Text})
	}
	return out
}

func (c *Composer) opener() string {
	openers := c.profile.Openers()
	if len(openers) == 0 {
		return "Begin the story."
	}
	if c.opts.Rand == nil {
		return openers[0]
	}
	return openers[c.opts.Rand.Intn(len(openers))]
}

// BasicProfile is a generic ContentProfile driven entirely by state. It
// serves contents with no bespoke rendering registered.
type BasicProfile struct {
	ID      string
	World   string // invariant world description
	Opening []string
}

var _ ContentProfile = (*BasicProfile)(nil)

func (p *BasicProfile) ContentID() string { return p.ID }

func (p *BasicProfile) StaticContext(state *core.GameState) (string, error) {
	var b strings.Builder
	b.WriteString("You are the narrator of an interactive story. Respond in character and keep continuity with established facts.\n")
	if p.World != "" {
		b.WriteString("\n## World\n")
		b.WriteString(p.World)
		b.WriteString("\n")
	}
	if state.Persona != "" {
		b.WriteString("\n## Player Persona\n")
		b.WriteString(state.Persona)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (p *BasicProfile) DynamicContext(state *core.GameState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Scene\nTurn: %d\nLocation: %s\nMood: %s\n", state.Turn, state.Location, state.Mood)

	if len(state.ActiveCast) > 0 {
		b.WriteString("\n## Present Characters\n")
		for _, id := range state.ActiveCast {
			if e := state.Entity(id); e != nil {
				b.WriteString(p.FormatEntity(e))
				b.WriteString("\n")
			}
		}
	}

	var recalled []string
	for _, id := range state.ActiveCast {
		name := id
		if e := state.Entity(id); e != nil {
			name = e.Name
		}
		for _, rec := range memory.Recall(state, id, memory.DefaultRecallLimit) {
			recalled = append(recalled, fmt.Sprintf("- %s remembers: %s", name, rec.Text))
		}
	}
	if len(recalled) > 0 {
		b.WriteString("\n## Memories\n")
		for _, line := range recalled {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(state.Relationships) > 0 {
		b.WriteString("\n## Relationships\n")
		ids := make([]string, 0, len(state.Relationships))
		for id := range state.Relationships {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "- %s: %d\n", id, state.Relationships[id])
		}
	}

	if n := len(state.Events); n > 0 {
		b.WriteString("\n## Recent Events\n")
		start := n - 5
		if start < 0 {
			start = 0
		}
		for _, ev := range state.Events[start:] {
			fmt.Fprintf(&b, "- [%s] %s\n", ev.Scope, ev.Text)
		}
	}

	if state.ScenarioSummary != "" {
		b.WriteString("\n## Story So Far\n")
		b.WriteString(state.ScenarioSummary)
		b.WriteString("\n")
	}
	return b.String()
}

func (p *BasicProfile) FormatEntity(rec *core.EntityRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s (%s)", rec.Name, rec.ID)
	if rec.Role != "" {
		fmt.Fprintf(&b, ", %s", rec.Role)
	}
	if len(rec.Traits) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(rec.Traits, ", "))
	}
	if rec.RelationshipInfo.CallSign != "" {
		fmt.Fprintf(&b, " (calls player %q)", rec.RelationshipInfo.CallSign)
	}
	return b.String()
}

func (p *BasicProfile) Openers() []string { return p.Opening }
