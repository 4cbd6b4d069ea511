package content

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/loomkit/loom/core"
)

// EntityDef is the catalog form of an entity.
type EntityDef struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Role       string            `json:"role,omitempty"`
	Faction    string            `json:"faction,omitempty"`
	Traits     []string          `json:"traits,omitempty"`
	Locale     string            `json:"locale,omitempty"`
	Notability int               `json:"notability,omitempty"`
	Combatant  bool              `json:"combatant,omitempty"`
	Merchant   bool              `json:"merchant,omitempty"`
	Romance    bool              `json:"romance,omitempty"`
	Relations  map[string]string `json:"relations,omitempty"`
	Aliases    []string          `json:"aliases,omitempty"`
}

// Location is a place entities can inhabit.
type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Hub locations waive spawn locale-conflict penalties; anyone may
	// plausibly pass through a market square or a crossroads inn.
	Hub bool `json:"hub,omitempty"`
}

// Faction is a named group with a short description.
type Faction struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Catalog is the immutable content definition for one game.
type Catalog struct {
	ContentID string     `json:"content_id"`
	World     string     `json:"world,omitempty"`
	Openers   []string   `json:"openers,omitempty"`
	Entities  []EntityDef `json:"entities"`
	Locations []Location  `json:"locations,omitempty"`
	Factions  []Faction   `json:"factions,omitempty"`

	entityIdx   map[string]*EntityDef
	locationIdx map[string]*Location
	factionIdx  map[string]*Faction
}

// Load parses a catalog from JSON.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("content: read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("content: parse catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile loads a catalog from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("content: open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (c *Catalog) index() error {
	if c.ContentID == "" {
		return fmt.Errorf("content: catalog missing content_id")
	}
	c.entityIdx = make(map[string]*EntityDef, len(c.Entities))
	for i := range c.Entities {
		e := &c.Entities[i]
		if e.ID == "" {
			return fmt.Errorf("content: entity %d has no id", i)
		}
		if _, dup := c.entityIdx[e.ID]; dup {
			return fmt.Errorf("content: duplicate entity id %q", e.ID)
		}
		c.entityIdx[e.ID] = e
	}
	c.locationIdx = make(map[string]*Location, len(c.Locations))
	for i := range c.Locations {
		l := &c.Locations[i]
		if _, dup := c.locationIdx[l.ID]; dup {
			return fmt.Errorf("content: duplicate location id %q", l.ID)
		}
		c.locationIdx[l.ID] = l
	}
	c.factionIdx = make(map[string]*Faction, len(c.Factions))
	for i := range c.Factions {
		f := &c.Factions[i]
		if _, dup := c.factionIdx[f.ID]; dup {
			return fmt.Errorf("content: duplicate faction id %q", f.ID)
		}
		c.factionIdx[f.ID] = f
	}
	return nil
}

// Entity returns the catalog definition for an ID, or nil.
func (c *Catalog) Entity(id string) *EntityDef { return c.entityIdx[id] }

// Location returns the catalog location for an ID, or nil.
func (c *Catalog) Location(id string) *Location { return c.locationIdx[id] }

// Faction returns the catalog faction for an ID, or nil.
func (c *Catalog) Faction(id string) *Faction { return c.factionIdx[id] }

// EntityIDs returns all entity IDs sorted.
func (c *Catalog) EntityIDs() []string {
	ids := make([]string, 0, len(c.entityIdx))
	for id := range c.entityIdx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aliases returns the display-name to canonical-ID map across all entities.
// Entity names themselves count as aliases.
func (c *Catalog) Aliases() map[string]string {
	out := make(map[string]string)
	for i := range c.Entities {
		e := &c.Entities[i]
		if e.Name != "" {
			out[e.Name] = e.ID
		}
		for _, a := range e.Aliases {
			out[a] = e.ID
		}
	}
	return out
}

// Materialize converts a catalog definition into a fresh runtime record.
func (d *EntityDef) Materialize() *core.EntityRecord {
	rec := &core.EntityRecord{
		ID:         d.ID,
		Name:       d.Name,
		Role:       d.Role,
		Faction:    d.Faction,
		Traits:     append([]string(nil), d.Traits...),
		Locale:     d.Locale,
		Notability: d.Notability,
		Caps: core.Capabilities{
			Combatant: d.Combatant,
			Merchant:  d.Merchant,
			Romance:   d.Romance,
		},
	}
	if len(d.Relations) > 0 {
		rec.Relations = make(map[string]string, len(d.Relations))
		for k, v := range d.Relations {
			rec.Relations[k] = v
		}
	}
	return rec
}

// Seed populates a fresh game state with every catalog entity.
func (c *Catalog) Seed(state *core.GameState) {
	for _, id := range c.EntityIDs() {
		def := c.entityIdx[id]
		state.Entities[id] = def.Materialize()
	}
}
