package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomkit/loom/relationship"
	"github.com/loomkit/loom/spawn"
)

// Stage names used for model routing.
const (
	StageStory     = "story"
	StageMemory    = "memory"
	StagePostLogic = "post_logic"
	StageChoices   = "choices"
	StageSummary   = "summary"
)

// Duration wraps time.Duration so YAML accepts "500ms" / "30s" strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RetryConfig tunes the dispatcher.
type RetryConfig struct {
	MaxRetries     int      `yaml:"max_retries"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	AttemptTimeout Duration `yaml:"attempt_timeout"`
}

// CacheConfig tunes the context cache.
type CacheConfig struct {
	// SchemaVersion overrides the built-in schema version when non-empty.
	SchemaVersion  string `yaml:"schema_version,omitempty"`
	MinPayloadSize int    `yaml:"min_payload_size"`
}

// MemoryConfig tunes the memory store caps.
type MemoryConfig struct {
	MaxPerTurn  int `yaml:"max_per_turn"`
	MaxRetained int `yaml:"max_retained"`
}

// SpawnConfig tunes spawn ranking.
type SpawnConfig struct {
	TopK                int     `yaml:"top_k"`
	RelationToActive    float64 `yaml:"relation_to_active"`
	LocaleMatch         float64 `yaml:"locale_match"`
	Notability          float64 `yaml:"notability"`
	NotabilityThreshold int     `yaml:"notability_threshold"`
	LocaleConflict      float64 `yaml:"locale_conflict"`
	Tiebreaker          float64 `yaml:"tiebreaker"`
}

// TierConfig is one relationship tier band override.
type TierConfig struct {
	Name     string `yaml:"name"`
	Min      int    `yaml:"min"`
	Max      int    `yaml:"max"`
	Guidance string `yaml:"guidance"`
}

// Config is the full engine configuration.
type Config struct {
	// Models maps each stage to its ordered fallback list.
	Models map[string][]string `yaml:"models"`

	Retry  RetryConfig  `yaml:"retry"`
	Cache  CacheConfig  `yaml:"cache"`
	Memory MemoryConfig `yaml:"memory"`
	Spawn  SpawnConfig  `yaml:"spawn"`

	// Tiers overrides the default relationship table when non-empty.
	Tiers []TierConfig `yaml:"tiers,omitempty"`

	// SummaryInterval is how many turns pass between rolling summary
	// refreshes.
	SummaryInterval int `yaml:"summary_interval"`

	// HistoryWindow caps dialogue turns carried into prompts.
	HistoryWindow int `yaml:"history_window"`
}

// Default returns the baseline configuration.
func Default() *Config {
	w := spawn.DefaultWeights()
	return &Config{
		Models: map[string][]string{
			StageStory:     {"gemini-2.5-pro", "gemini-2.5-flash"},
			StageMemory:    {"gemini-2.5-flash"},
			StagePostLogic: {"gemini-2.5-flash"},
			StageChoices:   {"gemini-2.5-flash"},
			StageSummary:   {"gemini-2.5-flash"},
		},
		Retry: RetryConfig{
			MaxRetries:     2,
			InitialBackoff: Duration(time.Second),
			AttemptTimeout: Duration(30 * time.Second),
		},
		Cache: CacheConfig{
			MinPayloadSize: 2048,
		},
		Memory: MemoryConfig{
			MaxPerTurn:  2,
			MaxRetained: 50,
		},
		Spawn: SpawnConfig{
			TopK:                spawn.DefaultTopK,
			RelationToActive:    w.RelationToActive,
			LocaleMatch:         w.LocaleMatch,
			Notability:          w.Notability,
			NotabilityThreshold: w.NotabilityThreshold,
			LocaleConflict:      w.LocaleConflict,
			Tiebreaker:          w.Tiebreaker,
		},
		SummaryInterval: 10,
		HistoryWindow:   20,
	}
}

// Load reads a YAML config over the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file over the defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks invariants that YAML cannot express.
func (c *Config) Validate() error {
	if len(c.Models[StageStory]) == 0 {
		return fmt.Errorf("config: no models configured for stage %q", StageStory)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: negative max_retries")
	}
	if c.SummaryInterval < 1 {
		return fmt.Errorf("config: summary_interval must be at least 1")
	}
	if len(c.Tiers) > 0 {
		if _, err := relationship.NewEngine(c.TierTable()); err != nil {
			return err
		}
	}
	return nil
}

// ModelsFor returns the fallback list for a stage, defaulting to the story
// stage's list for unknown stages.
func (c *Config) ModelsFor(stage string) []string {
	if list := c.Models[stage]; len(list) > 0 {
		return list
	}
	return c.Models[StageStory]
}

// SpawnWeights converts the config into spawn weights.
func (c *Config) SpawnWeights() spawn.Weights {
	return spawn.Weights{
		RelationToActive:    c.Spawn.RelationToActive,
		LocaleMatch:         c.Spawn.LocaleMatch,
		Notability:          c.Spawn.Notability,
		NotabilityThreshold: c.Spawn.NotabilityThreshold,
		LocaleConflict:      c.Spawn.LocaleConflict,
		Tiebreaker:          c.Spawn.Tiebreaker,
	}
}

// TierTable converts tier overrides into relationship tiers.
func (c *Config) TierTable() []relationship.Tier {
	if len(c.Tiers) == 0 {
		return relationship.DefaultTiers()
	}
	out := make([]relationship.Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		out = append(out, relationship.Tier{
			Name: t.Name, Min: t.Min, Max: t.Max, Guidance: t.Guidance,
		})
	}
	return out
}
