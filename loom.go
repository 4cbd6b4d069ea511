// Package loom provides a high-level façade over the turn engine: context
// caching, generation dispatch with model fallback, tiered memory decay,
// relationship tiers, spawn selection and entity-ID resolution wired into a
// single turn pipeline. Most applications interact with this package by:
//  1. Creating an Engine via New() (optionally overriding stores, config,
//     models and the content catalog)
//  2. Opening a session with OpenSession
//  3. Driving the narrative with Turn()
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable store, real provider models and a
// structured logger.
package loom

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomkit/loom/compose"
	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/content"
	"github.com/loomkit/loom/contextcache"
	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/dispatch"
	"github.com/loomkit/loom/logging"
	"github.com/loomkit/loom/memory"
	"github.com/loomkit/loom/model"
	"github.com/loomkit/loom/pipeline"
	"github.com/loomkit/loom/relationship"
	"github.com/loomkit/loom/resolver"
	"github.com/loomkit/loom/session"
	"github.com/loomkit/loom/spawn"
	"github.com/loomkit/loom/store"
)

// Options configures the Engine.
type Options struct {
	// Config tunes models, retries, caching, memory and spawn behavior.
	// Defaults to config.Default().
	Config *config.Config

	// Store backs the context cache and session snapshots. Defaults to
	// in-memory.
	Store store.Store

	// Models maps model names (as referenced by Config.Models) to their
	// implementations. Required for real generation; tests inject mocks.
	Models map[string]model.Model

	// Catalog is the static content definition. Optional; without it
	// sessions start empty and entities materialize on first mention.
	Catalog *content.Catalog

	// Profiles supplies bespoke prompt rendering per content ID. Contents
	// without a registered profile fall back to a generic profile derived
	// from the catalog.
	Profiles *compose.Registry

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Engine is the high-level façade aggregating stores, dispatcher, cache and
// the turn pipeline.
type Engine struct {
	opts     Options
	cfg      *config.Config
	sessions *session.Manager
	pipe     *pipeline.Pipeline
	logger   logging.Logger

	mu     sync.Mutex
	states map[string]*core.GameState
}

// New creates an Engine with optional overrides. Any unset collaborator is
// initialized with a safe default.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Config:   config.Default(),
		Store:    store.NewInMemory(),
		Profiles: compose.NewRegistry(),
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	tiers, err := relationship.NewEngine(opts.Config.TierTable())
	if err != nil {
		return nil, err
	}

	profile := resolveProfile(opts.Profiles, opts.Catalog)

	var knownIDs []string
	aliases := map[string]string{}
	if opts.Catalog != nil {
		knownIDs = opts.Catalog.EntityIDs()
		aliases = opts.Catalog.Aliases()
	}

	pipe, err := pipeline.New(pipeline.Deps{
		Dispatcher: dispatch.New(opts.Models, func(o *dispatch.Options) {
			o.MaxRetries = opts.Config.Retry.MaxRetries
			o.InitialBackoff = opts.Config.Retry.InitialBackoff.Std()
			o.AttemptTimeout = opts.Config.Retry.AttemptTimeout.Std()
			o.Logger = opts.Logger
		}),
		Cache: contextcache.New(opts.Store, func(o *contextcache.Options) {
			if opts.Config.Cache.SchemaVersion != "" {
				o.SchemaVersion = opts.Config.Cache.SchemaVersion
			}
			o.MinPayloadSize = opts.Config.Cache.MinPayloadSize
			o.Logger = opts.Logger
		}),
		Composer: compose.New(profile, func(o *compose.Options) {
			o.HistoryWindow = opts.Config.HistoryWindow
		}),
		Memories: memory.New(func(o *memory.Options) {
			o.MaxPerTurn = opts.Config.Memory.MaxPerTurn
			o.MaxRetained = opts.Config.Memory.MaxRetained
			o.Logger = opts.Logger
		}),
		Tiers: tiers,
		Selector: spawn.New(func(o *spawn.Options) {
			o.Weights = opts.Config.SpawnWeights()
			o.TopK = opts.Config.Spawn.TopK
		}),
		Resolver: resolver.New(knownIDs, func(o *resolver.Options) {
			o.Aliases = aliases
			o.Logger = opts.Logger
		}),
		Config:  opts.Config,
		Catalog: opts.Catalog,
	}, func(o *pipeline.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		opts: opts,
		cfg:  opts.Config,
		sessions: session.New(opts.Store, func(o *session.Options) {
			o.Logger = opts.Logger
		}),
		pipe:   pipe,
		logger: logging.OrNoOp(opts.Logger),
		states: make(map[string]*core.GameState),
	}, nil
}

// resolveProfile picks the registered profile for the catalog's content, or
// builds a generic one.
func resolveProfile(registry *compose.Registry, catalog *content.Catalog) compose.ContentProfile {
	contentID := "default"
	var world string
	var openers []string
	if catalog != nil {
		contentID = catalog.ContentID
		world = catalog.World
		openers = catalog.Openers
	}
	if registry != nil {
		if p, err := registry.Resolve(contentID); err == nil {
			return p
		}
	}
	return &compose.BasicProfile{ID: contentID, World: world, Opening: openers}
}

// OpenSession restores a session's state from its snapshot, or starts a
// fresh one seeded from the catalog. Idempotent: reopening an already open
// session returns the live state.
func (e *Engine) OpenSession(sessionID string) (*core.GameState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("loom: empty session id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.states[sessionID]; ok {
		return st, nil
	}

	contentID := "default"
	if e.opts.Catalog != nil {
		contentID = e.opts.Catalog.ContentID
	}
	st, restored := e.sessions.Load(sessionID, contentID)
	if !restored && e.opts.Catalog != nil {
		e.opts.Catalog.Seed(st)
	}
	e.states[sessionID] = st
	e.logger.Info("session opened", "session_id", sessionID, "restored", restored, "turn", st.Turn)
	return st, nil
}

// Turn runs one narrative turn for a session, persists the updated state
// and returns the structured result. Sessions are opened on first use.
func (e *Engine) Turn(ctx context.Context, sessionID, input string) (*core.TurnResult, error) {
	st, err := e.OpenSession(sessionID)
	if err != nil {
		return nil, err
	}

	res, err := e.pipe.Run(ctx, st, input)
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Save(st); err != nil {
		// The turn already applied; a failed snapshot only costs
		// durability, not correctness.
		e.logger.Warn("snapshot save failed", "session_id", sessionID, "error", err)
	}
	e.logger.Info("turn complete", "session_id", sessionID, "turn", st.Turn,
		"model", res.ModelUsed, "tokens", res.Usage.TotalTokens)
	return res, nil
}

// State returns the live state for an open session, or nil.
func (e *Engine) State(sessionID string) *core.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[sessionID]
}

// CloseSession snapshots and releases a session.
func (e *Engine) CloseSession(sessionID string) error {
	e.mu.Lock()
	st, ok := e.states[sessionID]
	delete(e.states, sessionID)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return e.sessions.Save(st)
}
