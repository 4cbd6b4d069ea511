package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/loomkit/loom/compose"
	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/content"
	"github.com/loomkit/loom/contextcache"
	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/dispatch"
	"github.com/loomkit/loom/logging"
	"github.com/loomkit/loom/memory"
	"github.com/loomkit/loom/model"
	"github.com/loomkit/loom/relationship"
	"github.com/loomkit/loom/resolver"
	"github.com/loomkit/loom/spawn"
)

// Deps are the collaborators a Pipeline orchestrates. All are required
// except Catalog.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Cache      *contextcache.Cache
	Composer   *compose.Composer
	Memories   *memory.Store
	Tiers      *relationship.Engine
	Selector   *spawn.Selector
	Resolver   *resolver.Resolver
	Config     *config.Config

	// Catalog supplies location metadata for spawn scoring. Optional;
	// without it every scene is treated as a non-hub location.
	Catalog *content.Catalog
}

// Options configures a Pipeline.
type Options struct {
	Logger logging.Logger
}

// Pipeline runs turns. Safe for sequential use per session; distinct
// sessions may run concurrently on the same Pipeline.
type Pipeline struct {
	deps   Deps
	logger logging.Logger
}

// New validates deps and creates a Pipeline.
func New(deps Deps, optFns ...func(o *Options)) (*Pipeline, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	switch {
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("pipeline: nil dispatcher")
	case deps.Cache == nil:
		return nil, fmt.Errorf("pipeline: nil cache")
	case deps.Composer == nil:
		return nil, fmt.Errorf("pipeline: nil composer")
	case deps.Memories == nil:
		return nil, fmt.Errorf("pipeline: nil memory store")
	case deps.Tiers == nil:
		return nil, fmt.Errorf("pipeline: nil relationship engine")
	case deps.Selector == nil:
		return nil, fmt.Errorf("pipeline: nil spawn selector")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("pipeline: nil resolver")
	case deps.Config == nil:
		return nil, fmt.Errorf("pipeline: nil config")
	}
	return &Pipeline{deps: deps, logger: logging.OrNoOp(opts.Logger)}, nil
}

// auxResults collects what the parallel stages produced. Guarded by mu.
type auxResults struct {
	mu        sync.Mutex
	facts     []memoryFact
	postLogic *postLogicResult
	choices   []string
	summary   string
	usage     core.Usage
}

func (r *auxResults) addUsage(u core.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage.Add(u)
}

// Run executes one turn against state. The story call is the only fatal
// stage; every auxiliary failure degrades to its zero value and the turn
// still completes. On error the state is untouched.
func (p *Pipeline) Run(ctx context.Context, state *core.GameState, input string) (*core.TurnResult, error) {
	snap := state.Clone()
	nextTurn := snap.Turn + 1
	log := p.logger

	// Static context, cached per content, persona and model. A cache
	// failure is not fatal: compose directly and carry on uncached.
	primaryModels := p.deps.Config.ModelsFor(config.StageStory)
	cacheKey := contextcache.Key{
		ContentID: snap.ContentID,
		Variant:   snap.Persona,
		ModelID:   primaryModels[0],
	}
	static, hit, err := p.deps.Cache.GetOrCreate(ctx, cacheKey, func(ctx context.Context) (string, error) {
		return p.deps.Composer.Static(snap)
	})
	if err != nil {
		log.Warn("context cache unavailable, composing directly", "error", err)
		static, err = p.deps.Composer.Static(snap)
		if err != nil {
			return nil, fmt.Errorf("pipeline: compose static context: %w", err)
		}
	}
	log.Debug("static context ready", "cache_hit", hit, "bytes", len(static))

	payload := p.deps.Composer.Dynamic(snap, static, input)
	effectiveInput := payload.UserText

	system := payload.System
	if guidance := p.tierGuidance(snap); guidance != "" {
		system += "\n" + guidance
	}

	storyResp, err := p.deps.Dispatcher.Call(ctx, config.StageStory, primaryModels, model.Request{
		System:   system,
		History:  payload.History,
		UserText: effectiveInput,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: story generation: %w", err)
	}
	narrative := storyResp.Text

	results := p.runAuxStages(ctx, snap, nextTurn, effectiveInput, narrative)

	delta := p.buildDelta(snap, nextTurn, effectiveInput, narrative, results)
	state.ApplyTurn(delta)

	p.recordMemories(state, results.facts, state.Turn)
	if removed := p.deps.Memories.Sweep(state, state.Turn); removed > 0 {
		log.Debug("expired memories removed", "count", removed)
	}

	usage := storyResp.Usage
	usage.Add(results.usage)

	return &core.TurnResult{
		TurnID:     core.NewID(),
		Narrative:  narrative,
		ActiveCast: append([]string(nil), state.ActiveCast...),
		Choices:    results.choices,
		Delta:      delta,
		Usage:      usage,
		ModelUsed:  storyResp.ModelUsed,
	}, nil
}

// runAuxStages fans the auxiliary stages out and waits for all of them.
// Each failure is logged and leaves that stage's zero value in place.
func (p *Pipeline) runAuxStages(ctx context.Context, snap *core.GameState, nextTurn int, input, narrative string) *auxResults {
	results := &auxResults{}
	log := p.logger

	stages := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{config.StageMemory, func(ctx context.Context) error {
			facts, usage, err := p.runMemoryStage(ctx, input, narrative)
			results.addUsage(usage)
			if err != nil {
				return err
			}
			results.mu.Lock()
			results.facts = facts
			results.mu.Unlock()
			return nil
		}},
		{config.StagePostLogic, func(ctx context.Context) error {
			pl, usage, err := p.runPostLogicStage(ctx, input, narrative)
			results.addUsage(usage)
			if err != nil {
				return err
			}
			results.mu.Lock()
			results.postLogic = pl
			results.mu.Unlock()
			return nil
		}},
		{config.StageChoices, func(ctx context.Context) error {
			choices, usage, err := p.runChoicesStage(ctx, input, narrative)
			results.addUsage(usage)
			if err != nil {
				return err
			}
			results.mu.Lock()
			results.choices = choices
			results.mu.Unlock()
			return nil
		}},
	}

	if nextTurn%p.deps.Config.SummaryInterval == 0 {
		stages = append(stages, struct {
			name string
			run  func(ctx context.Context) error
		}{config.StageSummary, func(ctx context.Context) error {
			summary, usage, err := p.runSummaryStage(ctx, snap, narrative)
			results.addUsage(usage)
			if err != nil {
				return err
			}
			results.mu.Lock()
			results.summary = summary
			results.mu.Unlock()
			return nil
		}})
	}

	var wg sync.WaitGroup
	for _, stage := range stages {
		wg.Add(1)
		go func(name string, run func(ctx context.Context) error) {
			defer wg.Done()
			start := time.Now()
			if err := run(ctx); err != nil {
				log.Warn("stage degraded to default", "stage", name, "duration", time.Since(start), "error", err)
				return
			}
			log.Debug("stage complete", "stage", name, "duration", time.Since(start))
		}(stage.name, stage.run)
	}
	wg.Wait()
	return results
}

// buildDelta folds aux-stage output into a single merge payload, resolving
// every entity reference to its canonical ID and clamping relationship
// scores.
func (p *Pipeline) buildDelta(snap *core.GameState, nextTurn int, input, narrative string, results *auxResults) *core.StateDelta {
	delta := &core.StateDelta{
		UserInput: input,
		Narrative: narrative,
		Summary:   results.summary,
	}

	pl := results.postLogic
	if pl == nil {
		pl = &postLogicResult{}
	}

	delta.Location = pl.Location
	delta.Mood = pl.Mood

	if len(pl.RelationshipDeltas) > 0 {
		delta.RelationshipScores = make(map[string]int, len(pl.RelationshipDeltas))
		for raw, d := range pl.RelationshipDeltas {
			id := p.deps.Resolver.Normalize(raw)
			if id == "" {
				continue
			}
			delta.RelationshipScores[id] = relationship.ApplyDelta(snap.Relationships[id], d)
		}
	}

	if pl.ActiveCast != nil {
		delta.ActiveCast = p.resolveAll(pl.ActiveCast)
	}
	for _, raw := range pl.Deaths {
		if id := p.deps.Resolver.Normalize(raw); id != "" {
			delta.Deaths = append(delta.Deaths, id)
		}
	}
	for _, ev := range pl.Events {
		scope := core.EventScope(ev.Scope)
		if !core.ValidScope(scope) {
			scope = core.ScopeLocal
		}
		delta.Events = append(delta.Events, core.WorldEvent{
			Text:  ev.Text,
			Turn:  nextTurn,
			Scope: scope,
		})
	}
	if len(pl.ProfileUpdates) > 0 {
		delta.ProfileUpdates = make(map[string]map[string]string, len(pl.ProfileUpdates))
		for raw, facts := range pl.ProfileUpdates {
			if id := p.deps.Resolver.Normalize(raw); id != "" {
				delta.ProfileUpdates[id] = facts
			}
		}
	}

	// Spawn ranking informs the cast when post-logic left the stage empty.
	scene := spawn.Scene{
		Location:   coalesce(pl.Location, snap.Location),
		ActiveCast: coalesceSlice(delta.ActiveCast, snap.ActiveCast),
		Turn:       nextTurn,
	}
	if p.deps.Catalog != nil {
		if loc := p.deps.Catalog.Location(scene.Location); loc != nil {
			scene.Hub = loc.Hub
		}
	}
	ranked := p.deps.Selector.Rank(snap.Entities, scene)
	if len(scene.ActiveCast) == 0 && len(ranked) > 0 {
		delta.ActiveCast = []string{ranked[0].EntityID}
	}

	return delta
}

// tierGuidance renders relationship-tier behavior instructions for every
// entity in the active cast. Internal prompt material, never shown to the
// player.
func (p *Pipeline) tierGuidance(snap *core.GameState) string {
	if len(snap.ActiveCast) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Relationship Guidance\n")
	for _, id := range snap.ActiveCast {
		b.WriteString(p.deps.Tiers.InstructionsFor(id, snap.Relationships[id]))
		b.WriteByte('\n')
	}
	return b.String()
}

// recordMemories appends resolved facts onto the session's state.
func (p *Pipeline) recordMemories(state *core.GameState, facts []memoryFact, turn int) {
	for _, f := range facts {
		id := p.deps.Resolver.Normalize(f.EntityID)
		if id == "" || f.Text == "" {
			continue
		}
		p.deps.Memories.Append(state, id, f.Text, core.MemoryTag(f.Tag), f.Importance, turn, f.Subject, f.Keywords)
	}
}

func (p *Pipeline) resolveAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		id := p.deps.Resolver.Normalize(r)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func coalesceSlice(a, b []string) []string {
	if a != nil {
		return a
	}
	return b
}
