package spawn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/core"
)

func entity(id, locale string, notability int, relations map[string]string) *core.EntityRecord {
	return &core.EntityRecord{
		ID:         id,
		Name:       id,
		Locale:     locale,
		Notability: notability,
		Relations:  relations,
	}
}

func seeded(seed int64) func(o *Options) {
	return func(o *Options) { o.Rand = rand.New(rand.NewSource(seed)) }
}

func TestRankExcludesActiveAndDead(t *testing.T) {
	dead := entity("npc_dead", "tavern", 5, nil)
	dead.Dead = true
	entities := map[string]*core.EntityRecord{
		"npc_active": entity("npc_active", "tavern", 5, nil),
		"npc_dead":   dead,
		"npc_free":   entity("npc_free", "tavern", 5, nil),
	}

	s := New(seeded(1))
	got := s.Rank(entities, Scene{Location: "tavern", ActiveCast: []string{"npc_active"}})
	require.Len(t, got, 1)
	assert.Equal(t, "npc_free", got[0].EntityID)
}

func TestRankPrefersLocaleAndRelations(t *testing.T) {
	entities := map[string]*core.EntityRecord{
		"npc_friend":   entity("npc_friend", "tavern", 1, map[string]string{"npc_active": "friend"}),
		"npc_local":    entity("npc_local", "tavern", 1, nil),
		"npc_stranger": entity("npc_stranger", "castle", 1, nil),
	}

	s := New(seeded(1), func(o *Options) { o.Weights.Tiebreaker = 0 })
	got := s.Rank(entities, Scene{Location: "tavern", ActiveCast: []string{"npc_active"}})
	require.Len(t, got, 3)
	assert.Equal(t, "npc_friend", got[0].EntityID, "relation plus locale beats locale alone")
	assert.Equal(t, "npc_local", got[1].EntityID)
	assert.Equal(t, "npc_stranger", got[2].EntityID, "locale conflict is penalized")
	assert.Negative(t, got[2].Score)
}

func TestRankHubWaivesLocalePenalty(t *testing.T) {
	entities := map[string]*core.EntityRecord{
		"npc_far": entity("npc_far", "castle", 1, nil),
	}

	s := New(seeded(1), func(o *Options) { o.Weights.Tiebreaker = 0 })

	normal := s.Rank(entities, Scene{Location: "tavern"})
	hub := s.Rank(entities, Scene{Location: "tavern", Hub: true})

	require.Len(t, normal, 1)
	require.Len(t, hub, 1)
	assert.Less(t, normal[0].Score, hub[0].Score)
	assert.Zero(t, hub[0].Score)
}

func TestRankTopK(t *testing.T) {
	entities := make(map[string]*core.EntityRecord)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		entities[id] = entity(id, "tavern", 1, nil)
	}

	s := New(seeded(1))
	got := s.Rank(entities, Scene{Location: "tavern"})
	assert.Len(t, got, DefaultTopK)

	s2 := New(seeded(1), func(o *Options) { o.TopK = 2 })
	assert.Len(t, s2.Rank(entities, Scene{Location: "tavern"}), 2)
}

func TestRankDeterministicUnderSeed(t *testing.T) {
	entities := map[string]*core.EntityRecord{
		"npc_a": entity("npc_a", "tavern", 2, nil),
		"npc_b": entity("npc_b", "tavern", 2, nil),
		"npc_c": entity("npc_c", "tavern", 2, nil),
	}
	scene := Scene{Location: "tavern"}

	first := New(seeded(42)).Rank(entities, scene)
	second := New(seeded(42)).Rank(entities, scene)
	assert.Equal(t, first, second)
}

func TestRankNotabilityBonus(t *testing.T) {
	entities := map[string]*core.EntityRecord{
		"npc_famous":  entity("npc_famous", "tavern", 5, nil),
		"npc_obscure": entity("npc_obscure", "tavern", 1, nil),
	}

	s := New(func(o *Options) { o.Weights.Tiebreaker = 0 })
	got := s.Rank(entities, Scene{Location: "tavern"})
	require.Len(t, got, 2)
	assert.Equal(t, "npc_famous", got[0].EntityID)
	assert.Greater(t, got[0].Score, got[1].Score)
}
