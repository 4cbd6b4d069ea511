package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/internal/testutil"
)

func TestApplyTurnIncrementsOnce(t *testing.T) {
	st := testutil.NewState("s1", "demo").Build()
	st.ApplyTurn(&core.StateDelta{UserInput: "hi", Narrative: "hello"})
	assert.Equal(t, 1, st.Turn)

	st.ApplyTurn(nil)
	assert.Equal(t, 2, st.Turn, "nil delta still advances the turn")
}

func TestApplyTurnMergesFields(t *testing.T) {
	st := testutil.NewState("s1", "demo").
		At("loc_gate").
		WithEntity(testutil.Entity("npc_a", "A")).
		WithEntity(testutil.Entity("npc_b", "B")).
		WithRelationship("npc_a", 10).
		Build()

	st.ApplyTurn(&core.StateDelta{
		UserInput:          "hello",
		Narrative:          "the gate opens",
		RelationshipScores: map[string]int{"npc_a": 15},
		Location:           "loc_square",
		Mood:               "calm",
		ActiveCast:         []string{"npc_a"},
		Events:             []core.WorldEvent{{Text: "gate opened", Turn: 1, Scope: core.ScopeLocal}},
		ProfileUpdates:     map[string]map[string]string{"npc_b": {"home": "docks"}},
		Deaths:             []string{"npc_b"},
		Summary:            "a quiet morning",
	})

	assert.Equal(t, 15, st.Relationships["npc_a"])
	assert.Equal(t, "loc_square", st.Location)
	assert.Equal(t, "calm", st.Mood)
	assert.Equal(t, []string{"npc_a"}, st.ActiveCast)
	assert.Equal(t, 1, st.Entity("npc_a").LastActiveTurn)
	assert.Len(t, st.Events, 1)
	assert.Equal(t, "docks", st.Entity("npc_b").Extensions["home"])
	assert.True(t, st.Entity("npc_b").Dead)
	assert.Equal(t, "a quiet morning", st.ScenarioSummary)
	require.Len(t, st.History, 2)
	assert.Equal(t, "user", st.History[0].Role)
	assert.Equal(t, "model", st.History[1].Role)
}

func TestApplyTurnZeroValuesLeaveStateAlone(t *testing.T) {
	st := testutil.NewState("s1", "demo").At("loc_gate").WithCast("npc_a").Build()
	st.Mood = "tense"
	st.ScenarioSummary = "so far"

	st.ApplyTurn(&core.StateDelta{Narrative: "time passes"})

	assert.Equal(t, "loc_gate", st.Location)
	assert.Equal(t, "tense", st.Mood)
	assert.Equal(t, []string{"npc_a"}, st.ActiveCast, "nil cast means unchanged")
	assert.Equal(t, "so far", st.ScenarioSummary)
}

func TestApplyTurnEmptyCastClearsStage(t *testing.T) {
	st := testutil.NewState("s1", "demo").WithCast("npc_a").Build()
	st.ApplyTurn(&core.StateDelta{ActiveCast: []string{}})
	assert.Empty(t, st.ActiveCast)
}

func TestCloneIsDeep(t *testing.T) {
	st := testutil.NewState("s1", "demo").
		WithEntity(testutil.Entity("npc_a", "A", func(e *core.EntityRecord) {
			e.Traits = []string{"gruff"}
			e.Relations = map[string]string{"npc_b": "rival"}
		})).
		WithRelationship("npc_a", 5).
		Build()
	st.History = []core.DialogueTurn{{Role: "user", Text: "hi"}}

	cp := st.Clone()
	cp.Relationships["npc_a"] = 99
	cp.Entity("npc_a").Traits[0] = "mellow"
	cp.Entity("npc_a").Relations["npc_b"] = "friend"
	cp.History[0].Text = "changed"

	assert.Equal(t, 5, st.Relationships["npc_a"])
	assert.Equal(t, "gruff", st.Entity("npc_a").Traits[0])
	assert.Equal(t, "rival", st.Entity("npc_a").Relations["npc_b"])
	assert.Equal(t, "hi", st.History[0].Text)
}

func TestEnsureEntity(t *testing.T) {
	st := testutil.NewState("s1", "demo").Build()

	rec := st.EnsureEntity("npc_new", "Newcomer")
	assert.Equal(t, "Newcomer", rec.Name)

	same := st.EnsureEntity("npc_new", "Other Name")
	assert.Same(t, rec, same, "existing record wins")

	unnamed := st.EnsureEntity("npc_anon", "")
	assert.Equal(t, "npc_anon", unnamed.Name)
}
