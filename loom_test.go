package loom

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/content"
	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/model"
	"github.com/loomkit/loom/store"
)

const engineTestCatalog = `{
  "content_id": "demo",
  "world": "A port city.",
  "openers": ["I step off the ship."],
  "entities": [
    {"id": "npc_mira", "name": "Mira", "locale": "loc_tavern"},
    {"id": "npc_joss", "name": "Joss", "locale": "loc_docks"}
  ],
  "locations": [{"id": "loc_tavern", "name": "The Brine Barrel", "hub": true}]
}`

func testEngine(t *testing.T, backing store.Store) *Engine {
	t.Helper()

	catalog, err := content.Load(strings.NewReader(engineTestCatalog))
	require.NoError(t, err)

	story := model.NewMockModel("story-m")
	aux := model.NewMockModel("aux-m")

	cfg := config.Default()
	cfg.Models = map[string][]string{
		config.StageStory:     {"story-m"},
		config.StageMemory:    {"aux-m"},
		config.StagePostLogic: {"aux-m"},
		config.StageChoices:   {"aux-m"},
		config.StageSummary:   {"aux-m"},
	}

	e, err := New(func(o *Options) {
		o.Config = cfg
		o.Store = backing
		o.Catalog = catalog
		o.Models = map[string]model.Model{"story-m": story, "aux-m": aux}
	})
	require.NoError(t, err)
	return e
}

func TestOpenSessionSeedsFromCatalog(t *testing.T) {
	e := testEngine(t, store.NewInMemory())

	st, err := e.OpenSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", st.ContentID)
	assert.Len(t, st.Entities, 2)
	require.NotNil(t, st.Entity("npc_mira"))

	again, err := e.OpenSession("sess-1")
	require.NoError(t, err)
	assert.Same(t, st, again, "reopening returns the live state")
}

func TestTurnAdvancesAndPersists(t *testing.T) {
	backing := store.NewInMemory()
	e := testEngine(t, backing)

	res, err := e.Turn(context.Background(), "sess-1", "I look around the docks.")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Narrative)
	assert.Equal(t, 1, e.State("sess-1").Turn)

	// A second engine over the same store restores the session.
	e2 := testEngine(t, backing)
	st, err := e2.OpenSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Turn)
}

func TestMemoriesPersistAcrossEngines(t *testing.T) {
	backing := store.NewInMemory()
	e := testEngine(t, backing)

	st, err := e.OpenSession("sess-1")
	require.NoError(t, err)
	st.SetEntityMemories("npc_mira", []*core.MemoryRecord{{
		ID: "m1", EntityID: "npc_mira", Text: "the player repaid a debt",
		Tag: core.TagBond, Importance: 2, CreatedTurn: 1,
	}})
	require.NoError(t, e.CloseSession("sess-1"))

	e2 := testEngine(t, backing)
	st2, err := e2.OpenSession("sess-1")
	require.NoError(t, err)
	got := st2.EntityMemories("npc_mira")
	require.Len(t, got, 1)
	assert.Equal(t, "the player repaid a debt", got[0].Text)
}

func TestCloseSessionReleasesState(t *testing.T) {
	e := testEngine(t, store.NewInMemory())
	_, err := e.OpenSession("sess-1")
	require.NoError(t, err)

	require.NoError(t, e.CloseSession("sess-1"))
	assert.Nil(t, e.State("sess-1"))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Models = nil
	_, err := New(func(o *Options) { o.Config = cfg })
	assert.Error(t, err)
}

func TestEmptySessionID(t *testing.T) {
	e := testEngine(t, store.NewInMemory())
	_, err := e.OpenSession("")
	assert.Error(t, err)
}
