package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/model"
)

func TestExtractJSONBare(t *testing.T) {
	doc, err := ExtractJSON(`{"narrative": "hello"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"narrative": "hello"}`, doc)
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "Here is your result:\n```json\n{\"choices\": [\"a\", \"b\"]}\n```\nEnjoy!"
	doc, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"choices": ["a", "b"]}`, doc)
}

func TestExtractJSONFencedNoLanguageTag(t *testing.T) {
	raw := "```\n{\"ok\": true}\n```"
	doc, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, doc)
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	raw := `Sure! The plan: {"location": "tavern", "mood": "tense"} Hope that helps.`
	doc, err := ExtractJSON(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"location": "tavern", "mood": "tense"}`, doc)
}

func TestExtractJSONArray(t *testing.T) {
	doc, err := ExtractJSON(`The list is ["x","y"] as requested`)
	require.NoError(t, err)
	assert.JSONEq(t, `["x","y"]`, doc)
}

func TestExtractJSONFailure(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here", "{broken"} {
		_, err := ExtractJSON(raw)
		require.Error(t, err, "input %q", raw)
		assert.True(t, model.IsParse(err))
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Narrative string   `json:"narrative"`
		Choices   []string `json:"choices"`
	}
	raw := "```json\n{\"narrative\": \"the door creaks\", \"choices\": [\"enter\", \"flee\"]}\n```"
	require.NoError(t, Decode(raw, &v))
	assert.Equal(t, "the door creaks", v.Narrative)
	assert.Equal(t, []string{"enter", "flee"}, v.Choices)
}

func TestDecodeTypeMismatch(t *testing.T) {
	var v struct {
		Count int `json:"count"`
	}
	err := Decode(`{"count": "three"}`, &v)
	require.Error(t, err)
	assert.True(t, model.IsParse(err))
}

func TestField(t *testing.T) {
	res, err := Field(`{"delta": {"mood": "grim"}}`, "delta.mood")
	require.NoError(t, err)
	assert.Equal(t, "grim", res.String())

	_, err = Field(`{"delta": {}}`, "delta.mood")
	require.Error(t, err)
}

func TestStringList(t *testing.T) {
	got, err := StringList(`{"choices": ["a", "", 3, "b"]}`, "choices")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "3", "b"}, got)

	_, err = StringList(`{"choices": "not an array"}`, "choices")
	require.Error(t, err)
}
