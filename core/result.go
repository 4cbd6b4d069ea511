package core

// StateDelta is the single-writer merge payload produced by a turn. Fields
// left at their zero value mean "unchanged" (a nil ActiveCast retains the
// prior cast; an empty one clears it).
type StateDelta struct {
	UserInput string
	Narrative string

	// RelationshipScores holds the post-clamp absolute scores for entities
	// whose relationship changed this turn.
	RelationshipScores map[string]int

	Location         string
	Mood             string
	ActiveCast       []string
	Events           []WorldEvent
	ProfileUpdates   map[string]map[string]string
	RelationshipInfo map[string]RelationshipInfo
	Deaths           []string
	Summary          string
}

// Usage captures aggregated token accounting for one turn.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CachedTokens     int     `json:"cached_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(o Usage) {
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.CachedTokens += o.CachedTokens
	u.TotalTokens += o.TotalTokens
	u.EstimatedCost += o.EstimatedCost
}

// TurnResult is the structured outcome of one pipeline run, handed to the
// render layer. The core never formats it for display.
type TurnResult struct {
	TurnID     string      `json:"turn_id"`
	Narrative  string      `json:"narrative"`
	ActiveCast []string    `json:"active_cast"`
	Choices    []string    `json:"choices,omitempty"`
	Delta      *StateDelta `json:"-"`
	Usage      Usage       `json:"usage"`
	ModelUsed  string      `json:"model_used"`
}
