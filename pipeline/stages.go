package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomkit/loom/config"
	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/model"
	"github.com/loomkit/loom/parse"
)

// memoryFact is one extracted memory before entity-ID resolution.
type memoryFact struct {
	EntityID   string   `json:"entity_id"`
	Text       string   `json:"text"`
	Tag        string   `json:"tag"`
	Importance int      `json:"importance"`
	Subject    string   `json:"subject,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}

// postLogicResult is the post-logic stage payload. Zero values mean
// unchanged, mirroring core.StateDelta.
type postLogicResult struct {
	RelationshipDeltas map[string]int               `json:"relationship_deltas,omitempty"`
	Location           string                       `json:"location,omitempty"`
	Mood               string                       `json:"mood,omitempty"`
	ActiveCast         []string                     `json:"active_cast,omitempty"`
	Events             []stageEvent                 `json:"events,omitempty"`
	Deaths             []string                     `json:"deaths,omitempty"`
	ProfileUpdates     map[string]map[string]string `json:"profile_updates,omitempty"`
}

type stageEvent struct {
	Text  string `json:"text"`
	Scope string `json:"scope,omitempty"`
}

// stageInput renders the shared user-message body auxiliary stages analyze.
func stageInput(userInput, narrative string) string {
	var b strings.Builder
	if userInput != "" {
		fmt.Fprintf(&b, "Player input:\n%s\n\n", userInput)
	}
	fmt.Fprintf(&b, "Story passage:\n%s", narrative)
	return b.String()
}

func (p *Pipeline) runMemoryStage(ctx context.Context, userInput, narrative string) ([]memoryFact, core.Usage, error) {
	req := model.Request{
		System:     memoryPrompt,
		UserText:   stageInput(userInput, narrative),
		JSONOutput: true,
	}
	resp, err := p.deps.Dispatcher.Call(ctx, config.StageMemory, p.deps.Config.ModelsFor(config.StageMemory), req)
	if err != nil {
		return nil, core.Usage{}, err
	}
	var out struct {
		Memories []memoryFact `json:"memories"`
	}
	if err := parse.Decode(resp.Text, &out); err != nil {
		return nil, resp.Usage, err
	}
	return out.Memories, resp.Usage, nil
}

func (p *Pipeline) runPostLogicStage(ctx context.Context, userInput, narrative string) (*postLogicResult, core.Usage, error) {
	req := model.Request{
		System:     postLogicPrompt,
		UserText:   stageInput(userInput, narrative),
		JSONOutput: true,
	}
	resp, err := p.deps.Dispatcher.Call(ctx, config.StagePostLogic, p.deps.Config.ModelsFor(config.StagePostLogic), req)
	if err != nil {
		return nil, core.Usage{}, err
	}
	var out postLogicResult
	if err := parse.Decode(resp.Text, &out); err != nil {
		return nil, resp.Usage, err
	}
	return &out, resp.Usage, nil
}

func (p *Pipeline) runChoicesStage(ctx context.Context, userInput, narrative string) ([]string, core.Usage, error) {
	req := model.Request{
		System:     choicesPrompt,
		UserText:   stageInput(userInput, narrative),
		JSONOutput: true,
	}
	resp, err := p.deps.Dispatcher.Call(ctx, config.StageChoices, p.deps.Config.ModelsFor(config.StageChoices), req)
	if err != nil {
		return nil, core.Usage{}, err
	}
	choices, err := parse.StringList(resp.Text, "choices")
	if err != nil {
		return nil, resp.Usage, err
	}
	return choices, resp.Usage, nil
}

func (p *Pipeline) runSummaryStage(ctx context.Context, snap *core.GameState, narrative string) (string, core.Usage, error) {
	var b strings.Builder
	if snap.ScenarioSummary != "" {
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", snap.ScenarioSummary)
	}
	b.WriteString("Recent dialogue:\n")
	history := snap.History
	if len(history) > 2*p.deps.Config.SummaryInterval {
		history = history[len(history)-2*p.deps.Config.SummaryInterval:]
	}
	for _, turn := range history {
		fmt.Fprintf(&b, "[%s] %s\n", turn.Role, turn.Text)
	}
	fmt.Fprintf(&b, "[model] %s\n", narrative)

	req := model.Request{
		System:   summaryPrompt,
		UserText: b.String(),
	}
	resp, err := p.deps.Dispatcher.Call(ctx, config.StageSummary, p.deps.Config.ModelsFor(config.StageSummary), req)
	if err != nil {
		return "", core.Usage{}, err
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", resp.Usage, model.NewError(model.KindParse, resp.ModelUsed, fmt.Errorf("empty summary"))
	}
	return summary, resp.Usage, nil
}
