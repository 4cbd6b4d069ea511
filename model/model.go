package model

import (
	"context"
	"fmt"

	"github.com/loomkit/loom/core"
)

// Turn is one prior exchange handed to the provider as conversation history.
type Turn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// Request captures the normalized generation input produced by the pipeline.
type Request struct {
	// System is the large static context. When CacheRef is set the provider
	// should prefer the referenced cached content and System may be empty.
	System   string `json:"system,omitempty"`
	History  []Turn `json:"history,omitempty"`
	UserText string `json:"user_text"`

	// CacheRef references a pre-built context payload bound to CacheModel.
	// The dispatcher strips both fields before calling any other model.
	CacheRef   string `json:"cache_ref,omitempty"`
	CacheModel string `json:"cache_model,omitempty"`

	// JSONOutput requests structured output where the provider supports it.
	JSONOutput bool `json:"json_output,omitempty"`

	// Safety thresholds are passed through opaquely; the engine never
	// interprets them.
	Safety map[string]string `json:"safety,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
}

// Response is the completed generation result.
type Response struct {
	Text      string     `json:"text"`
	Usage     core.Usage `json:"usage"`
	ModelUsed string     `json:"model_used"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "gemini", "anthropic", "openai", "mock"
}

// Model is the minimal interface required to drive generation. Generate
// blocks until the provider returns a full response or the context is
// cancelled; the engine consumes whole turns, not streams.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests. Responses are
// keyed by the request UserText; unknown inputs get a deterministic echo.
// Err, when set, is returned for every call (optionally only the first
// FailCount calls).
type MockModel struct {
	info      Info
	responses map[string]string
	calls     int
	requests  []Request

	Err       error
	FailCount int // 0 with Err set means always fail
}

var _ Model = (*MockModel)(nil)

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input.
func (m *MockModel) AddResponse(input, response string) { m.responses[input] = response }

// Calls returns how many times Generate was invoked.
func (m *MockModel) Calls() int { return m.calls }

// Requests returns every request Generate has seen, in order.
func (m *MockModel) Requests() []Request { return m.requests }

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	m.calls++
	m.requests = append(m.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, Classify(m.info.Name, err)
	}
	if m.Err != nil && (m.FailCount == 0 || m.calls <= m.FailCount) {
		return nil, m.Err
	}
	text := m.responses[req.UserText]
	if text == "" {
		text = fmt.Sprintf("mock response to: %s", req.UserText)
	}
	return &Response{
		Text:      text,
		Usage:     core.Usage{PromptTokens: len(req.UserText), CompletionTokens: len(text), TotalTokens: len(req.UserText) + len(text)},
		ModelUsed: m.info.Name,
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
