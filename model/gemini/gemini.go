// Package gemini provides a model wrapper for the Google Gemini API. It is
// the primary narrative provider and the only one supporting provider-side
// cached content binding.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/loomkit/loom/core"
	"github.com/loomkit/loom/model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Gemini GenerateContent API behind the generic model.Model
// interface.
type Model struct {
	client *genai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a new Gemini model using the official client.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		MaxTokens:   8192,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		MaxTokens:   8192,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(m.opts.Temperature)),
		MaxOutputTokens: int32(m.opts.MaxTokens),
		SafetySettings:  buildSafetySettings(req.Safety),
	}
	if req.JSONOutput {
		cfg.ResponseMIMEType = "application/json"
	}

	// A cached-content reference is honored only when it was prepared for
	// this exact model. Otherwise the system text is injected directly.
	if req.CacheRef != "" && req.CacheModel == m.opts.Model {
		cfg.CachedContent = req.CacheRef
	} else if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, t := range req.History {
		var role genai.Role = genai.RoleUser
		if t.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.UserText, genai.RoleUser))

	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
	if err != nil {
		return nil, model.Classify(m.opts.Model, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, model.NewError(model.KindParse, m.opts.Model, fmt.Errorf("empty completion"))
	}

	out := &model.Response{Text: text, ModelUsed: m.opts.Model}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = core.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			CachedTokens:     int(u.CachedContentTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}

// buildSafetySettings converts opaque category->threshold pairs into the
// vendor representation. Unknown categories are skipped rather than failing
// the call.
func buildSafetySettings(safety map[string]string) []*genai.SafetySetting {
	if len(safety) == 0 {
		return nil
	}
	out := make([]*genai.SafetySetting, 0, len(safety))
	for category, threshold := range safety {
		out = append(out, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(threshold),
		})
	}
	return out
}
