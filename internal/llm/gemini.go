package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yashmulik1278/email-assistant-LLM/internal/metrics"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no text")

// GeminiOptions configures a Gemini client. BaseURL and HTTPClient are
// only set to point the client at a non-default endpoint.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini implements Model on the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini returns a Gemini model client. Callers bound each request
// through ctx.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model}, nil
}

// Extract implements Model.
func (g *Gemini) Extract(ctx context.Context, text string) (string, error) {
	return g.generate(ctx, "extract", ExtractionPrompt(text), "application/json")
}

// Draft implements Model.
func (g *Gemini) Draft(ctx context.Context, sentiment types.Sentiment, priority types.Priority, knowledgeBase, text string) (string, error) {
	return g.generate(ctx, "draft", DraftPrompt(sentiment, priority, knowledgeBase, text), "")
}

func (g *Gemini) generate(ctx context.Context, op, prompt, mimeType string) (string, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	var config *genai.GenerateContentConfig
	if mimeType != "" {
		config = &genai.GenerateContentConfig{ResponseMIMEType: mimeType}
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		metrics.RecordModelCall(op, "error", time.Since(start))
		return "", fmt.Errorf("%s: generate content: %w", op, err)
	}

	text := responseText(resp)
	if text == "" {
		metrics.RecordModelCall(op, "empty", time.Since(start))
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%s: prompt blocked: %s", op, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	metrics.RecordModelCall(op, "success", time.Since(start))
	return text, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
