package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

// wireRequest is the subset of a generateContent request the tests inspect.
type wireRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig *struct {
		ResponseMimeType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

func (r wireRequest) prompt() string {
	if len(r.Contents) == 0 || len(r.Contents[0].Parts) == 0 {
		return ""
	}
	return r.Contents[0].Parts[0].Text
}

func newTestGemini(t *testing.T, h http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewGemini(context.Background(), GeminiOptions{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g
}

func reply(w http.ResponseWriter, parts ...string) {
	type part struct {
		Text string `json:"text"`
	}
	ps := []part{}
	for _, p := range parts {
		ps = append(ps, part{Text: p})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"role": "model", "parts": ps}},
		},
	})
}

func TestGemini_Extract(t *testing.T) {
	var path, apiKey string
	var req wireRequest
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&req)
		reply(w, `{"sentiment":"Neutral",`, `"priority":"Urgent"}`)
	})

	got, err := g.Extract(context.Background(), "Subject: Help\n\nI need help")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != `{"sentiment":"Neutral","priority":"Urgent"}` {
		t.Errorf("Extract = %q", got)
	}
	if !strings.HasSuffix(path, "/models/"+DefaultModel+":generateContent") {
		t.Errorf("path = %q", path)
	}
	if apiKey != "test-key" {
		t.Errorf("api key header = %q", apiKey)
	}
	if !strings.Contains(req.prompt(), "I need help") {
		t.Errorf("request prompt = %q", req.prompt())
	}
	if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("generation config = %+v", req.GenerationConfig)
	}
}

func TestGemini_Draft(t *testing.T) {
	var req wireRequest
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&req)
		reply(w, "  Thanks for reaching out.  ")
	})

	got, err := g.Draft(context.Background(), types.SentimentNegative, types.PriorityUrgent, "KB-LINE", "Subject: x\n\nbody")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if got != "Thanks for reaching out." {
		t.Errorf("Draft = %q", got)
	}
	for _, want := range []string{"Customer Sentiment: Negative", "Priority Level: Urgent", "KB-LINE", "Subject: x"} {
		if !strings.Contains(req.prompt(), want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGemini_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`))
		}},
		{"blocked prompt", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
		}},
		{"empty text", func(w http.ResponseWriter, r *http.Request) { reply(w, "  ") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGemini(t, tt.handler)
			if _, err := g.Extract(context.Background(), "x"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGemini_ContextDeadline(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := g.Draft(ctx, types.SentimentNeutral, types.PriorityNotUrgent, "", "x"); err == nil {
		t.Error("expected deadline error")
	}
}

func TestNewGemini_Options(t *testing.T) {
	if _, err := NewGemini(context.Background(), GeminiOptions{}); err == nil {
		t.Error("expected error without api key")
	}
	g, err := NewGemini(context.Background(), GeminiOptions{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if g.model != DefaultModel {
		t.Errorf("model = %q, want %q", g.model, DefaultModel)
	}
	g, _ = NewGemini(context.Background(), GeminiOptions{APIKey: "k", Model: "gemini-pro"})
	if g.model != "gemini-pro" {
		t.Errorf("model = %q", g.model)
	}
}

func TestLoadKnowledgeBase(t *testing.T) {
	kb, err := LoadKnowledgeBase("")
	if err != nil || kb != DefaultKnowledgeBase {
		t.Errorf("default = %q, %v", kb, err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "kb.md")
	os.WriteFile(path, []byte("\n- Refunds within 30 days.\n"), 0o600)
	kb, err = LoadKnowledgeBase(path)
	if err != nil || kb != "- Refunds within 30 days." {
		t.Errorf("file = %q, %v", kb, err)
	}

	empty := filepath.Join(dir, "empty.md")
	os.WriteFile(empty, []byte("  \n"), 0o600)
	if _, err := LoadKnowledgeBase(empty); err == nil {
		t.Error("expected error for empty knowledge base")
	}
	if _, err := LoadKnowledgeBase(filepath.Join(dir, "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractionPrompt(t *testing.T) {
	p := ExtractionPrompt("Subject: a\n\nb")
	for _, key := range []string{`"sentiment"`, `"priority"`, `"customer_request"`, `"contact_info"`, "Subject: a"} {
		if !strings.Contains(p, key) {
			t.Errorf("prompt missing %s", key)
		}
	}
}
