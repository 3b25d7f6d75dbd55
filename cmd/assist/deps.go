package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/yashmulik1278/email-assistant-LLM/internal/analyzer"
	"github.com/yashmulik1278/email-assistant-LLM/internal/auth"
	"github.com/yashmulik1278/email-assistant-LLM/internal/claim"
	"github.com/yashmulik1278/email-assistant-LLM/internal/gmail"
	"github.com/yashmulik1278/email-assistant-LLM/internal/ingest"
	"github.com/yashmulik1278/email-assistant-LLM/internal/llm"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

func newIngestor(ctx context.Context, limit int64) (*ingest.Ingestor, error) {
	svc, err := auth.LoadGmailService(ctx, cfg.Gmail.Credentials, cfg.Gmail.Token, logger)
	if err != nil {
		return nil, fmt.Errorf("gmail: %w", err)
	}
	if limit <= 0 {
		limit = cfg.Gmail.Limit
	}
	return ingest.New(gmail.New(svc), store, ingest.Options{
		Filter: types.SubjectFilter{Keywords: cfg.Gmail.Keywords},
		Limit:  limit,
	}, logger), nil
}

// newAnalyzer wires the model, knowledge base and claimer. The returned
// func releases the Redis connection, if any.
func newAnalyzer(ctx context.Context, workers int) (*analyzer.Analyzer, func(), error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("no model API key; set GEMINI_API_KEY or llm.api_key")
	}
	model, err := llm.NewGemini(ctx, llm.GeminiOptions{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	})
	if err != nil {
		return nil, nil, err
	}
	kb, err := llm.LoadKnowledgeBase(cfg.LLM.KnowledgeBaseFile)
	if err != nil {
		return nil, nil, err
	}

	var claimer claim.Claimer = claim.Noop{}
	cleanup := func() {}
	if cfg.Redis.URL != "" {
		rdb, err := claim.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		claimer = claim.NewRedis(rdb, uuid.NewString(), cfg.Redis.ClaimTTL, logger)
		cleanup = func() { rdb.Close() }
	}

	if workers <= 0 {
		workers = cfg.Analyzer.Workers
	}
	a := analyzer.New(store, model, claimer, analyzer.Options{
		KnowledgeBase: kb,
		Timeout:       cfg.LLM.Timeout,
		Workers:       workers,
	}, logger)
	return a, cleanup, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
