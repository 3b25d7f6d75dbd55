// Package analyzer enriches pending records with model output and moves
// them to processed.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yashmulik1278/email-assistant-LLM/internal/analysis"
	"github.com/yashmulik1278/email-assistant-LLM/internal/claim"
	"github.com/yashmulik1278/email-assistant-LLM/internal/db"
	"github.com/yashmulik1278/email-assistant-LLM/internal/llm"
	"github.com/yashmulik1278/email-assistant-LLM/internal/metrics"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

// FallbackResponse is stored when the draft call fails or returns nothing.
const FallbackResponse = "Failed to generate a response."

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// Store is the slice of the record store the analyzer needs.
type Store interface {
	ListByStatus(ctx context.Context, status types.Status) ([]*types.EmailRecord, error)
	ApplyAnalysis(ctx context.Context, id int64, a types.Analysis) error
}

// Options tunes an Analyzer.
type Options struct {
	KnowledgeBase string
	Timeout       time.Duration // per model call
	Workers       int
}

// Analyzer runs passes over pending records.
type Analyzer struct {
	store   Store
	model   llm.Model
	claimer claim.Claimer
	opts    Options
	logger  *zap.Logger
}

// New returns an Analyzer. A nil claimer grants every claim.
func New(store Store, model llm.Model, claimer claim.Claimer, opts Options, logger *zap.Logger) *Analyzer {
	if claimer == nil {
		claimer = claim.Noop{}
	}
	if opts.KnowledgeBase == "" {
		opts.KnowledgeBase = llm.DefaultKnowledgeBase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{store: store, model: model, claimer: claimer, opts: opts, logger: logger}
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeFallback
	outcomeFailed
	outcomeSkipped
)

// Run processes every record that is pending when the pass starts, oldest
// first. Per-record model and validation failures leave the record pending
// and the pass continues; a store failure ends the pass and is returned.
func (a *Analyzer) Run(ctx context.Context) (types.AnalyzeResult, error) {
	res := types.AnalyzeResult{RunID: uuid.NewString()}
	log := a.logger.With(zap.String("run_id", res.RunID))

	pending, err := a.store.ListByStatus(ctx, types.StatusPending)
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}
	res.Pending = len(pending)
	metrics.SetPending(len(pending))
	if len(pending) == 0 {
		log.Debug("no pending emails")
		return res, nil
	}
	log.Info("analyzing pending emails", zap.Int("pending", len(pending)), zap.Int("workers", a.opts.Workers))

	var mu sync.Mutex
	tally := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeProcessed:
			res.Processed++
			metrics.RecordAnalyzed("processed")
		case outcomeFallback:
			res.Processed++
			res.Fallback++
			metrics.RecordAnalyzed("fallback")
		case outcomeFailed:
			res.Failed++
			metrics.RecordAnalyzed("failed")
		case outcomeSkipped:
			res.Skipped++
			metrics.RecordAnalyzed("skipped")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for _, rec := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o, err := a.process(gctx, log, rec)
			if err != nil {
				return err
			}
			tally(o)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	log.Info("analysis pass complete",
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed),
		zap.Int("fallback", res.Fallback),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// process handles one record. Only store failures are returned as errors.
func (a *Analyzer) process(ctx context.Context, log *zap.Logger, rec *types.EmailRecord) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcomeFailed, err
	}
	log = log.With(zap.Int64("record_id", rec.ID), zap.String("external_id", rec.ExternalID))

	if !a.claimer.Claim(ctx, rec.ID) {
		return outcomeSkipped, nil
	}
	defer a.claimer.Release(context.WithoutCancel(ctx), rec.ID)

	text := rec.Content()

	raw, err := a.extract(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeFailed, ctx.Err()
		}
		log.Warn("extraction call failed, leaving pending", zap.Error(err))
		return outcomeFailed, nil
	}
	ext, err := analysis.ParseExtraction(raw)
	if err != nil {
		log.Warn("extraction invalid, leaving pending", zap.Error(err))
		return outcomeFailed, nil
	}

	o := outcomeProcessed
	reply, err := a.draft(ctx, ext, text)
	if err != nil || strings.TrimSpace(reply) == "" {
		if ctx.Err() != nil {
			return outcomeFailed, ctx.Err()
		}
		log.Warn("draft failed, storing fallback response", zap.Error(err))
		reply = FallbackResponse
		o = outcomeFallback
	}

	err = a.store.ApplyAnalysis(ctx, rec.ID, types.Analysis{Extraction: ext, GeneratedResponse: reply})
	var te *db.TransitionError
	switch {
	case err == nil:
		log.Info("email processed",
			zap.String("sentiment", string(ext.Sentiment)),
			zap.String("priority", string(ext.Priority)),
		)
		return o, nil
	case errors.As(err, &te), errors.Is(err, db.ErrNotFound):
		// Another pass got there first.
		log.Info("record no longer pending, skipping", zap.Error(err))
		return outcomeSkipped, nil
	default:
		return outcomeFailed, fmt.Errorf("apply analysis to %d: %w", rec.ID, err)
	}
}

func (a *Analyzer) extract(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	return a.model.Extract(ctx, text)
}

func (a *Analyzer) draft(ctx context.Context, ext types.Extraction, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()
	return a.model.Draft(ctx, ext.Sentiment, ext.Priority, a.opts.KnowledgeBase, text)
}
