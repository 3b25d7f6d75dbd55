// Package ingest polls the mailbox and records new support messages as
// pending.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yashmulik1278/email-assistant-LLM/internal/metrics"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

// Errors wrapped by Cycle. Provider failures are retried on the next tick;
// store failures stop the loop.
var (
	ErrProvider = errors.New("mailbox provider failure")
	ErrStore    = errors.New("record store failure")
)

// Mailbox is the mail provider.
type Mailbox interface {
	ListActionableUnread(ctx context.Context, f types.SubjectFilter, limit int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*types.Message, error)
	MarkRead(ctx context.Context, id string) error
}

// Store is the slice of the record store the ingestor writes to.
type Store interface {
	ExternalIDExists(ctx context.Context, externalID string) (bool, error)
	InsertIfAbsent(ctx context.Context, r *types.EmailRecord) (bool, error)
}

// Options tunes an Ingestor.
type Options struct {
	Filter types.SubjectFilter
	Limit  int64
}

// Ingestor moves unread actionable messages into the store.
type Ingestor struct {
	mailbox Mailbox
	store   Store
	opts    Options
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastPoll time.Time
}

// New returns an Ingestor. A zero Limit means 10.
func New(mailbox Mailbox, store Store, opts Options, logger *zap.Logger) *Ingestor {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		mailbox: mailbox,
		store:   store,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// LastPoll returns the time of the last cycle that completed without error.
func (in *Ingestor) LastPoll() time.Time {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.lastPoll
}

// Cycle runs one poll. A stored message is marked read only after the store
// has accepted it (inserted or already present), so a failed write leaves it
// unread for the next cycle. Messages skipped for their subject or date are
// marked read too; otherwise they would be listed again on every poll.
func (in *Ingestor) Cycle(ctx context.Context) (types.IngestResult, error) {
	var res types.IngestResult

	ids, err := in.mailbox.ListActionableUnread(ctx, in.opts.Filter, in.opts.Limit)
	if err != nil {
		return res, in.fail(fmt.Errorf("%w: %w", ErrProvider, err))
	}
	res.Listed = len(ids)

	for _, id := range ids {
		exists, err := in.store.ExternalIDExists(ctx, id)
		if err != nil {
			return res, in.fail(fmt.Errorf("%w: %w", ErrStore, err))
		}
		if exists {
			res.Duplicates++
			metrics.RecordIngest("duplicate", 1)
			if err := in.mailbox.MarkRead(ctx, id); err != nil {
				return res, in.fail(fmt.Errorf("%w: %w", ErrProvider, err))
			}
			continue
		}

		msg, err := in.mailbox.GetMessage(ctx, id)
		if err != nil {
			return res, in.fail(fmt.Errorf("%w: %w", ErrProvider, err))
		}

		if !in.opts.Filter.Match(msg.Subject) {
			res.Filtered++
			in.logger.Debug("subject does not match filter",
				zap.String("external_id", id),
				zap.String("subject", msg.Subject),
			)
			if err := in.mailbox.MarkRead(ctx, id); err != nil {
				return res, in.fail(fmt.Errorf("%w: %w", ErrProvider, err))
			}
			continue
		}

		received, err := parseDate(msg.Date)
		if err != nil {
			res.BadDate++
			metrics.RecordIngest("bad_date", 1)
			in.logger.Warn("skipping message with unparseable date",
				zap.String("external_id", id),
				zap.String("date", msg.Date),
				zap.Error(err),
			)
			if err := in.mailbox.MarkRead(ctx, id); err != nil {
				return res, in.fail(fmt.Errorf("%w: %w", ErrProvider, err))
			}
			continue
		}

		inserted, err := in.store.InsertIfAbsent(ctx, &types.EmailRecord{
			ExternalID: id,
			Sender:     msg.From,
			Subject:    msg.Subject,
			Body:       msg.Body,
			ReceivedAt: received,
			Status:     types.StatusPending,
		})
		if err != nil {
			return res, in.fail(fmt.Errorf("%w: %w", ErrStore, err))
		}
		if inserted {
			res.Inserted++
			metrics.RecordIngest("inserted", 1)
			in.logger.Info("new email",
				zap.String("external_id", id),
				zap.String("sender", msg.From),
				zap.String("subject", msg.Subject),
			)
		} else {
			res.Duplicates++
			metrics.RecordIngest("duplicate", 1)
		}

		if err := in.mailbox.MarkRead(ctx, id); err != nil {
			return res, in.fail(fmt.Errorf("%w: %w", ErrProvider, err))
		}
	}

	res.PolledAt = in.now()
	in.mu.Lock()
	in.lastPoll = res.PolledAt
	in.mu.Unlock()
	metrics.RecordIngestCycle("success", res.PolledAt)
	return res, nil
}

func (in *Ingestor) fail(err error) error {
	status := "provider_error"
	if errors.Is(err, ErrStore) {
		status = "store_error"
	}
	metrics.RecordIngestCycle(status, in.now())
	return err
}

// Run polls immediately and then every interval until ctx is done or a
// store error occurs. Provider errors are logged and the loop keeps going.
func (in *Ingestor) Run(ctx context.Context, interval time.Duration) error {
	in.logger.Info("monitoring mailbox",
		zap.Duration("interval", interval),
		zap.Int64("limit", in.opts.Limit),
	)

	if err := in.tick(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("monitor stopping")
			return nil
		case <-ticker.C:
			if err := in.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (in *Ingestor) tick(ctx context.Context) error {
	res, err := in.Cycle(ctx)
	switch {
	case err == nil:
		in.logger.Info("poll complete",
			zap.Int("listed", res.Listed),
			zap.Int("inserted", res.Inserted),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("filtered", res.Filtered),
			zap.Int("bad_date", res.BadDate),
			zap.Time("last_poll", in.LastPoll()),
		)
		return nil
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, ErrStore):
		in.logger.Error("store failure, stopping monitor", zap.Error(err))
		return err
	default:
		in.logger.Warn("poll failed, retrying next tick",
			zap.Time("last_poll", in.LastPoll()),
			zap.Error(err),
		)
		return nil
	}
}

// parseDate reads an RFC 5322 Date header, tolerating a trailing
// "(UTC)"-style zone comment.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date header")
	}
	t, err := mail.ParseDate(s)
	if err != nil {
		if i := strings.LastIndex(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
			if t2, err2 := mail.ParseDate(s[:i]); err2 == nil {
				return t2.UTC(), nil
			}
		}
		return time.Time{}, err
	}
	return t.UTC(), nil
}
