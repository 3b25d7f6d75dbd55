package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yashmulik1278/email-assistant-LLM/internal/db"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

// fakeMailbox serves a fixed set of messages and records every call in a
// shared event log.
type fakeMailbox struct {
	mu       sync.Mutex
	messages map[string]*types.Message
	order    []string
	unread   map[string]bool
	events   *[]string

	listErr, getErr, markErr error
}

func newFakeMailbox(events *[]string, msgs ...*types.Message) *fakeMailbox {
	f := &fakeMailbox{messages: map[string]*types.Message{}, unread: map[string]bool{}, events: events}
	for _, m := range msgs {
		f.messages[m.ID] = m
		f.order = append(f.order, m.ID)
		f.unread[m.ID] = true
	}
	return f
}

func (f *fakeMailbox) ListActionableUnread(_ context.Context, _ types.SubjectFilter, limit int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for _, id := range f.order {
		if f.unread[id] && int64(len(ids)) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeMailbox) GetMessage(_ context.Context, id string) (*types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	*f.events = append(*f.events, "get:"+id)
	m := *f.messages[id]
	return &m, nil
}

func (f *fakeMailbox) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	*f.events = append(*f.events, "read:"+id)
	f.unread[id] = false
	return nil
}

// recordingStore wraps a real store and logs inserts into the event log.
type recordingStore struct {
	*db.DB
	events    *[]string
	insertErr error
}

func (s *recordingStore) InsertIfAbsent(ctx context.Context, r *types.EmailRecord) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	*s.events = append(*s.events, "insert:"+r.ExternalID)
	return s.DB.InsertIfAbsent(ctx, r)
}

func openStore(t *testing.T, events *[]string) *recordingStore {
	t.Helper()
	d, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "mail.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return &recordingStore{DB: d, events: events}
}

func msg(id, subject, date string) *types.Message {
	return &types.Message{ID: id, From: "user@example.com", Subject: subject, Date: date, Body: "body " + id}
}

var defaultFilter = types.SubjectFilter{Keywords: types.DefaultKeywords}

func TestCycle_InsertsAndMarksReadAfterWrite(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events,
		msg("m1", "Support: login", "Mon, 01 Jan 2024 10:00:00 +0000"),
		msg("m2", "Help with billing", "Tue, 02 Jan 2024 11:30:00 +0100"),
	)
	store := openStore(t, &events)
	in := New(mb, store, Options{Filter: defaultFilter}, nil)

	res, err := in.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.Listed != 2 || res.Inserted != 2 || res.Duplicates != 0 {
		t.Errorf("result = %+v", res)
	}

	want := []string{"get:m1", "insert:m1", "read:m1", "get:m2", "insert:m2", "read:m2"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}

	pending, err := store.ListByStatus(context.Background(), types.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	wantTime := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	if !pending[1].ReceivedAt.Equal(wantTime) {
		t.Errorf("received_at = %s, want %s", pending[1].ReceivedAt, wantTime)
	}
	if in.LastPoll().IsZero() {
		t.Error("LastPoll not set after successful cycle")
	}
}

func TestCycle_Idempotent(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events, msg("m1", "Support", "Mon, 01 Jan 2024 10:00:00 +0000"))
	store := openStore(t, &events)
	in := New(mb, store, Options{Filter: defaultFilter}, nil)
	ctx := context.Background()

	if _, err := in.Cycle(ctx); err != nil {
		t.Fatal(err)
	}
	// The message shows up as unread again, e.g. marked unread by a person.
	mb.unread["m1"] = true
	res, err := in.Cycle(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 || res.Duplicates != 1 {
		t.Errorf("second cycle = %+v, want 1 duplicate", res)
	}
	if mb.unread["m1"] {
		t.Error("duplicate should still be marked read")
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[types.StatusPending] != 1 {
		t.Errorf("pending count = %d, want 1", counts[types.StatusPending])
	}
}

func TestCycle_BadDateSkipped(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events,
		msg("bad", "Support", "yesterday-ish"),
		msg("good", "Support", "Mon, 01 Jan 2024 10:00:00 +0000 (UTC)"),
	)
	store := openStore(t, &events)
	in := New(mb, store, Options{Filter: defaultFilter}, nil)

	res, err := in.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if res.BadDate != 1 || res.Inserted != 1 {
		t.Errorf("result = %+v", res)
	}
	if mb.unread["bad"] {
		t.Error("message with bad date left unread")
	}
	if ok, _ := store.ExternalIDExists(context.Background(), "bad"); ok {
		t.Error("message with bad date was stored")
	}

	events = nil
	res, err = in.Cycle(context.Background())
	if err != nil {
		t.Fatalf("second Cycle: %v", err)
	}
	if res.Listed != 0 || len(events) != 0 {
		t.Errorf("second cycle result = %+v events = %v, want nothing listed", res, events)
	}
}

func TestCycle_SkippedMessagesDoNotStall(t *testing.T) {
	for _, tc := range []struct {
		name string
		skip *types.Message
	}{
		{"bad date", msg("skip", "Support", "not a date")},
		{"subject", msg("skip", "Weekly digest", "Mon, 01 Jan 2024 09:00:00 +0000")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var events []string
			mb := newFakeMailbox(&events, tc.skip, msg("good", "Support", "Mon, 01 Jan 2024 10:00:00 +0000"))
			store := openStore(t, &events)
			in := New(mb, store, Options{Filter: defaultFilter, Limit: 1}, nil)

			for i := 0; i < 5; i++ {
				if _, err := in.Cycle(context.Background()); err != nil {
					t.Fatalf("cycle %d: %v", i, err)
				}
			}
			if ok, _ := store.ExternalIDExists(context.Background(), "good"); !ok {
				t.Error("message behind a skipped one was never stored")
			}
			var gets int
			for _, e := range events {
				if e == "get:skip" {
					gets++
				}
			}
			if gets != 1 {
				t.Errorf("skipped message fetched %d times, want 1", gets)
			}
		})
	}
}

func TestCycle_SubjectFilter(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events, msg("news", "Weekly digest", "Mon, 01 Jan 2024 10:00:00 +0000"))
	store := openStore(t, &events)
	in := New(mb, store, Options{Filter: defaultFilter}, nil)

	res, err := in.Cycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Filtered != 1 || res.Inserted != 0 || mb.unread["news"] {
		t.Errorf("result = %+v unread=%v", res, mb.unread["news"])
	}
	if ok, _ := store.ExternalIDExists(context.Background(), "news"); ok {
		t.Error("filtered message was stored")
	}
}

func TestCycle_StoreErrorAbortsBeforeMarkRead(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events, msg("m1", "Support", "Mon, 01 Jan 2024 10:00:00 +0000"))
	store := openStore(t, &events)
	store.insertErr = errors.New("disk full")
	in := New(mb, store, Options{Filter: defaultFilter}, nil)

	_, err := in.Cycle(context.Background())
	if !errors.Is(err, ErrStore) {
		t.Fatalf("err = %v, want ErrStore", err)
	}
	if !mb.unread["m1"] {
		t.Error("message marked read despite failed store write")
	}
	if !in.LastPoll().IsZero() {
		t.Error("LastPoll set after failed cycle")
	}
}

func TestCycle_ProviderErrors(t *testing.T) {
	boom := errors.New("503")
	for _, tc := range []struct {
		name string
		set  func(*fakeMailbox)
	}{
		{"list", func(f *fakeMailbox) { f.listErr = boom }},
		{"get", func(f *fakeMailbox) { f.getErr = boom }},
		{"mark read", func(f *fakeMailbox) { f.markErr = boom }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var events []string
			mb := newFakeMailbox(&events, msg("m1", "Support", "Mon, 01 Jan 2024 10:00:00 +0000"))
			tc.set(mb)
			in := New(mb, openStore(t, &events), Options{Filter: defaultFilter}, nil)
			_, err := in.Cycle(context.Background())
			if !errors.Is(err, ErrProvider) || !errors.Is(err, boom) {
				t.Errorf("err = %v, want ErrProvider wrapping cause", err)
			}
		})
	}
}

func TestRun_ProviderErrorKeepsLooping(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events)
	mb.listErr = errors.New("offline")
	in := New(mb, openStore(t, &events), Options{Filter: defaultFilter}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := in.Run(ctx, 10*time.Millisecond); err != nil {
		t.Errorf("Run = %v, want nil after cancellation", err)
	}
}

func TestRun_StoreErrorStops(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events, msg("m1", "Support", "Mon, 01 Jan 2024 10:00:00 +0000"))
	store := openStore(t, &events)
	store.insertErr = errors.New("locked")
	in := New(mb, store, Options{Filter: defaultFilter}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := in.Run(ctx, time.Hour); !errors.Is(err, ErrStore) {
		t.Errorf("Run = %v, want ErrStore", err)
	}
}

func TestRun_LogsLastPoll(t *testing.T) {
	var events []string
	mb := newFakeMailbox(&events, msg("m1", "Support", "Mon, 01 Jan 2024 10:00:00 +0000"))
	core, logs := observer.New(zap.InfoLevel)
	in := New(mb, openStore(t, &events), Options{Filter: defaultFilter}, zap.New(core))

	if err := in.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	entries := logs.FilterMessage("poll complete").All()
	if len(entries) != 1 {
		t.Fatalf("poll complete logged %d times, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	last, ok := fields["last_poll"].(time.Time)
	if !ok || !last.Equal(in.LastPoll()) || last.IsZero() {
		t.Errorf("last_poll = %v, want %v", fields["last_poll"], in.LastPoll())
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{
		"Mon, 01 Jan 2024 10:00:00 +0000",
		"1 Jan 2024 10:00:00 +0000",
		"Mon, 01 Jan 2024 05:00:00 -0500 (EST)",
	} {
		got, err := parseDate(in)
		if err != nil {
			t.Errorf("parseDate(%q): %v", in, err)
			continue
		}
		if !got.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
			t.Errorf("parseDate(%q) = %s", in, got)
		}
	}
	for _, in := range []string{"", "not a date"} {
		if _, err := parseDate(in); err == nil {
			t.Errorf("parseDate(%q) succeeded", in)
		}
	}
}
