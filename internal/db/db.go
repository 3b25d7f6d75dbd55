// Package db provides the shared record store for the assistant.
//
// The emails table is the only synchronization point between the ingestor,
// the analyzer and the human resolve action. The status column acts as a
// work-queue cursor and only ever moves forward.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// TimeLayout is the on-disk format of received_at. Fixed width UTC keeps
// lexical and chronological order identical.
const TimeLayout = "2006-01-02T15:04:05Z"

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	ID   int64
	From types.Status
	To   types.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("record %d: status cannot move from %s to %s", e.ID, e.From, e.To)
}

// DB wraps a SQL connection for record operations.
type DB struct {
	conn   *sql.DB
	driver string
	path   string
}

// Open opens (or creates) a record store. For the sqlite driver dsn is a
// file path; for pgx it is a PostgreSQL connection string.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "", DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres, "postgres":
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (must be: sqlite, pgx)", driver)
	}
}

func openSQLite(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &DB{conn: conn, driver: DriverSQLite, path: dbPath}
	if err := d.migrate(sqliteSchema); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func openPostgres(dsn string) (*DB, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	d := &DB{conn: conn, driver: DriverPostgres, path: dsn}
	if err := d.migrate(postgresSchema); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(stmts []string) error {
	for _, stmt := range stmts {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path or DSN.
func (d *DB) Path() string {
	return d.path
}

// DiscoverDB finds the store by walking up from cwd.
// Returns the path to .assist/mail.db or empty string if not found.
func DiscoverDB() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".assist", "mail.db")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// rebind rewrites ? placeholders into $N for PostgreSQL.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Record operations ---

// InsertIfAbsent stores a new pending record. A record whose external_id is
// already stored is left untouched and inserted is false.
func (d *DB) InsertIfAbsent(ctx context.Context, r *types.EmailRecord) (inserted bool, err error) {
	res, err := d.conn.ExecContext(ctx, d.rebind(`
		INSERT INTO emails (external_id, sender, subject, body, received_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO NOTHING`),
		r.ExternalID, r.Sender, r.Subject, r.Body,
		r.ReceivedAt.UTC().Format(TimeLayout), string(types.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", r.ExternalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", r.ExternalID, err)
	}
	return n == 1, nil
}

// ExternalIDExists checks if a provider message id is already stored.
func (d *DB) ExternalIDExists(ctx context.Context, externalID string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, d.rebind("SELECT 1 FROM emails WHERE external_id = ?"), externalID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const selectColumns = `SELECT id, external_id, sender, subject, body, received_at, status,
	       sentiment, priority, customer_request, contact_info, generated_response
	FROM emails`

// ListByStatus returns all records in the given status, oldest received first.
func (d *DB) ListByStatus(ctx context.Context, status types.Status) ([]*types.EmailRecord, error) {
	rows, err := d.conn.QueryContext(ctx, d.rebind(selectColumns+`
		WHERE status = ?
		ORDER BY received_at ASC, id ASC`), string(status))
	if err != nil {
		return nil, fmt.Errorf("select %s records: %w", status, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListFilter narrows List results.
type ListFilter struct {
	Status   types.Status
	Priority types.Priority
	Limit    int
}

// List returns records sorted for the inbox view: urgent first, then
// unresolved work first, then newest first.
func (d *DB) List(ctx context.Context, f ListFilter) ([]*types.EmailRecord, error) {
	query := selectColumns

	var conditions []string
	var args []any
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += ` ORDER BY
		CASE priority WHEN 'Urgent' THEN 0 WHEN 'Not urgent' THEN 1 ELSE 2 END,
		CASE status WHEN 'pending' THEN 0 WHEN 'processed' THEN 1 ELSE 2 END,
		received_at DESC`

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := d.conn.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Get returns a record by id.
func (d *DB) Get(ctx context.Context, id int64) (*types.EmailRecord, error) {
	rows, err := d.conn.QueryContext(ctx, d.rebind(selectColumns+" WHERE id = ?"), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// ApplyAnalysis writes all analysis fields and moves the record from
// pending to processed in a single statement.
func (d *DB) ApplyAnalysis(ctx context.Context, id int64, a types.Analysis) error {
	sentiment, priority, err := validateAnalysis(a)
	if err != nil {
		return fmt.Errorf("record %d: %w", id, err)
	}
	contact := a.ContactInfo
	if contact == nil {
		contact = map[string]string{}
	}
	contactJSON, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("encode contact info: %w", err)
	}

	return d.transition(ctx, id, types.StatusPending, types.StatusProcessed, `
		sentiment = ?, priority = ?, customer_request = ?,
		contact_info = ?, generated_response = ?,`,
		string(sentiment), string(priority), a.CustomerRequest,
		string(contactJSON), a.GeneratedResponse,
	)
}

// Resolve moves a processed record to resolved. No other field changes.
func (d *DB) Resolve(ctx context.Context, id int64) error {
	return d.transition(ctx, id, types.StatusProcessed, types.StatusResolved, "")
}

// transition runs a guarded single-row update. The WHERE clause repeats the
// expected current status so a concurrent writer can never be overwritten.
func (d *DB) transition(ctx context.Context, id int64, from, to types.Status, set string, args ...any) error {
	if !from.CanTransition(to) {
		return &TransitionError{ID: id, From: from, To: to}
	}

	query := "UPDATE emails SET " + set + " status = ? WHERE id = ? AND status = ?"
	args = append(args, string(to), id, string(from))
	res, err := d.conn.ExecContext(ctx, d.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	current, err := d.status(ctx, id)
	if err != nil {
		return err
	}
	return &TransitionError{ID: id, From: current, To: to}
}

func (d *DB) status(ctx context.Context, id int64) (types.Status, error) {
	var s string
	err := d.conn.QueryRowContext(ctx, d.rebind("SELECT status FROM emails WHERE id = ?"), id).Scan(&s)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return types.Status(s), nil
}

// validateAnalysis returns the canonical enum values of a.
func validateAnalysis(a types.Analysis) (types.Sentiment, types.Priority, error) {
	s, ok := types.ParseSentiment(string(a.Sentiment))
	if !ok {
		return "", "", fmt.Errorf("invalid sentiment %q", a.Sentiment)
	}
	p, ok := types.ParsePriority(string(a.Priority))
	if !ok {
		return "", "", fmt.Errorf("invalid priority %q", a.Priority)
	}
	return s, p, nil
}

// --- Counts ---

// CountByStatus returns record counts grouped by status.
func (d *DB) CountByStatus(ctx context.Context) (map[types.Status]int, error) {
	counts := map[types.Status]int{}
	for _, s := range types.ValidStatuses {
		counts[s] = 0
	}
	err := d.groupCount(ctx, "SELECT status, COUNT(*) FROM emails GROUP BY status", func(k string, n int) {
		counts[types.Status(k)] = n
	})
	return counts, err
}

// CountBySentiment returns counts of analysed records grouped by sentiment.
func (d *DB) CountBySentiment(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	err := d.groupCount(ctx,
		"SELECT sentiment, COUNT(*) FROM emails WHERE sentiment IS NOT NULL GROUP BY sentiment",
		func(k string, n int) { counts[k] = n })
	return counts, err
}

// CountByPriority returns counts of analysed records grouped by priority.
func (d *DB) CountByPriority(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	err := d.groupCount(ctx,
		"SELECT priority, COUNT(*) FROM emails WHERE priority IS NOT NULL GROUP BY priority",
		func(k string, n int) { counts[k] = n })
	return counts, err
}

// CountReceivedSince returns the number of records received after t.
func (d *DB) CountReceivedSince(ctx context.Context, t time.Time) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, d.rebind("SELECT COUNT(*) FROM emails WHERE received_at > ?"),
		t.UTC().Format(TimeLayout)).Scan(&n)
	return n, err
}

func (d *DB) groupCount(ctx context.Context, query string, fn func(string, int)) error {
	rows, err := d.conn.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		fn(key, n)
	}
	return rows.Err()
}

func scanRecords(rows *sql.Rows) ([]*types.EmailRecord, error) {
	var result []*types.EmailRecord
	for rows.Next() {
		r := &types.EmailRecord{}
		var body, sentiment, priority, request, contact, response sql.NullString
		var received, status string
		if err := rows.Scan(
			&r.ID, &r.ExternalID, &r.Sender, &r.Subject, &body, &received, &status,
			&sentiment, &priority, &request, &contact, &response,
		); err != nil {
			return nil, err
		}
		t, err := time.Parse(TimeLayout, received)
		if err != nil {
			return nil, fmt.Errorf("record %d: parse received_at %q: %w", r.ID, received, err)
		}
		r.ReceivedAt = t
		r.Body = body.String
		r.Status = types.Status(status)
		if sentiment.Valid {
			s := types.Sentiment(sentiment.String)
			r.Sentiment = &s
		}
		if priority.Valid {
			p := types.Priority(priority.String)
			r.Priority = &p
		}
		if request.Valid {
			r.CustomerRequest = &request.String
		}
		if response.Valid {
			r.GeneratedResponse = &response.String
		}
		if contact.Valid {
			info := map[string]string{}
			if err := json.Unmarshal([]byte(contact.String), &info); err != nil {
				return nil, fmt.Errorf("record %d: decode contact_info: %w", r.ID, err)
			}
			r.ContactInfo = info
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
