// Package sqlite stores the checkout log in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/campify/internal/coordinator/checkoutlog"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a checkout has no log rows.
var ErrNotFound = errors.New("sqlite: checkout not found")

const timeLayout = "2006-01-02T15:04:05.999999999Z"

const schema = `
CREATE TABLE IF NOT EXISTS checkout_log (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    checkout_id     TEXT NOT NULL,
    status          TEXT NOT NULL,
    current_step    TEXT NOT NULL DEFAULT '',
    payload         TEXT,
    error_messages  TEXT NOT NULL DEFAULT '[]',
    trace_id        TEXT NOT NULL DEFAULT '',
    span_id         TEXT NOT NULL DEFAULT '',
    updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkout_log_checkout_id ON checkout_log(checkout_id, id);
CREATE INDEX IF NOT EXISTS idx_checkout_log_trace_id ON checkout_log(trace_id);
`

// Repository implements checkoutlog.Repository on SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens or creates the database at path in WAL mode and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// Close releases the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends entry.
func (r *Repository) Save(ctx context.Context, entry *checkoutlog.Entry) error {
	const q = `
		INSERT INTO checkout_log
			(checkout_id, status, current_step, payload, error_messages, trace_id, span_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.CheckoutID,
		string(entry.Status),
		entry.CurrentStep,
		nullableString(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		entry.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save checkout log for %q: %w", entry.CheckoutID, err)
	}
	return nil
}

// Latest returns the most recent entry of a checkout.
func (r *Repository) Latest(ctx context.Context, checkoutID string) (*checkoutlog.Entry, error) {
	entries, err := r.query(ctx, `
		SELECT checkout_id, status, current_step, COALESCE(payload, ''), error_messages,
		       trace_id, span_id, updated_at
		FROM   checkout_log
		WHERE  checkout_id = ?
		ORDER  BY id DESC
		LIMIT  1`, checkoutID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, checkoutID)
	}
	return &entries[0], nil
}

// History returns every entry of a checkout in the order they were written.
func (r *Repository) History(ctx context.Context, checkoutID string) ([]checkoutlog.Entry, error) {
	return r.query(ctx, `
		SELECT checkout_id, status, current_step, COALESCE(payload, ''), error_messages,
		       trace_id, span_id, updated_at
		FROM   checkout_log
		WHERE  checkout_id = ?
		ORDER  BY id`, checkoutID)
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]checkoutlog.Entry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query checkout log: %w", err)
	}
	defer rows.Close()

	var out []checkoutlog.Entry
	for rows.Next() {
		var (
			e         checkoutlog.Entry
			updatedAt string
		)
		if err := rows.Scan(&e.CheckoutID, &e.Status, &e.CurrentStep, &e.Payload,
			&e.ErrorMessages, &e.TraceID, &e.SpanID, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan checkout log: %w", err)
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse time %q: %w", updatedAt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// nullableString stores empty payloads as NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
