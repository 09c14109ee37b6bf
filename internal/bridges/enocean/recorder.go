package enocean

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SightingRecorder stores every sender heard on the bus in the
// enocean_sightings table, whether or not it is configured.
// Unknown senders listed here are candidates for adding to the bridge config.
//
// Thread Safety: All methods are safe for concurrent use.
type SightingRecorder struct {
	db     *sql.DB
	logger Logger

	upsertStmt *sql.Stmt
	stmtMu     sync.Mutex

	closed bool
	mu     sync.RWMutex
}

// Sighting is one row of enocean_sightings.
type Sighting struct {
	Address         string    `json:"address"`
	ORG             string    `json:"org"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	TelegramCount   int64     `json:"telegram_count"`
	LastTelegram    string    `json:"last_telegram"`
	LastRepeatCount int       `json:"last_repeat_count"`
	Known           bool      `json:"known"`
}

// NewSightingRecorder creates a recorder.
// The database must have the enocean_sightings table created.
func NewSightingRecorder(db *sql.DB) *SightingRecorder {
	return &SightingRecorder{db: db}
}

// SetLogger sets the logger for the recorder.
func (r *SightingRecorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start prepares the upsert statement. Must be called before RecordTelegram.
func (r *SightingRecorder) Start() error {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.upsertStmt != nil {
		return nil
	}

	stmt, err := r.db.Prepare(`
		INSERT INTO enocean_sightings
			(address, org, first_seen, last_seen, telegram_count, last_telegram, last_repeat_count, known)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			org = excluded.org,
			last_seen = excluded.last_seen,
			telegram_count = telegram_count + 1,
			last_telegram = excluded.last_telegram,
			last_repeat_count = excluded.last_repeat_count,
			known = excluded.known
	`)
	if err != nil {
		return fmt.Errorf("preparing sighting upsert statement: %w", err)
	}

	r.upsertStmt = stmt
	r.log("sighting recorder started")
	return nil
}

// Stop closes the recorder and releases resources.
func (r *SightingRecorder) Stop() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	if r.upsertStmt != nil {
		r.upsertStmt.Close()
		r.upsertStmt = nil
	}
	r.log("sighting recorder stopped")
}

// RecordTelegram upserts the telegram's sender.
//
// Parameters:
//   - t: Received telegram
//   - known: True if any entity is configured for the sender
func (r *SightingRecorder) RecordTelegram(t Telegram, known bool) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	r.mu.RUnlock()

	r.stmtMu.Lock()
	stmt := r.upsertStmt
	r.stmtMu.Unlock()
	if stmt == nil {
		return
	}

	if t.Sender.IsZero() {
		return
	}

	now := telegramTime(t).Unix()
	knownInt := 0
	if known {
		knownInt = 1
	}
	if _, err := stmt.Exec(t.Sender.String(), t.ORG.String(), now, now, t.String(), t.RepeatCount(), knownInt); err != nil {
		r.logError("recording sighting", err)
	}
}

// Sightings returns recorded senders, most recently seen first.
//
// Parameters:
//   - ctx: Context for cancellation
//   - unknownOnly: Only return senders no entity is configured for
//   - limit: Maximum rows (0 means 100)
func (r *SightingRecorder) Sightings(ctx context.Context, unknownOnly bool, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT address, org, first_seen, last_seen, telegram_count, last_telegram, last_repeat_count, known
		FROM enocean_sightings`
	if unknownOnly {
		query += ` WHERE known = 0`
	}
	query += ` ORDER BY last_seen DESC, address ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sightings: %w", err)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var s Sighting
		var first, last int64
		var known int
		if err := rows.Scan(&s.Address, &s.ORG, &first, &last, &s.TelegramCount, &s.LastTelegram, &s.LastRepeatCount, &known); err != nil {
			return nil, fmt.Errorf("scanning sighting row: %w", err)
		}
		s.FirstSeen = time.Unix(first, 0).UTC()
		s.LastSeen = time.Unix(last, 0).UTC()
		s.Known = known == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

// Count returns the number of distinct senders recorded.
func (r *SightingRecorder) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM enocean_sightings`).Scan(&count)
	return count, err
}

func (r *SightingRecorder) log(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}

func (r *SightingRecorder) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, "error", err)
	}
}
