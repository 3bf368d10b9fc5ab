// Package journal persists the terminal actions taken by the bot.
package journal

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/crmbot/core/database"
	"github.com/m3rciful/crmbot/core/logger"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies the journal schema for the configured driver.
func Migrate(cfg database.Config) error {
	return database.RunMigrations(cfg, migrations, "migrations/"+cfg.Driver)
}

// Action names.
const (
	ActionLink       = "link"
	ActionLeadSubmit = "lead_submit"
	ActionLeadRefuse = "lead_refused"
)

// Outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Entry is one journaled action.
type Entry struct {
	ID             string    `db:"id"`
	Platform       string    `db:"platform"`
	PlatformUserID string    `db:"platform_user_id"`
	Action         string    `db:"action"`
	Outcome        string    `db:"outcome"`
	Detail         string    `db:"detail"`
	CreatedAt      time.Time `db:"created_at"`
}

// Store writes entries through sqlx.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewStore wraps an open database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record appends an entry, filling ID and CreatedAt when empty.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO bot_actions (id, platform, platform_user_id, action, outcome, detail, created_at)
VALUES (:id, :platform, :platform_user_id, :action, :outcome, :detail, :created_at)`, e)
	if err != nil {
		logger.Journal.Warn("journal write failed",
			slog.String("event", "journal.record"),
			slog.String("action", e.Action),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("journal: record %s: %w", e.Action, err)
	}
	return nil
}

// Recent returns the latest entries of a platform user, newest first.
func (s *Store) Recent(ctx context.Context, platformUserID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Entry
	q := s.db.Rebind(`
SELECT id, platform, platform_user_id, action, outcome, detail, created_at
FROM bot_actions
WHERE platform_user_id = ?
ORDER BY created_at DESC
LIMIT ?`)
	if err := s.db.SelectContext(ctx, &out, q, platformUserID, limit); err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bot_actions`); err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}
