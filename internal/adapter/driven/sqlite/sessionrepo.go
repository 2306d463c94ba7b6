package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ericfisherdev/profitpilot/internal/domain/model"
	"github.com/ericfisherdev/profitpilot/internal/domain/port/driven"
)

// Persisted session keys. trading and TradingStatus keep the names used by
// earlier client releases so an upgraded install restores a running session.
const (
	keyTrading       = "trading"
	keyTradingStatus = "TradingStatus"
	keySessionPhase  = "SessionPhase"
)

// Compile-time interface satisfaction check.
var _ driven.SessionStore = (*SessionRepo)(nil)

// SessionRepo is the SQLite implementation of the SessionStore port interface.
// It stores each record field as a row of the session_state key-value table.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new SessionRepo backed by the given DB.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Load reads the persisted record. Missing keys leave the corresponding
// field at its zero value; an absent phase is derived from the other fields.
func (r *SessionRepo) Load(ctx context.Context) (model.SessionRecord, error) {
	const query = `SELECT key, value FROM session_state WHERE key IN (?, ?, ?)`

	rows, err := r.db.Reader.QueryContext(ctx, query, keyTrading, keyTradingStatus, keySessionPhase)
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("load session record: %w", err)
	}
	defer rows.Close()

	var rec model.SessionRecord
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return model.SessionRecord{}, fmt.Errorf("scan session key: %w", err)
		}
		switch key {
		case keyTrading:
			rec.Trading = value == "true"
		case keyTradingStatus:
			rec.Status = value
		case keySessionPhase:
			rec.Phase = model.SessionPhase(value)
		}
	}
	if err := rows.Err(); err != nil {
		return model.SessionRecord{}, fmt.Errorf("iterate session keys: %w", err)
	}

	if rec.Phase == "" {
		rec.Phase = model.PhaseIdle
		if rec.IsActive() {
			rec.Phase = model.PhaseActive
		}
	}

	return rec, nil
}

// Save replaces the persisted record inside a single transaction so the
// trading flag and status label never diverge.
func (r *SessionRepo) Save(ctx context.Context, record model.SessionRecord) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	trading := ""
	if record.Trading {
		trading = "true"
	}

	if err := putKey(ctx, tx, keyTrading, trading); err != nil {
		return err
	}
	if err := putKey(ctx, tx, keyTradingStatus, record.Status); err != nil {
		return err
	}
	phase := record.Phase
	if phase == model.PhaseIdle {
		phase = ""
	}
	if err := putKey(ctx, tx, keySessionPhase, string(phase)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save session: %w", err)
	}
	return nil
}

// Clear removes every persisted session key.
func (r *SessionRepo) Clear(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM session_state`); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}

// putKey upserts key, or deletes it when value is empty.
func putKey(ctx context.Context, tx *sql.Tx, key, value string) error {
	if value == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete session key %q: %w", key, err)
		}
		return nil
	}

	const query = `
		INSERT INTO session_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("put session key %q: %w", key, err)
	}
	return nil
}
