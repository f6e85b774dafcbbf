package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// QuotaStore persists daily quota counters so the daily ceiling holds
// across process restarts.
type QuotaStore struct {
	db *sql.DB
}

// NewQuotaStore creates a quota store.
func NewQuotaStore(db *sql.DB) *QuotaStore {
	return &QuotaStore{db: db}
}

// Restore loads persisted daily counters into the manager. Stale rows from
// previous UTC days are ignored by the manager.
func (s *QuotaStore) Restore(ctx context.Context, m *QuotaManager) error {
	rows, err := s.db.QueryContext(ctx, `SELECT provider, day, requests_used_today FROM quota_state`)
	if err != nil {
		return fmt.Errorf("loading quota state: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var name, day string
		var used int
		if err := rows.Scan(&name, &day, &used); err != nil {
			return fmt.Errorf("scanning quota state: %w", err)
		}
		m.RestoreDaily(Name(name), day, used)
	}
	return rows.Err()
}

// Save writes the manager's current daily counters.
func (s *QuotaStore) Save(ctx context.Context, m *QuotaManager) error {
	now := time.Now().UTC()
	day := now.Format("2006-01-02")

	for _, state := range m.States() {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO quota_state (provider, day, requests_used_today, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(provider) DO UPDATE SET
				day = excluded.day,
				requests_used_today = excluded.requests_used_today,
				updated_at = excluded.updated_at
		`, string(state.Provider), day, state.RequestsUsedToday, now.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("saving quota state for %s: %w", state.Provider, err)
		}
	}
	return nil
}
