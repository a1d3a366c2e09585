package store

import (
	"context"
	"fmt"
	"time"
)

// ActiveChannel is one row of the active_channels table.
type ActiveChannel struct {
	ChannelID   string
	ActivatedAt time.Time
}

// ActiveChannels is an activation backend over the active_channels table.
type ActiveChannels struct {
	db *DB
}

// NewActiveChannels returns the activation backend for db.
func NewActiveChannels(db *DB) *ActiveChannels {
	return &ActiveChannels{db: db}
}

// Load returns the stored channel ids in id order.
func (a *ActiveChannels) Load(ctx context.Context) ([]string, error) {
	rows, err := a.db.sql.QueryContext(ctx, `SELECT channel_id FROM active_channels ORDER BY channel_id`)
	if err != nil {
		return nil, fmt.Errorf("query active channels: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan active channel: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Save makes the table contain exactly ids. Rows that stay keep their
// original activation time.
func (a *ActiveChannels) Save(ctx context.Context, ids []string) error {
	tx, err := a.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT channel_id FROM active_channels`)
	if err != nil {
		return fmt.Errorf("query active channels: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan active channel: %w", err)
		}
		if _, ok := want[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate active channels: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_channels WHERE channel_id = ?`, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO active_channels (channel_id, activated_at) VALUES (?, ?)`,
			id, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("insert %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Details returns every active channel with its activation time.
func (a *ActiveChannels) Details(ctx context.Context) ([]ActiveChannel, error) {
	rows, err := a.db.sql.QueryContext(ctx,
		`SELECT channel_id, activated_at FROM active_channels ORDER BY activated_at, channel_id`)
	if err != nil {
		return nil, fmt.Errorf("query active channels: %w", err)
	}
	defer rows.Close()

	var out []ActiveChannel
	for rows.Next() {
		var (
			ac ActiveChannel
			at string
		)
		if err := rows.Scan(&ac.ChannelID, &at); err != nil {
			return nil, fmt.Errorf("scan active channel: %w", err)
		}
		ac.ActivatedAt = parseTime(at)
		out = append(out, ac)
	}
	return out, rows.Err()
}

// parseTime accepts both RFC 3339 and SQLite's datetime() format.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}
