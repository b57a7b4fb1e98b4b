package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a demo member so a fresh dev database can be exercised with
// `janus scan 1` straight away.  Existing rows are left untouched.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC()
	nowMs := now.UnixMilli()
	endMs := now.AddDate(1, 0, 0).UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO members(
  id, name, fingerprint, phone_number, active,
  membership_start_at_ms, membership_end_at_ms, remark,
  created_at_ms, updated_at_ms
) VALUES (1, 'Demo Member', 'dev-fingerprint', '', 1, ?, ?, 'seeded for dev', ?, ?);
`, nowMs, endMs, nowMs, nowMs); err != nil {
		return fmt.Errorf("seed member 1: %w", err)
	}

	return nil
}
