package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

// AppendAttendance inserts one check-in row.  Unknown members surface as
// store.ErrNotFound rather than a foreign-key failure.
func (s *Store) AppendAttendance(ctx context.Context, memberID int64, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	atMs := at.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM members WHERE id = ?;`, memberID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("AppendAttendance resolve member: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO member_attendances(member_id, created_at_ms) VALUES (?, ?);
`, memberID, atMs); err != nil {
			return fmt.Errorf("AppendAttendance insert: %w", err)
		}
		return nil
	})
}

func (s *Store) AttendanceReport(ctx context.Context, q store.ReportQuery) (*store.Report, error) {
	dayStart := q.DayStart.UTC().UnixMilli()
	dayEnd := q.DayEnd.UTC().UnixMilli()
	monthStart := q.MonthStart.UTC().UnixMilli()

	rep := &store.Report{}
	err := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM members WHERE active = 1),
  (SELECT COUNT(*) FROM member_attendances WHERE created_at_ms >= ? AND created_at_ms < ?),
  (SELECT COUNT(*) FROM members WHERE created_at_ms >= ?);
`, dayStart, dayEnd, monthStart).Scan(
		&rep.Stats.TotalMembers, &rep.Stats.TodayAttendance, &rep.Stats.NewMembersThisMonth,
	)
	if err != nil {
		return nil, fmt.Errorf("AttendanceReport stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a.member_id, m.name, a.created_at_ms
FROM member_attendances a
JOIN members m ON m.id = a.member_id
WHERE a.created_at_ms >= ? AND a.created_at_ms < ?
ORDER BY a.created_at_ms ASC, a.id ASC;
`, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("AttendanceReport list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a         store.AttendanceRecord
			createdMs int64
		)
		if err := rows.Scan(&a.ID, &a.MemberID, &a.MemberName, &createdMs); err != nil {
			return nil, fmt.Errorf("AttendanceReport scan: %w", err)
		}
		a.CreatedAt = time.UnixMilli(createdMs).UTC()
		rep.Attendances = append(rep.Attendances, a)
	}
	return rep, rows.Err()
}

// PruneAttendanceOlderThan deletes attendance rows created before cutoff and
// returns how many were removed.  Uses idx_attendances_time.
func (s *Store) PruneAttendanceOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM member_attendances
WHERE created_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneAttendanceOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

var _ store.Store = (*Store)(nil)
