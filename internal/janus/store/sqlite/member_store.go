package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Janus/server/internal/db"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

// Store implements store.Store on top of the migrated SQLite schema.
// Reads go straight to db; writes are serialised through writer.
type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

const memberColumns = `
  m.id, m.name, m.fingerprint, m.phone_number, m.active,
  m.membership_start_at_ms, m.membership_end_at_ms, m.remark,
  m.created_at_ms, m.updated_at_ms,
  (SELECT COUNT(*) FROM member_attendances a WHERE a.member_id = m.id)`

func (s *Store) FindWithAttendanceCount(ctx context.Context, id int64) (*store.MemberRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT`+memberColumns+`
FROM members m
WHERE m.id = ?;
`, id)

	rec, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindWithAttendanceCount query: %w", err)
	}
	return rec, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]store.MemberRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT`+memberColumns+`
FROM members m
ORDER BY m.created_at_ms DESC, m.id DESC;
`)
	if err != nil {
		return nil, fmt.Errorf("ListMembers query: %w", err)
	}
	defer rows.Close()

	var out []store.MemberRecord
	for rows.Next() {
		rec, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("ListMembers scan: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *Store) CreateMember(ctx context.Context, rec store.MemberRecord) (*store.MemberRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM members WHERE id = ?;`, rec.ID).Scan(&exists)
		if err == nil {
			return store.ErrConflict
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("CreateMember check: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO members(
  id, name, fingerprint, phone_number, active,
  membership_start_at_ms, membership_end_at_ms, remark,
  created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, strings.TrimSpace(rec.Name), rec.Fingerprint, rec.PhoneNumber, boolToInt(rec.Active),
			optionalMs(rec.MembershipStart), optionalMs(rec.MembershipEnd), rec.Remark,
			rec.CreatedAt.UTC().UnixMilli(), rec.UpdatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("CreateMember insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.FindWithAttendanceCount(ctx, rec.ID)
}

func (s *Store) UpdateMembership(ctx context.Context, id int64, upd store.MembershipUpdate) (*store.MemberRecord, error) {
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE members
SET active                 = ?,
    membership_start_at_ms = ?,
    membership_end_at_ms   = ?,
    updated_at_ms          = ?
WHERE id = ?;
`, boolToInt(upd.Active), optionalMs(upd.MembershipStart), optionalMs(upd.MembershipEnd),
			upd.UpdatedAt.UTC().UnixMilli(), id)
		if err != nil {
			return fmt.Errorf("UpdateMembership: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.FindWithAttendanceCount(ctx, id)
}

func (s *Store) LatestMemberID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM members;`).Scan(&id); err != nil {
		return 0, fmt.Errorf("LatestMemberID: %w", err)
	}
	return id.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(r rowScanner) (*store.MemberRecord, error) {
	var (
		rec                store.MemberRecord
		active             int
		startMs, endMs     sql.NullInt64
		createdMs, updated int64
	)
	if err := r.Scan(
		&rec.ID, &rec.Name, &rec.Fingerprint, &rec.PhoneNumber, &active,
		&startMs, &endMs, &rec.Remark,
		&createdMs, &updated,
		&rec.AttendanceCount,
	); err != nil {
		return nil, err
	}
	rec.Active = active == 1
	rec.MembershipStart = fromOptionalMs(startMs)
	rec.MembershipEnd = fromOptionalMs(endMs)
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return &rec, nil
}

func optionalMs(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func fromOptionalMs(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
