// Package postgres implements the member and attendance stores against the
// front desk's existing PostgreSQL schema ("User" and "UserAttendance").
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

// uniqueViolation is the SQLSTATE for duplicate primary keys.
const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("postgres: database url is required")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when they are missing.  Databases already
// provisioned by the front desk are left as they are.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS "User" (
  id                  INTEGER PRIMARY KEY,
  name                TEXT        NOT NULL,
  fingerprint         TEXT        NOT NULL,
  "phoneNumber"       TEXT        NOT NULL DEFAULT '',
  active              BOOLEAN     NOT NULL DEFAULT true,
  "membershipStartAt" TIMESTAMPTZ,
  "membershipEndAt"   TIMESTAMPTZ,
  remark              TEXT,
  "createdAt"         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  "updatedAt"         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS "UserAttendance" (
  id          SERIAL PRIMARY KEY,
  "userId"    INTEGER     NOT NULL REFERENCES "User"(id) ON DELETE CASCADE,
  "createdAt" TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  "updatedAt" TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS "UserAttendance_userId_idx" ON "UserAttendance"("userId");
CREATE INDEX IF NOT EXISTS "UserAttendance_createdAt_idx" ON "UserAttendance"("createdAt");
`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const memberColumns = `
  u.id, u.name, u.fingerprint, u."phoneNumber", u.active,
  u."membershipStartAt", u."membershipEndAt", COALESCE(u.remark, ''),
  u."createdAt", u."updatedAt",
  (SELECT COUNT(*) FROM "UserAttendance" a WHERE a."userId" = u.id)`

func (s *Store) FindWithAttendanceCount(ctx context.Context, id int64) (*store.MemberRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT`+memberColumns+` FROM "User" u WHERE u.id = $1`, id)
	rec, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	return rec, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]store.MemberRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT`+memberColumns+` FROM "User" u ORDER BY u."createdAt" DESC, u.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []store.MemberRecord
	for rows.Next() {
		rec, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("list members scan: %w", err)
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

	_, err := s.db.ExecContext(ctx, `
INSERT INTO "User" (id, name, fingerprint, "phoneNumber", active,
  "membershipStartAt", "membershipEndAt", remark, "createdAt", "updatedAt")
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, strings.TrimSpace(rec.Name), rec.Fingerprint, rec.PhoneNumber, rec.Active,
		nullTime(rec.MembershipStart), nullTime(rec.MembershipEnd), nullString(rec.Remark),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("create member: %w", err)
	}
	return s.FindWithAttendanceCount(ctx, rec.ID)
}

func (s *Store) UpdateMembership(ctx context.Context, id int64, upd store.MembershipUpdate) (*store.MemberRecord, error) {
	if upd.UpdatedAt.IsZero() {
		upd.UpdatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE "User"
SET active = $1, "membershipStartAt" = $2, "membershipEndAt" = $3, "updatedAt" = $4
WHERE id = $5`,
		upd.Active, nullTime(upd.MembershipStart), nullTime(upd.MembershipEnd), upd.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update membership: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.FindWithAttendanceCount(ctx, id)
}

func (s *Store) LatestMemberID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM "User"`).Scan(&id); err != nil {
		return 0, fmt.Errorf("latest member id: %w", err)
	}
	return id.Int64, nil
}

func (s *Store) AppendAttendance(ctx context.Context, memberID int64, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO "UserAttendance" ("userId", "createdAt", "updatedAt") VALUES ($1, $2, $2)`,
		memberID, at)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return store.ErrNotFound
		}
		return fmt.Errorf("append attendance: %w", err)
	}
	return nil
}

func (s *Store) AttendanceReport(ctx context.Context, q store.ReportQuery) (*store.Report, error) {
	rep := &store.Report{}
	err := s.db.QueryRowContext(ctx, `
SELECT
  (SELECT COUNT(*) FROM "User" WHERE active = true),
  (SELECT COUNT(*) FROM "UserAttendance" WHERE "createdAt" >= $1 AND "createdAt" < $2),
  (SELECT COUNT(*) FROM "User" WHERE "createdAt" >= $3)`,
		q.DayStart, q.DayEnd, q.MonthStart,
	).Scan(&rep.Stats.TotalMembers, &rep.Stats.TodayAttendance, &rep.Stats.NewMembersThisMonth)
	if err != nil {
		return nil, fmt.Errorf("report stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a."userId", u.name, a."createdAt"
FROM "UserAttendance" a
JOIN "User" u ON u.id = a."userId"
WHERE a."createdAt" >= $1 AND a."createdAt" < $2
ORDER BY a."createdAt" ASC, a.id ASC`, q.DayStart, q.DayEnd)
	if err != nil {
		return nil, fmt.Errorf("report list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a store.AttendanceRecord
		if err := rows.Scan(&a.ID, &a.MemberID, &a.MemberName, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("report scan: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		rep.Attendances = append(rep.Attendances, a)
	}
	return rep, rows.Err()
}

func (s *Store) PruneAttendanceOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM "UserAttendance" WHERE "createdAt" < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune attendance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(r rowScanner) (*store.MemberRecord, error) {
	var (
		rec        store.MemberRecord
		start, end sql.NullTime
	)
	if err := r.Scan(
		&rec.ID, &rec.Name, &rec.Fingerprint, &rec.PhoneNumber, &rec.Active,
		&start, &end, &rec.Remark,
		&rec.CreatedAt, &rec.UpdatedAt,
		&rec.AttendanceCount,
	); err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time.UTC()
		rec.MembershipStart = &t
	}
	if end.Valid {
		t := end.Time.UTC()
		rec.MembershipEnd = &t
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ store.Store = (*Store)(nil)
