package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/store"
)

// Store is an in-memory member directory and attendance log.  It is intended
// for tests and the "memory" driver in dev.
type Store struct {
	mu          sync.RWMutex
	members     map[int64]store.MemberRecord
	attendances []store.AttendanceRecord
	nextID      int64

	// failAppend, when set, is returned by AppendAttendance.  Test-only.
	failAppend error
}

func New() *Store {
	return &Store{members: make(map[int64]store.MemberRecord)}
}

func (s *Store) FindWithAttendanceCount(_ context.Context, id int64) (*store.MemberRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.AttendanceCount = s.countLocked(id)
	return &m, nil
}

func (s *Store) ListMembers(_ context.Context) ([]store.MemberRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.MemberRecord, 0, len(s.members))
	for id, m := range s.members {
		m.AttendanceCount = s.countLocked(id)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateMember(_ context.Context, rec store.MemberRecord) (*store.MemberRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.members[rec.ID]; exists {
		return nil, store.ErrConflict
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	rec.AttendanceCount = 0
	s.members[rec.ID] = rec
	return &rec, nil
}

func (s *Store) UpdateMembership(_ context.Context, id int64, upd store.MembershipUpdate) (*store.MemberRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	m.Active = upd.Active
	m.MembershipStart = upd.MembershipStart
	m.MembershipEnd = upd.MembershipEnd
	m.UpdatedAt = upd.UpdatedAt
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	s.members[id] = m
	m.AttendanceCount = s.countLocked(id)
	return &m, nil
}

func (s *Store) LatestMemberID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	for id := range s.members {
		if id > latest {
			latest = id
		}
	}
	return latest, nil
}

func (s *Store) AppendAttendance(_ context.Context, memberID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppend != nil {
		return s.failAppend
	}
	m, ok := s.members[memberID]
	if !ok {
		return store.ErrNotFound
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.nextID++
	s.attendances = append(s.attendances, store.AttendanceRecord{
		ID:         s.nextID,
		MemberID:   memberID,
		MemberName: m.Name,
		CreatedAt:  at,
	})
	return nil
}

func (s *Store) AttendanceReport(_ context.Context, q store.ReportQuery) (*store.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rep := &store.Report{}
	for _, m := range s.members {
		if m.Active {
			rep.Stats.TotalMembers++
		}
		if !m.CreatedAt.Before(q.MonthStart) {
			rep.Stats.NewMembersThisMonth++
		}
	}
	for _, a := range s.attendances {
		if a.CreatedAt.Before(q.DayStart) || !a.CreatedAt.Before(q.DayEnd) {
			continue
		}
		rep.Attendances = append(rep.Attendances, a)
	}
	sort.SliceStable(rep.Attendances, func(i, j int) bool {
		return rep.Attendances[i].CreatedAt.Before(rep.Attendances[j].CreatedAt)
	})
	rep.Stats.TodayAttendance = int64(len(rep.Attendances))
	return rep, nil
}

func (s *Store) PruneAttendanceOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attendances[:0]
	var deleted int64
	for _, a := range s.attendances {
		if a.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	s.attendances = kept
	return deleted, nil
}

// Attendances returns a copy of all recorded attendance rows.  Test-only helper.
func (s *Store) Attendances() []store.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AttendanceRecord, len(s.attendances))
	copy(out, s.attendances)
	return out
}

// FailAppends makes every subsequent AppendAttendance return err; nil restores
// normal behaviour.  Test-only helper.
func (s *Store) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = err
}

func (s *Store) countLocked(id int64) int64 {
	var n int64
	for _, a := range s.attendances {
		if a.MemberID == id {
			n++
		}
	}
	return n
}

var _ store.Store = (*Store)(nil)
