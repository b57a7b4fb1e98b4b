package scansource

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// MemorySource holds the slot in process.  Raw content is kept as text so
// tests can exercise malformed slots the same way the file backend would.
type MemorySource struct {
	mu  sync.Mutex
	raw string
	err error
}

func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

func (s *MemorySource) Latest(_ context.Context) (*types.Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return ParseSlot(s.raw)
}

func (s *MemorySource) Write(_ context.Context, scan types.Scan) error {
	s.SetRaw(FormatSlot(scan))
	return nil
}

// SetRaw overwrites the slot with arbitrary text.
func (s *MemorySource) SetRaw(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
}

// FailWith makes Latest return err until cleared with nil.
func (s *MemorySource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
