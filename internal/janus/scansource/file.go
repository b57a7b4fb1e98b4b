package scansource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// FileSource reads the slot from the text file the reader driver rewrites.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Latest(_ context.Context) (*types.Scan, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		// The driver creates the file on first match.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan slot: %w", err)
	}
	return ParseSlot(string(b))
}

// Write replaces the file atomically so a concurrent Latest never sees a
// half-written slot.
func (s *FileSource) Write(_ context.Context, scan types.Scan) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir scan dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scan-*")
	if err != nil {
		return fmt.Errorf("create temp slot: %w", err)
	}
	if _, err := tmp.WriteString(FormatSlot(scan)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp slot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp slot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace scan slot: %w", err)
	}
	return nil
}
