package scansource

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

// ReadEnrollments parses the reader's template database, one
// "id:::fingerprint" entry per line.  Lines without a positive integer id are
// skipped.  A missing file yields no entries.
func ReadEnrollments(path string) ([]types.PendingEnrollment, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open enrollment db: %w", err)
	}
	defer f.Close()

	var out []types.PendingEnrollment
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		idPart, fp, _ := strings.Cut(sc.Text(), ":::")
		id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		out = append(out, types.PendingEnrollment{ID: id, Fingerprint: strings.TrimSpace(fp)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read enrollment db: %w", err)
	}
	return out, nil
}
