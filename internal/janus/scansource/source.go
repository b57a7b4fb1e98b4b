// Package scansource reads the single-slot "latest scan" location the
// fingerprint reader overwrites after every successful match.
//
// The slot holds "subjectId:scanTimestampMs".  It is not a queue: readers see
// only whatever was written last, possibly many times over.
package scansource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

var ErrMalformedScan = errors.New("malformed scan slot")

// Source returns the current slot content.  A nil scan with a nil error
// means the slot is empty.
type Source interface {
	Latest(ctx context.Context) (*types.Scan, error)
}

// Writer overwrites the slot.  Used by the scan simulator and in tests.
type Writer interface {
	Write(ctx context.Context, scan types.Scan) error
}

// ParseSlot decodes slot content.  Blank content is an empty slot; anything
// else that is not two positive integers separated by ':' is
// ErrMalformedScan.
func ParseSlot(raw string) (*types.Scan, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	idPart, tsPart, ok := strings.Cut(raw, ":")
	idPart = strings.TrimSpace(idPart)
	tsPart = strings.TrimSpace(tsPart)
	if !ok || idPart == "" || tsPart == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedScan, raw)
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: bad subject id %q", ErrMalformedScan, idPart)
	}
	ms, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil || ms <= 0 {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformedScan, tsPart)
	}

	return &types.Scan{SubjectID: id, ScannedAt: time.UnixMilli(ms).UTC()}, nil
}

// FormatSlot is the inverse of ParseSlot.
func FormatSlot(scan types.Scan) string {
	return strconv.FormatInt(scan.SubjectID, 10) + ":" + strconv.FormatInt(scan.ScannedAt.UnixMilli(), 10)
}
