package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Janus/server/internal/grpcapi"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/scansource"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/service"
	"github.com/BrandonDHaskell/Janus/server/internal/janus/types"
)

type testPaths struct {
	config string
	db     string
	slot   string
}

// writeTestConfig points a sqlite store and a file scan slot at a temp dir.
func writeTestConfig(t *testing.T) testPaths {
	t.Helper()
	t.Setenv("JANUS_CONFIG", "")
	t.Setenv("JANUS_DB_DRIVER", "")
	t.Setenv("JANUS_SCAN_SOURCE", "")

	dir := t.TempDir()
	p := testPaths{
		config: filepath.Join(dir, "janus.yaml"),
		db:     filepath.Join(dir, "janus.db"),
		slot:   filepath.Join(dir, "latest-scan.txt"),
	}
	body := fmt.Sprintf(`
env: prod
db_driver: sqlite
db_path: %q
scan_source: file
scan_file: %q
time_zone: UTC
grpc_addr: ""
`, p.db, p.slot)
	require.NoError(t, os.WriteFile(p.config, []byte(body), 0o644))
	return p
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestScanCommand_WritesSlot(t *testing.T) {
	p := writeTestConfig(t)

	out, err := run(t, "-c", p.config, "scan", "42", "--at", "2025-03-14T18:30:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "42:1741977000000")

	scan, err := scansource.NewFileSource(p.slot).Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, scan)
	assert.EqualValues(t, 42, scan.SubjectID)
	assert.True(t, scan.ScannedAt.Equal(time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)))
}

func TestScanCommand_RejectsBadInput(t *testing.T) {
	p := writeTestConfig(t)

	_, err := run(t, "-c", p.config, "scan", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))

	_, err = run(t, "-c", p.config, "scan", "42", "--at", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestMigrateAndMemberAdd(t *testing.T) {
	p := writeTestConfig(t)

	out, err := run(t, "-c", p.config, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "applied migrations [1]")

	out, err = run(t, "-c", p.config, "member", "add",
		"--id", "7", "--name", "Grace", "--fingerprint", "tmpl", "--end", "2025-12-31")
	require.NoError(t, err)

	var m types.Member
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.EqualValues(t, 7, m.ID)
	assert.True(t, m.Active)
	require.NotNil(t, m.MembershipEnd)
	assert.Equal(t, "2025-12-31", m.MembershipEnd.UTC().Format("2006-01-02"))

	_, err = run(t, "-c", p.config, "member", "add", "--id", "7", "--name", "Again", "--fingerprint", "x")
	require.ErrorIs(t, err, service.ErrMemberExists)
}

func TestConfigErrorsMapToExitCode(t *testing.T) {
	t.Setenv("JANUS_CONFIG", "")
	_, err := run(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "migrate")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestHealthCommand(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpcapi.NewServer(lis.Addr().String(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = srv.ServeListener(lis) }()
	t.Cleanup(srv.Stop)

	out, err := run(t, "health", "--addr", lis.Addr().String())
	require.NoError(t, err)
	assert.Contains(t, out, "janus.ScanSource: SERVING")

	srv.SetScanSourceServing(false)
	out, err = run(t, "health", "--addr", lis.Addr().String())
	require.Error(t, err)
	assert.Equal(t, ExitNotAvailable, ExitCode(err))
	assert.Contains(t, out, "NOT_SERVING")
}

func TestPrintSnapshot(t *testing.T) {
	buf := &bytes.Buffer{}
	valid, invalid := true, false

	printSnapshot(buf, service.Snapshot{})
	printSnapshot(buf, service.Snapshot{Valid: &invalid, Reason: types.ReasonMembershipExpired})
	printSnapshot(buf, service.Snapshot{Valid: &valid, Identity: &types.Identity{
		SubjectID: 42, DisplayName: "Ada", AttendanceCount: 3, Remark: "locker 12",
	}})

	out := buf.String()
	assert.Contains(t, out, "(screen cleared)")
	assert.Contains(t, out, "rejected: membership_expired")
	assert.Contains(t, out, "welcome Ada (#42)")
	assert.Contains(t, out, "visits=3")
	assert.Contains(t, out, `note="locker 12"`)
}
