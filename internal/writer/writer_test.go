package writer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/testforge/internal/config"
	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/pkg/models"
)

func quietLogger() *slog.Logger {
	return NewConsoleLogger(&bytes.Buffer{}, slog.LevelError)
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		out = append(out, line)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestSessionManager(t *testing.T) {
	dir := t.TempDir()

	sm, err := NewSessionManager(quietLogger(), dir, "")
	require.NoError(t, err)

	name := filepath.Base(sm.GetSessionDir())
	assert.NoError(t, ValidateSessionPath(dir, name))
	assert.Equal(t, filepath.Join(sm.GetSessionDir(), "records.jsonl"), sm.GetRecordsPath())

	resumed, err := NewSessionManager(quietLogger(), dir, name)
	require.NoError(t, err)
	assert.Equal(t, sm.GetSessionDir(), resumed.GetSessionDir())

	_, err = NewSessionManager(quietLogger(), dir, "session_1999-01-01T00-00-00")
	assert.Error(t, err)

	_, err = NewSessionManager(quietLogger(), dir, "../escape")
	assert.Error(t, err)
}

func TestBackupConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[pipeline]\nconcurrency = 2\n"), 0644))

	sm, err := NewSessionManager(quietLogger(), filepath.Join(dir, "out"), "")
	require.NoError(t, err)
	require.NoError(t, sm.BackupConfig(cfgPath))

	data, err := os.ReadFile(sm.GetConfigBackupPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "concurrency = 2")
}

func TestOutcomeWriter(t *testing.T) {
	sm, err := NewSessionManager(quietLogger(), t.TempDir(), "")
	require.NoError(t, err)
	w, err := NewOutcomeWriter(sm, quietLogger())
	require.NoError(t, err)

	cfg := config.Default()
	p := pipeline.New(cfg.Pipeline, cfg.Repair, quietLogger())

	good := `{"test_points": [{"test_point_id": "TP-1", "title": "a", "description": "d"}, {"test_point_id": "TP-2", "title": "b", "description": "d"}]}`
	bad := "nothing to see"

	require.NoError(t, w.WriteOutcome(p.Process(good, models.ShapeTestPoints), good))
	require.NoError(t, w.WriteOutcome(p.Process(bad, models.ShapeTestPoints), bad))

	written, rejected := w.Counts()
	assert.Equal(t, 2, written)
	assert.Equal(t, 1, rejected)
	require.NoError(t, w.Close())

	records := readLines(t, sm.GetRecordsPath())
	require.Len(t, records, 2)
	assert.Equal(t, "TP-2", records[1]["record"].(map[string]any)[models.FieldTestPointID])

	reports := readLines(t, sm.GetReportsPath())
	require.Len(t, reports, 2)
	assert.Equal(t, true, reports[0]["report"].(map[string]any)["valid"])
	assert.Equal(t, false, reports[1]["report"].(map[string]any)["valid"])
	assert.EqualValues(t, 0, reports[1]["records"])

	raws := readLines(t, sm.GetRawPath())
	require.Len(t, raws, 2)
	assert.Equal(t, bad, raws[1]["response"])
}

func TestSetupLoggerWritesBothDestinations(t *testing.T) {
	sm, err := NewSessionManager(quietLogger(), t.TempDir(), "")
	require.NoError(t, err)

	var console bytes.Buffer
	logger, logFile, err := SetupLogger(sm, &console, slog.LevelInfo)
	require.NoError(t, err)

	logger.With("component", "test").Info("hello", "n", 1)
	logger.Debug("file only")
	require.NoError(t, logFile.Close())

	assert.Contains(t, console.String(), "hello")
	assert.NotContains(t, console.String(), "file only")

	data, err := os.ReadFile(sm.GetLogPath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"component":"test"`)
	assert.Contains(t, lines[1], `"msg":"file only"`)
}

func TestListSessions(t *testing.T) {
	dir := t.TempDir()

	older := filepath.Join(dir, "session_2026-01-01T10-00-00")
	newer := filepath.Join(dir, "session_2026-02-01T10-00-00")
	require.NoError(t, os.MkdirAll(older, 0755))
	require.NoError(t, os.MkdirAll(newer, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "not_a_session"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(newer, "records.jsonl"), []byte("{}\n{}\n\n{}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(newer, "reports.jsonl"), []byte("{}\n"), 0644))

	sessions, err := ListSessions(dir)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "session_2026-02-01T10-00-00", sessions[0].Name)
	assert.Equal(t, 3, sessions[0].Records)
	assert.Equal(t, 1, sessions[0].Reports)
	assert.Equal(t, 0, sessions[1].Records)
}

func TestListSessionsMissingDir(t *testing.T) {
	sessions, err := ListSessions(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
