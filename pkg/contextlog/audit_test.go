package contextlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditorEmitEnvelope(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC)

	a := NewAuditor(dir)
	a.now = func() time.Time { return now }

	a.Emit(AuditActSchedulerRun, "ok", map[string]any{
		"tasks_saved": 3,
		"actor":       "intruder", // reserved, must not override the envelope
	})

	name := FilePrefix + now.Format(hourFileFormat) + FileSuffix
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))

	assert.True(t, strings.HasPrefix(record["id"].(string), "audit-"))
	assert.Equal(t, "2026-08-24T10:15:00Z", record["ts"])
	assert.Equal(t, "system", record["actor"])
	assert.Equal(t, AuditActSchedulerRun, record["act"])
	assert.Equal(t, "ok", record["status"])
	assert.Equal(t, float64(3), record["tasks_saved"])
}

func TestAuditorEmitAppendsLines(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)

	a := NewAuditor(dir)
	a.now = func() time.Time { return now }

	a.Emit(AuditActAutoApprove, "ok", nil)
	a.Emit(AuditActAutoApprove, "skipped", map[string]any{"gate": "confidence"})

	name := FilePrefix + now.Format(hourFileFormat) + FileSuffix
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}

func TestAuditEventsReadableByReader(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)

	a := NewAuditor(dir)
	a.now = func() time.Time { return now }
	a.Emit(AuditActAnomaly, "error", map[string]any{"detail": "spike"})

	r := newTestReader(dir, now.Add(time.Minute))
	res, err := r.Load(time.Hour)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, AuditActAnomaly, res.Events[0].Act)
	assert.Zero(t, res.CorruptLines)
}
