package contextlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audit act verbs emitted by TGT.
const (
	AuditActSchedulerRun = "taskgen_scheduler_run"
	AuditActAutoApprove  = "taskgen_auto_approve"
	AuditActAnomaly      = "taskgen_anomaly"
	AuditActCancelled    = "taskgen_cancelled"
)

// Auditor appends TGT's own audit events into the context log so that
// scheduler runs, auto-approval decisions, and anomalies are visible in
// the same telemetry stream the analyzers read.
type Auditor struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewAuditor creates an auditor writing into the given context log
// directory.
func NewAuditor(dir string) *Auditor {
	return &Auditor{dir: dir, now: time.Now}
}

// Emit appends one audit line with the standard envelope
// {id, ts, actor:"system", act, status} plus the given extra fields.
// Failures are logged and swallowed: auditing never blocks the pipeline.
func (a *Auditor) Emit(act, status string, fields map[string]any) {
	now := a.now().UTC()
	record := map[string]any{
		"id":     "audit-" + uuid.NewString(),
		"ts":     now.Format(time.RFC3339),
		"actor":  "system",
		"act":    act,
		"status": status,
	}
	for k, v := range fields {
		if _, reserved := record[k]; !reserved {
			record[k] = v
		}
	}

	line, err := json.Marshal(record)
	if err != nil {
		slog.Error("Failed to marshal audit event", "act", act, "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.append(now, line); err != nil {
		slog.Error("Failed to append audit event", "act", act, "error", err)
	}
}

// append writes one line to the current hourly file, creating the
// directory and file as needed. O_APPEND keeps the write atomic with
// respect to the host application's own appends.
func (a *Auditor) append(now time.Time, line []byte) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating context log dir: %w", err)
	}
	name := FilePrefix + now.Format(hourFileFormat) + FileSuffix
	f, err := os.OpenFile(filepath.Join(a.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}
