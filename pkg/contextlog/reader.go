// Package contextlog reads the append-only telemetry log produced by the
// host application and appends TGT's own audit events back into it.
//
// The log is laid out as one JSONL file per hour:
//
//	<dir>/ctx-YYYYMMDDHH.jsonl
//
// Files are append-only and never rewritten. TGT treats the log as
// authoritative and immutable; the only writes it performs are audit
// emissions through Auditor.
package contextlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fieldgate/taskgen/pkg/models"
)

// FilePrefix and FileSuffix define the hourly file naming scheme.
const (
	FilePrefix     = "ctx-"
	FileSuffix     = ".jsonl"
	hourFileFormat = "2006010215"
)

// maxLineBytes bounds a single telemetry line. Oversized lines are treated
// as corrupt.
const maxLineBytes = 1 << 20

// EventReadError indicates the telemetry directory itself could not be
// read. Individual corrupt lines never produce this error.
type EventReadError struct {
	Dir string
	Err error
}

func (e *EventReadError) Error() string {
	return fmt.Sprintf("reading telemetry directory %s: %v", e.Dir, e.Err)
}

func (e *EventReadError) Unwrap() error { return e.Err }

// LoadResult carries the events of a window plus load diagnostics.
type LoadResult struct {
	Events       []models.Event
	CorruptLines int
	FilesRead    int
}

// Reader loads telemetry events from an hourly JSONL directory.
type Reader struct {
	dir string

	// now is swappable for tests.
	now func() time.Time
}

// NewReader creates a reader over the given telemetry directory.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir, now: time.Now}
}

// Dir returns the telemetry directory the reader operates on.
func (r *Reader) Dir() string { return r.dir }

// Load reads the minimum set of hourly files intersecting
// [now−window, now] and returns their events sorted by ts ascending.
// Malformed lines are counted and skipped; they never abort the load.
// Only a missing directory or a permission failure yields an error.
func (r *Reader) Load(window time.Duration) (*LoadResult, error) {
	now := r.now().UTC()
	return r.LoadRange(now.Add(-window), now)
}

// LoadRange reads events with timestamps in [from, to).
func (r *Reader) LoadRange(from, to time.Time) (*LoadResult, error) {
	if _, err := os.Stat(r.dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, &EventReadError{Dir: r.dir, Err: err}
		}
		return nil, &EventReadError{Dir: r.dir, Err: err}
	}

	result := &LoadResult{}
	for _, path := range r.hourFiles(from, to) {
		if err := r.loadFile(path, from, to, result); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil, &EventReadError{Dir: r.dir, Err: err}
			}
			// A file that vanished between listing and open is not fatal.
			continue
		}
		result.FilesRead++
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		return result.Events[i].TS < result.Events[j].TS
	})
	return result, nil
}

// hourFiles returns the paths of the hourly files whose ranges intersect
// [from, to), oldest first. Only files that exist are returned.
func (r *Reader) hourFiles(from, to time.Time) []string {
	var paths []string
	hour := from.UTC().Truncate(time.Hour)
	end := to.UTC()
	for !hour.After(end) {
		name := FilePrefix + hour.Format(hourFileFormat) + FileSuffix
		path := filepath.Join(r.dir, name)
		if _, err := os.Stat(path); err == nil {
			paths = append(paths, path)
		}
		hour = hour.Add(time.Hour)
	}
	return paths
}

// loadFile streams one hourly file, appending in-window events to result.
// Events before the window start are skipped without aborting: only the
// oldest boundary file can contain them, which bounds the wasted I/O to a
// single file.
func (r *Reader) loadFile(path string, from, to time.Time, result *LoadResult) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev models.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			result.CorruptLines++
			continue
		}
		ts := ev.Timestamp()
		if ts.IsZero() {
			result.CorruptLines++
			continue
		}
		if ts.Before(from) || !ts.Before(to) {
			continue
		}
		result.Events = append(result.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		// A torn final line mid-append reads as corrupt, not fatal.
		result.CorruptLines++
	}
	return nil
}
