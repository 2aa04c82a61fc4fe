package analyzer

import (
	"os"
	"path/filepath"
)

// DirDocChecker reports a tool as documented when a markdown file named
// after it exists under the docs directory.
type DirDocChecker struct {
	dir string
}

// NewDirDocChecker creates a checker over the given docs directory.
func NewDirDocChecker(dir string) *DirDocChecker {
	return &DirDocChecker{dir: dir}
}

func (d *DirDocChecker) IsDocumented(tool string) bool {
	if d.dir == "" || tool == "" {
		return false
	}
	// Reject path traversal in tool names coming from telemetry.
	if filepath.Base(tool) != tool {
		return false
	}
	_, err := os.Stat(filepath.Join(d.dir, tool+".md"))
	return err == nil
}
