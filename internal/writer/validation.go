package writer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// sessionTimeLayout names session directories: session_2026-10-19T14-30-00
const sessionTimeLayout = "2006-01-02T15-04-05"

var sessionNameRegex = regexp.MustCompile(`^session_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}$`)

// newSessionName returns the directory name for a session started at t
func newSessionName(t time.Time) string {
	return "session_" + t.Format(sessionTimeLayout)
}

// ValidateSessionPath checks that sessionName is a plain session directory
// name that resolves inside outputDir, so --session cannot point elsewhere.
func ValidateSessionPath(outputDir, sessionName string) error {
	switch {
	case sessionName == "":
		return fmt.Errorf("session name cannot be empty")
	case strings.Contains(sessionName, ".."):
		return fmt.Errorf("invalid session name: contains '..' (path traversal attempt)")
	case filepath.IsAbs(sessionName):
		return fmt.Errorf("invalid session name: must be relative path")
	case strings.ContainsAny(sessionName, `/\`):
		return fmt.Errorf("invalid session name: must be directory name without path separators")
	case !sessionNameRegex.MatchString(sessionName):
		return fmt.Errorf("invalid session name format: expected 'session_YYYY-MM-DDTHH-MM-SS', got %q", sessionName)
	}

	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	absOutput, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(outputDir, sessionName))
	if err != nil {
		return fmt.Errorf("failed to resolve session path: %w", err)
	}

	// Separator suffix so "/var/out" does not match "/var/out-other"
	if !strings.HasPrefix(absPath, absOutput+string(filepath.Separator)) {
		return fmt.Errorf("session path escapes output directory")
	}
	return nil
}
