package writer

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// SessionInfo describes one session directory on disk
type SessionInfo struct {
	Name    string    `json:"name" yaml:"name"`
	Records int       `json:"records" yaml:"records"`
	Reports int       `json:"reports" yaml:"reports"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// ListSessions returns the session directories under outputDir, newest first.
// A missing outputDir yields no sessions.
func ListSessions(outputDir string) ([]SessionInfo, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if !entry.IsDir() || !sessionNameRegex.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dir := filepath.Join(outputDir, entry.Name())
		sessions = append(sessions, SessionInfo{
			Name:    entry.Name(),
			Records: countLines(filepath.Join(dir, recordsFile)),
			Reports: countLines(filepath.Join(dir, reportsFile)),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Name > sessions[j].Name
	})
	return sessions, nil
}

// countLines returns the number of non-empty lines, or 0 if the file is unreadable
func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	n := 0
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			n++
		}
	}
	return n
}
