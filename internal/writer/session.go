package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultOutputDir is where session directories are created
const DefaultOutputDir = "output"

const (
	recordsFile = "records.jsonl"
	reportsFile = "reports.jsonl"
	rawFile     = "raw_responses.jsonl"
)

// SessionManager manages session directories and files
type SessionManager struct {
	outputDir  string
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a session directory under outputDir (DefaultOutputDir
// when empty). A non-empty resumeFromSession reopens an existing session so new
// outcomes are appended to it.
func NewSessionManager(logger *slog.Logger, outputDir, resumeFromSession string) (*SessionManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var sessionDir string
	if resumeFromSession != "" {
		if err := ValidateSessionPath(outputDir, resumeFromSession); err != nil {
			return nil, err
		}
		sessionDir = filepath.Join(outputDir, resumeFromSession)
		if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("session directory not found: %s", sessionDir)
		}
		logger.Info("Resuming existing session", "path", sessionDir)
	} else {
		sessionDir = filepath.Join(outputDir, newSessionName(time.Now()))

		if err := os.MkdirAll(sessionDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}

		logger.Info("Created new session directory", "path", sessionDir)
	}

	return &SessionManager{
		outputDir:  outputDir,
		sessionDir: sessionDir,
		logger:     logger,
	}, nil
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetRecordsPath returns the JSONL file holding repaired records
func (sm *SessionManager) GetRecordsPath() string {
	return filepath.Join(sm.sessionDir, recordsFile)
}

// GetReportsPath returns the JSONL file holding one validation report per response
func (sm *SessionManager) GetReportsPath() string {
	return filepath.Join(sm.sessionDir, reportsFile)
}

// GetRawPath returns the JSONL file holding the unmodified model responses
func (sm *SessionManager) GetRawPath() string {
	return filepath.Join(sm.sessionDir, rawFile)
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, "session.log")
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, "config.toml.bak")
}

// BackupConfig copies the config file to the session directory
func (sm *SessionManager) BackupConfig(configPath string) error {
	source, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	backupPath := sm.GetConfigBackupPath()
	if err := os.WriteFile(backupPath, source, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}

	sm.logger.Info("Backed up config file", "path", backupPath)
	return nil
}
