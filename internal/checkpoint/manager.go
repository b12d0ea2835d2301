// Package checkpoint records which generation runs of a session have
// finished so an interrupted generate can be resumed with --session.
package checkpoint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/testforge/pkg/models"
)

const CheckpointFilename = "checkpoint.json"

// RunStats are the per-session counters persisted with the checkpoint
type RunStats struct {
	Usable   int `json:"usable"`
	Unusable int `json:"unusable"`
	Records  int `json:"records"`
}

// Checkpoint is the on-disk state of a generation session
type Checkpoint struct {
	SessionID     string       `json:"session_id"`
	CreatedAt     time.Time    `json:"created_at"`
	LastSavedAt   time.Time    `json:"last_saved_at"`
	Shape         models.Shape `json:"shape"`
	Fingerprint   string       `json:"fingerprint"`
	TotalRuns     int          `json:"total_runs"`
	CompletedRuns map[int]bool `json:"completed_runs"`
	Complete      bool         `json:"complete"`
	Stats         RunStats     `json:"stats"`
}

// Manager handles checkpoint operations with async write support
type Manager struct {
	sessionDir string
	checkpoint *Checkpoint
	mu         sync.RWMutex
	logger     *slog.Logger
	interval   int // Save every N runs
	runCounter int // Counter since last save

	// Async write support
	writeChan   chan *Checkpoint
	writeWg     sync.WaitGroup
	stopWriter  chan struct{}
	writerError error
	errorMu     sync.Mutex
	writeMu     sync.Mutex // Protects concurrent disk writes
}

// Fingerprint identifies the inputs a checkpoint is valid for
func Fingerprint(shape models.Shape, modelName, prompt string) string {
	hash := sha256.Sum256([]byte(string(shape) + "\x00" + modelName + "\x00" + prompt))
	return fmt.Sprintf("%x", hash[:8])
}

// NewManager starts a fresh checkpoint for totalRuns runs
func NewManager(sessionDir string, shape models.Shape, fingerprint string, totalRuns, interval int, logger *slog.Logger) *Manager {
	return newManager(sessionDir, &Checkpoint{
		SessionID:     uuid.New().String(),
		CreatedAt:     time.Now(),
		Shape:         shape,
		Fingerprint:   fingerprint,
		TotalRuns:     totalRuns,
		CompletedRuns: make(map[int]bool),
	}, interval, logger)
}

// NewManagerFromCheckpoint continues an existing checkpoint
func NewManagerFromCheckpoint(sessionDir string, cp *Checkpoint, interval int, logger *slog.Logger) *Manager {
	if cp.CompletedRuns == nil {
		cp.CompletedRuns = make(map[int]bool)
	}
	return newManager(sessionDir, cp, interval, logger)
}

func newManager(sessionDir string, cp *Checkpoint, interval int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < 1 {
		interval = 1
	}
	m := &Manager{
		sessionDir: sessionDir,
		checkpoint: cp,
		logger:     logger.With("component", "checkpoint"),
		interval:   interval,
		writeChan:  make(chan *Checkpoint, 10), // Buffer up to 10 pending writes
		stopWriter: make(chan struct{}),
	}
	m.startAsyncWriter()
	return m
}

// startAsyncWriter starts the background writer goroutine
func (m *Manager) startAsyncWriter() {
	m.writeWg.Add(1)
	go func() {
		defer m.writeWg.Done()
		for {
			select {
			case cp := <-m.writeChan:
				if err := m.writeCheckpointToDisk(cp); err != nil {
					m.errorMu.Lock()
					m.writerError = err
					m.errorMu.Unlock()
					m.logger.Error("Failed to write checkpoint", "error", err)
				}
			case <-m.stopWriter:
				// Drain remaining writes before stopping
				for len(m.writeChan) > 0 {
					cp := <-m.writeChan
					if err := m.writeCheckpointToDisk(cp); err != nil {
						m.logger.Error("Failed to write checkpoint during shutdown", "error", err)
					}
				}
				return
			}
		}
	}()
}

// writeCheckpointToDisk writes via a temp file and rename
func (m *Manager) writeCheckpointToDisk(cp *Checkpoint) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	checkpointPath := filepath.Join(m.sessionDir, CheckpointFilename)
	tempPath := checkpointPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, checkpointPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint saved", "path", checkpointPath, "completed", len(cp.CompletedRuns))
	return nil
}

// Save queues the checkpoint for an async write
func (m *Manager) Save() error {
	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	cpCopy := m.copyCheckpoint()
	m.mu.Unlock()

	select {
	case m.writeChan <- cpCopy:
		return nil
	default:
		m.logger.Warn("Checkpoint write buffer full, writing synchronously")
		return m.writeCheckpointToDisk(cpCopy)
	}
}

// SaveSync writes the checkpoint before returning
func (m *Manager) SaveSync() error {
	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	cpCopy := m.copyCheckpoint()
	m.mu.Unlock()

	return m.writeCheckpointToDisk(cpCopy)
}

// copyCheckpoint creates a deep copy; callers hold mu
func (m *Manager) copyCheckpoint() *Checkpoint {
	cp := *m.checkpoint
	cp.CompletedRuns = make(map[int]bool, len(m.checkpoint.CompletedRuns))
	for k, v := range m.checkpoint.CompletedRuns {
		cp.CompletedRuns[k] = v
	}
	return &cp
}

// Load reads the checkpoint of a session directory
func Load(sessionDir string, logger *slog.Logger) (*Checkpoint, error) {
	checkpointPath := filepath.Join(sessionDir, CheckpointFilename)

	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	if logger != nil {
		logger.Info("Checkpoint loaded",
			"session_id", cp.SessionID,
			"shape", cp.Shape,
			"completed_runs", len(cp.CompletedRuns),
			"total_runs", cp.TotalRuns)
	}

	return &cp, nil
}

// MarkRunComplete records a finished run, saving every interval runs
func (m *Manager) MarkRunComplete(run int, usable bool, records int) error {
	m.mu.Lock()
	m.checkpoint.CompletedRuns[run] = true
	if usable {
		m.checkpoint.Stats.Usable++
		m.checkpoint.Stats.Records += records
	} else {
		m.checkpoint.Stats.Unusable++
	}
	m.runCounter++
	shouldSave := m.runCounter >= m.interval
	if shouldSave {
		m.runCounter = 0
	}
	m.mu.Unlock()

	if shouldSave {
		return m.Save()
	}
	return nil
}

// Finish saves synchronously, flagging the session complete when every run is done
func (m *Manager) Finish() error {
	m.mu.Lock()
	m.checkpoint.Complete = len(m.checkpoint.CompletedRuns) >= m.checkpoint.TotalRuns
	m.mu.Unlock()

	return m.SaveSync()
}

// PendingRuns returns the run indices not yet completed, in order
func (m *Manager) PendingRuns() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return PendingRuns(m.checkpoint)
}

// GetCheckpoint returns a copy of the current checkpoint
func (m *Manager) GetCheckpoint() *Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyCheckpoint()
}

// Close stops the async writer and waits for pending writes
func (m *Manager) Close() error {
	close(m.stopWriter)
	m.writeWg.Wait()

	m.errorMu.Lock()
	defer m.errorMu.Unlock()
	return m.writerError
}

// PendingRuns lists the incomplete run indices of cp in ascending order
func PendingRuns(cp *Checkpoint) []int {
	pending := make([]int, 0, cp.TotalRuns)
	for i := 0; i < cp.TotalRuns; i++ {
		if !cp.CompletedRuns[i] {
			pending = append(pending, i)
		}
	}
	return pending
}
