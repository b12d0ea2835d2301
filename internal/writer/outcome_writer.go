package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/lamim/testforge/internal/pipeline"
	"github.com/lamim/testforge/pkg/models"
)

// RecordLine is one repaired record as persisted in records.jsonl
type RecordLine struct {
	RunID  string               `json:"run_id"`
	Index  int                  `json:"index"`
	Shape  models.Shape         `json:"shape"`
	Record models.Record        `json:"record"`
	Log    models.ProcessingLog `json:"log"`
}

// ReportLine is one response's validation outcome as persisted in reports.jsonl
type ReportLine struct {
	RunID          string                   `json:"run_id"`
	Shape          models.Shape             `json:"shape"`
	Report         models.Report            `json:"report"`
	Summary        models.ProcessingSummary `json:"summary"`
	SchemaFailures []pipeline.SchemaFailure `json:"schema_failures,omitempty"`
	Records        int                      `json:"records"`
	DurationMS     int64                    `json:"duration_ms"`
}

// RawLine keeps the unmodified model response next to its run ID
type RawLine struct {
	RunID    string `json:"run_id"`
	Response string `json:"response"`
}

// OutcomeWriter appends pipeline outcomes to the session's JSONL files.
// It is safe for concurrent use.
type OutcomeWriter struct {
	records *os.File
	reports *os.File
	raw     *os.File
	mu      sync.Mutex
	logger  *slog.Logger

	written  int
	rejected int
}

// NewOutcomeWriter opens (or creates) the session's JSONL files for appending
func NewOutcomeWriter(sessionMgr *SessionManager, logger *slog.Logger) (*OutcomeWriter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	open := func(path string) (*os.File, error) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		return f, nil
	}

	records, err := open(sessionMgr.GetRecordsPath())
	if err != nil {
		return nil, err
	}
	reports, err := open(sessionMgr.GetReportsPath())
	if err != nil {
		_ = records.Close()
		return nil, err
	}
	raw, err := open(sessionMgr.GetRawPath())
	if err != nil {
		_ = records.Close()
		_ = reports.Close()
		return nil, err
	}

	logger.Info("Opened output files", "dir", sessionMgr.GetSessionDir())

	return &OutcomeWriter{
		records: records,
		reports: reports,
		raw:     raw,
		logger:  logger.With("component", "writer"),
	}, nil
}

// WriteOutcome appends the outcome's report and, when the response was
// usable, its repaired records. rawResponse is stored when non-empty.
func (w *OutcomeWriter) WriteOutcome(outcome *pipeline.Outcome, rawResponse string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if rawResponse != "" {
		if err := writeLine(w.raw, RawLine{RunID: outcome.RunID, Response: rawResponse}); err != nil {
			return err
		}
	}

	report := ReportLine{
		RunID:          outcome.RunID,
		Shape:          outcome.Shape,
		Report:         outcome.Report,
		Summary:        outcome.Summary,
		SchemaFailures: outcome.SchemaFailures,
		DurationMS:     outcome.Duration.Milliseconds(),
	}

	if !outcome.Usable() {
		w.rejected++
		w.logger.Debug("Response not usable, records withheld",
			"run_id", outcome.RunID,
			"errors", len(outcome.Report.Errors))
		return writeLine(w.reports, report)
	}

	for i, rec := range outcome.Repaired {
		line := RecordLine{
			RunID:  outcome.RunID,
			Index:  i,
			Shape:  outcome.Shape,
			Record: rec,
		}
		if i < len(outcome.Logs) {
			line.Log = outcome.Logs[i]
		}
		if err := writeLine(w.records, line); err != nil {
			return err
		}
	}
	w.written += len(outcome.Repaired)
	report.Records = len(outcome.Repaired)

	return writeLine(w.reports, report)
}

// Counts returns the number of records written and responses withheld
func (w *OutcomeWriter) Counts() (written, rejected int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.rejected
}

func writeLine(f *os.File, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal line: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name(), err)
	}
	return nil
}

// Close syncs and closes every file
func (w *OutcomeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	for _, f := range []*os.File{w.records, w.reports, w.raw} {
		if err := f.Sync(); err != nil {
			w.logger.Warn("Failed to sync output file", "path", f.Name(), "error", err)
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", f.Name(), err)
		}
	}

	w.logger.Info("Closed output files",
		"records_written", w.written,
		"responses_rejected", w.rejected)
	return firstErr
}
