// Package pipeline ties extraction, diagnosis, structural validation and
// field repair together for one model response at a time.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lamim/testforge/internal/advisor"
	"github.com/lamim/testforge/internal/config"
	"github.com/lamim/testforge/internal/extract"
	"github.com/lamim/testforge/internal/fields"
	"github.com/lamim/testforge/internal/metrics"
	"github.com/lamim/testforge/internal/repair"
	"github.com/lamim/testforge/internal/schema"
	"github.com/lamim/testforge/internal/structure"
	"github.com/lamim/testforge/internal/util"
	"github.com/lamim/testforge/pkg/models"
)

const logPreviewLen = 200

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMetrics records pipeline outcomes on c
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) {
		p.metrics = c
	}
}

// WithClock overrides the clock passed to each Repairer
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithProgress shows a progress bar while Batch runs
func WithProgress(enabled bool) Option {
	return func(p *Pipeline) {
		p.progress = enabled
	}
}

// Pipeline holds only configuration, so one instance may be shared between
// goroutines. Every Process call builds its own Repairer.
type Pipeline struct {
	cfg      config.PipelineConfig
	defaults fields.Defaults
	remarks  bool
	logger   *slog.Logger
	metrics  *metrics.Collector
	now      func() time.Time
	progress bool
}

// SchemaFailure is a repaired record that failed the JSON Schema check
type SchemaFailure struct {
	Index int    `json:"index" yaml:"index"`
	Error string `json:"error" yaml:"error"`
}

// Outcome is everything produced for one response
type Outcome struct {
	RunID          string                   `json:"run_id" yaml:"run_id"`
	Shape          models.Shape             `json:"shape" yaml:"shape"`
	Report         models.Report            `json:"report" yaml:"report"`
	Repaired       []models.Record          `json:"repaired,omitempty" yaml:"repaired,omitempty"`
	Logs           []models.ProcessingLog   `json:"logs,omitempty" yaml:"logs,omitempty"`
	Summary        models.ProcessingSummary `json:"summary" yaml:"summary"`
	SchemaFailures []SchemaFailure          `json:"schema_failures,omitempty" yaml:"schema_failures,omitempty"`
	Duration       time.Duration            `json:"duration_ns" yaml:"duration_ns"`

	// Result is the live validation result behind Report
	Result *models.ValidationResult `json:"-" yaml:"-"`
}

// Usable reports whether the response produced records that can be persisted
func (o *Outcome) Usable() bool {
	return o.Result.IsValid() && len(o.Repaired) > 0
}

// New creates a pipeline. A nil logger uses slog.Default().
func New(cfg config.PipelineConfig, rcfg config.RepairConfig, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ContextLines < 0 {
		cfg.ContextLines = advisor.DefaultContextLines
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	p := &Pipeline{
		cfg:      cfg,
		defaults: rcfg.FieldDefaults(),
		remarks:  rcfg.AppendRemarks,
		logger:   logger.With("component", "pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ExtractAndValidate locates, parses and structurally validates the JSON in a
// raw model response. It never returns nil and never panics on bad input.
func (p *Pipeline) ExtractAndValidate(raw string, shape models.Shape) *models.ValidationResult {
	start := time.Now()
	result := models.NewValidationResult()
	defer func() {
		p.metrics.RecordStage("validate", time.Since(start))
		p.metrics.RecordIssues(result.Issues())
		p.metrics.RecordResponse(shape, result.IsValid())
	}()

	if strings.TrimSpace(raw) == "" {
		result.AddError(models.CodeEmptyResponse, "model response is empty")
		p.metrics.RecordExtraction("")
		return result
	}

	text := raw
	if p.cfg.MaxResponseBytes > 0 && len(text) > p.cfg.MaxResponseBytes {
		text = truncateBytes(text, p.cfg.MaxResponseBytes)
		result.AddWarning(models.CodeResponseTruncated,
			fmt.Sprintf("response is %d bytes, only the first %d were examined", len(raw), len(text)))
	}
	if p.cfg.StripThinkTags && util.ContainsReasoning(text) {
		text = util.StripReasoning(text)
		p.logger.Debug("Stripped reasoning block", "remaining_length", len(text))
	}

	payload, ok := extract.Extract(text)
	p.metrics.RecordStage("extract", time.Since(start))
	if !ok {
		p.metrics.RecordExtraction("")
		result.Add(models.Issue{
			Severity:   models.SeverityError,
			Code:       models.CodeNoJSONFound,
			Message:    "no valid JSON found",
			Context:    util.TruncateString(strings.TrimSpace(text), logPreviewLen),
			Suggestion: "Ask the model to answer with a single JSON object",
		})
		p.logger.Warn("No JSON found in response", "response", util.TruncateString(raw, logPreviewLen))
		return result
	}
	p.metrics.RecordExtraction(payload.Method)
	result.Payload = &payload
	p.logger.Debug("Extracted payload", "method", payload.Method, "length", len(payload.Text))

	value, err := decode(payload.Text)
	if err != nil {
		value, ok = p.recoverSyntax(result, payload.Text, err)
		if !ok {
			return result
		}
	}

	result.Data = value
	structure.ValidateInto(result, value, shape)
	return result
}

// recoverSyntax attaches the diagnostics for a parse failure. With syntax
// repair enabled it also tries the conservative fixes and reparses.
func (p *Pipeline) recoverSyntax(result *models.ValidationResult, text string, parseErr error) (any, bool) {
	issues := advisor.Diagnose(text, parseErr, p.cfg.ContextLines)

	if p.cfg.AttemptSyntaxRepair {
		if value, err := decode(util.RepairJSON(text)); err == nil {
			result.AddWarning(models.CodeAutoRepaired,
				fmt.Sprintf("payload did not parse (%v) and was repaired automatically", parseErr))
			for _, issue := range issues {
				issue.Severity = models.SeverityInfo
				result.Add(issue)
			}
			p.logger.Debug("Syntax repair succeeded", "error", parseErr)
			return value, true
		}
	}

	for _, issue := range issues {
		result.Add(issue)
	}
	p.logger.Warn("Payload failed to parse",
		"error", parseErr,
		"diagnostics", len(issues),
		"payload", util.TruncateString(text, logPreviewLen))
	return nil, false
}

// Process validates a response and repairs its records. Repair only runs
// when a record array could be located in the parsed payload.
func (p *Pipeline) Process(raw string, shape models.Shape) *Outcome {
	start := time.Now()
	out := &Outcome{
		RunID: uuid.New().String(),
		Shape: shape,
	}
	out.Result = p.ExtractAndValidate(raw, shape)
	out.Report = out.Result.Report()

	if records, ok := recordArray(out.Result.Data, shape); ok {
		p.repairInto(out, records)
	}

	out.Duration = time.Since(start)
	p.metrics.RecordStage("total", out.Duration)
	p.logger.Debug("Processed response",
		"run_id", out.RunID,
		"valid", out.Report.Valid,
		"records", len(out.Repaired),
		"duration", out.Duration)
	return out
}

// Repair runs only the field repairer over already-parsed records
func (p *Pipeline) Repair(records any, shape models.Shape) repair.BatchResult {
	return p.newRepairer(shape).RepairBatch(records)
}

func (p *Pipeline) newRepairer(shape models.Shape) *repair.Repairer {
	return repair.New(fields.ForShape(shape, p.defaults),
		repair.WithLogger(p.logger),
		repair.WithClock(p.now),
		repair.WithAppendRemarks(p.remarks))
}

func (p *Pipeline) repairInto(out *Outcome, records []any) {
	start := time.Now()
	batch := p.newRepairer(out.Shape).RepairBatch(records)
	p.metrics.RecordStage("repair", time.Since(start))
	p.metrics.RecordRepairs(out.Shape, batch.Logs)

	out.Repaired = batch.Repaired
	out.Logs = batch.Logs
	out.Summary = batch.Summary

	if !p.cfg.VerifySchema {
		return
	}
	failures := schema.CheckAll(out.Shape, batch.Repaired)
	for i := range batch.Repaired {
		err, failed := failures[i]
		if !failed {
			continue
		}
		p.metrics.RecordSchemaFailure(out.Shape)
		p.logger.Error("Repaired record failed schema check", "run_id", out.RunID, "index", i, "error", err)
		out.SchemaFailures = append(out.SchemaFailures, SchemaFailure{Index: i, Error: err.Error()})
	}
}

// recordArray finds the records to repair: the shape's array, or the root
// object itself for generic payloads
func recordArray(data any, shape models.Shape) ([]any, bool) {
	root, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	key := shape.ArrayKey()
	if key == "" {
		return []any{root}, true
	}
	records, ok := root[key].([]any)
	return records, ok
}

func decode(text string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// truncateBytes cuts s to at most n bytes without splitting a UTF-8 sequence
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IsSyntaxFailure reports whether the result failed because the payload did not parse
func IsSyntaxFailure(result *models.ValidationResult) bool {
	return result != nil && result.HasCode(models.CodeJSONSyntaxError) && result.Data == nil
}
