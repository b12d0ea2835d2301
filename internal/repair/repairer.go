// Package repair turns structurally parsed records into fully populated
// records that satisfy a fields.Schema, logging every substitution.
package repair

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lamim/testforge/internal/fields"
	"github.com/lamim/testforge/internal/util"
	"github.com/lamim/testforge/pkg/models"
)

// Option configures a Repairer
type Option func(*Repairer)

// WithClock overrides the clock used for remarks timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Repairer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger; nil keeps slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repairer) {
		if logger != nil {
			r.logger = logger.With("component", "repair")
		}
	}
}

// WithAppendRemarks controls whether a repair note is appended to the remarks field
func WithAppendRemarks(enabled bool) Option {
	return func(r *Repairer) {
		r.appendRemarks = enabled
	}
}

// Repairer applies a Schema to records and accumulates their ProcessingLogs.
// It is not safe for concurrent use; give each concurrent caller its own
// instance, or Reset between uses.
type Repairer struct {
	schema        fields.Schema
	known         map[string]bool
	now           func() time.Time
	logger        *slog.Logger
	appendRemarks bool

	logs []models.ProcessingLog
}

// BatchResult is the output of RepairBatch
type BatchResult struct {
	Repaired []models.Record          `json:"repaired"`
	Logs     []models.ProcessingLog   `json:"logs"`
	Summary  models.ProcessingSummary `json:"summary"`
}

// New creates a Repairer for schema
func New(schema fields.Schema, opts ...Option) *Repairer {
	r := &Repairer{
		schema:        schema,
		known:         make(map[string]bool),
		now:           time.Now,
		logger:        slog.Default().With("component", "repair"),
		appendRemarks: true,
	}
	for _, f := range schema.Fields {
		r.known[f.Name] = true
		for _, alias := range f.Aliases {
			r.known[alias] = true
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Schema returns the schema this Repairer enforces
func (r *Repairer) Schema() fields.Schema {
	return r.schema
}

// Reset clears the accumulated processing logs
func (r *Repairer) Reset() {
	r.logs = nil
}

// Logs returns a copy of the logs accumulated since the last Reset
func (r *Repairer) Logs() []models.ProcessingLog {
	out := make([]models.ProcessingLog, len(r.logs))
	copy(out, r.logs)
	return out
}

// RepairBatch repairs every element of records and always returns at least
// one record. A non-list input is treated as a one-element list and an
// empty list yields a single default record. The accumulator is reset first.
func (r *Repairer) RepairBatch(records any) BatchResult {
	r.Reset()

	items := asList(records)
	repaired := make([]models.Record, 0, max(len(items), 1))
	for i, item := range items {
		repaired = append(repaired, r.RepairOne(item, i).Record)
	}

	if len(repaired) == 0 {
		rec := r.RepairOne(map[string]any{}, 0)
		r.logs[len(r.logs)-1].Messages = append(r.logs[len(r.logs)-1].Messages,
			"no input records, synthesized a default record")
		repaired = append(repaired, rec.Record)
	}

	return BatchResult{
		Repaired: repaired,
		Logs:     r.Logs(),
		Summary:  r.Summary(),
	}
}

func asList(records any) []any {
	switch x := records.(type) {
	case nil:
		return nil
	case []any:
		return x
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out
	case []models.Record:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = map[string]any(m)
		}
		return out
	case models.Record:
		return []any{map[string]any(x)}
	}
	return []any{records}
}

// RepairOne repairs a single record. index is the record's position in its
// batch and only feeds placeholder names.
func (r *Repairer) RepairOne(raw any, index int) models.RepairedRecord {
	log := models.ProcessingLog{
		MissingFields:   []string{},
		TypeErrors:      []string{},
		ConvertedFields: []string{},
		Messages:        []string{},
	}

	input, ok := raw.(map[string]any)
	if !ok {
		if rec, isRecord := raw.(models.Record); isRecord {
			input, ok = rec, true
		}
	}
	if !ok {
		input = r.placeholder(raw, index)
		log.TypeErrors = append(log.TypeErrors, "record")
		log.Messages = append(log.Messages,
			fmt.Sprintf("record %d: expected object, got %T; replaced with placeholder", index, raw))
	}

	out := make(models.Record, len(r.schema.Fields))
	for _, spec := range r.schema.Fields {
		out[spec.Name] = r.repairField(spec, input, &log)
	}

	if dropped := r.unknownKeys(input); len(dropped) > 0 {
		log.Messages = append(log.Messages, "dropped unknown fields: "+strings.Join(dropped, ", "))
	}

	if id, ok := out[r.schema.IDField].(string); ok {
		log.RecordID = id
	}

	if r.appendRemarks && r.schema.RemarksField != "" && log.Repaired() {
		existing, _ := out[r.schema.RemarksField].(string)
		out[r.schema.RemarksField] = appendNote(existing, r.note(log))
	}

	if log.Repaired() {
		r.logger.Debug("Record repaired",
			"record_id", log.RecordID,
			"missing", log.MissingFields,
			"type_errors", log.TypeErrors,
			"converted", log.ConvertedFields)
	}

	r.logs = append(r.logs, log)
	return models.RepairedRecord{Record: out, Log: log}
}

func (r *Repairer) placeholder(raw any, index int) map[string]any {
	if r.schema.Placeholder == nil {
		return map[string]any{}
	}
	return r.schema.Placeholder(raw, index)
}

// repairField resolves one field. A panic anywhere in the field's validator,
// converter or default factory falls back to the default.
func (r *Repairer) repairField(spec fields.FieldSpec, input map[string]any, log *models.ProcessingLog) (value any) {
	defer func() {
		if p := recover(); p != nil {
			log.TypeErrors = append(log.TypeErrors, spec.Name)
			log.Messages = append(log.Messages, fmt.Sprintf("%s: repair failed (%v), default used", spec.Name, p))
			r.logger.Warn("Field repair panicked", "field", spec.Name, "panic", p)
			value = safeDefault(spec)
		}
	}()

	raw, key := lookup(spec, input)
	if fields.IsEmpty(raw) {
		if spec.Required {
			log.MissingFields = append(log.MissingFields, spec.Name)
			log.Messages = append(log.Messages, fmt.Sprintf("%s: missing, default generated", spec.Name))
		}
		return spec.Default()
	}

	if key != spec.Name {
		log.ConvertedFields = append(log.ConvertedFields, spec.Name)
		log.Messages = append(log.Messages, fmt.Sprintf("%s: taken from %q", spec.Name, key))
	}

	if spec.Validate(raw) {
		return raw
	}

	if spec.Convert != nil {
		converted, err := spec.Convert(raw)
		switch {
		case err == nil:
			if key == spec.Name {
				log.ConvertedFields = append(log.ConvertedFields, spec.Name)
			}
			log.Messages = append(log.Messages, fmt.Sprintf("%s: converted %s to %s", spec.Name, preview(raw), preview(converted)))
			return converted
		case converted != nil:
			log.TypeErrors = append(log.TypeErrors, spec.Name)
			log.Messages = append(log.Messages, fmt.Sprintf("%s: %v", spec.Name, err))
			return converted
		default:
			log.Messages = append(log.Messages, fmt.Sprintf("%s: conversion failed: %v", spec.Name, err))
		}
	}

	log.TypeErrors = append(log.TypeErrors, spec.Name)
	log.Messages = append(log.Messages, fmt.Sprintf("%s: expected %s, got %T; default used", spec.Name, spec.ExpectedType, raw))
	return spec.Default()
}

func safeDefault(spec fields.FieldSpec) (value any) {
	defer func() {
		if recover() != nil {
			value = nil
		}
	}()
	return spec.Default()
}

// lookup returns the field's input value and the key it was found under
func lookup(spec fields.FieldSpec, input map[string]any) (any, string) {
	if v, ok := input[spec.Name]; ok && !fields.IsEmpty(v) {
		return v, spec.Name
	}
	for _, alias := range spec.Aliases {
		if v, ok := input[alias]; ok && !fields.IsEmpty(v) {
			return v, alias
		}
	}
	return input[spec.Name], spec.Name
}

func (r *Repairer) unknownKeys(input map[string]any) []string {
	var out []string
	for k := range input {
		if !r.known[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Repairer) note(log models.ProcessingLog) string {
	var parts []string
	if len(log.MissingFields) > 0 {
		parts = append(parts, "missing fields: "+strings.Join(log.MissingFields, ", "))
	}
	if len(log.TypeErrors) > 0 {
		parts = append(parts, "type errors: "+strings.Join(log.TypeErrors, ", "))
	}
	if len(log.ConvertedFields) > 0 {
		parts = append(parts, "converted: "+strings.Join(log.ConvertedFields, ", "))
	}
	return fmt.Sprintf("[auto-repair %s] %s", r.now().Format(time.RFC3339), strings.Join(parts, "; "))
}

func appendNote(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "\n" + note
}

func preview(v any) string {
	return fmt.Sprintf("%q", util.TruncateString(fmt.Sprintf("%v", v), 40))
}

// Summary aggregates the logs accumulated since the last Reset. SuccessRate
// is always 100 since no record is ever rejected; CleanRate is the percentage
// of records that needed no repair.
func (r *Repairer) Summary() models.ProcessingSummary {
	s := models.ProcessingSummary{
		TotalRecords: len(r.logs),
		SuccessRate:  100.0,
	}
	clean := 0
	for _, log := range r.logs {
		if len(log.MissingFields) > 0 {
			s.RecordsWithMissing++
		}
		if len(log.TypeErrors) > 0 {
			s.RecordsWithTypeErrors++
		}
		if len(log.ConvertedFields) > 0 {
			s.RecordsWithConversion++
		}
		if !log.Repaired() {
			clean++
		}
	}
	if s.TotalRecords > 0 {
		s.CleanRate = float64(clean) / float64(s.TotalRecords) * 100
	}
	return s
}
