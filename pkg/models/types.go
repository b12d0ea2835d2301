package models

import (
	"errors"
	"fmt"
)

// Shape selects which structural rules apply to a parsed response
type Shape string

const (
	// ShapeTestPoints expects {"test_points": [...]}
	ShapeTestPoints Shape = "test_points"
	// ShapeTestCases expects {"test_cases": [...]}
	ShapeTestCases Shape = "test_cases"
	// ShapeGeneric only requires the root to be an object
	ShapeGeneric Shape = "generic"
)

// ParseShape converts a user-supplied tag into a Shape
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case ShapeTestPoints, ShapeTestCases, ShapeGeneric:
		return Shape(s), nil
	case "":
		return ShapeGeneric, nil
	}
	return "", fmt.Errorf("unknown shape %q (expected test_points, test_cases or generic)", s)
}

// ArrayKey returns the top-level key holding the record array, or "" for generic
func (s Shape) ArrayKey() string {
	switch s {
	case ShapeTestPoints:
		return "test_points"
	case ShapeTestCases:
		return "test_cases"
	}
	return ""
}

// ExtractionMethod records which extractor strategy produced a payload
type ExtractionMethod string

const (
	MethodDirect                   ExtractionMethod = "direct"
	MethodFencedCodeBlock          ExtractionMethod = "fenced_code_block"
	MethodFencedCodeBlockGeneric   ExtractionMethod = "fenced_code_block_generic"
	MethodFencedCodeBlockUppercase ExtractionMethod = "fenced_code_block_uppercase"
	MethodNestedObjectScan         ExtractionMethod = "nested_object_scan"
	MethodSimpleObjectScan         ExtractionMethod = "simple_object_scan"
)

// ExtractedPayload is a candidate JSON text located inside a raw response
type ExtractedPayload struct {
	Text   string           `json:"text"`
	Method ExtractionMethod `json:"method"`
}

// Record is one normalized record keyed by wire field names
type Record map[string]any

// ProcessingLog lists every substitution made while repairing one record
type ProcessingLog struct {
	RecordID        string   `json:"record_id" yaml:"record_id"`
	MissingFields   []string `json:"missing_fields" yaml:"missing_fields"`
	TypeErrors      []string `json:"type_errors" yaml:"type_errors"`
	ConvertedFields []string `json:"converted_fields" yaml:"converted_fields"`
	Messages        []string `json:"messages" yaml:"messages"`
}

// Repaired reports whether any field needed a substitution or conversion
func (l ProcessingLog) Repaired() bool {
	return len(l.MissingFields) > 0 || len(l.TypeErrors) > 0 || len(l.ConvertedFields) > 0
}

// RepairedRecord pairs a normalized record with its processing log
type RepairedRecord struct {
	Record Record        `json:"record"`
	Log    ProcessingLog `json:"log"`
}

// ProcessingSummary aggregates the processing logs of one batch.
// SuccessRate is always 100 because no record is ever rejected; CleanRate is the
// share of records that passed through without any repair.
type ProcessingSummary struct {
	TotalRecords          int     `json:"total_records" yaml:"total_records"`
	RecordsWithMissing    int     `json:"records_with_missing_fields" yaml:"records_with_missing_fields"`
	RecordsWithTypeErrors int     `json:"records_with_type_errors" yaml:"records_with_type_errors"`
	RecordsWithConversion int     `json:"records_with_conversions" yaml:"records_with_conversions"`
	SuccessRate           float64 `json:"success_rate" yaml:"success_rate"`
	CleanRate             float64 `json:"clean_rate" yaml:"clean_rate"`
}

// ErrDuplicateStepNumber is returned when two steps of one case share a step_number
var ErrDuplicateStepNumber = errors.New("duplicate step_number")
