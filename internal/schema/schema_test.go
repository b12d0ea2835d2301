package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/testforge/internal/fields"
	"github.com/lamim/testforge/internal/repair"
	"github.com/lamim/testforge/pkg/models"
)

func TestRepairedRecordsConform(t *testing.T) {
	tests := []struct {
		name   string
		shape  models.Shape
		schema fields.Schema
		input  any
	}{
		{
			name:   "empty test case",
			shape:  models.ShapeTestCases,
			schema: fields.TestCaseSchema(fields.StandardDefaults()),
			input:  []any{map[string]any{}},
		},
		{
			name:   "messy test cases",
			shape:  models.ShapeTestCases,
			schema: fields.TestCaseSchema(fields.StandardDefaults()),
			input: []any{
				map[string]any{"id": float64(7), "steps": "a\nb", "expected_result": float64(1), "priority": "P1"},
				"loose text",
			},
		},
		{
			name:   "generic repaired as test case",
			shape:  models.ShapeGeneric,
			schema: fields.TestCaseSchema(fields.StandardDefaults()),
			input:  nil,
		},
		{
			name:   "test points",
			shape:  models.ShapeTestPoints,
			schema: fields.TestPointSchema(fields.StandardDefaults()),
			input:  []any{map[string]any{"title": "t", "status": float64(1)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := repair.New(tt.schema).RepairBatch(tt.input)
			assert.Empty(t, CheckAll(tt.shape, result.Repaired))
		})
	}
}

func TestCheckRejectsNonconformingRecord(t *testing.T) {
	rec := repair.New(fields.TestCaseSchema(fields.StandardDefaults())).RepairBatch(nil).Repaired[0]

	broken := models.Record{}
	for k, v := range rec {
		broken[k] = v
	}
	broken[models.FieldPriority] = "urgent"
	err := Check(models.ShapeTestCases, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test_cases record does not conform")

	delete(broken, models.FieldPriority)
	broken["extra"] = 1
	assert.Error(t, Check(models.ShapeTestCases, broken))

	assert.Error(t, Check(models.ShapeTestPoints, rec), "a test case is not a test point")
}
