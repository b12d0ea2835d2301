package structure

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/testforge/pkg/models"
)

func parse(t *testing.T, text string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	return v
}

func codes(issues []models.Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func TestValidateWellFormed(t *testing.T) {
	tests := []struct {
		name  string
		shape models.Shape
		text  string
	}{
		{
			name:  "test points",
			shape: models.ShapeTestPoints,
			text: `{"test_points": [{"test_point_id": "TP-1", "title": "Login", "description": "d",
				"business_type": "auth", "priority": "high", "status": "draft"}]}`,
		},
		{
			name:  "test cases",
			shape: models.ShapeTestCases,
			text: `{"test_cases": [{"id": "1", "name": "n", "description": "d",
				"preconditions": ["logged out"],
				"steps": [{"step_number": 1, "action": "a", "expected": "e"}],
				"expected_result": ["r"], "priority": "low", "remarks": ""}]}`,
		},
		{
			name:  "test cases with test_case_id",
			shape: models.ShapeTestCases,
			text:  `{"test_cases": [{"test_case_id": "TC-1", "name": "n", "description": "d", "steps": [], "expected_result": []}]}`,
		},
		{
			name:  "generic object",
			shape: models.ShapeGeneric,
			text:  `{"anything": [1, 2, 3]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(parse(t, tt.text), tt.shape, tt.text)
			assert.True(t, result.IsValid())
			assert.Empty(t, result.Issues())
			assert.NotNil(t, result.Data)
		})
	}
}

func TestValidateShapeMismatch(t *testing.T) {
	text := `{"test_cases": [{"id":"1","name":"n","description":"d","steps":[],"expected_result":"r"}]}`
	result := Validate(parse(t, text), models.ShapeTestPoints, text)

	assert.False(t, result.IsValid())
	require.Len(t, result.Errors(), 1)
	assert.Equal(t, models.CodeMissingTestPoints, result.Errors()[0].Code)
	assert.Equal(t, text, result.Errors()[0].Context)
}

func TestValidateTestPoints(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantValid bool
		wantCodes []string
	}{
		{
			name:      "array key has wrong type",
			text:      `{"test_points": {"title": "t"}}`,
			wantCodes: []string{models.CodeInvalidTestPointsType},
		},
		{
			name:      "empty array is a warning",
			text:      `{"test_points": []}`,
			wantValid: true,
			wantCodes: []string{models.CodeEmptyTestPoints},
		},
		{
			name:      "element is not an object",
			text:      `{"test_points": ["login"]}`,
			wantCodes: []string{models.CodeInvalidTestPointType},
		},
		{
			name: "one error per missing field",
			text: `{"test_points": [{"title": "t"}]}`,
			wantCodes: []string{
				models.CodeMissingRequiredField,
				models.CodeMissingRequiredField,
			},
		},
		{
			name:      "empty optional values warn",
			text:      `{"test_points": [{"test_point_id": "1", "title": "t", "description": "d", "business_type": "", "status": null}]}`,
			wantValid: true,
			wantCodes: []string{models.CodeEmptyFieldValue, models.CodeEmptyFieldValue},
		},
		{
			name:      "numeric id is only a warning",
			text:      `{"test_points": [{"test_point_id": 7, "title": "t", "description": "d"}]}`,
			wantValid: true,
			wantCodes: []string{models.CodeInvalidFieldType},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(parse(t, tt.text), models.ShapeTestPoints, tt.text)
			assert.Equal(t, tt.wantValid, result.IsValid())
			assert.Equal(t, tt.wantCodes, codes(result.Issues()))
		})
	}
}

func TestValidateTestCases(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantValid bool
		wantCodes []string
	}{
		{
			name:      "missing array",
			text:      `{"cases": []}`,
			wantCodes: []string{models.CodeMissingTestCases},
		},
		{
			name:      "wrong array type",
			text:      `{"test_cases": "none"}`,
			wantCodes: []string{models.CodeInvalidTestCasesType},
		},
		{
			name:      "empty array",
			text:      `{"test_cases": []}`,
			wantValid: true,
			wantCodes: []string{models.CodeEmptyTestCases},
		},
		{
			name:      "element not an object",
			text:      `{"test_cases": [42]}`,
			wantCodes: []string{models.CodeInvalidTestCaseType},
		},
		{
			name: "scalar where array expected",
			text: `{"test_cases": [{"id": "1", "name": "n", "description": "d",
				"preconditions": "none", "steps": [], "expected_result": "r"}]}`,
			wantCodes: []string{models.CodeInvalidArrayField, models.CodeInvalidArrayField},
		},
		{
			name: "duplicate step numbers",
			text: `{"test_cases": [{"id": "1", "name": "n", "description": "d", "expected_result": [],
				"steps": [{"step_number": 1, "action": "a"}, {"step_number": 1, "action": "b"}]}]}`,
			wantCodes: []string{models.CodeDuplicateStepNumber},
		},
		{
			name:      "missing fields across elements",
			text:      `{"test_cases": [{"name": "n"}, {"id": "2", "name": "m", "description": "d", "steps": [], "expected_result": []}]}`,
			wantCodes: []string{models.CodeMissingRequiredField, models.CodeMissingRequiredField, models.CodeMissingRequiredField, models.CodeMissingRequiredField},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(parse(t, tt.text), models.ShapeTestCases, tt.text)
			assert.Equal(t, tt.wantValid, result.IsValid())
			assert.Equal(t, tt.wantCodes, codes(result.Issues()))
		})
	}
}

func TestValidateUnexpectedFields(t *testing.T) {
	text := `{"test_cases": [
		{"id": "1", "name": "n", "description": "d", "steps": [], "expected_result": [], "zeta": 1, "author": "x"},
		{"id": "2", "name": "n", "description": "d", "steps": [], "expected_result": [], "author": "y"}
	]}`
	result := Validate(parse(t, text), models.ShapeTestCases, text)

	assert.True(t, result.IsValid())
	infos := result.Infos()
	require.Len(t, infos, 1)
	assert.Equal(t, models.CodeUnexpectedFields, infos[0].Code)
	assert.Equal(t, "unexpected fields will be ignored: author, zeta", infos[0].Message)
}

func TestValidateRootType(t *testing.T) {
	for _, shape := range []models.Shape{models.ShapeGeneric, models.ShapeTestCases, models.ShapeTestPoints} {
		for _, text := range []string{`[1, 2]`, `"text"`, `null`, `3`} {
			result := Validate(parse(t, text), shape, text)
			assert.False(t, result.IsValid(), "%s %s", shape, text)
			assert.Equal(t, []string{models.CodeInvalidRootType}, codes(result.Issues()))
		}
	}
}

func TestValidateInto(t *testing.T) {
	result := models.NewValidationResult()
	result.AddWarning(models.CodeAutoRepaired, "repaired")

	ValidateInto(result, parse(t, `{"test_points": []}`), models.ShapeTestPoints)

	assert.True(t, result.IsValid())
	assert.Equal(t, []string{models.CodeAutoRepaired, models.CodeEmptyTestPoints}, codes(result.Issues()))
}
