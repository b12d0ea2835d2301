// Package structure checks that a parsed payload has the expected shape
// without inspecting individual field semantics. It never fails: every
// anomaly becomes an issue on the result.
package structure

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lamim/testforge/internal/fields"
	"github.com/lamim/testforge/internal/util"
	"github.com/lamim/testforge/pkg/models"
)

const rootPreviewLen = 120

// shapeRules describes one record-array shape
type shapeRules struct {
	missingCode     string
	arrayTypeCode   string
	emptyCode       string
	elementTypeCode string
	elementNoun     string
	required        []string
	// alternatives lets another key satisfy a required one
	alternatives map[string]string
	warnIfEmpty  []string
	arrayFields  []string
	known        map[string]bool
	checkElement func(result *models.ValidationResult, prefix string, element map[string]any)
}

var testPointRules = shapeRules{
	missingCode:     models.CodeMissingTestPoints,
	arrayTypeCode:   models.CodeInvalidTestPointsType,
	emptyCode:       models.CodeEmptyTestPoints,
	elementTypeCode: models.CodeInvalidTestPointType,
	elementNoun:     "test point",
	required:        []string{models.FieldTestPointID, models.FieldTitle, models.FieldDescription},
	warnIfEmpty:     []string{models.FieldBusinessType, models.FieldPriority, models.FieldStatus},
	known: keySet(
		models.FieldTestPointID, models.FieldTitle, models.FieldDescription,
		models.FieldBusinessType, models.FieldPriority, models.FieldStatus,
	),
	checkElement: checkTestPoint,
}

var testCaseRules = shapeRules{
	missingCode:     models.CodeMissingTestCases,
	arrayTypeCode:   models.CodeInvalidTestCasesType,
	emptyCode:       models.CodeEmptyTestCases,
	elementTypeCode: models.CodeInvalidTestCaseType,
	elementNoun:     "test case",
	required: []string{
		models.FieldID, models.FieldName, models.FieldDescription,
		models.FieldSteps, models.FieldExpectedResult,
	},
	alternatives: map[string]string{models.FieldID: models.FieldTestCaseID},
	arrayFields:  []string{models.FieldPreconditions, models.FieldSteps, models.FieldExpectedResult},
	known: keySet(
		models.FieldID, models.FieldTestCaseID, models.FieldName, models.FieldDescription,
		models.FieldSteps, models.FieldExpectedResult, models.FieldPreconditions,
		models.FieldPriority, models.FieldModule, models.FieldFunctionalModule,
		models.FieldFunctionalDomain, models.FieldRemarks, models.FieldTestPointID,
	),
	checkElement: checkTestCase,
}

func keySet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// Validate classifies value against shape. raw is the candidate text and is
// only used to give root-level issues some context.
func Validate(value any, shape models.Shape, raw string) *models.ValidationResult {
	result := models.NewValidationResult()
	result.Data = value
	validateInto(result, value, shape, raw)
	return result
}

// ValidateInto appends the structural issues for value to an existing result
func ValidateInto(result *models.ValidationResult, value any, shape models.Shape) {
	validateInto(result, value, shape, "")
}

func validateInto(result *models.ValidationResult, value any, shape models.Shape, raw string) {
	root, ok := value.(map[string]any)
	if !ok {
		result.Add(models.Issue{
			Severity: models.SeverityError,
			Code:     models.CodeInvalidRootType,
			Message:  fmt.Sprintf("root must be a JSON object, got %s", typeName(value)),
			Context:  util.TruncateString(raw, rootPreviewLen),
		})
		return
	}

	switch shape {
	case models.ShapeTestPoints:
		validateArray(result, root, shape.ArrayKey(), testPointRules, raw)
	case models.ShapeTestCases:
		validateArray(result, root, shape.ArrayKey(), testCaseRules, raw)
	}
}

func validateArray(result *models.ValidationResult, root map[string]any, key string, rules shapeRules, raw string) {
	value, ok := root[key]
	if !ok {
		result.Add(models.Issue{
			Severity:   models.SeverityError,
			Code:       rules.missingCode,
			Message:    fmt.Sprintf("missing top-level key %q", key),
			Context:    util.TruncateString(raw, rootPreviewLen),
			Suggestion: fmt.Sprintf("Wrap the records in {\"%s\": [...]}", key),
		})
		return
	}

	elements, ok := value.([]any)
	if !ok {
		result.AddError(rules.arrayTypeCode, fmt.Sprintf("%q must be an array, got %s", key, typeName(value)))
		return
	}
	if len(elements) == 0 {
		result.AddWarning(rules.emptyCode, fmt.Sprintf("%q is empty", key))
		return
	}

	unexpected := make(map[string]bool)
	for i, el := range elements {
		prefix := fmt.Sprintf("%s[%d]", key, i)
		element, ok := el.(map[string]any)
		if !ok {
			result.AddError(rules.elementTypeCode,
				fmt.Sprintf("%s: %s must be an object, got %s", prefix, rules.elementNoun, typeName(el)))
			continue
		}

		for _, field := range rules.required {
			if _, present := element[field]; present {
				continue
			}
			if alt, hasAlt := rules.alternatives[field]; hasAlt {
				if _, present := element[alt]; present {
					continue
				}
			}
			result.AddError(models.CodeMissingRequiredField,
				fmt.Sprintf("%s: missing required field %q", prefix, field))
		}

		for _, field := range rules.warnIfEmpty {
			if v, present := element[field]; present && fields.IsEmpty(v) {
				result.AddWarning(models.CodeEmptyFieldValue,
					fmt.Sprintf("%s: field %q is empty", prefix, field))
			}
		}

		for _, field := range rules.arrayFields {
			if v, present := element[field]; present {
				if _, isList := v.([]any); !isList {
					result.AddError(models.CodeInvalidArrayField,
						fmt.Sprintf("%s: field %q must be an array, got %s", prefix, field, typeName(v)))
				}
			}
		}

		if rules.checkElement != nil {
			rules.checkElement(result, prefix, element)
		}

		for k := range element {
			if !rules.known[k] {
				unexpected[k] = true
			}
		}
	}

	if len(unexpected) > 0 {
		names := make([]string, 0, len(unexpected))
		for k := range unexpected {
			names = append(names, k)
		}
		sort.Strings(names)
		result.AddInfo(models.CodeUnexpectedFields,
			fmt.Sprintf("unexpected fields will be ignored: %s", strings.Join(names, ", ")))
	}
}

func checkTestPoint(result *models.ValidationResult, prefix string, element map[string]any) {
	if v, present := element[models.FieldTestPointID]; present {
		if _, isString := v.(string); !isString {
			result.AddWarning(models.CodeInvalidFieldType,
				fmt.Sprintf("%s: %q should be a string, got %s", prefix, models.FieldTestPointID, typeName(v)))
		}
	}
}

func checkTestCase(result *models.ValidationResult, prefix string, element map[string]any) {
	steps, ok := element[models.FieldSteps].([]any)
	if !ok {
		return
	}
	if dups := fields.DuplicateStepNumbers(steps); len(dups) > 0 {
		result.AddError(models.CodeDuplicateStepNumber,
			fmt.Sprintf("%s: %v %v", prefix, models.ErrDuplicateStepNumber, dups))
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
