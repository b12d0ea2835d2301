package fields

import (
	"fmt"

	"github.com/lamim/testforge/internal/ulid"
	"github.com/lamim/testforge/pkg/models"
)

// Defaults are the configurable placeholder values used by the default factories
type Defaults struct {
	CaseName      string
	Description   string
	Priority      string
	CaseIDPrefix  string
	PointIDPrefix string
	StepAction    string
	StepExpected  string
	ExpectedValue string
	PointTitle    string
	PointStatus   string
}

// StandardDefaults returns the placeholder values used when nothing is configured
func StandardDefaults() Defaults {
	return Defaults{
		CaseName:      "未命名测试用例",
		Description:   "暂无描述",
		Priority:      models.PriorityMedium,
		CaseIDPrefix:  ulid.PrefixTestCase,
		PointIDPrefix: ulid.PrefixTestPoint,
		StepAction:    "执行测试步骤",
		StepExpected:  "符合预期",
		ExpectedValue: "符合预期",
		PointTitle:    "未命名测试点",
		PointStatus:   "draft",
	}
}

// withFallbacks fills zero fields from StandardDefaults
func (d Defaults) withFallbacks() Defaults {
	std := StandardDefaults()
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&d.CaseName, std.CaseName)
	fill(&d.Description, std.Description)
	fill(&d.Priority, std.Priority)
	fill(&d.CaseIDPrefix, std.CaseIDPrefix)
	fill(&d.PointIDPrefix, std.PointIDPrefix)
	fill(&d.StepAction, std.StepAction)
	fill(&d.StepExpected, std.StepExpected)
	fill(&d.ExpectedValue, std.ExpectedValue)
	fill(&d.PointTitle, std.PointTitle)
	fill(&d.PointStatus, std.PointStatus)
	return d
}

func constant[T any](v T) func() any {
	return func() any { return v }
}

func emptyList() any { return []any{} }

func optionalString(name string) FieldSpec {
	return FieldSpec{
		Name:         name,
		ExpectedType: KindString,
		Default:      constant(""),
		Validate:     IsString,
		Convert:      ToString,
	}
}

func requiredString(name, def string) FieldSpec {
	return FieldSpec{
		Name:         name,
		Required:     true,
		ExpectedType: KindString,
		Default:      constant(def),
		Validate:     IsNonEmptyString,
		Convert:      ToString,
	}
}

func priority(def string) FieldSpec {
	return FieldSpec{
		Name:         models.FieldPriority,
		ExpectedType: KindPriority,
		Default:      constant(def),
		Validate:     IsPriority,
		Convert:      PriorityConverter(def),
	}
}

// TestCaseSchema is the FieldSpec table for test case records
func TestCaseSchema(d Defaults) Schema {
	d = d.withFallbacks()

	id := requiredString(models.FieldTestCaseID, "")
	id.Default = func() any { return ulid.NewID(d.CaseIDPrefix) }
	id.Aliases = []string{models.FieldID}

	steps := FieldSpec{
		Name:         models.FieldSteps,
		Required:     true,
		ExpectedType: KindSteps,
		Default: func() any {
			return []any{newStep(1, d.StepAction, d.StepExpected)}
		},
		Validate: IsSteps,
		Convert:  NormalizeSteps,
	}

	expected := FieldSpec{
		Name:         models.FieldExpectedResult,
		Required:     true,
		ExpectedType: KindStringList,
		Default:      func() any { return []any{d.ExpectedValue} },
		Validate:     IsStringList,
		Convert:      ToStringList,
	}

	preconditions := FieldSpec{
		Name:         models.FieldPreconditions,
		ExpectedType: KindStringList,
		Default:      emptyList,
		Validate:     IsStringList,
		Convert:      ToStringList,
	}

	return Schema{
		Name:         "test_case",
		IDField:      models.FieldTestCaseID,
		RemarksField: models.FieldRemarks,
		Fields: []FieldSpec{
			id,
			requiredString(models.FieldName, d.CaseName),
			requiredString(models.FieldDescription, d.Description),
			preconditions,
			steps,
			expected,
			priority(d.Priority),
			optionalString(models.FieldModule),
			optionalString(models.FieldFunctionalModule),
			optionalString(models.FieldFunctionalDomain),
			optionalString(models.FieldTestPointID),
			optionalString(models.FieldRemarks),
		},
		Placeholder: func(element any, index int) map[string]any {
			return map[string]any{
				models.FieldName:        fmt.Sprintf("%s %d", d.CaseName, index+1),
				models.FieldDescription: placeholderDescription(element, d.Description),
			}
		},
	}
}

// TestPointSchema is the FieldSpec table for test point records
func TestPointSchema(d Defaults) Schema {
	d = d.withFallbacks()

	id := requiredString(models.FieldTestPointID, "")
	id.Default = func() any { return ulid.NewID(d.PointIDPrefix) }
	id.Aliases = []string{models.FieldID}

	status := optionalString(models.FieldStatus)
	status.Default = constant(d.PointStatus)

	return Schema{
		Name:    "test_point",
		IDField: models.FieldTestPointID,
		Fields: []FieldSpec{
			id,
			requiredString(models.FieldTitle, d.PointTitle),
			requiredString(models.FieldDescription, d.Description),
			optionalString(models.FieldBusinessType),
			priority(d.Priority),
			status,
		},
		Placeholder: func(element any, index int) map[string]any {
			return map[string]any{
				models.FieldTitle:       fmt.Sprintf("%s %d", d.PointTitle, index+1),
				models.FieldDescription: placeholderDescription(element, d.Description),
			}
		},
	}
}

// ForShape picks the repair schema for a shape; generic payloads are repaired as test cases
func ForShape(shape models.Shape, d Defaults) Schema {
	if shape == models.ShapeTestPoints {
		return TestPointSchema(d)
	}
	return TestCaseSchema(d)
}

func placeholderDescription(element any, def string) string {
	if s, err := stringify(element); err == nil && s != "" {
		return s
	}
	return def
}
