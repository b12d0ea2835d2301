package models

// Wire field names shared with the persistence layer. Do not rename.
const (
	FieldStepNumber       = "step_number"
	FieldAction           = "action"
	FieldExpected         = "expected"
	FieldTestPointID      = "test_point_id"
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldPreconditions    = "preconditions"
	FieldSteps            = "steps"
	FieldExpectedResult   = "expected_result"
	FieldID               = "id"
	FieldTestCaseID       = "test_case_id"
	FieldName             = "name"
	FieldPriority         = "priority"
	FieldModule           = "module"
	FieldFunctionalModule = "functional_module"
	FieldFunctionalDomain = "functional_domain"
	FieldRemarks          = "remarks"
	FieldBusinessType     = "business_type"
	FieldStatus           = "status"
)

// Priority levels accepted by the persistence layer
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)
