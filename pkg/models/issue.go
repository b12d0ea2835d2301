package models

import "fmt"

// Severity classifies how much an issue blocks use of a payload
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Stable issue codes. Callers match on these, never on messages.
const (
	CodeNoJSONFound           = "NO_JSON_FOUND"
	CodeJSONSyntaxError       = "JSON_SYNTAX_ERROR"
	CodeEmptyResponse         = "EMPTY_RESPONSE"
	CodeResponseTruncated     = "RESPONSE_TRUNCATED"
	CodeAutoRepaired          = "AUTO_REPAIRED"
	CodeInvalidRootType       = "INVALID_ROOT_TYPE"
	CodeMissingTestPoints     = "MISSING_TEST_POINTS"
	CodeInvalidTestPointsType = "INVALID_TEST_POINTS_TYPE"
	CodeEmptyTestPoints       = "EMPTY_TEST_POINTS"
	CodeInvalidTestPointType  = "INVALID_TEST_POINT_TYPE"
	CodeMissingTestCases      = "MISSING_TEST_CASES"
	CodeInvalidTestCasesType  = "INVALID_TEST_CASES_TYPE"
	CodeEmptyTestCases        = "EMPTY_TEST_CASES"
	CodeInvalidTestCaseType   = "INVALID_TEST_CASE_TYPE"
	CodeMissingRequiredField  = "MISSING_REQUIRED_FIELD"
	CodeEmptyFieldValue       = "EMPTY_FIELD_VALUE"
	CodeInvalidFieldType      = "INVALID_FIELD_TYPE"
	CodeInvalidArrayField     = "INVALID_ARRAY_FIELD"
	CodeDuplicateStepNumber   = "DUPLICATE_STEP_NUMBER"
	CodeUnexpectedFields      = "UNEXPECTED_FIELDS"
	CodeMissingComma          = "MISSING_COMMA"
	CodeTrailingComma         = "TRAILING_COMMA"
	CodeUnclosedQuote         = "UNCLOSED_QUOTE"
	CodeUnescapedNewline      = "UNESCAPED_NEWLINE"
	CodeInvalidEscape         = "INVALID_ESCAPE"
	CodeSingleQuotes          = "SINGLE_QUOTES"
	CodeUnquotedKey           = "UNQUOTED_KEY"
	CodeSchemaNonConformance  = "SCHEMA_NONCONFORMANCE"
)

// Location is a 1-based line/column position inside the candidate text
type Location struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("line %d, column %d", l.Line, l.Column)
}

// Issue is a single finding attached to a ValidationResult. Empty Context and
// Suggestion mean "not provided"; a nil Location means the issue has no position.
type Issue struct {
	Severity   Severity  `json:"severity" yaml:"severity"`
	Code       string    `json:"code" yaml:"code"`
	Message    string    `json:"message" yaml:"message"`
	Location   *Location `json:"location,omitempty" yaml:"location,omitempty"`
	Context    string    `json:"context,omitempty" yaml:"context,omitempty"`
	Suggestion string    `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

func (i Issue) String() string {
	if i.Location != nil {
		return fmt.Sprintf("[%s] %s: %s (%s)", i.Severity, i.Code, i.Message, i.Location)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
}

// ValidationResult collects the issues found for one extraction attempt.
// Once an error is added the result stays invalid.
type ValidationResult struct {
	issues  []Issue
	invalid bool

	// Data holds the parsed payload when parsing succeeded
	Data any
	// Payload is the extracted candidate text, nil if extraction failed
	Payload *ExtractedPayload
}

// NewValidationResult returns an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{}
}

// Add appends an issue; an error-severity issue marks the result invalid
func (r *ValidationResult) Add(issue Issue) {
	if issue.Severity == SeverityError {
		r.invalid = true
	}
	r.issues = append(r.issues, issue)
}

// AddError records an error-severity issue
func (r *ValidationResult) AddError(code, message string) {
	r.Add(Issue{Severity: SeverityError, Code: code, Message: message})
}

// AddWarning records a warning-severity issue
func (r *ValidationResult) AddWarning(code, message string) {
	r.Add(Issue{Severity: SeverityWarning, Code: code, Message: message})
}

// AddInfo records an info-severity issue
func (r *ValidationResult) AddInfo(code, message string) {
	r.Add(Issue{Severity: SeverityInfo, Code: code, Message: message})
}

// IsValid is true iff no error has ever been added
func (r *ValidationResult) IsValid() bool {
	return !r.invalid
}

// Issues returns all issues in insertion order
func (r *ValidationResult) Issues() []Issue {
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

func (r *ValidationResult) bySeverity(sev Severity) []Issue {
	var out []Issue
	for _, issue := range r.issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// Errors returns the error-severity issues
func (r *ValidationResult) Errors() []Issue { return r.bySeverity(SeverityError) }

// Warnings returns the warning-severity issues
func (r *ValidationResult) Warnings() []Issue { return r.bySeverity(SeverityWarning) }

// Infos returns the info-severity issues
func (r *ValidationResult) Infos() []Issue { return r.bySeverity(SeverityInfo) }

// HasCode reports whether any issue carries the given code
func (r *ValidationResult) HasCode(code string) bool {
	for _, issue := range r.issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// Report is a serializable snapshot of a ValidationResult
type Report struct {
	Valid    bool             `json:"valid" yaml:"valid"`
	Method   ExtractionMethod `json:"method,omitempty" yaml:"method,omitempty"`
	Errors   []Issue          `json:"errors" yaml:"errors"`
	Warnings []Issue          `json:"warnings" yaml:"warnings"`
	Info     []Issue          `json:"info" yaml:"info"`
}

// Report builds a severity-grouped snapshot for output
func (r *ValidationResult) Report() Report {
	rep := Report{
		Valid:    r.IsValid(),
		Errors:   r.Errors(),
		Warnings: r.Warnings(),
		Info:     r.Infos(),
	}
	if r.Payload != nil {
		rep.Method = r.Payload.Method
	}
	return rep
}
