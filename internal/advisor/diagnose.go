// Package advisor annotates JSON parse failures with positions, context
// snippets and repair suggestions.
package advisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lamim/testforge/internal/util"
	"github.com/lamim/testforge/pkg/models"
)

// DefaultContextLines is used when a caller passes a negative line count
const DefaultContextLines = 2

const genericSuggestion = "Check the JSON syntax near the reported position (brackets, commas, quotes)"

// parserHints maps fragments of encoding/json error messages to suggestions.
// Order matters: the first fragment contained in the message wins.
var parserHints = []struct {
	fragment   string
	suggestion string
}{
	{"looking for beginning of object key string", "Check for missing quotes around property names, or a trailing comma before '}'"},
	{"after object key:value pair", "Check for a missing comma between object members"},
	{"after object key", "Check for a missing colon after the property name"},
	{"after array element", "Check for a missing comma between array elements"},
	{"unexpected end of JSON input", "The response looks truncated; check for unclosed brackets or strings"},
	{"in string literal", "Escape control characters inside strings (use \\n for newlines)"},
	{"in string escape code", "Fix the backslash escape; only \\\" \\\\ \\/ \\b \\f \\n \\r \\t and \\uXXXX are allowed"},
	{"after top-level value", "Remove text after the JSON value, or wrap multiple values in an array"},
	{"looking for beginning of value", "Check for an invalid value; strings need double quotes and literals are true, false or null"},
	{"in numeric literal", "Check the number format"},
	{"in literal", "Check the spelling of true, false or null"},
}

// Diagnose returns the issues explaining why text failed to parse: one for
// the parser error itself, then one per heuristic that fires.
func Diagnose(text string, err error, contextLines int) []models.Issue {
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}

	var issues []models.Issue
	if err != nil {
		issues = append(issues, parserIssue(text, err, contextLines))
	}

	for _, h := range Heuristics() {
		offset, ok := h.Detect(text)
		if !ok {
			continue
		}
		loc := locate(text, offset)
		issues = append(issues, models.Issue{
			Severity:   models.SeverityError,
			Code:       h.Code,
			Message:    h.Message,
			Location:   &loc,
			Context:    Snippet(text, loc.Line, loc.Column, contextLines),
			Suggestion: h.Suggestion,
		})
	}

	return issues
}

func parserIssue(text string, err error, contextLines int) models.Issue {
	issue := models.Issue{
		Severity:   models.SeverityError,
		Code:       models.CodeJSONSyntaxError,
		Message:    fmt.Sprintf("JSON parse error: %v", err),
		Suggestion: Suggest(err.Error()),
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		// Offset counts the offending byte
		loc := locate(text, int(syntaxErr.Offset)-1)
		issue.Location = &loc
		issue.Context = Snippet(text, loc.Line, loc.Column, contextLines)
	}

	return issue
}

// Suggest maps a parser message to a human-readable fix
func Suggest(message string) string {
	for _, hint := range parserHints {
		if strings.Contains(message, hint.fragment) {
			return hint.suggestion
		}
	}
	return genericSuggestion
}

func locate(text string, offset int) models.Location {
	line, col := util.OffsetToLineColumn(text, offset)
	return models.Location{Line: line, Column: col}
}

// Snippet renders the given line with up to n lines on each side. The
// offending line is prefixed with ">>" and followed by a caret under column.
func Snippet(text string, line, column, n int) string {
	lines := strings.Split(text, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}

	start := max(line-n, 1)
	end := min(line+n, len(lines))
	width := len(fmt.Sprint(end))

	var b strings.Builder
	for i := start; i <= end; i++ {
		marker := "  "
		if i == line {
			marker = ">>"
		}
		fmt.Fprintf(&b, "%s %*d | %s\n", marker, width, i, strings.TrimRight(lines[i-1], "\r"))
		if i == line && column > 0 {
			fmt.Fprintf(&b, "   %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", column-1))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
