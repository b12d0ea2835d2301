package advisor

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/lamim/testforge/pkg/models"
)

// Heuristic is one entry of the signature table. Detect returns the byte
// offset of the first match. Heuristics are advisory and may misfire.
type Heuristic struct {
	Code       string
	Message    string
	Suggestion string
	Detect     func(text string) (offset int, ok bool)
}

var (
	missingCommaRegex  = regexp.MustCompile(`("|\d|true|false|null|\}|\])\s*\n\s*("|\{|\[)`)
	trailingCommaRegex = regexp.MustCompile(`,\s*[}\]]`)
	singleQuoteRegex   = regexp.MustCompile(`[{,]\s*'[^'\n]*'\s*:|:\s*'[^'\n]*'\s*[,}\]]`)
	unquotedKeyRegex   = regexp.MustCompile(`[{,]\s*([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

var (
	registryMu sync.RWMutex
	registry   = []Heuristic{
		{
			Code:       models.CodeMissingComma,
			Message:    "Possible missing comma between adjacent values",
			Suggestion: "Add a comma between the two values on consecutive lines",
			Detect:     submatchDetector(missingCommaRegex, 2),
		},
		{
			Code:       models.CodeTrailingComma,
			Message:    "Trailing comma before a closing brace or bracket",
			Suggestion: "Remove the comma before the closing '}' or ']'",
			Detect:     submatchDetector(trailingCommaRegex, 0),
		},
		{
			Code:       models.CodeUnclosedQuote,
			Message:    "Line has an odd number of double quotes",
			Suggestion: "Close the string with a double quote or escape the embedded quote as \\\"",
			Detect:     detectUnclosedQuote,
		},
		{
			Code:       models.CodeUnescapedNewline,
			Message:    "Literal newline inside a string",
			Suggestion: "Replace the line break inside the string with \\n",
			Detect:     detectUnescapedNewline,
		},
		{
			Code:       models.CodeInvalidEscape,
			Message:    "Invalid backslash escape inside a string",
			Suggestion: "Use a valid escape (\\\" \\\\ \\/ \\b \\f \\n \\r \\t \\uXXXX) or double the backslash",
			Detect:     detectInvalidEscape,
		},
		{
			Code:       models.CodeSingleQuotes,
			Message:    "Single-quoted key or value",
			Suggestion: "JSON strings must use double quotes",
			Detect:     submatchDetector(singleQuoteRegex, 0),
		},
		{
			Code:       models.CodeUnquotedKey,
			Message:    "Property name without quotes",
			Suggestion: "Wrap the property name in double quotes",
			Detect:     submatchDetector(unquotedKeyRegex, 1),
		},
	}
)

// Register adds h to the table. A heuristic with the same code is replaced.
func Register(h Heuristic) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for i := range registry {
		if registry[i].Code == h.Code {
			registry[i] = h
			return
		}
	}
	registry = append(registry, h)
}

func unregister(code string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = slices.DeleteFunc(registry, func(h Heuristic) bool { return h.Code == code })
}

// Heuristics returns a snapshot of the table in evaluation order
func Heuristics() []Heuristic {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Clone(registry)
}

// submatchDetector reports where capture group 'group' starts; 0 is the whole match
func submatchDetector(re *regexp.Regexp, group int) func(string) (int, bool) {
	return func(text string) (int, bool) {
		m := re.FindStringSubmatchIndex(text)
		if m == nil || m[2*group] < 0 {
			return 0, false
		}
		return m[2*group], true
	}
}

func detectUnclosedQuote(text string) (int, bool) {
	lineStart := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		count, last := 0, -1
		for i := 0; i < len(line); i++ {
			switch line[i] {
			case '\\':
				i++
			case '"':
				count++
				last = i
			}
		}
		if count%2 == 1 {
			return lineStart + last, true
		}
		lineStart += len(line)
	}
	return 0, false
}

func detectUnescapedNewline(text string) (int, bool) {
	inString := false
	for i := 0; i < len(text); i++ {
		switch ch := text[i]; {
		case inString && ch == '\\':
			i++
		case ch == '"':
			inString = !inString
		case inString && (ch == '\n' || ch == '\r'):
			return i, true
		}
	}
	return 0, false
}

func detectInvalidEscape(text string) (int, bool) {
	inString := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString || ch != '\\' {
			continue
		}
		if i+1 >= len(text) {
			return i, true
		}
		switch text[i+1] {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		case 'u':
			if !isHex4(text[i+2:]) {
				return i, true
			}
		default:
			return i, true
		}
		i++
	}
	return 0, false
}

func isHex4(s string) bool {
	if len(s) < 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
