// Package extract locates a candidate JSON object inside raw model output.
//
// Strategies run in a fixed order and the first hit wins: the whole trimmed
// text, then fenced code blocks, then a scan for object literals in prose.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/lamim/testforge/pkg/models"
)

// Precompiled fence patterns; each requires the fenced content to be an object
var (
	fencedJSONRegex      = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	fencedGenericRegex   = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
	fencedUppercaseRegex = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")
	simpleObjectRegex    = regexp.MustCompile(`(?s)\{.*\}`)
)

var fences = []struct {
	re     *regexp.Regexp
	method models.ExtractionMethod
}{
	{re: fencedJSONRegex, method: models.MethodFencedCodeBlock},
	{re: fencedGenericRegex, method: models.MethodFencedCodeBlockGeneric},
	{re: fencedUppercaseRegex, method: models.MethodFencedCodeBlockUppercase},
}

// Extract returns the candidate JSON text and the strategy that found it.
// The boolean is false when no strategy matched; that is not recoverable by repair.
func Extract(raw string) (models.ExtractedPayload, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.ExtractedPayload{}, false
	}

	if json.Valid([]byte(trimmed)) {
		return models.ExtractedPayload{Text: trimmed, Method: models.MethodDirect}, true
	}

	for _, f := range fences {
		if m := f.re.FindStringSubmatch(trimmed); len(m) > 1 {
			return models.ExtractedPayload{Text: strings.TrimSpace(m[1]), Method: f.method}, true
		}
	}

	if text := longestBalanced(trimmed); text != "" {
		return models.ExtractedPayload{Text: text, Method: models.MethodNestedObjectScan}, true
	}

	if text := longest(simpleObjectRegex.FindAllString(trimmed, -1)); text != "" {
		return models.ExtractedPayload{Text: text, Method: models.MethodSimpleObjectScan}, true
	}

	return models.ExtractedPayload{}, false
}

// longestBalanced returns the longest {...} span whose braces balance,
// ignoring braces inside string literals. It is a single pass: open braces
// are kept on a stack and every close records the span back to its open, so
// a truncated outer object still yields its complete inner objects.
// Quotes outside any object are prose and do not start a string.
func longestBalanced(s string) string {
	var (
		stack    []int
		inString bool
		escaped  bool
		best     string
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if len(stack) > 0 {
				inString = true
			}
		case '{':
			stack = append(stack, i)
		case '}':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if i+1-open > len(best) {
				best = s[open : i+1]
			}
		}
	}
	return best
}

// longest picks the largest candidate; explanatory prose rarely forms big balanced objects
func longest(candidates []string) string {
	best := ""
	for _, c := range candidates {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}
