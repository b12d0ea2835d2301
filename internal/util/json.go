package util

import (
	"strings"
	"unicode/utf8"
)

// countUnmatchedBraces returns how many openChar brackets are left open at the end of s
func countUnmatchedBraces(s string, openChar, closeChar byte) int {
	count := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case openChar:
			count++
		case closeChar:
			if count > 0 {
				count--
			}
		}
	}

	return count
}

// SanitizeJSON fixes common JSON issues from LLM responses
// Specifically handles unescaped newlines in string values
func SanitizeJSON(s string) string {
	var result strings.Builder
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			result.WriteByte(ch)
			escaped = false
			continue
		}

		if ch == '\\' {
			result.WriteByte(ch)
			escaped = true
			continue
		}

		if ch == '"' {
			result.WriteByte(ch)
			inString = !inString
			continue
		}

		// Replace literal newlines in strings with \n
		if inString && (ch == '\n' || ch == '\r') {
			result.WriteString("\\n")
			// Skip \r if followed by \n
			if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}

		result.WriteByte(ch)
	}

	return result.String()
}

// StripTrailingCommas removes commas that directly precede a closing } or ],
// ignoring commas inside string literals. Repeats until nothing changes so that
// runs like ",,]" collapse fully.
func StripTrailingCommas(s string) string {
	for {
		var b strings.Builder
		b.Grow(len(s))
		changed := false
		inString := false
		escaped := false

		for i := 0; i < len(s); i++ {
			ch := s[i]
			if escaped {
				escaped = false
				b.WriteByte(ch)
				continue
			}
			if ch == '\\' && inString {
				escaped = true
				b.WriteByte(ch)
				continue
			}
			if ch == '"' {
				inString = !inString
			}
			if ch == ',' && !inString {
				j := i + 1
				for j < len(s) && isJSONSpace(s[j]) {
					j++
				}
				if j < len(s) && (s[j] == '}' || s[j] == ']') {
					changed = true
					continue
				}
			}
			b.WriteByte(ch)
		}

		if !changed {
			return s
		}
		s = b.String()
	}
}

// insertMissingCommas adds a comma between two adjacent values that have only
// whitespace between them, e.g. `"a" "b"` or `} {`.
func insertMissingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString := false
	escaped := false
	var lastSignificant byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
				lastSignificant = '"'
			}
			continue
		}

		if isJSONSpace(ch) {
			b.WriteByte(ch)
			continue
		}

		if (ch == '"' || ch == '{' || ch == '[') && endsValue(lastSignificant) {
			b.WriteByte(',')
		}
		if ch == '"' {
			inString = true
		}
		b.WriteByte(ch)
		lastSignificant = ch
	}

	return b.String()
}

// endsValue reports whether a byte outside strings can terminate a JSON value
func endsValue(ch byte) bool {
	switch {
	case ch == '"' || ch == '}' || ch == ']':
		return true
	case ch >= '0' && ch <= '9':
		return true
	case ch == 'e' || ch == 'l': // true, false, null
		return true
	}
	return false
}

func isJSONSpace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

// RepairJSON applies the conservative syntax repairs used for opt-in auto-repair:
// raw newlines in strings, missing commas between adjacent values, trailing
// commas, and unclosed brackets at the end of a truncated payload.
func RepairJSON(s string) string {
	s = SanitizeJSON(s)
	s = insertMissingCommas(s)
	s = StripTrailingCommas(s)

	trimmed := strings.TrimRight(s, " \n\r\t,")
	openObjects := countUnmatchedBraces(trimmed, '{', '}')
	openArrays := countUnmatchedBraces(trimmed, '[', ']')
	if openObjects == 0 && openArrays == 0 {
		return s
	}
	return closeOpenBrackets(trimmed)
}

// closeOpenBrackets appends closers for every bracket still open, innermost first
func closeOpenBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// OffsetToLineColumn converts a byte offset into a 1-based line and column.
// The column counts runes, so it stays aligned on lines with multi-byte text.
func OffsetToLineColumn(s string, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s) {
		offset = len(s)
	}
	line := 1 + strings.Count(s[:offset], "\n")
	lineStart := strings.LastIndex(s[:offset], "\n") + 1
	return line, utf8.RuneCountInString(s[lineStart:offset]) + 1
}
