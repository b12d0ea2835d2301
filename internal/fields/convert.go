package fields

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lamim/testforge/pkg/models"
)

// IsNonEmptyString is the validator for plain text fields
func IsNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// IsString accepts any string, including the empty one
func IsString(v any) bool {
	_, ok := v.(string)
	return ok
}

// IsStringList accepts a list whose elements are all strings
func IsStringList(v any) bool {
	list, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

// ToString converts scalars to their text form
func ToString(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case float64:
		return formatNumber(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return nil, fmt.Errorf("cannot convert %T to string", v)
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToStringList wraps a scalar into a one-element list and stringifies the
// elements of an existing list. Empty elements are dropped.
func ToStringList(v any) (any, error) {
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		s, err := stringify(item)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable list elements in %T", v)
	}
	return out, nil
}

func stringify(v any) (string, error) {
	if s, err := ToString(v); err == nil {
		return s.(string), nil
	}
	switch v.(type) {
	case nil:
		return "", nil
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

var priorityAliases = map[string]string{
	"high":     models.PriorityHigh,
	"h":        models.PriorityHigh,
	"高":        models.PriorityHigh,
	"p0":       models.PriorityHigh,
	"p1":       models.PriorityHigh,
	"critical": models.PriorityHigh,
	"urgent":   models.PriorityHigh,
	"medium":   models.PriorityMedium,
	"med":      models.PriorityMedium,
	"m":        models.PriorityMedium,
	"中":        models.PriorityMedium,
	"p2":       models.PriorityMedium,
	"normal":   models.PriorityMedium,
	"low":      models.PriorityLow,
	"l":        models.PriorityLow,
	"低":        models.PriorityLow,
	"p3":       models.PriorityLow,
	"minor":    models.PriorityLow,
}

// IsPriority accepts only the canonical low/medium/high values
func IsPriority(v any) bool {
	s, ok := v.(string)
	return ok && (s == models.PriorityLow || s == models.PriorityMedium || s == models.PriorityHigh)
}

// PriorityConverter normalises priority spellings case-insensitively and
// falls back to def for anything unrecognised
func PriorityConverter(def string) func(any) (any, error) {
	return func(v any) (any, error) {
		s, err := stringify(v)
		if err != nil {
			return def, nil
		}
		if p, ok := priorityAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
			return p, nil
		}
		return def, nil
	}
}
