package fields

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lamim/testforge/pkg/models"
)

// StepNumber reads a step_number value. Integral floats, ints and numeric
// strings are accepted; anything else, or a number below 1, is rejected.
func StepNumber(v any) (int, bool) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		n = int(x)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	return n, n >= 1
}

// DuplicateStepNumbers returns the step numbers used more than once, in
// ascending order. Steps without a readable number are ignored.
func DuplicateStepNumbers(steps []any) []int {
	seen := make(map[int]int)
	for _, s := range steps {
		m, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if n, ok := StepNumber(m[models.FieldStepNumber]); ok {
			seen[n]++
		}
	}

	var dups []int
	for n, count := range seen {
		if count > 1 {
			dups = append(dups, n)
		}
	}
	sort.Ints(dups)
	return dups
}

// IsSteps accepts a non-empty list of canonical step objects with strictly
// increasing integer step numbers
func IsSteps(v any) bool {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return false
	}

	prev := 0
	for _, item := range list {
		step, ok := item.(map[string]any)
		if !ok || len(step) != 3 {
			return false
		}
		n, ok := step[models.FieldStepNumber].(int)
		if !ok {
			f, isFloat := step[models.FieldStepNumber].(float64)
			if !isFloat || f != math.Trunc(f) {
				return false
			}
			n = int(f)
		}
		if n <= prev {
			return false
		}
		prev = n
		if !IsNonEmptyString(step[models.FieldAction]) || !IsString(step[models.FieldExpected]) {
			return false
		}
	}
	return true
}

// NormalizeSteps converts loosely shaped steps into canonical step objects
// sorted by step_number. Duplicate numbers are renumbered sequentially and
// reported with an error wrapping models.ErrDuplicateStepNumber; the
// returned value is usable in that case.
func NormalizeSteps(v any) (any, error) {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case string:
		for _, line := range strings.Split(x, "\n") {
			if strings.TrimSpace(line) != "" {
				items = append(items, line)
			}
		}
	case map[string]any:
		items = []any{x}
	default:
		return nil, fmt.Errorf("cannot convert %T to steps", v)
	}

	type numbered struct {
		n    int
		step map[string]any
	}
	steps := make([]numbered, 0, len(items))
	for i, item := range items {
		step, ok := normalizeStep(item, i+1)
		if !ok {
			continue
		}
		steps = append(steps, numbered{n: step[models.FieldStepNumber].(int), step: step})
	}
	if len(steps) == 0 {
		return nil, errors.New("no usable steps")
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].n < steps[j].n })

	var dups []int
	for i := 1; i < len(steps); i++ {
		if steps[i].n == steps[i-1].n && (len(dups) == 0 || dups[len(dups)-1] != steps[i].n) {
			dups = append(dups, steps[i].n)
		}
	}

	out := make([]any, len(steps))
	for i, s := range steps {
		if len(dups) > 0 {
			s.step[models.FieldStepNumber] = i + 1
		}
		out[i] = s.step
	}

	if len(dups) > 0 {
		return out, fmt.Errorf("%w %v, steps renumbered", models.ErrDuplicateStepNumber, dups)
	}
	return out, nil
}

// normalizeStep builds a canonical step from a step object or a bare string.
// fallback is used when the item carries no usable step_number.
func normalizeStep(item any, fallback int) (map[string]any, bool) {
	switch x := item.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, false
		}
		return newStep(fallback, strings.TrimSpace(x), ""), true
	case map[string]any:
		n, ok := StepNumber(x[models.FieldStepNumber])
		if !ok {
			n = fallback
		}
		action := firstString(x, models.FieldAction, "step", models.FieldDescription)
		if action == "" {
			return nil, false
		}
		return newStep(n, action, firstString(x, models.FieldExpected, models.FieldExpectedResult)), true
	}
	return nil, false
}

func newStep(n int, action, expected string) map[string]any {
	return map[string]any{
		models.FieldStepNumber: n,
		models.FieldAction:     action,
		models.FieldExpected:   expected,
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && !IsEmpty(v) {
			if s, err := stringify(v); err == nil {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
