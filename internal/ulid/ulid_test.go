package ulid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
	}{
		{"test case", PrefixTestCase},
		{"test point", PrefixTestPoint},
		{"prefix with dash", "CASE-X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := NewID(tt.prefix)
			assert.True(t, strings.HasPrefix(id, tt.prefix+PrefixSeparator))
			assert.True(t, Validate(id))

			parsed, err := Parse(id)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, parsed.Prefix())
			assert.Equal(t, id, parsed.String())
		})
	}
}

func TestNewIDWithoutPrefix(t *testing.T) {
	id := NewID("")
	assert.NotContains(t, id, PrefixSeparator)
	assert.True(t, Validate(id))

	parsed, err := Parse(id)
	require.NoError(t, err)
	assert.Empty(t, parsed.Prefix())
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse("invalid-ulid")
	assert.Error(t, err)
	assert.False(t, Validate(""))
	assert.False(t, Validate("TC-"))
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := newWithTime(ts, PrefixTestCase)
	b := newWithTime(ts, PrefixTestCase)
	assert.Less(t, a.String(), b.String())
}
