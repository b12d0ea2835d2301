package writer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSessionPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "valid", input: "session_2026-10-19T14-30-00"},
		{name: "valid midnight", input: "session_2024-01-01T00-00-00"},
		{name: "empty", input: "", wantErr: "cannot be empty"},
		{name: "parent traversal", input: "../../etc/passwd", wantErr: "path traversal"},
		{name: "traversal after valid name", input: "session_2026-10-19T14-30-00/../records", wantErr: "path traversal"},
		{name: "absolute", input: "/var/lib/testforge", wantErr: "must be relative"},
		{name: "windows path", input: `C:\Users\qa\cases`, wantErr: "without path separators"},
		{name: "nested", input: "session/2026", wantErr: "without path separators"},
		{name: "not a session", input: "records", wantErr: "invalid session name format"},
		{name: "compact timestamp", input: "session_20261019T143000", wantErr: "invalid session name format"},
		{name: "null byte", input: "session_2026-10-19T14-30-00\x00", wantErr: "invalid session name format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionPath(t.TempDir(), tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSessionPathDefaultsOutputDir(t *testing.T) {
	assert.NoError(t, ValidateSessionPath("", "session_2026-10-19T14-30-00"))
}

func TestNewSessionNameRoundTrips(t *testing.T) {
	name := newSessionName(time.Date(2026, 10, 19, 9, 5, 7, 0, time.UTC))
	assert.Equal(t, "session_2026-10-19T09-05-07", name)
	assert.NoError(t, ValidateSessionPath("", name))
}
