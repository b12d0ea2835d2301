// Package ulid wraps github.com/oklog/ulid/v2 with optional prefixes so that
// synthesized record identifiers stay time-sortable and self-describing,
// e.g. "TC-01HZX3J8W6QK6F7M2V7N3B5C4D".
package ulid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// PrefixTestCase marks synthesized test case identifiers
	PrefixTestCase = "TC"
	// PrefixTestPoint marks synthesized test point identifiers
	PrefixTestPoint = "TP"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ULID is a ulid.ULID with an optional prefix
type ULID struct {
	ulid.ULID
	prefix string
}

// newWithTime creates a ULID for t. Within one millisecond successive IDs
// are strictly increasing.
func newWithTime(t time.Time, prefix string) ULID {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return ULID{id, prefix}
}

// NewID returns a fresh identifier string with the given prefix.
// An empty prefix yields a bare ULID.
func NewID(prefix string) string {
	return newWithTime(time.Now(), prefix).String()
}

// Parse accepts both plain ("01AN4Z07BY79KA1307SR9X4MV3") and prefixed
// ("TC-01AN4Z07BY79KA1307SR9X4MV3") forms. The prefix is everything before
// the last separator, so prefixes may themselves contain dashes.
func Parse(id string) (ULID, error) {
	prefix, rawID := "", id
	if i := strings.LastIndex(id, PrefixSeparator); i >= 0 {
		prefix, rawID = id[:i], id[i+1:]
	}

	parsed, err := ulid.Parse(rawID)
	if err != nil {
		return ULID{}, err
	}
	return ULID{parsed, prefix}, nil
}

// Validate reports whether id is a plain or prefixed ULID
func Validate(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Prefix returns the prefix of the ULID
func (u ULID) Prefix() string {
	return u.prefix
}

// String returns "prefix-ulid", or just the ULID when there is no prefix
func (u ULID) String() string {
	if u.prefix != "" {
		return u.prefix + PrefixSeparator + u.ULID.String()
	}
	return u.ULID.String()
}
