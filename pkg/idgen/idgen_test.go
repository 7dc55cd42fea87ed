package idgen

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDKeepsPrefixAndIsUnique(t *testing.T) {
	gen := UUID{}
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := gen.NewID("APT")
		require.True(t, strings.HasPrefix(id, "APT-"), id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestMonotonicNeverRepeatsWithinSameMillisecond(t *testing.T) {
	frozen := time.UnixMilli(1710489600000)
	gen := &Monotonic{now: func() time.Time { return frozen }}

	first := gen.NewID("REP")
	second := gen.NewID("REP")
	third := gen.NewID("NTE")

	assert.Equal(t, "REP1710489600000", first)
	assert.Equal(t, "REP1710489600001", second)
	assert.Equal(t, "NTE1710489600002", third)
}

func TestLegacyPatientRange(t *testing.T) {
	gen := NewLegacy(42)
	for i := 0; i < 500; i++ {
		id := gen.NewID("P")
		require.True(t, strings.HasPrefix(id, "P"))
		n, err := strconv.Atoi(strings.TrimPrefix(id, "P"))
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 1000)
		require.LessOrEqual(t, n, 9999)
	}
}

func TestLegacyTimestampIDs(t *testing.T) {
	gen := NewLegacy(1)
	gen.now = func() time.Time { return time.UnixMilli(1700000000123) }
	assert.Equal(t, "APT1700000000123", gen.NewID("APT"))
}

func TestFromScheme(t *testing.T) {
	for _, scheme := range []string{"", "uuid", "UUID", "monotonic", "legacy"} {
		gen, err := FromScheme(scheme)
		require.NoError(t, err, scheme)
		assert.NotEmpty(t, gen.NewID("NTE"))
	}

	_, err := FromScheme("snowflake")
	assert.Error(t, err)
}
