package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestLookupReserved mirrors the teacher's TestLookup: every reserved
// spelling round-trips to its keyword kind (spec §8 property 1).
func TestLookupReserved(t *testing.T) {
	for spelling, kind := range reserved {
		assert.Equal(t, kind, LookupIdentifier(spelling), "lookup of %q", spelling)
	}
}

func TestLookupIdentifierFallsBackToIdentifier(t *testing.T) {
	assert.Equal(t, IDENTIFIER, LookupIdentifier("myVariable"))
	assert.Equal(t, IDENTIFIER, LookupIdentifier("x"))
}

func TestBooleanLiteralValue(t *testing.T) {
	v, ok := BooleanLiteralValue("true")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = BooleanLiteralValue("false")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = BooleanLiteralValue("maybe")
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "IDENTIFIER", IDENTIFIER.String())
	assert.Equal(t, "begin", BEGINKW.String())
	assert.Equal(t, "UNKNOWN", Kind(9999).String())
}
