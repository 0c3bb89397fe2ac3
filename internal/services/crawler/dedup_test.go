package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextHashIsStableAndSensitiveToContent(t *testing.T) {
	a := TextHash("hello world")
	b := TextHash("hello world")
	c := TextHash("hello there")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}

func TestTextHashIsCaseInsensitive(t *testing.T) {
	lower := TextHash("hello world")
	mixed := TextHash("Hello World")
	shout := TextHash("HELLO WORLD")

	assert.Equal(t, lower, mixed, "text_hash must ignore letter case per SPEC_FULL.md §3")
	assert.Equal(t, lower, shout)
}

func TestTextHashPreservesWhitespaceDifferences(t *testing.T) {
	a := TextHash("hello  world")
	b := TextHash("hello world")

	assert.NotEqual(t, a, b, "text_hash leaves whitespace unchanged, only case is normalized")
}

func TestSimHashNearIdenticalTextStaysWithinThreshold(t *testing.T) {
	original := "The quick brown fox jumps over the lazy dog in the warm afternoon sun"
	tweaked := "The quick brown fox jumps over the lazy dog in the warm evening sun"

	distance := HammingDistanceHex(SimHash(original), SimHash(tweaked))
	assert.GreaterOrEqual(t, distance, 0)
	assert.LessOrEqual(t, distance, NearDuplicateThreshold)
}

func TestSimHashUnrelatedTextExceedsThreshold(t *testing.T) {
	a := SimHash("The quick brown fox jumps over the lazy dog")
	b := SimHash("Quarterly revenue grew twelve percent year over year")

	assert.Greater(t, HammingDistanceHex(a, b), NearDuplicateThreshold)
}

func TestHammingDistanceHexRejectsMalformedInput(t *testing.T) {
	assert.Equal(t, -1, HammingDistanceHex("short", "0000000000000000"))
	assert.Equal(t, -1, HammingDistanceHex("zzzzzzzzzzzzzzzz", "0000000000000000"))
}

func TestHammingDistanceHexIdenticalIsZero(t *testing.T) {
	h := SimHash("same text every time")
	assert.Equal(t, 0, HammingDistanceHex(h, h))
}
