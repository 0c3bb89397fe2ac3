package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeSortsQueryAndDropsFragment(t *testing.T) {
	got := Canonicalize("HTTP://Example.com/path?b=2&a=1#section")
	assert.Equal(t, "http://example.com/path?a=1&b=2", got)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	once := Canonicalize("http://EXAMPLE.com/x?z=9&a=1")
	twice := Canonicalize(once)
	assert.Equal(t, once, twice)
}

func TestCanonicalizeMalformedURLLowercasesAndTrims(t *testing.T) {
	got := Canonicalize("  NOT A URL \n")
	assert.Equal(t, "not a url", got)
}

func TestHostOfLowercases(t *testing.T) {
	assert.Equal(t, "example.com", HostOf("https://Example.COM/path"))
	assert.Equal(t, "", HostOf("://bad"))
}

func TestPathOf(t *testing.T) {
	assert.Equal(t, "/a/b", PathOf("https://example.com/a/b?x=1"))
}
