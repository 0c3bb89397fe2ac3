package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/webfrontier/internal/domain"
)

func TestResolveScopePicksLongestPrefixMatch(t *testing.T) {
	scopes := []domain.Scope{
		{ID: 1, Pattern: "https://example.com/*"},
		{ID: 2, Pattern: "https://example.com/docs/*"},
	}

	scope, ok := resolveScope("https://example.com/docs/guide", scopes)
	assert.True(t, ok)
	assert.Equal(t, int64(2), scope.ID, "a URL matching two scope prefixes must resolve to the more specific one, not an arbitrary default")
}

func TestResolveScopeNoMatch(t *testing.T) {
	scopes := []domain.Scope{{ID: 1, Pattern: "https://example.com/*"}}

	_, ok := resolveScope("https://other.com/page", scopes)
	assert.False(t, ok)
}

func TestResolveScopeIgnoresEmptyBaseURL(t *testing.T) {
	scopes := []domain.Scope{{ID: 1, Pattern: "*"}}

	_, ok := resolveScope("https://example.com/page", scopes)
	assert.False(t, ok)
}

func TestJoinURLResolvesRelativeToBase(t *testing.T) {
	got, err := joinURL("https://example.com", "/robots.txt")
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/robots.txt", got)
}
