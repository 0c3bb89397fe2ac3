package crawler

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// KeywordMatcher is a multi-pattern, case-insensitive ASCII substring matcher
// built once from the configured keyword list (SPEC_FULL.md §4.3). It is
// sourced from github.com/cloudflare/ahocorasick since no repo in the
// retrieval pack ships an Aho-Corasick implementation (see DESIGN.md).
type KeywordMatcher struct {
	matcher  *ahocorasick.Matcher
	enabled  bool
	keywords []string
}

// NewKeywordMatcher builds a matcher over keywords. An empty or nil list
// yields a disabled matcher: IsMatch then always returns true, per
// SPEC_FULL.md §4.3 and §8's boundary-behavior law.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	if len(keywords) == 0 {
		return &KeywordMatcher{enabled: false}
	}

	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}

	return &KeywordMatcher{
		matcher:  ahocorasick.NewStringMatcher(lowered),
		enabled:  true,
		keywords: lowered,
	}
}

// Enabled reports whether the matcher was built with at least one keyword.
func (m *KeywordMatcher) Enabled() bool {
	return m.enabled
}

// IsMatch reports whether text contains any configured keyword. Disabled
// matchers accept every non-empty input, and also accept empty input — the
// gate is a pass-through, not an additional filter, when NLP is off.
func (m *KeywordMatcher) IsMatch(text string) bool {
	if !m.enabled {
		return true
	}
	hits := m.matcher.Match([]byte(strings.ToLower(text)))
	return len(hits) > 0
}

// ScoreOutlink returns 1 if the anchor text/URL matches a keyword, 0
// otherwise, or nil when the matcher is disabled (SPEC_FULL.md §4.3).
func (m *KeywordMatcher) ScoreOutlink(anchor string) *int {
	if !m.enabled {
		return nil
	}
	score := 0
	if m.IsMatch(anchor) {
		score = 1
	}
	return &score
}
