package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordMatcherDisabledWhenNoKeywords(t *testing.T) {
	m := NewKeywordMatcher(nil)
	assert.False(t, m.Enabled())
	assert.True(t, m.IsMatch("anything at all"))
	assert.True(t, m.IsMatch(""))
	assert.Nil(t, m.ScoreOutlink("anything"))
}

func TestKeywordMatcherIsCaseInsensitive(t *testing.T) {
	m := NewKeywordMatcher([]string{"golang"})
	assert.True(t, m.Enabled())
	assert.True(t, m.IsMatch("I really enjoy GoLang programming"))
	assert.False(t, m.IsMatch("I really enjoy Rust programming"))
}

func TestKeywordMatcherScoreOutlink(t *testing.T) {
	m := NewKeywordMatcher([]string{"pricing"})

	score := m.ScoreOutlink("See our Pricing page")
	if assert.NotNil(t, score) {
		assert.Equal(t, 1, *score)
	}

	score = m.ScoreOutlink("About us")
	if assert.NotNil(t, score) {
		assert.Equal(t, 0, *score)
	}
}
