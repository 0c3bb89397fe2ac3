package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newTestExtractor() *ContentExtractor {
	return NewContentExtractor(arbor.NewLogger())
}

func TestExtractParsesTitleAndCanonical(t *testing.T) {
	html := `<html><head><title>  Example Page </title>
<link rel="canonical" href="/canonical-path">
</head><body><p>hello</p></body></html>`

	data := newTestExtractor().Extract(html, "https://example.com/page")

	assert.Equal(t, "Example Page", data.Title)
	assert.Equal(t, "https://example.com/canonical-path", data.CanonicalURL)
}

func TestExtractOutlinksDedupesAndSkipsNonContentSchemes(t *testing.T) {
	html := `<html><body>
<a href="/a">A</a>
<a href="/a">A again</a>
<a href="mailto:hi@example.com">mail</a>
<a href="javascript:void(0)">js</a>
<a href="#section">frag</a>
<a href="https://other.com/b">B</a>
</body></html>`

	data := newTestExtractor().Extract(html, "https://example.com/page")

	assert.ElementsMatch(t, []string{"https://example.com/a", "https://other.com/b"}, data.Outlinks)
}

func TestExtractOutlinksWithScoresStartsUnscored(t *testing.T) {
	html := `<html><body><a href="/a">A</a></body></html>`
	data := newTestExtractor().Extract(html, "https://example.com/page")

	require.Len(t, data.OutlinksWithScores, 1)
	assert.Nil(t, data.OutlinksWithScores[0].NLPScore)
}

func TestExtractJSONLDSkipsMalformedBlocksSilently(t *testing.T) {
	html := `<html><body>
<script type="application/ld+json">{"@type": "Organization"}</script>
<script type="application/ld+json">not json</script>
</body></html>`

	data := newTestExtractor().Extract(html, "https://example.com/page")

	jsonLD, ok := data.StructuredData["json-ld"].([]interface{})
	require.True(t, ok)
	assert.Len(t, jsonLD, 1)
}

func TestExtractMalformedHTMLDoesNotFail(t *testing.T) {
	// The lenient HTML tokenizer keeps the leading "<<" as body text and drops
	// the unterminated "<not ..." tag at end of input.
	data := newTestExtractor().Extract("<<<not html at all", "https://example.com/page")
	assert.Equal(t, "<<", data.MainContent)
}

func TestExtractMainContentPicksDensestBlock(t *testing.T) {
	html := `<html><body>
<nav>Home About Contact Home About Contact</nav>
<div id="main"><p>` + longParagraph() + `</p></div>
</body></html>`

	data := newTestExtractor().Extract(html, "https://example.com/page")
	assert.Contains(t, data.MainContent, "lorem")
}

func longParagraph() string {
	s := ""
	for i := 0; i < 50; i++ {
		s += "lorem ipsum dolor sit amet consectetur adipiscing elit "
	}
	return s
}
