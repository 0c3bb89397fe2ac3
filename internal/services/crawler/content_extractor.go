// Content extraction: title, canonical link, outlinks, structured data, and a
// readability-style main-content body. Adapted from the teacher's goquery-based
// link_extractor.go (ExtractLinks / shouldSkipLink / resolveURL / canonical-link
// handling kept, generalized into one PageData-producing parser) and
// helpers.go's CreateDocument idiom (SPEC_FULL.md §4.2).
package crawler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/webfrontier/internal/domain"
)

// ContentExtractor parses an HTML document into a domain.PageData.
type ContentExtractor struct {
	logger arbor.ILogger
}

// NewContentExtractor creates a content extractor.
func NewContentExtractor(logger arbor.ILogger) *ContentExtractor {
	return &ContentExtractor{logger: logger}
}

// Extract parses html (relative to baseURL) into a PageData. Malformed HTML
// never fails (SPEC_FULL.md §7): on a parse error the zero-value PageData is
// returned with an empty main_content.
func (c *ContentExtractor) Extract(html string, baseURL string) domain.PageData {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		c.logger.Warn().Err(err).Str("url", baseURL).Msg("Failed to parse HTML document")
		return domain.PageData{StructuredData: map[string]interface{}{}}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", baseURL).Msg("Failed to parse base URL for link resolution")
		base = nil
	}

	data := domain.PageData{
		Title:          strings.TrimSpace(doc.Find("title").First().Text()),
		StructuredData: map[string]interface{}{},
	}

	data.CanonicalURL = c.extractCanonical(doc, base)
	data.Outlinks = c.extractOutlinks(doc, base)
	data.OutlinksWithScores = make([]domain.OutlinkScore, len(data.Outlinks))
	for i, u := range data.Outlinks {
		data.OutlinksWithScores[i] = domain.OutlinkScore{URL: u, NLPScore: nil}
	}

	data.StructuredData["meta"] = c.extractMeta(doc)
	if jsonLD := c.extractJSONLD(doc); len(jsonLD) > 0 {
		data.StructuredData["json-ld"] = jsonLD
	}

	data.MainContent = c.extractMainContent(doc)

	return data
}

// extractCanonical returns the href of the first <link rel="canonical">, resolved against base.
func (c *ContentExtractor) extractCanonical(doc *goquery.Document, base *url.URL) string {
	href, exists := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !exists || href == "" {
		return ""
	}
	return c.resolveURL(href, base)
}

// extractOutlinks resolves every <a href> against base, skipping non-content
// schemes and fragment-only links, and deduplicating.
func (c *ContentExtractor) extractOutlinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" || c.shouldSkipLink(href) {
			return
		}
		resolved := c.resolveURL(href, base)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}

func (c *ContentExtractor) shouldSkipLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "sms:", "ftp:", "data:"} {
		if strings.HasPrefix(href, scheme) {
			return true
		}
	}
	return false
}

func (c *ContentExtractor) resolveURL(href string, base *url.URL) string {
	if base == nil {
		if parsed, err := url.Parse(href); err == nil && parsed.IsAbs() {
			return parsed.String()
		}
		return ""
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if !resolved.IsAbs() {
		return ""
	}
	return resolved.String()
}

// extractMeta collects <meta property=... content=...> pairs keyed by property.
func (c *ContentExtractor) extractMeta(doc *goquery.Document) map[string][]string {
	meta := make(map[string][]string)
	doc.Find("meta[property]").Each(func(_ int, s *goquery.Selection) {
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if property == "" {
			return
		}
		meta[property] = append(meta[property], content)
	})
	return meta
}

// extractJSONLD parses every <script type="application/ld+json"> body,
// skipping malformed blocks silently (SPEC_FULL.md §7).
func (c *ContentExtractor) extractJSONLD(doc *goquery.Document) []interface{} {
	var blocks []interface{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var value interface{}
		if err := json.Unmarshal([]byte(s.Text()), &value); err != nil {
			return
		}
		blocks = append(blocks, value)
	})
	return blocks
}

// boilerplateSelectors are removed from the document before density scoring;
// they never contribute to main_content regardless of their text density.
var boilerplateSelectors = []string{
	"script", "style", "nav", "header", "footer", "aside", "form", "noscript",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
}

// extractMainContent implements the "largest text-dense subtree" readability
// algorithm named abstractly in SPEC_FULL.md §4.2/§9: score every div,
// article, main and section element by (text length) / (1 + tag count) within
// it, and return the text of the highest-scoring element (the whole body text
// if none of them has text). Deterministic for identical input, as
// required by the design note; returns "" on any failure rather than erroring.
func (c *ContentExtractor) extractMainContent(doc *goquery.Document) string {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug().Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic during main content extraction")
		}
	}()

	body := doc.Find("body")
	if body.Length() == 0 {
		return ""
	}
	clone := body.Clone()
	for _, sel := range boilerplateSelectors {
		clone.Find(sel).Remove()
	}

	var bestText string
	var bestScore float64

	clone.Find("div, article, main, section").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		tagCount := s.Find("*").Length()
		score := float64(len(text)) / float64(1+tagCount)
		if score > bestScore {
			bestScore = score
			bestText = text
		}
	})

	if bestText == "" {
		bestText = strings.TrimSpace(clone.Text())
	}

	return collapseWhitespace(bestText)
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
