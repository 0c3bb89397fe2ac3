package crawler

import (
	"net/url"
	"sort"
	"strings"
)

// Canonicalize rewrites a URL into its normal form: scheme and host
// lowercased, fragment removed, query pairs lexicographically sorted and
// re-joined as k=v&k=v. It mirrors the teacher's queue.go normalizeURL. The
// Frontier, the HTTP client and the Deduplicator do not call it; they work on
// URLs as given.
func Canonicalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		query := u.Query()
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		values := url.Values{}
		for _, k := range keys {
			sort.Strings(query[k])
			for _, v := range query[k] {
				values.Add(k, v)
			}
		}
		encoded := values.Encode()
		if encoded == "" {
			u.RawQuery = ""
		} else {
			u.RawQuery = encoded
		}
	}

	return u.String()
}

// HostOf returns the lowercased host component of a URL, or "" if it can't be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// PathOf returns the path component of a URL.
func PathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Path
}
