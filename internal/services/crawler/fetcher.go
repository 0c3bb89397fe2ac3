package crawler

import (
	"context"

	"github.com/ternarybob/webfrontier/internal/httpclient"
)

// httpFetcher adapts httpclient.Client's richer Result to the narrow Fetcher
// interface sitemap.go and the orchestrator depend on, keeping this package's
// own types decoupled from httpclient's.
type httpFetcher struct {
	client *httpclient.Client
}

// NewFetcher wraps an httpclient.Client as a Fetcher.
func NewFetcher(client *httpclient.Client) Fetcher {
	return httpFetcher{client: client}
}

func (h httpFetcher) Get(ctx context.Context, rawURL string) (*FetchResult, error) {
	res, err := h.client.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		StatusCode:    res.StatusCode,
		Body:          res.Body,
		ETag:          res.ETag,
		LastModified:  res.LastModified,
		ContentLength: res.ContentLength,
	}, nil
}
