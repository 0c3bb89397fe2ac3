package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/webfrontier/internal/domain"
	"golang.org/x/time/rate"
)

// maxBodyBytes caps how much of a response body the client will buffer,
// generous enough for HTML pages while bounding memory under pathological
// responses.
const maxBodyBytes = 16 << 20

// userAgents is the fixed 5-entry rotation pool (SPEC_FULL.md §4.5/§6).
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4_1) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/124.0.0.0 Safari/537.36",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Config configures the pooled client (maps directly onto SPEC_FULL.md §6's
// `http:` config block).
type Config struct {
	ConnectTimeout      time.Duration
	RequestTimeout      time.Duration
	PoolMaxIdlePerHost  int
	Proxy               string
}

// hostState is the per-host pacing state described in SPEC_FULL.md §4.5.
type hostState struct {
	mu            sync.Mutex
	lastRequestAt time.Time
	ewmaRTT       time.Duration
	seen          bool
}

// PageLookup is the subset of storage the client needs for conditional GET:
// looking up a previously fetched Page by URL to attach If-None-Match /
// If-Modified-Since headers (SPEC_FULL.md §4.5).
type PageLookup interface {
	GetPageByURL(ctx context.Context, url string) (*domain.Page, bool, error)
}

// Client is the crawler's polite, EWMA-paced, retrying HTTP fetcher.
type Client struct {
	http   *http.Client
	retry  *RetryPolicy
	logger arbor.ILogger
	pages  PageLookup

	hostsMu sync.Mutex
	hosts   map[string]*hostState

	// global soft-caps overall dispatch rate across all hosts, independent of
	// per-host EWMA pacing, so a large worker pool can't burst the outbound
	// connection table all at once.
	global *rate.Limiter
}

const ewmaAlpha = 0.125

// New constructs a pooled Client from cfg. pages may be nil if conditional
// GET lookups aren't needed (e.g. during sitemap discovery).
func New(cfg Config, logger arbor.ILogger, pages PageLookup) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: cfg.PoolMaxIdlePerHost,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSClientConfig: &tls.Config{},
	}

	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			logger.Warn().Err(err).Str("proxy", cfg.Proxy).Msg("Ignoring invalid proxy URL")
		}
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		retry:  NewRetryPolicy(),
		logger: logger,
		pages:  pages,
		hosts:  make(map[string]*hostState),
		global: rate.NewLimiter(rate.Limit(200), 50),
	}
}

// Result is the outcome of a single fetch.
type Result struct {
	StatusCode    int
	Body          []byte
	ETag          string
	LastModified  string
	ContentLength int64
}

// Get fetches rawURL, applying per-host pacing, conditional-GET headers, UA
// rotation, and retry with backoff. A 4xx response is returned as a
// successful Result per SPEC_FULL.md §4.5 (the caller decides what to do with
// non-2xx statuses); only transport errors and exhausted retries return err.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, error) {
	host := hostOf(rawURL)
	if host == "" {
		host = rawURL
	}
	state := c.stateFor(host)

	if err := c.global.Wait(ctx); err != nil {
		return nil, err
	}
	c.waitForTurn(ctx, state)

	var result *Result
	statusCode, err := c.retry.Execute(ctx, c.logger, func() (int, error) {
		start := time.Now()
		res, fetchErr := c.doRequest(ctx, rawURL)
		elapsed := time.Since(start)

		state.mu.Lock()
		state.lastRequestAt = time.Now()
		if state.ewmaRTT == 0 {
			state.ewmaRTT = elapsed
		} else {
			state.ewmaRTT = time.Duration((1-ewmaAlpha)*float64(state.ewmaRTT) + ewmaAlpha*float64(elapsed))
		}
		state.mu.Unlock()

		if fetchErr != nil {
			return 0, fetchErr
		}
		result = res
		return res.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &Result{StatusCode: statusCode}
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept-Encoding", "br,gzip,deflate")
	req.Header.Set("User-Agent", randomUserAgent())

	if c.pages != nil {
		if page, ok, lookupErr := c.pages.GetPageByURL(ctx, rawURL); lookupErr == nil && ok && page != nil {
			if page.ETag != "" {
				req.Header.Set("If-None-Match", page.ETag)
			}
			if page.LastModified != "" {
				req.Header.Set("If-Modified-Since", page.LastModified)
			}
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readAllLimited(resp)
	if err != nil {
		return nil, err
	}

	return &Result{
		StatusCode:    resp.StatusCode,
		Body:          body,
		ETag:          resp.Header.Get("ETag"),
		LastModified:  resp.Header.Get("Last-Modified"),
		ContentLength: resp.ContentLength,
	}, nil
}

func (c *Client) stateFor(host string) *hostState {
	c.hostsMu.Lock()
	defer c.hostsMu.Unlock()
	state, ok := c.hosts[host]
	if !ok {
		state = &hostState{}
		c.hosts[host] = state
	}
	return state
}

// waitForTurn sleeps until host is eligible for its next request, per the
// EWMA pacing formula in SPEC_FULL.md §4.5.
func (c *Client) waitForTurn(ctx context.Context, state *hostState) {
	state.mu.Lock()
	first := !state.seen
	state.seen = true
	last := state.lastRequestAt
	ewma := state.ewmaRTT
	state.mu.Unlock()

	var required time.Duration
	if first {
		required = time.Duration(1000+rand.Intn(4000)) * time.Millisecond
	} else {
		jitter := time.Duration(500+rand.Intn(500)) * time.Millisecond
		required = 2*ewma + jitter
	}

	if first {
		select {
		case <-ctx.Done():
		case <-time.After(required):
		}
		return
	}

	if last.IsZero() {
		return
	}

	elapsed := time.Since(last)
	if elapsed >= required {
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(required - elapsed):
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func readAllLimited(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
