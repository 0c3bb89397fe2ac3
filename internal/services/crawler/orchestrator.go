// Crawl orchestrator: the two-phase Discovery/Export pipeline described in
// SPEC_FULL.md §4.9. Grounded on the teacher's internal/worker/pool.go
// Start/Stop/context idiom (now living in internal/worker) plus
// original_source/src/monitoring.rs's periodic-checkpoint pattern for the
// 30s frontier snapshot tick.
package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/webfrontier/internal/common"
	"github.com/ternarybob/webfrontier/internal/domain"
	"github.com/ternarybob/webfrontier/internal/worker"
)

// frontierCheckpointInterval is the periodic snapshot cadence (SPEC_FULL.md §5).
const frontierCheckpointInterval = 30 * time.Second

// emptyPollInterval/emptyPollLimit bound how long Phase 1 waits on a
// momentarily empty frontier before concluding the crawl is done.
const emptyPollInterval = 100 * time.Millisecond
const emptyPollLimit = 3

// OrchestratorStore is the storage surface the orchestrator needs beyond what
// SitemapIngester and Deduplicator already require.
type OrchestratorStore interface {
	SitemapStore
	DuplicateStore
	UpsertPage(ctx context.Context, p domain.Page) (int64, error)
	LoadFrontierState(ctx context.Context) ([]byte, bool, error)
	TouchScopeLastCrawled(ctx context.Context, id int64, at time.Time) error
	AppendEvent(ctx context.Context, ev domain.Event) error
}

// Orchestrator runs a full crawl against every active scope.
type Orchestrator struct {
	store       OrchestratorStore
	fetch       Fetcher
	sitemaps    *SitemapIngester
	extractor   *ContentExtractor
	keywords    *KeywordMatcher
	dedup       *Deduplicator
	exporter    *Exporter
	pdf         *PDFExporter
	monitor     *common.Monitor
	logger      arbor.ILogger
	concurrency int
}

// NewOrchestrator constructs an Orchestrator. pdf may be nil to skip PDF
// rendering entirely.
func NewOrchestrator(
	store OrchestratorStore,
	fetch Fetcher,
	extractor *ContentExtractor,
	keywords *KeywordMatcher,
	dedup *Deduplicator,
	exporter *Exporter,
	pdf *PDFExporter,
	monitor *common.Monitor,
	logger arbor.ILogger,
	concurrency int,
) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 32
	}
	return &Orchestrator{
		store:       store,
		fetch:       fetch,
		sitemaps:    NewSitemapIngester(fetch, store, logger),
		extractor:   extractor,
		keywords:    keywords,
		dedup:       dedup,
		exporter:    exporter,
		pdf:         pdf,
		monitor:     monitor,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run executes Setup, Phase 1 (Discovery), and Phase 2 (Export) against every
// active scope, per SPEC_FULL.md §4.9. Returns nil (and prints a message) when
// there are no active scopes, matching §8 scenario 1.
func (o *Orchestrator) Run(ctx context.Context) error {
	scopes, err := o.store.GetActiveScopes(ctx)
	if err != nil {
		return fmt.Errorf("load active scopes: %w", err)
	}
	if len(scopes) == 0 {
		fmt.Println("No active scopes found. Please add a scope first.")
		return nil
	}

	frontier, err := o.loadOrNewFrontier(ctx)
	if err != nil {
		return fmt.Errorf("load frontier state: %w", err)
	}

	for _, scope := range scopes {
		base := scope.BaseURL()
		sitemapURLs, err := o.sitemaps.DiscoverSitemaps(ctx, base)
		if err != nil {
			o.logger.Warn().Err(err).Str("scope", base).Msg("Sitemap discovery failed")
			continue
		}
		for _, sm := range sitemapURLs {
			if err := o.sitemaps.ParseAndStage(ctx, sm, scope.ID); err != nil {
				o.logger.Warn().Err(err).Str("sitemap", sm).Msg("Failed to stage sitemap")
				continue
			}
			scopeID := scope.ID
			_ = o.store.AppendEvent(ctx, domain.Event{Kind: domain.EventSitemapFound, ScopeID: &scopeID, URL: sm})
		}
	}

	if err := o.sitemaps.ProcessStaged(ctx, frontier); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to process staged sitemap URLs")
	}

	if frontier.IsEmpty() {
		seed := scopes[0]
		base := seed.BaseURL()
		frontier.Add(base, Priority(base, seed.Pattern, false))
	}

	startedAt := time.Now()
	_ = o.store.AppendEvent(ctx, domain.Event{Kind: domain.EventCrawlStarted})
	o.logger.Info().Int("scopes", len(scopes)).Int64("frontier_size", int64(frontier.Size())).Msg("Crawl starting")

	checkpointCtx, stopCheckpoint := context.WithCancel(ctx)
	common.SafeGoWithContext(checkpointCtx, o.logger, "frontier-checkpoint", func() {
		o.runCheckpoints(checkpointCtx, frontier)
	})

	discovered := o.runDiscoveryPhase(ctx, frontier)
	o.runExportPhase(ctx, dedupeStrings(discovered))

	stopCheckpoint()
	if err := o.checkpoint(ctx, frontier); err != nil {
		o.logger.Warn().Err(err).Msg("Final frontier checkpoint failed")
	}

	for _, scope := range scopes {
		if err := o.store.TouchScopeLastCrawled(ctx, scope.ID, time.Now().UTC()); err != nil {
			o.logger.Warn().Err(err).Int64("scope_id", scope.ID).Msg("Failed to update scope last_crawled_at")
		}
	}

	_ = o.store.AppendEvent(ctx, domain.Event{Kind: domain.EventCrawlFinished})
	o.logger.Info().Dur("elapsed", time.Since(startedAt)).Msg("Crawl finished")

	return nil
}

func (o *Orchestrator) loadOrNewFrontier(ctx context.Context) (*Frontier, error) {
	blob, ok, err := o.store.LoadFrontierState(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewFrontier(), nil
	}
	f, err := LoadFrontier(blob)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Failed to parse persisted frontier state, starting fresh")
		return NewFrontier(), nil
	}
	return f, nil
}

func (o *Orchestrator) runCheckpoints(ctx context.Context, frontier *Frontier) {
	ticker := time.NewTicker(frontierCheckpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.monitor.SetFrontierDepth(int64(frontier.Size()))
			if err := o.checkpoint(ctx, frontier); err != nil {
				o.logger.Warn().Err(err).Msg("Periodic frontier checkpoint failed")
			}
		}
	}
}

func (o *Orchestrator) checkpoint(ctx context.Context, frontier *Frontier) error {
	blob, err := frontier.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot frontier: %w", err)
	}
	return o.store.SaveFrontierState(ctx, blob)
}

// runDiscoveryPhase pops the frontier until it stays empty across
// emptyPollLimit consecutive polls with no in-flight tasks, dispatching a
// fetch+parse+enqueue task per URL. Returns every URL touched (fetched seeds
// plus newly admitted same-host outlinks).
func (o *Orchestrator) runDiscoveryPhase(ctx context.Context, frontier *Frontier) []string {
	pool := worker.NewPool(ctx, o.concurrency, o.logger)

	var mu sync.Mutex
	var discovered []string
	var inFlight int64
	emptyPolls := 0

	for {
		if ctx.Err() != nil {
			break
		}

		rawURL, ok := frontier.Pop()
		if !ok {
			if atomic.LoadInt64(&inFlight) == 0 && frontier.IsEmpty() {
				emptyPolls++
				if emptyPolls >= emptyPollLimit {
					break
				}
			}
			select {
			case <-ctx.Done():
			case <-time.After(emptyPollInterval):
			}
			continue
		}
		emptyPolls = 0

		atomic.AddInt64(&inFlight, 1)
		url := rawURL
		dispatched := pool.Dispatch("discover:"+url, func(taskCtx context.Context) {
			defer atomic.AddInt64(&inFlight, -1)
			o.discoverOne(taskCtx, url, frontier, &mu, &discovered)
		})
		if !dispatched {
			atomic.AddInt64(&inFlight, -1)
		}
	}

	pool.Stop()
	return discovered
}

func (o *Orchestrator) discoverOne(ctx context.Context, rawURL string, frontier *Frontier, mu *sync.Mutex, discovered *[]string) {
	o.monitor.IncRequests()
	res, err := o.fetch.Get(ctx, rawURL)
	if err != nil {
		o.logger.Debug().Err(err).Str("url", rawURL).Msg("Discovery fetch failed")
		return
	}
	o.monitor.AddBytesIn(int64(len(res.Body)))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return
	}

	data := o.extractor.Extract(string(res.Body), rawURL)
	host := HostOf(rawURL)

	mu.Lock()
	*discovered = append(*discovered, rawURL)
	mu.Unlock()

	for _, outlink := range data.Outlinks {
		if HostOf(outlink) != host {
			continue
		}
		priority := Priority(outlink, rawURL, false)
		if frontier.Add(outlink, priority) {
			mu.Lock()
			*discovered = append(*discovered, outlink)
			mu.Unlock()
		}
	}
}

// runExportPhase fetches, parses, gates, hashes, and exports each URL in urls,
// bounded by the same concurrency as Phase 1.
func (o *Orchestrator) runExportPhase(ctx context.Context, urls []string) {
	pool := worker.NewPool(ctx, o.concurrency, o.logger)
	for _, rawURL := range urls {
		url := rawURL
		pool.Dispatch("export:"+url, func(taskCtx context.Context) {
			o.exportOne(taskCtx, url)
		})
	}
	pool.Wait()
}

func (o *Orchestrator) exportOne(ctx context.Context, rawURL string) {
	o.monitor.IncRequests()
	res, err := o.fetch.Get(ctx, rawURL)
	if err != nil {
		o.logger.Debug().Err(err).Str("url", rawURL).Msg("Export fetch failed")
		return
	}
	o.monitor.AddBytesIn(int64(len(res.Body)))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return
	}

	data := o.extractor.Extract(string(res.Body), rawURL)
	if o.keywords != nil && !o.keywords.IsMatch(data.MainContent) {
		return
	}

	textHash := TextHash(data.MainContent)
	simHash := SimHash(data.MainContent)
	metaJSON, err := json.Marshal(data.StructuredData)
	if err != nil {
		metaJSON = []byte("{}")
	}

	now := time.Now().UTC()
	page := domain.Page{
		URL:           rawURL,
		CanonicalURL:  data.CanonicalURL,
		Title:         data.Title,
		TextHash:      textHash,
		SimHash:       simHash,
		FetchedAt:     now,
		StatusCode:    res.StatusCode,
		ContentLength: res.ContentLength,
		MetaJSON:      string(metaJSON),
		ETag:          res.ETag,
		LastModified:  res.LastModified,
	}

	isDuplicate, err := o.dedup.IsDuplicate(ctx, page)
	if err != nil {
		o.logger.Warn().Err(err).Str("url", rawURL).Msg("Duplicate check failed")
		return
	}
	if isDuplicate {
		o.monitor.IncDuplicatesDropped()
		return
	}

	id, err := o.store.UpsertPage(ctx, page)
	if err != nil {
		o.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to upsert page")
		return
	}

	record := domain.ExportRecord{
		ID:                 id,
		URL:                rawURL,
		CanonicalURL:       stringPtr(data.CanonicalURL),
		Title:              stringPtr(data.Title),
		TextHash:           stringPtr(textHash),
		SimHash:            stringPtr(simHash),
		FetchedAt:          now,
		StatusCode:         intPtr(res.StatusCode),
		ContentLength:      int64Ptr(res.ContentLength),
		MetaJSON:           stringPtr(string(metaJSON)),
		ETag:               stringPtr(res.ETag),
		LastModified:       stringPtr(res.LastModified),
		CreatedAt:          now,
		OutlinksWithScores: o.scoreOutlinks(data.OutlinksWithScores),
	}

	if err := o.exporter.Export(record); err != nil {
		o.logger.Error().Err(err).Str("url", rawURL).Msg("Failed to write export record")
		return
	}
	o.monitor.IncPagesExported()

	if o.pdf != nil {
		o.pdf.Export(id, rawURL)
	}

	_ = o.store.AppendEvent(ctx, domain.Event{Kind: domain.EventPageExported, URL: rawURL})
}

// scoreOutlinks scores every outlink against the keyword matcher when it is
// enabled. The full list is always exported with each link's score attached
// (SPEC_FULL.md §4.9: "other outlinks retain their scores in the scored
// list") — scoring never drops an entry from outlinks_with_scores.
func (o *Orchestrator) scoreOutlinks(outlinks []domain.OutlinkScore) []domain.OutlinkScore {
	if o.keywords == nil || !o.keywords.Enabled() {
		return outlinks
	}

	scored := make([]domain.OutlinkScore, len(outlinks))
	for i, link := range outlinks {
		scored[i] = domain.OutlinkScore{URL: link.URL, NLPScore: o.keywords.ScoreOutlink(link.URL)}
	}
	return scored
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(i int) *int {
	return &i
}

func int64Ptr(i int64) *int64 {
	return &i
}
