package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// ChromeDPPool bounds PDF rendering to a fixed number of concurrently live
// headless-Chrome tabs, so the Export phase's worker-pool concurrency (which
// can run far more fetches than the machine can afford full browser
// instances for) never spawns an unbounded number of renderers.
// Checkout is a counting semaphore over a fixed, pre-started set of browser
// contexts rather than round-robin, so a render that outlives its slot
// actually blocks the next caller instead of silently sharing a busy tab.
type ChromeDPPool struct {
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	slots            chan int

	mu          sync.Mutex
	logger      arbor.ILogger
	userAgent   string
	initialized bool
}

// ChromeDPPoolConfig sizes and configures the render pool. MaxInstances
// should track the crawl's configured concurrency so PDF rendering scales
// with the rest of the pipeline instead of a fixed constant (see
// cmd/crawler/crawl.go).
type ChromeDPPoolConfig struct {
	MaxInstances       int
	UserAgent          string
	Headless           bool
	DisableGPU         bool
	NoSandbox          bool
	JavaScriptWaitTime time.Duration
	RequestTimeout     time.Duration
}

// NewChromeDPPool creates an uninitialized render pool; call InitBrowserPool
// before use.
func NewChromeDPPool(config ChromeDPPoolConfig, logger arbor.ILogger) *ChromeDPPool {
	return &ChromeDPPool{
		userAgent: config.UserAgent,
		logger:    logger,
	}
}

// InitBrowserPool starts up to config.MaxInstances headless-Chrome tabs,
// each smoke-tested with a blank navigation before being admitted to the
// pool. Initialization fails only if every instance fails to start.
func (p *ChromeDPPool) InitBrowserPool(config ChromeDPPoolConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("render pool already initialized")
	}
	if config.MaxInstances <= 0 {
		return fmt.Errorf("max_instances must be greater than 0, got: %d", config.MaxInstances)
	}
	if config.UserAgent == "" {
		config.UserAgent = "WebFrontier-Renderer/1.0"
	}

	p.userAgent = config.UserAgent
	p.browsers = make([]context.Context, 0, config.MaxInstances)
	p.browserCancels = make([]context.CancelFunc, 0, config.MaxInstances)
	p.allocatorCancels = make([]context.CancelFunc, 0, config.MaxInstances)

	p.logger.Info().
		Int("render_slots", config.MaxInstances).
		Str("user_agent", p.userAgent).
		Bool("headless", config.Headless).
		Msg("Starting PDF render pool")

	var lastErr error
	for i := 0; i < config.MaxInstances; i++ {
		if err := p.startTab(i, config); err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Int("slot", i).Msg("Failed to start render tab")
			continue
		}
	}

	if len(p.browsers) == 0 {
		p.teardown()
		return fmt.Errorf("failed to start any render tabs: %w", lastErr)
	}
	if len(p.browsers) < config.MaxInstances {
		p.logger.Warn().Int("requested", config.MaxInstances).Int("started", len(p.browsers)).
			Msg("Started fewer render tabs than requested, continuing with a smaller pool")
	}

	p.slots = make(chan int, len(p.browsers))
	for i := range p.browsers {
		p.slots <- i
	}

	p.initialized = true
	p.logger.Info().Int("render_slots", len(p.browsers)).Msg("PDF render pool ready")
	return nil
}

// startTab launches and smoke-tests one browser instance, appending it to
// the pool on success.
func (p *ChromeDPPool) startTab(index int, config ChromeDPPoolConfig) error {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", config.DisableGPU),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testTimeout := 30 * time.Second
	if config.RequestTimeout > 0 {
		testTimeout = config.RequestTimeout
	}
	testCtx, testCancel := context.WithTimeout(browserCtx, testTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("render tab %d failed startup navigation: %w", index, err)
	}

	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)
	return nil
}

// GetBrowser checks out a render slot, blocking until one is free or ctx is
// cancelled. The returned release function must be called exactly once to
// return the slot to the pool.
func (p *ChromeDPPool) GetBrowser(ctx context.Context) (context.Context, func(), error) {
	p.mu.Lock()
	initialized := p.initialized
	p.mu.Unlock()
	if !initialized {
		return nil, nil, fmt.Errorf("render pool not initialized")
	}

	select {
	case index := <-p.slots:
		browserCtx := p.browsers[index]
		release := func() { p.slots <- index }
		return browserCtx, release, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// ShutdownBrowserPool cancels every browser and allocator context, bounded
// by a timeout so a wedged tab can't block process exit indefinitely.
func (p *ChromeDPPool) ShutdownBrowserPool() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.teardown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		p.logger.Warn().Msg("Render pool shutdown timed out, forcing cleanup")
		p.teardown()
	}

	p.initialized = false
	p.logger.Info().Msg("PDF render pool shut down")
	return nil
}

// teardown cancels every browser/allocator context and clears the pool. Must
// be called with mu held or from a goroutine ShutdownBrowserPool owns.
func (p *ChromeDPPool) teardown() {
	for _, cancel := range p.browserCancels {
		if cancel != nil {
			cancel()
		}
	}
	for _, cancel := range p.allocatorCancels {
		if cancel != nil {
			cancel()
		}
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
	p.slots = nil
}

// IsInitialized reports whether the render pool has live browser tabs.
func (p *ChromeDPPool) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}
