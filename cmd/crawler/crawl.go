package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/webfrontier/internal/common"
	"github.com/ternarybob/webfrontier/internal/httpclient"
	"github.com/ternarybob/webfrontier/internal/services/crawler"
	"github.com/ternarybob/webfrontier/internal/storage/sqlite"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the crawler against all active scopes",
	RunE:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	common.PrintBanner(config, logger)
	common.LogCrawlStart(logger, config.Concurrency, config.ExportPath, config.NLP.Enabled)

	store, err := sqlite.New(config.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	httpClient := httpclient.New(httpclient.Config{
		ConnectTimeout:     config.HTTP.ConnectTimeout.Get(),
		RequestTimeout:     config.HTTP.RequestTimeout.Get(),
		PoolMaxIdlePerHost: config.HTTP.PoolMaxIdlePerHost,
		Proxy:              config.HTTP.Proxy,
	}, logger, store)

	fetch := crawler.NewFetcher(httpClient)
	extractor := crawler.NewContentExtractor(logger)
	keywords := crawler.NewKeywordMatcher(nil)
	if config.NLP.Enabled {
		keywords = crawler.NewKeywordMatcher(config.NLP.Keywords)
	}
	dedup := crawler.NewDeduplicator(store)

	exporter, err := crawler.NewExporter(config.ExportPath)
	if err != nil {
		return fmt.Errorf("create export sink: %w", err)
	}
	defer exporter.Close()

	pdf := setupPDFExporter()
	if pdf != nil {
		defer shutdownPDFPool()
	}

	monitor := common.NewMonitor(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	common.SafeGoWithContext(ctx, logger, "metrics-monitor", func() {
		monitor.Run(ctx)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt received, letting in-flight tasks finish")
		cancel()
	}()

	orchestrator := crawler.NewOrchestrator(store, fetch, extractor, keywords, dedup, exporter, pdf, monitor, logger, config.Concurrency)

	if err := orchestrator.Run(ctx); err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	common.PrintShutdownBanner(logger)
	return nil
}

var pdfPool *crawler.ChromeDPPool

// renderPoolSize caps the PDF render pool well below the fetch concurrency:
// a live browser tab costs orders of magnitude more memory than an HTTP
// fetch, so the pool scales with config.Concurrency but stays small.
func renderPoolSize(concurrency int) int {
	size := concurrency / 16
	if size < 1 {
		size = 1
	}
	if size > 4 {
		size = 4
	}
	return size
}

// setupPDFExporter initializes the headless-Chrome render pool for the
// optional PDF export side effect. A failure to start Chrome is non-fatal —
// the crawl proceeds without PDF rendering (SPEC_FULL.md §7).
func setupPDFExporter() *crawler.PDFExporter {
	poolConfig := crawler.ChromeDPPoolConfig{
		MaxInstances:   renderPoolSize(config.Concurrency),
		Headless:       true,
		DisableGPU:     true,
		NoSandbox:      true,
		RequestTimeout: 30 * time.Second,
	}

	pdfPool = crawler.NewChromeDPPool(poolConfig, logger)

	if err := pdfPool.InitBrowserPool(poolConfig); err != nil {
		logger.Warn().Err(err).Msg("PDF rendering unavailable, continuing without it")
		pdfPool = nil
		return nil
	}

	return crawler.NewPDFExporter(pdfPool, config.ExportPath, logger)
}

func shutdownPDFPool() {
	if pdfPool == nil {
		return
	}
	if err := pdfPool.ShutdownBrowserPool(); err != nil {
		logger.Warn().Err(err).Msg("Failed to shut down PDF browser pool cleanly")
	}
}
