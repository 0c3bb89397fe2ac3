// PDF export side effect for accepted pages. Extends chromedp_pool.go's
// ChromeDPPool (kept from the teacher; a counting semaphore of headless-Chrome
// render slots) with cdproto/page.PrintToPDF per SPEC_FULL.md §6. Best-effort:
// every failure is logged and never propagated to the caller.
package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// PDFExporter renders accepted pages to PDF next to the export file.
type PDFExporter struct {
	pool       *ChromeDPPool
	outputDir  string
	logger     arbor.ILogger
	navTimeout time.Duration
}

// NewPDFExporter derives the PDF output directory from exportPath (stripping
// its extension, per SPEC_FULL.md §6: "<export_path without extension>/pdf/").
func NewPDFExporter(pool *ChromeDPPool, exportPath string, logger arbor.ILogger) *PDFExporter {
	base := strings.TrimSuffix(exportPath, filepath.Ext(exportPath))
	return &PDFExporter{
		pool:       pool,
		outputDir:  filepath.Join(base, "pdf"),
		logger:     logger,
		navTimeout: 30 * time.Second,
	}
}

// Export navigates to pageURL and writes its rendered PDF to
// <outputDir>/<pageID>.pdf. Errors are logged at error level and swallowed.
func (e *PDFExporter) Export(pageID int64, pageURL string) {
	if !e.pool.IsInitialized() {
		return
	}

	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		e.logger.Error().Err(err).Str("url", pageURL).Msg("Failed to create PDF output directory")
		return
	}

	acquireCtx, acquireCancel := context.WithTimeout(context.Background(), e.navTimeout)
	defer acquireCancel()

	browserCtx, release, err := e.pool.GetBrowser(acquireCtx)
	if err != nil {
		e.logger.Error().Err(err).Str("url", pageURL).Msg("Failed to acquire a render slot for PDF export")
		return
	}
	defer release()

	ctx, cancel := context.WithTimeout(browserCtx, e.navTimeout)
	defer cancel()

	var pdfData []byte
	err = chromedp.Run(ctx,
		chromedp.Navigate(pageURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		e.logger.Error().Err(err).Str("url", pageURL).Msg("PDF export failed")
		return
	}

	outPath := filepath.Join(e.outputDir, fmt.Sprintf("%d.pdf", pageID))
	if err := os.WriteFile(outPath, pdfData, 0o644); err != nil {
		e.logger.Error().Err(err).Str("url", pageURL).Str("path", outPath).Msg("Failed to write PDF file")
	}
}
