// -----------------------------------------------------------------------
// Monitor - periodic crawl metrics logging
// -----------------------------------------------------------------------

package common

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
)

// Monitor holds atomic crawl counters and logs a snapshot on a fixed
// interval. Grounded on original_source/src/monitoring.rs's Metrics/Monitor
// pair (AtomicU64 counters + an interval-ticking logger task), adapted to
// Go's sync/atomic and time.Ticker idiom.
type Monitor struct {
	requestsTotal         int64
	bytesInTotal          int64
	pagesExportedTotal    int64
	duplicatesDroppedTotal int64
	hostBackoffsTotal     int64
	frontierDepth         int64

	logger arbor.ILogger
}

// NewMonitor creates a Monitor.
func NewMonitor(logger arbor.ILogger) *Monitor {
	return &Monitor{logger: logger}
}

func (m *Monitor) IncRequests()              { atomic.AddInt64(&m.requestsTotal, 1) }
func (m *Monitor) AddBytesIn(n int64)        { atomic.AddInt64(&m.bytesInTotal, n) }
func (m *Monitor) IncPagesExported()         { atomic.AddInt64(&m.pagesExportedTotal, 1) }
func (m *Monitor) IncDuplicatesDropped()     { atomic.AddInt64(&m.duplicatesDroppedTotal, 1) }
func (m *Monitor) IncHostBackoffs()          { atomic.AddInt64(&m.hostBackoffsTotal, 1) }
func (m *Monitor) SetFrontierDepth(n int64)  { atomic.StoreInt64(&m.frontierDepth, n) }

// Snapshot returns the current counter values.
func (m *Monitor) Snapshot() (requests, bytesIn, pagesExported, duplicatesDropped, hostBackoffs, frontierDepth int64) {
	return atomic.LoadInt64(&m.requestsTotal),
		atomic.LoadInt64(&m.bytesInTotal),
		atomic.LoadInt64(&m.pagesExportedTotal),
		atomic.LoadInt64(&m.duplicatesDroppedTotal),
		atomic.LoadInt64(&m.hostBackoffsTotal),
		atomic.LoadInt64(&m.frontierDepth)
}

// Run logs a metrics snapshot every 10s until ctx is cancelled. Intended to
// be launched via SafeGoWithContext so a logging hiccup never kills the
// crawl.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.logSnapshot()
		}
	}
}

func (m *Monitor) logSnapshot() {
	requests, bytesIn, pagesExported, duplicatesDropped, hostBackoffs, frontierDepth := m.Snapshot()
	m.logger.Info().
		Int64("requests_total", requests).
		Int64("bytes_in_total", bytesIn).
		Int64("pages_exported_total", pagesExported).
		Int64("duplicates_dropped_total", duplicatesDropped).
		Int64("host_backoffs_total", hostBackoffs).
		Int64("frontier_depth", frontierDepth).
		Msg("Crawl stats")
}
