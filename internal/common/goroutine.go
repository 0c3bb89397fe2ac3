// -----------------------------------------------------------------------
// Safe Goroutine - panic-protected goroutine wrappers for crawl task
// dispatch (worker.Pool) and background loops (frontier checkpoint,
// metrics monitor). One fetch or one render panicking must never take the
// rest of the crawl down with it.
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// activeTasks tracks every task currently running under SafeGoWithContext,
// keyed by its Dispatch name ("discover:<url>" / "export:<url>" for crawl
// tasks). A fatal crash's report includes a snapshot of this set, so a crash
// mid-crawl shows which pages were in flight, not just the panicking
// goroutine's own stack.
var activeTasks sync.Map

// ActiveTaskNames returns a snapshot of every task name currently registered
// via SafeGoWithContext.
func ActiveTaskNames() []string {
	var names []string
	activeTasks.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}

// SafeGo runs a function in a goroutine with panic recovery. Panics are
// logged but don't crash the crawl. Used for fire-and-forget work where
// there is no parent context to cancel against, such as a one-off audit
// event write that shouldn't block or fail the caller.
//
// Example:
//
//	common.SafeGo(logger, "append-event", func() {
//	    store.AppendEvent(ctx, ev)
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				// Get stack trace
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				stackTrace := string(buf[:n])

				// Log the panic
				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in goroutine - continuing service operation")
				} else {
					// Fallback to stderr if no logger
					fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stackTrace)
				}

				// Optionally write to crash log file for post-mortem analysis
				// But don't exit - this is a non-fatal goroutine crash
				writeCrashLog(name, r, stackTrace)
			}
		}()

		fn()
	}()
}

// SafeGoWithContext runs a function in a goroutine with panic recovery, exiting
// early if ctx is already cancelled. This is what worker.Pool.Dispatch uses
// for every discover/export task, what the orchestrator uses for its
// frontier-checkpoint loop, and what the crawl command uses for the metrics
// monitor — name should identify the
// work being done (worker.Pool passes "discover:<url>"/"export:<url>") so a
// recovered panic's log line and crash breadcrumb point at the page that
// caused it.
//
// Example:
//
//	common.SafeGoWithContext(ctx, logger, "discover:"+url, func() {
//	    o.discoverOne(ctx, url, frontier, &mu, &discovered)
//	})
func SafeGoWithContext(ctx context.Context, logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		activeTasks.Store(name, time.Now())
		defer activeTasks.Delete(name)

		defer func() {
			if r := recover(); r != nil {
				// Get stack trace
				buf := make([]byte, 4096)
				n := runtime.Stack(buf, false)
				stackTrace := string(buf[:n])

				// Log the panic
				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in goroutine - continuing service operation")
				}

				// Write to crash log for analysis
				writeCrashLog(name, r, stackTrace)
			}
		}()

		// Check context before running
		select {
		case <-ctx.Done():
			if logger != nil {
				logger.Debug().Str("goroutine", name).Msg("Goroutine cancelled before start")
			}
			return
		default:
		}

		fn()
	}()
}

// writeCrashLog writes a breadcrumb file for a recovered, non-fatal task
// panic, separate from the fatal crash files WriteCrashFile produces for
// process-ending panics. goroutineName is the Dispatch task name
// ("discover:<url>" / "export:<url>" for crawl tasks), so the breadcrumb
// records which page was being fetched or rendered when the panic happened
// without needing a separate activity-tracking structure.
func writeCrashLog(goroutineName string, panicVal interface{}, stackTrace string) {
	timestamp := time.Now().Format("2006-01-02T15-04-05.000")
	path := filepath.Join(CrashLogDir, fmt.Sprintf("task-panic-%s.log", timestamp))

	var report bytes.Buffer
	report.WriteString("=== WEBFRONTIER TASK PANIC (recovered, crawl continuing) ===\n")
	report.WriteString(fmt.Sprintf("Time: %s\n", time.Now().Format(time.RFC3339)))
	report.WriteString(fmt.Sprintf("Task: %s\n", goroutineName))
	report.WriteString(fmt.Sprintf("Panic: %v\n\n", panicVal))
	report.WriteString("=== STACK TRACE ===\n")
	report.WriteString(stackTrace)

	if err := os.WriteFile(path, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write task panic breadcrumb for %s: %v\n", goroutineName, err)
	}
}
