package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/ternarybob/webfrontier/internal/domain"
)

// Exporter is an append-only line-delimited JSON record sink. Writes are
// serialized under a single mutex and flushed per record (SPEC_FULL.md §4.8),
// so it is safe to share across concurrently dispatched Export-phase tasks.
type Exporter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewExporter creates (truncating any existing file) the export sink at path.
func NewExporter(path string) (*Exporter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file %s: %w", path, err)
	}
	return &Exporter{file: f, enc: json.NewEncoder(f)}, nil
}

// Export appends record as one JSON object followed by a newline, then
// flushes.
func (e *Exporter) Export(record domain.ExportRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enc.Encode(record); err != nil {
		return fmt.Errorf("write export record for %s: %w", record.URL, err)
	}
	return e.file.Sync()
}

// Close closes the underlying file.
func (e *Exporter) Close() error {
	return e.file.Close()
}
