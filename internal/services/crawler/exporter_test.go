package crawler

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/webfrontier/internal/domain"
)

func TestExporterWritesOneJSONRecordPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.jsonl")
	exporter, err := NewExporter(path)
	require.NoError(t, err)

	require.NoError(t, exporter.Export(domain.ExportRecord{ID: 1, URL: "https://example.com/a"}))
	require.NoError(t, exporter.Export(domain.ExportRecord{ID: 2, URL: "https://example.com/b"}))
	require.NoError(t, exporter.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"https://example.com/a"`)
	assert.Contains(t, lines[1], `"https://example.com/b"`)
}

func TestNewExporterTruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("stale data\n"), 0o644))

	exporter, err := NewExporter(path)
	require.NoError(t, err)
	require.NoError(t, exporter.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}
