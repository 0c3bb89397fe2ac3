package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfigMatchesDocumentedDefaults(t *testing.T) {
	c := NewDefaultConfig()

	assert.Equal(t, "./data/crawler.db", c.DBPath)
	assert.Equal(t, "./data/export.jsonl", c.ExportPath)
	assert.Equal(t, 5*time.Second, c.HTTP.ConnectTimeout.Get())
	assert.Equal(t, 30*time.Second, c.HTTP.RequestTimeout.Get())
	assert.Equal(t, 10, c.HTTP.PoolMaxIdlePerHost)
	assert.False(t, c.NLP.Enabled)
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, []string{"console"}, c.Logging.Output)
	assert.Equal(t, 32, c.Concurrency)
}

func TestLoadFromFileOverlaysProvidedFieldsOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webfrontier.yaml")
	content := "db_path: /var/data/crawler.db\nhttp:\n  request_timeout: 45s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/data/crawler.db", c.DBPath)
	assert.Equal(t, 45*time.Second, c.HTTP.RequestTimeout.Get())

	// Fields untouched by the file keep their defaults.
	assert.Equal(t, 5*time.Second, c.HTTP.ConnectTimeout.Get())
	assert.Equal(t, "info", c.Logging.Level)
	assert.Equal(t, 32, c.Concurrency)
}

func TestLoadFromFileMissingFileIsAnError(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFileRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webfrontier.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: [unterminated"), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestDurationMarshalYAMLRendersString(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", out)
}
