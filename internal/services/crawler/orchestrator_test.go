package crawler

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/webfrontier/internal/common"
	"github.com/ternarybob/webfrontier/internal/domain"
)

// fakeOrchestratorStore is a minimal in-memory OrchestratorStore stand-in for
// exercising Orchestrator.Run without a real database.
type fakeOrchestratorStore struct {
	scopes []domain.Scope
	events []domain.Event
}

func (s *fakeOrchestratorStore) AddStagedURL(ctx context.Context, su domain.StagedURL) (int64, error) {
	return 1, nil
}
func (s *fakeOrchestratorStore) GetPendingStagedURLs(ctx context.Context) ([]domain.StagedURL, error) {
	return nil, nil
}
func (s *fakeOrchestratorStore) UpdateStagedURLStatus(ctx context.Context, id int64, status domain.StagedURLStatus) error {
	return nil
}
func (s *fakeOrchestratorStore) GetActiveScopes(ctx context.Context) ([]domain.Scope, error) {
	return s.scopes, nil
}
func (s *fakeOrchestratorStore) SaveFrontierState(ctx context.Context, blob []byte) error {
	return nil
}
func (s *fakeOrchestratorStore) FindPageByTextHash(ctx context.Context, hash string) (*domain.Page, bool, error) {
	return nil, false, nil
}
func (s *fakeOrchestratorStore) FindNearDuplicate(ctx context.Context, simHash string, threshold int) (*domain.Page, bool, error) {
	return nil, false, nil
}
func (s *fakeOrchestratorStore) UpsertPage(ctx context.Context, p domain.Page) (int64, error) {
	return 1, nil
}
func (s *fakeOrchestratorStore) LoadFrontierState(ctx context.Context) ([]byte, bool, error) {
	return nil, false, nil
}
func (s *fakeOrchestratorStore) TouchScopeLastCrawled(ctx context.Context, id int64, at time.Time) error {
	return nil
}
func (s *fakeOrchestratorStore) AppendEvent(ctx context.Context, ev domain.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func newTestOrchestrator(store OrchestratorStore) *Orchestrator {
	logger := arbor.NewLogger()
	return NewOrchestrator(store, nil, NewContentExtractor(logger), NewKeywordMatcher(nil),
		NewDeduplicator(store), nil, nil, common.NewMonitor(logger), logger, 4)
}

func TestOrchestratorRunWithNoActiveScopesPrintsMessageAndReturnsNil(t *testing.T) {
	store := &fakeOrchestratorStore{}
	o := newTestOrchestrator(store)

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := o.Run(context.Background())

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)

	assert.NoError(t, runErr)
	assert.Contains(t, buf.String(), "No active scopes found. Please add a scope first.")
	assert.Empty(t, store.events, "no crawl_started/crawl_finished events should be recorded when there is nothing to crawl")
}

func TestDedupeStringsPreservesFirstSeenOrder(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b"}
	assert.Equal(t, []string{"a", "b", "c"}, dedupeStrings(in))
}

func TestScoreOutlinksPassthroughWhenKeywordsDisabled(t *testing.T) {
	store := &fakeOrchestratorStore{}
	o := newTestOrchestrator(store)

	in := []domain.OutlinkScore{{URL: "https://example.com/a"}}
	out := o.scoreOutlinks(in)
	assert.Equal(t, in, out)
}

func TestScoreOutlinksKeepsFullListWithScoresAttachedWhenEnabled(t *testing.T) {
	store := &fakeOrchestratorStore{}
	logger := arbor.NewLogger()
	o := NewOrchestrator(store, nil, NewContentExtractor(logger), NewKeywordMatcher([]string{"pricing"}),
		NewDeduplicator(store), nil, nil, common.NewMonitor(logger), logger, 4)

	in := []domain.OutlinkScore{
		{URL: "https://example.com/pricing"},
		{URL: "https://example.com/about"},
	}
	out := o.scoreOutlinks(in)

	require.Len(t, out, 2, "scoring must never drop outlinks from the exported list")
	assert.Equal(t, "https://example.com/pricing", out[0].URL)
	require.NotNil(t, out[0].NLPScore)
	assert.Equal(t, 1, *out[0].NLPScore)

	assert.Equal(t, "https://example.com/about", out[1].URL)
	require.NotNil(t, out[1].NLPScore)
	assert.Equal(t, 0, *out[1].NLPScore)
}
