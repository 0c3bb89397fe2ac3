package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierAddRejectsDuplicates(t *testing.T) {
	f := NewFrontier()
	assert.True(t, f.Add("https://example.com/a", 1))
	assert.False(t, f.Add("https://example.com/a", 9))
	assert.Equal(t, 1, f.Size())
	assert.True(t, f.Contains("https://example.com/a"))
}

func TestFrontierPopHonorsPriorityWithinAHost(t *testing.T) {
	f := NewFrontier()
	f.Add("https://example.com/low", 1)
	f.Add("https://example.com/high", 9)

	url, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/high", url)
}

func TestFrontierPopEnforcesPerHostPoliteness(t *testing.T) {
	f := NewFrontier()
	f.Add("https://example.com/a", 1)
	f.Add("https://example.com/b", 1)

	_, ok := f.Pop()
	require.True(t, ok)

	_, ok = f.Pop()
	assert.False(t, ok, "second pop from the same host should be gated by the politeness delay")
}

func TestFrontierPopPrefersEligibleHostOverHigherPriorityGatedHost(t *testing.T) {
	f := NewFrontier()
	f.Add("https://a.example.com/x", 9)
	f.Add("https://a.example.com/z", 9)
	_, ok := f.Pop()
	require.True(t, ok)

	f.Add("https://b.example.com/y", 1)
	url, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://b.example.com/y", url)
}

func TestFrontierIsEmpty(t *testing.T) {
	f := NewFrontier()
	assert.True(t, f.IsEmpty())
	f.Add("https://example.com/a", 1)
	assert.False(t, f.IsEmpty())
}

func TestPriorityAwardsInternalSitemapAndShortPathBonuses(t *testing.T) {
	p := Priority("https://example.com/short", "https://example.com/seed", true)
	assert.Equal(t, int32(9), p)

	p = Priority("https://other.com/a-very-long-path-segment-here", "https://example.com/seed", false)
	assert.Equal(t, int32(0), p)
}

func TestFrontierSnapshotRoundTripsQueuedAndSeenURLs(t *testing.T) {
	f := NewFrontier()
	f.Add("https://example.com/a", 5)
	f.Add("https://example.com/b", 2)
	_, _ = f.Pop()

	blob, err := f.Snapshot()
	require.NoError(t, err)

	restored, err := LoadFrontier(blob)
	require.NoError(t, err)

	assert.True(t, restored.Contains("https://example.com/a"))
	assert.True(t, restored.Contains("https://example.com/b"))
	assert.False(t, restored.Add("https://example.com/a", 1), "popped-but-seen URLs must not be re-admitted")
}

func TestFrontierRejectsAtCapacity(t *testing.T) {
	f := &Frontier{hosts: map[string]*hostQueue{}, seen: map[string]bool{}, size: MaxQueueSize}
	assert.False(t, f.Add("https://example.com/overflow", 1))
}

func TestFrontierPopReturnsFalseWhenEmpty(t *testing.T) {
	f := NewFrontier()
	_, ok := f.Pop()
	assert.False(t, ok)
}

func TestPolitenessDelayIsOneSecond(t *testing.T) {
	assert.Equal(t, time.Second, PolitenessDelay)
}
