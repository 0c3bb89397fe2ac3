// Frontier: a priority, per-host, politeness-aware URL queue. Adapted from the
// teacher's internal/services/crawler/queue.go (container/heap itemHeap,
// sync.Cond-based blocking Pop), generalized per SPEC_FULL.md §4.4/§9 from one
// global heap into a map of host -> max-heap keyed by int32 priority, behind a
// single outer mutex.
package crawler

import (
	"container/heap"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// MaxQueueSize is the hard cap on total Frontier size (SPEC_FULL.md §4.4).
const MaxQueueSize = 1_000_000

// PolitenessDelay is the minimum spacing enforced between successive pops
// from the same host.
const PolitenessDelay = 1 * time.Second

// frontierItem is one entry in a host's priority heap.
type frontierItem struct {
	url      string
	priority int32
	addedAt  time.Time
	index    int
}

// hostHeap is a max-heap ordered by priority, ties broken by insertion order.
type hostHeap []*frontierItem

func (h hostHeap) Len() int { return len(h) }
func (h hostHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].addedAt.Before(h[j].addedAt)
}
func (h hostHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *hostHeap) Push(x interface{}) {
	item := x.(*frontierItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *hostHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// hostQueue pairs a host's heap with its politeness gate.
type hostQueue struct {
	items         hostHeap
	nextAllowedAt time.Time
}

// Frontier is the per-host priority queue described in SPEC_FULL.md §4.4.
type Frontier struct {
	mu    sync.Mutex
	hosts map[string]*hostQueue
	seen  map[string]bool
	size  int
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		hosts: make(map[string]*hostQueue),
		seen:  make(map[string]bool),
	}
}

// Add admits a URL into the Frontier with the given priority, unless it has
// already been seen or the Frontier is at capacity (SPEC_FULL.md §4.4
// "Admission"). Returns true if the URL was admitted.
func (f *Frontier) Add(url string, priority int32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[url] || f.size >= MaxQueueSize {
		return false
	}

	host := HostOf(url)
	q, ok := f.hosts[host]
	if !ok {
		q = &hostQueue{}
		f.hosts[host] = q
	}

	heap.Push(&q.items, &frontierItem{url: url, priority: priority, addedAt: time.Now()})
	f.seen[url] = true
	f.size++
	return true
}

// Priority computes the admission priority for a URL per SPEC_FULL.md §4.4:
// +5 if the scope's pattern host matches the URL's host (internal), +3 if
// the URL came from sitemap discovery, +1 if the path is short.
func Priority(url string, scopePattern string, isSitemap bool) int32 {
	var p int32
	if scopeHost := HostOf(scopePattern); scopeHost != "" && strings.Contains(scopePattern, HostOf(url)) {
		p += 5
	}
	if isSitemap {
		p += 3
	}
	if len(PathOf(url)) < 20 {
		p += 1
	}
	return p
}

// Pop removes and returns the highest-priority URL among hosts currently
// eligible (next_allowed_at <= now), setting that host's politeness timer.
// Returns ("", false) if no host is eligible.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var bestHost string
	var bestItem *frontierItem

	for host, q := range f.hosts {
		if len(q.items) == 0 {
			continue
		}
		if now.Before(q.nextAllowedAt) {
			continue
		}
		top := q.items[0]
		if bestItem == nil || top.priority > bestItem.priority {
			bestHost = host
			bestItem = top
		}
	}

	if bestItem == nil {
		return "", false
	}

	q := f.hosts[bestHost]
	popped := heap.Pop(&q.items).(*frontierItem)
	q.nextAllowedAt = now.Add(PolitenessDelay)
	f.size--

	return popped.url, true
}

// Size returns the total number of queued URLs across all hosts.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// IsEmpty reports whether the Frontier has no queued URLs.
func (f *Frontier) IsEmpty() bool {
	return f.Size() == 0
}

// Contains reports whether url has already been admitted (and thus is in seen_urls).
func (f *Frontier) Contains(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[url]
}

// snapshotItem is one still-queued URL in a persisted Frontier snapshot.
type snapshotItem struct {
	URL      string `json:"url"`
	Priority int32  `json:"priority"`
}

type frontierSnapshot struct {
	Items []snapshotItem `json:"items"`
	Seen  []string       `json:"seen"`
}

// Snapshot serializes every still-queued URL plus the full seen-set, for
// periodic checkpointing and clean-shutdown persistence (SPEC_FULL.md §5/§9).
func (f *Frontier) Snapshot() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := frontierSnapshot{}
	for _, q := range f.hosts {
		for _, item := range q.items {
			snap.Items = append(snap.Items, snapshotItem{URL: item.url, Priority: item.priority})
		}
	}
	for url := range f.seen {
		snap.Seen = append(snap.Seen, url)
	}

	return json.Marshal(snap)
}

// LoadFrontier reconstructs a Frontier from a Snapshot blob. Items are
// re-admitted at their recorded priority; seen URLs that are not still queued
// (already popped/fetched before the last checkpoint) are restored into the
// seen-set only, so they are never re-admitted.
func LoadFrontier(blob []byte) (*Frontier, error) {
	var snap frontierSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, err
	}

	f := NewFrontier()
	for _, url := range snap.Seen {
		f.seen[url] = true
	}
	for _, item := range snap.Items {
		host := HostOf(item.URL)
		q, ok := f.hosts[host]
		if !ok {
			q = &hostQueue{}
			f.hosts[host] = q
		}
		heap.Push(&q.items, &frontierItem{url: item.URL, priority: item.Priority, addedAt: time.Now()})
		f.seen[item.URL] = true
		f.size++
	}

	return f, nil
}
