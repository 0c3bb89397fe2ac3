package crawler

import (
	"context"

	"github.com/ternarybob/webfrontier/internal/domain"
)

// DuplicateStore is the read-only storage surface the Deduplicator needs.
type DuplicateStore interface {
	FindPageByTextHash(ctx context.Context, hash string) (*domain.Page, bool, error)
	FindNearDuplicate(ctx context.Context, simHash string, threshold int) (*domain.Page, bool, error)
}

// Deduplicator decides whether a page's content has already been captured,
// either exactly (same text_hash) or approximately (sim_hash within
// NearDuplicateThreshold), per SPEC_FULL.md §4.7.
type Deduplicator struct {
	store DuplicateStore
}

// NewDeduplicator constructs a Deduplicator over store.
func NewDeduplicator(store DuplicateStore) *Deduplicator {
	return &Deduplicator{store: store}
}

// IsDuplicate reports whether page's content matches an existing Page by
// exact text_hash or near-duplicate sim_hash.
func (d *Deduplicator) IsDuplicate(ctx context.Context, page domain.Page) (bool, error) {
	if page.TextHash != "" {
		if _, found, err := d.store.FindPageByTextHash(ctx, page.TextHash); err != nil {
			return false, err
		} else if found {
			return true, nil
		}
	}

	if page.SimHash != "" {
		if _, found, err := d.store.FindNearDuplicate(ctx, page.SimHash, NearDuplicateThreshold); err != nil {
			return false, err
		} else if found {
			return true, nil
		}
	}

	return false, nil
}
