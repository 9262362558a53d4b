// Package deadlink implements the retry-with-backoff suppression policy
// described in spec.md §4.2, backed by the persistence adapter's dead_links
// table. Grounded on original_source's db.py get_dead_urls/record_dead_link/
// remove_dead_link queries.
package deadlink

import (
	"context"

	"github.com/google/uuid"

	"github.com/cha7ura/newsagg/internal/models"
)

// Store is the persistence surface the registry needs; implemented by
// internal/repository.
type Store interface {
	RecordDeadLink(ctx context.Context, sourceID uuid.UUID, url string, kind models.ErrorKind) error
	RemoveDeadLink(ctx context.Context, url string) error
	SuppressedSubset(ctx context.Context, sourceID uuid.UUID, urls []string) (map[string]struct{}, error)
	AllSuppressed(ctx context.Context, sourceID uuid.UUID) (map[string]struct{}, error)
}

// Registry wraps a Store with the operations the rest of the core calls.
type Registry struct {
	store Store
}

func New(store Store) *Registry {
	return &Registry{store: store}
}

// RecordDead inserts a new dead-link row, or on conflict increments
// retry_count and overwrites the error kind and last_checked_at.
func (r *Registry) RecordDead(ctx context.Context, sourceID uuid.UUID, url string, kind models.ErrorKind) error {
	return r.store.RecordDeadLink(ctx, sourceID, url, kind)
}

// Clear deletes a dead-link row after a successful retry.
func (r *Registry) Clear(ctx context.Context, url string) error {
	return r.store.RemoveDeadLink(ctx, url)
}

// SuppressedSubset batch-filters urls down to those still suppressed for
// this source (used by discoverers before enqueue).
func (r *Registry) SuppressedSubset(ctx context.Context, sourceID uuid.UUID, urls []string) (map[string]struct{}, error) {
	if len(urls) == 0 {
		return map[string]struct{}{}, nil
	}
	return r.store.SuppressedSubset(ctx, sourceID, urls)
}

// AllSuppressed loads the full suppressed set for a source, used by sweeps
// that generate candidate URLs synthetically rather than by crawling.
func (r *Registry) AllSuppressed(ctx context.Context, sourceID uuid.UUID) (map[string]struct{}, error) {
	return r.store.AllSuppressed(ctx, sourceID)
}
