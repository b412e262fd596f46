package rag

import (
	"context"

	"startuplens/internal/db/vecstore"
)

// SnapshotSource provides a consistent view of the index file pair. The
// returned snapshot is immutable and shared: pointer equality identifies
// the index generation.
type SnapshotSource interface {
	LoadSnapshot() (*vecstore.Snapshot, error)
}

// SearchCacheStore defines cache operations required by Retriever. Keys
// include the index version so stale generations are never served.
type SearchCacheStore interface {
	Get(ctx context.Context, query string, topK int, indexVersion string) ([]SearchResultItem, bool)
	Set(ctx context.Context, query string, topK int, indexVersion string, items []SearchResultItem)
	InvalidateAll(ctx context.Context)
}
