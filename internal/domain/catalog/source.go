package catalog

import (
	"context"
	"time"
)

// Source defines a provider of startup records. Fetch returns at most limit
// records; a zero updatedSince means a full fetch. Implementations should
// return whatever was collected so far instead of failing mid-fetch.
type Source interface {
	Name() string
	Fetch(ctx context.Context, limit int, updatedSince time.Time) ([]StartupRecord, error)
}
