package scraper

import (
	"context"
	"log/slog"

	"agency_listings/models"
)

// Fetcher returns every listing of one feed category.
type Fetcher interface {
	FetchAll(ctx context.Context, rt string) ([]models.Listing, error)
}

// FetchOptional fetches a feed that may not exist for this agent. Any
// failure is logged and replaced by an empty feed; failed reports whether
// that happened.
func FetchOptional(ctx context.Context, f Fetcher, rt string) (items []models.Listing, failed bool) {
	items, err := f.FetchAll(ctx, rt)
	if err != nil {
		slog.Warn("optional feed not available", "rt", rt, "error", err)
		return []models.Listing{}, true
	}
	return items, false
}
