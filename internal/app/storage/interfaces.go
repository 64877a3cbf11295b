package storage

import (
	"context"

	"github.com/plusmaps/atlas/internal/app/domain/location"
)

// CatalogStore runs the read-only location lookups. Implementations map
// store rows to domain records, applying the sanitize rule to every text
// column, and report zero-row lookups as a not-found error.
type CatalogStore interface {
	TopLocations(ctx context.Context, limit int) ([]location.Location, error)
	LocationByID(ctx context.Context, id string) (location.Location, error)
	SearchLocations(ctx context.Context, query string) ([]location.Location, error)
}

// ActivityStore checks and records per-user request activity.
type ActivityStore interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
	RecordRequest(ctx context.Context, userID string) error
	RecordResponse(ctx context.Context, userID string) error
}
