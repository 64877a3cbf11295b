package catalog

import (
	"context"

	"github.com/plusmaps/atlas/internal/app/domain/location"
	"github.com/plusmaps/atlas/internal/app/storage"
	"github.com/plusmaps/atlas/pkg/logger"
)

// DefaultLimit is applied when a caller asks for top locations without
// saying how many.
const DefaultLimit = 10

// Service serves the location catalog.
type Service struct {
	store storage.CatalogStore
	log   *logger.Logger
}

// New constructs a catalog service.
func New(store storage.CatalogStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, log: log}
}

// Top returns up to limit locations, best rated first. The ranking itself
// lives in the store.
func (s *Service) Top(ctx context.Context, limit int) ([]location.Location, error) {
	locs, err := s.store.TopLocations(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.log.WithField("limit", limit).WithField("count", len(locs)).Debug("served top locations")
	return locs, nil
}

// ByID looks up a single location.
func (s *Service) ByID(ctx context.Context, id string) (location.Location, error) {
	loc, err := s.store.LocationByID(ctx, id)
	if err != nil {
		return location.Location{}, err
	}
	s.log.WithField("location_id", id).Debug("served location")
	return loc, nil
}

// Search runs a free-text match over the catalog.
func (s *Service) Search(ctx context.Context, query string) ([]location.Location, error) {
	locs, err := s.store.SearchLocations(ctx, query)
	if err != nil {
		return nil, err
	}
	s.log.WithField("query", query).WithField("count", len(locs)).Debug("served search")
	return locs, nil
}
