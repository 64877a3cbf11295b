package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/plusmaps/atlas/internal/app/domain/location"
	"github.com/plusmaps/atlas/internal/app/storage"
	apperrors "github.com/plusmaps/atlas/internal/errors"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	locations map[string]location.Location
	blocked   map[string]struct{}
	requests  []string
	responses []string
}

var _ storage.CatalogStore = (*Store)(nil)
var _ storage.ActivityStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:    1,
		locations: make(map[string]location.Location),
		blocked:   make(map[string]struct{}),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// CatalogStore implementation -------------------------------------------------

func (s *Store) TopLocations(_ context.Context, limit int) ([]location.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.sortedLocked()
	if limit < 0 {
		limit = 0
	}
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) LocationByID(_ context.Context, id string) (location.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[id]
	if !ok {
		return location.Location{}, apperrors.NotFound(fmt.Sprintf("Location not found: %s", id))
	}
	return loc, nil
}

func (s *Store) SearchLocations(_ context.Context, query string) ([]location.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	result := make([]location.Location, 0)
	for _, loc := range s.sortedLocked() {
		if locationMatches(loc, needle) {
			result = append(result, loc)
		}
	}
	return result, nil
}

// sortedLocked orders the catalog the way get_top_locations does: best rated
// first, ties broken by name.
func (s *Store) sortedLocked() []location.Location {
	result := make([]location.Location, 0, len(s.locations))
	for _, loc := range s.locations {
		result = append(result, loc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Rating != result[j].Rating {
			return result[i].Rating > result[j].Rating
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func locationMatches(loc location.Location, needle string) bool {
	return strings.Contains(strings.ToLower(loc.Name), needle) ||
		strings.Contains(strings.ToLower(loc.Country), needle) ||
		strings.Contains(strings.ToLower(loc.State), needle)
}

// ActivityStore implementation ------------------------------------------------

func (s *Store) IsBlocked(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, blocked := s.blocked[userID]
	return blocked, nil
}

func (s *Store) RecordRequest(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, userID)
	return nil
}

func (s *Store) RecordResponse(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responses = append(s.responses, userID)
	return nil
}

// Fixtures --------------------------------------------------------------------

// AddLocation inserts a catalog entry, assigning an ID when none is set.
func (s *Store) AddLocation(loc location.Location) (location.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loc.ID == "" {
		loc.ID = s.nextIDLocked()
	} else if _, exists := s.locations[loc.ID]; exists {
		return location.Location{}, fmt.Errorf("location %s already exists", loc.ID)
	}

	s.locations[loc.ID] = loc
	return loc, nil
}

// Block marks a user so IsBlocked reports true for it.
func (s *Store) Block(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocked[userID] = struct{}{}
}

// Unblock removes a user from the blocked set.
func (s *Store) Unblock(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blocked, userID)
}

// Requests returns the user IDs recorded by RecordRequest, in order.
func (s *Store) Requests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.requests...)
}

// Responses returns the user IDs recorded by RecordResponse, in order.
func (s *Store) Responses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.responses...)
}
