// Package postgres implements the storage interfaces on top of the
// catalog's stored functions. Every call is one round-trip through the
// connection manager, which owns the serialization lock and always hands
// out the current handle.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/plusmaps/atlas/internal/app/domain/location"
	"github.com/plusmaps/atlas/internal/app/storage"
	apperrors "github.com/plusmaps/atlas/internal/errors"
	"github.com/plusmaps/atlas/internal/platform/database"
	"github.com/plusmaps/atlas/pkg/logger"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db  *database.Manager
	log *logger.Logger
}

var _ storage.CatalogStore = (*Store)(nil)
var _ storage.ActivityStore = (*Store)(nil)

// New creates a Store using the provided connection manager.
func New(db *database.Manager, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDefault("postgres")
	}
	return &Store{db: db, log: log}
}

// locationRow mirrors the column set returned by the catalog functions.
// Every column is nullable in the store, so the row type is all Null
// wrappers and the domain record defaults the missing ones.
type locationRow struct {
	ID          sql.NullString  `db:"id"`
	Name        sql.NullString  `db:"name"`
	Country     sql.NullString  `db:"country"`
	State       sql.NullString  `db:"state"`
	Description sql.NullString  `db:"description"`
	SVGLink     sql.NullString  `db:"svg_link"`
	Rating      sql.NullFloat64 `db:"rating"`
}

func (r locationRow) toDomain() location.Location {
	return location.Location{
		ID:          sanitize(r.ID.String),
		Name:        sanitize(r.Name.String),
		Country:     sanitize(r.Country.String),
		State:       sanitize(r.State.String),
		Description: sanitize(r.Description.String),
		SVGLink:     sanitize(r.SVGLink.String),
		Rating:      r.Rating.Float64,
	}
}

// sanitize strips control bytes below 0x20 from free text, keeping tab,
// newline and carriage return.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// --- CatalogStore -----------------------------------------------------------

func (s *Store) TopLocations(ctx context.Context, limit int) ([]location.Location, error) {
	var rows []locationRow
	err := s.db.Do(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows, `SELECT * FROM get_top_locations($1)`, limit)
	})
	if err != nil {
		return nil, queryError(err)
	}
	return toDomainSlice(rows), nil
}

func (s *Store) LocationByID(ctx context.Context, id string) (location.Location, error) {
	var row locationRow
	err := s.db.Do(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &row, `SELECT * FROM get_location_by_id($1)`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return location.Location{}, apperrors.NotFound(fmt.Sprintf("Location not found: %s", id))
	}
	if err != nil {
		return location.Location{}, queryError(err)
	}
	return row.toDomain(), nil
}

func (s *Store) SearchLocations(ctx context.Context, query string) ([]location.Location, error) {
	var rows []locationRow
	err := s.db.Do(ctx, func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &rows, `SELECT * FROM search_locations($1)`, query)
	})
	if err != nil {
		return nil, queryError(err)
	}
	return toDomainSlice(rows), nil
}

// --- ActivityStore ----------------------------------------------------------

func (s *Store) IsBlocked(ctx context.Context, userID string) (bool, error) {
	var blocked sql.NullBool
	err := s.db.Do(ctx, func(db *sqlx.DB) error {
		return db.GetContext(ctx, &blocked, `SELECT is_user_blocked($1)`, userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		// No verdict recorded for this user means not blocked.
		return false, nil
	}
	if err != nil {
		return false, queryError(err)
	}
	return blocked.Valid && blocked.Bool, nil
}

func (s *Store) RecordRequest(ctx context.Context, userID string) error {
	return s.activityCall(ctx, `SELECT log_user_request($1)`, userID)
}

func (s *Store) RecordResponse(ctx context.Context, userID string) error {
	return s.activityCall(ctx, `SELECT log_user_response($1)`, userID)
}

func (s *Store) activityCall(ctx context.Context, query, userID string) error {
	err := s.db.Do(ctx, func(db *sqlx.DB) error {
		_, execErr := db.ExecContext(ctx, query, userID)
		return execErr
	})
	if err != nil {
		return queryError(err)
	}
	return nil
}

// --- helpers ----------------------------------------------------------------

func toDomainSlice(rows []locationRow) []location.Location {
	locs := make([]location.Location, 0, len(rows))
	for _, r := range rows {
		locs = append(locs, r.toDomain())
	}
	return locs
}

// queryError wraps a round-trip failure as QueryFailed, passing through
// the manager's no-handle error untouched.
func queryError(err error) error {
	if apperrors.IsConnectionUnavailable(err) {
		return err
	}
	return apperrors.QueryFailed(err)
}
