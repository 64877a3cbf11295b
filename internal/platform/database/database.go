// Package database owns the process-wide PostgreSQL handle. The session
// behind the handle is not safe for concurrent statements, so every store
// round-trip and the check-and-rebuild sequence serialize through the
// manager's lock. Dependents never hold the handle themselves; they reach
// the current one through Do, which is what makes a rebuild atomic from
// their point of view.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/plusmaps/atlas/internal/app/metrics"
	"github.com/plusmaps/atlas/internal/config"
	apperrors "github.com/plusmaps/atlas/internal/errors"
	"github.com/plusmaps/atlas/pkg/logger"
)

var errNotConnected = errors.New("database handle not initialized")

// Manager lazily establishes and re-establishes the database handle.
type Manager struct {
	cfg config.DatabaseConfig
	log *logger.Logger

	mu sync.Mutex
	db *sqlx.DB
}

// NewManager creates a manager with no handle. The first Ensure call
// establishes the connection.
func NewManager(cfg config.DatabaseConfig, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDefault("database")
	}
	return &Manager{cfg: cfg, log: log}
}

// NewManagerFromDB wraps an existing handle. Used by tests and tooling
// that bring their own connection; Ensure can still rebuild it when the
// config carries a DSN.
func NewManagerFromDB(db *sqlx.DB, cfg config.DatabaseConfig, log *logger.Logger) *Manager {
	m := NewManager(cfg, log)
	m.db = db
	return m
}

// Ensure guarantees a valid handle. A handle that still answers a ping is
// kept as is, with zero rebuild attempts and no sleep. Otherwise the
// manager rebuilds up to attempts times, sleeping delay between failures,
// and swaps the new handle in under the lock. Exhausting the budget
// returns a ConnectionUnavailable error carrying the last cause.
func (m *Manager) Ensure(ctx context.Context, attempts int, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		err := m.db.PingContext(ctx)
		if err == nil {
			return nil
		}
		m.log.WithError(err).Warn("database handle invalid, rebuilding")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := m.open(ctx)
		if err == nil {
			if m.db != nil {
				m.db.Close()
			}
			m.db = db
			m.log.Infof("connected to database (attempt %d/%d)", attempt, attempts)
			metrics.RecordReconnect()
			return nil
		}

		lastErr = err
		m.log.WithError(err).Warnf("database connection attempt %d/%d failed", attempt, attempts)
		metrics.RecordConnectFailure()

		if attempt < attempts && delay > 0 {
			select {
			case <-ctx.Done():
				return apperrors.ConnectionUnavailable(ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	if lastErr == nil {
		lastErr = errNotConnected
	}
	return apperrors.ConnectionUnavailable(lastErr)
}

// Do runs one store round-trip against the current handle while holding
// the serialization lock. fn must not retain the handle past its return.
func (m *Manager) Do(ctx context.Context, fn func(db *sqlx.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return apperrors.ConnectionUnavailable(errNotConnected)
	}
	return fn(m.db)
}

// Close releases the handle. The manager can be revived by a later Ensure.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *Manager) open(ctx context.Context) (*sqlx.DB, error) {
	if m.cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	driver := m.cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	db, err := sqlx.Open(driver, m.cfg.DSN)
	if err != nil {
		return nil, err
	}

	if m.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(m.cfg.MaxIdleConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(m.cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
