// Package migrations ships the reference schema as embedded SQL and
// applies it with golang-migrate. The service only calls stored functions,
// so a deployment that manages its own schema never needs this package.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/plusmaps/atlas/pkg/logger"
)

//go:embed sql/*.sql
var files embed.FS

// Apply brings the schema behind databaseURL up to the newest embedded
// version. A schema that is already current is not an error.
func Apply(databaseURL string, log *logger.Logger) error {
	if log == nil {
		log = logger.NewDefault("migrations")
	}

	src, err := iofs.New(files, "sql")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warnf("migrator close: source=%v database=%v", srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("schema already up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	if version, dirty, verr := m.Version(); verr == nil {
		log.WithField("version", version).WithField("dirty", dirty).Info("schema migrated")
	}
	return nil
}
