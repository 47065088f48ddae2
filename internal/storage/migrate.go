package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// runMigrations applies the embedded migrations for opts.Driver. SQLite
// migrates through conn itself, since an in-memory database exists only on
// that connection. MySQL migrates over a dedicated pool that is closed
// afterwards, leaving conn untouched.
func runMigrations(conn *sql.DB, opts Options) error {
	var (
		driver database.Driver
		err    error
	)
	switch opts.Driver {
	case DriverMySQL:
		migrateConn, openErr := openConn(opts)
		if openErr != nil {
			return fmt.Errorf("open migration database: %w", openErr)
		}
		defer migrateConn.Close()
		driver, err = mysqlmigrate.WithInstance(migrateConn, &mysqlmigrate.Config{})
	default:
		driver, err = sqlite.WithInstance(conn, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("create %s migration driver: %w", opts.Driver, err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+opts.Driver)
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, opts.Driver, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	upErr := m.Up()
	if errors.Is(upErr, migrate.ErrNoChange) {
		upErr = nil
	}

	// Closing the sqlite driver would close the shared pool, so only the
	// source is released there.
	if opts.Driver == DriverMySQL {
		srcErr, dbErr := m.Close()
		return errors.Join(upErr, srcErr, dbErr)
	}
	return errors.Join(upErr, src.Close())
}
