package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"expense-guard/internal/config"

	"github.com/go-sql-driver/mysql"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("storage: not found")

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// dialect holds the statements that differ between drivers.
type dialect struct {
	name       string
	upsertUser string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:       DriverSQLite,
		upsertUser: "INSERT INTO users (email, created_at) VALUES (?, ?) ON CONFLICT(email) DO NOTHING",
	},
	DriverMySQL: {
		name:       DriverMySQL,
		upsertUser: "INSERT INTO users (email, created_at) VALUES (?, ?) ON DUPLICATE KEY UPDATE user_id = user_id",
	},
}

// Options selects and configures the backing database.
type Options struct {
	Driver string

	// SQLite
	Path string

	// MySQL
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	TLS      bool
}

// OptionsFrom builds Options from the application configuration.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Driver:   cfg.DBDriver,
		Path:     cfg.DBPath,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		TLS:      cfg.DBTLS,
	}
}

// DB wraps a sql.DB connection.
type DB struct {
	conn    *sql.DB
	dialect dialect
}

// NewDB opens a SQLite database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	return Open(context.Background(), Options{Driver: DriverSQLite, Path: path})
}

// Open opens a database connection and runs migrations.
func Open(ctx context.Context, opts Options) (*DB, error) {
	d, ok := dialects[opts.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	conn, err := openConn(opts)
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(conn, opts); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{conn: conn, dialect: d}, nil
}

func openConn(opts Options) (*sql.DB, error) {
	switch opts.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(opts.Host, opts.Port)
		mc.User = opts.User
		mc.Passwd = opts.Password
		mc.DBName = opts.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		// Report matched rather than changed rows so a no-op UPDATE
		// is distinguishable from a missing row.
		mc.ClientFoundRows = true
		mc.MultiStatements = true
		if opts.TLS {
			mc.TLSConfig = "true"
		}

		connector, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, fmt.Errorf("configure mysql: %w", err)
		}
		conn := sql.OpenDB(connector)
		conn.SetMaxOpenConns(10)
		conn.SetConnMaxLifetime(5 * time.Minute)
		return conn, nil

	default:
		conn, err := sql.Open("sqlite", opts.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// One connection: an in-memory database lives and dies with it,
		// and SQLite serializes writers anyway.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
		if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
		return conn, nil
	}
}

// Driver returns the name of the underlying driver.
func (db *DB) Driver() string {
	return db.dialect.name
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// utc normalizes timestamps before they are written or compared, so stored
// values share one zone and MySQL's microsecond precision.
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
