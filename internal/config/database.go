package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/wishlister/migrations"
)

// Database holds database connection and configuration
type Database struct {
	*sqlx.DB
	driver string
	logger *logrus.Logger
}

// NewDatabase creates a new database connection for the given driver
func NewDatabase(driver, databaseURL string, logger *logrus.Logger) (*Database, error) {
	if driver == "sqlite3" {
		databaseURL = sqliteDSN(databaseURL)
	}

	db, err := sqlx.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	switch driver {
	case "sqlite3":
		// one connection keeps in-memory databases alive and serializes writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithField("driver", driver).Info("Database connection established successfully")

	return &Database{
		DB:     db,
		driver: driver,
		logger: logger,
	}, nil
}

// sqliteDSN turns on foreign key enforcement, which SQLite leaves off per
// connection unless asked. Cascading deletes depend on it.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// Driver returns the name of the database driver in use
func (d *Database) Driver() string {
	return d.driver
}

// Migrate runs all pending up migrations
func (d *Database) Migrate() error {
	m, err := d.migrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

// Rollback reverts the given number of migrations
func (d *Database) Rollback(steps int) error {
	m, err := d.migrator()
	if err != nil {
		return err
	}

	if err := m.Steps(-steps); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	d.logger.WithField("steps", steps).Info("Database rollback completed successfully")
	return nil
}

// migrator builds a migrate instance over the embedded files. It is never
// closed since closing it would close the shared connection pool.
func (d *Database) migrator() (*migrate.Migrate, error) {
	var (
		driver database.Driver
		err    error
	)
	switch d.driver {
	case "postgres":
		driver, err = postgres.WithInstance(d.DB.DB, &postgres.Config{})
	case "sqlite3":
		driver, err = sqlite3.WithInstance(d.DB.DB, &sqlite3.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", d.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	files, err := migrations.ForDriver(d.driver)
	if err != nil {
		return nil, err
	}
	source, err := iofs.New(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.driver, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
