package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the cycle's single database connection. The Loader is its only
// writer; no other component touches storage.
type DB struct {
	*sqlx.DB
	logger *zap.Logger
}

// NewDB opens and pings the database.
func NewDB(connStr string, logger *zap.Logger) (*DB, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.Info("connected to PostgreSQL")
	return &DB{DB: db, logger: logger}, nil
}

// RunMigrations applies the embedded schema migrations.
func (db *DB) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		db.logger.Warn("could not read migration version", zap.Error(err))
	} else {
		db.logger.Info("schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.logger.Error("rollback failed", zap.Error(rbErr))
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}

// Close closes the database connection.
func (db *DB) Close() {
	if db.DB != nil {
		_ = db.DB.Close()
	}
}
