// Package store persists the symbol table and reference table the
// indexing pipeline stages between passes (spec §4.3). It is a thin
// GORM layer over SQLite/libsql, grounded on the teacher's db package:
// same Connect/Migrate shape, extended with WAL journaling and a busy
// timeout.
package store

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codegraph/indexer/internal/store/model"
)

// Connect opens the symbol/reference cache at dsn and runs migrations.
// dsn is either a local file path (storage.cache_path) or a libsql(+http)
// URL for a remote Turso-hosted cache.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	if !isURL(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create cache directory: %w", err)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)

	if isURL(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv("CODEGRAPH_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = sqlite.New(sqlite.Config{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		})
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("connect to cache: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
		sqlDB.Exec("PRAGMA journal_mode = WAL")
		sqlDB.Exec("PRAGMA busy_timeout = 5000")
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}

	return db, nil
}

// OpenReader opens a read-oriented connection to the cache; the
// materialize command uses it. A local file is opened read-only and no
// migrations run; a libsql URL goes through Connect, which migrates.
func OpenReader(dsn string) (*gorm.DB, error) {
	if isURL(dsn) {
		return Connect(dsn, false)
	}
	db, err := gorm.Open(sqlite.Open(dsn+"?mode=ro"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open cache for reading: %w", err)
	}
	return db, nil
}

func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "libsql+")
}

// Migrate creates or updates the cache schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Symbol{},
		&model.Reference{},
		&model.ConfigReference{},
		&model.RunStats{},
	)
}
