// Package repo is the GORM persistence layer: connection bootstrap,
// migrations and free-function queries over the engine's tables. Functions
// take a *gorm.DB so callers can pass a transaction.
package repo

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-discussion-engine/internal/config"
	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// Open connects to the database selected by cfg.DBDriver. When tracing is
// enabled, GORM statements are reported as OpenTelemetry spans.
func Open(cfg config.Config) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "postgres":
		db, err = OpenPostgres(cfg.DatabaseURL)
	case "sqlite", "":
		db, err = OpenSQLite(cfg.DBPath)
	default:
		return nil, errors.New("unsupported DB_DRIVER: " + cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// sqlitePragmas are passed through the DSN so every pooled connection gets
// them, not just the first one.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// poolSettings sizes a database/sql pool.
type poolSettings struct {
	maxOpen, maxIdle int
	idleTime, life   time.Duration
}

var (
	sqlitePool   = poolSettings{maxOpen: 10, maxIdle: 10, idleTime: 5 * time.Minute, life: 30 * time.Minute}
	postgresPool = poolSettings{maxOpen: 25, maxIdle: 10, idleTime: 5 * time.Minute, life: 30 * time.Minute}
)

func applyPool(db *gorm.DB, p poolSettings) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxIdleTime(p.idleTime)
	sqlDB.SetConnMaxLifetime(p.life)
	return nil
}

// OpenSQLite opens or creates the database file at path. The parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	dsn := path + "?" + url.Values{"_pragma": sqlitePragmas}.Encode()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := applyPool(db, sqlitePool); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenPostgres connects using a libpq-style DSN or URL.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := applyPool(db, postgresPool); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates every table the engine owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Discussion{},
		&domain.Post{},
		&domain.Vote{},
		&domain.Notification{},
		&domain.Profile{},
		&domain.RewardGrant{},
		&domain.Idempotency{},
	)
}
