package repo

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm/clause"

	"github.com/tbourn/go-discussion-engine/internal/config"
	"github.com/tbourn/go-discussion-engine/internal/domain"
)

func TestOpenSQLite_MissingParentDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "missing", "engine.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("OpenSQLite(%q) = %v, %v; want error", bad, db, err)
	}
}

func TestOpenSQLite_PragmasAndPool(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	pragmas := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, p := range pragmas {
		var got string
		if err := db.Raw("PRAGMA " + p.name + ";").Row().Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", p.name, err)
		}
		if strings.ToLower(got) != p.want {
			t.Errorf("PRAGMA %s = %q; want %q", p.name, got, p.want)
		}
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != sqlitePool.maxOpen {
		t.Fatalf("MaxOpenConnections = %d; want %d", got, sqlitePool.maxOpen)
	}
}

func TestAutoMigrate_SchemaEnforcesForeignKeys(t *testing.T) {
	db, err := Open(config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "engine.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, tbl := range []any{&domain.Discussion{}, &domain.Post{}, &domain.Vote{}, &domain.Notification{}, &domain.Profile{}, &domain.RewardGrant{}, &domain.Idempotency{}} {
		if !db.Migrator().HasTable(tbl) {
			t.Fatalf("table for %T missing", tbl)
		}
	}

	now := time.Now().UTC()
	orphan := &domain.Post{ID: "p-orphan", DiscussionID: "nope", AuthorID: "u1", Content: "x", CreatedAt: now, UpdatedAt: now}
	if err := db.Omit(clause.Associations).Create(orphan).Error; err == nil {
		t.Fatal("post without discussion was accepted")
	}

	if err := db.Create(&domain.Discussion{ID: "d1", Title: "t", Active: true, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert discussion: %v", err)
	}
	if err := db.Omit(clause.Associations).Create(&domain.Post{ID: "p1", DiscussionID: "d1", AuthorID: "u1", Content: "hi", CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert post: %v", err)
	}
}

func TestOpen_Drivers(t *testing.T) {
	if db, err := Open(config.Config{DBDriver: "oracle"}); err == nil || db != nil {
		t.Fatalf("unsupported driver: db=%v err=%v", db, err)
	}

	// An empty driver falls back to SQLite.
	db, err := Open(config.Config{DBPath: filepath.Join(t.TempDir(), "default.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := sqlDB.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
