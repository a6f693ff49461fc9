// Package storetest builds in-memory stores for tests.
package storetest

import (
	"testing"

	"github.com/arnold/partnerhub-api/internal/database"
	"github.com/arnold/partnerhub-api/internal/store"
)

// New creates an in-memory SQLite store with all models migrated. The pool is
// pinned to one connection so every query sees the same in-memory database.
func New(t *testing.T) *store.Store {
	t.Helper()

	db, err := database.Connect(":memory:", false)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return store.New(db)
}
