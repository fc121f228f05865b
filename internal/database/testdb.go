package database

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"erp/internal/config"

	"gorm.io/gorm"
)

var testDBSeq atomic.Int64

// NewTestDB opens a migrated, private in-memory sqlite database that is
// closed when the test finishes.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, testDBSeq.Add(1))
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn, LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})
	return db
}
