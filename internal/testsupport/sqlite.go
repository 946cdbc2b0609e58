// Package testsupport provides throwaway databases for package tests.
package testsupport

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"

	"js-backend/internal/db"
)

// NewStore opens a private in-memory sqlite database with the schema migrated.
func NewStore(t testing.TB) *db.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := db.OpenDialector(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// 内存库只能有一个连接，否则事务之间会互相锁表
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.NewStore(gdb)
}

// NewBootstrappedStore is NewStore plus the built-in workout and challenge catalog.
func NewBootstrappedStore(t testing.TB) *db.Store {
	t.Helper()
	s := NewStore(t)
	if _, _, err := db.Bootstrap(t.Context(), s); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return s
}
