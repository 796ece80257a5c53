package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewTest opens a migrated in-memory sqlite database private to t.
func NewTest(t testing.TB) *Database {
	t.Helper()

	url := fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := New(url, "silent")
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { db.Close() })
	return db
}
