// Package storagetest provides a throwaway sqlite-backed storage service
// for tests.
package storagetest

import (
	"fmt"
	"identityradio/backend/internal/changefeed"
	"identityradio/backend/internal/storage"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

var dbSeq atomic.Int64

// New opens a fresh in-memory database for each test, migrated and wired
// to an in-process change feed.
func New(t testing.TB) (*storage.Service, *changefeed.MemoryFeed) {
	t.Helper()

	dsn := fmt.Sprintf("sqlite://file:radio_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := storage.Open(dsn)
	require.NoError(t, err)

	// Одне з'єднання: інакше кожне отримає власну порожню базу
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, storage.Migrate(db))

	feed := changefeed.NewMemoryFeed()
	return storage.NewStorageService(db, nil, feed), feed
}
