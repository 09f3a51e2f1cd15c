package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

// testURL returns the database used by these tests. The suite is skipped
// when it is not set.
func testURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("SUPPLYMATCH_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SUPPLYMATCH_TEST_POSTGRES_URL not set")
	}
	return url
}

// openClean connects and empties every catalog table.
func openClean(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, testURL(t))
	require.NoError(t, err)
	_, err = store.pool.Exec(ctx, `TRUNCATE requests, general_items, partners, donor_offers`)
	require.NoError(t, err)
	return store
}

func TestStore_Catalog(t *testing.T) {
	testURL(t)
	storagetest.RunCatalogTests(t, func(t *testing.T) driven.Catalog {
		return openClean(t)
	})
}

func TestOpen_Unreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, err := Open(ctx, "postgres://nobody@127.0.0.1:1/none?connect_timeout=1")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestOpen_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	first := openClean(t)
	defer first.Close()

	second, err := New(ctx, first.pool)
	require.NoError(t, err)
	assert.NotNil(t, second)
}
