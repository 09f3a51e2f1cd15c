package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/supplymatch/internal/adapters/driven/storage/storagetest"
	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driven"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	return store
}

func TestStore_Catalog(t *testing.T) {
	storagetest.RunCatalogTests(t, func(t *testing.T) driven.Catalog {
		return setupTestStore(t)
	})
}

func TestNewStore_CreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "catalog.db"), store.Path())
	assert.FileExists(t, store.Path())
}

func TestNewStore_InvalidDirectory(t *testing.T) {
	store, err := NewStore("/dev/null/cannot/create")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	storagetest.Seed(t, store)
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	it, err := reopened.GeneralItem(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Gauze Pads", it.Title)

	var versions []int
	require.NoError(t, reopened.db.Select(&versions, "SELECT version FROM schema_migrations ORDER BY version"))
	assert.Equal(t, []int{1}, versions, "migrations are recorded once")
}

func TestStore_StoresNormalizedTitle(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	storagetest.Seed(t, store)

	var normalized string
	require.NoError(t, store.db.Get(&normalized, "SELECT normalized_title FROM general_items WHERE id = 2"))
	assert.Equal(t, "gauze pads", normalized)
}

func TestStore_DeletingOfferDetachesItems(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	defer store.Close()
	storagetest.Seed(t, store)

	_, err := store.db.Exec("DELETE FROM donor_offers WHERE id = 1")
	require.NoError(t, err)

	it, err := store.GeneralItem(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, it.DonorOfferID)
}

func TestStore_MigrateSkipsAppliedAndUnversioned(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	defer store.Close()

	fsys := fstest.MapFS{
		"001_catalog.up.sql": {Data: []byte("THIS WOULD FAIL")},
		"002_extra.up.sql":   {Data: []byte("CREATE TABLE extra (id INTEGER PRIMARY KEY);")},
		"002_extra.down.sql": {Data: []byte("DROP TABLE extra;")},
		"notes.up.sql":       {Data: []byte("ALSO WOULD FAIL")},
	}
	require.NoError(t, store.migrate(ctx, fsys))

	var count int
	require.NoError(t, store.db.Get(&count, "SELECT COUNT(*) FROM extra"))
	assert.Equal(t, 0, count)

	var latest int
	require.NoError(t, store.db.Get(&latest, "SELECT MAX(version) FROM schema_migrations"))
	assert.Equal(t, 2, latest)
}

func TestStore_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	defer store.Close()

	fsys := fstest.MapFS{
		"003_broken.up.sql": {Data: []byte("CREATE TABLE half (id INTEGER); NOT SQL;")},
	}
	err := store.migrate(ctx, fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_broken.up.sql")

	var latest int
	require.NoError(t, store.db.Get(&latest, "SELECT MAX(version) FROM schema_migrations"))
	assert.Equal(t, 1, latest)
}

func TestStore_CanceledContext(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.AllItems(ctx, 0, 10)
	assert.Error(t, err)

	err = store.SaveOffer(ctx, domain.DonorOffer{ID: 1})
	assert.Error(t, err)
}
