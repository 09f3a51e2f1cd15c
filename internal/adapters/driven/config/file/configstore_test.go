package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_LoadCorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("this is not valid TOML {{{[["), 0600)
	require.NoError(t, err)

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("embedding.provider", "ollama"))
	require.NoError(t, store.Set("matching.default_k", 10))
	require.NoError(t, store.Set("matching.hard_cutoff", 0.1))
	require.NoError(t, store.Set("cache.enabled", true))
	require.NoError(t, store.Set("storage.tags", []string{"a", "b"}))

	assert.Equal(t, "ollama", store.GetString("embedding.provider"))
	assert.Equal(t, 10, store.GetInt("matching.default_k"))
	assert.InDelta(t, 0.1, store.GetFloat("matching.hard_cutoff"), 1e-12)
	assert.InDelta(t, 10.0, store.GetFloat("matching.default_k"), 1e-12)
	assert.True(t, store.GetBool("cache.enabled"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("storage.tags"))
}

func TestConfigStore_TypedGetters_WrongTypeOrMissing(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("matching.hard_cutoff", "close"))

	assert.Equal(t, 0.0, store.GetFloat("matching.hard_cutoff"))
	assert.Equal(t, 0, store.GetInt("matching.hard_cutoff"))
	assert.False(t, store.GetBool("matching.hard_cutoff"))
	assert.Equal(t, "", store.GetString("missing"))
	assert.Nil(t, store.GetStringSlice("missing"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_SaveReload_WritesNestedTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("matching.hard_cutoff", 0.12))
	require.NoError(t, store.Set("matching.default_k", 7))
	require.NoError(t, store.Set("embedding.model", "nomic-embed-text"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[matching]")
	assert.Contains(t, string(raw), "[embedding]")
	assert.NotContains(t, string(raw), "'matching.hard_cutoff'")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.InDelta(t, 0.12, reloaded.GetFloat("matching.hard_cutoff"), 1e-12)
	assert.Equal(t, 7, reloaded.GetInt("matching.default_k"))
	assert.Equal(t, "nomic-embed-text", reloaded.GetString("embedding.model"))
}

func TestConfigStore_LoadHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[embedding]
provider = "openai"
model = "text-embedding-3-small"

[matching]
hard_cutoff = 1
distance_cutoff = 0.4
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "openai", store.GetString("embedding.provider"))
	assert.InDelta(t, 1.0, store.GetFloat("matching.hard_cutoff"), 1e-12)
	assert.InDelta(t, 0.4, store.GetFloat("matching.distance_cutoff"), 1e-12)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("embedding.api_key", "sk-test"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Load_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), nil, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("anything")
	assert.False(t, ok)
}

func TestConfigStore_Load_InvalidTOMLKeepsError(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("valid", "data"))
	require.NoError(t, os.WriteFile(store.Path(), []byte("invalid toml syntax ][}{"), 0600))

	assert.Error(t, store.Load())
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("test", "value"))

	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
}

func TestConfigStore_SetWithUnmarshallableValue(t *testing.T) {
	store := newStore(t)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("matching.default_k", n)
			_ = store.GetInt("matching.default_k")
			_ = store.GetFloat("matching.hard_cutoff")
		}(i)
	}
	wg.Wait()
}

func TestNestMap(t *testing.T) {
	nested := nestMap(map[string]any{
		"matching.hard_cutoff": 0.1,
		"matching.default_k":   10,
		"top":                  "x",
		"a":                    1,
		"a.b":                  2,
	})

	assert.Equal(t, "x", nested["top"])
	assert.Equal(t, map[string]any{"hard_cutoff": 0.1, "default_k": 10}, nested["matching"])
	assert.Equal(t, map[string]any{"b": 2}, nested["a"])
}

func TestConfigStore_Watch_ReloadsOnWrite(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("matching.hard_cutoff", 0.1))

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	content := "[matching]\nhard_cutoff = 0.2\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called")
	}
	assert.InDelta(t, 0.2, store.GetFloat("matching.hard_cutoff"), 1e-12)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestConfigStore_Watch_IgnoresOtherFiles(t *testing.T) {
	store := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan struct{}, 1)
	go func() {
		_ = store.Watch(ctx, func() { changed <- struct{}{} })
	}()

	time.Sleep(100 * time.Millisecond)
	other := filepath.Join(filepath.Dir(store.Path()), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("hello"), 0600))

	select {
	case <-changed:
		t.Fatal("onChange called for unrelated file")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestConfigStore_Watch_MissingDirectory(t *testing.T) {
	store := newStore(t)
	store.filePath = filepath.Join(t.TempDir(), "gone", "config.toml")

	err := store.Watch(context.Background(), nil)

	assert.Error(t, err)
}
