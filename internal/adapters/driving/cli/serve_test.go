package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWatcher fires onChange once per queued event.
type fakeWatcher struct {
	events int
	err    error
}

func (w *fakeWatcher) Watch(_ context.Context, onChange func()) error {
	for i := 0; i < w.events; i++ {
		onChange()
	}
	return w.err
}

func TestServeCmd_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("addr")
	require.NotNil(t, flag)
	assert.Equal(t, ":8080", flag.DefValue)
	assert.NotNil(t, serveCmd.Flags().Lookup("rate-limit"))
	assert.NotNil(t, serveCmd.Flags().Lookup("access-log"))
}

func TestServeCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	bootstrapFunc = func(_ context.Context, _ BootstrapRequest) (*Services, error) {
		return &Services{}, nil
	}

	_, err := execute(t, "serve")

	assert.ErrorIs(t, err, errNoMatching)
}

func TestWatchSettings_ReloadsMatchingThresholds(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	useServices(&Services{Settings: current.settings, Matching: current.matching, Watcher: &fakeWatcher{events: 1}})
	require.NoError(t, current.config.Set("matching.hard_cutoff", 0.2))

	watchSettings(context.Background())

	require.NotNil(t, current.matching.updated)
	assert.InDelta(t, 0.2, current.matching.updated.HardCutoff, 1e-12)
}

func TestWatchSettings_NoWatcher(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	useServices(&Services{Settings: current.settings, Matching: current.matching})

	watchSettings(context.Background())

	assert.Nil(t, current.matching.updated)
}

func TestWatchSettings_WatchErrorIsNotFatal(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	useServices(&Services{
		Settings: current.settings,
		Matching: current.matching,
		Watcher:  &fakeWatcher{err: errors.New("too many open files")},
	})

	assert.NotPanics(t, func() { watchSettings(context.Background()) })
}

func TestReloadSettings_KeepsPreviousOnError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	useServices(&Services{Settings: current.settings})
	current.matching.err = errors.New("collection cannot change")

	reloadSettings(current.matching)

	// The reloader saw the attempt; the service itself decides to keep its settings.
	require.NotNil(t, current.matching.updated)
}
