package config

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

func TestWatcherReloadsOnChange(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "viewsmith.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	var mu sync.Mutex
	var got *Config
	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	assert.True(t, w.IsWatching())

	// Modify the file and wait for the debounced reload to settle
	updated := DefaultConfig()
	updated.Server.Addr = ":9999"
	require.NoError(t, updated.Save(path))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := got != nil
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got, "reload callback never fired")
	assert.Equal(t, ":9999", got.Server.Addr)
	assert.GreaterOrEqual(t, w.Reloads(), 1)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "viewsmith.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	fired := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*Config) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// A sibling file change must not trigger a reload
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))

	select {
	case <-fired:
		t.Fatal("reload fired for unrelated file")
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestWatcherInvalidConfigKeepsPrevious(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "viewsmith.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	fired := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*Config) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Write a config that parses but fails validation
	bad := DefaultConfig()
	bad.Model.Provider = "mystery"
	require.NoError(t, bad.Save(path))

	select {
	case <-fired:
		t.Fatal("reload fired for invalid config")
	case <-time.After(1200 * time.Millisecond):
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewsmith.yaml")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx)) // Second start is a no-op

	w.Stop()
	w.Stop() // Second stop must not panic
	assert.False(t, w.IsWatching())
}
