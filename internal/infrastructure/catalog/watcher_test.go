package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsChangedFile(t *testing.T) {
	loader, db, _ := newTestLoader(t)
	dir := t.TempDir()

	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)
	watcher.debounceTime = 50 * time.Millisecond

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	content := `nodes:
  - id: table_events
    type: Table
    name: events
    description: Raw clickstream events
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.yaml"), []byte(content), 0o644))

	require.Eventually(t, func() bool {
		node, err := db.Node(context.Background(), "table_events")
		return err == nil && node != nil
	}, 5*time.Second, 50*time.Millisecond, "catalog file should be ingested after creation")
}

func TestWatcher_IgnoresNonCatalogFiles(t *testing.T) {
	loader, db, _ := newTestLoader(t)
	dir := t.TempDir()

	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)
	watcher.debounceTime = 50 * time.Millisecond

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("nodes: bogus"), 0o644))

	time.Sleep(300 * time.Millisecond)

	nodes, _, _, err := db.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, nodes)
}

func TestWatcher_SurvivesInvalidFile(t *testing.T) {
	loader, db, _ := newTestLoader(t)
	dir := t.TempDir()

	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)
	watcher.debounceTime = 50 * time.Millisecond

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("nodes: [unclosed"), 0o644))
	// The watcher logs the parse failure and keeps running.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(`nodes:
  - id: table_good
    type: Table
    name: good
`), 0o644))

	require.Eventually(t, func() bool {
		node, err := db.Node(context.Background(), "table_good")
		return err == nil && node != nil
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcher_StopIsClean(t *testing.T) {
	loader, _, _ := newTestLoader(t)
	dir := t.TempDir()

	watcher, err := NewWatcher(dir, loader, nil)
	require.NoError(t, err)

	require.NoError(t, watcher.Start())
	require.NoError(t, watcher.Stop())
}
