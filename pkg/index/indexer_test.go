package index_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/index"
	"github.com/ethpandaops/benchtrack/pkg/storage"
)

// countingStore records how often each suite is synced.
type countingStore struct {
	index.Store
	syncs map[string]int
}

func (c *countingStore) SyncSuite(ctx context.Context, suite string, entries []history.Entry) error {
	c.syncs[suite]++

	return c.Store.SyncSuite(ctx, suite, entries)
}

func appendEntry(t *testing.T, b storage.Backend, suite string, e history.Entry) {
	t.Helper()

	err := storage.Update(context.Background(), logrus.New(), b, storage.UpdateOptions{MaxAttempts: 1},
		func(s *history.Store) error {
			_, err := s.Append(suite, e)

			return err
		})
	require.NoError(t, err)
}

func TestIndexer_RunPass(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	backend := storage.NewLocal(log, filepath.Join(t.TempDir(), "data.js"), nil, storage.Limits{})
	store := &countingStore{Store: setupTestStore(t), syncs: map[string]int{}}
	idx := index.NewIndexer(log, store, backend, time.Hour, 2)

	// An absent document is an empty pass.
	require.NoError(t, idx.RunPass(ctx))
	assert.Empty(t, store.syncs)

	appendEntry(t, backend, "go", makeEntry(1, 1000, history.BenchResult{Name: "a", Value: 1}))
	appendEntry(t, backend, "rust", makeEntry(1, 1000, history.BenchResult{Name: "b", Value: 2}))

	require.NoError(t, idx.RunPass(ctx))
	assert.Equal(t, map[string]int{"go": 1, "rust": 1}, store.syncs)

	// Unchanged suites are skipped.
	appendEntry(t, backend, "go", makeEntry(2, 2000, history.BenchResult{Name: "a", Value: 3}))
	require.NoError(t, idx.RunPass(ctx))
	assert.Equal(t, map[string]int{"go": 2, "rust": 1}, store.syncs)

	points, err := store.ListSeries(ctx, "go", "a")
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestIndexer_StartStop(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	backend := storage.NewLocal(log, filepath.Join(t.TempDir(), "data.js"), nil, storage.Limits{})
	appendEntry(t, backend, "go", makeEntry(1, 1000, history.BenchResult{Name: "a", Value: 1}))

	store := setupTestStore(t)
	idx := index.NewIndexer(log, store, backend, time.Hour, 0)

	require.NoError(t, idx.Start(context.Background()))

	require.Eventually(t, func() bool {
		points, err := store.ListSeries(context.Background(), "go", "a")

		return err == nil && len(points) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, idx.Stop())
	require.NoError(t, idx.Stop())
}
