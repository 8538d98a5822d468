package storage_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/storage"
)

// racingBackend wraps a backend and lets another writer slip in before the
// first n writes.
type racingBackend struct {
	storage.Backend
	races  int
	writes int
	inject func() error
}

func (r *racingBackend) Write(ctx context.Context, data []byte, version string) error {
	r.writes++

	if r.races > 0 {
		r.races--

		if err := r.inject(); err != nil {
			return err
		}
	}

	return r.Backend.Write(ctx, data, version)
}

func testEntry(n int, date int64, value float64) history.Entry {
	return history.Entry{
		Commit: history.CommitInfo{
			ID:        fmt.Sprintf("%040x", n),
			Message:   "change",
			Timestamp: "2024-01-01T00:00:00Z",
			URL:       "https://example.com/commit",
		},
		Date:    date,
		Tool:    history.ToolGo,
		Benches: []history.BenchResult{{Name: "BenchmarkX", Value: value, Unit: "ns/op"}},
	}
}

func appendFn(suite string, e history.Entry, out **history.AppendResult) func(*history.Store) error {
	return func(s *history.Store) error {
		res, err := s.Append(suite, e)
		if err != nil {
			return err
		}

		*out = res

		return nil
	}
}

func TestUpdate_CreatesAndAppends(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	b := storage.NewLocal(log, filepath.Join(t.TempDir(), "data.js"), nil, storage.Limits{})
	opts := storage.UpdateOptions{
		RepoURL:     "https://github.com/ethpandaops/benchtrack",
		Encode:      history.EncodeOptions{Format: history.FormatJS},
		MaxAttempts: 3,
	}

	var res *history.AppendResult

	require.NoError(t, storage.Update(ctx, log, b, opts, appendFn("Benchmark", testEntry(1, 1000, 10), &res)))
	assert.Empty(t, res.Alerts)

	require.NoError(t, storage.Update(ctx, log, b, opts, appendFn("Benchmark", testEntry(2, 2000, 30), &res)))
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, history.AlertRegression, res.Alerts[0].Kind)

	store, err := storage.Load(ctx, log, b, "")
	require.NoError(t, err)

	entries, err := store.Entries("Benchmark")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(2000), store.LastUpdate())
	assert.Equal(t, "https://github.com/ethpandaops/benchtrack", store.RepoURL())
}

func TestUpdate_FnErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	b := storage.NewLocal(log, filepath.Join(t.TempDir(), "data.js"), nil, storage.Limits{})

	var res *history.AppendResult

	opts := storage.UpdateOptions{MaxAttempts: 1}
	require.NoError(t, storage.Update(ctx, log, b, opts, appendFn("s", testEntry(1, 1000, 10), &res)))

	before, err := b.Read(ctx)
	require.NoError(t, err)

	err = storage.Update(ctx, log, b, opts, appendFn("s", testEntry(1, 2000, 10), &res))

	var dup *history.DuplicateCommitError
	require.ErrorAs(t, err, &dup)

	after, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
}

func TestUpdate_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	inner := storage.NewLocal(log, filepath.Join(t.TempDir(), "data.js"), nil, storage.Limits{})
	opts := storage.UpdateOptions{MaxAttempts: 3}

	var res *history.AppendResult

	require.NoError(t, storage.Update(ctx, log, inner, opts, appendFn("s", testEntry(1, 1000, 10), &res)))

	// The rival writes while the lock is held, as a writer on another host
	// sharing the same object would.
	b := &racingBackend{Backend: inner, races: 1}
	b.inject = func() error {
		obj, err := inner.Read(ctx)
		if err != nil {
			return err
		}

		data, err := history.Unmarshal(obj.Data)
		if err != nil {
			return err
		}

		store, err := history.FromData(log, data)
		if err != nil {
			return err
		}

		if _, err := store.Append("s", testEntry(100, 1500, 10)); err != nil {
			return err
		}

		raw, err := history.Marshal(store.Data(), history.EncodeOptions{})
		if err != nil {
			return err
		}

		return inner.Write(ctx, raw, obj.Version)
	}

	require.NoError(t, storage.Update(ctx, log, b, opts, appendFn("s", testEntry(2, 2000, 10), &res)))
	assert.Equal(t, 2, b.writes)

	store, err := storage.Load(ctx, log, inner, "")
	require.NoError(t, err)

	entries, err := store.Entries("s")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, testEntry(2, 0, 0).Commit.ID, entries[2].Commit.ID)
}

func TestUpdate_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	inner := storage.NewLocal(log, filepath.Join(t.TempDir(), "data.js"), nil, storage.Limits{})

	b := &racingBackend{Backend: inner, races: 10}
	b.inject = func() error { return storage.ErrConflict }

	var res *history.AppendResult

	err := storage.Update(ctx, log, b, storage.UpdateOptions{MaxAttempts: 2},
		appendFn("s", testEntry(1, 1000, 10), &res))
	require.ErrorIs(t, err, storage.ErrConflict)
	assert.Equal(t, 2, b.writes)
}

func TestLoad_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	log := logrus.New()
	b := storage.NewLocal(log, filepath.Join(t.TempDir(), "data.js"), nil, storage.Limits{})

	require.NoError(t, b.Write(ctx, []byte("window.BENCHMARK_DATA = {oops"), ""))

	_, err := storage.Load(ctx, log, b, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding document")

	// The corrupt document is left in place.
	obj, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(obj.Data), "oops")
}
