package index

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/storage"
)

// defaultConcurrency is the number of suites synced in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

// Indexer is a background service that periodically loads the history
// document and mirrors changed suites into the index store.
type Indexer interface {
	Start(ctx context.Context) error
	Stop() error

	// RunPass performs one synchronous indexing pass.
	RunPass(ctx context.Context) error
}

// Compile-time interface check.
var _ Indexer = (*indexer)(nil)

type indexer struct {
	log         logrus.FieldLogger
	store       Store
	backend     storage.Backend
	interval    time.Duration
	concurrency int
	done        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	dbMu        sync.Mutex // serializes DB writes to avoid SQLite contention

	syncedMu sync.Mutex
	synced   map[string]suiteSignature
}

// suiteSignature identifies a suite's content cheaply. History only grows
// at the tail or is trimmed at the head, so both ends plus the length
// detect every change.
type suiteSignature struct {
	count       int
	firstCommit string
	lastCommit  string
}

// NewIndexer creates a new background indexer.
func NewIndexer(
	log logrus.FieldLogger,
	store Store,
	backend storage.Backend,
	interval time.Duration,
	concurrency int,
) Indexer {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &indexer{
		log:         log.WithField("component", "indexer"),
		store:       store,
		backend:     backend,
		interval:    interval,
		concurrency: concurrency,
		done:        make(chan struct{}),
		synced:      make(map[string]suiteSignature, 4),
	}
}

// Start launches a background goroutine that runs an immediate indexing
// pass and then ticks at the configured interval.
func (idx *indexer) Start(ctx context.Context) error {
	idx.log.WithFields(logrus.Fields{
		"interval":    idx.interval.String(),
		"concurrency": idx.concurrency,
	}).Info("Starting indexer")

	idx.wg.Add(1)

	go func() {
		defer idx.wg.Done()

		idx.runPassLogged(ctx)

		ticker := time.NewTicker(idx.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				idx.runPassLogged(ctx)
			case <-idx.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop signals the indexer goroutine to stop and waits for it.
func (idx *indexer) Stop() error {
	idx.stopOnce.Do(func() { close(idx.done) })
	idx.wg.Wait()

	idx.log.Info("Indexer stopped")

	return nil
}

func (idx *indexer) runPassLogged(ctx context.Context) {
	if err := idx.RunPass(ctx); err != nil {
		idx.log.WithError(err).Warn("Indexing pass failed")
	}
}

// RunPass loads the document and syncs every suite that changed since the
// previous pass, with bounded parallelism.
func (idx *indexer) RunPass(ctx context.Context) error {
	start := time.Now()

	doc, err := storage.Load(ctx, idx.log, idx.backend, "")
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}

	suites := doc.Suites()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)

	var synced atomic.Int64

	for _, suite := range suites {
		entries, err := doc.Entries(suite)
		if err != nil {
			return err
		}

		sig := signatureOf(entries)
		if idx.unchanged(suite, sig) {
			continue
		}

		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case <-idx.done:
				return nil
			default:
			}

			if err := idx.syncSuite(gCtx, suite, entries); err != nil {
				idx.log.WithError(err).
					WithField("suite", suite).
					Warn("Failed to index suite")

				return nil //nolint:nilerr // log and continue
			}

			idx.markSynced(suite, sig)
			synced.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("indexing suites: %w", err)
	}

	idx.log.WithFields(logrus.Fields{
		"suites":   len(suites),
		"synced":   synced.Load(),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("Indexing pass completed")

	return nil
}

func (idx *indexer) syncSuite(ctx context.Context, suite string, entries []history.Entry) error {
	idx.dbMu.Lock()
	defer idx.dbMu.Unlock()

	if err := idx.store.SyncSuite(ctx, suite, entries); err != nil {
		return err
	}

	idx.log.WithFields(logrus.Fields{
		"suite":   suite,
		"entries": len(entries),
	}).Debug("Indexed suite")

	return nil
}

func (idx *indexer) unchanged(suite string, sig suiteSignature) bool {
	idx.syncedMu.Lock()
	defer idx.syncedMu.Unlock()

	prev, ok := idx.synced[suite]

	return ok && prev == sig
}

func (idx *indexer) markSynced(suite string, sig suiteSignature) {
	idx.syncedMu.Lock()
	defer idx.syncedMu.Unlock()

	idx.synced[suite] = sig
}

func signatureOf(entries []history.Entry) suiteSignature {
	sig := suiteSignature{count: len(entries)}

	if len(entries) > 0 {
		sig.firstCommit = entries[0].Commit.ID
		sig.lastCommit = entries[len(entries)-1].Commit.ID
	}

	return sig
}
