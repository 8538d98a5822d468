package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/benchtrack/pkg/config"
	"github.com/ethpandaops/benchtrack/pkg/history"
	"github.com/ethpandaops/benchtrack/pkg/index"
	"github.com/ethpandaops/benchtrack/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	backend    storage.Backend
	metrics    *metrics
	indexStore index.Store
	indexer    index.Indexer
	httpServer *http.Server
	snap       atomic.Pointer[snapshot]
	wg         sync.WaitGroup
	done       chan struct{}
	stopOnce   sync.Once
}

// snapshot is an immutable view of the document served to readers.
type snapshot struct {
	store    *history.Store
	version  string
	loadedAt time.Time
}

// NewServer creates a new API server reading the document from backend.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	backend storage.Backend,
) Server {
	return newServer(log, cfg, backend)
}

func newServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	backend storage.Backend,
) *server {
	return &server{
		log:     log.WithField("component", "api"),
		cfg:     cfg,
		backend: backend,
		metrics: newMetrics(),
		done:    make(chan struct{}),
	}
}

// Start loads the document, prepares indexing and starts the HTTP server.
// Nothing is left running when it returns an error.
func (s *server) Start(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return fmt.Errorf("loading document: %w", err)
	}

	refreshInterval, err := s.cfg.API.RefreshIntervalDuration()
	if err != nil {
		return err
	}

	// Bind the listener synchronously so we fail fast on port conflicts,
	// before any background work is started.
	ln, err := net.Listen("tcp", s.cfg.API.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.API.Server.Listen, err)
	}

	// Prepare the index before building the router so that the alert
	// endpoints are wired, but only start the background indexer once the
	// HTTP server is listening.
	if s.cfg.IndexEnabled() {
		if err := s.prepareIndexing(ctx); err != nil {
			_ = ln.Close()
			_ = s.closeIndexStore()

			return fmt.Errorf("preparing indexing: %w", err)
		}
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.API.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Document refresh loop.
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.refresh(ctx); err != nil {
					s.log.WithError(err).Warn("Failed to refresh document")
				}
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", ln.Addr().String()).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	if s.indexer != nil {
		if err := s.indexer.Start(ctx); err != nil {
			if stopErr := s.Stop(); stopErr != nil {
				s.log.WithError(stopErr).Warn("Failed to stop API server")
			}

			return fmt.Errorf("starting indexer: %w", err)
		}
	}

	return nil
}

// Stop gracefully shuts down the HTTP server and closes the index.
func (s *server) Stop() error {
	s.stopOnce.Do(func() { close(s.done) })

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.indexer != nil {
		if err := s.indexer.Stop(); err != nil {
			s.log.WithError(err).Warn("Indexer stop error")
		}
	}

	if err := s.closeIndexStore(); err != nil {
		return err
	}

	s.log.Info("API server stopped")

	return nil
}

func (s *server) closeIndexStore() error {
	if s.indexStore == nil {
		return nil
	}

	err := s.indexStore.Stop()
	s.indexStore = nil
	s.indexer = nil

	if err != nil {
		return fmt.Errorf("stopping index store: %w", err)
	}

	return nil
}

// prepareIndexing opens the index store and creates the indexer without
// starting it.
func (s *server) prepareIndexing(ctx context.Context) error {
	s.indexStore = index.NewStore(s.log, &s.cfg.Index.Database)

	if err := s.indexStore.Start(ctx); err != nil {
		return fmt.Errorf("starting index store: %w", err)
	}

	interval, err := s.cfg.Index.IntervalDuration()
	if err != nil {
		return err
	}

	s.indexer = index.NewIndexer(
		s.log, s.indexStore, s.backend, interval, s.cfg.Index.Concurrency,
	)

	s.log.Info("Indexing service enabled")

	return nil
}

// refresh reloads the document when its version changed.
func (s *server) refresh(ctx context.Context) error {
	obj, err := s.backend.Read(ctx)
	if err != nil {
		s.metrics.refreshes.WithLabelValues("error").Inc()

		return err
	}

	if cur := s.snap.Load(); cur != nil && obj != nil && cur.version == obj.Version {
		s.metrics.refreshes.WithLabelValues("unchanged").Inc()

		return nil
	}

	next := &snapshot{loadedAt: time.Now()}

	if obj == nil {
		next.store = history.New(s.log, s.cfg.Store.RepoURL)
	} else {
		data, err := history.Unmarshal(obj.Data)
		if err != nil {
			s.metrics.refreshes.WithLabelValues("error").Inc()

			return err
		}

		if data.RepoURL == "" {
			data.RepoURL = s.cfg.Store.RepoURL
		}

		store, err := history.FromData(s.log, data)
		if err != nil {
			s.metrics.refreshes.WithLabelValues("error").Inc()

			return err
		}

		next.store = store
		next.version = obj.Version
	}

	s.snap.Store(next)
	s.metrics.observeDocument(next.store)
	s.metrics.refreshes.WithLabelValues("loaded").Inc()

	s.log.WithFields(logrus.Fields{
		"suites":      len(next.store.Suites()),
		"last_update": next.store.LastUpdate(),
	}).Debug("Document loaded")

	return nil
}

func (s *server) current() *history.Store {
	return s.snap.Load().store
}
