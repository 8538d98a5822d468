package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/benchtrack/pkg/history"
)

// UpdateOptions controls a read-modify-write cycle.
type UpdateOptions struct {
	// RepoURL is used when the backend holds no document yet, or the
	// stored one carries no repository URL.
	RepoURL string

	// StoreOptions are passed to the loaded history.Store.
	StoreOptions []history.Option

	// Encode controls how the document is written back.
	Encode history.EncodeOptions

	// MaxAttempts bounds retries after ErrConflict. Values below one mean
	// a single attempt.
	MaxAttempts int
}

// Load reads the document from backend into a Store. An absent document
// yields an empty store for repoURL.
func Load(
	ctx context.Context,
	log logrus.FieldLogger,
	backend Backend,
	repoURL string,
	opts ...history.Option,
) (*history.Store, error) {
	store, _, err := load(ctx, log, backend, repoURL, opts)

	return store, err
}

func load(
	ctx context.Context,
	log logrus.FieldLogger,
	backend Backend,
	repoURL string,
	opts []history.Option,
) (*history.Store, string, error) {
	obj, err := backend.Read(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("reading document from %s: %w", backend.Name(), err)
	}

	if obj == nil {
		return history.New(log, repoURL, opts...), "", nil
	}

	data, err := history.Unmarshal(obj.Data)
	if err != nil {
		return nil, "", fmt.Errorf("decoding document from %s: %w", backend.Name(), err)
	}

	if data.RepoURL == "" {
		data.RepoURL = repoURL
	}

	store, err := history.FromData(log, data, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("loading document from %s: %w", backend.Name(), err)
	}

	return store, obj.Version, nil
}

// Update loads the document under the backend lock, applies fn and writes
// the result back. The cycle is repeated when another writer got there
// first. Nothing is written when fn returns an error, and that error is
// returned unwrapped.
func Update(
	ctx context.Context,
	log logrus.FieldLogger,
	backend Backend,
	opts UpdateOptions,
	fn func(*history.Store) error,
) error {
	log = log.WithField("component", "storage")
	attempts := max(opts.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		err := updateOnce(ctx, log, backend, opts, fn)
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrConflict) {
			return err
		}

		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"backend": backend.Name(),
		}).Warn("Document changed concurrently, retrying")

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, ErrConflict)
}

func updateOnce(
	ctx context.Context,
	log logrus.FieldLogger,
	backend Backend,
	opts UpdateOptions,
	fn func(*history.Store) error,
) error {
	unlock, err := backend.Lock(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := unlock(); err != nil {
			log.WithError(err).Warn("Failed to release lock")
		}
	}()

	store, version, err := load(ctx, log, backend, opts.RepoURL, opts.StoreOptions)
	if err != nil {
		return err
	}

	if err := fn(store); err != nil {
		return err
	}

	data, err := history.Marshal(store.Data(), opts.Encode)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	return backend.Write(ctx, data, version)
}
