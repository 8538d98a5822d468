package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/benchtrack/pkg/fsutil"
)

const lockRetryDelay = 100 * time.Millisecond

// Compile-time interface check.
var _ Backend = (*localBackend)(nil)

type localBackend struct {
	log    logrus.FieldLogger
	path   string
	owner  *fsutil.OwnerConfig
	limits Limits
}

// NewLocal creates a Backend storing the document at path. Writers are
// serialized with a lock file next to it.
func NewLocal(
	log logrus.FieldLogger, path string, owner *fsutil.OwnerConfig, limits Limits,
) Backend {
	return &localBackend{
		log:    log.WithField("component", "storage-local"),
		path:   path,
		owner:  owner,
		limits: limits,
	}
}

func (b *localBackend) Name() string {
	return "local:" + b.path
}

func (b *localBackend) Read(_ context.Context) (*Object, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("stat %s: %w", b.path, err)
	}

	if err := checkSize(info.Size(), b.limits.MaxDocumentSize); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path) //nolint:gosec // trusted path from config
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.path, err)
	}

	return &Object{Data: data, Version: contentVersion(data)}, nil
}

func (b *localBackend) Write(ctx context.Context, data []byte, version string) error {
	if err := checkSize(int64(len(data)), b.limits.MaxDocumentSize); err != nil {
		return err
	}

	current, err := b.Read(ctx)
	if err != nil {
		return err
	}

	switch {
	case current == nil && version != "":
		return fmt.Errorf("%w: document was removed", ErrConflict)
	case current != nil && current.Version != version:
		return ErrConflict
	}

	if err := fsutil.MkdirAll(filepath.Dir(b.path), 0o755, b.owner); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	if err := fsutil.WriteFileAtomic(b.path, data, 0o644, b.owner); err != nil {
		return fmt.Errorf("writing %s: %w", b.path, err)
	}

	b.log.WithField("bytes", len(data)).Debug("Wrote document")

	return nil
}

func (b *localBackend) Lock(ctx context.Context) (func() error, error) {
	if err := fsutil.MkdirAll(filepath.Dir(b.path), 0o755, b.owner); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	if b.limits.LockTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, b.limits.LockTimeout)
		defer cancel()
	}

	fl := flock.New(b.path + ".lock")

	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", fl.Path(), err)
	}

	if !locked {
		return nil, fmt.Errorf("acquiring lock %s: not acquired", fl.Path())
	}

	fsutil.Chown(fl.Path(), b.owner)

	return fl.Unlock, nil
}

func contentVersion(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}
