package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/benchtrack/pkg/config"
	"github.com/ethpandaops/benchtrack/pkg/fsutil"
)

var (
	// ErrConflict is returned by Backend.Write when the stored document
	// changed since it was read.
	ErrConflict = errors.New("document was modified concurrently")

	// ErrDocumentTooLarge is returned when a document exceeds the configured
	// maximum size.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
)

// Object is a persisted document together with the version it was read at.
type Object struct {
	Data    []byte
	Version string
}

// Backend persists the single benchmark history document.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Read returns the current document. Returns (nil, nil) when no
	// document has been written yet.
	Read(ctx context.Context) (*Object, error)

	// Write stores data if the document is still at version. An empty
	// version means the document must not exist yet. Returns ErrConflict
	// otherwise.
	Write(ctx context.Context, data []byte, version string) error

	// Lock serializes writers sharing the backend. Backends relying solely
	// on conditional writes return a no-op unlock.
	Lock(ctx context.Context) (func() error, error)
}

// Limits bounds backend behaviour.
type Limits struct {
	MaxDocumentSize int64
	LockTimeout     time.Duration
}

// New creates the backend enabled in cfg.
func New(log logrus.FieldLogger, cfg *config.StorageConfig) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxSize, err := cfg.MaxDocumentSizeBytes()
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.LockTimeoutDuration()
	if err != nil {
		return nil, err
	}

	limits := Limits{MaxDocumentSize: maxSize, LockTimeout: timeout}

	if cfg.S3 != nil && cfg.S3.Enabled {
		return NewS3(log, cfg.S3, limits), nil
	}

	owner, err := fsutil.ParseOwner(cfg.Local.Owner)
	if err != nil {
		return nil, fmt.Errorf("storage.local.owner: %w", err)
	}

	return NewLocal(log, cfg.Local.Path, owner, limits), nil
}

func checkSize(size, limit int64) error {
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, size, limit)
	}

	return nil
}
