// Package store persists fitted index artifacts so a restart can skip the fit.
//
// An artifact set is three payloads: the vectorizer state, the document
// matrix and a cache of the corpus the matrix was built from. All three carry
// the build ID of the fit that produced them and are only accepted together.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"faqbot/internal/corpus"
	"faqbot/internal/tfidf"
)

// Artifact names, used as file names by FileStore and row keys by SQLiteStore.
const (
	VectorizerArtifact = "vectorizer.gob"
	MatrixArtifact     = "matrix.bin"
	CorpusArtifact     = "corpus_cache.json"
)

// ArtifactNames lists every artifact of a set.
var ArtifactNames = []string{VectorizerArtifact, MatrixArtifact, CorpusArtifact}

// Backend names accepted by New.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	// ErrCorrupt marks artifacts that exist but cannot be decoded or do not
	// agree with each other.
	ErrCorrupt = errors.New("artifacts corrupt")
	// ErrIO marks a failure to read or write the underlying storage.
	ErrIO = errors.New("artifact i/o failed")
	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// StoreError wraps a failure with the operation and its kind (ErrCorrupt or
// ErrIO). errors.Is matches both the kind and the underlying cause.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store.%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func corrupt(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrCorrupt, Err: err}
}

func ioFailure(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrIO, Err: err}
}

// Artifacts is the persisted form of one fit.
type Artifacts struct {
	BuildID string
	BuiltAt time.Time
	// Fingerprint is the sha256 of the corpus file the fit read; empty when
	// the corpus was unreadable.
	Fingerprint string
	Model       *tfidf.Model
	Matrix      []tfidf.SparseVector
	Corpus      []corpus.Record
}

// Store saves and restores artifact sets.
type Store interface {
	// Exists reports whether every artifact of a set is present.
	Exists(ctx context.Context) bool
	// Save persists all artifacts. A failed save never leaves a partially
	// written artifact under its final name.
	Save(ctx context.Context, a *Artifacts) error
	// Load restores a consistent artifact set.
	Load(ctx context.Context) (*Artifacts, error)
	// Location describes where artifacts live, for logs and health output.
	Location() string
	Close() error
}

// New opens the store backend named by backend rooted at dir.
func New(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir), nil
	case BackendSQLite:
		return NewSQLiteStore(dir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
