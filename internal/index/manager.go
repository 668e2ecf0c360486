// Package index owns the live Snapshot: it loads cached artifacts or builds
// from the corpus at startup, and rebuilds and swaps the snapshot on reload.
//
// Readers call Current and never block. Builds are serialized by a mutex and
// published with a single atomic pointer swap, so a reader sees either the
// previous snapshot or the new one in full.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"faqbot/internal/corpus"
	"faqbot/internal/logging"
	"faqbot/internal/store"
	"faqbot/internal/tfidf"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var (
	// ErrReloadInProgress is returned when Reload is called while another
	// reload is running.
	ErrReloadInProgress = errors.New("reload already in progress")
	// ErrFit wraps vectorizer failures.
	ErrFit = errors.New("index fit failed")
)

// State is the lifecycle state of a Manager.
type State int

const (
	Cold State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Cold:
		return "cold"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the Manager settings.
type Config struct {
	CorpusPath string
	Store      store.Store
	NGramMin   int
	NGramMax   int
	Logger     *log.Logger
}

// DefaultConfig returns the n-gram defaults. CorpusPath and Store must be set
// by the caller.
func DefaultConfig() Config {
	return Config{
		NGramMin: tfidf.DefaultNGramMin,
		NGramMax: tfidf.DefaultNGramMax,
	}
}

// Manager publishes snapshots.
type Manager struct {
	cfg     Config
	logger  *log.Logger
	current atomic.Pointer[Snapshot]

	// buildMu serializes builds; Reload only ever TryLocks it.
	buildMu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []func(*Snapshot)

	now func() time.Time
}

// NewManager creates a Cold manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("index: store is required")
	}
	if cfg.CorpusPath == "" {
		return nil, errors.New("index: corpus path is required")
	}
	if cfg.NGramMin <= 0 {
		cfg.NGramMin = DefaultConfig().NGramMin
	}
	if cfg.NGramMax <= 0 {
		cfg.NGramMax = DefaultConfig().NGramMax
	}

	return &Manager{
		cfg:    cfg,
		logger: logging.Component(cfg.Logger, "index"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Current returns the live snapshot, or nil while Cold.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// State reports whether a snapshot has been published.
func (m *Manager) State() State {
	if m.current.Load() == nil {
		return Cold
	}
	return Ready
}

// OnPublish registers fn to be called after every publish.
func (m *Manager) OnPublish(fn func(*Snapshot)) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// EnsureReady publishes a snapshot if none is live yet. Cached artifacts are
// used when the store has a complete, consistent set; otherwise the index is
// built from the corpus. A failure to persist a fresh build is logged and
// the build is still published. Cancelling ctx does not interrupt a build or
// save once started.
func (m *Manager) EnsureReady(ctx context.Context) (*Snapshot, error) {
	if snap := m.current.Load(); snap != nil {
		return snap, nil
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	if snap := m.current.Load(); snap != nil {
		return snap, nil
	}

	ctx = context.WithoutCancel(ctx)
	if m.cfg.Store.Exists(ctx) {
		snap, err := m.loadCached(ctx)
		if err == nil {
			m.publish(snap)
			return snap, nil
		}
		m.logger.Warn("cached artifacts unusable, rebuilding",
			"location", m.cfg.Store.Location(), "err", err)
	}

	snap, err := m.build()
	if err != nil {
		return nil, err
	}
	if err := m.cfg.Store.Save(ctx, snap.artifacts()); err != nil {
		m.logger.Warn("failed to persist artifacts", "location", m.cfg.Store.Location(), "err", err)
	}
	m.publish(snap)
	return snap, nil
}

// Reload rebuilds from the corpus, persists the result and publishes it.
// When persisting fails the error is returned and the previous snapshot stays
// live. A concurrent call returns ErrReloadInProgress without waiting.
//
// A reload runs to completion even if ctx is cancelled; a half-saved
// artifact set would disagree with the published snapshot.
func (m *Manager) Reload(ctx context.Context) (*Snapshot, error) {
	if !m.buildMu.TryLock() {
		return nil, ErrReloadInProgress
	}
	defer m.buildMu.Unlock()

	ctx = context.WithoutCancel(ctx)

	snap, err := m.build()
	if err != nil {
		return nil, err
	}
	if err := m.cfg.Store.Save(ctx, snap.artifacts()); err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	m.publish(snap)
	return snap, nil
}

func (m *Manager) loadCached(ctx context.Context) (*Snapshot, error) {
	a, err := m.cfg.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	snap := newSnapshot(a.BuildID, a.BuiltAt, SourceCache, a.Model, a.Matrix, a.Corpus)
	snap.Fingerprint = a.Fingerprint
	snap.Report = corpus.Report{Path: m.cfg.CorpusPath, Loaded: len(a.Corpus)}
	return snap, nil
}

func (m *Manager) build() (*Snapshot, error) {
	start := time.Now()
	// Taken before reading, so an edit racing the read shows up as a change
	// on the next fingerprint comparison.
	fingerprint, _ := corpus.Fingerprint(m.cfg.CorpusPath)
	records, report := corpus.LoadOrSentinel(m.cfg.CorpusPath, m.logger)

	v := &tfidf.Vectorizer{NGramMin: m.cfg.NGramMin, NGramMax: m.cfg.NGramMax}
	model, matrix, err := v.Fit(corpus.Questions(records))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFit, err)
	}

	snap := newSnapshot(uuid.NewString(), m.now(), SourceBuild, model, matrix, records)
	snap.Fingerprint = fingerprint
	snap.Report = report
	m.logger.Info("index built",
		"build_id", snap.BuildID,
		"items", snap.Items(),
		"vocabulary", snap.Vocabulary(),
		"usable_rows", snap.UsableRows,
		"sentinel", report.UsedSentinel,
		"duration", time.Since(start))
	return snap, nil
}

func (m *Manager) publish(snap *Snapshot) {
	m.current.Store(snap)
	m.logger.Info("index published", "build_id", snap.BuildID, "source", snap.Source, "items", snap.Items())

	m.hooksMu.RLock()
	hooks := m.hooks
	m.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(snap)
	}
}

func (s *Snapshot) artifacts() *store.Artifacts {
	return &store.Artifacts{
		BuildID:     s.BuildID,
		BuiltAt:     s.BuiltAt,
		Fingerprint: s.Fingerprint,
		Model:       s.Model,
		Matrix:      s.Matrix,
		Corpus:      s.Corpus,
	}
}
