// Package watcher reloads the index when the corpus file content changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"faqbot/internal/corpus"
	"faqbot/internal/index"
	"faqbot/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule checks the corpus every 30 seconds.
const DefaultSchedule = "@every 30s"

// Reloader rebuilds the index and exposes the live snapshot.
// index.Manager implements it.
type Reloader interface {
	Reload(ctx context.Context) (*index.Snapshot, error)
	Current() *index.Snapshot
}

// Observer records reloads the watcher triggers. metrics.Metrics
// implements it.
type Observer interface {
	ObserveReload(err error, elapsed time.Duration)
}

// Config configures a Watcher.
type Config struct {
	CorpusPath string
	Schedule   string // cron spec; defaults to DefaultSchedule
	Reloader   Reloader
	Observer   Observer // optional
	Logger     *log.Logger
}

// Watcher fingerprints the corpus on a cron schedule and reloads on change.
type Watcher struct {
	path     string
	schedule string
	reloader Reloader
	observer Observer
	logger   *log.Logger
	cron     *cron.Cron

	mu   sync.Mutex
	last string // sha256 of the content behind the live index
}

// New creates a Watcher. The schedule is validated here.
func New(cfg Config) (*Watcher, error) {
	if cfg.Reloader == nil {
		return nil, errors.New("watcher: reloader is required")
	}
	if cfg.CorpusPath == "" {
		return nil, errors.New("watcher: corpus path is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("watcher: invalid schedule %q: %w", cfg.Schedule, err)
	}

	logger := logging.Component(cfg.Logger, "watcher")
	return &Watcher{
		path:     cfg.CorpusPath,
		schedule: cfg.Schedule,
		reloader: cfg.Reloader,
		observer: cfg.Observer,
		logger:   logger,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
	}, nil
}

// Prime takes the fingerprint of the content behind the live snapshot, which
// for a snapshot loaded from cache may predate the file on disk. With no
// live snapshot, or one without a fingerprint, the first readable check
// reloads.
func (w *Watcher) Prime() {
	var fp string
	if snap := w.reloader.Current(); snap != nil {
		fp = snap.Fingerprint
	}
	w.mu.Lock()
	w.last = fp
	w.mu.Unlock()
	w.logger.Debug("primed", "fingerprint", fp)
}

// Check reloads the index if the corpus changed since the last successful
// reload. It reports whether a reload happened. An unreadable corpus is not
// an error; the next check tries again.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fp, err := corpus.Fingerprint(w.path)
	if err != nil {
		w.logger.Warn("corpus not readable, skipping check", "path", w.path, "err", err)
		return false, nil
	}
	if fp == w.last {
		return false, nil
	}

	w.logger.Info("corpus changed, reloading", "path", w.path)
	start := time.Now()
	snap, err := w.reloader.Reload(ctx)
	if errors.Is(err, index.ErrReloadInProgress) {
		// last stays unchanged so the next tick retries
		w.logger.Info("reload already running, retrying next tick")
		return false, nil
	}
	if w.observer != nil {
		w.observer.ObserveReload(err, time.Since(start))
	}
	if err != nil {
		return false, fmt.Errorf("reload after corpus change: %w", err)
	}

	w.last = fp
	if snap.Fingerprint != "" {
		w.last = snap.Fingerprint
	}
	w.logger.Info("reloaded after corpus change", "build_id", snap.BuildID, "items", snap.Items())
	return true, nil
}

// Start primes the fingerprint, runs the schedule until ctx is cancelled and
// waits for a running check to finish.
func (w *Watcher) Start(ctx context.Context) error {
	w.Prime()

	_, err := w.cron.AddFunc(w.schedule, func() {
		if _, err := w.Check(ctx); err != nil {
			w.logger.Error("corpus check failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}

	w.cron.Start()
	w.logger.Info("watching corpus", "path", w.path, "schedule", w.schedule)

	<-ctx.Done()
	<-w.cron.Stop().Done()
	return nil
}

// cronLogger adapts a charm logger to cron.Logger.
type cronLogger struct {
	l *log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
