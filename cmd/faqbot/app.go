package main

import (
	"fmt"

	"faqbot/internal/auth"
	"faqbot/internal/config"
	"faqbot/internal/faq"
	"faqbot/internal/index"
	"faqbot/internal/metrics"
	"faqbot/internal/store"

	"github.com/charmbracelet/log"
)

// app wires the index, the query service and metrics from a config.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	store    store.Store
	manager  *index.Manager
	service  *faq.Service
	verifier *auth.Verifier
	metrics  *metrics.Metrics
}

func newApp(cfg *config.Config, logger *log.Logger) (*app, error) {
	st, err := store.New(cfg.Store.Backend, cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}

	manager, err := index.NewManager(index.Config{
		CorpusPath: cfg.CorpusPath,
		Store:      st,
		NGramMin:   cfg.Matching.NGramMin,
		NGramMax:   cfg.Matching.NGramMax,
		Logger:     logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	m := metrics.New()
	manager.OnPublish(m.ObservePublish)

	verifier := auth.NewVerifier(cfg.ReloadToken, cfg.ReloadTokenHash)
	service := faq.NewService(manager, faq.Config{
		Threshold: cfg.Matching.Threshold,
		Greetings: cfg.Matching.Greetings,
		Messages:  cfg.Matching.Messages,
		Verifier:  verifier,
		Observer:  m,
		Logger:    logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		manager:  manager,
		service:  service,
		verifier: verifier,
		metrics:  m,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
