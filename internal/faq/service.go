// Package faq answers user questions from the live index and runs
// authenticated reloads.
package faq

import (
	"context"
	"time"

	"faqbot/internal/auth"
	"faqbot/internal/index"
	"faqbot/internal/logging"
	"faqbot/internal/similarity"
	"faqbot/internal/textnorm"

	"github.com/charmbracelet/log"
)

// Response kinds.
const (
	KindGreeting      = "greeting"
	KindInsufficient  = "insufficient_data"
	KindMatched       = "matched"
	KindNotUnderstood = "not_understood"
)

// Default fallback texts.
const (
	DefaultGreeting = "Hai! 👋 Selamat datang di *MalakaTech Assistant*.\n" +
		"Saya di sini untuk membantu pertanyaan seputar layanan kami.\n\n" +
		"Contoh:\n" +
		"• Apa itu MalakaTech?\n" +
		"• Layanan apa saja yang tersedia?\n" +
		"• Kenapa harus memilih tim malakatech?"
	DefaultInsufficient  = "Data FAQ belum cukup, tambahkan lebih banyak pertanyaan."
	DefaultNotUnderstood = "Maaf, Saya belum mengerti pertanyaan Anda."
)

// DefaultGreetings are the normalized inputs answered with the greeting.
var DefaultGreetings = []string{"hai", "hi", "halo", "hallo", "helo"}

// Response is the answer to one query. Question and Score are set only for
// matched responses.
type Response struct {
	Kind     string   `json:"kind"`
	Matched  bool     `json:"matched"`
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer"`
	Score    *float64 `json:"score,omitempty"`
}

// ReloadResult reports a successful reload.
type ReloadResult struct {
	Status  string `json:"status"`
	Items   int    `json:"items"`
	BuildID string `json:"build_id"`
}

// Messages holds the fallback texts.
type Messages struct {
	Greeting      string `json:"greeting"`
	Insufficient  string `json:"insufficient"`
	NotUnderstood string `json:"not_understood"`
}

// DefaultMessages returns the built-in fallback texts.
func DefaultMessages() Messages {
	return Messages{
		Greeting:      DefaultGreeting,
		Insufficient:  DefaultInsufficient,
		NotUnderstood: DefaultNotUnderstood,
	}
}

// Indexer is the part of index.Manager the service depends on.
type Indexer interface {
	EnsureReady(ctx context.Context) (*index.Snapshot, error)
	Reload(ctx context.Context) (*index.Snapshot, error)
}

// Observer is notified of every answer and reload. Metrics implement it.
type Observer interface {
	ObserveAnswer(kind string, score float64, elapsed time.Duration)
	ObserveReload(err error, elapsed time.Duration)
}

// Config holds the Service settings.
type Config struct {
	Threshold float64
	Greetings []string
	Messages  Messages
	Verifier  *auth.Verifier
	Observer  Observer
	Logger    *log.Logger
}

// DefaultConfig returns the default threshold, greetings and messages.
func DefaultConfig() Config {
	return Config{
		Threshold: similarity.DefaultThreshold,
		Greetings: DefaultGreetings,
		Messages:  DefaultMessages(),
	}
}

// Service answers queries against the snapshot published by an Indexer.
type Service struct {
	indexer   Indexer
	cfg       Config
	greetings map[string]struct{}
	logger    *log.Logger
}

// NewService creates a Service. Zero-valued settings take their defaults.
func NewService(indexer Indexer, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.Threshold == 0 {
		cfg.Threshold = defaults.Threshold
	}
	if len(cfg.Greetings) == 0 {
		cfg.Greetings = defaults.Greetings
	}
	if cfg.Messages.Greeting == "" {
		cfg.Messages.Greeting = defaults.Messages.Greeting
	}
	if cfg.Messages.Insufficient == "" {
		cfg.Messages.Insufficient = defaults.Messages.Insufficient
	}
	if cfg.Messages.NotUnderstood == "" {
		cfg.Messages.NotUnderstood = defaults.Messages.NotUnderstood
	}

	greetings := make(map[string]struct{}, len(cfg.Greetings))
	for _, g := range cfg.Greetings {
		greetings[textnorm.Normalize(g)] = struct{}{}
	}

	return &Service{
		indexer:   indexer,
		cfg:       cfg,
		greetings: greetings,
		logger:    logging.Component(cfg.Logger, "faq"),
	}
}

// Messages returns the configured fallback texts.
func (s *Service) Messages() Messages {
	return s.cfg.Messages
}

// Answer resolves q to a greeting, a matched record or a fallback text.
func (s *Service) Answer(ctx context.Context, q string) (Response, error) {
	start := time.Now()

	snap, err := s.indexer.EnsureReady(ctx)
	if err != nil {
		return Response{}, err
	}

	resp := s.answer(snap, q)

	var score float64
	if resp.Score != nil {
		score = *resp.Score
	}
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveAnswer(resp.Kind, score, time.Since(start))
	}
	s.logger.Debug("answered", "kind", resp.Kind, "score", score, "build_id", snap.BuildID)
	return resp, nil
}

func (s *Service) answer(snap *index.Snapshot, q string) Response {
	normalized := textnorm.Normalize(q)

	if _, ok := s.greetings[normalized]; ok {
		return Response{Kind: KindGreeting, Answer: s.cfg.Messages.Greeting}
	}
	if snap.UsableRows == 0 {
		return Response{Kind: KindInsufficient, Answer: s.cfg.Messages.Insufficient}
	}

	match, ok := snap.Match(normalized, s.cfg.Threshold)
	if !ok {
		return Response{Kind: KindNotUnderstood, Answer: s.cfg.Messages.NotUnderstood}
	}

	score := match.Score
	return Response{
		Kind:     KindMatched,
		Matched:  true,
		Question: match.Record.Question,
		Answer:   match.Record.Answer,
		Score:    &score,
	}
}

// Reload authenticates token and rebuilds the index.
func (s *Service) Reload(ctx context.Context, token string) (ReloadResult, error) {
	if err := s.cfg.Verifier.Verify(token); err != nil {
		s.logger.Warn("reload rejected", "err", err)
		return ReloadResult{}, err
	}

	start := time.Now()
	snap, err := s.indexer.Reload(ctx)
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveReload(err, time.Since(start))
	}
	if err != nil {
		s.logger.Error("reload failed", "err", err)
		return ReloadResult{}, err
	}

	s.logger.Info("reloaded", "items", snap.Items(), "build_id", snap.BuildID)
	return ReloadResult{Status: "reloaded", Items: snap.Items(), BuildID: snap.BuildID}, nil
}
