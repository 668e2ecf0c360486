package index

import (
	"time"

	"faqbot/internal/corpus"
	"faqbot/internal/similarity"
	"faqbot/internal/tfidf"
)

// Snapshot sources.
const (
	SourceBuild = "build"
	SourceCache = "cache"
)

// Snapshot is one fit: the vectorizer state, the document matrix and the
// corpus it was built from. A published snapshot is never mutated.
type Snapshot struct {
	BuildID string
	BuiltAt time.Time
	Source  string
	// Fingerprint identifies the corpus file content the fit read; empty
	// when the corpus could not be read.
	Fingerprint string
	Model       *tfidf.Model
	Matrix      []tfidf.SparseVector
	Corpus      []corpus.Record
	UsableRows  int
	Report      corpus.Report
}

func newSnapshot(buildID string, builtAt time.Time, source string, model *tfidf.Model, matrix []tfidf.SparseVector, records []corpus.Record) *Snapshot {
	usable := 0
	for _, row := range matrix {
		if !row.IsZero() {
			usable++
		}
	}
	return &Snapshot{
		BuildID:    buildID,
		BuiltAt:    builtAt,
		Source:     source,
		Model:      model,
		Matrix:     matrix,
		Corpus:     records,
		UsableRows: usable,
	}
}

// Items returns the number of indexed records.
func (s *Snapshot) Items() int { return len(s.Corpus) }

// Vocabulary returns the number of features.
func (s *Snapshot) Vocabulary() int { return s.Model.Dimensions() }

// Match vectorizes query and returns the best record above threshold.
func (s *Snapshot) Match(query string, threshold float64) (similarity.Match, bool) {
	return similarity.BestMatch(s.Model.Transform(query), s.Matrix, s.Corpus, threshold)
}
