// Package tfidf fits a TF-IDF vector space model over n-grams of normalized
// text and transforms text into L2-normalized sparse vectors.
package tfidf

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"faqbot/internal/textnorm"
)

const (
	// DefaultNGramMin is the smallest n-gram size extracted by default.
	DefaultNGramMin = 1
	// DefaultNGramMax is the largest n-gram size extracted by default.
	DefaultNGramMax = 2
)

var (
	// ErrEmptyCorpus is returned when Fit is called without documents.
	ErrEmptyCorpus = errors.New("tfidf: empty corpus")
	// ErrInvalidNGramRange is returned for an n-gram range with min < 1 or max < min.
	ErrInvalidNGramRange = errors.New("tfidf: invalid n-gram range")
	// ErrInconsistentModel is returned by Validate for a model whose parts disagree.
	ErrInconsistentModel = errors.New("tfidf: inconsistent model")
)

// Vectorizer holds fit-time settings.
type Vectorizer struct {
	NGramMin int
	NGramMax int
}

// NewVectorizer returns a Vectorizer extracting unigrams and bigrams.
func NewVectorizer() *Vectorizer {
	return &Vectorizer{NGramMin: DefaultNGramMin, NGramMax: DefaultNGramMax}
}

// Model is the fitted state of a Vectorizer. It is never mutated after Fit
// returns, so it may be shared between goroutines.
type Model struct {
	Vocabulary map[string]int
	IDF        []float64
	NGramMin   int
	NGramMax   int
	Documents  int
}

// Fit learns the vocabulary and IDF weights from texts and returns the
// document matrix, one row per text in input order.
//
// Texts are normalized before n-gram extraction.
func (v *Vectorizer) Fit(texts []string) (*Model, []SparseVector, error) {
	if len(texts) == 0 {
		return nil, nil, ErrEmptyCorpus
	}
	if err := checkRange(v.NGramMin, v.NGramMax); err != nil {
		return nil, nil, err
	}

	// Term counts per document, plus document frequency per term
	counts := make([]map[string]int, len(texts))
	df := make(map[string]int)
	for i, text := range texts {
		counts[i] = termCounts(textnorm.Normalize(text), v.NGramMin, v.NGramMax)
		for term := range counts[i] {
			df[term]++
		}
	}

	// Sorted vocabulary gives stable feature indices for identical input
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(texts))
	model := &Model{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
		NGramMin:   v.NGramMin,
		NGramMax:   v.NGramMax,
		Documents:  len(texts),
	}
	for i, term := range terms {
		model.Vocabulary[term] = i
		// Smoothed IDF = ln((1+N)/(1+df)) + 1
		model.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	matrix := make([]SparseVector, len(texts))
	for i := range texts {
		matrix[i] = model.weigh(counts[i])
	}

	return model, matrix, nil
}

// Transform maps text into the fitted vector space. Terms that were not seen
// during Fit are dropped; text with no known term yields the zero vector.
func (m *Model) Transform(text string) SparseVector {
	return m.weigh(termCounts(textnorm.Normalize(text), m.NGramMin, m.NGramMax))
}

// Dimensions returns the vocabulary size.
func (m *Model) Dimensions() int {
	return len(m.IDF)
}

// Validate checks the internal consistency of a model, typically one that
// was decoded from storage.
func (m *Model) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil model", ErrInconsistentModel)
	}
	if err := checkRange(m.NGramMin, m.NGramMax); err != nil {
		return err
	}
	if len(m.Vocabulary) != len(m.IDF) {
		return fmt.Errorf("%w: vocabulary has %d terms but %d idf weights",
			ErrInconsistentModel, len(m.Vocabulary), len(m.IDF))
	}
	seen := make([]bool, len(m.IDF))
	for term, idx := range m.Vocabulary {
		if idx < 0 || idx >= len(m.IDF) || seen[idx] {
			return fmt.Errorf("%w: bad index %d for term %q", ErrInconsistentModel, idx, term)
		}
		seen[idx] = true
	}
	for i, w := range m.IDF {
		if !(w > 0) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: idf[%d] = %v", ErrInconsistentModel, i, w)
		}
	}
	return nil
}

// ValidateRow checks that a matrix row fits this model's dimensions.
func (m *Model) ValidateRow(row SparseVector) error {
	if !row.valid(len(m.IDF)) {
		return fmt.Errorf("%w: row does not fit %d dimensions", ErrInconsistentModel, len(m.IDF))
	}
	return nil
}

// weigh turns raw term counts into an L2-normalized TF-IDF vector.
func (m *Model) weigh(counts map[string]int) SparseVector {
	type entry struct {
		idx   int
		count int
	}
	entries := make([]entry, 0, len(counts))
	for term, c := range counts {
		if idx, ok := m.Vocabulary[term]; ok {
			entries = append(entries, entry{idx, c})
		}
	}
	if len(entries) == 0 {
		return SparseVector{}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	vec := SparseVector{
		Indices: make([]int, len(entries)),
		Values:  make([]float64, len(entries)),
	}
	for i, e := range entries {
		vec.Indices[i] = e.idx
		vec.Values[i] = float64(e.count) * m.IDF[e.idx]
	}

	vec.normalize()
	return vec
}

// termCounts extracts n-grams of consecutive tokens, joined by one space.
func termCounts(normalized string, minN, maxN int) map[string]int {
	tokens := textnorm.Tokens(normalized)
	counts := make(map[string]int)
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[strings.Join(tokens[i:i+n], " ")]++
		}
	}
	return counts
}

func checkRange(minN, maxN int) error {
	if minN < 1 || maxN < minN {
		return fmt.Errorf("%w: (%d, %d)", ErrInvalidNGramRange, minN, maxN)
	}
	return nil
}
