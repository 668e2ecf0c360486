package tfidf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleQuestions = []string{
	"apa itu malakatech",
	"layanan apa saja",
}

func TestFitEmptyCorpus(t *testing.T) {
	_, _, err := NewVectorizer().Fit(nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestFitInvalidRange(t *testing.T) {
	v := &Vectorizer{NGramMin: 2, NGramMax: 1}
	_, _, err := v.Fit(sampleQuestions)
	assert.ErrorIs(t, err, ErrInvalidNGramRange)
}

func TestFitVocabularyAndIDF(t *testing.T) {
	model, matrix, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)
	require.Len(t, matrix, 2)

	want := []string{
		"apa", "apa itu", "apa saja", "itu", "itu malakatech",
		"layanan", "layanan apa", "malakatech", "saja",
	}
	require.Len(t, model.Vocabulary, len(want))
	for i, term := range want {
		assert.Equal(t, i, model.Vocabulary[term], "index of %q", term)
	}

	// "apa" appears in both documents, everything else in one
	assert.InDelta(t, 1.0, model.IDF[model.Vocabulary["apa"]], 1e-12)
	assert.InDelta(t, math.Log(1.5)+1, model.IDF[model.Vocabulary["itu"]], 1e-12)
	assert.Equal(t, 2, model.Documents)
	assert.Equal(t, 9, model.Dimensions())

	for _, w := range model.IDF {
		assert.Greater(t, w, 0.0)
	}
}

func TestFitRowsAreUnitLength(t *testing.T) {
	texts := []string{
		"apa itu malakatech",
		"layanan apa saja yang tersedia",
		"bagaimana cara menghubungi tim support",
		"apa apa apa",
		"jam operasional kantor",
	}
	_, matrix, err := NewVectorizer().Fit(texts)
	require.NoError(t, err)

	for i, row := range matrix {
		assert.InDelta(t, 1.0, row.Norm(), 1e-9, "row %d", i)
	}
}

func TestFitPunctuationOnlyDocumentIsZeroRow(t *testing.T) {
	model, matrix, err := NewVectorizer().Fit([]string{"?!", "halo dunia"})
	require.NoError(t, err)

	assert.True(t, matrix[0].IsZero())
	assert.Equal(t, 0.0, matrix[0].Norm())
	assert.InDelta(t, 1.0, matrix[1].Norm(), 1e-9)
	assert.Equal(t, 3, model.Dimensions())
}

func TestTransformSelfSimilarity(t *testing.T) {
	model, matrix, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)

	for i, q := range sampleQuestions {
		vec := model.Transform(q)
		assert.InDelta(t, 1.0, vec.Dot(matrix[i]), 1e-9)
		assert.Equal(t, matrix[i], vec)
	}
}

func TestTransformNormalizesQuery(t *testing.T) {
	model, _, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)

	assert.Equal(t, model.Transform("apa itu malakatech"), model.Transform("  APA itu, MalakaTech?? "))
}

func TestTransformOutOfVocabulary(t *testing.T) {
	model, _, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)

	vec := model.Transform("zzz tidak relevan")
	assert.True(t, vec.IsZero())
	assert.Equal(t, 0, vec.Len())
	assert.Equal(t, 0.0, vec.Norm())

	assert.True(t, model.Transform("").IsZero())
}

func TestTransformPartialOverlapNormBounded(t *testing.T) {
	model, _, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)

	vec := model.Transform("apa kabar dunia")
	require.False(t, vec.IsZero())
	assert.InDelta(t, 1.0, vec.Norm(), 1e-9)
	assert.Equal(t, []int{0}, vec.Indices)
}

func TestUnigramOnly(t *testing.T) {
	v := &Vectorizer{NGramMin: 1, NGramMax: 1}
	model, _, err := v.Fit(sampleQuestions)
	require.NoError(t, err)

	assert.Len(t, model.Vocabulary, 5)
	_, ok := model.Vocabulary["apa itu"]
	assert.False(t, ok)
}

func TestFitDeterministic(t *testing.T) {
	m1, x1, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)
	m2, x2, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
	assert.Equal(t, x1, x2)
}

func TestModelValidate(t *testing.T) {
	model, matrix, err := NewVectorizer().Fit(sampleQuestions)
	require.NoError(t, err)
	require.NoError(t, model.Validate())
	for _, row := range matrix {
		require.NoError(t, model.ValidateRow(row))
	}

	t.Run("idf length mismatch", func(t *testing.T) {
		bad := *model
		bad.IDF = bad.IDF[:3]
		assert.ErrorIs(t, bad.Validate(), ErrInconsistentModel)
	})

	t.Run("non-positive idf", func(t *testing.T) {
		bad := *model
		bad.IDF = append([]float64(nil), model.IDF...)
		bad.IDF[0] = 0
		assert.ErrorIs(t, bad.Validate(), ErrInconsistentModel)
	})

	t.Run("bad ngram range", func(t *testing.T) {
		bad := *model
		bad.NGramMin = 0
		assert.ErrorIs(t, bad.Validate(), ErrInvalidNGramRange)
	})

	t.Run("nil model", func(t *testing.T) {
		var nilModel *Model
		assert.ErrorIs(t, nilModel.Validate(), ErrInconsistentModel)
	})

	t.Run("row out of range", func(t *testing.T) {
		row := SparseVector{Indices: []int{0, 99}, Values: []float64{0.5, 0.5}}
		assert.ErrorIs(t, model.ValidateRow(row), ErrInconsistentModel)
	})

	t.Run("row not ascending", func(t *testing.T) {
		row := SparseVector{Indices: []int{2, 1}, Values: []float64{0.5, 0.5}}
		assert.ErrorIs(t, model.ValidateRow(row), ErrInconsistentModel)
	})
}

func TestSparseDot(t *testing.T) {
	a := SparseVector{Indices: []int{0, 2, 5}, Values: []float64{1, 2, 3}}
	b := SparseVector{Indices: []int{1, 2, 5, 7}, Values: []float64{4, 5, 6, 7}}

	assert.Equal(t, 2.0*5+3.0*6, a.Dot(b))
	assert.Equal(t, a.Dot(b), b.Dot(a))
	assert.Equal(t, 0.0, a.Dot(SparseVector{}))
}
