package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"faqbot/internal/corpus"
	"faqbot/internal/tfidf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRecords = []corpus.Record{
	{Question: "apa itu malakatech", Answer: "A1"},
	{Question: "layanan apa saja", Answer: "A2"},
}

func buildArtifacts(t *testing.T, buildID string, records []corpus.Record) *Artifacts {
	t.Helper()
	model, matrix, err := tfidf.NewVectorizer().Fit(corpus.Questions(records))
	require.NoError(t, err)
	return &Artifacts{
		BuildID:     buildID,
		BuiltAt:     time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC),
		Fingerprint: "fp-" + buildID,
		Model:       model,
		Matrix:      matrix,
		Corpus:      records,
	}
}

func assertSameArtifacts(t *testing.T, want, got *Artifacts) {
	t.Helper()
	assert.Equal(t, want.BuildID, got.BuildID)
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.True(t, want.BuiltAt.Equal(got.BuiltAt), "built_at %v != %v", want.BuiltAt, got.BuiltAt)
	assert.Equal(t, want.Model, got.Model)
	assert.Equal(t, want.Matrix, got.Matrix)
	assert.Equal(t, want.Corpus, got.Corpus)
}

type backend struct {
	name string
	open func(t *testing.T, dir string) Store
}

var backends = []backend{
	{"file", func(t *testing.T, dir string) Store { return NewFileStore(dir) }},
	{"sqlite", func(t *testing.T, dir string) Store {
		s, err := NewSQLiteStore(dir)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, filepath.Join(t.TempDir(), "artifacts"))
			assert.False(t, s.Exists(ctx))

			want := buildArtifacts(t, "build-1", sampleRecords)
			require.NoError(t, s.Save(ctx, want))
			assert.True(t, s.Exists(ctx))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assertSameArtifacts(t, want, got)

			// Transform through the restored model matches the original
			q := "apa itu malakatech"
			assert.Equal(t, want.Model.Transform(q), got.Model.Transform(q))
		})
	}
}

func TestRoundTripWithZeroRows(t *testing.T) {
	ctx := context.Background()
	records := []corpus.Record{{Question: "?!", Answer: "x"}, {Question: "halo dunia", Answer: "y"}}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir())
			want := buildArtifacts(t, "build-z", records)
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assertSameArtifacts(t, want, got)
			assert.True(t, got.Matrix[0].IsZero())
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir())
			require.NoError(t, s.Save(ctx, buildArtifacts(t, "first", sampleRecords)))

			second := buildArtifacts(t, "second", []corpus.Record{{Question: "jam buka", Answer: "08.00"}})
			require.NoError(t, s.Save(ctx, second))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assertSameArtifacts(t, second, got)
		})
	}
}

func TestSaveRejectsMismatchedArtifacts(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, t.TempDir())
			a := buildArtifacts(t, "x", sampleRecords)
			a.Corpus = a.Corpus[:1]

			err := s.Save(ctx, a)
			assert.ErrorIs(t, err, ErrIO)
			assert.False(t, s.Exists(ctx))

			assert.ErrorIs(t, s.Save(ctx, nil), ErrIO)
		})
	}
}

func TestFileStorePartialSetIsAbsent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(ctx, buildArtifacts(t, "b", sampleRecords)))

	for _, name := range ArtifactNames {
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			require.NoError(t, os.Remove(filepath.Join(dir, name)))
			defer os.WriteFile(filepath.Join(dir, name), data, 0644)

			assert.False(t, s.Exists(ctx))
			_, err = s.Load(ctx)
			assert.ErrorIs(t, err, ErrIO)
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}
	assert.True(t, s.Exists(ctx))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(context.Background(), buildArtifacts(t, "b", sampleRecords)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, ArtifactNames, names)
}

// lateCancelCtx turns cancelled after its first Err call.
type lateCancelCtx struct {
	context.Context
	calls int
}

func (c *lateCancelCtx) Err() error {
	c.calls++
	if c.calls > 1 {
		return context.Canceled
	}
	return nil
}

func TestFileStoreSaveCompletesOnceStarted(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(context.Background(), buildArtifacts(t, "old", sampleRecords)))

	want := buildArtifacts(t, "new", sampleRecords[:1])
	require.NoError(t, s.Save(&lateCancelCtx{Context: context.Background()}, want))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assertSameArtifacts(t, want, got)
}

func TestFileStoreSaveRejectsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Save(ctx, buildArtifacts(t, "b", sampleRecords))
	assert.ErrorIs(t, err, ErrIO)
	assert.False(t, s.Exists(context.Background()))
}

func TestFileStoreCorruption(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(t *testing.T, dir string)
	}{
		{"garbage vectorizer", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, VectorizerArtifact), []byte("garbage"), 0644))
		}},
		{"truncated matrix", func(t *testing.T, dir string) {
			path := filepath.Join(dir, MatrixArtifact)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, data[:len(data)-5], 0644))
		}},
		{"trailing matrix bytes", func(t *testing.T, dir string) {
			path := filepath.Join(dir, MatrixArtifact)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, append(data, 0, 0), 0644))
		}},
		{"bad magic", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, MatrixArtifact), []byte("NOPE\x01\x00"), 0644))
		}},
		{"invalid corpus json", func(t *testing.T, dir string) {
			require.NoError(t, os.WriteFile(filepath.Join(dir, CorpusArtifact), []byte("{"), 0644))
		}},
		{"artifact from another build", func(t *testing.T, dir string) {
			other := t.TempDir()
			require.NoError(t, NewFileStore(other).Save(ctx, buildArtifacts(t, "other", sampleRecords)))
			data, err := os.ReadFile(filepath.Join(other, CorpusArtifact))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, CorpusArtifact), data, 0644))
		}},
		{"row count differs from corpus", func(t *testing.T, dir string) {
			other := t.TempDir()
			bigger := append(append([]corpus.Record{}, sampleRecords...), corpus.Record{Question: "jam buka", Answer: "08.00"})
			require.NoError(t, NewFileStore(other).Save(ctx, buildArtifacts(t, "same", bigger)))
			data, err := os.ReadFile(filepath.Join(other, CorpusArtifact))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, CorpusArtifact), data, 0644))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := NewFileStore(dir)
			require.NoError(t, s.Save(ctx, buildArtifacts(t, "same", sampleRecords)))

			tt.mutate(t, dir)

			assert.True(t, s.Exists(ctx))
			_, err := s.Load(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)

			var storeErr *StoreError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, "load", storeErr.Op)
		})
	}
}

func TestSQLiteStoreCorruptPayload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, buildArtifacts(t, "b", sampleRecords)))
	_, err = s.db.Exec("UPDATE artifacts SET payload = ? WHERE name = ?", []byte("junk"), MatrixArtifact)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = s.db.Exec("DELETE FROM artifacts WHERE name = ?", CorpusArtifact)
	require.NoError(t, err)
	assert.False(t, s.Exists(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrIO)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	want := buildArtifacts(t, "persisted", sampleRecords)
	require.NoError(t, s.Save(ctx, want))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Exists(ctx))
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assertSameArtifacts(t, want, got)
	assert.Equal(t, filepath.Join(dir, SQLiteDatabase), reopened.Location())
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	s, err := New("", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = New(BackendSQLite, dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = New("redis", dir)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
