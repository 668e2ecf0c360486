package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"faqbot/internal/auth"
	"faqbot/internal/config"
	"faqbot/internal/faq"
	"faqbot/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "faq.json")
	require.NoError(t, os.WriteFile(corpusPath, []byte(`[
		{"question": "apa itu malakatech", "answer": "A1"},
		{"question": "layanan apa saja", "answer": "A2"}
	]`), 0644))

	cfg := config.Default()
	cfg.CorpusPath = corpusPath
	cfg.ArtifactDir = filepath.Join(dir, "artifacts")
	cfg.ReloadToken = ""
	return cfg
}

func TestNewAppAnswers(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(testConfig(t), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	_, err = a.manager.EnsureReady(ctx)
	require.NoError(t, err)

	resp, err := a.service.Answer(ctx, "layanan apa saja")
	require.NoError(t, err)
	assert.Equal(t, faq.KindMatched, resp.Kind)
	assert.Equal(t, "A2", resp.Answer)
	assert.False(t, a.verifier.Enabled())
	assert.FileExists(t, filepath.Join(a.cfg.ArtifactDir, "corpus_cache.json"))
}

func TestNewAppRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "redis"
	_, err := newApp(cfg, logging.Discard())
	assert.Error(t, err)
}

func TestRequestReload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.UserAgent(), "faqbot/"))
		if r.Header.Get(auth.AdminTokenHeader) != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_token", "message": "Token tidak valid."})
			return
		}
		json.NewEncoder(w).Encode(faq.ReloadResult{Status: "ok", Items: 2, BuildID: "abc"})
	}))
	defer srv.Close()

	body, err := requestReload(context.Background(), srv.Client(), srv.URL, "s3cret")
	require.NoError(t, err)
	var result faq.ReloadResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 2, result.Items)

	_, err = requestReload(context.Background(), srv.Client(), srv.URL, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestHashTokenCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"hash-token", "s3cret"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())

	hash := strings.TrimSpace(out.String())
	v := auth.NewVerifier("", hash)
	assert.True(t, v.Enabled())
	assert.NoError(t, v.Verify("s3cret"))
	assert.Error(t, v.Verify("other"))
}
