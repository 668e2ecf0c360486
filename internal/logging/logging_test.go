package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: FormatJSON, Prefix: "index", Output: &buf})
	require.NoError(t, err)

	logger.Debug("index published", "items", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "index published", entry["msg"])
	assert.Equal(t, "index", entry["prefix"])
	assert.EqualValues(t, 2, entry["items"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "WARN", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	parent, err := New(Options{Format: FormatLogfmt, Output: &buf})
	require.NoError(t, err)

	Component(parent, "store").Info("saved")
	assert.Contains(t, buf.String(), "prefix=store")
	assert.NotNil(t, Component(nil, "x"))

	Discard().Error("nothing")
}
