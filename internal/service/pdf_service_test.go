package service

import (
	"errors"
	"path/filepath"
	"testing"

	"solo_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageMarkerFormat(t *testing.T) {
	assert.Equal(t, "--- Page 1 ---", PageMarker(1))
	assert.Equal(t, "--- Page 42 ---", PageMarker(42))
}

func TestStripPageMarkers(t *testing.T) {
	text := PageMarker(1) + "\nhello\n" + PageMarker(2) + "\nworld\n"
	got := stripPageMarkers(text)
	assert.NotContains(t, got, "--- Page")
	assert.Contains(t, got, "hello")
	assert.Contains(t, got, "world")
}

func TestExtractTextMissingFile(t *testing.T) {
	svc := NewPDFService()
	_, err := svc.ExtractText(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrPDFExtractionFailed))
}
