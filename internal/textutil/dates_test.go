package textutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDateWaterfall_SelectorText(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	got, ok := ExtractDateWaterfall("", "February 4, 2026 02:39 pm", "", "", "", now)
	require.True(t, ok)
	want := time.Date(2026, 2, 4, 14, 39, 0, 0, ColomboLocation)
	assert.True(t, got.Equal(want), "got %v want %v", got, want)
}

func TestExtractDateWaterfall_URLFallback(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	got, ok := ExtractDateWaterfall("", "", "https://example.com/2024/03/15/some-article", "", "", now)
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 15, got.Day())
}

func TestIsValidDate_Boundaries(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	old := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, isValidDate(old, now))

	tooFuture := now.Add(72 * time.Hour)
	assert.False(t, isValidDate(tooFuture, now))

	okFuture := now.Add(24 * time.Hour)
	assert.True(t, isValidDate(okFuture, now))
}

func TestExtractDateWaterfall_NoneValid(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	_, ok := ExtractDateWaterfall("", "", "", "", "", now)
	assert.False(t, ok)
}
