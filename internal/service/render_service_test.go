package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldvue/dispatch-api/internal/models"
)

func TestLoadRenderThemeDefaults(t *testing.T) {
	theme, err := LoadRenderTheme("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRenderTheme(), theme)
}

func TestLoadRenderThemeOverridesPartially(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theme.yaml")
	require.NoError(t, os.WriteFile(path, []byte("background: \"#000000\"\nfont_size: 14\n"), 0o644))

	theme, err := LoadRenderTheme(path)
	require.NoError(t, err)
	assert.Equal(t, "#000000", theme.Background)
	assert.Equal(t, 14, theme.FontSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultRenderTheme().CardFill, theme.CardFill)
}

func TestLoadRenderThemeMissingFile(t *testing.T) {
	_, err := LoadRenderTheme(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestBoardSVG(t *testing.T) {
	scheduled := []models.Appointment{
		apptAt("visit-1", "r1", layoutDay, 9, 0, 10, 0),
		apptAt("visit-2", "r2", layoutDay, 13, 0, 14, 0),
	}
	evil := apptAt("visit-3", "r1", layoutDay, 11, 0, 12, 0)
	evil.Title = `<script>alert("x")</script>`
	scheduled = append(scheduled, evil)

	board, buffer, _ := newTestBoard(layoutDay, scheduled, nil, []models.Resource{
		resource("r1", "Alice & Co"),
		resource("r2", "Bram"),
	})
	require.NoError(t, board.Refresh(context.Background()))

	svc := NewRenderService(board, buffer, DefaultRenderTheme(), nil)
	raw, err := svc.BoardSVG(context.Background())
	require.NoError(t, err)

	doc := string(raw)
	assert.Contains(t, doc, `<svg xmlns="http://www.w3.org/2000/svg"`)
	assert.Contains(t, doc, "Alice &amp; Co")
	assert.Contains(t, doc, "Bram")
	assert.Contains(t, doc, "visit-1")
	// Labels are escaped, never emitted raw.
	assert.NotContains(t, doc, "<script>")
	assert.Contains(t, doc, "&lt;script&gt;")
}
