package inspect

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func fixedClock() time.Time {
	return time.Date(2024, 6, 21, 12, 30, 0, 0, time.UTC)
}

func listPNG(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	return matches
}

func TestNewDirSink_EmptyDir(t *testing.T) {
	_, err := NewDirSink("", false)
	assert.Error(t, err)
}

func TestDirSink_SaveAnnotatedOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, false)
	require.NoError(t, err)
	s.now = fixedClock

	require.NoError(t, s.Save(frame(color.RGBA{A: 255}), frame(color.RGBA{R: 255, B: 255, A: 255})))
	require.NoError(t, s.Save(frame(color.RGBA{A: 255}), frame(color.RGBA{R: 255, B: 255, A: 255})))

	files := listPNG(t, filepath.Join(dir, "cv"))
	assert.Equal(t, []string{
		filepath.Join(dir, "cv", "2024-06-21_12-30-00_0001.png"),
		filepath.Join(dir, "cv", "2024-06-21_12-30-00_0002.png"),
	}, files)
	_, err = os.Stat(filepath.Join(dir, "view"))
	assert.True(t, os.IsNotExist(err), "raw directory should not exist")
}

func TestDirSink_SaveRawAndColours(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, true)
	require.NoError(t, err)
	s.now = fixedClock

	raw := color.RGBA{R: 10, G: 20, B: 200, A: 255}
	view := color.RGBA{R: 255, G: 0, B: 128, A: 255}
	require.NoError(t, s.Save(frame(raw), frame(view)))

	for sub, want := range map[string]color.RGBA{"view": raw, "cv": view} {
		files := listPNG(t, filepath.Join(dir, sub))
		require.Len(t, files, 1, sub)

		f, err := os.Open(files[0])
		require.NoError(t, err)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)

		r, g, b, _ := img.At(3, 3).RGBA()
		got := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
		assert.Equal(t, want, got, "channel order in %s", sub)
		assert.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	}
}

func TestDirSink_NilViewSkipped(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirSink(dir, false)
	require.NoError(t, err)

	require.NoError(t, s.Save(frame(color.RGBA{A: 255}), nil))
	assert.Empty(t, listPNG(t, filepath.Join(dir, "cv")))
}
