package service

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 64, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

func TestHashFramesIdenticalImagesHashEqual(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "frame_00001.jpg")
	b := filepath.Join(dir, "frame_00002.jpg")
	writeTestJPEG(t, a)
	writeTestJPEG(t, b)

	hashes := hashFrames(context.Background(), []string{a, b})
	require.Len(t, hashes, 2)
	assert.Equal(t, hashes["frame_00001.jpg"], hashes["frame_00002.jpg"])
	assert.NotEmpty(t, hashes["frame_00001.jpg"])
}

func TestHashFramesSkipsCorruptFrame(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "frame_00001.jpg")
	bad := filepath.Join(dir, "frame_00002.jpg")
	writeTestJPEG(t, good)
	require.NoError(t, os.WriteFile(bad, []byte("not a jpeg"), 0o644))

	hashes := hashFrames(context.Background(), []string{good, bad})
	assert.Len(t, hashes, 1)
	assert.Contains(t, hashes, "frame_00001.jpg")
	assert.NotContains(t, hashes, "frame_00002.jpg")
}
