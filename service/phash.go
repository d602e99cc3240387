package service

import (
	"context"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/corona10/goimagehash"
	"github.com/rs/zerolog"
)

// hashFrames computes a perceptual hash per frame. A corrupt frame is
// skipped individually; it never aborts the job.
func hashFrames(ctx context.Context, framePaths []string) map[string]string {
	out := make(map[string]string, len(framePaths))
	for _, fp := range framePaths {
		h, err := hashFrame(fp)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("frame", filepath.Base(fp)).Msg("skipping frame hash")
			continue
		}
		out[filepath.Base(fp)] = h
	}
	return out
}

func hashFrame(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return "", err
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", err
	}
	return h.ToString(), nil
}
