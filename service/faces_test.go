package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"worker-preprocess/config"
)

func TestFaceDetectorUnavailableWithoutCascade(t *testing.T) {
	ctx := context.Background()

	assert.False(t, NewFaceDetector(ctx, "").Available())
	assert.False(t, NewFaceDetector(ctx, filepath.Join(t.TempDir(), "missing")).Available())
}

func TestDetectFacesDegradesToEmptyResult(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "frame_00001.jpg")
	writeTestJPEG(t, frame)

	p := &pipeline{
		faces: unavailableDetector{},
		cfg: &config.Config{
			Pipeline: config.Pipeline{FaceDetectSample: 30},
		},
	}

	faces := p.detectFaces(context.Background(), []string{frame})
	assert.NotNil(t, faces)
	assert.Empty(t, faces)
}
