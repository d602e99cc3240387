package service

import (
	"context"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/rs/zerolog"

	"worker-preprocess/dto"
)

// minDetectionQuality filters low-confidence cascade hits.
const minDetectionQuality = 5.0

// FaceDetector is a capability-checked dependency: availability is decided
// once at startup, and the pipeline branches on it instead of failing jobs
// when the detector cannot be loaded.
type FaceDetector interface {
	Available() bool
	DetectFile(path string) ([]dto.FaceDetection, error)
}

type pigoDetector struct {
	classifier *pigo.Pigo
}

type unavailableDetector struct{}

func (unavailableDetector) Available() bool { return false }

func (unavailableDetector) DetectFile(string) ([]dto.FaceDetection, error) { return nil, nil }

// NewFaceDetector loads the cascade at cascadePath. A missing or unreadable
// cascade yields an unavailable detector rather than an error: face data is
// best-effort and must not block preprocessing.
func NewFaceDetector(ctx context.Context, cascadePath string) FaceDetector {
	if cascadePath == "" {
		zerolog.Ctx(ctx).Warn().Msg("no face cascade configured, face detection disabled")
		return unavailableDetector{}
	}
	data, err := os.ReadFile(cascadePath)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("cascade", cascadePath).Msg("failed to read face cascade, face detection disabled")
		return unavailableDetector{}
	}
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("cascade", cascadePath).Msg("failed to unpack face cascade, face detection disabled")
		return unavailableDetector{}
	}
	zerolog.Ctx(ctx).Info().Str("cascade", cascadePath).Msg("face detector loaded")
	return &pigoDetector{classifier: classifier}
}

func (d *pigoDetector) Available() bool { return true }

func (d *pigoDetector) DetectFile(path string) ([]dto.FaceDetection, error) {
	src, err := pigo.GetImage(path)
	if err != nil {
		return nil, err
	}

	pixels := pigo.RgbToGrayscale(src)
	cols := src.Bounds().Dx()
	rows := src.Bounds().Dy()

	params := pigo.CascadeParams{
		MinSize:     20,
		MaxSize:     rows,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	out := make([]dto.FaceDetection, 0, len(dets))
	for _, det := range dets {
		if det.Q < minDetectionQuality {
			continue
		}
		half := float64(det.Scale) / 2
		out = append(out, dto.FaceDetection{
			Box: []float64{
				float64(det.Col) - half,
				float64(det.Row) - half,
				float64(det.Col) + half,
				float64(det.Row) + half,
			},
			Keypoints: [][]float64{},
			Score:     float64(det.Q),
		})
	}
	return out, nil
}
