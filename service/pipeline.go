package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	"worker-preprocess/config"
	"worker-preprocess/dto"
	"worker-preprocess/entities"
	"worker-preprocess/pkg/objectstore"
)

// StageError reports which pipeline stage failed, so the worker can record
// the outcome without inspecting pipeline internals.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline transforms one job's source object into its artifact bundle.
type Pipeline interface {
	Run(ctx context.Context, job *entities.Job) (*dto.ArtifactBundle, error)
}

type pipeline struct {
	store objectstore.Store
	faces FaceDetector
	cfg   *config.Config
}

func NewPipeline(store objectstore.Store, faces FaceDetector, cfg *config.Config) Pipeline {
	return &pipeline{
		store: store,
		faces: faces,
		cfg:   cfg,
	}
}

// Run executes the fixed stage sequence: fetch, standardize, extract
// frames, extract audio, detect faces, hash frames, assemble metadata,
// publish artifacts. Stages 1-4 and 7-8 abort the job on failure; face
// detection degrades to an empty result and hashing skips corrupt frames.
func (p *pipeline) Run(ctx context.Context, job *entities.Job) (*dto.ArtifactBundle, error) {
	if job.SourceLocator == nil || *job.SourceLocator == "" {
		return nil, &StageError{Stage: "fetch", Err: errors.New("job has no source locator")}
	}
	sourceLocator := *job.SourceLocator

	// The workspace is wiped before use so manual reprocessing starts from
	// a clean slate.
	jobDir := filepath.Join(p.cfg.Pipeline.WorkDir, job.JobID)
	if err := os.RemoveAll(jobDir); err != nil {
		return nil, &StageError{Stage: "fetch", Err: err}
	}
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, &StageError{Stage: "fetch", Err: err}
	}
	defer os.RemoveAll(jobDir)

	srcPath := filepath.Join(jobDir, "input")
	stdPath := filepath.Join(jobDir, "standard.mp4")
	audioPath := filepath.Join(jobDir, "audio.wav")
	framesDir := filepath.Join(jobDir, "frames")
	metaPath := filepath.Join(jobDir, "metadata.json")

	zerolog.Ctx(ctx).Info().Str("job_id", job.JobID).Str("source", sourceLocator).Msg("downloading source object")
	if err := p.store.Fetch(ctx, sourceLocator, srcPath); err != nil {
		return nil, &StageError{Stage: "fetch", Err: err}
	}

	zerolog.Ctx(ctx).Info().Str("job_id", job.JobID).Msg("standardizing video")
	if err := standardizeVideo(ctx, srcPath, stdPath); err != nil {
		return nil, &StageError{Stage: "standardize", Err: err}
	}

	frames, err := extractFrames(ctx, stdPath, framesDir, p.cfg.Pipeline.FrameRate, p.cfg.Pipeline.MaxFrames)
	if err != nil {
		return nil, &StageError{Stage: "extract-frames", Err: err}
	}

	if err := extractAudio(ctx, stdPath, audioPath); err != nil {
		return nil, &StageError{Stage: "extract-audio", Err: err}
	}

	faces := p.detectFaces(ctx, frames)
	phashes := hashFrames(ctx, frames)

	metadata := dto.FrameMetadata{
		JobID:         job.JobID,
		SourceLocator: sourceLocator,
		Video: dto.VideoDescriptor{
			Standardized: "standard.mp4",
		},
		Audio: dto.AudioDescriptor{
			Path:       "audio.wav",
			SampleRate: audioSampleRate,
			Channels:   1,
		},
		Frames: dto.FrameDescriptor{
			Count: len(frames),
			Size:  [2]int{frameSize, frameSize},
			FPS:   p.cfg.Pipeline.FrameRate,
		},
		Faces: faces,
		PHash: phashes,
	}
	if err := writeJSON(metaPath, metadata); err != nil {
		return nil, &StageError{Stage: "assemble-metadata", Err: err}
	}

	bundle, err := p.publishArtifacts(ctx, job.JobID, stdPath, audioPath, frames, metaPath)
	if err != nil {
		return nil, &StageError{Stage: "publish-artifacts", Err: err}
	}
	return bundle, nil
}

// detectFaces runs the detector over at most the configured number of the
// earliest frames. Unavailable detector or a failing frame degrades to an
// empty entry; face data enriches but never gates preprocessing.
func (p *pipeline) detectFaces(ctx context.Context, frames []string) map[string][]dto.FaceDetection {
	results := make(map[string][]dto.FaceDetection)
	if !p.faces.Available() || len(frames) == 0 {
		return results
	}
	sample := frames
	if len(sample) > p.cfg.Pipeline.FaceDetectSample {
		sample = sample[:p.cfg.Pipeline.FaceDetectSample]
	}
	for _, fp := range sample {
		dets, err := p.faces.DetectFile(fp)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("frame", filepath.Base(fp)).Msg("skipping face detection for frame")
			continue
		}
		if dets == nil {
			dets = []dto.FaceDetection{}
		}
		results[filepath.Base(fp)] = dets
	}
	return results
}

func (p *pipeline) publishArtifacts(ctx context.Context, jobID, videoPath, audioPath string, framePaths []string, metaPath string) (*dto.ArtifactBundle, error) {
	bucket := p.cfg.MinIOBucket
	prefix := path.Join(p.cfg.MinIOPrefix, jobID)

	videoLoc, err := p.store.PutFile(ctx, videoPath, bucket, path.Join(prefix, "video", "standard.mp4"), "video/mp4")
	if err != nil {
		return nil, err
	}
	audioLoc, err := p.store.PutFile(ctx, audioPath, bucket, path.Join(prefix, "audio", "audio.wav"), "audio/wav")
	if err != nil {
		return nil, err
	}

	frameLocs := make([]string, 0, len(framePaths))
	for _, fp := range framePaths {
		loc, err := p.store.PutFile(ctx, fp, bucket, path.Join(prefix, "frames", filepath.Base(fp)), "image/jpeg")
		if err != nil {
			return nil, err
		}
		frameLocs = append(frameLocs, loc)
	}

	metaLoc, err := p.store.PutFile(ctx, metaPath, bucket, path.Join(prefix, "metadata", "metadata.json"), "application/json")
	if err != nil {
		return nil, err
	}

	return &dto.ArtifactBundle{
		Video:    videoLoc,
		Audio:    audioLoc,
		Frames:   frameLocs,
		Metadata: metaLoc,
	}, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
