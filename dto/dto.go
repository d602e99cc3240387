package dto

import "github.com/go-playground/validator/v10"

// SubmissionMessage is the payload on the video.submitted topic, keyed by
// job id. Messages missing either field are discarded, never retried.
type SubmissionMessage struct {
	JobID         string `json:"job_id" validate:"required"`
	SourceLocator string `json:"source_locator" validate:"required"`
}

// CompletionMessage is the payload on the video.preprocessed topic.
type CompletionMessage struct {
	JobID     string         `json:"job_id"`
	Artifacts ArtifactBundle `json:"artifacts"`
}

// ArtifactBundle holds the output locators of a successful pipeline run.
// Immutable once published.
type ArtifactBundle struct {
	Video    string   `json:"video"`
	Audio    string   `json:"audio"`
	Frames   []string `json:"frames"`
	Metadata string   `json:"metadata"`
}

// FaceDetection is one detected face on a frame. Keypoints are optional and
// empty when the detector does not produce landmarks.
type FaceDetection struct {
	Box       []float64   `json:"bbox"`
	Keypoints [][]float64 `json:"kps"`
	Score     float64     `json:"det_score"`
}

type VideoDescriptor struct {
	Standardized string `json:"standardized"`
}

type AudioDescriptor struct {
	Path       string `json:"path"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type FrameDescriptor struct {
	Count int     `json:"count"`
	Size  [2]int  `json:"size"`
	FPS   float64 `json:"fps"`
}

// FrameMetadata is the per-job metadata document uploaded alongside the
// artifact bundle. Never mutated after upload.
type FrameMetadata struct {
	JobID         string                     `json:"job_id"`
	SourceLocator string                     `json:"source_locator"`
	Video         VideoDescriptor            `json:"video"`
	Audio         AudioDescriptor            `json:"audio"`
	Frames        FrameDescriptor            `json:"frames"`
	Faces         map[string][]FaceDetection `json:"faces"`
	PHash         map[string]string          `json:"phash"`
}

var validate = validator.New()

// Validate rejects a submission that does not carry both a job identifier
// and a source locator.
func (m SubmissionMessage) Validate() error {
	return validate.Struct(m)
}
