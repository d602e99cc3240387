package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"worker-preprocess/constant"
	"worker-preprocess/dto"
	"worker-preprocess/entities"
)

func newTestLedger(t *testing.T) JobLedger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Job{}))
	return NewRepoFromGorm(db)
}

func submittedJob(t *testing.T, ledger JobLedger, jobID string) *entities.Job {
	t.Helper()
	src := "store://ingest/raw/" + jobID + "/input.mp4"
	job := &entities.Job{
		JobID:         jobID,
		Status:        constant.JobStatusSubmitted,
		SourceLocator: &src,
	}
	require.NoError(t, ledger.Create(context.Background(), job))
	return job
}

func TestCreateAndFind(t *testing.T) {
	ledger := newTestLedger(t)
	submittedJob(t, ledger, "j1")

	job, err := ledger.FindByJobID(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", job.JobID)
	assert.Equal(t, constant.JobStatusSubmitted, job.Status)
	assert.Nil(t, job.ErrorMessage)
	assert.Nil(t, job.ArtifactsJSON)
}

func TestFindMissingJob(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.FindByJobID(context.Background(), "nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindOrCreateSynthesizesPlaceholder(t *testing.T) {
	ledger := newTestLedger(t)

	job, err := ledger.FindOrCreate(context.Background(), "ghost", "store://ingest/raw/ghost/input.mp4")
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusSubmitted, job.Status)
	require.NotNil(t, job.SourceLocator)
	assert.Equal(t, "store://ingest/raw/ghost/input.mp4", *job.SourceLocator)

	again, err := ledger.FindOrCreate(context.Background(), "ghost", "store://ingest/raw/ghost/other.mp4")
	require.NoError(t, err)
	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, "store://ingest/raw/ghost/input.mp4", *again.SourceLocator)
}

func TestSuccessPathTransitions(t *testing.T) {
	ledger := newTestLedger(t)
	submittedJob(t, ledger, "j1")
	ctx := context.Background()

	job, err := ledger.Transition(ctx, "j1", constant.JobStatusPreprocessing, TransitionFields{})
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusPreprocessing, job.Status)

	bundle := &dto.ArtifactBundle{
		Video:    "store://artifacts/preprocessed/j1/video/standard.mp4",
		Audio:    "store://artifacts/preprocessed/j1/audio/audio.wav",
		Frames:   []string{"store://artifacts/preprocessed/j1/frames/frame_00001.jpg"},
		Metadata: "store://artifacts/preprocessed/j1/metadata/metadata.json",
	}
	job, err = ledger.Transition(ctx, "j1", constant.JobStatusPreprocessed, TransitionFields{Artifacts: bundle})
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusPreprocessed, job.Status)
	require.NotNil(t, job.ArtifactsJSON)
	assert.Contains(t, *job.ArtifactsJSON, "standard.mp4")
	assert.Nil(t, job.ErrorMessage)
}

func TestFailurePathTransitions(t *testing.T) {
	ledger := newTestLedger(t)
	submittedJob(t, ledger, "j2")
	ctx := context.Background()

	_, err := ledger.Transition(ctx, "j2", constant.JobStatusPreprocessing, TransitionFields{})
	require.NoError(t, err)

	job, err := ledger.Transition(ctx, "j2", constant.JobStatusFailed, TransitionFields{ErrorMessage: "stage fetch: object not found"})
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "stage fetch: object not found", *job.ErrorMessage)
	assert.Nil(t, job.ArtifactsJSON)
}

func TestErrorMessageTruncated(t *testing.T) {
	ledger := newTestLedger(t)
	submittedJob(t, ledger, "j3")
	ctx := context.Background()

	_, err := ledger.Transition(ctx, "j3", constant.JobStatusPreprocessing, TransitionFields{})
	require.NoError(t, err)

	long := strings.Repeat("x", constant.MaxErrorMessageLen+500)
	job, err := ledger.Transition(ctx, "j3", constant.JobStatusFailed, TransitionFields{ErrorMessage: long})
	require.NoError(t, err)
	require.NotNil(t, job.ErrorMessage)
	assert.Len(t, *job.ErrorMessage, constant.MaxErrorMessageLen)
}

func TestTerminalStateIsIdempotentNoOp(t *testing.T) {
	ledger := newTestLedger(t)
	submittedJob(t, ledger, "j4")
	ctx := context.Background()

	_, err := ledger.Transition(ctx, "j4", constant.JobStatusPreprocessing, TransitionFields{})
	require.NoError(t, err)
	failed, err := ledger.Transition(ctx, "j4", constant.JobStatusFailed, TransitionFields{ErrorMessage: "boom"})
	require.NoError(t, err)

	// Redelivery must not move the job out of its terminal state or touch
	// its fields.
	again, err := ledger.Transition(ctx, "j4", constant.JobStatusPreprocessing, TransitionFields{})
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFailed, again.Status)
	assert.Equal(t, *failed.ErrorMessage, *again.ErrorMessage)
	assert.Equal(t, failed.UpdatedAt, again.UpdatedAt)

	bundle := &dto.ArtifactBundle{Video: "store://a/b", Audio: "store://a/c", Metadata: "store://a/d"}
	still, err := ledger.Transition(ctx, "j4", constant.JobStatusPreprocessed, TransitionFields{Artifacts: bundle})
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusFailed, still.Status)
	assert.Nil(t, still.ArtifactsJSON)
}

func TestInvalidEdgesRejected(t *testing.T) {
	ledger := newTestLedger(t)
	submittedJob(t, ledger, "j5")
	ctx := context.Background()

	bundle := &dto.ArtifactBundle{Video: "store://a/b", Audio: "store://a/c", Metadata: "store://a/d"}
	_, err := ledger.Transition(ctx, "j5", constant.JobStatusPreprocessed, TransitionFields{Artifacts: bundle})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = ledger.Transition(ctx, "j5", constant.JobStatusSubmitted, TransitionFields{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = ledger.Transition(ctx, "j5", constant.JobStatusFailed, TransitionFields{ErrorMessage: "nope"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPreprocessedRequiresArtifacts(t *testing.T) {
	ledger := newTestLedger(t)
	submittedJob(t, ledger, "j6")
	ctx := context.Background()

	_, err := ledger.Transition(ctx, "j6", constant.JobStatusPreprocessing, TransitionFields{})
	require.NoError(t, err)

	_, err = ledger.Transition(ctx, "j6", constant.JobStatusPreprocessed, TransitionFields{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionMissingRow(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Transition(context.Background(), "absent", constant.JobStatusPreprocessing, TransitionFields{})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
