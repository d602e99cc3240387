package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"worker-preprocess/constant"
	"worker-preprocess/dto"
	"worker-preprocess/entities"
)

// ErrInvalidTransition is returned when a requested status change does not
// correspond to an edge of the job state machine. Transitions attempted on a
// terminal row are not errors: the row is returned unchanged.
var ErrInvalidTransition = errors.New("invalid job transition")

// TransitionFields carries the side data written together with a status
// change. Artifacts is required for preprocessed, ErrorMessage for failed.
type TransitionFields struct {
	ErrorMessage string
	Artifacts    *dto.ArtifactBundle
}

// JobLedger is the durable record of job identity and lifecycle. Transition
// is the sole mutation entry point after creation.
type JobLedger interface {
	GetDB() *gorm.DB
	Create(ctx context.Context, job *entities.Job) error
	FindByJobID(ctx context.Context, jobID string) (*entities.Job, error)
	FindOrCreate(ctx context.Context, jobID, sourceLocator string) (*entities.Job, error)
	Transition(ctx context.Context, jobID string, next constant.JobStatus, fields TransitionFields) (*entities.Job, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) JobLedger {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

// NewRepoFromGorm wraps an already opened gorm handle. Used by tests to run
// the ledger against an in-memory database.
func NewRepoFromGorm(db *gorm.DB) JobLedger {
	return &repo{db: db}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Create(ctx context.Context, job *entities.Job) error {
	if job.Status == "" {
		job.Status = constant.JobStatusSubmitted
	}
	return r.GetDB().WithContext(ctx).Create(job).Error
}

func (r *repo) FindByJobID(ctx context.Context, jobID string) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.GetDB().WithContext(ctx).First(job, "job_id = ?", jobID).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FindOrCreate returns the row for jobID, synthesizing a minimal placeholder
// in submitted state when none exists. A placeholder means the submission
// event became visible before the intake commit, or the message was injected
// from outside.
func (r *repo) FindOrCreate(ctx context.Context, jobID, sourceLocator string) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.GetDB().WithContext(ctx).
		Where(entities.Job{JobID: jobID}).
		Attrs(entities.Job{Status: constant.JobStatusSubmitted, SourceLocator: &sourceLocator}).
		FirstOrCreate(job).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

// edges maps a target status to the statuses it may be entered from.
var edges = map[constant.JobStatus][]constant.JobStatus{
	constant.JobStatusPreprocessing: {constant.JobStatusSubmitted},
	constant.JobStatusPreprocessed:  {constant.JobStatusPreprocessing},
	constant.JobStatusFailed:        {constant.JobStatusPreprocessing},
}

// Transition atomically applies a state-machine edge. The update is guarded
// by the set of permitted predecessor statuses, so a row already in a
// terminal state is returned unchanged (idempotent no-op under duplicate or
// out-of-order delivery) and an illegal edge fails with
// ErrInvalidTransition. Invariants enforced here: artifacts_json is set iff
// preprocessed, error_message is set iff failed (truncated to
// constant.MaxErrorMessageLen), updated_at refreshed on every applied
// transition.
func (r *repo) Transition(ctx context.Context, jobID string, next constant.JobStatus, fields TransitionFields) (*entities.Job, error) {
	from, ok := edges[next]
	if !ok {
		return nil, fmt.Errorf("%w: no edge enters %s", ErrInvalidTransition, next)
	}

	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now().UTC(),
	}
	switch next {
	case constant.JobStatusPreprocessed:
		if fields.Artifacts == nil {
			return nil, fmt.Errorf("%w: preprocessed requires artifacts", ErrInvalidTransition)
		}
		raw, err := json.Marshal(fields.Artifacts)
		if err != nil {
			return nil, err
		}
		updates["artifacts_json"] = string(raw)
		updates["error_message"] = nil
	case constant.JobStatusFailed:
		updates["error_message"] = truncate(fields.ErrorMessage, constant.MaxErrorMessageLen)
		updates["artifacts_json"] = nil
	}

	out := &entities.Job{}
	err := r.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.Job{}).
			Where("job_id = ? AND status IN ?", jobID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(out, "job_id = ?", jobID).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			if out.Status.Terminal() {
				return nil
			}
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, out.Status, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
