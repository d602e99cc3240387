package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"worker-preprocess/constant"
	"worker-preprocess/dto"
	"worker-preprocess/pkg/rabbitmq"
	"worker-preprocess/repository"
)

type Service interface {
	Process(ctx context.Context, message dto.SubmissionMessage) error
}

type service struct {
	repo              repository.JobLedger
	pipeline          Pipeline
	publisher         rabbitmq.Publisher
	topicPreprocessed string
}

func NewService(repo repository.JobLedger, pipeline Pipeline, publisher rabbitmq.Publisher, topicPreprocessed string) Service {
	return &service{
		repo:              repo,
		pipeline:          pipeline,
		publisher:         publisher,
		topicPreprocessed: topicPreprocessed,
	}
}

// Process drives one submission message through the transformation
// pipeline. Duplicate deliveries of a terminal job are skipped without
// redoing work; a pipeline failure marks the job failed and is not
// requeued. The ledger transition to a terminal state always precedes the
// completion-event publish, so a racing redelivery can never observe a
// completion the ledger does not show.
func (s *service) Process(ctx context.Context, message dto.SubmissionMessage) error {
	logger := zerolog.Ctx(ctx).With().Str("job_id", message.JobID).Logger()
	logger.Info().Str("source", message.SourceLocator).Msg("processing job")

	job, err := s.repo.FindOrCreate(ctx, message.JobID, message.SourceLocator)
	if err != nil {
		logger.Error().Err(err).Msg("ledger unreachable, giving up on this delivery")
		return err
	}
	if job.Status == constant.JobStatusSubmitted && job.SourceLocator != nil && *job.SourceLocator != message.SourceLocator {
		logger.Warn().Str("ledger_source", *job.SourceLocator).Msg("message source locator differs from ledger row")
	}

	if job.Status.Terminal() {
		logger.Info().Str("status", job.Status.String()).Msg("job already terminal, skipping")
		return nil
	}

	// A row already in preprocessing is a redelivery of an interrupted
	// attempt; resume by running the pipeline again.
	if job.Status == constant.JobStatusSubmitted {
		if _, err := s.repo.Transition(ctx, message.JobID, constant.JobStatusPreprocessing, repository.TransitionFields{}); err != nil {
			logger.Error().Err(err).Msg("failed to enter preprocessing")
			return err
		}
	}

	bundle, runErr := s.pipeline.Run(ctx, job)
	if runErr != nil {
		var stageErr *StageError
		if errors.As(runErr, &stageErr) {
			logger.Error().Err(stageErr.Err).Str("stage", stageErr.Stage).Msg("pipeline stage failed")
		} else {
			logger.Error().Err(runErr).Msg("pipeline failed")
		}
		if _, err := s.repo.Transition(ctx, message.JobID, constant.JobStatusFailed, repository.TransitionFields{ErrorMessage: runErr.Error()}); err != nil {
			logger.Error().Err(err).Msg("failed to mark job failed")
		}
		// The failure is recorded in the ledger; the delivery is done.
		return nil
	}

	updated, err := s.repo.Transition(ctx, message.JobID, constant.JobStatusPreprocessed, repository.TransitionFields{Artifacts: bundle})
	if err != nil {
		logger.Error().Err(err).Msg("failed to mark job preprocessed")
		return err
	}
	if updated.Status != constant.JobStatusPreprocessed {
		// Raced against another attempt that already finished; do not
		// publish a second completion event.
		logger.Info().Str("status", updated.Status.String()).Msg("job finished elsewhere, skipping completion event")
		return nil
	}

	completion := dto.CompletionMessage{
		JobID:     message.JobID,
		Artifacts: *bundle,
	}
	if err := s.publisher.Publish(ctx, s.topicPreprocessed, message.JobID, completion); err != nil {
		logger.Error().Err(err).Msg("failed to publish completion event")
		return err
	}

	logger.Info().Msg("job preprocessed")
	return nil
}
