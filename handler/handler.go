package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"worker-preprocess/dto"
	"worker-preprocess/service"
)

type ServiceDependencies struct {
	PreprocessService service.Service
}

// SubmissionHandler decodes and validates one delivery from the
// video.submitted topic. Malformed payloads are discarded with a log line
// and never retried; the ledger is untouched.
func SubmissionHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var submission dto.SubmissionMessage
	if err := json.Unmarshal(msg.Body, &submission); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("discarding malformed submission message")
		return nil
	}
	if err := submission.Validate(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("job_id", submission.JobID).Msg("discarding submission message with missing fields")
		return nil
	}

	return deps.PreprocessService.Process(ctx, submission)
}
