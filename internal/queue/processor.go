package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mahirjain10/go-assets/internal/fetch"
	"github.com/mahirjain10/go-assets/internal/observability"
	queueErrors "github.com/mahirjain10/go-assets/internal/queue/errors"
	"github.com/mahirjain10/go-assets/internal/queue/handlers"
	"github.com/mahirjain10/go-assets/internal/queue/models"
	"github.com/mahirjain10/go-assets/internal/types"
	"github.com/mahirjain10/go-assets/internal/utils"
)

// Publisher delivers status messages.
type Publisher interface {
	PublishStatus(ctx context.Context, msg *types.StatusMessage) error
}

// Processor handles one job message body at a time. It is safe for
// concurrent use by several workers.
type Processor struct {
	handler   *handlers.ThumbnailHandler
	publisher Publisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewProcessor(handler *handlers.ThumbnailHandler, publisher Publisher, metrics *observability.Metrics, logger zerolog.Logger) *Processor {
	return &Processor{handler: handler, publisher: publisher, metrics: metrics, logger: logger}
}

// Process runs the job in body. A returned models.ProcessingError says
// whether the delivery should be requeued; any other error comes from the
// status publisher.
func (p *Processor) Process(ctx context.Context, body []byte) error {
	var msg types.JobMessage
	if err := utils.ParseJSON(body, &msg); err != nil {
		p.metrics.RecordJob("unknown", "rejected")
		return models.Reject(fmt.Errorf("failed to parse message: %w", err))
	}

	var err error
	switch msg.Pattern {
	case types.PatternCreateThumbnail:
		err = p.createThumbnail(ctx, msg.Data)
	case types.PatternRemoveAsset:
		err = p.removeAsset(ctx, msg.Data)
	default:
		err = models.Reject(fmt.Errorf("unsupported pattern: %q", msg.Pattern))
	}

	switch {
	case err == nil:
		p.metrics.RecordJob(msg.Pattern, "success")
	case models.ShouldRequeue(err):
		p.metrics.RecordJob(msg.Pattern, "requeued")
	default:
		p.metrics.RecordJob(msg.Pattern, "failed")
	}
	return err
}

func (p *Processor) createThumbnail(ctx context.Context, data []byte) error {
	var job types.CreateThumbnail
	if err := utils.ParseJSON(data, &job); err != nil {
		return models.Reject(fmt.Errorf("failed to parse thumbnail job: %w", err))
	}
	logger := p.logger.With().Str("job_id", job.Id).Str("user_id", job.UserId).Logger()

	if err := p.publish(ctx, utils.InitStatusData(job.Id, job.UserId, types.PROCESSING, "", "", "")); err != nil {
		return err
	}

	name, publicUrl, err := p.handler.CreateThumbnail(ctx, job)
	if err != nil {
		logger.Error().Err(err).Msg("thumbnail job failed")
		if pubErr := p.publish(ctx, utils.InitStatusData(job.Id, job.UserId, types.FAILED, "", "", message(err))); pubErr != nil {
			return pubErr
		}
		return classify(err)
	}

	logger.Info().Str("file", name).Msg("thumbnail job processed")
	return p.publish(ctx, utils.InitStatusData(job.Id, job.UserId, types.PROCESSED, name, publicUrl, ""))
}

func (p *Processor) removeAsset(ctx context.Context, data []byte) error {
	var job types.RemoveAsset
	if err := utils.ParseJSON(data, &job); err != nil {
		return models.Reject(fmt.Errorf("failed to parse remove job: %w", err))
	}
	logger := p.logger.With().Str("job_id", job.Id).Str("file", job.Filename).Logger()

	if err := p.handler.RemoveAsset(ctx, job); err != nil {
		logger.Error().Err(err).Msg("remove job failed")
		if pubErr := p.publish(ctx, utils.InitStatusData(job.Id, job.UserId, types.FAILED, job.Filename, "", message(err))); pubErr != nil {
			return pubErr
		}
		return classify(err)
	}

	logger.Info().Msg("asset removed")
	return p.publish(ctx, utils.InitStatusData(job.Id, job.UserId, types.REMOVED, job.Filename, "", ""))
}

// publish sends a status update. Only broker failures that need a new
// channel are returned; anything else is logged.
func (p *Processor) publish(ctx context.Context, data *types.StatusData) error {
	if err := p.publisher.PublishStatus(ctx, utils.InitStatusMessage(data)); err != nil {
		if IsFatalError(err) {
			return fmt.Errorf("fatal: cannot publish %s status: %w", data.Status, err)
		}
		p.logger.Warn().Err(err).Str("status", data.Status).Msg("failed to publish status")
	}
	return nil
}

func message(err error) string {
	switch {
	case errors.Is(err, handlers.ErrNoImage):
		return queueErrors.ErrNoImage
	case errors.Is(err, handlers.ErrUpload):
		return queueErrors.ErrUpload
	}
	return queueErrors.Message(err)
}

func classify(err error) error {
	if fetch.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.Retry(err)
	}
	return models.Reject(err)
}
