package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/mahirjain10/go-assets/config"
	"github.com/mahirjain10/go-assets/internal/observability"
	"github.com/mahirjain10/go-assets/internal/queue/handlers"
	"github.com/mahirjain10/go-assets/internal/queue/models"
	"github.com/mahirjain10/go-assets/internal/types"
	"github.com/mahirjain10/go-assets/internal/utils"
)

const (
	publishTimeout = 5 * time.Second
	reconnectDelay = 5 * time.Second
)

// RabbitMqService consumes job queues and publishes status updates.
type RabbitMqService struct {
	config    *config.Config
	processor *Processor
	logger    zerolog.Logger

	mu                 sync.Mutex
	rabbitMqConn       *amqp.Connection
	statusQueueChannel *amqp.Channel
}

func NewRabbitMqService(rabbitMqConn *amqp.Connection, cfg *config.Config, handler *handlers.ThumbnailHandler, metrics *observability.Metrics, logger zerolog.Logger) *RabbitMqService {
	service := &RabbitMqService{
		config:       cfg,
		rabbitMqConn: rabbitMqConn,
		logger:       logger,
	}
	service.processor = NewProcessor(handler, service, metrics, logger)
	return service
}

// PublishStatus implements Publisher on the status exchange.
func (service *RabbitMqService) PublishStatus(ctx context.Context, message *types.StatusMessage) error {
	service.mu.Lock()
	ch := service.statusQueueChannel
	service.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("statusQueueChannel is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	body, err := utils.SerializeJSON(message)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	err = ch.PublishWithContext(ctx, statusExchange, statusRoutingKey, true, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	service.logger.Debug().Str("status", message.Data.Status).Str("job_id", message.Data.ID).Msg("pushed to status queue")
	return nil
}

// connection returns a live connection, dialing a new one if the current
// one has closed.
func (service *RabbitMqService) connection() (*amqp.Connection, error) {
	service.mu.Lock()
	defer service.mu.Unlock()
	if service.rabbitMqConn != nil && !service.rabbitMqConn.IsClosed() {
		return service.rabbitMqConn, nil
	}
	conn, err := NewRabbitMQClient(service.config.RabbitMqURL)
	if err != nil {
		return nil, err
	}
	service.rabbitMqConn = conn
	return conn, nil
}

func (service *RabbitMqService) openStatusChannel() error {
	conn, err := service.connection()
	if err != nil {
		return err
	}
	ch, err := NewChannel(conn)
	if err != nil {
		return err
	}
	if _, err := NewQueue(ch, statusQueue); err != nil {
		ch.Close()
		return err
	}
	if err := declareStatusExchange(ch); err != nil {
		ch.Close()
		return err
	}
	service.mu.Lock()
	old := service.statusQueueChannel
	service.statusQueueChannel = ch
	service.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Start declares the queues, starts WorkerCount consumers per job queue and
// blocks until ctx is cancelled.
func (service *RabbitMqService) Start(ctx context.Context) error {
	if err := service.openStatusChannel(); err != nil {
		return fmt.Errorf("failed to set up status queue: %w", err)
	}
	service.logger.Info().Str("queue", statusQueue).Msg("status exchange declared")

	var wg sync.WaitGroup
	for _, queueName := range service.config.RabbitMqQueues {
		if queueName == statusQueue {
			continue
		}
		conn, err := service.connection()
		if err != nil {
			return err
		}
		ch, err := NewChannel(conn)
		if err != nil {
			return err
		}
		if _, err := NewQueue(ch, queueName); err != nil {
			ch.Close()
			return err
		}
		ch.Close()

		for i := 0; i < service.config.WorkerCount; i++ {
			wg.Add(1)
			go func(queueName string, worker int) {
				defer wg.Done()
				service.consume(ctx, queueName, worker)
			}(queueName, i+1)
		}
	}

	<-ctx.Done()
	service.logger.Info().Msg("shutting down all consumers gracefully")
	wg.Wait()

	service.mu.Lock()
	defer service.mu.Unlock()
	if service.statusQueueChannel != nil {
		service.statusQueueChannel.Close()
	}
	if service.rabbitMqConn != nil {
		return service.rabbitMqConn.Close()
	}
	return nil
}

func (service *RabbitMqService) consume(ctx context.Context, queueName string, worker int) {
	logger := service.logger.With().Str("queue", queueName).Int("worker", worker).Logger()
	var consumerCh *amqp.Channel
	defer func() {
		if consumerCh != nil {
			consumerCh.Close()
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if consumerCh == nil || consumerCh.IsClosed() {
			conn, err := service.connection()
			if err == nil {
				consumerCh, err = NewChannel(conn)
			}
			if err != nil {
				logger.Error().Err(err).Msg("failed to create channel")
				consumerCh = nil
				if !sleep(ctx, reconnectDelay) {
					return
				}
				continue
			}
			if err := consumerCh.Qos(1, 0, false); err != nil {
				logger.Warn().Err(err).Msg("failed to set prefetch")
			}
		}

		msgs, err := NewQueueConsumer(consumerCh, queueName)
		if err != nil {
			logger.Error().Err(err).Msg("failed to start consumer")
			consumerCh.Close()
			consumerCh = nil
			if !sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}
		logger.Info().Msg("worker started, waiting for messages")

		if !service.drain(ctx, msgs, logger) {
			return
		}
		logger.Warn().Msg("channel closed, will recreate")
		consumerCh = nil
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

// drain handles deliveries until the channel closes (true) or ctx is done
// (false).
func (service *RabbitMqService) drain(ctx context.Context, msgs <-chan amqp.Delivery, logger zerolog.Logger) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-msgs:
			if !ok {
				return true
			}
			err := service.processor.Process(ctx, d.Body)
			if err == nil {
				d.Ack(false)
				continue
			}
			logger.Error().Err(err).Msg("error processing message")
			if IsFatalError(err) {
				d.Nack(false, true)
				if reopenErr := service.openStatusChannel(); reopenErr != nil {
					logger.Error().Err(reopenErr).Msg("failed to reopen status channel")
				}
				continue
			}
			d.Nack(false, models.ShouldRequeue(err))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
