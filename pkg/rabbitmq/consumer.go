package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"worker-preprocess/config"
)

// Consumer drains the partition queues of one topic. Each assigned partition
// is consumed by a dedicated goroutine that processes strictly one delivery
// at a time, preserving per-key order. Deliveries are acknowledged after the
// handler returns, success or not: a handler failure is terminal for that
// delivery and is never requeued.
type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	topic      string
	partitions []int
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	topic string,
	partitions []int,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) Consumer[T] {
	if len(partitions) == 0 {
		partitions = []int{0}
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		topic:      topic,
		partitions: partitions,
		handler:    handler,
	}
}

func (c *consumer[T]) Consume(ctx context.Context, dependencies T) error {
	errs := make(chan error, len(c.partitions))
	var wg sync.WaitGroup
	for _, p := range c.partitions {
		wg.Add(1)
		go func(partition int) {
			defer wg.Done()
			if err := c.consumePartition(ctx, partition, dependencies); err != nil && !errors.Is(err, context.Canceled) {
				zerolog.Ctx(ctx).Error().Err(err).Int("partition", partition).Msg("partition consumer stopped")
				errs <- err
			}
		}(p)
	}
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return err
	}
	return ctx.Err()
}

func (c *consumer[T]) consumePartition(ctx context.Context, partition int, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	queueName := PartitionQueue(c.topic, partition)

	err = ch.ExchangeDeclare(c.cfg.ExchangeName, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to declare exchange")
		return err
	}

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, queueName, c.cfg.ExchangeName, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to bind queue")
		return err
	}

	// One unacked delivery at a time keeps processing sequential per
	// partition.
	err = ch.Qos(1, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", queueName).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().Str("queue", queueName).Msg("partition consumer started")

	for {
		select {
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := c.handler(ctx, msg, dependencies); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("queue", queueName).Msg("failed to handle message")
			}
			if err := msg.Ack(false); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("queue", queueName).Msg("failed to acknowledge message")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
