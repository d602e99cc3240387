package rabbitmq

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"worker-preprocess/config"
)

// Publisher emits keyed JSON messages onto a topic. The key selects the
// partition queue, so deliveries for one key stay ordered.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
	Close() error
}

type publisher struct {
	ch         *amqp.Channel
	cfg        *config.RabbitMQ
	partitions int
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ, partitions int) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	if partitions < 1 {
		partitions = 1
	}
	return &publisher{
		ch:         ch,
		cfg:        cfg,
		partitions: partitions,
	}, nil
}

func (p *publisher) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	routingKey := PartitionQueue(topic, PartitionFor(key, p.partitions))
	return p.ch.PublishWithContext(ctx, p.cfg.ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Body:         body,
	})
}

func (p *publisher) Close() error {
	return p.ch.Close()
}
