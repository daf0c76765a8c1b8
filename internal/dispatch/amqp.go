package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lixing-Zhang/ebook-landing/internal/models"
	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// publisher is the part of *amqp.Channel the dispatcher needs
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPClient owns a RabbitMQ connection and channel
type AMQPClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DialAMQP connects to RabbitMQ and opens a channel
func DialAMQP(url string) (*AMQPClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	slog.Info("RabbitMQ connected")

	return &AMQPClient{
		conn:    conn,
		channel: channel,
	}, nil
}

// Close closes the channel and connection for graceful shutdown
func (c *AMQPClient) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return err
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// AMQPDispatcher publishes the multipart payload to a durable queue for a downstream
// forwarder. A publish error is the only failure.
type AMQPDispatcher struct {
	pub   publisher
	queue string
}

// NewAMQPDispatcher declares queue on the client's channel and returns a dispatcher for it
func NewAMQPDispatcher(client *AMQPClient, queue string) (*AMQPDispatcher, error) {
	q, err := client.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	return &AMQPDispatcher{pub: client.channel, queue: q.Name}, nil
}

// Dispatch publishes one message
func (d *AMQPDispatcher) Dispatch(ctx context.Context, payload *models.Payload) error {
	_, span := tracer.Start(ctx, "order.publish")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	body, contentType, err := EncodeMultipart(payload)
	if err != nil {
		return err
	}

	err = d.pub.Publish(
		"",
		d.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish order: %w", err)
	}
	return nil
}
