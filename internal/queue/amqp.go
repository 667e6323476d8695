package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// AMQPClient publishes to and consumes from a durable RabbitMQ queue.
type AMQPClient struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

// DialAMQP connects to the broker and declares the queue.
func DialAMQP(url, queueName string) (*AMQPClient, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	if queueName == "" {
		return nil, errors.New("amqp queue name is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := declareQueue(ch, queueName); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPClient{conn: conn, queue: queueName, ch: ch}, nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// Send publishes msg as a persistent JSON message.
func (c *AMQPClient) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pub, err := publishing(msg, time.Now())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ch.Publish("", c.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish queue=%s document=%s: %w", c.queue, msg.DocumentID, err)
	}
	return nil
}

func publishing(msg Message, now time.Time) (amqp.Publishing, error) {
	body, err := EncodeMessage(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode message: %w", err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.DocumentID,
		CorrelationId: msg.RequestID,
		Timestamp:     now.UTC(),
		Body:          body,
	}, nil
}

// Consume opens a dedicated channel with the given prefetch and returns
// its deliveries. Deliveries must be acknowledged by the caller. The
// channel is closed with the client.
func (c *AMQPClient) Consume(consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("set qos: %w", err)
		}
	}
	if err := declareQueue(ch, c.queue); err != nil {
		ch.Close()
		return nil, err
	}
	deliveries, err := ch.Consume(
		c.queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("consume queue %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// NotifyClose reports connection loss.
func (c *AMQPClient) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Close closes the connection and every channel opened on it.
func (c *AMQPClient) Close() error {
	return c.conn.Close()
}

var _ Client = (*AMQPClient)(nil)
