// Package mqueue is the durable work queue: a thin wrapper over
// github.com/streadway/amqp giving publish with priority, prefetch-bounded
// consume, and per-message ack/requeue/reject semantics (spec §4.3). Dead
// letter routing is configured at queue-declare time via the broker's
// x-dead-letter-exchange argument, the same mechanism the original
// messaging.py wires up.
package mqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sttworker/internal/models"

	"github.com/streadway/amqp"
)

// Config names the exchange/queue topology this worker talks to.
type Config struct {
	URL           string
	Exchange      string
	RoutingKey    string
	Queue         string
	DLQExchange   string
	DLQRoutingKey string
	MaxPriority   uint8

	// JobTTL is the advisory whole-job deadline (spec §5: "job_timeout_s is
	// advisory and enforced by the message TTL at the broker"). Zero means
	// no expiration is set and messages live until consumed or dead-lettered
	// by other means.
	JobTTL time.Duration
}

// Queue owns one AMQP connection and one channel; Publish and Consume both
// go through that same channel.
type Queue struct {
	cfg  Config
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker, declares the exchange/queue/DLQ topology, and
// returns a ready Queue. Declarations are idempotent: redeclaring the same
// topology on every worker startup is a no-op once it exists.
func Connect(cfg Config) (*Queue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q := &Queue{cfg: cfg, conn: conn, ch: ch}
	if err := q.declareTopology(); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) declareTopology() error {
	if err := q.ch.ExchangeDeclare(q.cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if q.cfg.DLQExchange != "" {
		if err := q.ch.ExchangeDeclare(q.cfg.DLQExchange, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dlq exchange: %w", err)
		}
	}

	args := amqp.Table{}
	if q.cfg.MaxPriority > 0 {
		args["x-max-priority"] = int32(q.cfg.MaxPriority)
	}
	if q.cfg.DLQExchange != "" {
		args["x-dead-letter-exchange"] = q.cfg.DLQExchange
		args["x-dead-letter-routing-key"] = q.cfg.DLQRoutingKey
	}

	queue, err := q.ch.QueueDeclare(q.cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := q.ch.QueueBind(queue.Name, q.cfg.RoutingKey, q.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish encodes msg as JSON and publishes it as a persistent message with
// the given priority (0-10, higher served first when the broker supports
// priority queues).
func (q *Queue) Publish(ctx context.Context, msg models.QueueMessage, priority uint8) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Priority:     priority,
		Body:         body,
		Headers: amqp.Table{
			"x-job-id":       msg.JobID,
			"x-published-at": msg.PublishedAt,
		},
		Timestamp: time.Now(),
	}
	if q.cfg.JobTTL > 0 {
		publishing.Expiration = strconv.FormatInt(q.cfg.JobTTL.Milliseconds(), 10)
	}
	return q.ch.Publish(q.cfg.Exchange, q.cfg.RoutingKey, false, false, publishing)
}

// Delivery wraps one in-flight message with its ack/requeue/reject
// operations. Exactly one of Ack/Requeue/Reject must be called per
// Delivery.
type Delivery struct {
	raw amqp.Delivery
	msg models.QueueMessage
}

// Message returns the decoded payload.
func (d Delivery) Message() models.QueueMessage { return d.msg }

// Ack acknowledges successful processing.
func (d Delivery) Ack() error { return d.raw.Ack(false) }

// Requeue returns the message to the queue for redelivery (transient
// failure).
func (d Delivery) Requeue() error { return d.raw.Nack(false, true) }

// Reject dead-letters the message without requeue (permanent failure, or a
// payload that failed to decode).
func (d Delivery) Reject() error { return d.raw.Nack(false, false) }

// Consume delivers messages to handler one at a time per call, bounding the
// number of unacknowledged (in-flight) messages across the channel at
// prefetch. It blocks until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, prefetch int, handler func(Delivery)) error {
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := q.ch.Consume(q.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			var msg models.QueueMessage
			if err := json.Unmarshal(raw.Body, &msg); err != nil {
				// Malformed payload: reject without requeue, spec §4.8 step 2.
				raw.Nack(false, false)
				continue
			}
			handler(Delivery{raw: raw, msg: msg})
		}
	}
}

// Depth reports the queue's current message count, for observability.
func (q *Queue) Depth() (int, error) {
	queue, err := q.ch.QueueInspect(q.cfg.Queue)
	if err != nil {
		return 0, fmt.Errorf("inspect queue: %w", err)
	}
	return queue.Messages, nil
}

// Close releases the channel and connection.
func (q *Queue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
