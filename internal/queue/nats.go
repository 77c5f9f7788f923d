package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

const (
	pendingSubject    = "tasks.pending"
	deadLetterSubject = "tasks.deadletter"
	pendingStream     = "TASKS_PENDING"
	deadLetterStream  = "TASKS_DEADLETTER"
	consumerGroup     = "workers"
)

// NATSQueue is the JetStream-backed Queue: at-least-once delivery via a
// durable QueueSubscribe consumer group, mirroring the distributed worker
// subscription shape used for NATS-based task dispatch.
type NATSQueue struct {
	nc *nats.Conn
	js nats.JetStreamContext

	sub *nats.Subscription
}

// NewNATSQueue connects to natsURL and ensures the pending/dead-letter
// streams exist.
func NewNATSQueue(natsURL string) (*NATSQueue, error) {
	nc, err := nats.Connect(natsURL, nats.MaxReconnects(-1), nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	q := &NATSQueue{nc: nc, js: js}
	if err := q.ensureStreams(); err != nil {
		nc.Close()
		return nil, err
	}
	return q, nil
}

func (q *NATSQueue) ensureStreams() error {
	if _, err := q.js.StreamInfo(pendingStream); err != nil {
		if _, err := q.js.AddStream(&nats.StreamConfig{
			Name:     pendingStream,
			Subjects: []string{pendingSubject},
		}); err != nil {
			return fmt.Errorf("failed to create pending stream: %w", err)
		}
	}
	if _, err := q.js.StreamInfo(deadLetterStream); err != nil {
		if _, err := q.js.AddStream(&nats.StreamConfig{
			Name:     deadLetterStream,
			Subjects: []string{deadLetterSubject},
		}); err != nil {
			return fmt.Errorf("failed to create dead-letter stream: %w", err)
		}
	}
	return nil
}

// Push publishes a TaskMessage onto the pending stream.
func (q *NATSQueue) Push(ctx context.Context, msg models.TaskMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal task message: %w", err)
	}
	_, err = q.js.Publish(pendingSubject, data)
	if err != nil {
		return fmt.Errorf("failed to publish task message: %w", err)
	}
	return nil
}

// Subscribe starts a durable queue-group consumer; messages whose handler
// returns nil are acked, others are nak'd for immediate redelivery.
// Subscribe returns as soon as the consumer is registered.
func (q *NATSQueue) Subscribe(ctx context.Context, handler func(context.Context, models.TaskMessage) error) error {
	sub, err := q.js.QueueSubscribe(pendingSubject, consumerGroup, func(m *nats.Msg) {
		var msg models.TaskMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			_ = q.MoveToDeadLetter(ctx, m.Data, "invalid_json")
			m.Ack()
			return
		}
		if !msg.Valid() {
			_ = q.MoveToDeadLetter(ctx, m.Data, "invalid_json")
			m.Ack()
			return
		}
		if err := handler(ctx, msg); err != nil {
			m.Nak()
			return
		}
		m.Ack()
	}, nats.Durable(consumerGroup), nats.ManualAck(), nats.AckWait(5*time.Minute))
	if err != nil {
		return fmt.Errorf("failed to subscribe to pending tasks: %w", err)
	}
	q.sub = sub
	return nil
}

// MoveToDeadLetter publishes a raw, undecodable or permanently-failed
// payload to the dead-letter stream with a reason.
func (q *NATSQueue) MoveToDeadLetter(ctx context.Context, payload []byte, reason string) error {
	envelope := struct {
		Reason  string          `json:"reason"`
		Payload json.RawMessage `json:"payload"`
	}{Reason: reason, Payload: payload}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter envelope: %w", err)
	}
	if _, err := q.js.Publish(deadLetterSubject, data); err != nil {
		return fmt.Errorf("failed to publish dead-letter entry: %w", err)
	}
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (q *NATSQueue) Close() error {
	if q.sub != nil {
		_ = q.sub.Unsubscribe()
	}
	q.nc.Close()
	return nil
}
