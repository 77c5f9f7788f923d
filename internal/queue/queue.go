// Package queue implements C1, the Task Queue: a durable FIFO of
// TaskMessages plus a parallel dead-letter sibling (spec §4.1). It does not
// guarantee exactly-once delivery — consumers must treat repeated delivery
// as possible.
package queue

import (
	"context"

	"github.com/harshitdeora/task-schedular-sub000/pkg/models"
)

// Queue is the C1 contract: push at head, pop from tail (handled by the
// transport's own ack semantics), and a parallel dead-letter push.
type Queue interface {
	// Push enqueues a task message. Infallible under normal operation; on
	// store failure the caller is responsible for retry or dead-letter.
	Push(ctx context.Context, msg models.TaskMessage) error

	// Subscribe registers handler to be invoked for every popped message.
	// The transport is responsible for polling/blocking as appropriate;
	// handler returning nil acks the message, a non-nil error leaves it
	// for redelivery (the worker itself decides retry-vs-dead-letter and
	// re-pushes explicitly rather than relying on queue redelivery).
	Subscribe(ctx context.Context, handler func(context.Context, models.TaskMessage) error) error

	// MoveToDeadLetter pushes a raw payload to the dead-letter sibling
	// with a reason string. Always succeeds or the whole pop step is
	// retried by the caller.
	MoveToDeadLetter(ctx context.Context, payload []byte, reason string) error

	// Close releases transport resources.
	Close() error
}
