package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type popResult struct {
	event QueueEvent
	err   error
}

// scriptedQueue pops the given results in order then blocks until the context is done.
func scriptedQueue(results ...popResult) (*MockQueuer, chan struct{}) {
	var mu sync.Mutex
	drained := make(chan struct{})
	return &MockQueuer{
		PopFunc: func(ctx context.Context, qid string) (QueueEvent, error) {
			mu.Lock()
			if len(results) > 0 {
				r := results[0]
				results = results[1:]
				mu.Unlock()
				return r.event, r.err
			}
			select {
			case <-drained:
			default:
				close(drained)
			}
			mu.Unlock()
			<-ctx.Done()
			return QueueEvent{}, ctx.Err()
		},
	}, drained
}

func runConsumer(t *testing.T, c Consumer, drained chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, MirrorQueue) }()

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not exit after cancellation")
	}
}

// TestMirrorConsumer ensures each operation maps to the matching mirror call.
func TestMirrorConsumer(t *testing.T) {
	dune := Book{ID: "b:1", Title: "Dune", Author: "Frank Herbert"}
	messiah := Book{ID: "b:1", Title: "Dune Messiah", Author: "Frank Herbert"}
	queue, drained := scriptedQueue(
		popResult{event: QueueEvent{Op: CreateOp, Book: dune}},
		popResult{err: ErrQueueEmpty},
		popResult{event: QueueEvent{Op: UpdateOp, Book: messiah}},
		popResult{event: QueueEvent{Op: "unknown", Book: Book{ID: "b:9"}}},
		popResult{event: QueueEvent{Op: DeleteOp, Book: Book{ID: "b:1"}}},
	)
	mirror := &MockBookMirror{}

	runConsumer(t, NewMirrorConsumer(zap.NewNop(), queue, mirror), drained)

	assert.Equal(t, []Book{dune, messiah}, mirror.saved)
	assert.Equal(t, []string{"b:1"}, mirror.removed)
}

// TestMirrorConsumer_Failures ensures pop and mirror failures do not stop the consumer.
func TestMirrorConsumer_Failures(t *testing.T) {
	pause := consumerErrorPause
	consumerErrorPause = time.Millisecond
	defer func() { consumerErrorPause = pause }()

	queue, drained := scriptedQueue(
		popResult{err: errors.New("connection refused")},
		popResult{event: QueueEvent{Op: CreateOp, Book: Book{ID: "b:1"}}},
		popResult{event: QueueEvent{Op: DeleteOp, Book: Book{ID: "b:2"}}},
	)
	mirror := &MockBookMirror{err: errors.New("disk full")}

	runConsumer(t, NewMirrorConsumer(zap.NewNop(), queue, mirror), drained)

	require.Len(t, mirror.saved, 1)
	assert.Equal(t, []string{"b:2"}, mirror.removed)
}

// TestMirrorConsumer_Cancelled ensures a done context stops the consumer at once.
func TestMirrorConsumer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	queue := &MockQueuer{
		PopFunc: func(ctx context.Context, qid string) (QueueEvent, error) {
			return QueueEvent{}, ctx.Err()
		},
	}
	mirror := &MockBookMirror{}
	err := NewMirrorConsumer(zap.NewNop(), queue, mirror).Consume(ctx, MirrorQueue)
	assert.NoError(t, err)
	assert.Empty(t, mirror.saved)
	assert.Empty(t, mirror.removed)
}
