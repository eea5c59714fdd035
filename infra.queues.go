package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mirror operations. Each event carries the book written by one of them.
const (
	CreateOp = "creation"
	UpdateOp = "updating"
	DeleteOp = "deletion"
)

// MirrorQueue is the single list holding mirror events in write order.
const MirrorQueue = "books.mirror"

// ErrQueueEmpty is returned by Pop when no event arrived before the wait timeout.
var ErrQueueEmpty = errors.New("queue: no event available")

const defaultQueueWait = time.Second

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// QueueEvent is a book write to replay on the mirror.
type QueueEvent struct {
	Op   string `json:"op"`
	Book Book   `json:"book"`
}

// Queuer describes a FIFO queue of events.
type Queuer interface {
	Push(ctx context.Context, qid string, event QueueEvent) error
	Pop(ctx context.Context, qid string) (QueueEvent, error)
}

// redisQueue is a Queuer backed by redis lists.
type redisQueue struct {
	client *redis.Client
	wait   time.Duration
}

// NewRedisQueue provides a Queuer which blocks up to `wait` on each Pop call.
func NewRedisQueue(client *redis.Client, wait time.Duration) Queuer {
	if wait <= 0 {
		wait = defaultQueueWait
	}
	return &redisQueue{client: client, wait: wait}
}

// Push appends an event to the tail of the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, event QueueEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, eventBytes).Err()
}

// Pop returns the event at the head of the queue identified by qid.
// It returns ErrQueueEmpty when nothing arrived during the wait.
func (q *redisQueue) Pop(ctx context.Context, qid string) (QueueEvent, error) {
	var event QueueEvent
	infos, err := q.client.BLPop(ctx, q.wait, qid).Result()
	if errors.Is(err, redis.Nil) {
		return event, ErrQueueEmpty
	}
	if err != nil {
		return event, err
	}

	err = json.Unmarshal([]byte(infos[1]), &event)
	return event, err
}
