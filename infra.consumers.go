package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// consumerErrorPause is the delay before polling again after a failed pop.
var consumerErrorPause = 500 * time.Millisecond

// Consumer drains a queue until its context is done.
type Consumer interface {
	Consume(ctx context.Context, qid string) error
}

// mirrorConsumer replays queued books onto a BookMirror.
type mirrorConsumer struct {
	logger *zap.Logger
	queue  Queuer
	mirror BookMirror
}

// NewMirrorConsumer provides a Consumer which keeps the mirror in line with the queues.
func NewMirrorConsumer(logger *zap.Logger, q Queuer, mirror BookMirror) Consumer {
	return &mirrorConsumer{logger: logger, queue: q, mirror: mirror}
}

// Consume pops events in order and applies them to the mirror. Failures
// are logged and skipped. It returns nil once the context is done.
func (mc *mirrorConsumer) Consume(ctx context.Context, qid string) error {
	for {
		event, err := mc.queue.Pop(ctx, qid)
		if ctx.Err() != nil {
			mc.logger.Info("consumer: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}
		if errors.Is(err, ErrQueueEmpty) {
			continue
		}
		if err != nil {
			mc.logger.Error("consumer: error on queue pop call", zap.String("qid", qid), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(consumerErrorPause):
			}
			continue
		}
		mc.apply(ctx, event)
	}
}

func (mc *mirrorConsumer) apply(ctx context.Context, event QueueEvent) {
	var err error
	book := event.Book
	switch event.Op {
	case CreateOp, UpdateOp:
		err = mc.mirror.Save(ctx, book)
	case DeleteOp:
		err = mc.mirror.Remove(ctx, book.ID)
	default:
		mc.logger.Warn("consumer: received unknown operation", zap.String("op", event.Op), zap.String("book.id", book.ID))
		return
	}
	if err != nil {
		mc.logger.Error("consumer: failed to apply event", zap.String("op", event.Op), zap.String("book.id", book.ID), zap.Error(err))
		return
	}
	mc.logger.Debug("consumer: event applied", zap.String("op", event.Op), zap.String("book.id", book.ID))
}
