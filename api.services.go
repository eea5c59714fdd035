package main

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

const writeLockStripes = 64

// BookServiceProvider is the set of book operations used by the api handlers.
type BookServiceProvider interface {
	Add(ctx context.Context, candidate BookCandidate) (Book, error)
	GetOne(ctx context.Context, id string) (Book, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error)
	GetAll(ctx context.Context) ([]Book, error)
}

// BookService validates candidates and forwards calls to the storage.
// A nil queue disables the mirror publication.
type BookService struct {
	logger  *zap.Logger
	storage BookStorage
	queue   Queuer
	locks   [writeLockStripes]sync.Mutex
}

func NewBookService(logger *zap.Logger, storage BookStorage, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:  logger,
		storage: storage,
		queue:   queue,
	}
}

// publish pushes a written book to the mirror queue. Failures only get logged.
func (bs *BookService) publish(ctx context.Context, op string, book Book) {
	if bs.queue == nil {
		return
	}
	if err := bs.queue.Push(ctx, MirrorQueue, QueueEvent{Op: op, Book: book}); err != nil {
		bs.logger.Error("service: failed to push event to queue", zap.String("op", op), zap.String("book.id", book.ID), zap.Error(err))
	}
}

// lock serializes the mirrored writes of a book id so that queued
// events follow the order of the storage writes.
func (bs *BookService) lock(id string) func() {
	if bs.queue == nil {
		return func() {}
	}
	m := &bs.locks[xxhash.Sum64String(id)%writeLockStripes]
	m.Lock()
	return m.Unlock
}

func (bs *BookService) Add(ctx context.Context, candidate BookCandidate) (Book, error) {
	if err := ValidateBookCandidate(&candidate); err != nil {
		return Book{}, err
	}
	book, err := bs.storage.Add(ctx, candidate)
	if err != nil {
		return Book{}, err
	}
	bs.publish(ctx, CreateOp, book)
	return book, nil
}

func (bs *BookService) GetOne(ctx context.Context, id string) (Book, bool, error) {
	return bs.storage.GetOne(ctx, id)
}

func (bs *BookService) Delete(ctx context.Context, id string) (bool, error) {
	defer bs.lock(id)()
	deleted, err := bs.storage.Delete(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}
	bs.publish(ctx, DeleteOp, Book{ID: id})
	return true, nil
}

func (bs *BookService) Update(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error) {
	defer bs.lock(id)()
	book, found, err := bs.storage.Update(ctx, id, candidate)
	if err != nil || !found {
		return book, found, err
	}
	bs.publish(ctx, UpdateOp, book)
	return book, true, nil
}

func (bs *BookService) GetAll(ctx context.Context) ([]Book, error) {
	return bs.storage.GetAll(ctx)
}
