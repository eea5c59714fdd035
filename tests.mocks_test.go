package main

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	AddFunc    func(ctx context.Context, candidate BookCandidate) (Book, error)
	GetOneFunc func(ctx context.Context, id string) (Book, bool, error)
	DeleteFunc func(ctx context.Context, id string) (bool, error)
	UpdateFunc func(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error)
	GetAllFunc func(ctx context.Context) ([]Book, error)
}

// Add mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Add(ctx context.Context, candidate BookCandidate) (Book, error) {
	return m.AddFunc(ctx, candidate)
}

// GetOne mocks the behavior of retrieving a book by the repository.
func (m *MockBookStorage) GetOne(ctx context.Context, id string) (Book, bool, error) {
	return m.GetOneFunc(ctx, id)
}

// Delete mocks the behavior of deleting a book by the repository.
func (m *MockBookStorage) Delete(ctx context.Context, id string) (bool, error) {
	return m.DeleteFunc(ctx, id)
}

// Update mocks the behavior of updating a book by the repository.
func (m *MockBookStorage) Update(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error) {
	return m.UpdateFunc(ctx, id, candidate)
}

// GetAll mocks the behavior of retrieving all books by the repository.
func (m *MockBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	return m.GetAllFunc(ctx)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
	Valid     bool
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string, valid bool) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id, Valid: valid}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}

// IsValid mocks IsValid behavior by providing configured status.
func (muid *MockUIDHandler) IsValid(_, _ string) bool {
	return muid.Valid
}

// MockQueuer implements a fake Queuer.
type MockQueuer struct {
	PushFunc func(ctx context.Context, qid string, event QueueEvent) error
	PopFunc  func(ctx context.Context, qid string) (QueueEvent, error)
}

func (mq *MockQueuer) Push(ctx context.Context, qid string, event QueueEvent) error {
	return mq.PushFunc(ctx, qid, event)
}

func (mq *MockQueuer) Pop(ctx context.Context, qid string) (QueueEvent, error) {
	return mq.PopFunc(ctx, qid)
}

// MockBookMirror records the books saved and removed.
type MockBookMirror struct {
	mu      sync.Mutex
	saved   []Book
	removed []string
	err     error
}

func (mm *MockBookMirror) Save(_ context.Context, book Book) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.saved = append(mm.saved, book)
	return mm.err
}

func (mm *MockBookMirror) Remove(_ context.Context, id string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.removed = append(mm.removed, id)
	return mm.err
}

// newMemBookStorage returns a MockBookStorage backed by a map. Ids are
// generated as `b:<n>`.
func newMemBookStorage() *MockBookStorage {
	var mu sync.Mutex
	books := map[string]Book{}
	order := []string{}
	seq := 0
	return &MockBookStorage{
		AddFunc: func(_ context.Context, c BookCandidate) (Book, error) {
			mu.Lock()
			defer mu.Unlock()
			seq++
			book := NewBook(BookIDPrefix+":"+strconv.Itoa(seq), c)
			books[book.ID] = book
			order = append(order, book.ID)
			return book, nil
		},
		GetOneFunc: func(_ context.Context, id string) (Book, bool, error) {
			mu.Lock()
			defer mu.Unlock()
			book, ok := books[id]
			return book, ok, nil
		},
		DeleteFunc: func(_ context.Context, id string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if _, ok := books[id]; !ok {
				return false, nil
			}
			delete(books, id)
			return true, nil
		},
		UpdateFunc: func(_ context.Context, id string, c BookCandidate) (Book, bool, error) {
			mu.Lock()
			defer mu.Unlock()
			book, ok := books[id]
			if !ok {
				return Book{}, false, nil
			}
			book = book.Merge(c)
			books[id] = book
			return book, true, nil
		},
		GetAllFunc: func(_ context.Context) ([]Book, error) {
			mu.Lock()
			defer mu.Unlock()
			all := []Book{}
			for _, id := range order {
				if book, ok := books[id]; ok {
					all = append(all, book)
				}
			}
			return all, nil
		},
	}
}
