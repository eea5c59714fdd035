package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAPIHandler(storage BookStorage) *APIHandler {
	bs := NewBookService(zap.NewNop(), storage, nil)
	return NewAPIHandler(zap.NewNop(), &Config{}, &Statistics{started: NewMockClocker().Now()}, NewMockClocker(), NewMockUIDHandler("abc", true), bs)
}

func idParam(id string) httprouter.Params {
	return httprouter.Params{{Key: "id", Value: id}}
}

// readResponse returns the status code and the body of a recorded response.
func readResponse(t *testing.T, w *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(data)
}

var errStorage = errors.New("storage failure")

func failingBookStorage() *MockBookStorage {
	return &MockBookStorage{
		AddFunc: func(ctx context.Context, c BookCandidate) (Book, error) {
			return Book{}, errStorage
		},
		GetOneFunc: func(ctx context.Context, id string) (Book, bool, error) {
			return Book{}, false, errStorage
		},
		DeleteFunc: func(ctx context.Context, id string) (bool, error) {
			return false, errStorage
		},
		UpdateFunc: func(ctx context.Context, id string, c BookCandidate) (Book, bool, error) {
			return Book{}, false, errStorage
		},
		GetAllFunc: func(ctx context.Context) ([]Book, error) {
			return nil, errStorage
		},
	}
}

// TestIndexHandler ensures the liveness endpoint answers with plain text.
func TestIndexHandler(t *testing.T) {
	api := newTestAPIHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	api.Index(w, req, httprouter.Params{})
	status, body := readResponse(t, w)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Server is up and running!", body)
}

// TestStatusHandler ensures api handler can provides its status.
func TestStatusHandler(t *testing.T) {
	api := newTestAPIHandler(nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req = req.WithContext(context.WithValue(req.Context(), RequestIDContextKey, "r:abc"))
	w := httptest.NewRecorder()
	api.Status(w, req, httprouter.Params{})
	status, body := readResponse(t, w)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json; charset=UTF-8", w.Header().Get("Content-Type"))
	expected := `{"requestid":"r:abc","status":"up & running since 0 mins","message":"Hello. Books store api is available. Enjoy :)"}`
	assert.JSONEq(t, expected, body)
}

// TestCreateBookHandler ensures api handler can create a book.
//
//nolint:funlen
func TestCreateBookHandler(t *testing.T) {
	t.Run("should pass: valid payload", func(t *testing.T) {
		api := newTestAPIHandler(newMemBookStorage())
		payload := `{"title":"Dune","author":"Frank Herbert","publishedDate":"1965-08-01"}`
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(payload))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "application/json; charset=UTF-8", w.Header().Get("Content-Type"))

		var book Book
		require.NoError(t, json.Unmarshal([]byte(body), &book))
		assert.NotEmpty(t, book.ID)
		assert.Equal(t, "Dune", book.Title)
		assert.Equal(t, "Frank Herbert", book.Author)
		require.NotNil(t, book.PublishedDate)
		assert.Equal(t, "1965-08-01T00:00:00.000Z", book.PublishedDate.String())
	})

	t.Run("should pass: published date is optional", func(t *testing.T) {
		api := newTestAPIHandler(newMemBookStorage())
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"title":"Dune","author":"Frank Herbert"}`))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusCreated, status)
		assert.JSONEq(t, `{"id":"b:1","title":"Dune","author":"Frank Herbert"}`, body)
	})

	t.Run("should pass: empty published date is no date", func(t *testing.T) {
		api := newTestAPIHandler(newMemBookStorage())
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"title":"Dune","author":"Frank Herbert","publishedDate":""}`))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusCreated, status)
		assert.JSONEq(t, `{"id":"b:1","title":"Dune","author":"Frank Herbert"}`, body)
	})

	t.Run("should fail: missing required fields", func(t *testing.T) {
		storage := newMemBookStorage()
		api := newTestAPIHandler(storage)
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"title":"Dune"}`))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error":"book validation failed: author is required"}`, body)

		books, err := storage.GetAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, books)
	})

	t.Run("should fail: malformed payload", func(t *testing.T) {
		api := newTestAPIHandler(newMemBookStorage())
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"title":`))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Contains(t, body, `"error"`)
	})

	t.Run("should fail: malformed published date", func(t *testing.T) {
		api := newTestAPIHandler(newMemBookStorage())
		payload := `{"title":"Dune","author":"Frank Herbert","publishedDate":"August 1965"}`
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(payload))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Contains(t, body, "publishedDate")
	})

	t.Run("should fail: missing body", func(t *testing.T) {
		api := newTestAPIHandler(newMemBookStorage())
		req := httptest.NewRequest(http.MethodPost, "/books", nil)
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error":"request body is missing"}`, body)
	})

	t.Run("should fail: storage insertion failure", func(t *testing.T) {
		api := newTestAPIHandler(failingBookStorage())
		req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(`{"title":"Dune","author":"Frank Herbert"}`))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error":"storage failure"}`, body)
	})
}

// TestGetAllBooksHandler ensures api handler lists the stored books.
func TestGetAllBooksHandler(t *testing.T) {
	t.Run("should pass: empty storage", func(t *testing.T) {
		api := newTestAPIHandler(newMemBookStorage())
		w := httptest.NewRecorder()
		api.GetAllBooks(w, httptest.NewRequest(http.MethodGet, "/books", nil), httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `[]`, body)
	})

	t.Run("should pass: stored books", func(t *testing.T) {
		storage := newMemBookStorage()
		_, err := storage.Add(context.Background(), BookCandidate{Title: "Dune", Author: "Frank Herbert"})
		require.NoError(t, err)
		_, err = storage.Add(context.Background(), BookCandidate{Title: "Emma", Author: "Jane Austen"})
		require.NoError(t, err)

		api := newTestAPIHandler(storage)
		w := httptest.NewRecorder()
		api.GetAllBooks(w, httptest.NewRequest(http.MethodGet, "/books", nil), httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusOK, status)
		expected := `[{"id":"b:1","title":"Dune","author":"Frank Herbert"},{"id":"b:2","title":"Emma","author":"Jane Austen"}]`
		assert.JSONEq(t, expected, body)
	})

	t.Run("should fail: storage failure", func(t *testing.T) {
		api := newTestAPIHandler(failingBookStorage())
		w := httptest.NewRecorder()
		api.GetAllBooks(w, httptest.NewRequest(http.MethodGet, "/books", nil), httprouter.Params{})
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error":"storage failure"}`, body)
	})
}

// TestGetOneBookHandler ensures api handler fetches a single book.
func TestGetOneBookHandler(t *testing.T) {
	storage := newMemBookStorage()
	created, err := storage.Add(context.Background(), BookCandidate{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	api := newTestAPIHandler(storage)

	t.Run("should pass: existent book", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.GetOneBook(w, httptest.NewRequest(http.MethodGet, "/books/"+created.ID, nil), idParam(created.ID))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"id":"b:1","title":"Dune","author":"Frank Herbert"}`, body)
	})

	t.Run("should fail: nonexistent book", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.GetOneBook(w, httptest.NewRequest(http.MethodGet, "/books/b:404", nil), idParam("b:404"))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusNotFound, status)
		assert.JSONEq(t, `{"error":"Book not found"}`, body)
	})

	t.Run("should fail: storage failure", func(t *testing.T) {
		api := newTestAPIHandler(failingBookStorage())
		w := httptest.NewRecorder()
		api.GetOneBook(w, httptest.NewRequest(http.MethodGet, "/books/b:1", nil), idParam("b:1"))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error":"storage failure"}`, body)
	})
}

// TestUpdateBookHandler ensures api handler updates an existing book only.
func TestUpdateBookHandler(t *testing.T) {
	storage := newMemBookStorage()
	created, err := storage.Add(context.Background(), BookCandidate{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	api := newTestAPIHandler(storage)

	t.Run("should pass: existent book", func(t *testing.T) {
		payload := `{"title":"Dune Messiah","author":"Frank Herbert","publishedDate":"1969-10-15"}`
		w := httptest.NewRecorder()
		api.UpdateBook(w, httptest.NewRequest(http.MethodPut, "/books/"+created.ID, strings.NewReader(payload)), idParam(created.ID))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusOK, status)
		expected := `{"id":"b:1","title":"Dune Messiah","author":"Frank Herbert","publishedDate":"1969-10-15T00:00:00.000Z"}`
		assert.JSONEq(t, expected, body)
	})

	t.Run("should pass: partial payload keeps other values", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.UpdateBook(w, httptest.NewRequest(http.MethodPut, "/books/"+created.ID, strings.NewReader(`{"author":"F. Herbert"}`)), idParam(created.ID))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusOK, status)
		expected := `{"id":"b:1","title":"Dune Messiah","author":"F. Herbert","publishedDate":"1969-10-15T00:00:00.000Z"}`
		assert.JSONEq(t, expected, body)
	})

	for _, payload := range []string{`{"publishedDate":null}`, `{"publishedDate":""}`} {
		t.Run("should pass: clears date with "+payload, func(t *testing.T) {
			_, _, err := storage.Update(context.Background(), created.ID, BookCandidate{PublishedDate: NewDate(time.Date(1969, 10, 15, 0, 0, 0, 0, time.UTC))})
			require.NoError(t, err)
			w := httptest.NewRecorder()
			api.UpdateBook(w, httptest.NewRequest(http.MethodPut, "/books/"+created.ID, strings.NewReader(payload)), idParam(created.ID))
			status, body := readResponse(t, w)
			assert.Equal(t, http.StatusOK, status)
			assert.JSONEq(t, `{"id":"b:1","title":"Dune Messiah","author":"F. Herbert"}`, body)

			stored, _, err := storage.GetOne(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Nil(t, stored.PublishedDate)
		})
	}

	t.Run("should fail: nonexistent book is not created", func(t *testing.T) {
		w := httptest.NewRecorder()
		payload := `{"title":"Ghost","author":"Nobody"}`
		api.UpdateBook(w, httptest.NewRequest(http.MethodPut, "/books/b:404", strings.NewReader(payload)), idParam("b:404"))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusNotFound, status)
		assert.JSONEq(t, `{"error":"Book not found"}`, body)

		books, err := storage.GetAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, books, 1)
	})

	t.Run("should fail: malformed payload", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.UpdateBook(w, httptest.NewRequest(http.MethodPut, "/books/"+created.ID, strings.NewReader(`[]`)), idParam(created.ID))
		status, _ := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
	})

	t.Run("should fail: storage failure", func(t *testing.T) {
		api := newTestAPIHandler(failingBookStorage())
		w := httptest.NewRecorder()
		api.UpdateBook(w, httptest.NewRequest(http.MethodPut, "/books/b:1", strings.NewReader(`{"title":"x"}`)), idParam("b:1"))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error":"storage failure"}`, body)
	})
}

// TestDeleteOneBookHandler ensures a book can be deleted once.
func TestDeleteOneBookHandler(t *testing.T) {
	storage := newMemBookStorage()
	created, err := storage.Add(context.Background(), BookCandidate{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	api := newTestAPIHandler(storage)

	w := httptest.NewRecorder()
	api.DeleteOneBook(w, httptest.NewRequest(http.MethodDelete, "/books/"+created.ID, nil), idParam(created.ID))
	status, body := readResponse(t, w)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"message":"Book deleted successfully"}`, body)

	w = httptest.NewRecorder()
	api.DeleteOneBook(w, httptest.NewRequest(http.MethodDelete, "/books/"+created.ID, nil), idParam(created.ID))
	status, body = readResponse(t, w)
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Book not found"}`, body)

	w = httptest.NewRecorder()
	api.GetOneBook(w, httptest.NewRequest(http.MethodGet, "/books/"+created.ID, nil), idParam(created.ID))
	status, _ = readResponse(t, w)
	assert.Equal(t, http.StatusNotFound, status)

	t.Run("should fail: storage failure", func(t *testing.T) {
		api := newTestAPIHandler(failingBookStorage())
		w := httptest.NewRecorder()
		api.DeleteOneBook(w, httptest.NewRequest(http.MethodDelete, "/books/b:1", nil), idParam("b:1"))
		status, body := readResponse(t, w)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.JSONEq(t, `{"error":"storage failure"}`, body)
	})
}

// TestHandlers_CancelledRequest ensures nothing is written once the client is gone.
func TestHandlers_CancelledRequest(t *testing.T) {
	api := newTestAPIHandler(newMemBookStorage())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/books", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	cw := NewCustomResponseWriter(rec)
	api.GetAllBooks(cw, req, httprouter.Params{})
	assert.Equal(t, StatusClientClosedRequest, cw.Status())
	assert.Equal(t, 0, rec.Body.Len())
}
