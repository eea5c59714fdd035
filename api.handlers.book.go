package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	MsgBookNotFound = "Book not found"
	MsgBookDeleted  = "Book deleted successfully"
	MsgServerUp     = "Server is up and running!"
)

// send writes the json response and logs the failure to do so.
func (api *APIHandler) send(ctx context.Context, w http.ResponseWriter, status int, data interface{}) {
	if err := WriteResponse(ctx, w, status, data); err != nil {
		api.GetLoggerFromContext(ctx).Error("failed to send response", zap.Int("response.status", status), zap.Error(err))
	}
}

func (api *APIHandler) sendError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	if err := WriteErrorResponse(ctx, w, status, message); err != nil {
		api.GetLoggerFromContext(ctx).Error("failed to send error response", zap.Int("response.status", status), zap.Error(err))
	}
}

// Index is the liveness endpoint.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(MsgServerUp)); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send index response", zap.Error(err))
	}
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	api.send(ctx, w, http.StatusOK, &StatusResponse{
		RequestID: GetValueFromContext(ctx, RequestIDContextKey),
		Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
		Message:   "Hello. Books store api is available. Enjoy :)",
	})
}

// GetAllBooks godoc
//
//	@Summary	List all books
//	@Tags		books
//	@Produce	json
//	@Success	200	{array}		Book
//	@Failure	500	{object}	APIError
//	@Router		/books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	logger := api.GetLoggerFromContext(ctx)
	books, err := api.bookService.GetAll(ctx)
	if err != nil {
		logger.Error("failed to get all books", zap.Error(err))
		api.sendError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("success to get all books", zap.Int("books.total", len(books)))
	api.send(ctx, w, http.StatusOK, books)
}

// GetOneBook godoc
//
//	@Summary	Get a book by id
//	@Tags		books
//	@Produce	json
//	@Param		id	path		string	true	"book id"
//	@Success	200	{object}	Book
//	@Failure	404	{object}	APIError
//	@Failure	500	{object}	APIError
//	@Router		/books/{id} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	id := ps.ByName("id")
	logger := api.GetLoggerFromContext(ctx).With(zap.String("book.id", id))
	book, found, err := api.bookService.GetOne(ctx, id)
	if err != nil {
		logger.Error("failed to get book", zap.Error(err))
		api.sendError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		logger.Info("book does not exist")
		api.sendError(ctx, w, http.StatusNotFound, MsgBookNotFound)
		return
	}
	logger.Info("success to get book")
	api.send(ctx, w, http.StatusOK, book)
}

// CreateBook godoc
//
//	@Summary	Create a book
//	@Tags		books
//	@Accept		json
//	@Produce	json
//	@Param		book	body		BookCandidate	true	"book to create"
//	@Success	201		{object}	Book
//	@Failure	500		{object}	APIError
//	@Router		/books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	logger := api.GetLoggerFromContext(ctx)
	var candidate BookCandidate
	if err := DecodeBookCandidate(r, &candidate); err != nil {
		logger.Error("failed to decode book", zap.Error(err))
		api.sendError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	book, err := api.bookService.Add(ctx, candidate)
	if err != nil {
		logger.Error("failed to create book", zap.Error(err))
		api.sendError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("success to create book", zap.String("book.id", book.ID))
	api.send(ctx, w, http.StatusCreated, book)
}

// UpdateBook godoc
//
//	@Summary	Update a book by id
//	@Tags		books
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string			true	"book id"
//	@Param		book	body		BookCandidate	true	"attributes to replace"
//	@Success	200		{object}	Book
//	@Failure	404		{object}	APIError
//	@Failure	500		{object}	APIError
//	@Router		/books/{id} [put]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	id := ps.ByName("id")
	logger := api.GetLoggerFromContext(ctx).With(zap.String("book.id", id))
	var candidate BookCandidate
	if err := DecodeBookCandidate(r, &candidate); err != nil {
		logger.Error("failed to decode book", zap.Error(err))
		api.sendError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	book, found, err := api.bookService.Update(ctx, id, candidate)
	if err != nil {
		logger.Error("failed to update book", zap.Error(err))
		api.sendError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		logger.Info("book does not exist")
		api.sendError(ctx, w, http.StatusNotFound, MsgBookNotFound)
		return
	}
	logger.Info("success to update book")
	api.send(ctx, w, http.StatusOK, book)
}

// DeleteOneBook godoc
//
//	@Summary	Delete a book by id
//	@Tags		books
//	@Produce	json
//	@Param		id	path		string	true	"book id"
//	@Success	200	{object}	APIMessage
//	@Failure	404	{object}	APIError
//	@Failure	500	{object}	APIError
//	@Router		/books/{id} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	id := ps.ByName("id")
	logger := api.GetLoggerFromContext(ctx).With(zap.String("book.id", id))
	deleted, err := api.bookService.Delete(ctx, id)
	if err != nil {
		logger.Error("failed to delete book", zap.Error(err))
		api.sendError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		logger.Info("book does not exist")
		api.sendError(ctx, w, http.StatusNotFound, MsgBookNotFound)
		return
	}
	logger.Info("success to delete book")
	api.send(ctx, w, http.StatusOK, &APIMessage{Message: MsgBookDeleted})
}

// NotFound handles requests to unknown routes.
func (api *APIHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := api.idsHandler.Generate(RequestIDPrefix)
		w.Header().Set(RequestIDHeader, requestID)
		api.logger.Info("route not found",
			zap.String("request.id", requestID),
			zap.String("request.method", r.Method),
			zap.String("request.path", r.URL.Path),
		)
		api.sendError(r.Context(), w, http.StatusNotFound, "resource not found")
	})
}

// MethodNotAllowed handles requests to known routes with unsupported methods.
func (api *APIHandler) MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.sendError(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// GlobalOPTIONS answers CORS preflight requests on every route.
func (api *APIHandler) GlobalOPTIONS() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusNoContent)
	})
}
