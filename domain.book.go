package main

import (
	"context"
	"encoding/json"
)

// Book represents a book entity.
type Book struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublishedDate *Date  `json:"publishedDate,omitempty"`
}

// BookCandidate is the payload of a book creation or update request.
// It never carries the identifier, which is assigned by the storage.
// ClearPublishedDate is set when the payload holds an explicit null or
// empty publishedDate, meaning the stored date must be removed.
type BookCandidate struct {
	Title              string `json:"title" validate:"required"`
	Author             string `json:"author" validate:"required"`
	PublishedDate      *Date  `json:"publishedDate,omitempty"`
	ClearPublishedDate bool   `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler. It tells an absent
// publishedDate apart from a null or empty one.
func (c *BookCandidate) UnmarshalJSON(data []byte) error {
	var payload struct {
		Title         string          `json:"title"`
		Author        string          `json:"author"`
		PublishedDate json.RawMessage `json:"publishedDate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*c = BookCandidate{Title: payload.Title, Author: payload.Author}

	switch string(payload.PublishedDate) {
	case "":
	case "null", `""`:
		c.ClearPublishedDate = true
	default:
		d := &Date{}
		if err := d.UnmarshalJSON(payload.PublishedDate); err != nil {
			return err
		}
		c.PublishedDate = d
	}
	return nil
}

// NewBook builds a book from a candidate and its assigned id.
func NewBook(id string, c BookCandidate) Book {
	return Book{
		ID:            id,
		Title:         c.Title,
		Author:        c.Author,
		PublishedDate: c.PublishedDate,
	}
}

// Merge applies the candidate values onto the book. Empty attributes
// of the candidate leave the current values untouched, except for a
// cleared published date. The id never changes.
func (b Book) Merge(c BookCandidate) Book {
	if c.Title != "" {
		b.Title = c.Title
	}
	if c.Author != "" {
		b.Author = c.Author
	}
	switch {
	case c.ClearPublishedDate:
		b.PublishedDate = nil
	case c.PublishedDate != nil:
		b.PublishedDate = c.PublishedDate
	}
	return b
}

// BookStorage defines possible operations on book entity. The boolean
// values report whether the addressed record exists (or was removed).
type BookStorage interface {
	Add(ctx context.Context, candidate BookCandidate) (Book, error)
	GetOne(ctx context.Context, id string) (Book, bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error)
	GetAll(ctx context.Context) ([]Book, error)
}

// BookMirror receives already persisted books under their final id.
type BookMirror interface {
	Save(ctx context.Context, book Book) error
	Remove(ctx context.Context, id string) error
}
