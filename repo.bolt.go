package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

var (
	_ BookStorage = (*boltBookStorage)(nil)
	_ BookMirror  = (*boltBookStorage)(nil)
)

type boltBookStorage struct {
	logger *zap.Logger
	client *bolt.DB
	uids   UIDHandler
	config *BoltDBConfig
}

// GetBoltDBClient setup the database and the bucket then provides a ready to use client.
func GetBoltDBClient(config *Config) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(config.BoltDB.FilePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create the database folder, %v", err)
	}
	db, err := bolt.Open(config.BoltDB.FilePath, 0o600, &bolt.Options{Timeout: config.BoltDB.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open the database, %v", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, errB := tx.CreateBucketIfNotExists([]byte(config.BoltDB.BucketName)); errB != nil {
			return fmt.Errorf("failed to create %s bucket: %v", config.BoltDB.BucketName, errB)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up bucket: %v", err)
	}
	return db, nil
}

// NewBoltBookStorage provides an instance of bolt-based book storage.
func NewBoltBookStorage(logger *zap.Logger, boltConfig *BoltDBConfig, client *bolt.DB, uids UIDHandler) *boltBookStorage {
	return &boltBookStorage{
		logger: logger,
		client: client,
		uids:   uids,
		config: boltConfig,
	}
}

// Close shuts down the bolt-based book storage.
func (bs *boltBookStorage) Close() error {
	return bs.client.Close()
}

func (bs *boltBookStorage) bucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket([]byte(bs.config.BucketName))
}

// validID reports whether id can address a stored book. Malformed
// ids cannot match any record so callers treat them as missing.
func (bs *boltBookStorage) validID(id string) bool {
	if bs.uids.IsValid(id, BookIDPrefix) {
		return true
	}
	bs.logger.Debug("boltdb: malformed book id", zap.String("book.id", id))
	return false
}

// Add inserts a new book record into boltdb store under a freshly generated id.
func (bs *boltBookStorage) Add(_ context.Context, candidate BookCandidate) (Book, error) {
	book := NewBook(bs.uids.Generate(BookIDPrefix), candidate)
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return Book{}, err
	}
	err = bs.client.Update(func(tx *bolt.Tx) error {
		b := bs.bucket(tx)
		if b.Get([]byte(book.ID)) != nil {
			return errBookIDCollision
		}
		return b.Put([]byte(book.ID), bookBytes)
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetOne retrieves a book record based on its ID from boltdb store.
func (bs *boltBookStorage) GetOne(_ context.Context, id string) (Book, bool, error) {
	if !bs.validID(id) {
		return Book{}, false, nil
	}
	var book Book
	var found bool
	err := bs.client.View(func(tx *bolt.Tx) error {
		result := bs.bucket(tx).Get([]byte(id))
		if result == nil {
			return nil
		}
		found = true
		return json.Unmarshal(result, &book)
	})
	if err != nil {
		return Book{}, false, err
	}
	return book, found, nil
}

// Delete removes a book record based on its ID from boltdb store.
func (bs *boltBookStorage) Delete(_ context.Context, id string) (bool, error) {
	if !bs.validID(id) {
		return false, nil
	}
	var deleted bool
	err := bs.client.Update(func(tx *bolt.Tx) error {
		b := bs.bucket(tx)
		if b.Get([]byte(id)) == nil {
			return nil
		}
		deleted = true
		return b.Delete([]byte(id))
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Update merges the candidate into an existing book record. Both the read
// and the write happen in the same transaction.
func (bs *boltBookStorage) Update(_ context.Context, id string, candidate BookCandidate) (Book, bool, error) {
	if !bs.validID(id) {
		return Book{}, false, nil
	}
	var book Book
	var found bool
	err := bs.client.Update(func(tx *bolt.Tx) error {
		b := bs.bucket(tx)
		result := b.Get([]byte(id))
		if result == nil {
			return nil
		}
		var current Book
		if err := json.Unmarshal(result, &current); err != nil {
			return err
		}
		book = current.Merge(candidate)
		bookBytes, err := json.Marshal(book)
		if err != nil {
			return err
		}
		found = true
		return b.Put([]byte(id), bookBytes)
	})
	if err != nil {
		return Book{}, false, err
	}
	return book, found, nil
}

// GetAll retrieves a list of all books stored in the bolt database.
func (bs *boltBookStorage) GetAll(_ context.Context) ([]Book, error) {
	books := []Book{}
	err := bs.client.View(func(tx *bolt.Tx) error {
		// Create a cursor on the books' bucket.
		c := bs.bucket(tx).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var book Book
			if err := json.Unmarshal(v, &book); err != nil {
				return err
			}
			books = append(books, book)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return books, nil
}

// Save writes a book under its own id, replacing any previous value.
// It is used to keep the bolt mirror in line with the primary storage.
func (bs *boltBookStorage) Save(_ context.Context, book Book) error {
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return err
	}
	return bs.client.Update(func(tx *bolt.Tx) error {
		return bs.bucket(tx).Put([]byte(book.ID), bookBytes)
	})
}

// Remove deletes a book by id. Removing a missing book is not an error.
func (bs *boltBookStorage) Remove(_ context.Context, id string) error {
	return bs.client.Update(func(tx *bolt.Tx) error {
		return bs.bucket(tx).Delete([]byte(id))
	})
}
