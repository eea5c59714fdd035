package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const HBooks string = "books"

var errBookIDCollision = errors.New("generated book id already exists")

// hsetIfExists replaces a hash field value only when the field already exists.
var hsetIfExists = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0
`)

type redisBookStorage struct {
	logger *zap.Logger
	client *redis.Client
	uids   UIDHandler
	key    string
}

// NewRedisBookStorage provides an instance of redis-based book storage.
// Books are saved as json values of a single hash keyed by their ids.
func NewRedisBookStorage(logger *zap.Logger, client *redis.Client, uids UIDHandler, key string) BookStorage {
	if key == "" {
		key = HBooks
	}
	return &redisBookStorage{
		logger: logger,
		client: client,
		uids:   uids,
		key:    key,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// validID reports whether id can address a stored book. Malformed
// ids cannot match any record so callers treat them as missing.
func (rs *redisBookStorage) validID(id string) bool {
	if rs.uids.IsValid(id, BookIDPrefix) {
		return true
	}
	rs.logger.Debug("redis: malformed book id", zap.String("book.id", id))
	return false
}

// Add inserts a new book record under a freshly generated id.
func (rs *redisBookStorage) Add(ctx context.Context, candidate BookCandidate) (Book, error) {
	book := NewBook(rs.uids.Generate(BookIDPrefix), candidate)
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return Book{}, err
	}
	ok, err := rs.client.HSetNX(ctx, rs.key, book.ID, bookBytes).Result()
	if err != nil {
		return Book{}, err
	}
	if !ok {
		return Book{}, errBookIDCollision
	}
	return book, nil
}

// GetOne retrieves a book record based on its ID.
func (rs *redisBookStorage) GetOne(ctx context.Context, id string) (Book, bool, error) {
	var book Book
	if !rs.validID(id) {
		return book, false, nil
	}
	bookJSONString, err := rs.client.HGet(ctx, rs.key, id).Result()
	if err == redis.Nil {
		return book, false, nil
	}
	if err != nil {
		return book, false, err
	}
	if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
		return Book{}, false, err
	}
	return book, true, nil
}

// Delete removes a book record based on its ID.
func (rs *redisBookStorage) Delete(ctx context.Context, id string) (bool, error) {
	if !rs.validID(id) {
		return false, nil
	}
	n, err := rs.client.HDel(ctx, rs.key, id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update merges the candidate into the existing book record. A record
// deleted between the read and the write is not recreated.
func (rs *redisBookStorage) Update(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error) {
	current, found, err := rs.GetOne(ctx, id)
	if err != nil || !found {
		return Book{}, false, err
	}
	book := current.Merge(candidate)
	bookBytes, err := json.Marshal(book)
	if err != nil {
		return Book{}, false, err
	}
	n, err := hsetIfExists.Run(ctx, rs.client, []string{rs.key}, id, bookBytes).Int()
	if err != nil {
		return Book{}, false, err
	}
	if n == 0 {
		rs.logger.Debug("redis: book removed during update", zap.String("book.id", id))
		return Book{}, false, nil
	}
	return book, true, nil
}

// GetAll retrieves a list of all books stored in the redis database.
func (rs *redisBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	mapBooks, err := rs.client.HVals(ctx, rs.key).Result()
	if err != nil {
		return nil, err
	}
	books := []Book{}
	for _, bookJSONString := range mapBooks {
		var book Book
		if err = json.Unmarshal([]byte(bookJSONString), &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}
