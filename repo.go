package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StorageClients holds the store clients opened for the configured
// driver. Only the fields needed by the driver (and the mirror) are set.
type StorageClients struct {
	storage BookStorage
	redis   *redis.Client
	closers []func() error
}

// Close releases every client opened by NewBookStorage.
func (sc *StorageClients) Close() error {
	var errs []error
	for i := len(sc.closers) - 1; i >= 0; i-- {
		if err := sc.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return fmt.Errorf("failed to close storage clients: %v", errs)
	}
	return nil
}

// NewBookStorage opens the client of the configured storage driver
// and provides the matching BookStorage implementation.
func NewBookStorage(logger *zap.Logger, config *Config, uids UIDHandler) (*StorageClients, error) {
	sc := &StorageClients{}
	switch config.Storage.Driver {
	case MongoDriver:
		client, err := GetMongoClient(config)
		if client != nil {
			sc.closers = append(sc.closers, func() error { return client.Disconnect(context.Background()) })
		}
		if err != nil {
			return sc, fmt.Errorf("failed to connect to mongodb server: %s", err)
		}
		collection := client.Database(config.MongoDB.Database).Collection(config.MongoDB.Collection)
		sc.storage = NewMongoBookStorage(logger, collection)

	case RedisDriver:
		client, err := sc.redisClient(config)
		if err != nil {
			return sc, err
		}
		sc.storage = NewRedisBookStorage(logger, client, uids, config.Redis.HashKey)

	case BoltDriver:
		client, err := GetBoltDBClient(config)
		if err != nil {
			return sc, fmt.Errorf("failed to open boltdb database: %s", err)
		}
		sc.closers = append(sc.closers, client.Close)
		sc.storage = NewBoltBookStorage(logger, &config.BoltDB, client, uids)

	case DynamoDriver:
		client, err := GetDynamoDBClient(config)
		if err != nil {
			return sc, fmt.Errorf("failed to connect to dynamodb: %s", err)
		}
		sc.storage = NewDynamoBookStorage(logger, client, uids, config.DynamoDB.TableName)

	default:
		return sc, fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
	}

	logger.Info("book storage ready", zap.String("storage.driver", config.Storage.Driver))
	return sc, nil
}

// redisClient returns the redis client, opening it on first use.
// The storage and the mirror queue share the same client.
func (sc *StorageClients) redisClient(config *Config) (*redis.Client, error) {
	if sc.redis != nil {
		return sc.redis, nil
	}
	client, err := GetRedisClient(config)
	sc.closers = append(sc.closers, client.Close)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis server: %s", err)
	}
	sc.redis = client
	return client, nil
}
