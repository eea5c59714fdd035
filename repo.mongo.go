package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const defaultMongoConnectTimeout = 10 * time.Second

// bookDocument is the representation of a book inside a mongodb collection.
type bookDocument struct {
	ID            primitive.ObjectID `bson:"_id"`
	Title         string             `bson:"title"`
	Author        string             `bson:"author"`
	PublishedDate *time.Time         `bson:"publishedDate,omitempty"`
}

func (d bookDocument) toBook() Book {
	book := Book{ID: d.ID.Hex(), Title: d.Title, Author: d.Author}
	if d.PublishedDate != nil {
		book.PublishedDate = NewDate(*d.PublishedDate)
	}
	return book
}

func dateToTime(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

type mongoBookStorage struct {
	logger     *zap.Logger
	collection *mongo.Collection
}

// NewMongoBookStorage provides an instance of mongodb-based book storage.
func NewMongoBookStorage(logger *zap.Logger, collection *mongo.Collection) BookStorage {
	return &mongoBookStorage{
		logger:     logger,
		collection: collection,
	}
}

// GetMongoClient provides a ready to use mongodb client.
func GetMongoClient(config *Config) (*mongo.Client, error) {
	timeout := config.MongoDB.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultMongoConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.MongoDB.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %v", err)
	}

	// test connection.
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// parseObjectID converts a path id into an ObjectID. Malformed
// ids cannot match any document so callers treat them as missing.
func (ms *mongoBookStorage) parseObjectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		ms.logger.Debug("mongodb: malformed book id", zap.String("book.id", id), zap.Error(err))
		return primitive.NilObjectID, false
	}
	return oid, true
}

// Add inserts a new book record. The identifier is assigned here.
func (ms *mongoBookStorage) Add(ctx context.Context, candidate BookCandidate) (Book, error) {
	doc := bookDocument{
		ID:            primitive.NewObjectID(),
		Title:         candidate.Title,
		Author:        candidate.Author,
		PublishedDate: dateToTime(candidate.PublishedDate),
	}
	if _, err := ms.collection.InsertOne(ctx, doc); err != nil {
		return Book{}, err
	}
	return doc.toBook(), nil
}

// GetOne retrieves a book record based on its ID.
func (ms *mongoBookStorage) GetOne(ctx context.Context, id string) (Book, bool, error) {
	oid, ok := ms.parseObjectID(id)
	if !ok {
		return Book{}, false, nil
	}
	var doc bookDocument
	err := ms.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Book{}, false, nil
	}
	if err != nil {
		return Book{}, false, err
	}
	return doc.toBook(), true, nil
}

// Delete removes a book record based on its ID.
func (ms *mongoBookStorage) Delete(ctx context.Context, id string) (bool, error) {
	oid, ok := ms.parseObjectID(id)
	if !ok {
		return false, nil
	}
	res, err := ms.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// Update sets the provided attributes on an existing book record and
// returns the record after the update. It never inserts.
func (ms *mongoBookStorage) Update(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error) {
	oid, ok := ms.parseObjectID(id)
	if !ok {
		return Book{}, false, nil
	}

	set := bson.D{}
	if candidate.Title != "" {
		set = append(set, bson.E{Key: "title", Value: candidate.Title})
	}
	if candidate.Author != "" {
		set = append(set, bson.E{Key: "author", Value: candidate.Author})
	}
	update := bson.D{}
	switch {
	case candidate.ClearPublishedDate:
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "publishedDate", Value: ""}}})
	case candidate.PublishedDate != nil:
		set = append(set, bson.E{Key: "publishedDate", Value: candidate.PublishedDate.Time})
	}
	// mongodb rejects an empty $set.
	if len(set) != 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(update) == 0 {
		return ms.GetOne(ctx, id)
	}

	var doc bookDocument
	err := ms.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Book{}, false, nil
	}
	if err != nil {
		return Book{}, false, err
	}
	return doc.toBook(), true, nil
}

// GetAll retrieves a list of all books stored in the collection.
func (ms *mongoBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	cursor, err := ms.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	docs := []bookDocument{}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	books := make([]Book, 0, len(docs))
	for _, doc := range docs {
		books = append(books, doc.toBook())
	}
	return books, nil
}
