package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const dynamoTableWaitTimeout = 2 * time.Minute

// DynamoAPI is the subset of the dynamodb client used by the book storage.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// bookItem is the representation of a book inside a dynamodb table.
// The published date is kept as its ISO-8601 string.
type bookItem struct {
	ID            string `dynamodbav:"id"`
	Title         string `dynamodbav:"title"`
	Author        string `dynamodbav:"author"`
	PublishedDate string `dynamodbav:"publishedDate,omitempty"`
}

func newBookItem(book Book) bookItem {
	item := bookItem{ID: book.ID, Title: book.Title, Author: book.Author}
	if book.PublishedDate != nil {
		item.PublishedDate = book.PublishedDate.String()
	}
	return item
}

func (it bookItem) toBook() (Book, error) {
	book := Book{ID: it.ID, Title: it.Title, Author: it.Author}
	if it.PublishedDate != "" {
		d, err := ParseDate(it.PublishedDate)
		if err != nil {
			return Book{}, err
		}
		book.PublishedDate = d
	}
	return book, nil
}

type dynamoBookStorage struct {
	logger *zap.Logger
	client DynamoAPI
	uids   UIDHandler
	table  string
}

// NewDynamoBookStorage provides an instance of dynamodb-based book storage.
func NewDynamoBookStorage(logger *zap.Logger, client DynamoAPI, uids UIDHandler, table string) BookStorage {
	return &dynamoBookStorage{
		logger: logger,
		client: client,
		uids:   uids,
		table:  table,
	}
}

// GetDynamoDBClient provides a ready to use dynamodb client and makes
// sure the books table exists. Static credentials and a custom endpoint
// are only used when configured (local development).
func GetDynamoDBClient(config *Config) (*dynamodb.Client, error) {
	ctx := context.Background()
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.DynamoDB.Region)}
	if config.DynamoDB.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.DynamoDB.AccessKeyID, config.DynamoDB.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws configuration: %v", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if config.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.DynamoDB.Endpoint)
		}
	})

	if err = EnsureDynamoTable(ctx, client, config.DynamoDB.TableName); err != nil {
		return client, fmt.Errorf("failed to set up table: %v", err)
	}
	return client, nil
}

// EnsureDynamoTable creates the books table keyed by `id` if it does not exist yet.
func EnsureDynamoTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return err
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return err
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, dynamoTableWaitTimeout)
}

func (ds *dynamoBookStorage) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// validID reports whether id can address a stored book. Malformed ids
// never reach dynamodb, which rejects oversized keys with an error.
func (ds *dynamoBookStorage) validID(id string) bool {
	if ds.uids.IsValid(id, BookIDPrefix) {
		return true
	}
	ds.logger.Debug("dynamodb: malformed book id", zap.String("book.id", id))
	return false
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Add inserts a new book record under a freshly generated id.
func (ds *dynamoBookStorage) Add(ctx context.Context, candidate BookCandidate) (Book, error) {
	book := NewBook(ds.uids.Generate(BookIDPrefix), candidate)
	item, err := attributevalue.MarshalMap(newBookItem(book))
	if err != nil {
		return Book{}, fmt.Errorf("marshal item: %w", err)
	}
	_, err = ds.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(ds.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if isConditionalCheckFailed(err) {
		return Book{}, errBookIDCollision
	}
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// GetOne retrieves a book record based on its ID.
func (ds *dynamoBookStorage) GetOne(ctx context.Context, id string) (Book, bool, error) {
	if !ds.validID(id) {
		return Book{}, false, nil
	}
	out, err := ds.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.table),
		Key:            ds.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Book{}, false, err
	}
	if out.Item == nil {
		return Book{}, false, nil
	}
	return ds.unmarshal(out.Item)
}

// Delete removes a book record based on its ID.
func (ds *dynamoBookStorage) Delete(ctx context.Context, id string) (bool, error) {
	if !ds.validID(id) {
		return false, nil
	}
	out, err := ds.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(ds.table),
		Key:          ds.key(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}
	return len(out.Attributes) > 0, nil
}

// Update sets the provided attributes on an existing book record and
// returns the record after the update. It never inserts.
func (ds *dynamoBookStorage) Update(ctx context.Context, id string, candidate BookCandidate) (Book, bool, error) {
	if !ds.validID(id) {
		return Book{}, false, nil
	}
	var sets []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	add := func(attr, value string) {
		names["#"+attr] = attr
		values[":"+attr] = &types.AttributeValueMemberS{Value: value}
		sets = append(sets, fmt.Sprintf("#%s = :%s", attr, attr))
	}
	if candidate.Title != "" {
		add("title", candidate.Title)
	}
	if candidate.Author != "" {
		add("author", candidate.Author)
	}
	var remove string
	switch {
	case candidate.ClearPublishedDate:
		names["#publishedDate"] = "publishedDate"
		remove = "REMOVE #publishedDate"
	case candidate.PublishedDate != nil:
		add("publishedDate", candidate.PublishedDate.String())
	}
	if len(sets) == 0 && remove == "" {
		return ds.GetOne(ctx, id)
	}

	var clauses []string
	if len(sets) != 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if remove != "" {
		clauses = append(clauses, remove)
	}
	if len(values) == 0 {
		// dynamodb rejects an empty values map.
		values = nil
	}

	out, err := ds.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(ds.table),
		Key:                       ds.key(id),
		UpdateExpression:          aws.String(strings.Join(clauses, " ")),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionalCheckFailed(err) {
		return Book{}, false, nil
	}
	if err != nil {
		return Book{}, false, err
	}
	return ds.unmarshal(out.Attributes)
}

// GetAll scans the whole table page by page.
func (ds *dynamoBookStorage) GetAll(ctx context.Context) ([]Book, error) {
	books := []Book{}
	paginator := dynamodb.NewScanPaginator(ds.client, &dynamodb.ScanInput{
		TableName:      aws.String(ds.table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []bookItem
		if err = attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		for _, item := range items {
			book, err := item.toBook()
			if err != nil {
				return nil, err
			}
			books = append(books, book)
		}
	}
	return books, nil
}

func (ds *dynamoBookStorage) unmarshal(av map[string]types.AttributeValue) (Book, bool, error) {
	var item bookItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return Book{}, false, fmt.Errorf("unmarshal item: %w", err)
	}
	book, err := item.toBook()
	if err != nil {
		return Book{}, false, err
	}
	return book, true, nil
}
