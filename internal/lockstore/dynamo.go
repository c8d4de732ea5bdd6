package lockstore

import (
	"context"
	"errors"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps locks in a DynamoDB table whose hash key is "path" and
// which has a global secondary index keyed by "id".
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	idIndex   string
}

// NewDynamoStore creates a store for the given table and id index
func NewDynamoStore(client DynamoAPI, tableName, idIndex string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		idIndex:   idIndex,
	}
}

func pathKey(path string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"path": &types.AttributeValueMemberS{Value: path},
	}
}

func (s *DynamoStore) GetByPath(ctx context.Context, path string) (Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            pathKey(path),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Record{}, &Error{Op: "GetItem", Err: err}
	}
	if out.Item == nil {
		return Record{}, ErrNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return Record{}, &Error{Op: "GetItem", Err: err}
	}
	return rec, nil
}

func (s *DynamoStore) GetByID(ctx context.Context, id string) (Record, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(s.idIndex),
		KeyConditionExpression: aws.String("#id = :hkey"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hkey": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return Record{}, &Error{Op: "Query", Err: err}
	}
	if len(out.Items) == 0 {
		return Record{}, ErrNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return Record{}, &Error{Op: "Query", Err: err}
	}
	return rec, nil
}

func (s *DynamoStore) Scan(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
			TableName: aws.String(s.tableName),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(Record{}, &Error{Op: "Scan", Err: err})
				return
			}

			var records []Record
			if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
				yield(Record{}, &Error{Op: "Scan", Err: err})
				return
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Create writes rec with a condition on the path being unused, so two
// concurrent creates cannot both succeed.
func (s *DynamoStore) Create(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return &Error{Op: "PutItem", Err: err}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#path)"),
		ExpressionAttributeNames: map[string]string{
			"#path": "path",
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return &Error{Op: "PutItem", Err: err}
	}
	return nil
}

func (s *DynamoStore) DeleteByPath(ctx context.Context, path string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       pathKey(path),
	})
	if err != nil {
		return &Error{Op: "DeleteItem", Err: err}
	}
	return nil
}
