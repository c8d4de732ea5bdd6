package lockstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is a table keyed by the "path" string attribute. Scan returns
// pages of at most pageSize items to exercise continuation handling.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
}

func newFakeDynamo(pageSize int) *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue), pageSize: pageSize}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[stringAttr(in.Key, "path")]}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if aws.ToString(in.KeyConditionExpression) != "#id = :hkey" || in.ExpressionAttributeNames["#id"] != "id" {
		return nil, errors.New("unexpected key condition")
	}
	id := stringAttr(in.ExpressionAttributeValues, ":hkey")

	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.QueryOutput{}
	for _, item := range f.items {
		if stringAttr(item, "id") == id {
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	paths := make([]string, 0, len(f.items))
	for p := range f.items {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := stringAttr(in.ExclusiveStartKey, "path")
		start = sort.SearchStrings(paths, after)
		if start < len(paths) && paths[start] == after {
			start++
		}
	}

	out := &dynamodb.ScanOutput{}
	end := min(start+f.pageSize, len(paths))
	for _, p := range paths[start:end] {
		out.Items = append(out.Items, f.items[p])
	}
	if end < len(paths) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"path": &types.AttributeValueMemberS{Value: paths[end-1]},
		}
	}
	return out, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := stringAttr(in.Item, "path")
	if _, exists := f.items[path]; exists && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	f.items[path] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, stringAttr(in.Key, "path"))
	return &dynamodb.DeleteItemOutput{}, nil
}
