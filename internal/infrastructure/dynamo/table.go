package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/guardian-api/internal/domain"
)

// table implements the id-keyed CRUD shared by every entity repo.
// notFound is the entity-specific error returned for missing rows.
type table[T any] struct {
	client   API
	name     string
	entity   string
	notFound error
}

func (t table[T]) get(ctx context.Context, id string) (*T, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            strKey(fieldID, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", t.entity, id, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%s %s: %w", t.entity, id, t.notFound)
	}
	var v T
	if err := attributevalue.UnmarshalMap(out.Item, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", t.entity, err)
	}
	return &v, nil
}

// create writes item only if no row with the same id exists.
func (t table[T]) create(ctx context.Context, id string, item *T) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t.entity, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(t.name),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldID},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("%s %s: %w", t.entity, id, domain.ErrIDAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("create %s %s: %w", t.entity, id, err)
	}
	return nil
}

// upsert writes item unconditionally, replacing any existing row.
func (t table[T]) upsert(ctx context.Context, item *T) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", t.entity, err)
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("upsert %s: %w", t.entity, err)
	}
	return nil
}

func (t table[T]) update(ctx context.Context, id string, ops []domain.PatchOp) (*T, error) {
	ue, err := buildUpdateExpr(ops)
	if err != nil {
		return nil, err
	}
	out, err := t.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       strKey(fieldID, id),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(ue.Condition),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("%s %s: %w", t.entity, id, t.notFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", t.entity, id, err)
	}
	var v T
	if err := attributevalue.UnmarshalMap(out.Attributes, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", t.entity, err)
	}
	return &v, nil
}

// delete removes the row. Deleting a missing row is not an error.
func (t table[T]) delete(ctx context.Context, id string) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       strKey(fieldID, id),
	})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.entity, id, err)
	}
	return nil
}
