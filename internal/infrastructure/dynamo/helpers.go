package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/guardian-api/internal/domain"
)

// API is the subset of *dynamodb.Client the repositories use.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Every table is keyed by a single string attribute named "id", except the
// account email index which is keyed by the lower-cased address.
const (
	fieldID           = "id"
	fieldEmailAddress = "emailAddress"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// updateExpr is a ready-to-send UpdateItem expression built from patch ops.
type updateExpr struct {
	Expr      string
	Condition string
	Names     map[string]string
	Values    map[string]types.AttributeValue
}

// buildUpdateExpr converts an ordered list of patch ops into SET/REMOVE
// clauses. The condition always requires the item to exist; replace and
// remove additionally require the target path to exist, and test requires it
// to equal the op's value.
func buildUpdateExpr(ops []domain.PatchOp) (updateExpr, error) {
	ue := updateExpr{
		Names:  map[string]string{"#pk": fieldID},
		Values: map[string]types.AttributeValue{},
	}
	if len(ops) == 0 {
		return updateExpr{}, fmt.Errorf("no fields to update")
	}

	nameKeys := map[string]string{}
	alias := func(segment string) string {
		if k, ok := nameKeys[segment]; ok {
			return k
		}
		k := fmt.Sprintf("#f%d", len(nameKeys))
		nameKeys[segment] = k
		ue.Names[k] = segment
		return k
	}

	var sets, removes []string
	conditions := []string{"attribute_exists(#pk)"}
	for i, op := range ops {
		segments := domain.PathSegments(op.Path)
		if len(segments) == 0 {
			return updateExpr{}, fmt.Errorf("patch op %d: empty path: %w", i, domain.ErrBadRequest)
		}
		aliases := make([]string, len(segments))
		for j, s := range segments {
			aliases[j] = alias(s)
		}
		path := strings.Join(aliases, ".")

		switch op.Op {
		case domain.PatchAdd, domain.PatchReplace:
			valueKey := fmt.Sprintf(":v%d", len(ue.Values))
			av, err := attributevalue.Marshal(op.Value)
			if err != nil {
				return updateExpr{}, fmt.Errorf("marshal field %s: %w", op.Path, err)
			}
			ue.Values[valueKey] = av
			sets = append(sets, fmt.Sprintf("%s = %s", path, valueKey))
			if op.Op == domain.PatchReplace {
				conditions = append(conditions, fmt.Sprintf("attribute_exists(%s)", path))
			}
		case domain.PatchRemove:
			removes = append(removes, path)
			conditions = append(conditions, fmt.Sprintf("attribute_exists(%s)", path))
		case domain.PatchTest:
			valueKey := fmt.Sprintf(":v%d", len(ue.Values))
			av, err := attributevalue.Marshal(op.Value)
			if err != nil {
				return updateExpr{}, fmt.Errorf("marshal field %s: %w", op.Path, err)
			}
			ue.Values[valueKey] = av
			conditions = append(conditions, fmt.Sprintf("%s = %s", path, valueKey))
		default:
			return updateExpr{}, fmt.Errorf("patch op %d: unknown op %q: %w", i, op.Op, domain.ErrBadRequest)
		}
	}

	if len(sets) == 0 && len(removes) == 0 {
		return updateExpr{}, fmt.Errorf("patch only tests, nothing to update: %w", domain.ErrBadRequest)
	}
	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}
	ue.Expr = strings.Join(clauses, " ")
	ue.Condition = strings.Join(conditions, " AND ")
	if len(ue.Values) == 0 {
		// DynamoDB rejects an empty ExpressionAttributeValues map.
		ue.Values = nil
	}
	return ue, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// cancelledAt reports which items of a cancelled transaction failed their
// condition check. It returns nil when err is not a cancellation.
func cancelledAt(err error) []bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	failed := make([]bool, len(tce.CancellationReasons))
	for i, r := range tce.CancellationReasons {
		failed[i] = r.Code != nil && *r.Code == "ConditionalCheckFailed"
	}
	return failed
}

func failedAt(failed []bool, i int) bool {
	return i < len(failed) && failed[i]
}
