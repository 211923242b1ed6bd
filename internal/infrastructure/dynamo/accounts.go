package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/id"
)

// AccountRepo stores accounts in one table and enforces email uniqueness
// through a second table keyed by the lower-cased address. Both tables are
// always written in the same transaction.
type AccountRepo struct {
	t          table[domain.Account]
	emailTable string
}

type emailLock struct {
	EmailAddress string `dynamodbav:"emailAddress"`
	AccountID    string `dynamodbav:"accountId"`
}

func NewAccountRepo(client API, tableName, emailTableName string) *AccountRepo {
	return &AccountRepo{
		t: table[domain.Account]{
			client:   client,
			name:     tableName,
			entity:   "account",
			notFound: domain.ErrAccountNotFound,
		},
		emailTable: emailTableName,
	}
}

func emailKey(emailAddress string) string {
	return strings.ToLower(strings.TrimSpace(emailAddress))
}

// Create stores a new account. An empty accountID generates one.
func (r *AccountRepo) Create(ctx context.Context, accountID, emailAddress, passwordHashed string) (*domain.Account, error) {
	if accountID == "" {
		accountID = id.New()
	}
	acc := &domain.Account{ID: accountID, EmailAddress: emailAddress, PasswordHashed: passwordHashed}
	item, err := attributevalue.MarshalMap(acc)
	if err != nil {
		return nil, fmt.Errorf("marshal account: %w", err)
	}
	lock, err := attributevalue.MarshalMap(emailLock{EmailAddress: emailKey(emailAddress), AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("marshal email lock: %w", err)
	}

	_, err = r.t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.t.name),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldID},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.emailTable),
				Item:                     lock,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldEmailAddress},
			}},
		},
	})
	if failed := cancelledAt(err); failed != nil {
		switch {
		case failedAt(failed, 0):
			return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrIDAlreadyExists)
		case failedAt(failed, 1):
			return nil, fmt.Errorf("account %s: %w", emailAddress, domain.ErrEmailAddressAlreadyExists)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create account %s: %w", accountID, err)
	}
	slog.InfoContext(ctx, "created account", "account_id", accountID)
	return acc, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.t.get(ctx, accountID)
}

// GetByEmailAddress resolves the address through the email table.
func (r *AccountRepo) GetByEmailAddress(ctx context.Context, emailAddress string) (*domain.Account, error) {
	out, err := r.t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailTable),
		Key:            strKey(fieldEmailAddress, emailKey(emailAddress)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get email lock: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("account %s: %w", emailAddress, domain.ErrAccountNotFound)
	}
	var lock emailLock
	if err := attributevalue.UnmarshalMap(out.Item, &lock); err != nil {
		return nil, fmt.Errorf("unmarshal email lock: %w", err)
	}
	return r.t.get(ctx, lock.AccountID)
}

// UpdateByID applies ops to the account. When an op sets a new email
// address the lock row moves with it inside one transaction.
func (r *AccountRepo) UpdateByID(ctx context.Context, accountID string, ops []domain.PatchOp) (*domain.Account, error) {
	newEmail, changesEmail := emailFromOps(ops)
	if !changesEmail {
		return r.t.update(ctx, accountID, ops)
	}

	current, err := r.t.get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if emailKey(current.EmailAddress) == emailKey(newEmail) {
		return r.t.update(ctx, accountID, ops)
	}

	ue, err := buildUpdateExpr(ops)
	if err != nil {
		return nil, err
	}
	ue.Names["#cur"] = fieldEmailAddress
	if ue.Values == nil {
		ue.Values = map[string]types.AttributeValue{}
	}
	ue.Values[":cur"] = &types.AttributeValueMemberS{Value: current.EmailAddress}

	lock, err := attributevalue.MarshalMap(emailLock{EmailAddress: emailKey(newEmail), AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("marshal email lock: %w", err)
	}

	_, err = r.t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:                 aws.String(r.t.name),
				Key:                       strKey(fieldID, accountID),
				UpdateExpression:          aws.String(ue.Expr),
				ConditionExpression:       aws.String(ue.Condition + " AND #cur = :cur"),
				ExpressionAttributeNames:  ue.Names,
				ExpressionAttributeValues: ue.Values,
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.emailTable),
				Key:       strKey(fieldEmailAddress, emailKey(current.EmailAddress)),
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.emailTable),
				Item:                     lock,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldEmailAddress},
			}},
		},
	})
	if failed := cancelledAt(err); failed != nil {
		if failedAt(failed, 2) {
			return nil, fmt.Errorf("account %s: %w", newEmail, domain.ErrEmailAddressAlreadyExists)
		}
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update account %s: %w", accountID, err)
	}
	return r.t.get(ctx, accountID)
}

// DeleteByID removes the account and its email lock. Missing accounts are ignored.
func (r *AccountRepo) DeleteByID(ctx context.Context, accountID string) error {
	acc, err := r.t.get(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.t.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: aws.String(r.t.name),
				Key:       strKey(fieldID, accountID),
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.emailTable),
				Key:       strKey(fieldEmailAddress, emailKey(acc.EmailAddress)),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("delete account %s: %w", accountID, err)
	}
	return nil
}

// emailFromOps returns the last email address set by ops, if any.
func emailFromOps(ops []domain.PatchOp) (string, bool) {
	var (
		email string
		found bool
	)
	for _, op := range ops {
		if op.Path != domain.PathEmailAddress || op.Op == domain.PatchRemove {
			continue
		}
		if s, ok := op.Value.(string); ok {
			email, found = s, true
		}
	}
	return email, found
}
