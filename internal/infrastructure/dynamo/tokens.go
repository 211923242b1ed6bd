package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/guardian-api/internal/domain"
)

const fieldRefreshToken = "refreshToken"

// TokenRepo records issued refresh tokens.
// PK: "{identityId}:{iat}". expiresAt is the table's TTL attribute.
type TokenRepo struct {
	t   table[domain.Token]
	now func() time.Time
}

func NewTokenRepo(client API, tableName string) *TokenRepo {
	return &TokenRepo{
		t: table[domain.Token]{
			client:   client,
			name:     tableName,
			entity:   "token",
			notFound: domain.ErrTokenNotFound,
		},
		now: time.Now,
	}
}

func (r *TokenRepo) Create(ctx context.Context, identityID, refreshToken string, iat int64) (*domain.Token, error) {
	tok := domain.NewToken(identityID, refreshToken, iat)
	tok.ExpiresAt = r.now().Add(domain.TokenTTL).Unix()
	if err := r.t.upsert(ctx, tok); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "stored refresh token", "identity_id", identityID, "iat", iat)
	return tok, nil
}

func (r *TokenRepo) GetByID(ctx context.Context, identityID string, iat int64) (*domain.Token, error) {
	tok, err := r.t.get(ctx, domain.TokenID(identityID, iat))
	if err != nil {
		return nil, err
	}
	if tok.ExpiresAt != 0 && tok.ExpiresAt <= r.now().Unix() {
		return nil, fmt.Errorf("token %s expired: %w", tok.ID, domain.ErrTokenNotFound)
	}
	return tok, nil
}

// Consume deletes the record only if it still holds refreshToken and has not
// expired. Of several concurrent calls for one record at most one succeeds;
// the rest get ErrTokenNotFound.
func (r *TokenRepo) Consume(ctx context.Context, identityID string, iat int64, refreshToken string) error {
	tokenID := domain.TokenID(identityID, iat)
	out, err := r.t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.t.name),
		Key:                 strKey(fieldID, tokenID),
		ConditionExpression: aws.String("attribute_exists(#pk) AND #rt = :rt AND #exp > :now"),
		ExpressionAttributeNames: map[string]string{
			"#pk":  fieldID,
			"#rt":  fieldRefreshToken,
			"#exp": fieldExpiresAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rt":  &types.AttributeValueMemberS{Value: refreshToken},
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(r.now().Unix(), 10)},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("token %s already redeemed: %w", tokenID, domain.ErrTokenNotFound)
	}
	if err != nil {
		return fmt.Errorf("consume token %s: %w", tokenID, err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return fmt.Errorf("token %s: %w", tokenID, domain.ErrTokenNotFound)
	}
	return nil
}
