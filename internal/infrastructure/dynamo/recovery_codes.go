package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/guardian-api/internal/domain"
)

// RecoveryCodeRepo manages single-use recovery codes.
// PK: "{type}:{identityId}". expiresAt is the table's TTL attribute.
type RecoveryCodeRepo struct {
	t   table[domain.RecoveryCode]
	now func() time.Time
}

func NewRecoveryCodeRepo(client API, tableName string) *RecoveryCodeRepo {
	return &RecoveryCodeRepo{
		t: table[domain.RecoveryCode]{
			client:   client,
			name:     tableName,
			entity:   "recovery code",
			notFound: domain.ErrRecoveryCodeNotFound,
		},
		now: time.Now,
	}
}

// Create upserts the code, replacing any outstanding code of the same type.
func (r *RecoveryCodeRepo) Create(ctx context.Context, identityID, codeType, code string) (*domain.RecoveryCode, error) {
	rc := domain.NewRecoveryCode(identityID, codeType, code)
	rc.ExpiresAt = r.now().Add(domain.RecoveryCodeTTL).Unix()
	if err := r.t.upsert(ctx, rc); err != nil {
		return nil, err
	}
	return rc, nil
}

// GetByID returns the outstanding code. TTL deletion can lag by hours, so
// rows past expiresAt are reported as missing here.
func (r *RecoveryCodeRepo) GetByID(ctx context.Context, identityID, codeType string) (*domain.RecoveryCode, error) {
	rc, err := r.t.get(ctx, domain.RecoveryCodeID(identityID, codeType))
	if err != nil {
		return nil, err
	}
	if rc.ExpiresAt != 0 && rc.ExpiresAt <= r.now().Unix() {
		return nil, fmt.Errorf("recovery code %s expired: %w", rc.ID, domain.ErrRecoveryCodeNotFound)
	}
	return rc, nil
}

func (r *RecoveryCodeRepo) DeleteByID(ctx context.Context, identityID, codeType string) error {
	return r.t.delete(ctx, domain.RecoveryCodeID(identityID, codeType))
}
