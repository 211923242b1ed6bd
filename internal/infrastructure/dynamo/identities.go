package dynamo

import (
	"context"
	"log/slog"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/id"
)

// IdentityRepo provides typed DynamoDB operations for the identities table.
type IdentityRepo struct {
	t table[domain.Identity]
}

func NewIdentityRepo(client API, tableName string) *IdentityRepo {
	return &IdentityRepo{t: table[domain.Identity]{
		client:   client,
		name:     tableName,
		entity:   "identity",
		notFound: domain.ErrIdentityNotFound,
	}}
}

// Create stores a new identity. An empty identityID generates one.
func (r *IdentityRepo) Create(ctx context.Context, identityID string) (*domain.Identity, error) {
	if identityID == "" {
		identityID = id.New()
	}
	identity := domain.NewIdentity(identityID)
	if err := r.t.create(ctx, identityID, identity); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "created identity", "identity_id", identityID)
	return identity, nil
}

func (r *IdentityRepo) GetByID(ctx context.Context, identityID string) (*domain.Identity, error) {
	return r.t.get(ctx, identityID)
}

func (r *IdentityRepo) UpdateByID(ctx context.Context, identityID string, ops []domain.PatchOp) (*domain.Identity, error) {
	identity, err := r.t.update(ctx, identityID, ops)
	if err != nil {
		return nil, err
	}
	if identity.Integrations == nil {
		identity.Integrations = map[string]string{}
	}
	return identity, nil
}

func (r *IdentityRepo) DeleteByID(ctx context.Context, identityID string) error {
	return r.t.delete(ctx, identityID)
}
