package dynamo

import (
	"context"
	"log/slog"

	"github.com/guardian-api/internal/domain"
)

// IntegrationRepo provides typed DynamoDB operations for the integrations table.
// Rows are keyed by domain.IntegrationID(platform, userID).
type IntegrationRepo struct {
	t table[domain.Integration]
}

func NewIntegrationRepo(client API, tableName string) *IntegrationRepo {
	return &IntegrationRepo{t: table[domain.Integration]{
		client:   client,
		name:     tableName,
		entity:   "integration",
		notFound: domain.ErrIntegrationNotFound,
	}}
}

func (r *IntegrationRepo) Create(ctx context.Context, identityID, platform, userID string) (*domain.Integration, error) {
	integration := domain.NewIntegration(identityID, platform, userID)
	if err := r.t.create(ctx, integration.ID, integration); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "created integration", "integration_id", integration.ID, "identity_id", identityID)
	return integration, nil
}

func (r *IntegrationRepo) GetByID(ctx context.Context, integrationID string) (*domain.Integration, error) {
	return r.t.get(ctx, integrationID)
}

func (r *IntegrationRepo) DeleteByID(ctx context.Context, integrationID string) error {
	return r.t.delete(ctx, integrationID)
}
