package dynamo

import (
	"context"
	"log/slog"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/id"
)

// ClientRepo provides typed DynamoDB operations for OAuth2 clients.
type ClientRepo struct {
	t table[domain.Client]
}

func NewClientRepo(client API, tableName string) *ClientRepo {
	return &ClientRepo{t: table[domain.Client]{
		client:   client,
		name:     tableName,
		entity:   "client",
		notFound: domain.ErrClientNotFound,
	}}
}

// Create stores a client with a generated id and the given hashed secret.
func (r *ClientRepo) Create(ctx context.Context, secretHashed string) (*domain.Client, error) {
	c := &domain.Client{ID: id.New(), Secret: secretHashed}
	if err := r.t.create(ctx, c.ID, c); err != nil {
		slog.ErrorContext(ctx, "client id collision", "client_id", c.ID, "err", err)
		return nil, err
	}
	slog.InfoContext(ctx, "created client", "client_id", c.ID)
	return c, nil
}

func (r *ClientRepo) GetByID(ctx context.Context, clientID string) (*domain.Client, error) {
	return r.t.get(ctx, clientID)
}

func (r *ClientRepo) UpdateByID(ctx context.Context, clientID string, ops []domain.PatchOp) (*domain.Client, error) {
	return r.t.update(ctx, clientID, ops)
}

func (r *ClientRepo) DeleteByID(ctx context.Context, clientID string) error {
	return r.t.delete(ctx, clientID)
}
