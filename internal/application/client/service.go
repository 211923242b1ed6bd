package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/secret"
)

// Service manages OAuth2 client credentials. Secrets are stored hashed and
// the plaintext is only ever returned by Create and RotateSecret.
type Service interface {
	Create(ctx context.Context) (*domain.Client, string, error)
	Get(ctx context.Context, clientID string) (*domain.Client, error)
	Delete(ctx context.Context, clientID string) error
	RotateSecret(ctx context.Context, clientID string) (*domain.Client, string, error)
	Authenticate(ctx context.Context, clientID, clientSecret string) (*domain.Client, error)
}

type clientStore interface {
	Create(ctx context.Context, secretHashed string) (*domain.Client, error)
	GetByID(ctx context.Context, clientID string) (*domain.Client, error)
	UpdateByID(ctx context.Context, clientID string, ops []domain.PatchOp) (*domain.Client, error)
	DeleteByID(ctx context.Context, clientID string) error
}

type service struct {
	repo clientStore
	log  *slog.Logger
}

type ServiceDeps struct {
	ClientRepo clientStore
	Logger     *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &service{repo: deps.ClientRepo, log: log.With("service", "client")}
}

func (s *service) Create(ctx context.Context) (*domain.Client, string, error) {
	plain, hash, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	c, err := s.repo.Create(ctx, hash)
	if err != nil {
		return nil, "", err
	}
	return c, plain, nil
}

func (s *service) Get(ctx context.Context, clientID string) (*domain.Client, error) {
	return s.repo.GetByID(ctx, clientID)
}

func (s *service) Delete(ctx context.Context, clientID string) error {
	return s.repo.DeleteByID(ctx, clientID)
}

// RotateSecret replaces the client's secret. The old secret stops working
// immediately.
func (s *service) RotateSecret(ctx context.Context, clientID string) (*domain.Client, string, error) {
	plain, hash, err := newSecret()
	if err != nil {
		return nil, "", err
	}
	c, err := s.repo.UpdateByID(ctx, clientID, []domain.PatchOp{domain.PatchReplaceOp(domain.PathSecret, hash)})
	if err != nil {
		return nil, "", err
	}
	s.log.InfoContext(ctx, "rotated client secret", "client_id", clientID)
	return c, plain, nil
}

func newSecret() (plain, hash string, err error) {
	plain, err = secret.RandomString(secret.DefaultLength)
	if err != nil {
		return "", "", err
	}
	hash, err = secret.Hash(plain)
	if err != nil {
		return "", "", err
	}
	return plain, hash, nil
}

func (s *service) Authenticate(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	c, err := s.repo.GetByID(ctx, clientID)
	if errors.Is(err, domain.ErrClientNotFound) {
		s.log.InfoContext(ctx, "unknown client", "client_id", clientID)
		return nil, fmt.Errorf("client credentials: %w", domain.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !secret.Verify(clientSecret, c.Secret) {
		s.log.InfoContext(ctx, "client secret mismatch", "client_id", clientID)
		return nil, fmt.Errorf("client credentials: %w", domain.ErrInvalidCredentials)
	}
	return c, nil
}
