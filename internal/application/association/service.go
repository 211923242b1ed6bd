package association

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/secret"
)

// Service attaches and detaches login methods on existing identities.
type Service interface {
	AddAccount(ctx context.Context, identityID, emailAddress, password string) (*domain.Account, error)
	AddIntegration(ctx context.Context, identityID, platform, userID string) (*domain.Integration, error)
	RemoveIntegration(ctx context.Context, identityID, platform string) (*domain.Identity, error)
}

type accountStore interface {
	Create(ctx context.Context, accountID, emailAddress, passwordHashed string) (*domain.Account, error)
}

type identityStore interface {
	GetByID(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateByID(ctx context.Context, identityID string, ops []domain.PatchOp) (*domain.Identity, error)
}

type integrationStore interface {
	Create(ctx context.Context, identityID, platform, userID string) (*domain.Integration, error)
	DeleteByID(ctx context.Context, integrationID string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

type service struct {
	accounts     accountStore
	identities   identityStore
	integrations integrationStore
	events       eventPublisher
	log          *slog.Logger
}

type ServiceDeps struct {
	AccountRepo     accountStore
	IdentityRepo    identityStore
	IntegrationRepo integrationStore
	Events          eventPublisher // optional
	Logger          *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &service{
		accounts:     deps.AccountRepo,
		identities:   deps.IdentityRepo,
		integrations: deps.IntegrationRepo,
		events:       deps.Events,
		log:          log.With("service", "association"),
	}
}

func (s *service) AddAccount(ctx context.Context, identityID, emailAddress, password string) (*domain.Account, error) {
	if _, err := s.identities.GetByID(ctx, identityID); err != nil {
		return nil, err
	}
	hash, err := secret.Hash(password)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.Create(ctx, identityID, emailAddress, hash)
	if errors.Is(err, domain.ErrAlreadyExists) {
		s.log.InfoContext(ctx, "account already exists", "identity_id", identityID, "err", err)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewEvent(domain.EventAccountAdded, identityID), "")
	return acc, nil
}

func (s *service) AddIntegration(ctx context.Context, identityID, platform, userID string) (*domain.Integration, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if _, linked := identity.Integrations[platform]; linked {
		s.log.InfoContext(ctx, "platform already linked", "identity_id", identityID, "platform", platform)
		return nil, fmt.Errorf("identity %s already linked to %s: %w", identityID, platform, domain.ErrIDAlreadyExists)
	}

	integration, err := s.integrations.Create(ctx, identityID, platform, userID)
	if errors.Is(err, domain.ErrAlreadyExists) {
		s.log.InfoContext(ctx, "integration already registered", "platform", platform, "err", err)
		return nil, fmt.Errorf("integration %s: %w", domain.IntegrationID(platform, userID), domain.ErrIDAlreadyExists)
	}
	if err != nil {
		return nil, err
	}

	op := domain.PatchAddOp(domain.IntegrationPath(platform), userID)
	if _, err := s.identities.UpdateByID(ctx, identityID, []domain.PatchOp{op}); err != nil {
		s.log.ErrorContext(ctx, "link integration", "identity_id", identityID, "platform", platform, "err", err)
		if delErr := s.integrations.DeleteByID(ctx, integration.ID); delErr != nil {
			s.log.ErrorContext(ctx, "remove unlinked integration", "integration_id", integration.ID, "err", delErr)
		}
		return nil, err
	}
	s.publish(ctx, domain.NewEvent(domain.EventIntegrationAdded, identityID), platform)
	return integration, nil
}

func (s *service) RemoveIntegration(ctx context.Context, identityID, platform string) (*domain.Identity, error) {
	current, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	userID, linked := current.Integrations[platform]
	if !linked {
		s.log.InfoContext(ctx, "platform not linked", "identity_id", identityID, "platform", platform)
		return nil, fmt.Errorf("identity %s has no %s integration: %w", identityID, platform, domain.ErrIdentityNotFound)
	}

	// The remove only applies while the platform still maps to userID. If it
	// was removed or relinked in the meantime the update fails not-found.
	path := domain.IntegrationPath(platform)
	identity, err := s.identities.UpdateByID(ctx, identityID, []domain.PatchOp{
		domain.PatchTestOp(path, userID),
		domain.PatchRemoveOp(path),
	})
	if err != nil {
		return nil, err
	}
	if err := s.integrations.DeleteByID(ctx, domain.IntegrationID(platform, userID)); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewEvent(domain.EventIntegrationRemoved, identityID), platform)
	return identity, nil
}

func (s *service) publish(ctx context.Context, e domain.Event, platform string) {
	if s.events == nil {
		return
	}
	e.Platform = platform
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.WarnContext(ctx, "publish event", "type", e.Type, "err", err)
	}
}
