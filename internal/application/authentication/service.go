package authentication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/secret"
)

// Service bootstraps new identities and authenticates existing ones.
type Service interface {
	RegisterWithAccount(ctx context.Context, emailAddress, password string) (*domain.Account, error)
	RegisterWithIntegration(ctx context.Context, platformUserID, platform string) (*domain.Integration, error)
	LoginWithAccount(ctx context.Context, emailAddress, password string) (*domain.Account, error)
	LoginWithIntegration(ctx context.Context, platformUserID, platform string) (*domain.Integration, error)
}

type accountStore interface {
	Create(ctx context.Context, accountID, emailAddress, passwordHashed string) (*domain.Account, error)
	GetByEmailAddress(ctx context.Context, emailAddress string) (*domain.Account, error)
	DeleteByID(ctx context.Context, accountID string) error
}

type identityStore interface {
	Create(ctx context.Context, identityID string) (*domain.Identity, error)
	GetByID(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateByID(ctx context.Context, identityID string, ops []domain.PatchOp) (*domain.Identity, error)
	DeleteByID(ctx context.Context, identityID string) error
}

type integrationStore interface {
	Create(ctx context.Context, identityID, platform, userID string) (*domain.Integration, error)
	GetByID(ctx context.Context, integrationID string) (*domain.Integration, error)
	DeleteByID(ctx context.Context, integrationID string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// compensationRecorder counts rollbacks of partially applied registrations.
type compensationRecorder interface {
	Compensation(operation string)
}

type service struct {
	accounts     accountStore
	identities   identityStore
	integrations integrationStore
	events       eventPublisher
	metrics      compensationRecorder
	log          *slog.Logger
}

type ServiceDeps struct {
	AccountRepo     accountStore
	IdentityRepo    identityStore
	IntegrationRepo integrationStore
	Events          eventPublisher       // optional
	Metrics         compensationRecorder // optional
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
		metrics:      deps.Metrics,
		log:          log.With("service", "authentication"),
	}
}

func (s *service) RegisterWithAccount(ctx context.Context, emailAddress, password string) (*domain.Account, error) {
	hash, err := secret.Hash(password)
	if err != nil {
		return nil, err
	}
	acc, err := s.accounts.Create(ctx, "", emailAddress, hash)
	if errors.Is(err, domain.ErrAlreadyExists) {
		s.log.InfoContext(ctx, "email address already in use", "err", err)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.identities.Create(ctx, acc.ID); err != nil {
		if errors.Is(err, domain.ErrIDAlreadyExists) {
			s.log.ErrorContext(ctx, "identity id collided with a freshly generated account id", "identity_id", acc.ID, "err", err)
		} else {
			s.log.ErrorContext(ctx, "create identity for new account", "identity_id", acc.ID, "err", err)
		}
		s.compensate(ctx, "register_account", func() error { return s.accounts.DeleteByID(ctx, acc.ID) })
		return nil, fmt.Errorf("register account: %w", err)
	}

	s.publish(ctx, domain.NewEvent(domain.EventIdentityRegistered, acc.ID))
	return acc, nil
}

func (s *service) RegisterWithIntegration(ctx context.Context, platformUserID, platform string) (*domain.Integration, error) {
	identity, err := s.identities.Create(ctx, "")
	if err != nil {
		return nil, err
	}

	integration, err := s.integrations.Create(ctx, identity.ID, platform, platformUserID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			s.log.InfoContext(ctx, "integration already registered", "platform", platform, "err", err)
		} else {
			s.log.ErrorContext(ctx, "create integration", "platform", platform, "err", err)
		}
		s.compensate(ctx, "register_integration", func() error { return s.identities.DeleteByID(ctx, identity.ID) })
		return nil, err
	}

	op := domain.PatchAddOp(domain.IntegrationPath(platform), platformUserID)
	if _, err := s.identities.UpdateByID(ctx, identity.ID, []domain.PatchOp{op}); err != nil {
		s.log.ErrorContext(ctx, "link integration to new identity", "identity_id", identity.ID, "err", err)
		s.compensate(ctx, "register_integration", func() error {
			return errors.Join(
				s.integrations.DeleteByID(ctx, integration.ID),
				s.identities.DeleteByID(ctx, identity.ID),
			)
		})
		return nil, fmt.Errorf("register integration: %w", err)
	}

	e := domain.NewEvent(domain.EventIdentityRegistered, identity.ID)
	e.Platform = platform
	s.publish(ctx, e)
	return integration, nil
}

func (s *service) LoginWithAccount(ctx context.Context, emailAddress, password string) (*domain.Account, error) {
	acc, err := s.accounts.GetByEmailAddress(ctx, emailAddress)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.log.InfoContext(ctx, "login with unknown email address")
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !secret.Verify(password, acc.PasswordHashed) {
		s.log.InfoContext(ctx, "login with wrong password", "account_id", acc.ID)
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	return acc, nil
}

// LoginWithIntegration resolves a platform user to its Integration. The row
// only counts while its Identity still links the same platform user; rows
// left behind by an interrupted delete or rollback are reported not found.
func (s *service) LoginWithIntegration(ctx context.Context, platformUserID, platform string) (*domain.Integration, error) {
	integration, err := s.integrations.GetByID(ctx, domain.IntegrationID(platform, platformUserID))
	if err != nil {
		return nil, err
	}
	identity, err := s.identities.GetByID(ctx, integration.IdentityID)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		s.log.WarnContext(ctx, "integration without identity", "integration_id", integration.ID, "identity_id", integration.IdentityID)
		return nil, fmt.Errorf("integration %s: %w", integration.ID, domain.ErrIntegrationNotFound)
	}
	if err != nil {
		return nil, err
	}
	if linked, ok := identity.Integrations[platform]; !ok || linked != platformUserID {
		s.log.WarnContext(ctx, "integration not linked by its identity", "integration_id", integration.ID, "identity_id", identity.ID)
		return nil, fmt.Errorf("integration %s: %w", integration.ID, domain.ErrIntegrationNotFound)
	}
	return integration, nil
}

// compensate runs undo and logs its outcome. A failed undo leaves an orphan
// row behind; the original error is still what the caller gets.
func (s *service) compensate(ctx context.Context, operation string, undo func() error) {
	if s.metrics != nil {
		s.metrics.Compensation(operation)
	}
	if err := undo(); err != nil {
		s.log.ErrorContext(ctx, "compensation failed", "operation", operation, "err", err)
		return
	}
	s.log.WarnContext(ctx, "rolled back partial registration", "operation", operation)
}

func (s *service) publish(ctx context.Context, e domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.WarnContext(ctx, "publish event", "type", e.Type, "err", err)
	}
}
