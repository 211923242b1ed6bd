package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/secret"
)

// Service gates sensitive account mutations behind single-use recovery codes.
//
// A code exists per (identity, type) until a flow consumes it or its TTL
// passes. Every flow validates its code before touching any other row, so a
// wrong or expired code has no side effects.
type Service interface {
	CreateCode(ctx context.Context, identityID, codeType string) (*domain.RecoveryCode, error)
	ValidateCode(ctx context.Context, identityID, codeType, code string) (bool, error)
	RequestCode(ctx context.Context, identityID, codeType string) error
	RequestPasswordReset(ctx context.Context, emailAddress string) error
	VerifyAccount(ctx context.Context, identityID, emailAddress, code string) (*domain.Account, error)
	ChangeEmailAddress(ctx context.Context, identityID, newEmailAddress, code string) (*domain.Account, error)
	ChangePassword(ctx context.Context, identityID, emailAddress, oldPassword, newPassword string) (*domain.Account, error)
	ResetPassword(ctx context.Context, identityID, emailAddress, newPassword, code string) (*domain.Account, error)
	DeleteByID(ctx context.Context, identityID, code string) (*domain.Identity, error)
}

type accountStore interface {
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmailAddress(ctx context.Context, emailAddress string) (*domain.Account, error)
	UpdateByID(ctx context.Context, accountID string, ops []domain.PatchOp) (*domain.Account, error)
	DeleteByID(ctx context.Context, accountID string) error
}

type identityStore interface {
	GetByID(ctx context.Context, identityID string) (*domain.Identity, error)
	DeleteByID(ctx context.Context, identityID string) error
}

type integrationStore interface {
	DeleteByID(ctx context.Context, integrationID string) error
}

type codeStore interface {
	Create(ctx context.Context, identityID, codeType, code string) (*domain.RecoveryCode, error)
	GetByID(ctx context.Context, identityID, codeType string) (*domain.RecoveryCode, error)
	DeleteByID(ctx context.Context, identityID, codeType string) error
}

type codeSender interface {
	SendRecoveryCode(ctx context.Context, to, codeType, code string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

type service struct {
	accounts     accountStore
	identities   identityStore
	integrations integrationStore
	codes        codeStore
	mailer       codeSender
	events       eventPublisher
	log          *slog.Logger
}

type ServiceDeps struct {
	AccountRepo      accountStore
	IdentityRepo     identityStore
	IntegrationRepo  integrationStore
	RecoveryCodeRepo codeStore
	Mailer           codeSender
	Events           eventPublisher // optional
	Logger           *slog.Logger
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
		codes:        deps.RecoveryCodeRepo,
		mailer:       deps.Mailer,
		events:       deps.Events,
		log:          log.With("service", "recovery"),
	}
}

func (s *service) CreateCode(ctx context.Context, identityID, codeType string) (*domain.RecoveryCode, error) {
	code, err := secret.RandomString(secret.DefaultLength)
	if err != nil {
		return nil, err
	}
	return s.codes.Create(ctx, identityID, codeType, code)
}

// ValidateCode reports whether code is the outstanding code of codeType.
// It does not consume the code.
func (s *service) ValidateCode(ctx context.Context, identityID, codeType, code string) (bool, error) {
	rc, err := s.codes.GetByID(ctx, identityID, codeType)
	if errors.Is(err, domain.ErrRecoveryCodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return secret.Equal(rc.Code, code), nil
}

// RequestCode issues a code and emails it to the identity's account address.
func (s *service) RequestCode(ctx context.Context, identityID, codeType string) error {
	acc, err := s.accounts.GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	return s.issueAndSend(ctx, acc, codeType)
}

// RequestPasswordReset issues a ResetPassword code for the account owning
// emailAddress. Unknown addresses succeed without sending anything.
func (s *service) RequestPasswordReset(ctx context.Context, emailAddress string) error {
	acc, err := s.accounts.GetByEmailAddress(ctx, emailAddress)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.log.InfoContext(ctx, "password reset requested for unknown address")
		return nil
	}
	if err != nil {
		return err
	}
	return s.issueAndSend(ctx, acc, domain.RecoveryResetPassword)
}

func (s *service) issueAndSend(ctx context.Context, acc *domain.Account, codeType string) error {
	rc, err := s.CreateCode(ctx, acc.ID, codeType)
	if err != nil {
		return err
	}
	if s.mailer == nil {
		s.log.WarnContext(ctx, "no mailer configured, recovery code not delivered", "identity_id", acc.ID, "type", codeType)
		return nil
	}
	if err := s.mailer.SendRecoveryCode(ctx, acc.EmailAddress, codeType, rc.Code); err != nil {
		s.log.ErrorContext(ctx, "deliver recovery code", "identity_id", acc.ID, "type", codeType, "err", err)
		return fmt.Errorf("deliver recovery code: %w", err)
	}
	return nil
}

func (s *service) VerifyAccount(ctx context.Context, identityID, emailAddress, code string) (*domain.Account, error) {
	if err := s.requireCode(ctx, identityID, domain.RecoveryVerifyEmailAddress, code); err != nil {
		return nil, err
	}
	if _, err := s.ownedAccount(ctx, identityID, emailAddress); err != nil {
		return nil, err
	}
	acc, err := s.accounts.UpdateByID(ctx, identityID, []domain.PatchOp{domain.PatchReplaceOp(domain.PathVerified, true)})
	if err != nil {
		return nil, err
	}
	if err := s.consume(ctx, identityID, domain.RecoveryVerifyEmailAddress); err != nil {
		return nil, err
	}
	return acc, nil
}

// ChangeEmailAddress moves the account to a new address. The new address
// has not been proven yet, so the account becomes unverified.
func (s *service) ChangeEmailAddress(ctx context.Context, identityID, newEmailAddress, code string) (*domain.Account, error) {
	if err := s.requireCode(ctx, identityID, domain.RecoveryChangeEmailAddress, code); err != nil {
		return nil, err
	}
	acc, err := s.accounts.UpdateByID(ctx, identityID, []domain.PatchOp{
		domain.PatchReplaceOp(domain.PathEmailAddress, newEmailAddress),
		domain.PatchReplaceOp(domain.PathVerified, false),
	})
	if errors.Is(err, domain.ErrEmailAddressAlreadyExists) {
		s.log.InfoContext(ctx, "new email address already in use", "identity_id", identityID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err := s.consume(ctx, identityID, domain.RecoveryChangeEmailAddress); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewEvent(domain.EventEmailChanged, identityID))
	return acc, nil
}

func (s *service) ChangePassword(ctx context.Context, identityID, emailAddress, oldPassword, newPassword string) (*domain.Account, error) {
	acc, err := s.ownedAccount(ctx, identityID, emailAddress)
	if err != nil {
		return nil, err
	}
	if !secret.Verify(oldPassword, acc.PasswordHashed) {
		s.log.InfoContext(ctx, "change password with wrong current password", "identity_id", identityID)
		return nil, fmt.Errorf("change password: %w", domain.ErrInvalidPassword)
	}
	return s.setPassword(ctx, identityID, newPassword)
}

func (s *service) ResetPassword(ctx context.Context, identityID, emailAddress, newPassword, code string) (*domain.Account, error) {
	if err := s.requireCode(ctx, identityID, domain.RecoveryResetPassword, code); err != nil {
		return nil, err
	}
	if _, err := s.ownedAccount(ctx, identityID, emailAddress); err != nil {
		return nil, err
	}
	acc, err := s.setPassword(ctx, identityID, newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.consume(ctx, identityID, domain.RecoveryResetPassword); err != nil {
		return nil, err
	}
	return acc, nil
}

// DeleteByID tears down the identity. Account and Identity go first so an
// interrupted run can only leave orphan Integration rows behind, never a
// usable login pointing at a deleted identity.
func (s *service) DeleteByID(ctx context.Context, identityID, code string) (*domain.Identity, error) {
	if err := s.requireCode(ctx, identityID, domain.RecoveryDeleteAccount, code); err != nil {
		return nil, err
	}
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	integrationIDs := make([]string, 0, len(identity.Integrations))
	for platform, userID := range identity.Integrations {
		integrationIDs = append(integrationIDs, domain.IntegrationID(platform, userID))
	}

	if err := s.accounts.DeleteByID(ctx, identityID); err != nil {
		return nil, err
	}
	if err := s.identities.DeleteByID(ctx, identityID); err != nil {
		return nil, err
	}
	for _, id := range integrationIDs {
		if err := s.integrations.DeleteByID(ctx, id); err != nil {
			s.log.WarnContext(ctx, "orphan integration left behind", "integration_id", id, "err", err)
		}
	}
	if err := s.consume(ctx, identityID, domain.RecoveryDeleteAccount); err != nil {
		return nil, err
	}
	s.publish(ctx, domain.NewEvent(domain.EventIdentityDeleted, identityID))
	return identity, nil
}

func (s *service) requireCode(ctx context.Context, identityID, codeType, code string) error {
	ok, err := s.ValidateCode(ctx, identityID, codeType, code)
	if err != nil {
		return err
	}
	if !ok {
		s.log.InfoContext(ctx, "invalid recovery code", "identity_id", identityID, "type", codeType)
		return fmt.Errorf("%s code: %w", codeType, domain.ErrInvalidRecoveryCode)
	}
	return nil
}

// ownedAccount returns the identity's account, provided its address matches.
func (s *service) ownedAccount(ctx context.Context, identityID, emailAddress string) (*domain.Account, error) {
	acc, err := s.accounts.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(acc.EmailAddress), strings.TrimSpace(emailAddress)) {
		s.log.InfoContext(ctx, "email address does not belong to identity", "identity_id", identityID)
		return nil, fmt.Errorf("account %s with given address: %w", identityID, domain.ErrAccountNotFound)
	}
	return acc, nil
}

func (s *service) setPassword(ctx context.Context, identityID, password string) (*domain.Account, error) {
	hash, err := secret.Hash(password)
	if err != nil {
		return nil, err
	}
	return s.accounts.UpdateByID(ctx, identityID, []domain.PatchOp{domain.PatchReplaceOp(domain.PathPasswordHashed, hash)})
}

// consume deletes a used code. The mutation has already been applied when
// this fails, and the code stays valid until its TTL.
func (s *service) consume(ctx context.Context, identityID, codeType string) error {
	if err := s.codes.DeleteByID(ctx, identityID, codeType); err != nil {
		s.log.ErrorContext(ctx, "consume recovery code", "identity_id", identityID, "type", codeType, "err", err)
		return fmt.Errorf("consume %s code: %w", codeType, err)
	}
	return nil
}

func (s *service) publish(ctx context.Context, e domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.WarnContext(ctx, "publish event", "type", e.Type, "err", err)
	}
}
