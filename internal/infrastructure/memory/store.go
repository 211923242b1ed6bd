package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/pkg/id"
)

// Store bundles one repository per entity.
type Store struct {
	Identities    *IdentityRepo
	Accounts      *AccountRepo
	Integrations  *IntegrationRepo
	RecoveryCodes *RecoveryCodeRepo
	Tokens        *TokenRepo
	Clients       *ClientRepo
}

// NewStore returns an empty store. now drives expiry; nil means time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		Identities:    &IdentityRepo{t: newTable[domain.Identity]("identity", domain.ErrIdentityNotFound)},
		Accounts:      &AccountRepo{t: newTable[domain.Account]("account", domain.ErrAccountNotFound), emails: map[string]string{}},
		Integrations:  &IntegrationRepo{t: newTable[domain.Integration]("integration", domain.ErrIntegrationNotFound)},
		RecoveryCodes: &RecoveryCodeRepo{t: newTable[domain.RecoveryCode]("recovery code", domain.ErrRecoveryCodeNotFound), now: now},
		Tokens:        &TokenRepo{t: newTable[domain.Token]("token", domain.ErrTokenNotFound), now: now},
		Clients:       &ClientRepo{t: newTable[domain.Client]("client", domain.ErrClientNotFound)},
	}
}

// ── identities ───────────────────────────────────────────────────────────────

type IdentityRepo struct{ t *table[domain.Identity] }

func (r *IdentityRepo) Create(_ context.Context, identityID string) (*domain.Identity, error) {
	if identityID == "" {
		identityID = id.New()
	}
	identity := domain.NewIdentity(identityID)
	if err := r.t.create(identityID, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (r *IdentityRepo) GetByID(_ context.Context, identityID string) (*domain.Identity, error) {
	identity, err := r.t.get(identityID)
	if err != nil {
		return nil, err
	}
	if identity.Integrations == nil {
		identity.Integrations = map[string]string{}
	}
	return identity, nil
}

func (r *IdentityRepo) UpdateByID(_ context.Context, identityID string, ops []domain.PatchOp) (*domain.Identity, error) {
	identity, err := r.t.update(identityID, ops)
	if err != nil {
		return nil, err
	}
	if identity.Integrations == nil {
		identity.Integrations = map[string]string{}
	}
	return identity, nil
}

func (r *IdentityRepo) DeleteByID(_ context.Context, identityID string) error {
	r.t.delete(identityID)
	return nil
}

// ── accounts ─────────────────────────────────────────────────────────────────

// AccountRepo keeps a lower-cased email index next to the rows. mu serialises
// every write that touches the index.
type AccountRepo struct {
	mu     sync.Mutex
	t      *table[domain.Account]
	emails map[string]string
}

func emailKey(emailAddress string) string {
	return strings.ToLower(strings.TrimSpace(emailAddress))
}

func (r *AccountRepo) Create(_ context.Context, accountID, emailAddress, passwordHashed string) (*domain.Account, error) {
	if accountID == "" {
		accountID = id.New()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.emails[emailKey(emailAddress)]; taken {
		return nil, fmt.Errorf("account %s: %w", emailAddress, domain.ErrEmailAddressAlreadyExists)
	}
	acc := &domain.Account{ID: accountID, EmailAddress: emailAddress, PasswordHashed: passwordHashed}
	if err := r.t.create(accountID, acc); err != nil {
		return nil, err
	}
	r.emails[emailKey(emailAddress)] = accountID
	return acc, nil
}

func (r *AccountRepo) GetByID(_ context.Context, accountID string) (*domain.Account, error) {
	return r.t.get(accountID)
}

func (r *AccountRepo) GetByEmailAddress(_ context.Context, emailAddress string) (*domain.Account, error) {
	r.mu.Lock()
	accountID, ok := r.emails[emailKey(emailAddress)]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("account %s: %w", emailAddress, domain.ErrAccountNotFound)
	}
	return r.t.get(accountID)
}

func (r *AccountRepo) UpdateByID(_ context.Context, accountID string, ops []domain.PatchOp) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, err := r.t.get(accountID)
	if err != nil {
		return nil, err
	}
	newEmail, changesEmail := emailFromOps(ops)
	moves := changesEmail && emailKey(newEmail) != emailKey(current.EmailAddress)
	if moves {
		if _, taken := r.emails[emailKey(newEmail)]; taken {
			return nil, fmt.Errorf("account %s: %w", newEmail, domain.ErrEmailAddressAlreadyExists)
		}
	}
	acc, err := r.t.update(accountID, ops)
	if err != nil {
		return nil, err
	}
	if moves {
		delete(r.emails, emailKey(current.EmailAddress))
		r.emails[emailKey(newEmail)] = accountID
	}
	return acc, nil
}

func (r *AccountRepo) DeleteByID(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, err := r.t.get(accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	delete(r.emails, emailKey(acc.EmailAddress))
	r.t.delete(accountID)
	return nil
}

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

// ── integrations ─────────────────────────────────────────────────────────────

type IntegrationRepo struct{ t *table[domain.Integration] }

func (r *IntegrationRepo) Create(_ context.Context, identityID, platform, userID string) (*domain.Integration, error) {
	integration := domain.NewIntegration(identityID, platform, userID)
	if err := r.t.create(integration.ID, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

func (r *IntegrationRepo) GetByID(_ context.Context, integrationID string) (*domain.Integration, error) {
	return r.t.get(integrationID)
}

func (r *IntegrationRepo) DeleteByID(_ context.Context, integrationID string) error {
	r.t.delete(integrationID)
	return nil
}

// ── recovery codes ───────────────────────────────────────────────────────────

type RecoveryCodeRepo struct {
	t   *table[domain.RecoveryCode]
	now func() time.Time
}

func (r *RecoveryCodeRepo) Create(_ context.Context, identityID, codeType, code string) (*domain.RecoveryCode, error) {
	rc := domain.NewRecoveryCode(identityID, codeType, code)
	rc.ExpiresAt = r.now().Add(domain.RecoveryCodeTTL).Unix()
	if err := r.t.upsert(rc.ID, rc); err != nil {
		return nil, err
	}
	return rc, nil
}

func (r *RecoveryCodeRepo) GetByID(_ context.Context, identityID, codeType string) (*domain.RecoveryCode, error) {
	rc, err := r.t.get(domain.RecoveryCodeID(identityID, codeType))
	if err != nil {
		return nil, err
	}
	if rc.ExpiresAt <= r.now().Unix() {
		r.t.delete(rc.ID)
		return nil, fmt.Errorf("recovery code %s expired: %w", rc.ID, domain.ErrRecoveryCodeNotFound)
	}
	return rc, nil
}

func (r *RecoveryCodeRepo) DeleteByID(_ context.Context, identityID, codeType string) error {
	r.t.delete(domain.RecoveryCodeID(identityID, codeType))
	return nil
}

// ── tokens ───────────────────────────────────────────────────────────────────

type TokenRepo struct {
	t   *table[domain.Token]
	now func() time.Time
}

func (r *TokenRepo) Create(_ context.Context, identityID, refreshToken string, iat int64) (*domain.Token, error) {
	tok := domain.NewToken(identityID, refreshToken, iat)
	tok.ExpiresAt = r.now().Add(domain.TokenTTL).Unix()
	if err := r.t.upsert(tok.ID, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func (r *TokenRepo) GetByID(_ context.Context, identityID string, iat int64) (*domain.Token, error) {
	tok, err := r.t.get(domain.TokenID(identityID, iat))
	if err != nil {
		return nil, err
	}
	if tok.ExpiresAt <= r.now().Unix() {
		r.t.delete(tok.ID)
		return nil, fmt.Errorf("token %s expired: %w", tok.ID, domain.ErrTokenNotFound)
	}
	return tok, nil
}

// Consume removes the record only if it still holds refreshToken and is live.
func (r *TokenRepo) Consume(_ context.Context, identityID string, iat int64, refreshToken string) error {
	tokenID := domain.TokenID(identityID, iat)
	now := r.now().Unix()
	removed, err := r.t.take(tokenID, func(tok *domain.Token) bool {
		return tok.RefreshToken == refreshToken && tok.ExpiresAt > now
	})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("token %s already redeemed: %w", tokenID, domain.ErrTokenNotFound)
	}
	return nil
}

// ── clients ──────────────────────────────────────────────────────────────────

type ClientRepo struct{ t *table[domain.Client] }

func (r *ClientRepo) Create(_ context.Context, secretHashed string) (*domain.Client, error) {
	c := &domain.Client{ID: id.New(), Secret: secretHashed}
	if err := r.t.create(c.ID, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ClientRepo) GetByID(_ context.Context, clientID string) (*domain.Client, error) {
	return r.t.get(clientID)
}

func (r *ClientRepo) UpdateByID(_ context.Context, clientID string, ops []domain.PatchOp) (*domain.Client, error) {
	return r.t.update(clientID, ops)
}

func (r *ClientRepo) DeleteByID(_ context.Context, clientID string) error {
	r.t.delete(clientID)
	return nil
}
