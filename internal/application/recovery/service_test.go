package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/infrastructure/memory"
	"github.com/guardian-api/internal/pkg/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) Create(ctx context.Context, identityID, codeType, code string) (*domain.RecoveryCode, error) {
	args := m.Called(ctx, identityID, codeType, code)
	if rc, _ := args.Get(0).(*domain.RecoveryCode); rc != nil {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) GetByID(ctx context.Context, identityID, codeType string) (*domain.RecoveryCode, error) {
	args := m.Called(ctx, identityID, codeType)
	if rc, _ := args.Get(0).(*domain.RecoveryCode); rc != nil {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodeStore) DeleteByID(ctx context.Context, identityID, codeType string) error {
	return m.Called(ctx, identityID, codeType).Error(0)
}

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) GetByEmailAddress(ctx context.Context, emailAddress string) (*domain.Account, error) {
	args := m.Called(ctx, emailAddress)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) UpdateByID(ctx context.Context, accountID string, ops []domain.PatchOp) (*domain.Account, error) {
	args := m.Called(ctx, accountID, ops)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) DeleteByID(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

type mockIdentityStore struct{ mock.Mock }

func (m *mockIdentityStore) GetByID(ctx context.Context, identityID string) (*domain.Identity, error) {
	args := m.Called(ctx, identityID)
	if i, _ := args.Get(0).(*domain.Identity); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockIdentityStore) DeleteByID(ctx context.Context, identityID string) error {
	return m.Called(ctx, identityID).Error(0)
}

type mockIntegrationStore struct{ mock.Mock }

func (m *mockIntegrationStore) DeleteByID(ctx context.Context, integrationID string) error {
	return m.Called(ctx, integrationID).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendRecoveryCode(ctx context.Context, to, codeType, code string) error {
	return m.Called(ctx, to, codeType, code).Error(0)
}

// --- helpers ---

type fixture struct {
	store *memory.Store
	svc   Service
	acc   *domain.Account
}

func newFixture(t *testing.T, mailer codeSender) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(nil)
	hash, err := secret.Hash("Secret#1")
	require.NoError(t, err)
	acc, err := store.Accounts.Create(ctx, "u1", "user@example.com", hash)
	require.NoError(t, err)
	_, err = store.Identities.Create(ctx, "u1")
	require.NoError(t, err)

	svc := NewService(ServiceDeps{
		AccountRepo:      store.Accounts,
		IdentityRepo:     store.Identities,
		IntegrationRepo:  store.Integrations,
		RecoveryCodeRepo: store.RecoveryCodes,
		Mailer:           mailer,
	})
	return fixture{store: store, svc: svc, acc: acc}
}

func (f fixture) code(t *testing.T, codeType string) string {
	t.Helper()
	rc, err := f.svc.CreateCode(context.Background(), f.acc.ID, codeType)
	require.NoError(t, err)
	return rc.Code
}

// --- codes ---

func TestCreateCode_RandomAndUpserted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.code(t, domain.RecoveryResetPassword)
	second := f.code(t, domain.RecoveryResetPassword)
	assert.Len(t, first, secret.DefaultLength)
	assert.NotEqual(t, first, second)

	ok, err := f.svc.ValidateCode(ctx, "u1", domain.RecoveryResetPassword, first)
	require.NoError(t, err)
	assert.False(t, ok, "superseded code must not validate")

	ok, err = f.svc.ValidateCode(ctx, "u1", domain.RecoveryResetPassword, second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateCode_NeverIssued(t *testing.T) {
	f := newFixture(t, nil)
	ok, err := f.svc.ValidateCode(context.Background(), "u1", domain.RecoveryDeleteAccount, "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateCode_StorageError(t *testing.T) {
	codes := &mockCodeStore{}
	boom := errors.New("timeout")
	codes.On("GetByID", mock.Anything, "u1", domain.RecoveryResetPassword).Return(nil, boom)

	svc := NewService(ServiceDeps{RecoveryCodeRepo: codes})
	_, err := svc.ValidateCode(context.Background(), "u1", domain.RecoveryResetPassword, "x")
	assert.ErrorIs(t, err, boom)
}

func TestSingleUseCode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	code := f.code(t, domain.RecoveryVerifyEmailAddress)

	ok, err := f.svc.ValidateCode(ctx, "u1", domain.RecoveryVerifyEmailAddress, code)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.VerifyAccount(ctx, "u1", "user@example.com", code)
	require.NoError(t, err)

	ok, err = f.svc.ValidateCode(ctx, "u1", domain.RecoveryVerifyEmailAddress, code)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.VerifyAccount(ctx, "u1", "user@example.com", code)
	assert.ErrorIs(t, err, domain.ErrInvalidRecoveryCode)
}

// --- delivery ---

func TestRequestCode_EmailsAccountAddress(t *testing.T) {
	mailer := &mockMailer{}
	mailer.On("SendRecoveryCode", mock.Anything, "user@example.com", domain.RecoveryDeleteAccount, mock.AnythingOfType("string")).Return(nil)
	f := newFixture(t, mailer)

	require.NoError(t, f.svc.RequestCode(context.Background(), "u1", domain.RecoveryDeleteAccount))
	mailer.AssertExpectations(t)

	sent := mailer.Calls[0].Arguments.String(3)
	ok, err := f.svc.ValidateCode(context.Background(), "u1", domain.RecoveryDeleteAccount, sent)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequestPasswordReset_UnknownAddressIsSilent(t *testing.T) {
	mailer := &mockMailer{}
	f := newFixture(t, mailer)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "nobody@example.com"))
	mailer.AssertNotCalled(t, "SendRecoveryCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestPasswordReset_DeliveryFailure(t *testing.T) {
	mailer := &mockMailer{}
	boom := errors.New("smtp down")
	mailer.On("SendRecoveryCode", mock.Anything, "user@example.com", domain.RecoveryResetPassword, mock.Anything).Return(boom)
	f := newFixture(t, mailer)

	err := f.svc.RequestPasswordReset(context.Background(), "USER@example.com")
	assert.ErrorIs(t, err, boom)
}

// --- flows ---

func TestVerifyAccount(t *testing.T) {
	f := newFixture(t, nil)
	code := f.code(t, domain.RecoveryVerifyEmailAddress)

	acc, err := f.svc.VerifyAccount(context.Background(), "u1", "user@example.com", code)
	require.NoError(t, err)
	assert.True(t, acc.Verified)
}

func TestVerifyAccount_WrongCodeHasNoSideEffects(t *testing.T) {
	codes, accounts := &mockCodeStore{}, &mockAccountStore{}
	codes.On("GetByID", mock.Anything, "u1", domain.RecoveryVerifyEmailAddress).
		Return(domain.NewRecoveryCode("u1", domain.RecoveryVerifyEmailAddress, "right"), nil)

	svc := NewService(ServiceDeps{AccountRepo: accounts, RecoveryCodeRepo: codes})
	_, err := svc.VerifyAccount(context.Background(), "u1", "user@example.com", "wrong")

	assert.ErrorIs(t, err, domain.ErrInvalidRecoveryCode)
	accounts.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
	codes.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyAccount_AddressMismatch(t *testing.T) {
	f := newFixture(t, nil)
	code := f.code(t, domain.RecoveryVerifyEmailAddress)

	_, err := f.svc.VerifyAccount(context.Background(), "u1", "other@example.com", code)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestChangeEmailAddress(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.VerifyAccount(ctx, "u1", "user@example.com", f.code(t, domain.RecoveryVerifyEmailAddress))
	require.NoError(t, err)

	acc, err := f.svc.ChangeEmailAddress(ctx, "u1", "new@example.com", f.code(t, domain.RecoveryChangeEmailAddress))
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", acc.EmailAddress)
	assert.False(t, acc.Verified)

	got, err := f.store.Accounts.GetByEmailAddress(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestChangeEmailAddress_Taken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.store.Accounts.Create(ctx, "u2", "taken@example.com", "hash")
	require.NoError(t, err)
	code := f.code(t, domain.RecoveryChangeEmailAddress)

	_, err = f.svc.ChangeEmailAddress(ctx, "u1", "taken@example.com", code)
	assert.ErrorIs(t, err, domain.ErrEmailAddressAlreadyExists)

	ok, err := f.svc.ValidateCode(ctx, "u1", domain.RecoveryChangeEmailAddress, code)
	require.NoError(t, err)
	assert.True(t, ok, "code is only consumed on success")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.ChangePassword(ctx, "u1", "user@example.com", "wrong", "Secret#2")
	assert.ErrorIs(t, err, domain.ErrInvalidPassword)

	acc, err := f.svc.ChangePassword(ctx, "u1", "user@example.com", "Secret#1", "Secret#2")
	require.NoError(t, err)
	assert.True(t, secret.Verify("Secret#2", acc.PasswordHashed))
	assert.False(t, secret.Verify("Secret#1", acc.PasswordHashed))
}

func TestChangePassword_UnknownAccount(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.ChangePassword(context.Background(), "ghost", "user@example.com", "Secret#1", "Secret#2")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	code := f.code(t, domain.RecoveryResetPassword)

	_, err := f.svc.ResetPassword(ctx, "u1", "user@example.com", "Secret#2", "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidRecoveryCode)

	acc, err := f.svc.ResetPassword(ctx, "u1", "user@example.com", "Secret#2", code)
	require.NoError(t, err)
	assert.True(t, secret.Verify("Secret#2", acc.PasswordHashed))

	ok, err := f.svc.ValidateCode(ctx, "u1", domain.RecoveryResetPassword, code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetPassword_CodeOfOtherTypeRejected(t *testing.T) {
	f := newFixture(t, nil)
	code := f.code(t, domain.RecoveryDeleteAccount)

	_, err := f.svc.ResetPassword(context.Background(), "u1", "user@example.com", "Secret#2", code)
	assert.ErrorIs(t, err, domain.ErrInvalidRecoveryCode)
}

// --- delete ---

func TestScenario_DeleteCascades(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for platform, userID := range map[string]string{"steam": "s1", "google": "g1"} {
		_, err := f.store.Integrations.Create(ctx, "u1", platform, userID)
		require.NoError(t, err)
		_, err = f.store.Identities.UpdateByID(ctx, "u1",
			[]domain.PatchOp{domain.PatchAddOp(domain.IntegrationPath(platform), userID)})
		require.NoError(t, err)
	}
	code := f.code(t, domain.RecoveryDeleteAccount)

	identity, err := f.svc.DeleteByID(ctx, "u1", code)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"steam": "s1", "google": "g1"}, identity.Integrations)

	_, err = f.store.Accounts.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = f.store.Identities.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	_, err = f.store.Integrations.GetByID(ctx, "steam:s1")
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)
	_, err = f.store.Integrations.GetByID(ctx, "google:g1")
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)

	ok, err := f.svc.ValidateCode(ctx, "u1", domain.RecoveryDeleteAccount, code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteByID_InvalidCode(t *testing.T) {
	codes, identities := &mockCodeStore{}, &mockIdentityStore{}
	codes.On("GetByID", mock.Anything, "u1", domain.RecoveryDeleteAccount).Return(nil, domain.ErrRecoveryCodeNotFound)

	svc := NewService(ServiceDeps{IdentityRepo: identities, RecoveryCodeRepo: codes})
	_, err := svc.DeleteByID(context.Background(), "u1", "x")

	assert.ErrorIs(t, err, domain.ErrInvalidRecoveryCode)
	identities.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestDeleteByID_OrderAndBestEffortSweep(t *testing.T) {
	codes, accounts := &mockCodeStore{}, &mockAccountStore{}
	identities, integrations := &mockIdentityStore{}, &mockIntegrationStore{}

	var order []string
	codes.On("GetByID", mock.Anything, "u1", domain.RecoveryDeleteAccount).
		Return(domain.NewRecoveryCode("u1", domain.RecoveryDeleteAccount, "c"), nil)
	identities.On("GetByID", mock.Anything, "u1").
		Return(&domain.Identity{ID: "u1", Integrations: map[string]string{"steam": "s1"}}, nil)
	accounts.On("DeleteByID", mock.Anything, "u1").Return(nil).Run(func(mock.Arguments) { order = append(order, "account") })
	identities.On("DeleteByID", mock.Anything, "u1").Return(nil).Run(func(mock.Arguments) { order = append(order, "identity") })
	integrations.On("DeleteByID", mock.Anything, "steam:s1").Return(errors.New("throttled")).
		Run(func(mock.Arguments) { order = append(order, "integration") })
	codes.On("DeleteByID", mock.Anything, "u1", domain.RecoveryDeleteAccount).Return(nil).
		Run(func(mock.Arguments) { order = append(order, "code") })

	svc := NewService(ServiceDeps{
		AccountRepo:      accounts,
		IdentityRepo:     identities,
		IntegrationRepo:  integrations,
		RecoveryCodeRepo: codes,
	})
	identity, err := svc.DeleteByID(context.Background(), "u1", "c")

	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, []string{"account", "identity", "integration", "code"}, order)
	codes.AssertNotCalled(t, "DeleteByID", mock.Anything, "u1", domain.RecoveryResetPassword)
}
