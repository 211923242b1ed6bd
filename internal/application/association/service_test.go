package association

import (
	"context"
	"testing"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) Create(ctx context.Context, accountID, emailAddress, passwordHashed string) (*domain.Account, error) {
	args := m.Called(ctx, accountID, emailAddress, passwordHashed)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockIdentityStore struct{ mock.Mock }

func (m *mockIdentityStore) GetByID(ctx context.Context, identityID string) (*domain.Identity, error) {
	args := m.Called(ctx, identityID)
	if i, _ := args.Get(0).(*domain.Identity); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockIdentityStore) UpdateByID(ctx context.Context, identityID string, ops []domain.PatchOp) (*domain.Identity, error) {
	args := m.Called(ctx, identityID, ops)
	if i, _ := args.Get(0).(*domain.Identity); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockIntegrationStore struct{ mock.Mock }

func (m *mockIntegrationStore) Create(ctx context.Context, identityID, platform, userID string) (*domain.Integration, error) {
	args := m.Called(ctx, identityID, platform, userID)
	if i, _ := args.Get(0).(*domain.Integration); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockIntegrationStore) DeleteByID(ctx context.Context, integrationID string) error {
	return m.Called(ctx, integrationID).Error(0)
}

// --- AddAccount ---

func TestAddAccount_UnknownIdentity(t *testing.T) {
	identities, accounts := &mockIdentityStore{}, &mockAccountStore{}
	identities.On("GetByID", mock.Anything, "id-1").Return(nil, domain.ErrIdentityNotFound)

	svc := NewService(ServiceDeps{AccountRepo: accounts, IdentityRepo: identities})
	_, err := svc.AddAccount(context.Background(), "id-1", "a@b.com", "Secret#1")

	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddAccount_UsesIdentityID(t *testing.T) {
	identities, accounts := &mockIdentityStore{}, &mockAccountStore{}
	identities.On("GetByID", mock.Anything, "id-1").Return(domain.NewIdentity("id-1"), nil)
	accounts.On("Create", mock.Anything, "id-1", "a@b.com", mock.AnythingOfType("string")).
		Return(&domain.Account{ID: "id-1", EmailAddress: "a@b.com"}, nil)

	svc := NewService(ServiceDeps{AccountRepo: accounts, IdentityRepo: identities})
	acc, err := svc.AddAccount(context.Background(), "id-1", "a@b.com", "Secret#1")

	require.NoError(t, err)
	assert.Equal(t, "id-1", acc.ID)
	accounts.AssertExpectations(t)
}

func TestAddAccount_EmailTaken(t *testing.T) {
	identities, accounts := &mockIdentityStore{}, &mockAccountStore{}
	identities.On("GetByID", mock.Anything, "id-1").Return(domain.NewIdentity("id-1"), nil)
	accounts.On("Create", mock.Anything, "id-1", "a@b.com", mock.Anything).
		Return(nil, domain.ErrEmailAddressAlreadyExists)

	svc := NewService(ServiceDeps{AccountRepo: accounts, IdentityRepo: identities})
	_, err := svc.AddAccount(context.Background(), "id-1", "a@b.com", "Secret#1")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

// --- AddIntegration ---

func TestAddIntegration_ConflictWrappedAsIDConflict(t *testing.T) {
	identities, integrations := &mockIdentityStore{}, &mockIntegrationStore{}
	identities.On("GetByID", mock.Anything, "id-1").Return(domain.NewIdentity("id-1"), nil)
	integrations.On("Create", mock.Anything, "id-1", "steam", "s1").Return(nil, domain.ErrAlreadyExists)

	svc := NewService(ServiceDeps{IdentityRepo: identities, IntegrationRepo: integrations})
	_, err := svc.AddIntegration(context.Background(), "id-1", "steam", "s1")

	assert.ErrorIs(t, err, domain.ErrIDAlreadyExists)
	identities.AssertNotCalled(t, "UpdateByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddIntegration_PlatformAlreadyLinked(t *testing.T) {
	identities, integrations := &mockIdentityStore{}, &mockIntegrationStore{}
	identities.On("GetByID", mock.Anything, "id-1").
		Return(&domain.Identity{ID: "id-1", Integrations: map[string]string{"steam": "s0"}}, nil)

	svc := NewService(ServiceDeps{IdentityRepo: identities, IntegrationRepo: integrations})
	_, err := svc.AddIntegration(context.Background(), "id-1", "steam", "s1")

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	integrations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddIntegration_PatchesIdentity(t *testing.T) {
	identities, integrations := &mockIdentityStore{}, &mockIntegrationStore{}
	identities.On("GetByID", mock.Anything, "id-1").Return(domain.NewIdentity("id-1"), nil)
	integrations.On("Create", mock.Anything, "id-1", "steam", "s1").
		Return(domain.NewIntegration("id-1", "steam", "s1"), nil)
	identities.On("UpdateByID", mock.Anything, "id-1",
		[]domain.PatchOp{domain.PatchAddOp("/integrations/steam", "s1")}).
		Return(&domain.Identity{ID: "id-1", Integrations: map[string]string{"steam": "s1"}}, nil)

	svc := NewService(ServiceDeps{IdentityRepo: identities, IntegrationRepo: integrations})
	integration, err := svc.AddIntegration(context.Background(), "id-1", "steam", "s1")

	require.NoError(t, err)
	assert.Equal(t, "steam:s1", integration.ID)
	identities.AssertExpectations(t)
}

// --- RemoveIntegration ---

func TestRemoveIntegration_NotLinked(t *testing.T) {
	identities, integrations := &mockIdentityStore{}, &mockIntegrationStore{}
	identities.On("GetByID", mock.Anything, "u1").Return(domain.NewIdentity("u1"), nil)

	svc := NewService(ServiceDeps{IdentityRepo: identities, IntegrationRepo: integrations})
	_, err := svc.RemoveIntegration(context.Background(), "u1", "steam")

	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	integrations.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
}

func TestRemoveIntegration_DeletesRemovedPlatformRow(t *testing.T) {
	identities, integrations := &mockIdentityStore{}, &mockIntegrationStore{}
	identities.On("GetByID", mock.Anything, "u1").
		Return(&domain.Identity{ID: "u1", Integrations: map[string]string{"steam": "s1"}}, nil)
	identities.On("UpdateByID", mock.Anything, "u1",
		[]domain.PatchOp{
			domain.PatchTestOp("/integrations/steam", "s1"),
			domain.PatchRemoveOp("/integrations/steam"),
		}).
		Return(domain.NewIdentity("u1"), nil)
	integrations.On("DeleteByID", mock.Anything, "steam:s1").Return(nil)

	svc := NewService(ServiceDeps{IdentityRepo: identities, IntegrationRepo: integrations})
	identity, err := svc.RemoveIntegration(context.Background(), "u1", "steam")

	require.NoError(t, err)
	assert.Empty(t, identity.Integrations)
	integrations.AssertExpectations(t)
}

// --- scenario against the in-memory store ---

func TestScenario_IntegrationRemoval(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	_, err := store.Identities.Create(ctx, "u1")
	require.NoError(t, err)

	svc := NewService(ServiceDeps{
		AccountRepo:     store.Accounts,
		IdentityRepo:    store.Identities,
		IntegrationRepo: store.Integrations,
	})
	_, err = svc.AddIntegration(ctx, "u1", "steam", "s1")
	require.NoError(t, err)

	identity, err := svc.RemoveIntegration(ctx, "u1", "steam")
	require.NoError(t, err)
	assert.Empty(t, identity.Integrations)

	_, err = store.Integrations.GetByID(ctx, "steam:s1")
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)

	_, err = svc.RemoveIntegration(ctx, "u1", "steam")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// relinkingIdentities swaps the steam link to another platform user right
// after the service reads the identity.
type relinkingIdentities struct {
	*memory.IdentityRepo
	integrations *memory.IntegrationRepo
}

func (r relinkingIdentities) GetByID(ctx context.Context, identityID string) (*domain.Identity, error) {
	identity, err := r.IdentityRepo.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	path := domain.IntegrationPath("steam")
	if _, err := r.IdentityRepo.UpdateByID(ctx, identityID, []domain.PatchOp{
		domain.PatchRemoveOp(path),
		domain.PatchAddOp(path, "s2"),
	}); err != nil {
		return nil, err
	}
	if _, err := r.integrations.Create(ctx, identityID, "steam", "s2"); err != nil {
		return nil, err
	}
	return identity, nil
}

func TestScenario_RemoveIntegrationAfterRelink(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	_, err := store.Identities.Create(ctx, "u1")
	require.NoError(t, err)
	_, err = NewService(ServiceDeps{IdentityRepo: store.Identities, IntegrationRepo: store.Integrations}).
		AddIntegration(ctx, "u1", "steam", "s1")
	require.NoError(t, err)

	svc := NewService(ServiceDeps{
		IdentityRepo:    relinkingIdentities{IdentityRepo: store.Identities, integrations: store.Integrations},
		IntegrationRepo: store.Integrations,
	})
	_, err = svc.RemoveIntegration(ctx, "u1", "steam")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	identity, err := store.Identities.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"steam": "s2"}, identity.Integrations)
	_, err = store.Integrations.GetByID(ctx, "steam:s2")
	assert.NoError(t, err)
}

func TestScenario_AddAccountToIntegrationIdentity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	_, err := store.Identities.Create(ctx, "u1")
	require.NoError(t, err)

	svc := NewService(ServiceDeps{AccountRepo: store.Accounts, IdentityRepo: store.Identities})
	acc, err := svc.AddAccount(ctx, "u1", "u1@example.com", "Secret#1")
	require.NoError(t, err)
	assert.Equal(t, "u1", acc.ID)

	_, err = svc.AddAccount(ctx, "u1", "other@example.com", "Secret#1")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}
