package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/guardian-api/internal/domain"
	jwtinfra "github.com/guardian-api/internal/infrastructure/jwt"
	"github.com/guardian-api/internal/infrastructure/smtp"
	"github.com/guardian-api/internal/metrics"
	"github.com/guardian-api/internal/transport/http/handler"
	appmiddleware "github.com/guardian-api/internal/transport/http/middleware"
)

// IdentityRepository is the minimal interface the router requires from an identity store.
type IdentityRepository interface {
	Create(ctx context.Context, identityID string) (*domain.Identity, error)
	GetByID(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdateByID(ctx context.Context, identityID string, ops []domain.PatchOp) (*domain.Identity, error)
	DeleteByID(ctx context.Context, identityID string) error
}

// AccountRepository is the minimal interface the router requires from an account store.
type AccountRepository interface {
	Create(ctx context.Context, accountID, emailAddress, passwordHashed string) (*domain.Account, error)
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmailAddress(ctx context.Context, emailAddress string) (*domain.Account, error)
	UpdateByID(ctx context.Context, accountID string, ops []domain.PatchOp) (*domain.Account, error)
	DeleteByID(ctx context.Context, accountID string) error
}

// IntegrationRepository is the minimal interface the router requires from an integration store.
type IntegrationRepository interface {
	Create(ctx context.Context, identityID, platform, userID string) (*domain.Integration, error)
	GetByID(ctx context.Context, integrationID string) (*domain.Integration, error)
	DeleteByID(ctx context.Context, integrationID string) error
}

// RecoveryCodeRepository is the minimal interface the router requires from a recovery code store.
type RecoveryCodeRepository interface {
	Create(ctx context.Context, identityID, codeType, code string) (*domain.RecoveryCode, error)
	GetByID(ctx context.Context, identityID, codeType string) (*domain.RecoveryCode, error)
	DeleteByID(ctx context.Context, identityID, codeType string) error
}

// TokenRepository is the minimal interface the router requires from a refresh token store.
type TokenRepository interface {
	Create(ctx context.Context, identityID, refreshToken string, iat int64) (*domain.Token, error)
	GetByID(ctx context.Context, identityID string, iat int64) (*domain.Token, error)
	Consume(ctx context.Context, identityID string, iat int64, refreshToken string) error
}

// ClientRepository is the minimal interface the router requires from a client store.
type ClientRepository interface {
	Create(ctx context.Context, secretHashed string) (*domain.Client, error)
	GetByID(ctx context.Context, clientID string) (*domain.Client, error)
	UpdateByID(ctx context.Context, clientID string, ops []domain.PatchOp) (*domain.Client, error)
	DeleteByID(ctx context.Context, clientID string) error
}

// EventPublisher receives identity lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// Repositories is the storage backend the services are built on. Both the
// DynamoDB and the in-memory stores satisfy it.
type Repositories struct {
	Identities    IdentityRepository
	Accounts      AccountRepository
	Integrations  IntegrationRepository
	RecoveryCodes RecoveryCodeRepository
	Tokens        TokenRepository
	Clients       ClientRepository
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Repos       Repositories
	Mailer      smtp.Mailer
	JWTProvider *jwtinfra.Provider
	Events      EventPublisher // optional
	// Verifiers maps a platform name to the verifier of its ID tokens.
	Verifiers map[string]handler.PlatformVerifier
	Metrics   *metrics.Collector // optional
	// MetricsHandler is served at /metrics when set.
	MetricsHandler http.Handler
	// RateLimiter guards the public credential endpoints. The caller owns it
	// and stops it on shutdown.
	RateLimiter *appmiddleware.RateLimiter
	Logger      *slog.Logger
}
