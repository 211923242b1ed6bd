package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/guardian-api/internal/domain"
	jwtinfra "github.com/guardian-api/internal/infrastructure/jwt"
	"github.com/guardian-api/internal/pkg/secret"
)

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeBearer = "Bearer"

	// AudienceClient marks access tokens issued to OAuth2 clients. Their
	// subject is a client id, so they never authenticate an identity.
	AudienceClient = "client"
)

// Service issues access/refresh token pairs and rotates refresh tokens.
type Service interface {
	GenerateAccessToken(ctx context.Context, identityID string, withRefreshToken bool) (*domain.TokenResponse, error)
	GenerateClientToken(ctx context.Context, clientID string) (*domain.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenResponse, error)
	ParseAccessToken(accessToken string) (string, error)
}

type tokenStore interface {
	Create(ctx context.Context, identityID, refreshToken string, iat int64) (*domain.Token, error)
	GetByID(ctx context.Context, identityID string, iat int64) (*domain.Token, error)
	Consume(ctx context.Context, identityID string, iat int64, refreshToken string) error
}

type jwtProvider interface {
	Sign(subject string, issuedAt, expiresAt time.Time, jti string, audience ...string) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type issueRecorder interface {
	TokenIssued(withRefreshToken bool)
}

type service struct {
	tokens     tokenStore
	jwt        jwtProvider
	metrics    issueRecorder
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	log        *slog.Logger
}

type ServiceDeps struct {
	TokenRepo       tokenStore
	JWTProvider     jwtProvider
	Metrics         issueRecorder // optional
	AccessTokenTTL  time.Duration // default one hour
	RefreshTokenTTL time.Duration // default seven days
	Now             func() time.Time
	Logger          *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		tokens:     deps.TokenRepo,
		jwt:        deps.JWTProvider,
		metrics:    deps.Metrics,
		accessTTL:  deps.AccessTokenTTL,
		refreshTTL: deps.RefreshTokenTTL,
		now:        deps.Now,
		log:        deps.Logger,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTokenTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("service", "token")
	return s
}

// GenerateAccessToken signs an access token for identityID. With a refresh
// token, the pair shares its iat and the refresh token is recorded under
// (identityID, iat) so it can be redeemed once.
func (s *service) GenerateAccessToken(ctx context.Context, identityID string, withRefreshToken bool) (*domain.TokenResponse, error) {
	iat := s.now().UTC().Truncate(time.Second)
	access, err := s.jwt.Sign(identityID, iat, iat.Add(s.accessTTL), "")
	if err != nil {
		return nil, err
	}
	resp := &domain.TokenResponse{
		AccessToken: access,
		ExpiresIn:   int(s.accessTTL / time.Second),
		TokenType:   tokenTypeBearer,
	}

	if withRefreshToken {
		refresh, err := s.jwt.Sign(identityID, iat, iat.Add(s.refreshTTL), uuid.NewString())
		if err != nil {
			return nil, err
		}
		if _, err := s.tokens.Create(ctx, identityID, refresh, iat.Unix()); err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
	}
	if s.metrics != nil {
		s.metrics.TokenIssued(withRefreshToken)
	}
	return resp, nil
}

// GenerateClientToken signs an access token for an authenticated client. No
// refresh token is issued.
func (s *service) GenerateClientToken(_ context.Context, clientID string) (*domain.TokenResponse, error) {
	iat := s.now().UTC().Truncate(time.Second)
	access, err := s.jwt.Sign(clientID, iat, iat.Add(s.accessTTL), "", AudienceClient)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.TokenIssued(false)
	}
	return &domain.TokenResponse{
		AccessToken: access,
		ExpiresIn:   int(s.accessTTL / time.Second),
		TokenType:   tokenTypeBearer,
	}, nil
}

// Refresh redeems a recorded refresh token for a new pair. The record is
// consumed before the new pair is issued and only one redemption can consume
// it, so each refresh token works exactly once.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenResponse, error) {
	claims, err := s.jwt.Verify(refreshToken)
	if err != nil {
		s.log.InfoContext(ctx, "refresh with unverifiable token", "err", err)
		return nil, fmt.Errorf("refresh: %w", domain.ErrInvalidRefreshToken)
	}
	if claims.ID == "" {
		s.log.InfoContext(ctx, "refresh with an access token", "identity_id", claims.Subject)
		return nil, fmt.Errorf("refresh: token has no jti: %w", domain.ErrInvalidRefreshToken)
	}

	identityID, iat := claims.Subject, claims.IssuedAt.Unix()
	stored, err := s.tokens.GetByID(ctx, identityID, iat)
	if errors.Is(err, domain.ErrTokenNotFound) {
		s.log.InfoContext(ctx, "refresh token not on record", "identity_id", identityID, "iat", iat)
		return nil, fmt.Errorf("refresh: %w", domain.ErrInvalidRefreshToken)
	}
	if err != nil {
		return nil, err
	}
	if !secret.Equal(stored.RefreshToken, refreshToken) {
		s.log.InfoContext(ctx, "refresh token does not match record", "identity_id", identityID, "iat", iat)
		return nil, fmt.Errorf("refresh: %w", domain.ErrInvalidRefreshToken)
	}

	err = s.tokens.Consume(ctx, identityID, iat, refreshToken)
	if errors.Is(err, domain.ErrTokenNotFound) {
		s.log.WarnContext(ctx, "refresh token redeemed concurrently", "identity_id", identityID, "iat", iat)
		return nil, fmt.Errorf("refresh: %w", domain.ErrInvalidRefreshToken)
	}
	if err != nil {
		return nil, err
	}
	return s.GenerateAccessToken(ctx, identityID, true)
}

// ParseAccessToken verifies an identity access token and returns its
// subject. Refresh tokens and client tokens are rejected.
func (s *service) ParseAccessToken(accessToken string) (string, error) {
	claims, err := s.jwt.Verify(accessToken)
	if err != nil {
		return "", fmt.Errorf("access token: %v: %w", err, domain.ErrInvalidCredentials)
	}
	if claims.ID != "" {
		return "", fmt.Errorf("access token: refresh token presented: %w", domain.ErrInvalidCredentials)
	}
	if slices.Contains(claims.Audience, AudienceClient) {
		return "", fmt.Errorf("access token: client token presented: %w", domain.ErrInvalidCredentials)
	}
	return claims.Subject, nil
}
