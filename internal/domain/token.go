package domain

import (
	"fmt"
	"time"
)

// TokenTTL is how long an issued refresh token record is kept.
const TokenTTL = 14 * 24 * time.Hour

// Token records an issued refresh token so it can later be validated.
type Token struct {
	ID           string `json:"id" dynamodbav:"id"`
	RefreshToken string `json:"refreshToken" dynamodbav:"refreshToken"`
	IdentityID   string `json:"identityId" dynamodbav:"identityId"`
	ExpiresAt    int64  `json:"-" dynamodbav:"expiresAt"` // TTL (Unix seconds)
}

// NewToken builds a Token keyed by the identity and the token's issued-at time.
func NewToken(identityID, refreshToken string, iat int64) *Token {
	return &Token{
		ID:           TokenID(identityID, iat),
		RefreshToken: refreshToken,
		IdentityID:   identityID,
	}
}

// TokenID derives the storage key of a Token.
func TokenID(identityID string, iat int64) string {
	return fmt.Sprintf("%s:%d", identityID, iat)
}

// TokenResponse is the OAuth2 token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
