package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/guardian-api/internal/domain"
	"github.com/guardian-api/internal/infrastructure/google"
)

// PlatformVerifier turns a platform-issued credential into the user's id on
// that platform.
type PlatformVerifier interface {
	UserID(ctx context.Context, token string) (string, error)
}

// platformUser normalises the platform name and resolves the platform user id
// for an integration request. Platforms with a verifier require a verified
// ID token; other platforms pass the id through. The platform name may not
// contain ':' since it prefixes the integration id.
func platformUser(ctx context.Context, verifiers map[string]PlatformVerifier, platform, userID, idToken string) (string, string, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" || strings.Contains(platform, ":") {
		return "", "", fmt.Errorf("invalid platform %q: %w", platform, domain.ErrBadRequest)
	}
	if v, ok := verifiers[platform]; ok {
		if idToken == "" {
			return "", "", fmt.Errorf("%s requires idToken: %w", platform, domain.ErrBadRequest)
		}
		id, err := v.UserID(ctx, idToken)
		return platform, id, err
	}
	if platform == google.Platform {
		return "", "", fmt.Errorf("google sign-in is not configured: %w", domain.ErrBadRequest)
	}
	if userID == "" {
		return "", "", fmt.Errorf("userId is required: %w", domain.ErrBadRequest)
	}
	return platform, userID, nil
}
