package google

import (
	"context"
	"fmt"

	"github.com/guardian-api/internal/domain"
	"google.golang.org/api/idtoken"
)

// Platform is the integration platform name for Google sign-in.
const Platform = "google"

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Verifier verifies Google ID tokens against a specific client ID.
type Verifier struct {
	clientID string
	validate validateFunc
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID, validate: idtoken.Validate}
}

// UserID validates the Google ID token and returns its subject, the stable
// Google account id used as the integration's platform user id.
func (v *Verifier) UserID(ctx context.Context, token string) (string, error) {
	p, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return "", fmt.Errorf("invalid google token: %w", domain.ErrInvalidCredentials)
	}
	if p.Subject == "" {
		return "", fmt.Errorf("google token has no subject: %w", domain.ErrInvalidCredentials)
	}
	return p.Subject, nil
}
