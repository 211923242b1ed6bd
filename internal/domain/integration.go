package domain

import "fmt"

// Integration links a third-party platform user to an Identity.
type Integration struct {
	ID         string `json:"id" dynamodbav:"id"`
	IdentityID string `json:"identityId" dynamodbav:"identityId"`
	Platform   string `json:"platform" dynamodbav:"platform"`
	UserID     string `json:"userId" dynamodbav:"userId"`
}

// NewIntegration builds an Integration with its composite ID filled in.
func NewIntegration(identityID, platform, userID string) *Integration {
	return &Integration{
		ID:         IntegrationID(platform, userID),
		IdentityID: identityID,
		Platform:   platform,
		UserID:     userID,
	}
}

// IntegrationID derives the storage key of an Integration.
func IntegrationID(platform, userID string) string {
	return fmt.Sprintf("%s:%s", platform, userID)
}
