package domain

import "time"

// Identity lifecycle event types.
const (
	EventIdentityRegistered = "identity.registered"
	EventIdentityDeleted    = "identity.deleted"
	EventAccountAdded       = "identity.account_added"
	EventIntegrationAdded   = "identity.integration_added"
	EventIntegrationRemoved = "identity.integration_removed"
	EventEmailChanged       = "identity.email_changed"
)

// Event is published after an identity-changing operation completes.
type Event struct {
	Type       string    `json:"type"`
	IdentityID string    `json:"identityId"`
	Platform   string    `json:"platform,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewEvent(eventType, identityID string) Event {
	return Event{Type: eventType, IdentityID: identityID, OccurredAt: time.Now().UTC()}
}
