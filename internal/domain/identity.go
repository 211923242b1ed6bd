package domain

// Identity is a person independent of login method. It is the aggregate root
// that Accounts and Integrations point back to.
type Identity struct {
	ID string `json:"id" dynamodbav:"id"`
	// Integrations maps platform name to the user's id on that platform.
	Integrations map[string]string `json:"integrations" dynamodbav:"integrations"`
}

// NewIdentity returns an Identity with an empty, non-nil integrations map.
func NewIdentity(id string) *Identity {
	return &Identity{ID: id, Integrations: map[string]string{}}
}
