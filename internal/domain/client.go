package domain

// Client is an OAuth2 client credential pair. Secret holds a bcrypt hash.
type Client struct {
	ID     string `json:"id" dynamodbav:"id"`
	Secret string `json:"-" dynamodbav:"secret"`
}
