package domain

// Account is a first-party email/password credential. Its ID equals the ID of
// the Identity it belongs to.
type Account struct {
	ID             string `json:"id" dynamodbav:"id"`
	EmailAddress   string `json:"emailAddress" dynamodbav:"emailAddress"`
	PasswordHashed string `json:"-" dynamodbav:"passwordHashed"`
	Verified       bool   `json:"verified" dynamodbav:"verified"`
}
