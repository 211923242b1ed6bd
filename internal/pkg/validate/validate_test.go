package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type credentials struct {
	EmailAddress string `json:"emailAddress" validate:"required,email"`
	Password     string `json:"password" validate:"required,password"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(&credentials{EmailAddress: "user@example.com", Password: "Secret#1"}))
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(&credentials{EmailAddress: "nope", Password: "Secret#1"})
	assert.ErrorContains(t, err, "field 'emailAddress' failed 'email'")
}

func TestStruct_PasswordRule(t *testing.T) {
	cases := map[string]bool{
		"Secret#1": true,
		"secret#1": false, // no capital
		"SECRET#1": false, // no lower case
		"Secret#x": false, // no digit
		"Secret11": false, // no symbol
	}
	for pw, ok := range cases {
		err := Struct(&credentials{EmailAddress: "user@example.com", Password: pw})
		if ok {
			assert.NoError(t, err, pw)
		} else {
			assert.ErrorContains(t, err, "'password'", pw)
		}
	}
}
