package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Repositories wrap these so services and handlers can react with errors.Is
// without leaking infrastructure details.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")

	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// Entity-specific variants. Each one also matches its kind, so
// errors.Is(ErrAccountNotFound, ErrNotFound) is true.
var (
	ErrAccountNotFound      = kindError("account not found", ErrNotFound)
	ErrIdentityNotFound     = kindError("identity not found", ErrNotFound)
	ErrIntegrationNotFound  = kindError("integration not found", ErrNotFound)
	ErrRecoveryCodeNotFound = kindError("recovery code not found", ErrNotFound)
	ErrTokenNotFound        = kindError("token not found", ErrNotFound)
	ErrClientNotFound       = kindError("client not found", ErrNotFound)

	ErrIDAlreadyExists           = kindError("id already exists", ErrAlreadyExists)
	ErrEmailAddressAlreadyExists = kindError("email address already exists", ErrAlreadyExists)
)

type variantError struct {
	msg  string
	kind error
}

func kindError(msg string, kind error) error {
	return &variantError{msg: msg, kind: kind}
}

func (e *variantError) Error() string { return e.msg }

func (e *variantError) Unwrap() error { return e.kind }
