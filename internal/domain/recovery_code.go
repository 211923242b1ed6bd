package domain

import (
	"fmt"
	"time"
)

// Recovery code types. The type is free-form in storage; these are the ones
// the recovery flows consume.
const (
	RecoveryVerifyEmailAddress = "VerifyEmailAddress"
	RecoveryChangeEmailAddress = "ChangeEmailAddress"
	RecoveryResetPassword      = "ResetPassword"
	RecoveryDeleteAccount      = "DeleteAccount"
)

// RecoveryCodeTTL is how long an issued code stays in storage.
const RecoveryCodeTTL = time.Hour

// RecoveryCode is a single-use secret gating a sensitive mutation.
// At most one exists per (IdentityID, Type).
type RecoveryCode struct {
	ID         string `json:"id" dynamodbav:"id"`
	Code       string `json:"code" dynamodbav:"code"`
	Type       string `json:"type" dynamodbav:"type"`
	IdentityID string `json:"identityId" dynamodbav:"identityId"`
	ExpiresAt  int64  `json:"-" dynamodbav:"expiresAt"` // TTL (Unix seconds)
}

// NewRecoveryCode builds a RecoveryCode with its composite ID filled in.
func NewRecoveryCode(identityID, codeType, code string) *RecoveryCode {
	return &RecoveryCode{
		ID:         RecoveryCodeID(identityID, codeType),
		Code:       code,
		Type:       codeType,
		IdentityID: identityID,
	}
}

// RecoveryCodeID derives the storage key of a RecoveryCode.
func RecoveryCodeID(identityID, codeType string) string {
	return fmt.Sprintf("%s:%s", codeType, identityID)
}

// IsRecoveryType reports whether t is one of the known recovery code types.
func IsRecoveryType(t string) bool {
	switch t {
	case RecoveryVerifyEmailAddress, RecoveryChangeEmailAddress, RecoveryResetPassword, RecoveryDeleteAccount:
		return true
	}
	return false
}
