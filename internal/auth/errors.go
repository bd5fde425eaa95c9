package auth

import "errors"

var (
	ErrNotFound               = errors.New("auth: principal not found")
	ErrAlreadyExists          = errors.New("auth: identity already registered")
	ErrInvalidCredentialInput = errors.New("auth: invalid credential input")
	ErrAuthenticationFailed   = errors.New("auth: authentication failed")
	ErrTokenInvalid           = errors.New("auth: invalid token")
	ErrTokenExpired           = errors.New("auth: token expired")
	ErrResetTokenNotFound     = errors.New("auth: no pending password reset")
	ErrResetTokenExpired      = errors.New("auth: password reset token expired")
	ErrResubmitNotAllowed     = errors.New("auth: resubmission only allowed from reupload")
)
