package services

import "errors"

// Sentinel errors surfaced to the API layer. Handlers map these to distinct
// HTTP statuses; anything else is an unclassified 500.
var (
	// ErrEmailTaken means the email is already bound to another account.
	ErrEmailTaken = errors.New("email already in use")
	// ErrUserNotFound means the requested account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden means the actor lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials covers unknown email, wrong password and
	// accounts without a password hash. Deliberately indistinct.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled means the credentials were valid but the account
	// is deactivated.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrInvalidGoogleToken means the Google credential failed verification.
	ErrInvalidGoogleToken = errors.New("invalid google token")
)
