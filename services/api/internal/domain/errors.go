package domain

import "errors"

var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrOfferNotFound       = errors.New("offer not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnauthorized        = errors.New("not permitted")

	ErrOfferAlreadyResolved        = errors.New("offer already resolved")
	ErrInvalidTransferState        = errors.New("transaction is not in the expected state")
	ErrCredentialsAlreadySubmitted = errors.New("credentials already submitted")

	ErrInvalidDecision            = errors.New("decision must be accept or reject")
	ErrCredentialTypeRequired     = errors.New("access type is required")
	ErrCredentialURLRequired      = errors.New("access url is required")
	ErrCredentialUsernameRequired = errors.New("username is required")
	ErrCredentialSecretRequired   = errors.New("secret is required")
	ErrOTPRequired                = errors.New("otp is required")

	ErrInvalidID = errors.New("invalid id")
)
