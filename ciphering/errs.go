package ciphering

import "errors"

var (
	ErrReplay                 = errors.New("invocation counter replayed")
	ErrKeyUnavailable         = errors.New("key material unavailable")
	ErrSuiteMismatch          = errors.New("security suite mismatch")
	ErrSecurityMismatch       = errors.New("security control mismatch")
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrSystemTitleUnknown     = errors.New("system title of the sender is unknown")
	ErrCounterExhausted       = errors.New("invocation counter exhausted")
	ErrMalformedCipheredAPDU  = errors.New("malformed ciphered apdu")
	ErrCertificateUnavailable = errors.New("certificate unavailable")
)
