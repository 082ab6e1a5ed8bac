// Package auth verifies identity-provider bearer tokens against the
// provider's published JSON Web Key Sets.
package auth

import (
	"errors"
	"fmt"
)

// Kind classifies why a token was rejected.
type Kind string

const (
	KindMalformedToken      Kind = "malformed_token"
	KindKeyNotFound         Kind = "key_not_found"
	KindKeySetUnavailable   Kind = "key_set_unavailable"
	KindExpiredToken        Kind = "expired_token"
	KindInvalidAudience     Kind = "invalid_audience"
	KindInvalidIssuer       Kind = "invalid_issuer"
	KindInvalidSignature    Kind = "invalid_signature"
	KindUnsupportedTokenUse Kind = "unsupported_token_use"
	KindUnknown             Kind = "unknown"
)

// Error is a token verification failure. Err carries the underlying cause
// for server-side logs and is never shown to clients.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
	}
	return "auth: " + string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMalformedToken      = &Error{Kind: KindMalformedToken}
	ErrKeyNotFound         = &Error{Kind: KindKeyNotFound}
	ErrKeySetUnavailable   = &Error{Kind: KindKeySetUnavailable}
	ErrExpiredToken        = &Error{Kind: KindExpiredToken}
	ErrInvalidAudience     = &Error{Kind: KindInvalidAudience}
	ErrInvalidIssuer       = &Error{Kind: KindInvalidIssuer}
	ErrInvalidSignature    = &Error{Kind: KindInvalidSignature}
	ErrUnsupportedTokenUse = &Error{Kind: KindUnsupportedTokenUse}
)

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the failure kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}
