// Package apperr holds the error taxonomy shared by the stores, the services
// and the HTTP layer. Callers match with errors.Is; stores wrap driver errors
// with ErrStorageUnavailable so the cause is kept.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMessage     = errors.New("message text is empty")
	ErrSelfRequest        = errors.New("cannot send a friend request to yourself")
	ErrUnknownIdentity    = errors.New("unknown identity")
	ErrAlreadyConnected   = errors.New("request already pending or already friends")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrPushUndelivered    = errors.New("recipient is not connected")

	ErrNoPendingRequest = errors.New("no pending request from this identity")
	ErrNotFriends       = errors.New("participants are not friends")
	ErrIdentityExists   = errors.New("identity already registered")
)

// Stable codes sent to clients alongside a localized message.
const (
	CodeInvalidMessage     = "invalid_message"
	CodeSelfRequest        = "self_request"
	CodeUnknownIdentity    = "unknown_identity"
	CodeAlreadyConnected   = "already_connected"
	CodeStorageUnavailable = "storage_unavailable"
	CodePushUndelivered    = "push_undelivered"
	CodeNoPendingRequest   = "no_pending_request"
	CodeNotFriends         = "not_friends"
	CodeIdentityExists     = "identity_exists"
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeInternal           = "internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidMessage, CodeInvalidMessage},
	{ErrSelfRequest, CodeSelfRequest},
	{ErrUnknownIdentity, CodeUnknownIdentity},
	{ErrAlreadyConnected, CodeAlreadyConnected},
	{ErrStorageUnavailable, CodeStorageUnavailable},
	{ErrPushUndelivered, CodePushUndelivered},
	{ErrNoPendingRequest, CodeNoPendingRequest},
	{ErrNotFriends, CodeNotFriends},
	{ErrIdentityExists, CodeIdentityExists},
}

// Code returns the client-facing code for err, or CodeInternal when err is
// outside the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Unavailable wraps a driver error as ErrStorageUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// IsValidation reports whether err is a caller mistake that must not be retried.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidMessage) ||
		errors.Is(err, ErrSelfRequest) ||
		errors.Is(err, ErrAlreadyConnected) ||
		errors.Is(err, ErrNoPendingRequest) ||
		errors.Is(err, ErrNotFriends) ||
		errors.Is(err, ErrIdentityExists)
}
