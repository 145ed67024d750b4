package httpx

import "errors"

// Kind classifies an error for transport. Handlers never pick HTTP status
// codes themselves; they return a kinded error and WriteError maps it.
type Kind int

const (
	KindUnauthorized Kind = iota
	KindPermissionDenied
	KindNotFound
	KindConflict
	KindInvalidInput
	KindStorageUnavailable
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func PermissionDenied() *Error {
	return &Error{Kind: KindPermissionDenied, Message: "Forbidden"}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func StorageUnavailable(err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: "Storage unavailable", Err: err}
}

// AsError unwraps err into an *Error if one is anywhere in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
