package types

import (
	"errors"
	"fmt"
)

type ApiErrorType string

const (
	ApiErrorTypeInvalidToken ApiErrorType = "invalid_token"
	ApiErrorTypeAuth         ApiErrorType = "auth"
	ApiErrorTypeRequest      ApiErrorType = "request"
	ApiErrorTypeOther        ApiErrorType = "other"
)

type ApiError struct {
	Type   ApiErrorType `json:"type"`
	Status int          `json:"status"`
	Msg    string       `json:"msg"`
}

func (e *ApiError) Error() string {
	return e.Msg
}

type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindAuth       ErrorKind = "auth"
	ErrorKindFetch      ErrorKind = "fetch"
	ErrorKindMutation   ErrorKind = "mutation"
)

// BoardError is what the session manager and the board store hand to the
// presentation layer. Msg carries the remote service's message verbatim.
type BoardError struct {
	Kind   ErrorKind
	Op     string
	Msg    string
	Status int
}

func (e *BoardError) Error() string {
	if e.Op == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func NewValidationError(op, msg string) *BoardError {
	return &BoardError{Kind: ErrorKindValidation, Op: op, Msg: msg}
}

// FromApiError wraps a remote failure under the given kind, keeping its message as is.
func FromApiError(kind ErrorKind, op string, apiErr *ApiError) *BoardError {
	return &BoardError{Kind: kind, Op: op, Msg: apiErr.Msg, Status: apiErr.Status}
}

func KindOf(err error) ErrorKind {
	var boardErr *BoardError
	if errors.As(err, &boardErr) {
		return boardErr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
