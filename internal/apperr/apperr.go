// Package apperr classifies failures into the four kinds the service reports
// and converts them into the partner-facing {code, message} error shape.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the class of an error.
type Kind int

const (
	// KindUnknown is any error that was not classified.
	KindUnknown Kind = iota
	// KindRequest is malformed caller input. Never retried.
	KindRequest
	// KindAuthorization is a missing privilege or a failed signature check.
	KindAuthorization
	// KindNotFound is an absent entity, or one outside the caller's organization tree.
	KindNotFound
	// KindState is a downstream/partner failure or an invariant violation.
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "RequestError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindNotFound:
		return "NotFoundError"
	case KindState:
		return "StateError"
	default:
		return "UnknownError"
	}
}

// Error is a classified error. The message is safe to show to callers,
// the wrapped error is kept for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Request returns a RequestError.
func Request(format string, args ...any) error {
	return &Error{Kind: KindRequest, Message: fmt.Sprintf(format, args...)}
}

// Authorization returns an AuthorizationError.
func Authorization(format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a NotFoundError.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// State returns a StateError.
func State(format string, args ...any) error {
	return &Error{Kind: KindState, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind with a caller-facing message.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Protocol error codes used across the federation boundary.
const (
	CodeBadRequest      = "BadRequest"
	CodeAccessDenied    = "AccessDenied"
	CodeNoSuchFootprint = "NoSuchFootprint"
	CodeNotImplemented  = "NotImplemented"
	CodeInternalError   = "InternalError"
)

// ProtocolError is the error body exchanged with partners.
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *ProtocolError) Error() string {
	return p.Code + ": " + p.Message
}

// NotImplemented returns a RequestError that renders as the NotImplemented
// protocol code.
func NotImplemented(format string, args ...any) error {
	return &Error{Kind: KindRequest, Message: fmt.Sprintf(format, args...), Err: errNotImplemented}
}

var errNotImplemented = errors.New("not implemented")

// ToProtocol maps err to an HTTP status and the partner error body. Local
// validation failures and mapped downstream failures produce the same shape.
func ToProtocol(err error) (int, ProtocolError) {
	var remote *ProtocolError
	if errors.As(err, &remote) {
		return http.StatusBadRequest, *remote
	}

	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, ProtocolError{Code: CodeInternalError, Message: "internal error"}
	}

	switch e.Kind {
	case KindRequest:
		if errors.Is(e.Err, errNotImplemented) {
			return http.StatusBadRequest, ProtocolError{Code: CodeNotImplemented, Message: e.Message}
		}
		return http.StatusBadRequest, ProtocolError{Code: CodeBadRequest, Message: e.Message}
	case KindAuthorization:
		return http.StatusForbidden, ProtocolError{Code: CodeAccessDenied, Message: e.Message}
	case KindNotFound:
		return http.StatusNotFound, ProtocolError{Code: CodeNoSuchFootprint, Message: e.Message}
	default:
		return http.StatusInternalServerError, ProtocolError{Code: CodeInternalError, Message: e.Message}
	}
}

// HTTPStatus returns the status code used by operator endpoints for err.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindRequest:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
