// Package apperr carries the error taxonomy shared by the pipeline and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindDuplicate
	KindRateLimited
	KindForbidden
	KindNotFound
	KindUnavailable
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindRateLimited:
		return "rate_limited"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindUpstream:
		return "upstream"
	default:
		return "unexpected"
	}
}

// Error is a classified failure. Msg is safe to show to end users; Hint is an
// optional operator-facing remedy (e.g. "share the sheet with ...").
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Hint string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + ": " + e.Msg
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error, msg, hint string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Hint: hint, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// HintOf returns the operator hint attached to err, if any.
func HintOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}

// MessageOf returns the user-facing message, falling back to def.
func MessageOf(err error, def string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return def
}

func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicate:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
