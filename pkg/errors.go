// Package pkg holds utilities shared across the chat server.
// This file defines the domain-level errors.
//
// Errors are plain sentinel values so callers compare by identity rather than by
// string:
//
//	if errors.Is(err, pkg.ErrNotAMember) { ... }
//
// Services wrap them with context (fmt.Errorf("%w: ...")); the HTTP layer maps them
// to status codes and the WebSocket layer maps them to error codes.
package pkg

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotAMember    = errors.New("not a member of this room")
	ErrValidation    = errors.New("validation failed")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrRateLimited   = errors.New("rate limited")
	ErrInternal      = errors.New("internal error")
)

// Error codes sent to WebSocket clients in "error" events.
const (
	CodeAuth        = "auth_error"
	CodeNotAMember  = "not_a_member"
	CodeValidation  = "validation_error"
	CodeNotFound    = "not_found"
	CodeForbidden   = "forbidden"
	CodeRateLimited = "rate_limited"
	CodeBadRequest  = "bad_request"
	CodeInternal    = "internal"
)

// ErrorCode maps a (possibly wrapped) domain error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeAuth
	case errors.Is(err, ErrNotAMember):
		return CodeNotAMember
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrAlreadyExists):
		return CodeBadRequest
	default:
		return CodeInternal
	}
}
