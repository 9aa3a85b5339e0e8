package sitehandler

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidID      = errors.New("invalid id")
	ErrInvalidPath    = errors.New("invalid path")
	ErrPathEscape     = errors.New("path escapes playable directory")
	ErrNotFound       = errors.New("not found")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

// StatusFor maps a Resolve error to the HTTP status sent to the client.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, ErrPathEscape), errors.Is(err, ErrTypeNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// reason is the label reported to OnDenied and the body sent to the client.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, ErrPathEscape):
		return "path_escape"
	case errors.Is(err, ErrTypeNotAllowed):
		return "type_not_allowed"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
