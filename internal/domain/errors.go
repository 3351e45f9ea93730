// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a duplicate write or a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource already exists or was modified by another request")

// ErrValidation indicates a malformed request payload or enum value.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates the caller has no identity.
var ErrUnauthorized = errors.New("authorization required")

// ErrForbidden indicates the caller's role does not permit the operation.
var ErrForbidden = errors.New("forbidden")

// ErrDomain indicates a business-rule violation that is neither a validation
// nor a storage failure, e.g. completing a calibration round with no pairs.
var ErrDomain = errors.New("domain rule violated")
