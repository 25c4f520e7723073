// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested remote entity (user, session) does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the remote entity already exists, usually because a
// concurrent caller created it first.
var ErrConflict = errors.New("conflict: resource already exists")

// ErrValidation indicates invalid caller input.
var ErrValidation = errors.New("validation failed")

// ErrPayloadTooLarge is returned when business data exceeds the configured
// maximum size and the overflow strategy is "fail".
var ErrPayloadTooLarge = errors.New("payload exceeds maximum data size")
