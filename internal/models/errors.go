package models

import "errors"

// Sentinel errors shared across repositories and services. Callers branch
// with errors.Is instead of string matching.
var (
	// ErrNotFound indicates the referenced user, appeal, or queue item
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation was attempted against a
	// record whose current state does not permit it (e.g. deciding an
	// appeal that is not under review).
	ErrInvalidState = errors.New("invalid state")
)
