// Package service provides business logic services for Waverly Store.
package service

import "errors"

// Common service errors.
var (
	// Validation errors
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidPassword = errors.New("invalid password: must be at least 6 characters")
	ErrInvalidName     = errors.New("invalid name: must not be empty")
	ErrInvalidStatus   = errors.New("invalid status: must not be empty")
	ErrEmptyUpdate     = errors.New("update contains no changes")

	// General errors
	ErrInternalError    = errors.New("internal storage error")
	ErrExportInProgress = errors.New("export already in progress")
)
