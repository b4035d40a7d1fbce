package services

import "errors"

// Shared error vars used across services and HTTP mapping.
var (
	// Generic not-found
	ErrNotFound = errors.New("requested resource not found")

	// Validation and derivation
	ErrInvalidResultFile  = errors.New("result file is invalid")
	ErrMissingStartDate   = errors.New("tournament has no start date")
	ErrMissingName        = errors.New("tournament has neither a name nor a short name")
	ErrUnknownPostalCode  = errors.New("unknown state postal code")
	ErrSchoolNameRequired = errors.New("school name is required")
	ErrInvalidLetter      = errors.New("letter must be a single alphabetic character")

	// Auth
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email address is already in use")

	// Storage
	ErrLogoNotFound         = errors.New("logo not found")
	ErrStorageNotConfigured = errors.New("object storage is not configured")
)
