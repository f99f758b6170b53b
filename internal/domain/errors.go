package domain

import "errors"

var (
	// ErrCANotFound is returned when no CA credential exists for the given id.
	ErrCANotFound = errors.New("ca credential not found")

	// ErrCAAlreadyExists is returned when a CA credential with the given name already exists.
	ErrCAAlreadyExists = errors.New("ca credential already exists")

	// ErrInvalidSubject is returned when a certificate subject is malformed.
	ErrInvalidSubject = errors.New("invalid certificate subject")

	// ErrMigrationFailed is returned when a migration fails to apply.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound is returned when a referenced migration file is missing.
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile is returned when a migration file name does not follow the expected format.
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
