// Package core implements the cryptographic core: the key registry, the
// canary mapper, and the dispatch to pluggable encryption providers. Nothing
// in this package performs HTTP, CLI, or concrete persistence I/O; it is
// driven entirely through the narrow interfaces declared here.
package core

import "errors"

var (
	// ErrNoActiveKey is returned at startup when the configuration has zero
	// or multiple active key descriptors, or the provider yielded no keys.
	ErrNoActiveKey = errors.New("no active key configured")

	// ErrEncryptionInfrastructure wraps a non-wrong-key failure surfaced by
	// an encryption provider, either during canary reconciliation or at runtime.
	ErrEncryptionInfrastructure = errors.New("encryption infrastructure failure")

	// ErrUnknownCanary is returned when key_for is called with an id that is
	// not present in the binding map.
	ErrUnknownCanary = errors.New("unknown canary id")

	// ErrInvalidCaMaterial is returned when CA PEM material fails to parse.
	ErrInvalidCaMaterial = errors.New("invalid CA material")

	// ErrSigningFailure is returned when the content signer refuses to sign.
	ErrSigningFailure = errors.New("certificate signing failure")
)
