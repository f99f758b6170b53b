package core

// ProviderKind identifies which encryption provider owns a Key's material.
type ProviderKind string

const (
	// ProviderLocal is the in-process AEAD provider.
	ProviderLocal ProviderKind = "local"
	// ProviderRemote is the remote encryption service.
	ProviderRemote ProviderKind = "remote"
)

// Key is an opaque handle to symmetric key material living inside a
// provider. Keys are immutable for their lifetime and compared by identity:
// callers must treat every *Key returned by a Provider as a distinct value
// even when two keys happen to wrap the same bytes. The material itself is
// never exposed through Key; the provider that minted a Key keeps its own
// bookkeeping from the returned pointer back to the underlying bytes or label.
type Key struct {
	Provider ProviderKind
}

// NewLocalKey mints an opaque handle for the in-process AEAD provider.
func NewLocalKey() *Key {
	return &Key{Provider: ProviderLocal}
}

// NewRemoteKey mints an opaque handle for the remote encryption provider.
func NewRemoteKey() *Key {
	return &Key{Provider: ProviderRemote}
}

// KeyDescriptor is the configuration-level description of a key before it
// is materialized by a provider: at most one descriptor per configuration
// may be active.
type KeyDescriptor struct {
	// Label is the human-readable identifier an operator assigned this
	// descriptor in configuration; it plays no cryptographic role.
	Label  string
	Active bool
	// Value is provider-specific: a hex-encoded key for the local provider,
	// a label for the remote provider.
	Value string
}
