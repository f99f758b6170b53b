package core

import "fmt"

// KeyRegistry holds the ordered set of configured keys and distinguishes
// the active one. It performs no I/O; it is materialized once at startup
// from the provider that was itself constructed from the same descriptor
// list, so key order is preserved end to end.
type KeyRegistry struct {
	keys      []*Key
	activeKey *Key
}

// NewKeyRegistry validates that the configuration marks exactly one key
// descriptor active, then materializes the registry from the provider.
func NewKeyRegistry(descriptors []KeyDescriptor, provider Provider) (*KeyRegistry, error) {
	activeCount := 0
	for _, d := range descriptors {
		if d.Active {
			activeCount++
		}
	}
	if activeCount != 1 {
		return nil, fmt.Errorf("%w: expected exactly one active key descriptor, found %d", ErrNoActiveKey, activeCount)
	}

	keys := provider.Keys()
	active, err := provider.ActiveKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoActiveKey, err)
	}

	return &KeyRegistry{keys: keys, activeKey: active}, nil
}

// Keys returns the configured keys in configured order.
func (r *KeyRegistry) Keys() []*Key { return r.keys }

// ActiveKey returns the one key marked active in configuration.
func (r *KeyRegistry) ActiveKey() *Key { return r.activeKey }
