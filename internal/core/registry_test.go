package core

import (
	"errors"
	"testing"
)

func TestNewKeyRegistryRequiresExactlyOneActive(t *testing.T) {
	provider := newFakeProvider(2, 0)
	descs := []KeyDescriptor{{Active: true}, {Active: true}}
	if _, err := NewKeyRegistry(descs, provider); !errors.Is(err, ErrNoActiveKey) {
		t.Fatalf("err = %v, want ErrNoActiveKey for two active descriptors", err)
	}

	descs = []KeyDescriptor{{Active: false}, {Active: false}}
	if _, err := NewKeyRegistry(descs, provider); !errors.Is(err, ErrNoActiveKey) {
		t.Fatalf("err = %v, want ErrNoActiveKey for zero active descriptors", err)
	}
}

func TestNewKeyRegistryMaterializesFromProvider(t *testing.T) {
	provider := newFakeProvider(2, 1)
	descs := []KeyDescriptor{{Active: false}, {Active: true}}
	reg, err := NewKeyRegistry(descs, provider)
	if err != nil {
		t.Fatalf("NewKeyRegistry: %v", err)
	}
	if reg.ActiveKey() != provider.activeKey {
		t.Fatal("registry active key does not match provider active key")
	}
	if len(reg.Keys()) != 2 {
		t.Fatalf("len(Keys()) = %d, want 2", len(reg.Keys()))
	}
}
