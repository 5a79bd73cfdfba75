package command

import (
	"testing"

	"github.com/shmocz/ra2yrcpp-sub000/wire"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(wire.PayloadKindStoreValue, func(ctx *Context) error {
		called = true
		return nil
	})

	h, err := r.Lookup(wire.PayloadKindStoreValue)
	require.NoError(t, err)
	require.NoError(t, h(&Context{}))
	require.True(t, called)
}

func TestRegistryLookupUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(wire.PayloadKindStoreValue)
	require.Error(t, err)
}

func TestRegistryRegisterNilPanics(t *testing.T) {
	r := NewRegistry()
	require.Panics(t, func() {
		r.Register(wire.PayloadKindStoreValue, nil)
	})
}

func TestRegistryDuplicateRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(wire.PayloadKindStoreValue, func(ctx *Context) error { return nil })
	require.Panics(t, func() {
		r.Register(wire.PayloadKindStoreValue, func(ctx *Context) error { return nil })
	})
}
