// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackedByCDC(t *testing.T) {
	ks := MakeKeyspace("orders", NetworkTopologyStrategy, "dc1", "dc3")
	require.True(t, ks.CDCEnabled())
	require.True(t, ks.TrackedByCDC("dc1"))
	require.False(t, ks.TrackedByCDC("dc2"))

	m := NewMutation(ks, "dc3")
	require.True(t, m.TrackedByCDC())
	require.Equal(t, "orders", m.KeyspaceName())

	require.False(t, NewMutation(ks, "dc2").TrackedByCDC())

	plain := MakeKeyspace("plain", SimpleStrategy)
	require.False(t, plain.CDCEnabled())
	require.False(t, NewMutation(plain, "dc1").TrackedByCDC())
}

func TestValidateCDCOptions(t *testing.T) {
	known := []string{"dc1", "dc2"}

	require.NoError(t, ValidateCDCOptions(MakeKeyspace("a", NetworkTopologyStrategy, "dc1", "dc2"), known))
	require.NoError(t, ValidateCDCOptions(MakeKeyspace("b", SimpleStrategy, "dc1"), known))

	err := ValidateCDCOptions(MakeKeyspace("c", NetworkTopologyStrategy, "dc9"), known)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown datacenter")

	err = ValidateCDCOptions(MakeKeyspace("d", SimpleStrategy, "dc1", "dc2"), known)
	require.Error(t, err)
	require.Contains(t, err.Error(), "SimpleStrategy")
}

func TestCheckDropKeyspace(t *testing.T) {
	require.NoError(t, CheckDropKeyspace(MakeKeyspace("plain", SimpleStrategy)))

	err := CheckDropKeyspace(MakeKeyspace("tracked", NetworkTopologyStrategy, "dc1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "CDC is active")
}
