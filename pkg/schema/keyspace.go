// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package schema models the keyspace-level CDC surface: which datacenters a
// keyspace streams changes to, and the DDL validation rules around that
// option. The commit log consumes only the derived tracked-by-CDC bit.
package schema

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ReplicationStrategy names a keyspace's replication strategy.
type ReplicationStrategy int

const (
	// SimpleStrategy places replicas without datacenter awareness.
	SimpleStrategy ReplicationStrategy = iota
	// NetworkTopologyStrategy places replicas per datacenter.
	NetworkTopologyStrategy
)

// Keyspace is the subset of keyspace metadata the commit log cares about.
type Keyspace struct {
	Name     string
	Strategy ReplicationStrategy

	// CDCDatacenters holds the datacenters for which changes to this
	// keyspace are captured.
	CDCDatacenters map[string]struct{}
}

// MakeKeyspace constructs a Keyspace with the given CDC datacenters.
func MakeKeyspace(name string, strategy ReplicationStrategy, cdcDCs ...string) Keyspace {
	ks := Keyspace{Name: name, Strategy: strategy}
	if len(cdcDCs) > 0 {
		ks.CDCDatacenters = make(map[string]struct{}, len(cdcDCs))
		for _, dc := range cdcDCs {
			ks.CDCDatacenters[dc] = struct{}{}
		}
	}
	return ks
}

// CDCEnabled reports whether any datacenter captures changes for this
// keyspace.
func (ks Keyspace) CDCEnabled() bool {
	return len(ks.CDCDatacenters) > 0
}

// TrackedByCDC reports whether mutations to this keyspace are captured on a
// node in the given datacenter.
func (ks Keyspace) TrackedByCDC(localDC string) bool {
	_, ok := ks.CDCDatacenters[localDC]
	return ok
}

// sortedCDCDatacenters returns the configured CDC datacenters in stable
// order for error messages.
func (ks Keyspace) sortedCDCDatacenters() []string {
	dcs := make([]string, 0, len(ks.CDCDatacenters))
	for dc := range ks.CDCDatacenters {
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)
	return dcs
}

// ValidateCDCOptions checks a CREATE/ALTER KEYSPACE cdc_datacenters option
// against the set of datacenters known to the cluster.
func ValidateCDCOptions(ks Keyspace, knownDCs []string) error {
	known := make(map[string]struct{}, len(knownDCs))
	for _, dc := range knownDCs {
		known[dc] = struct{}{}
	}
	for _, dc := range ks.sortedCDCDatacenters() {
		if _, ok := known[dc]; !ok {
			return errors.Newf("unknown datacenter %q in cdc_datacenters for keyspace %q", dc, ks.Name)
		}
	}
	if ks.Strategy == SimpleStrategy && len(ks.CDCDatacenters) > 1 {
		return errors.Newf(
			"keyspace %q uses SimpleStrategy and cannot set more than one CDC datacenter (got %v)",
			ks.Name, ks.sortedCDCDatacenters())
	}
	return nil
}

// CheckDropKeyspace rejects DROP KEYSPACE while CDC is active on the
// keyspace.
func CheckDropKeyspace(ks Keyspace) error {
	if ks.CDCEnabled() {
		return errors.Newf(
			"cannot drop keyspace %q: CDC is active for datacenters %v; disable CDC first",
			ks.Name, ks.sortedCDCDatacenters())
	}
	return nil
}

// Mutation is a unit of write against one keyspace. It carries the derived
// tracked-by-CDC bit so the commit log never consults schema metadata on
// the hot path.
type Mutation struct {
	keyspace string
	cdc      bool
}

// NewMutation derives a mutation's CDC bit from the keyspace's configured
// CDC datacenters and the local node's datacenter.
func NewMutation(ks Keyspace, localDC string) Mutation {
	return Mutation{keyspace: ks.Name, cdc: ks.TrackedByCDC(localDC)}
}

// KeyspaceName returns the target keyspace.
func (m Mutation) KeyspaceName() string { return m.keyspace }

// TrackedByCDC reports whether this mutation is captured by CDC.
func (m Mutation) TrackedByCDC() bool { return m.cdc }
