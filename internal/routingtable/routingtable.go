// SPDX-License-Identifier: AGPL-3.0-or-later
// cluster-controller - a distributed service-oriented middleware core
// Copyright (C) 2026 The cluster-controller contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package routingtable maps participant ids to the address a message
// addressed to them should be sent to. A single RWMutex guards the
// table; lookups never escape the lock holding a callback, matching
// the leaf-lock policy every other shared component follows.
package routingtable

import (
	"sync"
	"time"

	"github.com/joynr-go/cluster-controller/internal/message"
	"github.com/joynr-go/cluster-controller/internal/metrics"
)

// Entry is one routing table row.
type Entry struct {
	Address           message.Address
	IsGloballyVisible bool
	ExpiryMs          int64
	IsSticky          bool
}

// Table is the routing table. The zero value is not usable; use New.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Entry
	metrics *metrics.Metrics
	now     func() int64
}

// New constructs an empty table. m may be nil in tests.
func New(m *metrics.Metrics) *Table {
	return &Table{
		entries: make(map[string]Entry),
		metrics: m,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Add inserts participantId -> entry, subject to the sticky-override
// rule: an add replaces an existing row iff that row is non-sticky, or
// the new row is sticky. A non-sticky add never overwrites a sticky
// row.
func (t *Table) Add(participantID string, addr message.Address, isGloballyVisible bool, expiryMs int64, isSticky bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.entries[participantID]
	if ok && existing.IsSticky && !isSticky {
		return
	}

	t.entries[participantID] = Entry{
		Address:           addr,
		IsGloballyVisible: isGloballyVisible,
		ExpiryMs:          expiryMs,
		IsSticky:          isSticky,
	}
	if t.metrics != nil {
		t.metrics.RoutingTableSize.Set(float64(len(t.entries)))
	}
}

// expired reports whether entry should be lazily evicted at now.
// Sticky entries never expire, per the directory's "sticky entries
// live until explicitly removed" invariant; expiryMs==0 likewise means
// no expiry, matching how RegisterProvider and the websocket handler
// install their next hops.
func expired(entry Entry, now int64) bool {
	return !entry.IsSticky && entry.ExpiryMs != 0 && entry.ExpiryMs <= now
}

// Lookup returns the entry for participantID, or ok=false if absent or
// lazily expired. An expired entry is evicted on this access.
func (t *Table) Lookup(participantID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[participantID]
	if !ok {
		return Entry{}, false
	}
	if expired(entry, t.now()) {
		delete(t.entries, participantID)
		if t.metrics != nil {
			t.metrics.RoutingTableEvictions.Inc()
			t.metrics.RoutingTableSize.Set(float64(len(t.entries)))
		}
		return Entry{}, false
	}
	return entry, true
}

// LookupParticipantsByAddress returns every participant id currently
// routed to addr (after the same lazy-expiry pass Lookup performs).
func (t *Table) LookupParticipantsByAddress(addr message.Address) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var ids []string
	for id, entry := range t.entries {
		if expired(entry, now) {
			delete(t.entries, id)
			continue
		}
		if entry.Address.Equal(addr) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Contains reports whether participantID has a live (non-expired)
// entry, applying the same lazy-expiry rule as Lookup.
func (t *Table) Contains(participantID string) bool {
	_, ok := t.Lookup(participantID)
	return ok
}

// Remove deletes participantID's entry. A no-op if absent.
func (t *Table) Remove(participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[participantID]; !ok {
		return
	}
	delete(t.entries, participantID)
	if t.metrics != nil {
		t.metrics.RoutingTableSize.Set(float64(len(t.entries)))
	}
}
