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

package lcd_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/lcd"
	"github.com/joynr-go/cluster-controller/internal/persistence"
	"github.com/joynr-go/cluster-controller/internal/router"
	"github.com/stretchr/testify/require"
)

type blockingGlobal struct {
	lookupCalls int32
	release     chan struct{}
	result      []lcd.Entry
}

func (g *blockingGlobal) Register(context.Context, lcd.Entry) error { return nil }
func (g *blockingGlobal) Unregister(context.Context, string) error  { return nil }

func (g *blockingGlobal) Lookup(ctx context.Context, domains []string, interfaceName string) ([]lcd.Entry, error) {
	atomic.AddInt32(&g.lookupCalls, 1)
	<-g.release
	return g.result, nil
}

func (g *blockingGlobal) LookupByParticipantID(context.Context, string) (lcd.Entry, bool, error) {
	return lcd.Entry{}, false, nil
}

func newDirectory(t *testing.T, global lcd.GlobalDirectoryClient) *lcd.Directory {
	t.Helper()
	store := persistence.NewStore(filepath.Join(t.TempDir(), "lcd.json"))
	return lcd.New(lcd.Config{Backoff: router.Backoff{Base: time.Millisecond, Factor: 2, Cap: 50 * time.Millisecond}, MaxRetries: 3}, global, store, nil, nil, nil)
}

// TestLCDCoalescing is the "LCD coalescing" property: concurrent
// lookups for the same (domain, interface) while a global lookup is in
// flight result in exactly one global RPC, and every waiter observes
// the same result list.
func TestLCDCoalescing(t *testing.T) {
	t.Parallel()
	global := &blockingGlobal{
		release: make(chan struct{}),
		result:  []lcd.Entry{{ParticipantID: "p1", Domain: "d", InterfaceName: "i"}},
	}
	dir := newDirectory(t, global)

	const waiters = 5
	var wg sync.WaitGroup
	results := make([][]lcd.Candidate, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		idx := i
		go func() {
			defer wg.Done()
			dir.Lookup([]string{"d"}, "i", lcd.DiscoveryQos{Scope: lcd.DiscoveryGlobalOnly}, func(cs []lcd.Candidate) {
				results[idx] = cs
			}, func(error) {})
		}()
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&global.lookupCalls) == 1
	}, time.Second, time.Millisecond)

	// Give the remaining waiters time to register before releasing, so
	// the coalescing path (not a second RPC) is what resolves them.
	time.Sleep(20 * time.Millisecond)
	close(global.release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&global.lookupCalls))
	for i := 0; i < waiters; i++ {
		require.Len(t, results[i], 1)
		require.Equal(t, "p1", results[i][0].Entry.ParticipantID)
	}
}

// TestPersistenceRoundTrip is the "persistence round-trip" property
// for the LCD cache: for every persisted entity, loading after saving
// (in a fresh Directory instance, simulating a restart) yields an
// equal entity.
func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "lcd.json")
	store1 := persistence.NewStore(path)
	dir1 := lcd.New(lcd.Config{}, nil, store1, nil, nil, nil)

	entry := lcd.Entry{
		Domain:        "d",
		InterfaceName: "i",
		ParticipantID: "p1",
		ProviderQos:   lcd.ProviderQos{Scope: lcd.ScopeLocal},
	}
	dir1.Add(entry, false, func() {}, func(error) {})

	store2 := persistence.NewStore(path)
	dir2 := lcd.New(lcd.Config{}, nil, store2, nil, nil, nil)
	require.NoError(t, dir2.Replay())

	var got []lcd.Candidate
	dir2.Lookup([]string{"d"}, "i", lcd.DiscoveryQos{Scope: lcd.DiscoveryLocalOnly}, func(cs []lcd.Candidate) {
		got = cs
	}, func(error) {})
	require.Len(t, got, 1)
	require.Equal(t, "p1", got[0].Entry.ParticipantID)
}

func TestLocalThenGlobalCompletesFromLocalWhenAddRacesLookup(t *testing.T) {
	t.Parallel()
	global := &blockingGlobal{release: make(chan struct{})}
	dir := newDirectory(t, global)

	done := make(chan []lcd.Candidate, 1)
	go dir.Lookup([]string{"d"}, "i", lcd.DiscoveryQos{Scope: lcd.DiscoveryLocalThenGlobal}, func(cs []lcd.Candidate) {
		done <- cs
	}, func(error) {})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&global.lookupCalls) == 1
	}, time.Second, time.Millisecond)

	dir.Add(lcd.Entry{Domain: "d", InterfaceName: "i", ParticipantID: "late"}, false, func() {}, func(error) {})

	select {
	case cs := <-done:
		require.Len(t, cs, 1)
		require.Equal(t, "late", cs[0].Entry.ParticipantID)
	case <-time.After(time.Second):
		t.Fatal("waiter was not completed from the local add")
	}
	close(global.release)
}

func TestRemoveDeletesLocalEntry(t *testing.T) {
	t.Parallel()
	dir := newDirectory(t, nil)
	dir.Add(lcd.Entry{Domain: "d", InterfaceName: "i", ParticipantID: "p1"}, false, func() {}, func(error) {})
	dir.Remove("p1")

	var got []lcd.Candidate
	dir.Lookup([]string{"d"}, "i", lcd.DiscoveryQos{Scope: lcd.DiscoveryLocalOnly}, func(cs []lcd.Candidate) {
		got = cs
	}, func(error) {})
	require.Empty(t, got)
}

func TestArbitrateHighestPriority(t *testing.T) {
	t.Parallel()
	candidates := []lcd.Candidate{
		{Entry: lcd.Entry{ParticipantID: "low", ProviderQos: lcd.ProviderQos{Priority: 1}}},
		{Entry: lcd.Entry{ParticipantID: "high", ProviderQos: lcd.ProviderQos{Priority: 9}}},
	}
	result, err := lcd.Arbitrate(candidates, lcd.ArbitrationHighestPriority, lcd.ArbitrationParams{})
	require.NoError(t, err)
	require.Equal(t, "high", result.Entries[0].Entry.ParticipantID)
}

func TestArbitrateKeywordNoMatchIsDiscoveryFailure(t *testing.T) {
	t.Parallel()
	candidates := []lcd.Candidate{
		{Entry: lcd.Entry{ParticipantID: "p1", ProviderQos: lcd.ProviderQos{CustomParameters: map[string]string{"tier": "gold"}}}},
	}
	_, err := lcd.Arbitrate(candidates, lcd.ArbitrationKeyword, lcd.ArbitrationParams{KeywordParameterName: "tier", Keyword: "platinum"})
	require.ErrorIs(t, err, ccerrors.ErrDiscoveryTimeout)
}

func TestArbitrateFixedParticipantID(t *testing.T) {
	t.Parallel()
	candidates := []lcd.Candidate{
		{Entry: lcd.Entry{ParticipantID: "p1"}},
		{Entry: lcd.Entry{ParticipantID: "p2"}},
	}
	result, err := lcd.Arbitrate(candidates, lcd.ArbitrationFixedParticipantID, lcd.ArbitrationParams{FixedParticipantID: "p2"})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.Equal(t, "p2", result.Entries[0].Entry.ParticipantID)
}
