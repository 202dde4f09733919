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

package pubmgr_test

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/persistence"
	"github.com/joynr-go/cluster-controller/internal/pubmgr"
	"github.com/joynr-go/cluster-controller/internal/qos"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
	"github.com/stretchr/testify/require"
)

type publication struct {
	recipient string
	payload   string
	at        time.Time
}

type fakePublisher struct {
	mu   sync.Mutex
	pubs []publication
}

func (f *fakePublisher) SendPublication(recipient string, payload []byte, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, publication{recipient: recipient, payload: string(payload), at: time.Now()})
}

func (f *fakePublisher) SendMulticast(recipient string, payload []byte, _ time.Duration) {
	f.SendPublication(recipient, payload, 0)
}

func (f *fakePublisher) snapshot() []publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publication, len(f.pubs))
	copy(out, f.pubs)
	return out
}

func newManager(t *testing.T, pub pubmgr.Publisher) *pubmgr.Manager {
	t.Helper()
	delayed, err := scheduler.NewDelayed()
	require.NoError(t, err)
	t.Cleanup(func() { _ = delayed.Shutdown() })
	store := persistence.NewStore(filepath.Join(t.TempDir(), "subscriptions.json"))
	return pubmgr.New(store, delayed, pub, nil, nil)
}

func TestPeriodicSubscriptionPublishesOnCadence(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	mgr := newManager(t, pub)

	var reads int
	caller := pubmgr.ProviderCaller{
		ReadAttribute: func() ([]byte, error) {
			reads++
			return []byte("value"), nil
		},
	}

	q := qos.Qos{Kind: qos.KindPeriodic, Period: 50 * time.Millisecond, PublicationTTL: time.Second}
	require.NoError(t, mgr.Add(pubmgr.AddRequest{
		SubscriptionID: "sub-1",
		ProviderID:     "provider-1",
		SubscriberID:   "subscriber-1",
		Name:           "attr",
		Qos:            q,
	}, caller))

	require.Eventually(t, func() bool {
		return len(pub.snapshot()) >= 2
	}, time.Second, 5*time.Millisecond)

	pubs := pub.snapshot()
	require.GreaterOrEqual(t, len(pubs), 2)
	gap := pubs[1].at.Sub(pubs[0].at)
	require.GreaterOrEqual(t, gap, 15*time.Millisecond)
}

func TestOnChangeRespectsMinInterval(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	mgr := newManager(t, pub)

	var onChange func(value []byte)
	caller := pubmgr.ProviderCaller{
		RegisterAttributeListener: func(fn func([]byte)) func() {
			onChange = fn
			return func() {}
		},
	}

	q := qos.Qos{Kind: qos.KindOnChange, MinInterval: 60 * time.Millisecond, PublicationTTL: time.Second}
	require.NoError(t, mgr.Add(pubmgr.AddRequest{
		SubscriptionID: "sub-2",
		ProviderID:     "provider-1",
		SubscriberID:   "subscriber-1",
		Name:           "attr",
		Qos:            q,
	}, caller))
	require.NotNil(t, onChange)

	onChange([]byte("v1"))
	onChange([]byte("v2")) // within minInterval, must be coalesced
	onChange([]byte("v3")) // supersedes v2 as the pending value

	require.Eventually(t, func() bool {
		return len(pub.snapshot()) >= 1
	}, 100*time.Millisecond, 2*time.Millisecond)
	first := pub.snapshot()
	require.Len(t, first, 1)
	require.Equal(t, "v1", first[0].payload)

	require.Eventually(t, func() bool {
		return len(pub.snapshot()) >= 2
	}, time.Second, 5*time.Millisecond)

	pubs := pub.snapshot()
	require.Len(t, pubs, 2)
	require.Equal(t, "v3", pubs[1].payload)
	require.GreaterOrEqual(t, pubs[1].at.Sub(pubs[0].at), 40*time.Millisecond)
}

func TestAlertAfterIntervalFiresWhenNoPublicationOccurs(t *testing.T) {
	t.Parallel()
	pub := &fakePublisher{}
	mgr := newManager(t, pub)

	caller := pubmgr.ProviderCaller{
		RegisterAttributeListener: func(func([]byte)) func() { return func() {} },
	}

	q := qos.Qos{
		Kind:               qos.KindOnChange,
		AlertAfterInterval: 30 * time.Millisecond,
		PublicationTTL:     time.Second,
	}
	require.NoError(t, mgr.Add(pubmgr.AddRequest{
		SubscriptionID: "sub-3",
		ProviderID:     "provider-1",
		SubscriberID:   "subscriber-1",
		Name:           "attr",
		Qos:            q,
	}, caller))

	require.Eventually(t, func() bool {
		for _, p := range pub.snapshot() {
			if strings.Contains(p.payload, "missedPublication") {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
