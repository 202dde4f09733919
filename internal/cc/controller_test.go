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

package cc_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/cc"
	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/config"
	"github.com/joynr-go/cluster-controller/internal/consumerapi"
	"github.com/joynr-go/cluster-controller/internal/persistence"
	"github.com/joynr-go/cluster-controller/internal/providerapi"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) *cc.Controller {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		LibJoynr: config.LibJoynr{
			ParticipantIDsPersistenceFile: filepath.Join(dir, "ParticipantIDs.properties"),
		},
		ClusterController: config.ClusterController{
			MulticastReceiverDirectoryPersistenceFile: filepath.Join(dir, "MulticastReceiverDirectory.properties"),
		},
	}
	controller, err := cc.New(cfg, "cc-under-test", nil)
	require.NoError(t, err)
	return controller
}

type addParams struct {
	A int `json:"a"`
	B int `json:"b"`
}

func newCalculatorProvider() *providerapi.Provider {
	provider := providerapi.New("calculator")
	provider.RegisterMethod("add", func(_ context.Context, params json.RawMessage) ([]byte, error) {
		var p addParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decode add params: %w", err)
		}
		return json.Marshal(p.A + p.B)
	})
	return provider
}

// Registering a provider and sending it a request through the
// consumer-facing API exercises the full in-process path: encode ->
// Dispatcher.SendRequest -> Router -> the in-process stub -> back into
// the Dispatcher -> the provider's method table -> reply.
func TestRequestAddTwoIntegersRoundTrips(t *testing.T) {
	t.Parallel()
	controller := newTestController(t)
	controller.RegisterProvider(newCalculatorProvider())

	replies := make(chan []byte, 1)
	errs := make(chan error, 1)
	_, err := consumerapi.SendRequest(controller.Dispatcher(), "calculator", "add", addParams{A: 2, B: 3}, time.Second, func(reply []byte) {
		replies <- reply
	}, func(err error) {
		errs <- err
	})
	require.NoError(t, err)

	select {
	case reply := <-replies:
		var sum int
		require.NoError(t, json.Unmarshal(reply, &sum))
		require.Equal(t, 5, sum)
	case err := <-errs:
		t.Fatalf("unexpected error reply: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

// A request addressed to a participant id nobody ever registered has
// no routing entry and no provider interpreter, so it never gets a
// reply; the reply caller's own TTL timer is what eventually resolves
// it with an error, since the router only ever parks it in the
// message queue waiting for a next hop that will never arrive.
func TestRequestToUnknownRecipientFailsOnTTLExpiry(t *testing.T) {
	t.Parallel()
	controller := newTestController(t)

	replies := make(chan []byte, 1)
	errs := make(chan error, 1)
	_, err := consumerapi.SendRequest(controller.Dispatcher(), "ghost-participant", "add", addParams{A: 1, B: 1}, 50*time.Millisecond, func(reply []byte) {
		replies <- reply
	}, func(err error) {
		errs <- err
	})
	require.NoError(t, err)

	select {
	case reply := <-replies:
		t.Fatalf("unexpected successful reply: %s", reply)
	case err := <-errs:
		require.ErrorIs(t, err, ccerrors.ErrTTLExpired)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ttl expiry error")
	}
}

// RegisterProvider followed by UnregisterProvider removes both the
// request interpreter and the routing entry, so a subsequent request
// to the same id behaves exactly like the unknown-recipient case.
func TestUnregisterProviderStopsFurtherDelivery(t *testing.T) {
	t.Parallel()
	controller := newTestController(t)
	provider := newCalculatorProvider()
	controller.RegisterProvider(provider)
	controller.UnregisterProvider(provider.ParticipantID())

	errs := make(chan error, 1)
	_, err := consumerapi.SendRequest(controller.Dispatcher(), "calculator", "add", addParams{A: 1, B: 1}, 50*time.Millisecond, func([]byte) {
		t.Error("unexpected successful reply after unregistration")
	}, func(err error) {
		errs <- err
	})
	require.NoError(t, err)

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ccerrors.ErrTTLExpired)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ttl expiry error")
	}
}

// PersistParticipantID survives a restart: a second Controller built
// against the same persistence files resolves the same id.
func TestParticipantIDSurvivesRestart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := config.Config{
		LibJoynr: config.LibJoynr{
			ParticipantIDsPersistenceFile: filepath.Join(dir, "ParticipantIDs.properties"),
		},
		ClusterController: config.ClusterController{
			MulticastReceiverDirectoryPersistenceFile: filepath.Join(dir, "MulticastReceiverDirectory.properties"),
		},
	}

	first, err := cc.New(cfg, "cc-1", nil)
	require.NoError(t, err)
	require.NoError(t, first.PersistParticipantID("calculator", "uuid-1234"))

	second, err := cc.New(cfg, "cc-1", nil)
	require.NoError(t, err)
	got, ok := second.ResolveParticipantID("calculator")
	require.True(t, ok)
	require.Equal(t, "uuid-1234", got)
}

// AddMulticastReceiver persists the receiver directory, and a fresh
// Controller reloads it so the router already knows about a
// previously-registered local subscriber.
func TestMulticastReceiverDirectorySurvivesRestart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := config.Config{
		LibJoynr: config.LibJoynr{
			ParticipantIDsPersistenceFile: filepath.Join(dir, "ParticipantIDs.properties"),
		},
		ClusterController: config.ClusterController{
			MulticastReceiverDirectoryPersistenceFile: filepath.Join(dir, "MulticastReceiverDirectory.properties"),
		},
	}

	first, err := cc.New(cfg, "cc-1", nil)
	require.NoError(t, err)
	require.NoError(t, first.AddMulticastReceiver("provider/broadcast", "sub-1"))

	store := persistence.NewKeyValueStore(cfg.ClusterController.MulticastReceiverDirectoryPersistenceFile)
	persisted, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "sub-1", persisted["provider/broadcast"])

	// A Controller built against the same files on startup replays the
	// directory back into its router, so removing the replayed receiver
	// drops it from the persisted file as well.
	second, err := cc.New(cfg, "cc-1", nil)
	require.NoError(t, err)
	require.NoError(t, second.RemoveMulticastReceiver("provider/broadcast", "sub-1"))

	persisted, err = store.Load()
	require.NoError(t, err)
	_, stillPresent := persisted["provider/broadcast"]
	require.False(t, stillPresent)
}
