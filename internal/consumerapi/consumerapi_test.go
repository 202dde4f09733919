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

package consumerapi_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/consumerapi"
	"github.com/joynr-go/cluster-controller/internal/providerapi"
	"github.com/joynr-go/cluster-controller/internal/qos"
	"github.com/joynr-go/cluster-controller/internal/submgr"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	recipient string
	payload   []byte
	ttl       time.Duration
	oneWay    bool
}

func (d *recordingDispatcher) SendRequest(recipient string, payload []byte, ttl time.Duration, onSuccess func([]byte), _ func(error)) (string, error) {
	d.recipient, d.payload, d.ttl = recipient, payload, ttl
	onSuccess([]byte(`"ok"`))
	return "req-1", nil
}

func (d *recordingDispatcher) SendOneWay(recipient string, payload []byte, ttl time.Duration) {
	d.recipient, d.payload, d.ttl, d.oneWay = recipient, payload, ttl, true
}

func TestSendRequestEncodesCallEnvelope(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{}
	var gotReply []byte
	_, err := consumerapi.SendRequest(d, "calculator", "add", struct{ A, B int }{A: 2, B: 3}, time.Minute, func(reply []byte) {
		gotReply = reply
	}, func(error) {})
	require.NoError(t, err)
	require.Equal(t, "calculator", d.recipient)
	require.JSONEq(t, `"ok"`, string(gotReply))

	envelope, err := providerapi.EncodeCall("add", json.RawMessage(`{"A":2,"B":3}`))
	require.NoError(t, err)
	require.JSONEq(t, string(envelope), string(d.payload))
}

func TestSendOneWayEncodesCallEnvelope(t *testing.T) {
	t.Parallel()
	d := &recordingDispatcher{}
	require.NoError(t, consumerapi.SendOneWay(d, "calculator", "ping", nil, time.Minute))
	require.True(t, d.oneWay)

	envelope, err := providerapi.EncodeCall("ping", nil)
	require.NoError(t, err)
	require.JSONEq(t, string(envelope), string(d.payload))
}

type recordingSubscriptionManager struct {
	registered string
}

func (s *recordingSubscriptionManager) RegisterSubscription(_, providerID, name string, _ submgr.Listener, _ qos.Qos) string {
	s.registered = providerID + "/" + name
	return "sub-1"
}

func (s *recordingSubscriptionManager) RegisterBroadcastSubscription(_, providerID, name string, _ map[string]string, _ submgr.Listener, _ qos.Qos) string {
	s.registered = providerID + "/" + name
	return "sub-2"
}

func (s *recordingSubscriptionManager) RegisterMulticastSubscription(_, name, providerID string, _ []string, _ submgr.Listener, _ qos.Qos) (string, string, error) {
	s.registered = providerID + "/" + name
	return "sub-3", providerID + "/" + name, nil
}

func (s *recordingSubscriptionManager) UnregisterSubscription(id string) {
	s.registered = "unregistered:" + id
}

type noopListener struct{}

func (noopListener) OnReceive([]byte) {}
func (noopListener) OnError(error)    {}

func TestSubscribeDelegatesToSubscriptionManager(t *testing.T) {
	t.Parallel()
	sm := &recordingSubscriptionManager{}
	id := consumerapi.Subscribe(sm, "thermostat", "temperature", qos.Qos{}, noopListener{})
	require.Equal(t, "sub-1", id)
	require.Equal(t, "thermostat/temperature", sm.registered)
}

func TestSubscribeMulticastDelegatesToSubscriptionManager(t *testing.T) {
	t.Parallel()
	sm := &recordingSubscriptionManager{}
	subID, multicastID, err := consumerapi.SubscribeMulticast(sm, "doorsensor", "doorOpened", []string{"kitchen"}, qos.Qos{}, noopListener{})
	require.NoError(t, err)
	require.Equal(t, "sub-3", subID)
	require.Equal(t, "doorsensor/doorOpened", multicastID)
}

func TestUnsubscribeDelegatesToSubscriptionManager(t *testing.T) {
	t.Parallel()
	sm := &recordingSubscriptionManager{}
	consumerapi.Unsubscribe(sm, "sub-1")
	require.Equal(t, "unregistered:sub-1", sm.registered)
}
