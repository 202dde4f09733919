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

// Package consumerapi is the hand-written equivalent of a generated
// proxy base class: thin helpers that build the method-call envelope
// providerapi.Provider expects and drive it through the Dispatcher and
// Subscription Manager, so a consumer never constructs wire envelopes
// or subscription requests by hand.
package consumerapi

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joynr-go/cluster-controller/internal/providerapi"
	"github.com/joynr-go/cluster-controller/internal/qos"
	"github.com/joynr-go/cluster-controller/internal/submgr"
)

// Dispatcher is the subset of *dispatcher.Dispatcher a proxy needs.
// Declared here, not imported, so consumerapi stays a leaf package.
type Dispatcher interface {
	SendRequest(recipient string, payload []byte, ttl time.Duration, onSuccess func([]byte), onError func(error)) (string, error)
	SendOneWay(recipient string, payload []byte, ttl time.Duration)
}

// SubscriptionManager is the subset of *submgr.Manager a proxy needs.
type SubscriptionManager interface {
	RegisterSubscription(suggestedID, providerID, name string, listener submgr.Listener, q qos.Qos) string
	RegisterBroadcastSubscription(suggestedID, providerID, name string, filterParams map[string]string, listener submgr.Listener, q qos.Qos) string
	RegisterMulticastSubscription(suggestedID, name, providerID string, partitions []string, listener submgr.Listener, q qos.Qos) (string, string, error)
	UnregisterSubscription(id string)
}

// SendRequest encodes a method/params call envelope and routes it as
// a request to participantID, resolving onSuccess with the raw reply
// bytes (callers decode whatever return type they expect) or onError
// with whatever the provider or routing layer reported.
func SendRequest(d Dispatcher, participantID, method string, params any, ttl time.Duration, onSuccess func([]byte), onError func(error)) (string, error) {
	envelope, err := encodeCall(method, params)
	if err != nil {
		return "", err
	}
	return d.SendRequest(participantID, envelope, ttl, onSuccess, onError)
}

// SendOneWay encodes a method/params call envelope and routes it as a
// fire-and-forget call to participantID.
func SendOneWay(d Dispatcher, participantID, method string, params any, ttl time.Duration) error {
	envelope, err := encodeCall(method, params)
	if err != nil {
		return err
	}
	d.SendOneWay(participantID, envelope, ttl)
	return nil
}

func encodeCall(method string, params any) ([]byte, error) {
	var raw json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode call params: %w", err)
		}
		raw = encoded
	}
	envelope, err := providerapi.EncodeCall(method, raw)
	if err != nil {
		return nil, err
	}
	return envelope, nil
}

// Subscribe registers an attribute subscription against providerID's
// attribute attributeName, returning the subscription id the
// subscription manager assigned.
func Subscribe(sm SubscriptionManager, providerID, attributeName string, q qos.Qos, listener submgr.Listener) string {
	return sm.RegisterSubscription("", providerID, attributeName, listener, q)
}

// SubscribeToBroadcast registers a selective broadcast subscription
// against providerID's broadcast broadcastName, filtered by
// filterParams.
func SubscribeToBroadcast(sm SubscriptionManager, providerID, broadcastName string, filterParams map[string]string, q qos.Qos, listener submgr.Listener) string {
	return sm.RegisterBroadcastSubscription("", providerID, broadcastName, filterParams, listener, q)
}

// SubscribeMulticast registers a multicast subscription against
// providerID's broadcast broadcastName, optionally narrowed by
// partitions. It returns the subscription id and the resolved
// multicast id the subscription manager will match inbound
// publications against.
func SubscribeMulticast(sm SubscriptionManager, providerID, broadcastName string, partitions []string, q qos.Qos, listener submgr.Listener) (subscriptionID, multicastID string, err error) {
	return sm.RegisterMulticastSubscription("", broadcastName, providerID, partitions, listener, q)
}

// Unsubscribe tears down a previously-registered subscription of any
// kind.
func Unsubscribe(sm SubscriptionManager, subscriptionID string) {
	sm.UnregisterSubscription(subscriptionID)
}
