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

// Package providerapi is the hand-written equivalent of a generated
// provider base class: it gives a registered provider a method-name
// dispatch table the Dispatcher can invoke through, and attribute/
// broadcast registries the Publication Manager can subscribe against.
// There is no code generator in this repository — callers register
// methods, attributes, and broadcasts by name directly.
package providerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/pubmgr"
)

// MethodHandler runs one request-reply method call against its
// decoded parameters and returns the encoded reply.
type MethodHandler func(ctx context.Context, params json.RawMessage) (reply []byte, err error)

// OneWayHandler runs one fire-and-forget method call.
type OneWayHandler func(ctx context.Context, params json.RawMessage)

// AttributeListener is notified with an attribute's newly-changed,
// already-encoded value.
type AttributeListener func(value []byte)

// BroadcastListener is notified with a broadcast occurrence's
// already-encoded value and the filter parameters it was fired with.
type BroadcastListener func(value []byte, filterParams map[string]string)

// call is the wire envelope a request or one-way message's payload
// carries: a method name plus its already-encoded parameters.
type call struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// EncodeCall builds the wire envelope for method invoked with params.
// consumerapi uses this to build request/one-way payloads; exported so
// a provider's own tests can build fixtures without importing
// consumerapi.
func EncodeCall(method string, params json.RawMessage) ([]byte, error) {
	encoded, err := json.Marshal(call{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode call envelope: %w", err)
	}
	return encoded, nil
}

type attribute struct {
	read func() ([]byte, error)

	mu        sync.Mutex
	listeners []AttributeListener
}

func (a *attribute) notify(value []byte) {
	a.mu.Lock()
	listeners := append([]AttributeListener(nil), a.listeners...)
	a.mu.Unlock()
	for _, l := range listeners {
		l(value)
	}
}

type broadcast struct {
	mu        sync.Mutex
	listeners []BroadcastListener
}

func (b *broadcast) fire(value []byte, filterParams map[string]string) {
	b.mu.Lock()
	listeners := append([]BroadcastListener(nil), b.listeners...)
	b.mu.Unlock()
	for _, l := range listeners {
		l(value, filterParams)
	}
}

// Provider is one registered provider's method/attribute/broadcast
// table. It implements dispatcher.RequestInterpreter directly, and
// its Caller method produces a pubmgr.ProviderCaller for wiring into
// the Publication Manager.
type Provider struct {
	participantID string

	mu         sync.RWMutex
	methods    map[string]MethodHandler
	oneWays    map[string]OneWayHandler
	attributes map[string]*attribute
	broadcasts map[string]*broadcast
}

// New constructs an empty Provider for participantID.
func New(participantID string) *Provider {
	return &Provider{
		participantID: participantID,
		methods:       make(map[string]MethodHandler),
		oneWays:       make(map[string]OneWayHandler),
		attributes:    make(map[string]*attribute),
		broadcasts:    make(map[string]*broadcast),
	}
}

// ParticipantID returns the id this provider is registered under.
func (p *Provider) ParticipantID() string {
	return p.participantID
}

// RegisterMethod wires a request-reply method.
func (p *Provider) RegisterMethod(name string, h MethodHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.methods[name] = h
}

// RegisterOneWay wires a fire-and-forget method.
func (p *Provider) RegisterOneWay(name string, h OneWayHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oneWays[name] = h
}

// RegisterAttribute declares a subscribable attribute. read returns
// the attribute's current encoded value for periodic publication;
// NotifyAttributeChanged drives on-change publication.
func (p *Provider) RegisterAttribute(name string, read func() ([]byte, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attributes[name] = &attribute{read: read}
}

// RegisterBroadcast declares a subscribable broadcast. FireBroadcast
// drives publication of its occurrences.
func (p *Provider) RegisterBroadcast(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.broadcasts[name] = &broadcast{}
}

// NotifyAttributeChanged fans value out to every listener the
// Publication Manager has registered for name, triggering an
// on-change publication for each active subscription.
func (p *Provider) NotifyAttributeChanged(name string, value []byte) {
	p.mu.RLock()
	a, ok := p.attributes[name]
	p.mu.RUnlock()
	if ok {
		a.notify(value)
	}
}

// FireBroadcast fans value out to every listener registered for name,
// including the multicast listeners the Publication Manager wires
// through Caller, passing filterParams along; no filter is evaluated.
func (p *Provider) FireBroadcast(name string, value []byte, filterParams map[string]string) {
	p.mu.RLock()
	b, ok := p.broadcasts[name]
	p.mu.RUnlock()
	if ok {
		b.fire(value, filterParams)
	}
}

// Caller builds the pubmgr.ProviderCaller for name, trying attributes
// before broadcasts. The Publication Manager's provider resolver
// should be p.Caller for every name this provider exposes.
func (p *Provider) Caller(name string) (pubmgr.ProviderCaller, bool) {
	p.mu.RLock()
	a, isAttribute := p.attributes[name]
	b, isBroadcast := p.broadcasts[name]
	p.mu.RUnlock()

	switch {
	case isAttribute:
		return pubmgr.ProviderCaller{
			ReadAttribute: a.read,
			RegisterAttributeListener: func(onChange func(value []byte)) func() {
				a.mu.Lock()
				a.listeners = append(a.listeners, onChange)
				idx := len(a.listeners) - 1
				a.mu.Unlock()
				return func() {
					a.mu.Lock()
					defer a.mu.Unlock()
					if idx < len(a.listeners) {
						a.listeners = append(a.listeners[:idx], a.listeners[idx+1:]...)
					}
				}
			},
		}, true
	case isBroadcast:
		return pubmgr.ProviderCaller{
			RegisterBroadcastListener: func(onEvent func(value []byte, filterParams map[string]string)) func() {
				b.mu.Lock()
				b.listeners = append(b.listeners, onEvent)
				idx := len(b.listeners) - 1
				b.mu.Unlock()
				return func() {
					b.mu.Lock()
					defer b.mu.Unlock()
					if idx < len(b.listeners) {
						b.listeners = append(b.listeners[:idx], b.listeners[idx+1:]...)
					}
				}
			},
			RegisterMulticastListener: func(onEvent func(value []byte)) func() {
				wrapped := func(value []byte, _ map[string]string) { onEvent(value) }
				b.mu.Lock()
				b.listeners = append(b.listeners, wrapped)
				idx := len(b.listeners) - 1
				b.mu.Unlock()
				return func() {
					b.mu.Lock()
					defer b.mu.Unlock()
					if idx < len(b.listeners) {
						b.listeners = append(b.listeners[:idx], b.listeners[idx+1:]...)
					}
				}
			},
		}, true
	default:
		return pubmgr.ProviderCaller{}, false
	}
}

// Invoke implements dispatcher.RequestInterpreter.
func (p *Provider) Invoke(ctx context.Context, payload []byte, callback func(reply []byte, err error)) {
	var c call
	if err := json.Unmarshal(payload, &c); err != nil {
		callback(nil, fmt.Errorf("%w: malformed call envelope", ccerrors.ErrInvalidArgument))
		return
	}

	p.mu.RLock()
	h, ok := p.methods[c.Method]
	p.mu.RUnlock()
	if !ok {
		callback(nil, fmt.Errorf("%w: unknown method %q", ccerrors.ErrMethodInvocation, c.Method))
		return
	}
	reply, err := h(ctx, c.Params)
	callback(reply, err)
}

// InvokeOneWay implements dispatcher.RequestInterpreter.
func (p *Provider) InvokeOneWay(ctx context.Context, payload []byte) {
	var c call
	if err := json.Unmarshal(payload, &c); err != nil {
		return
	}
	p.mu.RLock()
	h, ok := p.oneWays[c.Method]
	p.mu.RUnlock()
	if ok {
		h(ctx, c.Params)
	}
}
