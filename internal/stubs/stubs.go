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

// Package stubs produces and caches per-address senders. A Factory
// holds an ordered list of transport-specific SubFactory
// implementations; the first whose CanCreate(address) answers true
// wins, mirroring the chain-of-responsibility the spec describes.
package stubs

import (
	"sync"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/message"
)

// Stub is a cached, per-address outbound sender.
type Stub interface {
	// Send hands encoded off to the transport. onFailure is invoked
	// asynchronously (never from within Send itself) if delivery
	// later fails.
	Send(encoded []byte, onFailure func(error)) error
	// Close tears down the underlying connection.
	Close() error
}

// SubFactory produces stubs for the address kinds it owns.
type SubFactory interface {
	CanCreate(addr message.Address) bool
	Create(addr message.Address) (Stub, error)
}

// Factory is the stub cache plus the ordered sub-factory chain.
type Factory struct {
	mu           sync.Mutex
	subFactories []SubFactory
	cache        map[string]Stub
}

// NewFactory constructs an empty factory. Register sub-factories with
// RegisterMiddlewareFactory before the first Create.
func NewFactory() *Factory {
	return &Factory{
		cache: make(map[string]Stub),
	}
}

// RegisterMiddlewareFactory appends sf to the chain, lowest priority
// last, matching the order the caller registers transports in.
func (f *Factory) RegisterMiddlewareFactory(sf SubFactory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subFactories = append(f.subFactories, sf)
}

// Create returns the cached stub for addr, creating one via the first
// matching sub-factory if none exists yet.
func (f *Factory) Create(addr message.Address) (Stub, error) {
	key := addr.Key()

	f.mu.Lock()
	if s, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return s, nil
	}
	subFactories := f.subFactories
	f.mu.Unlock()

	for _, sf := range subFactories {
		if !sf.CanCreate(addr) {
			continue
		}
		stub, err := sf.Create(addr)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.cache[key] = stub
		f.mu.Unlock()
		return stub, nil
	}
	return nil, ccerrors.ErrTransport
}

// Remove closes and evicts addr's cached stub, if any. Subsequent
// sends to addr recreate it lazily via Create.
func (f *Factory) Remove(addr message.Address) {
	f.mu.Lock()
	s, ok := f.cache[addr.Key()]
	if ok {
		delete(f.cache, addr.Key())
	}
	f.mu.Unlock()

	if ok {
		_ = s.Close()
	}
}

// Contains reports whether addr currently has a cached stub.
func (f *Factory) Contains(addr message.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.cache[addr.Key()]
	return ok
}
