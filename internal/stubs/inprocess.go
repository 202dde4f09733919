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

package stubs

import "github.com/joynr-go/cluster-controller/internal/message"

// Deliver hands an encoded in-process envelope straight to whatever
// this process's dispatcher does with inbound bytes. Set by the
// controller at wiring time.
type Deliver func(encoded []byte) error

// InProcessFactory produces stubs that call straight back into this
// process's own dispatcher, for proxies and providers hosted in the
// same CC.
type InProcessFactory struct {
	Deliver Deliver
}

// CanCreate implements SubFactory.
func (f *InProcessFactory) CanCreate(addr message.Address) bool {
	return addr.Kind == message.AddressInProcess
}

// Create implements SubFactory.
func (f *InProcessFactory) Create(message.Address) (Stub, error) {
	return &inProcessStub{deliver: f.Deliver}, nil
}

type inProcessStub struct {
	deliver Deliver
}

func (s *inProcessStub) Send(encoded []byte, _ func(error)) error {
	// Delivery is synchronous: the error, if any, is returned directly
	// rather than fired through onFailure, honoring Stub's "never from
	// within Send" contract.
	return s.deliver(encoded)
}

func (s *inProcessStub) Close() error { return nil }
