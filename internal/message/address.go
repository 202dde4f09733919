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

package message

import "fmt"

// AddressKind discriminates the Address tagged union. The source modeled
// addresses as a base class with virtual equals/hashCode per variant;
// here that becomes a single struct with a kind tag plus the fields each
// variant actually uses, so equality and hashing (Key) are plain code.
type AddressKind int

const (
	AddressInProcess AddressKind = iota
	AddressWebSocketClient
	AddressWebSocketServer
	AddressMQTT
	AddressHTTPChannel
)

// Address is a tagged-variant destination. Only the fields relevant to
// Kind are populated; Key returns a string suitable for map lookups
// (equality-by-variant, per the data model) and is what the stub factory
// caches stubs by.
type Address struct {
	Kind AddressKind

	// AddressInProcess
	ParticipantID string

	// AddressWebSocketClient / AddressWebSocketServer
	WebSocketURL string // client: URL to dial. server: generated id of the accepted connection.

	// AddressMQTT
	BrokerURL string
	Topic     string

	// AddressHTTPChannel
	ChannelURL string
}

// Key returns a stable, variant-aware identity string for use as a map
// key (stub cache, routing table indexes).
func (a Address) Key() string {
	switch a.Kind {
	case AddressInProcess:
		return fmt.Sprintf("inprocess:%s", a.ParticipantID)
	case AddressWebSocketClient:
		return fmt.Sprintf("wsclient:%s", a.WebSocketURL)
	case AddressWebSocketServer:
		return fmt.Sprintf("wsserver:%s", a.WebSocketURL)
	case AddressMQTT:
		return fmt.Sprintf("mqtt:%s/%s", a.BrokerURL, a.Topic)
	case AddressHTTPChannel:
		return fmt.Sprintf("http:%s", a.ChannelURL)
	default:
		return "unknown"
	}
}

// Equal reports variant-aware equality, as the data model requires for
// addresses to key the stub cache.
func (a Address) Equal(other Address) bool {
	return a.Key() == other.Key()
}

func (a AddressKind) String() string {
	switch a {
	case AddressInProcess:
		return "inProcess"
	case AddressWebSocketClient:
		return "webSocketClient"
	case AddressWebSocketServer:
		return "webSocketServer"
	case AddressMQTT:
		return "mqtt"
	case AddressHTTPChannel:
		return "httpChannel"
	default:
		return "unknown"
	}
}
