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

// Package codec serializes message.Message envelopes for the wire.
// Components depend only on the Codec interface; which implementation
// a transport stub picks is a deployment decision, not a core one.
package codec

import "github.com/joynr-go/cluster-controller/internal/message"

// Codec encodes and decodes a Message envelope. Implementations must
// round-trip every field New populates, including headers.
type Codec interface {
	Encode(m message.Message) ([]byte, error)
	Decode(data []byte) (message.Message, error)
}
