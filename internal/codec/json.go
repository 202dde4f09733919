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

package codec

import (
	"encoding/json"
	"fmt"

	"github.com/joynr-go/cluster-controller/internal/message"
)

// JSON is the default Codec. Readable on the wire, no generated code
// required, good enough for the WebSocket and HTTP long-poll stubs.
type JSON struct{}

// NewJSON constructs the default codec.
func NewJSON() JSON {
	return JSON{}
}

type jsonEnvelope struct {
	ID        string            `json:"id"`
	Sender    string            `json:"sender"`
	Recipient string            `json:"recipient"`
	Type      message.Type      `json:"type"`
	ExpiryMs  int64             `json:"expiryMs"`
	Effort    message.Effort    `json:"effort"`
	ReplyTo   string            `json:"replyTo,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Encrypt   bool              `json:"encrypt,omitempty"`
	Compress  bool              `json:"compress,omitempty"`
	Payload   []byte            `json:"payload,omitempty"`
}

// Encode implements Codec.
func (JSON) Encode(m message.Message) ([]byte, error) {
	data, err := json.Marshal(jsonEnvelope{
		ID:        m.ID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Type:      m.Type,
		ExpiryMs:  m.ExpiryMs,
		Effort:    m.Effort,
		ReplyTo:   m.ReplyTo,
		Headers:   m.Headers,
		Encrypt:   m.Encrypt,
		Compress:  m.Compress,
		Payload:   m.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (JSON) Decode(data []byte) (message.Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return message.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return message.Message{
		ID:        env.ID,
		Sender:    env.Sender,
		Recipient: env.Recipient,
		Type:      env.Type,
		ExpiryMs:  env.ExpiryMs,
		Effort:    env.Effort,
		ReplyTo:   env.ReplyTo,
		Headers:   env.Headers,
		Encrypt:   env.Encrypt,
		Compress:  env.Compress,
		Payload:   env.Payload,
	}, nil
}
