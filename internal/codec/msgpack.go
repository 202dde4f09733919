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
	"bytes"
	"fmt"

	"github.com/joynr-go/cluster-controller/internal/message"
	"github.com/tinylib/msgp/msgp"
)

// fieldCount is the number of map entries MsgPack writes per envelope.
// Bump alongside the Write/Read pair below if a field is added.
const fieldCount = 11

// MsgPack is the compact codec for low-overhead transports (MQTT,
// embedded links), writing directly against msgp's runtime Writer and
// Reader rather than relying on generated Marshal/Unmarshal methods —
// the envelope schema is stable enough that hand-written encode/decode
// is a fair trade for skipping codegen, per the serializer Non-goal.
type MsgPack struct{}

// NewMsgPack constructs the compact codec.
func NewMsgPack() MsgPack {
	return MsgPack{}
}

// Encode implements Codec.
func (MsgPack) Encode(m message.Message) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)

	if err := w.WriteMapHeader(fieldCount); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	fields := []struct {
		key string
		val interface{}
	}{
		{"id", m.ID},
		{"sender", m.Sender},
		{"recipient", m.Recipient},
		{"type", string(m.Type)},
		{"expiryMs", m.ExpiryMs},
		{"effort", string(m.Effort)},
		{"replyTo", m.ReplyTo},
		{"encrypt", m.Encrypt},
		{"compress", m.Compress},
		{"payload", m.Payload},
		{"headers", m.Headers},
	}
	for _, f := range fields {
		if err := w.WriteString(f.key); err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		if err := writeValue(w, f.val); err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func writeValue(w *msgp.Writer, v interface{}) error {
	switch val := v.(type) {
	case string:
		return w.WriteString(val)
	case int64:
		return w.WriteInt64(val)
	case bool:
		return w.WriteBool(val)
	case []byte:
		return w.WriteBytes(val)
	case map[string]string:
		return w.WriteMapStrStr(val)
	default:
		return fmt.Errorf("unsupported field type %T", v)
	}
}

// Decode implements Codec.
func (MsgPack) Decode(data []byte) (message.Message, error) {
	r := msgp.NewReader(bytes.NewReader(data))

	n, err := r.ReadMapHeader()
	if err != nil {
		return message.Message{}, fmt.Errorf("decode message: %w", err)
	}

	var m message.Message
	for i := uint32(0); i < n; i++ {
		key, err := r.ReadString()
		if err != nil {
			return message.Message{}, fmt.Errorf("decode message: %w", err)
		}
		switch key {
		case "id":
			m.ID, err = r.ReadString()
		case "sender":
			m.Sender, err = r.ReadString()
		case "recipient":
			m.Recipient, err = r.ReadString()
		case "type":
			var t string
			t, err = r.ReadString()
			m.Type = message.Type(t)
		case "expiryMs":
			m.ExpiryMs, err = r.ReadInt64()
		case "effort":
			var e string
			e, err = r.ReadString()
			m.Effort = message.Effort(e)
		case "replyTo":
			m.ReplyTo, err = r.ReadString()
		case "encrypt":
			m.Encrypt, err = r.ReadBool()
		case "compress":
			m.Compress, err = r.ReadBool()
		case "payload":
			m.Payload, err = r.ReadBytes(nil)
		case "headers":
			var sz uint32
			if sz, err = r.ReadMapHeader(); err == nil && sz > 0 {
				m.Headers = make(map[string]string, sz)
			}
			for j := uint32(0); err == nil && j < sz; j++ {
				var k string
				if k, err = r.ReadString(); err == nil {
					m.Headers[k], err = r.ReadString()
				}
			}
		default:
			err = r.Skip()
		}
		if err != nil {
			return message.Message{}, fmt.Errorf("decode message: %w", err)
		}
	}
	return m, nil
}
