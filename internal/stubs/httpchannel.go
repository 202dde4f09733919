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

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/joynr-go/cluster-controller/internal/message"
)

// HTTPChannelFactory produces stubs for long-poll channel addresses:
// delivery is a plain POST of the encoded envelope to the channel's
// URL, the receiving side being a long-poll servlet that queues it for
// the next poll.
type HTTPChannelFactory struct {
	Client *http.Client
}

// NewHTTPChannelFactory constructs a factory with a bounded-timeout
// client suitable for channel delivery POSTs.
func NewHTTPChannelFactory() *HTTPChannelFactory {
	return &HTTPChannelFactory{
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// CanCreate implements SubFactory.
func (f *HTTPChannelFactory) CanCreate(addr message.Address) bool {
	return addr.Kind == message.AddressHTTPChannel
}

// Create implements SubFactory.
func (f *HTTPChannelFactory) Create(addr message.Address) (Stub, error) {
	return &httpChannelStub{client: f.Client, url: addr.ChannelURL}, nil
}

type httpChannelStub struct {
	client *http.Client
	url    string
}

func (s *httpChannelStub) Send(encoded []byte, _ func(error)) error {
	// Delivery is synchronous: the error, if any, is returned directly
	// rather than fired through onFailure, honoring Stub's "never from
	// within Send" contract.
	resp, err := s.client.Post(s.url, "application/octet-stream", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("http channel post %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http channel post %s: status %d", s.url, resp.StatusCode)
	}
	return nil
}

func (s *httpChannelStub) Close() error { return nil }
