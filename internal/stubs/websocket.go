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
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/joynr-go/cluster-controller/internal/message"
)

// WebSocketFactory dials outbound client connections (AddressWebSocketClient)
// and wraps already-accepted server-side connections
// (AddressWebSocketServer, registered via AdoptServerConn once the
// transport's http.Handler upgrades a request).
type WebSocketFactory struct {
	mu          sync.Mutex
	serverConns map[string]*websocket.Conn // keyed by Address.Key()
	Dialer      *websocket.Dialer
}

// NewWebSocketFactory constructs a factory using the package default
// dialer.
func NewWebSocketFactory() *WebSocketFactory {
	return &WebSocketFactory{
		serverConns: make(map[string]*websocket.Conn),
		Dialer:      websocket.DefaultDialer,
	}
}

// AdoptServerConn registers an already-upgraded connection so Create
// can hand it out as a stub for addr.
func (f *WebSocketFactory) AdoptServerConn(addr message.Address, conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverConns[addr.Key()] = conn
}

// RemoveServerConn forgets addr's accepted connection, once its
// read loop observes the peer disconnecting.
func (f *WebSocketFactory) RemoveServerConn(addr message.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.serverConns, addr.Key())
}

// CanCreate implements SubFactory.
func (f *WebSocketFactory) CanCreate(addr message.Address) bool {
	return addr.Kind == message.AddressWebSocketClient || addr.Kind == message.AddressWebSocketServer
}

// Create implements SubFactory.
func (f *WebSocketFactory) Create(addr message.Address) (Stub, error) {
	if addr.Kind == message.AddressWebSocketServer {
		f.mu.Lock()
		conn, ok := f.serverConns[addr.Key()]
		f.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("no accepted websocket connection for %s", addr.Key())
		}
		return &websocketStub{conn: conn}, nil
	}

	conn, _, err := f.Dialer.Dial(addr.WebSocketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", addr.WebSocketURL, err)
	}
	return &websocketStub{conn: conn}, nil
}

type websocketStub struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *websocketStub) Send(encoded []byte, _ func(error)) error {
	// Delivery is synchronous: the error, if any, is returned directly
	// rather than fired through onFailure, honoring Stub's "never from
	// within Send" contract.
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
		return fmt.Errorf("websocket send: %w", err)
	}
	return nil
}

func (s *websocketStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close() //nolint:wrapcheck
}
