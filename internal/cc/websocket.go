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

package cc

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joynr-go/cluster-controller/internal/message"
)

const (
	wsBufferSize      = 4096
	readHeaderTimeout = 3 * time.Second
)

// webSocketServer accepts connections from locally attached libjoynr
// runtimes on ClusterController.WSPort and feeds every inbound frame
// to the controller's Dispatcher through the worker pool, keeping
// request interpretation off this goroutine per the concurrency model.
type webSocketServer struct {
	cc       *Controller
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
	tls      bool
}

// participantQueryParam is the connecting runtime's own participant
// id, used to install a routing-table entry pointing at this
// connection. There is no handshake message on the wire for this:
// joynr's websocket transport establishes the channel out of band, and
// a query parameter keeps that out-of-band step out of the message
// envelope format.
const participantQueryParam = "ccParticipantId"

func newWebSocketServer(cc *Controller, port int, logger *slog.Logger) (*webSocketServer, error) {
	return newWebSocketServerWithTLS(cc, port, nil, logger)
}

// newWebSocketServerWithTLS builds a webSocketServer that terminates
// TLS with tlsConfig when set, for the cluster controller's
// ClusterController.WSTLSPort listener.
func newWebSocketServerWithTLS(cc *Controller, port int, tlsConfig *tls.Config, logger *slog.Logger) (*webSocketServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &webSocketServer{
		cc:     cc,
		logger: logger,
		tls:    tlsConfig != nil,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsBufferSize,
			WriteBufferSize: wsBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		TLSConfig:         tlsConfig,
	}
	return s, nil
}

func (s *webSocketServer) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.tls {
			err = s.server.ListenAndServeTLS("", "")
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("websocket server on %s: %w", s.server.Addr, err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.server.Close() //nolint:wrapcheck
	case err := <-errCh:
		return err
	}
}

func (s *webSocketServer) handle(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get(participantQueryParam)
	if participantID == "" {
		http.Error(w, "missing "+participantQueryParam, http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	addr := message.Address{Kind: message.AddressWebSocketServer, WebSocketURL: uuid.NewString()}
	s.cc.websocket.AdoptServerConn(addr, conn)
	s.cc.router.AddNextHop(participantID, addr, false, 0, false)

	s.logger.Info("websocket runtime attached", "participantId", participantID)
	s.readLoop(conn, participantID, addr)
}

func (s *webSocketServer) readLoop(conn *websocket.Conn, participantID string, addr message.Address) {
	defer func() {
		s.cc.router.RemoveNextHop(participantID)
		s.cc.websocket.RemoveServerConn(addr)
		_ = conn.Close()
		s.logger.Info("websocket runtime detached", "participantId", participantID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame := data
		s.cc.pool.Submit(func() {
			if err := s.cc.dispatch.HandleInbound(context.Background(), frame); err != nil {
				s.logger.Warn("failed to handle inbound websocket frame", "error", err)
			}
		})
	}
}
