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

// Package grpcdirectory is a google.golang.org/grpc-backed
// implementation of lcd.GlobalDirectoryClient, for the peer-to-peer
// discovery RPC surface. There is no protoc/buf step in this build
// (see DESIGN.md), so wire messages are plain JSON-tagged Go structs
// carried over a custom grpc codec instead of protoc-gen-go-generated
// types; the RPC multiplexing, deadlines, and connection management
// are all genuine grpc, only the message encoding differs from the
// usual protobuf codec.
package grpcdirectory

import (
	"context"
	"fmt"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/lcd"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "clustercontroller.lcd.GlobalDirectory"

// wireEntry is lcd.Entry's wire shape: lcd.Entry itself carries a
// message.Address value, which this package doesn't need to know the
// internals of beyond round-tripping it, so the wire shape embeds the
// same fields directly rather than importing message for a type alias.
type wireEntry struct {
	Domain        string            `json:"domain"`
	InterfaceName string            `json:"interfaceName"`
	MajorVersion  int               `json:"majorVersion"`
	ParticipantID string            `json:"participantId"`
	Priority      int64             `json:"priority"`
	SupportsOnChange bool           `json:"supportsOnChange"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	LastSeenMs    int64             `json:"lastSeenMs"`
	ExpiryMs      int64             `json:"expiryMs"`
	PublicKeyID   string            `json:"publicKeyId"`
	AddressKind   int               `json:"addressKind"`
	AddressValue  string            `json:"addressValue"`
}

func toWire(e lcd.Entry) wireEntry {
	return wireEntry{
		Domain:           e.Domain,
		InterfaceName:    e.InterfaceName,
		MajorVersion:     e.MajorVersion,
		ParticipantID:    e.ParticipantID,
		Priority:         e.ProviderQos.Priority,
		SupportsOnChange: e.ProviderQos.SupportsOnChange,
		CustomParameters: e.ProviderQos.CustomParameters,
		LastSeenMs:       e.LastSeenMs,
		ExpiryMs:         e.ExpiryMs,
		PublicKeyID:      e.PublicKeyID,
		AddressKind:      int(e.Address.Kind),
		AddressValue:     e.Address.Key(),
	}
}

func fromWire(w wireEntry) lcd.Entry {
	return lcd.Entry{
		Domain:        w.Domain,
		InterfaceName: w.InterfaceName,
		MajorVersion:  w.MajorVersion,
		ParticipantID: w.ParticipantID,
		ProviderQos: lcd.ProviderQos{
			Scope:            lcd.ScopeGlobal,
			Priority:         w.Priority,
			SupportsOnChange: w.SupportsOnChange,
			CustomParameters: w.CustomParameters,
		},
		LastSeenMs:  w.LastSeenMs,
		ExpiryMs:    w.ExpiryMs,
		PublicKeyID: w.PublicKeyID,
	}
}

type registerRequest struct {
	Entry wireEntry `json:"entry"`
}

type registerResponse struct{}

type unregisterRequest struct {
	ParticipantID string `json:"participantId"`
}

type unregisterResponse struct{}

type lookupRequest struct {
	Domains       []string `json:"domains"`
	InterfaceName string   `json:"interfaceName"`
}

type lookupResponse struct {
	Entries []wireEntry `json:"entries"`
}

type lookupByIDRequest struct {
	ParticipantID string `json:"participantId"`
}

type lookupByIDResponse struct {
	Found bool      `json:"found"`
	Entry wireEntry `json:"entry"`
}

// Client implements lcd.GlobalDirectoryClient over a grpc.ClientConn.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection (dialed with
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)) so
// every call on it uses the JSON codec by default).
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp interface{}) error {
	err := c.conn.Invoke(ctx, fmt.Sprintf("/%s/%s", serviceName, method), req, resp, grpc.CallContentSubtype(codecName))
	if err != nil {
		if status.Code(err) == codes.DeadlineExceeded {
			return ccerrors.ErrDiscoveryTimeout
		}
		return fmt.Errorf("%w: %s: %v", ccerrors.ErrTransport, method, err)
	}
	return nil
}

// Register implements lcd.GlobalDirectoryClient.
func (c *Client) Register(ctx context.Context, e lcd.Entry) error {
	return c.invoke(ctx, "Register", &registerRequest{Entry: toWire(e)}, &registerResponse{})
}

// Unregister implements lcd.GlobalDirectoryClient.
func (c *Client) Unregister(ctx context.Context, participantID string) error {
	return c.invoke(ctx, "Unregister", &unregisterRequest{ParticipantID: participantID}, &unregisterResponse{})
}

// Lookup implements lcd.GlobalDirectoryClient.
func (c *Client) Lookup(ctx context.Context, domains []string, interfaceName string) ([]lcd.Entry, error) {
	resp := &lookupResponse{}
	if err := c.invoke(ctx, "Lookup", &lookupRequest{Domains: domains, InterfaceName: interfaceName}, resp); err != nil {
		return nil, err
	}
	entries := make([]lcd.Entry, len(resp.Entries))
	for i, w := range resp.Entries {
		entries[i] = fromWire(w)
	}
	return entries, nil
}

// LookupByParticipantID implements lcd.GlobalDirectoryClient.
func (c *Client) LookupByParticipantID(ctx context.Context, participantID string) (lcd.Entry, bool, error) {
	resp := &lookupByIDResponse{}
	if err := c.invoke(ctx, "LookupByParticipantID", &lookupByIDRequest{ParticipantID: participantID}, resp); err != nil {
		return lcd.Entry{}, false, err
	}
	if !resp.Found {
		return lcd.Entry{}, false, nil
	}
	return fromWire(resp.Entry), true, nil
}

// Backend is the server-side counterpart a peer CC implements to serve
// the global directory RPCs.
type Backend interface {
	Register(ctx context.Context, e lcd.Entry) error
	Unregister(ctx context.Context, participantID string) error
	Lookup(ctx context.Context, domains []string, interfaceName string) ([]lcd.Entry, error)
	LookupByParticipantID(ctx context.Context, participantID string) (lcd.Entry, bool, error)
}

func registerHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(registerRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		err := srv.(Backend).Register(ctx, fromWire(req.Entry))
		return &registerResponse{}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Register"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		err := srv.(Backend).Register(ctx, fromWire(req.(*registerRequest).Entry))
		return &registerResponse{}, err
	}
	return interceptor(ctx, req, info, handler)
}

func unregisterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(unregisterRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		err := srv.(Backend).Unregister(ctx, req.ParticipantID)
		return &unregisterResponse{}, err
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Unregister"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		err := srv.(Backend).Unregister(ctx, req.(*unregisterRequest).ParticipantID)
		return &unregisterResponse{}, err
	}
	return interceptor(ctx, req, info, handler)
}

func lookupHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(lookupRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*lookupRequest)
		entries, err := srv.(Backend).Lookup(ctx, r.Domains, r.InterfaceName)
		if err != nil {
			return nil, err
		}
		resp := &lookupResponse{Entries: make([]wireEntry, len(entries))}
		for i, e := range entries {
			resp.Entries[i] = toWire(e)
		}
		return resp, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Lookup"}
	return interceptor(ctx, req, info, run)
}

func lookupByIDHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(lookupByIDRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	run := func(ctx context.Context, req interface{}) (interface{}, error) {
		r := req.(*lookupByIDRequest)
		entry, found, err := srv.(Backend).LookupByParticipantID(ctx, r.ParticipantID)
		if err != nil {
			return nil, err
		}
		resp := &lookupByIDResponse{Found: found}
		if found {
			resp.Entry = toWire(entry)
		}
		return resp, nil
	}
	if interceptor == nil {
		return run(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/LookupByParticipantID"}
	return interceptor(ctx, req, info, run)
}

// ServiceDesc is the hand-written grpc service descriptor (no
// protoc-gen-go-grpc step runs in this build); RegisterBackend wires
// it into a *grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Backend)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
		{MethodName: "Unregister", Handler: unregisterHandler},
		{MethodName: "Lookup", Handler: lookupHandler},
		{MethodName: "LookupByParticipantID", Handler: lookupByIDHandler},
	},
}

// RegisterBackend registers backend's RPCs on server.
func RegisterBackend(server *grpc.Server, backend Backend) {
	server.RegisterService(&ServiceDesc, backend)
}
