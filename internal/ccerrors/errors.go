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

// Package ccerrors names the error kinds from the error handling design:
// transport errors are retried by the router, the rest are terminal and
// always reach the caller's registered continuation.
package ccerrors

import "errors"

var (
	// ErrTransport is recoverable at the router level by retry + backoff;
	// terminal after the retry cap is reached.
	ErrTransport = errors.New("transport error")
	// ErrTTLExpired means the message's expiry passed before delivery.
	ErrTTLExpired = errors.New("message ttl expired")
	// ErrUnknownRecipient means no routing entry exists yet. Recoverable
	// by queueing until addNextHop; terminal once the queued message
	// itself expires.
	ErrUnknownRecipient = errors.New("unknown recipient")
	// ErrProviderRuntime wraps an error raised by a request interpreter.
	ErrProviderRuntime = errors.New("provider runtime error")
	// ErrMethodInvocation flags a programming error distinct from a
	// transient runtime error (bad method name, wrong arity, missing
	// version).
	ErrMethodInvocation = errors.New("provider method invocation error")
	// ErrDiscoveryTimeout means no matching provider was found within
	// discoveryTimeoutMs.
	ErrDiscoveryTimeout = errors.New("discovery timeout")
	// ErrInvalidArgument flags a validation error: invalid partition,
	// malformed header, or out-of-range qos. The originating call fails
	// synchronously; no state changes.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrQueueFull signals the message queue evicted an entry to honor
	// its caps.
	ErrQueueFull = errors.New("message queue capacity exceeded")
	// ErrClosed is returned by components after Stop/Shutdown.
	ErrClosed = errors.New("component closed")
	// ErrNotFound is a generic lookup miss (routing table, reply caller,
	// subscription, LCD entry).
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied means the access-control policy database denied a
	// principal's request to invoke a provider.
	ErrAccessDenied = errors.New("access denied")
)

// IsTransient reports whether err should trigger the router's retry
// path rather than an immediate terminal failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport)
}
