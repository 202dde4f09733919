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

// Package dispatcher classifies and routes every inbound envelope, and
// provides the outbound entry points (sendRequest/sendOneWay/
// sendMulticast/sendSubscriptionReply/sendPublication) the rest of the
// message plane calls into.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joynr-go/cluster-controller/internal/accesscontrol"
	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/codec"
	"github.com/joynr-go/cluster-controller/internal/message"
	"github.com/joynr-go/cluster-controller/internal/replycallers"
	"github.com/joynr-go/cluster-controller/internal/router"
	"go.opentelemetry.io/otel"
)

const errorHeader = "error"

// RequestInterpreter runs a provider's method against an inbound
// request or one-way payload. Registered per participant id at
// provider-registration time.
type RequestInterpreter interface {
	// Invoke runs the request and reports the result via callback,
	// which may run synchronously or from another goroutine but must
	// run exactly once.
	Invoke(ctx context.Context, payload []byte, callback func(reply []byte, err error))
	// InvokeOneWay runs the request without producing a reply.
	InvokeOneWay(ctx context.Context, payload []byte)
}

// SubscriptionRequestHandler receives inbound subscription-lifecycle
// envelopes. Implemented by the Publication Manager.
type SubscriptionRequestHandler interface {
	HandleSubscriptionRequest(sender string, payload []byte)
	HandleMulticastSubscriptionRequest(sender string, payload []byte)
	HandleBroadcastSubscriptionRequest(sender string, payload []byte)
	HandleSubscriptionStop(sender string, payload []byte)
}

// PublicationHandler receives inbound publication/multicast envelopes.
// Implemented by the Subscription Manager.
type PublicationHandler interface {
	HandlePublication(subscriptionID string, payload []byte)
	HandleMulticast(multicastID string, payload []byte)
}

// Dispatcher is the message-plane's classify-and-route hub. Use New;
// RegisterRequestInterpreter/SetSubscriptionRequestHandler/
// SetPublicationHandler wire in the collaborators before traffic
// flows.
type Dispatcher struct {
	localID      string
	codec        codec.Codec
	router       *router.Router
	replyCallers *replycallers.Directory
	logger       *slog.Logger

	mu            sync.RWMutex
	interpreters  map[string]RequestInterpreter
	subHandler    SubscriptionRequestHandler
	pubHandler    PublicationHandler
	accessControl accesscontrol.Checker
}

// New constructs a Dispatcher. logger may be nil. The Dispatcher
// starts with no access-control policy configured, equivalent to
// accesscontrol.NoopChecker; call SetAccessControl to require checks.
func New(localID string, c codec.Codec, r *router.Router, rc *replycallers.Directory, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		localID:       localID,
		codec:         c,
		router:        r,
		replyCallers:  rc,
		logger:        logger,
		interpreters:  make(map[string]RequestInterpreter),
		accessControl: accesscontrol.NoopChecker{},
	}
}

// SetAccessControl wires the policy checker consulted before every
// request and one-way call reaches its registered interpreter. Passing
// nil restores the default NoopChecker.
func (d *Dispatcher) SetAccessControl(checker accesscontrol.Checker) {
	if checker == nil {
		checker = accesscontrol.NoopChecker{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accessControl = checker
}

// RegisterRequestInterpreter wires ri to receive requests and one-way
// calls addressed to participantID.
func (d *Dispatcher) RegisterRequestInterpreter(participantID string, ri RequestInterpreter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interpreters[participantID] = ri
}

// UnregisterRequestInterpreter undoes RegisterRequestInterpreter.
func (d *Dispatcher) UnregisterRequestInterpreter(participantID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.interpreters, participantID)
}

// SetSubscriptionRequestHandler wires the Publication Manager.
func (d *Dispatcher) SetSubscriptionRequestHandler(h SubscriptionRequestHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subHandler = h
}

// SetPublicationHandler wires the Subscription Manager.
func (d *Dispatcher) SetPublicationHandler(h PublicationHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pubHandler = h
}

func (d *Dispatcher) interpreterFor(participantID string) (RequestInterpreter, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ri, ok := d.interpreters[participantID]
	return ri, ok
}

func (d *Dispatcher) checker() accesscontrol.Checker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accessControl
}

// HandleInbound decodes raw and dispatches it by message type. It is
// the single entry point the local dispatcher side of a Router feeds
// locally-addressed envelopes through, and what every stub's receive
// path should call for remotely-arriving ones.
func (d *Dispatcher) HandleInbound(ctx context.Context, raw []byte) error {
	ctx, span := otel.Tracer("cluster-controller").Start(ctx, "Dispatcher.HandleInbound")
	defer span.End()

	m, err := d.codec.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode inbound envelope: %w", err)
	}

	if m.Expired(time.Now()) {
		d.logger.Warn("dropping expired inbound message", "messageId", m.ID, "type", m.Type)
		return nil
	}

	switch m.Type {
	case message.TypeRequest:
		d.handleRequest(ctx, m)
	case message.TypeOneWay:
		d.handleOneWay(ctx, m)
	case message.TypeReply:
		d.handleReply(ctx, m)
	case message.TypeSubscriptionRequest:
		d.withSubHandler(func(h SubscriptionRequestHandler) { h.HandleSubscriptionRequest(m.Sender, m.Payload) })
	case message.TypeMulticastSubscriptionRequest:
		d.withSubHandler(func(h SubscriptionRequestHandler) { h.HandleMulticastSubscriptionRequest(m.Sender, m.Payload) })
	case message.TypeBroadcastSubscriptionRequest:
		d.withSubHandler(func(h SubscriptionRequestHandler) { h.HandleBroadcastSubscriptionRequest(m.Sender, m.Payload) })
	case message.TypeSubscriptionStop:
		d.withSubHandler(func(h SubscriptionRequestHandler) { h.HandleSubscriptionStop(m.Sender, m.Payload) })
	case message.TypePublication:
		d.withPubHandler(func(h PublicationHandler) { h.HandlePublication(m.Recipient, m.Payload) })
	case message.TypeMulticast:
		d.withPubHandler(func(h PublicationHandler) { h.HandleMulticast(m.Recipient, m.Payload) })
	default:
		d.logger.Warn("dropping envelope of unknown type", "messageId", m.ID, "type", m.Type)
	}
	return nil
}

func (d *Dispatcher) withSubHandler(fn func(SubscriptionRequestHandler)) {
	d.mu.RLock()
	h := d.subHandler
	d.mu.RUnlock()
	if h != nil {
		fn(h)
	}
}

func (d *Dispatcher) withPubHandler(fn func(PublicationHandler)) {
	d.mu.RLock()
	h := d.pubHandler
	d.mu.RUnlock()
	if h != nil {
		fn(h)
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, m message.Message) {
	ctx, span := otel.Tracer("cluster-controller").Start(ctx, "Dispatcher.handleRequest")
	defer span.End()

	ri, ok := d.interpreterFor(m.Recipient)
	if !ok {
		d.replyWithError(m, ccerrors.ErrMethodInvocation)
		return
	}

	permitted, err := d.checker().IsPermitted(ctx, m.Sender, m.Recipient, accesscontrol.OperationInvoke)
	if err != nil {
		d.logger.Error("access control check failed", "messageId", m.ID, "error", err)
		d.replyWithError(m, ccerrors.ErrAccessDenied)
		return
	}
	if !permitted {
		d.logger.Warn("access denied", "messageId", m.ID, "sender", m.Sender, "recipient", m.Recipient)
		d.replyWithError(m, ccerrors.ErrAccessDenied)
		return
	}

	ri.Invoke(ctx, m.Payload, func(reply []byte, err error) {
		if err != nil {
			d.replyWithError(m, err)
			return
		}
		d.replyWithSuccess(m, reply)
	})
}

func (d *Dispatcher) handleOneWay(ctx context.Context, m message.Message) {
	ctx, span := otel.Tracer("cluster-controller").Start(ctx, "Dispatcher.handleOneWay")
	defer span.End()

	ri, ok := d.interpreterFor(m.Recipient)
	if !ok {
		d.logger.Warn("dropping one-way call for unregistered recipient", "messageId", m.ID, "recipient", m.Recipient)
		return
	}

	permitted, err := d.checker().IsPermitted(ctx, m.Sender, m.Recipient, accesscontrol.OperationFireAndForget)
	if err != nil || !permitted {
		d.logger.Warn("access denied for one-way call", "messageId", m.ID, "sender", m.Sender, "recipient", m.Recipient)
		return
	}
	ri.InvokeOneWay(ctx, m.Payload)
}

func (d *Dispatcher) handleReply(_ context.Context, m message.Message) {
	caller, ok := d.replyCallers.Take(m.ID)
	if !ok {
		d.logger.Info("dropping reply with no pending caller", "messageId", m.ID)
		return
	}
	if m.Headers[errorHeader] == "true" {
		caller.OnError(fmt.Errorf("%w: %s", ccerrors.ErrProviderRuntime, string(m.Payload)))
		return
	}
	caller.OnSuccess(m.Payload)
}

func (d *Dispatcher) replyWithSuccess(request message.Message, payload []byte) {
	reply := d.buildReply(request, payload, false)
	d.router.Route(reply, 0)
}

func (d *Dispatcher) replyWithError(request message.Message, err error) {
	reply := d.buildReply(request, []byte(err.Error()), true)
	d.router.Route(reply, 0)
}

// buildReply constructs the reply envelope, reusing the request's id
// as the requestReplyId so the sender's C7 directory can correlate it
// without a separate correlation field on the wire.
func (d *Dispatcher) buildReply(request message.Message, payload []byte, isError bool) message.Message {
	reply := message.New(request.ID, d.localID, request.Sender, message.TypeReply, request.RemainingTTL(time.Now()), payload)
	if isError {
		reply.Headers = map[string]string{errorHeader: "true"}
	}
	return reply
}

// SendRequest routes a request envelope and registers a reply caller
// with a TTL timer via C7/C5. The returned id is also the message id;
// it's what correlates the eventual reply.
func (d *Dispatcher) SendRequest(recipient string, payload []byte, ttl time.Duration, onSuccess func([]byte), onError func(error)) (string, error) {
	id := uuid.NewString()
	if err := d.replyCallers.Add(id, replycallers.Caller{OnSuccess: onSuccess, OnError: onError}, ttl); err != nil {
		return "", fmt.Errorf("register reply caller: %w", err)
	}
	m := message.New(id, d.localID, recipient, message.TypeRequest, ttl, payload)
	d.router.Route(m, 0)
	return id, nil
}

// SendOneWay routes a fire-and-forget envelope without registering a
// reply caller.
func (d *Dispatcher) SendOneWay(recipient string, payload []byte, ttl time.Duration) {
	m := message.New(uuid.NewString(), d.localID, recipient, message.TypeOneWay, ttl, payload)
	d.router.Route(m, 0)
}

// SendMulticast routes payload as a multicast envelope addressed to
// multicastID; the router's configured multicast calculator resolves
// fan-out addresses.
func (d *Dispatcher) SendMulticast(multicastID string, payload []byte, ttl time.Duration) {
	m := message.New(uuid.NewString(), d.localID, multicastID, message.TypeMulticast, ttl, payload)
	d.router.Route(m, 0)
}

// SendSubscriptionReply routes a subscription-reply envelope back to
// the subscriber, used by the Publication Manager to ack or nack a
// subscription request.
func (d *Dispatcher) SendSubscriptionReply(subscriber string, payload []byte, ttl time.Duration) {
	m := message.New(uuid.NewString(), d.localID, subscriber, message.TypeSubscriptionReply, ttl, payload)
	d.router.Route(m, 0)
}

// SendPublication routes a publication envelope to recipient (a
// subscriber id for unicast subscriptions, or a multicast id, in which
// case callers should use SendMulticast instead).
func (d *Dispatcher) SendPublication(recipient string, payload []byte, ttl time.Duration) {
	m := message.New(uuid.NewString(), d.localID, recipient, message.TypePublication, ttl, payload)
	d.router.Route(m, 0)
}

// SendSubscriptionRequest routes a subscription-request envelope to a
// provider, used by the Subscription Manager to establish a unicast
// attribute or broadcast subscription. broadcast selects
// TypeBroadcastSubscriptionRequest over TypeSubscriptionRequest.
func (d *Dispatcher) SendSubscriptionRequest(provider string, payload []byte, ttl time.Duration, broadcast bool) {
	typ := message.TypeSubscriptionRequest
	if broadcast {
		typ = message.TypeBroadcastSubscriptionRequest
	}
	m := message.New(uuid.NewString(), d.localID, provider, typ, ttl, payload)
	d.router.Route(m, 0)
}

// SendMulticastSubscriptionRequest routes a multicast subscription
// request to provider.
func (d *Dispatcher) SendMulticastSubscriptionRequest(provider string, payload []byte, ttl time.Duration) {
	m := message.New(uuid.NewString(), d.localID, provider, message.TypeMulticastSubscriptionRequest, ttl, payload)
	d.router.Route(m, 0)
}

// SendSubscriptionStop routes a subscription-stop envelope to provider,
// used by the Subscription Manager when a consumer unsubscribes before
// expiry.
func (d *Dispatcher) SendSubscriptionStop(provider string, payload []byte, ttl time.Duration) {
	m := message.New(uuid.NewString(), d.localID, provider, message.TypeSubscriptionStop, ttl, payload)
	d.router.Route(m, 0)
}
