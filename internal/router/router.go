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

// Package router decides, for every outbound message, whether it goes
// to the local dispatcher, straight to a stub, or into the message
// queue to wait for a routing entry. It owns retry-with-backoff and
// multicast fan-out.
package router

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/codec"
	"github.com/joynr-go/cluster-controller/internal/message"
	"github.com/joynr-go/cluster-controller/internal/metrics"
	"github.com/joynr-go/cluster-controller/internal/msgqueue"
	"github.com/joynr-go/cluster-controller/internal/routingtable"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
	"github.com/joynr-go/cluster-controller/internal/stubs"
)

// Backoff configures the retry delay schedule. Delay(n) is clamped to
// Cap, and the caller clamps the schedule's final delay to the
// message's remaining TTL separately.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration
}

// Delay returns the backoff delay before the (tryCount+1)th attempt.
func (b Backoff) Delay(tryCount int) time.Duration {
	d := float64(b.Base) * math.Pow(b.Factor, float64(tryCount))
	if d > float64(b.Cap) {
		return b.Cap
	}
	return time.Duration(d)
}

// MulticastCalculator resolves a multicast id to the set of transport
// addresses that should receive it. Transport-specific; wired in by
// whichever package owns multicast receiver bookkeeping.
type MulticastCalculator func(multicastID string) []message.Address

// LocalDeliverer hands an encoded envelope to this CC's own dispatcher
// when the recipient is local. Set at wiring time to break the import
// cycle with the dispatcher package.
type LocalDeliverer func(encoded []byte)

// FailureNotifier is invoked when a message's delivery ultimately
// fails (expired, retries exhausted, unroutable with no caller).
// Keyed by the message id; absent entries are dropped with a log line.
type FailureNotifier func(messageID string, err error)

// Router is the message router. Use New.
type Router struct {
	mu sync.Mutex

	table   *routingtable.Table
	queue   *msgqueue.Queue
	stubs   *stubs.Factory
	delayed *scheduler.Delayed
	metrics *metrics.Metrics
	logger  *slog.Logger
	codec   codec.Codec

	backoff      Backoff
	maxRetries   int
	multicast    map[message.Type]MulticastCalculator
	localID      string
	deliverLocal LocalDeliverer
	onFailure    FailureNotifier

	multicastReceivers map[string]map[string]struct{} // multicastId -> subscriberId set
}

// Config carries the fixed policy a Router is constructed with.
type Config struct {
	LocalParticipantID string
	MaxRetries         int
	Backoff            Backoff
	DeliverLocal       LocalDeliverer
	OnFailure          FailureNotifier
}

// New constructs a Router. m may be nil in tests. c encodes every
// outbound message.Message into the opaque envelope handed to a stub
// or to DeliverLocal; the router holds no other notion of wire format.
func New(cfg Config, table *routingtable.Table, queue *msgqueue.Queue, sf *stubs.Factory, delayed *scheduler.Delayed, m *metrics.Metrics, logger *slog.Logger, c codec.Codec) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		table:              table,
		queue:              queue,
		stubs:              sf,
		delayed:            delayed,
		metrics:            m,
		logger:             logger,
		codec:              c,
		backoff:            cfg.Backoff,
		maxRetries:         cfg.MaxRetries,
		multicast:          make(map[message.Type]MulticastCalculator),
		localID:            cfg.LocalParticipantID,
		deliverLocal:       cfg.DeliverLocal,
		onFailure:          cfg.OnFailure,
		multicastReceivers: make(map[string]map[string]struct{}),
	}
}

// SetMulticastCalculator registers the address resolver used for
// messages of typ. Only message.TypeMulticast is expected in
// practice, but the hook is type-keyed for generality.
func (r *Router) SetMulticastCalculator(typ message.Type, calc MulticastCalculator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.multicast[typ] = calc
}

// Route implements the routing decision. tryCount is zero for the
// original attempt and increments on each scheduled retry.
func (r *Router) Route(m message.Message, tryCount int) {
	now := time.Now()
	if m.Expired(now) {
		r.fail(m.ID, ccerrors.ErrTTLExpired)
		return
	}

	if m.Recipient == r.localID && r.deliverLocal != nil {
		encoded, err := r.codec.Encode(m)
		if err != nil {
			r.logger.Error("failed to encode locally-addressed message", "messageId", m.ID, "error", err)
			r.fail(m.ID, err)
			return
		}
		r.deliverLocal(encoded)
		return
	}

	entry, ok := r.table.Lookup(m.Recipient)
	if !ok {
		r.queue.Enqueue(m.Recipient, m)
		return
	}

	addrs := r.addressesFor(m, entry)
	if len(addrs) == 0 {
		r.fail(m.ID, ccerrors.ErrUnknownRecipient)
		return
	}

	for _, addr := range addrs {
		r.sendTo(addr, m, tryCount)
	}
}

func (r *Router) addressesFor(m message.Message, entry routingtable.Entry) []message.Address {
	r.mu.Lock()
	calc := r.multicast[m.Type]
	r.mu.Unlock()

	if calc == nil {
		return []message.Address{entry.Address}
	}
	return calc(m.Recipient)
}

func (r *Router) sendTo(addr message.Address, m message.Message, tryCount int) {
	stub, err := r.stubs.Create(addr)
	if err != nil {
		r.handleSendFailure(addr, m, tryCount, err)
		return
	}

	encoded, err := r.codec.Encode(m)
	if err != nil {
		r.handleSendFailure(addr, m, tryCount, err)
		return
	}

	sendErr := stub.Send(encoded, func(err error) {
		r.handleSendFailure(addr, m, tryCount, err)
	})
	if sendErr != nil {
		r.handleSendFailure(addr, m, tryCount, sendErr)
	}
}

func (r *Router) handleSendFailure(addr message.Address, m message.Message, tryCount int, err error) {
	if tryCount >= r.maxRetries || !ccerrors.IsTransient(err) {
		r.stubs.Remove(addr)
		r.fail(m.ID, err)
		return
	}

	delay := r.backoff.Delay(tryCount)
	if remaining := m.RemainingTTL(time.Now()); delay > remaining {
		delay = remaining
	}

	next := tryCount + 1
	_, schedErr := r.delayed.Schedule(delay, func() {
		r.Route(m, next)
	})
	if schedErr != nil {
		r.logger.Error("failed to schedule retry", "messageId", m.ID, "error", schedErr)
		r.fail(m.ID, err)
	}
}

func (r *Router) fail(messageID string, err error) {
	if r.onFailure != nil {
		r.onFailure(messageID, err)
		return
	}
	r.logger.Warn("dropping undeliverable message", "messageId", messageID, "error", err)
}

// AddNextHop installs a routing entry and drains any messages queued
// for participantID, feeding them back into Route in their original
// enqueue order.
func (r *Router) AddNextHop(participantID string, addr message.Address, isGloballyVisible bool, expiryMs int64, isSticky bool) {
	r.table.Add(participantID, addr, isGloballyVisible, expiryMs, isSticky)

	for _, m := range r.queue.DrainAll(participantID) {
		r.Route(m, 0)
	}
}

// RemoveNextHop removes participantID's routing entry and discards any
// messages still queued for it.
func (r *Router) RemoveNextHop(participantID string) {
	r.table.Remove(participantID)
	r.queue.DrainAll(participantID)
}

// AddMulticastReceiver records subscriberId as a local receiver of
// multicastID, for local fan-out by a MulticastCalculator that
// consults this set.
func (r *Router) AddMulticastReceiver(multicastID, subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.multicastReceivers[multicastID]
	if !ok {
		set = make(map[string]struct{})
		r.multicastReceivers[multicastID] = set
	}
	set[subscriberID] = struct{}{}
}

// RemoveMulticastReceiver undoes AddMulticastReceiver. A no-op if
// absent.
func (r *Router) RemoveMulticastReceiver(multicastID, subscriberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.multicastReceivers[multicastID]
	if !ok {
		return
	}
	delete(set, subscriberID)
	if len(set) == 0 {
		delete(r.multicastReceivers, multicastID)
	}
}

// MulticastReceivers returns the local subscriber ids currently
// registered for multicastID. Used by a MulticastCalculator that
// resolves local receivers to in-process addresses.
func (r *Router) MulticastReceivers(multicastID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.multicastReceivers[multicastID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// MulticastReceiverDirectory snapshots the whole receiver directory,
// multicast id to its subscriber ids. Used to persist the directory to
// disk so it survives a restart.
func (r *Router) MulticastReceiverDirectory() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	dir := make(map[string][]string, len(r.multicastReceivers))
	for multicastID, set := range r.multicastReceivers {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		dir[multicastID] = ids
	}
	return dir
}
