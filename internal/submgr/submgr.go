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

// Package submgr is the consumer side of the subscription lifecycle:
// it tracks this process's own outstanding subscriptions, their
// missed-publication and expiry timers, and fans inbound multicasts
// out to every subscriber whose partition pattern matches.
package submgr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/metrics"
	"github.com/joynr-go/cluster-controller/internal/qos"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
)

// Sender is the outbound half of the Dispatcher the Subscription
// Manager needs: enough to address a subscription request or stop to
// a provider without importing the dispatcher package.
type Sender interface {
	SendSubscriptionRequest(provider string, payload []byte, ttl time.Duration, broadcast bool)
	SendMulticastSubscriptionRequest(provider string, payload []byte, ttl time.Duration)
	SendSubscriptionStop(provider string, payload []byte, ttl time.Duration)
}

// Listener receives publications (or a missed-publication alert/error)
// for one subscription.
type Listener interface {
	OnReceive(payload []byte)
	OnError(err error)
}

var partitionSegment = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// ValidatePartitions enforces the partition grammar: each segment is
// alphanumeric, the single-level wildcard "+", or the multi-level
// wildcard "*" — and "*" may only appear as the last segment.
func ValidatePartitions(partitions []string) error {
	for i, p := range partitions {
		if p == "*" {
			if i != len(partitions)-1 {
				return fmt.Errorf("%w: multi-level wildcard must be the last partition", ccerrors.ErrInvalidArgument)
			}
			continue
		}
		if p == "+" {
			continue
		}
		if !partitionSegment.MatchString(p) {
			return fmt.Errorf("%w: invalid partition %q", ccerrors.ErrInvalidArgument, p)
		}
	}
	return nil
}

// MulticastID computes providerId/name[/partition...].
func MulticastID(providerID, name string, partitions []string) string {
	segments := append([]string{providerID, name}, partitions...)
	return strings.Join(segments, "/")
}

type record struct {
	subscriptionID string
	providerID     string
	pattern        []string // nil for a non-multicast subscription
	listener       Listener
	qos            qos.Qos

	mu           sync.Mutex
	alertHandle  *scheduler.Handle
	expiryHandle *scheduler.Handle
}

// Manager is the Subscription Manager. Use New.
type Manager struct {
	mu      sync.Mutex
	byID    map[string]*record
	sender  Sender
	delayed *scheduler.Delayed
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New constructs a Manager. sender may be nil for tests that never
// call Subscribe/SubscribeMulticast/Unsubscribe. m and logger may be
// nil.
func New(sender Sender, delayed *scheduler.Delayed, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		byID:    make(map[string]*record),
		sender:  sender,
		delayed: delayed,
		metrics: m,
		logger:  logger,
	}
}

// wireSubscriptionRequest mirrors the Publication Manager's inbound
// wire shape; the two sides of the subscription handshake must agree
// on field names independent of which package owns the struct.
type wireSubscriptionRequest struct {
	SubscriptionID       string            `json:"subscriptionId"`
	ProviderID           string            `json:"providerId"`
	Name                 string            `json:"name"`
	Kind                 string            `json:"kind"`
	MinIntervalMs        int64             `json:"minIntervalMs"`
	MaxIntervalMs        int64             `json:"maxIntervalMs"`
	PeriodMs             int64             `json:"periodMs"`
	AlertAfterIntervalMs int64             `json:"alertAfterIntervalMs"`
	ExpiryDateMs         int64             `json:"expiryDateMs"`
	PublicationTTLMs     int64             `json:"publicationTtlMs"`
	FilterParams         map[string]string `json:"filterParams,omitempty"`
	MulticastID          string            `json:"multicastId,omitempty"`
}

func kindToWire(k qos.Kind) string {
	switch k {
	case qos.KindOnChange:
		return "onChange"
	case qos.KindOnChangeWithKeepAlive:
		return "onChangeWithKeepAlive"
	case qos.KindPeriodic:
		return "periodic"
	case qos.KindMulticast:
		return "multicast"
	default:
		return ""
	}
}

func buildWireRequest(subscriptionID, providerID, name string, q qos.Qos, filterParams map[string]string, multicastID string) wireSubscriptionRequest {
	return wireSubscriptionRequest{
		SubscriptionID:       subscriptionID,
		ProviderID:           providerID,
		Name:                 name,
		Kind:                 kindToWire(q.Kind),
		MinIntervalMs:        q.MinInterval.Milliseconds(),
		MaxIntervalMs:        q.MaxInterval.Milliseconds(),
		PeriodMs:             q.Period.Milliseconds(),
		AlertAfterIntervalMs: q.AlertAfterInterval.Milliseconds(),
		ExpiryDateMs:         q.ExpiryDateMs,
		PublicationTTLMs:     q.PublicationTTL.Milliseconds(),
		FilterParams:         filterParams,
		MulticastID:          multicastID,
	}
}

// RegisterSubscription tracks a unicast attribute subscription, sends
// the subscription request to providerID, and returns the assigned
// subscription id (suggestedID, if non-empty).
func (m *Manager) RegisterSubscription(suggestedID, providerID, name string, listener Listener, q qos.Qos) string {
	return m.registerUnicast(suggestedID, providerID, name, listener, q, false)
}

// RegisterBroadcastSubscription is RegisterSubscription's
// selective-broadcast counterpart: filterParams are carried in the
// wire request and stored with the provider's subscription record;
// they are not evaluated against broadcast occurrences.
func (m *Manager) RegisterBroadcastSubscription(suggestedID, providerID, name string, filterParams map[string]string, listener Listener, q qos.Qos) string {
	id := m.registerUnicast(suggestedID, providerID, name, listener, q, true)
	if m.sender != nil {
		wire := buildWireRequest(id, providerID, name, q, filterParams, "")
		m.sendRequest(providerID, wire, true, false)
	}
	return id
}

func (m *Manager) registerUnicast(suggestedID, providerID, name string, listener Listener, q qos.Qos, broadcast bool) string {
	id := suggestedID
	if id == "" {
		id = uuid.NewString()
	}
	q.Clamp()
	rec := &record{subscriptionID: id, providerID: providerID, listener: listener, qos: q}
	m.store(rec)
	if m.sender != nil && !broadcast {
		wire := buildWireRequest(id, providerID, name, q, nil, "")
		m.sendRequest(providerID, wire, false, false)
	}
	return id
}

// RegisterMulticastSubscription tracks a multicast subscription,
// sends the multicast subscription request to providerID, and returns
// (subscriptionId, multicastId). Partitions are validated against the
// partition grammar before anything is stored or sent.
func (m *Manager) RegisterMulticastSubscription(suggestedID, name, providerID string, partitions []string, listener Listener, q qos.Qos) (string, string, error) {
	if err := ValidatePartitions(partitions); err != nil {
		return "", "", err
	}
	id := suggestedID
	if id == "" {
		id = uuid.NewString()
	}
	q.Clamp()
	multicastID := MulticastID(providerID, name, partitions)
	pattern := strings.Split(multicastID, "/")

	rec := &record{subscriptionID: id, providerID: providerID, pattern: pattern, listener: listener, qos: q}
	m.store(rec)
	if m.sender != nil {
		wire := buildWireRequest(id, providerID, name, q, nil, multicastID)
		m.sendRequest(providerID, wire, false, true)
	}
	return id, multicastID, nil
}

func (m *Manager) sendRequest(providerID string, wire wireSubscriptionRequest, broadcast, multicast bool) {
	payload, err := json.Marshal(wire)
	if err != nil {
		m.logger.Error("failed to encode subscription request", "error", err)
		return
	}
	ttl := time.Duration(wire.PublicationTTLMs) * time.Millisecond
	if multicast {
		m.sender.SendMulticastSubscriptionRequest(providerID, payload, ttl)
		return
	}
	m.sender.SendSubscriptionRequest(providerID, payload, ttl, broadcast)
}

func (m *Manager) store(rec *record) {
	m.mu.Lock()
	if old, ok := m.byID[rec.subscriptionID]; ok {
		m.cancelTimers(old)
	}
	m.byID[rec.subscriptionID] = rec
	m.mu.Unlock()

	m.scheduleAlert(rec)
	m.scheduleExpiry(rec)

	if m.metrics != nil {
		m.metrics.SubscriptionsActive.WithLabelValues(kindLabel(rec.qos.Kind)).Inc()
	}
}

func kindLabel(k qos.Kind) string {
	switch k {
	case qos.KindOnChange:
		return "onChange"
	case qos.KindOnChangeWithKeepAlive:
		return "onChangeWithKeepAlive"
	case qos.KindPeriodic:
		return "periodic"
	case qos.KindMulticast:
		return "multicast"
	default:
		return "unknown"
	}
}

func (m *Manager) scheduleAlert(rec *record) {
	if rec.qos.AlertAfterInterval <= 0 || m.delayed == nil {
		return
	}
	handle, err := m.delayed.Schedule(rec.qos.AlertAfterInterval, func() {
		m.fireMissedPublicationAlert(rec)
	})
	if err != nil {
		m.logger.Error("failed to schedule missed-publication timer", "subscriptionId", rec.subscriptionID, "error", err)
		return
	}
	rec.mu.Lock()
	rec.alertHandle = handle
	rec.mu.Unlock()
}

func (m *Manager) fireMissedPublicationAlert(rec *record) {
	rec.listener.OnError(fmt.Errorf("%w: no publication within alertAfterInterval", ccerrors.ErrTTLExpired))
	m.scheduleAlert(rec)
}

func (m *Manager) scheduleExpiry(rec *record) {
	if rec.qos.ExpiryDateMs == 0 || m.delayed == nil {
		return
	}
	remaining := time.Until(time.UnixMilli(rec.qos.ExpiryDateMs))
	if remaining <= 0 {
		m.UnregisterSubscription(rec.subscriptionID)
		return
	}
	handle, err := m.delayed.Schedule(remaining, func() {
		m.UnregisterSubscription(rec.subscriptionID)
	})
	if err != nil {
		m.logger.Error("failed to schedule subscription expiry", "subscriptionId", rec.subscriptionID, "error", err)
		return
	}
	rec.mu.Lock()
	rec.expiryHandle = handle
	rec.mu.Unlock()
}

func (m *Manager) cancelTimers(rec *record) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.alertHandle != nil {
		rec.alertHandle.Unschedule()
	}
	if rec.expiryHandle != nil {
		rec.expiryHandle.Unschedule()
	}
}

// UnregisterSubscription cancels timers, removes the record, notifies
// the provider with a subscription-stop envelope, and invokes the
// listener's on-unsubscribed notification via OnError with ErrClosed.
// A no-op if id is unknown.
func (m *Manager) UnregisterSubscription(id string) {
	m.mu.Lock()
	rec, ok := m.byID[id]
	if ok {
		delete(m.byID, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.cancelTimers(rec)
	if m.metrics != nil {
		m.metrics.SubscriptionsActive.WithLabelValues(kindLabel(rec.qos.Kind)).Dec()
	}
	if m.sender != nil && rec.providerID != "" {
		payload, err := json.Marshal(struct {
			SubscriptionID string `json:"subscriptionId"`
		}{SubscriptionID: id})
		if err != nil {
			m.logger.Error("failed to encode subscription stop", "error", err)
		} else {
			m.sender.SendSubscriptionStop(rec.providerID, payload, 0)
		}
	}
	rec.listener.OnError(ccerrors.ErrClosed)
}

// TouchSubscriptionState resets id's missed-publication timer. Called
// by the Dispatcher on every inbound publication for that id.
func (m *Manager) TouchSubscriptionState(id string) {
	m.mu.Lock()
	rec, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	rec.mu.Lock()
	if rec.alertHandle != nil {
		rec.alertHandle.Unschedule()
		rec.alertHandle = nil
	}
	rec.mu.Unlock()
	m.scheduleAlert(rec)
}

// HandlePublication implements dispatcher.PublicationHandler for
// unicast publications: subscriptionID is the message recipient, which
// is how C6 correlates a publication envelope back to a subscription.
func (m *Manager) HandlePublication(subscriptionID string, payload []byte) {
	m.mu.Lock()
	rec, ok := m.byID[subscriptionID]
	m.mu.Unlock()
	if !ok {
		m.logger.Info("dropping publication for unknown subscription", "subscriptionId", subscriptionID)
		return
	}
	m.TouchSubscriptionState(subscriptionID)
	rec.listener.OnReceive(payload)
}

// HandleMulticast implements dispatcher.PublicationHandler for
// multicast publications: it fans payload out to every listener whose
// partition pattern matches multicastID.
func (m *Manager) HandleMulticast(multicastID string, payload []byte) {
	for _, listener := range m.GetSubscriptionListeners(multicastID) {
		listener.OnReceive(payload)
	}
}

// GetSubscriptionListeners returns every listener whose pattern
// matches multicastID, wildcard-aware.
func (m *Manager) GetSubscriptionListeners(multicastID string) []Listener {
	actual := strings.Split(multicastID, "/")

	m.mu.Lock()
	defer m.mu.Unlock()

	var listeners []Listener
	for _, rec := range m.byID {
		if rec.pattern == nil {
			continue
		}
		if matchesPattern(rec.pattern, actual) {
			listeners = append(listeners, rec.listener)
		}
	}
	return listeners
}

func matchesPattern(pattern, actual []string) bool {
	for i, p := range pattern {
		if p == "*" {
			return true // multi-level wildcard: matches the rest, already validated as last
		}
		if i >= len(actual) {
			return false
		}
		if p == "+" {
			continue
		}
		if p != actual[i] {
			return false
		}
	}
	return len(pattern) == len(actual)
}
