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

// Package pubmgr is the provider side of the subscription lifecycle:
// it validates incoming subscription requests, wires listeners on the
// provider, and turns attribute changes, broadcasts, and periodic
// ticks into publications routed back to the subscriber.
package pubmgr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/metrics"
	"github.com/joynr-go/cluster-controller/internal/persistence"
	"github.com/joynr-go/cluster-controller/internal/qos"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
)

// State is a subscription record's lifecycle state.
type State int

const (
	StateActive State = iota
	StatePausedByMinInterval
	StateStopped
)

// ProviderCaller is the set of hooks a provider exposes for one
// subscribable thing (an attribute, a broadcast, or a multicast
// event). Only the fields relevant to the subscription's qos.Kind
// need to be set.
type ProviderCaller struct {
	// ReadAttribute returns the attribute's current value, for
	// periodic ticks and the initial on-change publication.
	ReadAttribute func() ([]byte, error)
	// RegisterAttributeListener is called once; onChange fires every
	// time the attribute's value changes. The returned func
	// unregisters it.
	RegisterAttributeListener func(onChange func(value []byte)) (unregister func())
	// RegisterBroadcastListener fires onEvent for every broadcast
	// occurrence with the filterParams it was fired with. Manager does
	// not call it: no qos kind wires a broadcast listener, and a
	// record's FilterParams are stored but never compared.
	RegisterBroadcastListener func(onEvent func(value []byte, filterParams map[string]string)) (unregister func())
	// RegisterMulticastListener fires onEvent for every multicast
	// occurrence local fan-out should see.
	RegisterMulticastListener func(onEvent func(value []byte)) (unregister func())
}

// Publisher routes a publication (or a missed-publication alert) back
// to the subscriber. Implemented by *dispatcher.Dispatcher; declared
// here, not imported, to keep pubmgr the lower layer in the import
// graph.
type Publisher interface {
	SendPublication(recipient string, payload []byte, ttl time.Duration)
	SendMulticast(multicastID string, payload []byte, ttl time.Duration)
}

// Record is a subscription's persisted state.
type Record struct {
	SubscriptionID   string
	ProviderID       string
	SubscriberID     string
	Name             string
	Qos              qos.Qos
	State            State
	LastPublishedMs  int64
	FilterParams     map[string]string
	MulticastID      string
}

type liveSubscription struct {
	record Record

	unregister   func()
	alertHandle  *scheduler.Handle
	expiryHandle *scheduler.Handle
	pauseHandle  *scheduler.Handle

	mu            sync.Mutex
	pendingValue  []byte
	hasPending    bool
}

// Manager is the Publication Manager. Use New.
type Manager struct {
	mu       sync.Mutex
	live     map[string]*liveSubscription
	store    *persistence.Store
	delayed  *scheduler.Delayed
	pub      Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	resolver func(providerID, name string) (ProviderCaller, bool)
}

// New constructs a Manager. m and logger may be nil.
func New(store *persistence.Store, delayed *scheduler.Delayed, pub Publisher, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		live:    make(map[string]*liveSubscription),
		store:   store,
		delayed: delayed,
		pub:     pub,
		metrics: m,
		logger:  logger,
	}
}

// AddRequest is everything Add needs beyond what's reachable from the
// provider caller itself.
type AddRequest struct {
	SubscriptionID string
	ProviderID     string
	SubscriberID   string
	Name           string
	Qos            qos.Qos
	FilterParams   map[string]string
	MulticastID    string // required when Qos.Kind == qos.KindMulticast
}

// Add validates req's qos, wires listeners against caller, and
// persists the resulting record so it survives a restart.
func (m *Manager) Add(req AddRequest, caller ProviderCaller) error {
	req.Qos.Clamp()

	sub := &liveSubscription{
		record: Record{
			SubscriptionID: req.SubscriptionID,
			ProviderID:     req.ProviderID,
			SubscriberID:   req.SubscriberID,
			Name:           req.Name,
			Qos:            req.Qos,
			State:          StateActive,
			FilterParams:   req.FilterParams,
			MulticastID:    req.MulticastID,
		},
	}

	if err := m.wireListeners(sub, caller); err != nil {
		return err
	}

	m.mu.Lock()
	if old, ok := m.live[req.SubscriptionID]; ok {
		m.teardownLocked(old)
	}
	m.live[req.SubscriptionID] = sub
	m.mu.Unlock()

	m.scheduleAlert(sub)
	m.scheduleExpiry(sub)

	return m.persist()
}

func (m *Manager) wireListeners(sub *liveSubscription, caller ProviderCaller) error {
	switch sub.record.Qos.Kind {
	case qos.KindOnChange:
		return m.wireOnChange(sub, caller, false)
	case qos.KindOnChangeWithKeepAlive:
		if err := m.wireOnChange(sub, caller, true); err != nil {
			return err
		}
		return m.wirePeriodic(sub, caller, sub.record.Qos.MaxInterval)
	case qos.KindPeriodic:
		return m.wirePeriodic(sub, caller, sub.record.Qos.Period)
	case qos.KindMulticast:
		return m.wireMulticast(sub, caller)
	default:
		return fmt.Errorf("%w: unknown qos kind", ccerrors.ErrInvalidArgument)
	}
}

func (m *Manager) wireOnChange(sub *liveSubscription, caller ProviderCaller, keepAlive bool) error {
	if caller.RegisterAttributeListener == nil {
		return fmt.Errorf("%w: provider has no attribute listener", ccerrors.ErrInvalidArgument)
	}
	_ = keepAlive
	unregister := caller.RegisterAttributeListener(func(value []byte) {
		m.onAttributeChange(sub, value)
	})
	sub.unregister = unregister
	return nil
}

func (m *Manager) onAttributeChange(sub *liveSubscription, value []byte) {
	now := time.Now()
	sub.mu.Lock()
	elapsed := now.UnixMilli() - sub.record.LastPublishedMs
	minInterval := sub.record.Qos.MinInterval.Milliseconds()
	if sub.record.LastPublishedMs != 0 && elapsed < minInterval {
		sub.pendingValue = value
		sub.hasPending = true
		wait := time.Duration(minInterval-elapsed) * time.Millisecond
		sub.record.State = StatePausedByMinInterval
		sub.mu.Unlock()
		m.scheduleMinIntervalTick(sub, wait)
		return
	}
	sub.record.State = StateActive
	sub.mu.Unlock()
	m.publishNow(sub, value)
}

func (m *Manager) scheduleMinIntervalTick(sub *liveSubscription, wait time.Duration) {
	sub.mu.Lock()
	if sub.pauseHandle != nil {
		sub.mu.Unlock()
		return // a tick is already pending; it will pick up the latest pendingValue
	}
	sub.mu.Unlock()

	handle, err := m.delayed.Schedule(wait, func() {
		sub.mu.Lock()
		sub.pauseHandle = nil
		value := sub.pendingValue
		hasPending := sub.hasPending
		sub.hasPending = false
		sub.record.State = StateActive
		sub.mu.Unlock()
		if hasPending {
			m.publishNow(sub, value)
		}
	})
	if err != nil {
		m.logger.Error("failed to schedule minInterval tick", "subscriptionId", sub.record.SubscriptionID, "error", err)
		return
	}
	sub.mu.Lock()
	sub.pauseHandle = handle
	sub.mu.Unlock()
}

func (m *Manager) wirePeriodic(sub *liveSubscription, caller ProviderCaller, interval time.Duration) error {
	if caller.ReadAttribute == nil {
		return fmt.Errorf("%w: provider has no attribute reader", ccerrors.ErrInvalidArgument)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: periodic interval must be positive", ccerrors.ErrInvalidArgument)
	}
	m.schedulePeriodicTick(sub, caller, interval)
	return nil
}

func (m *Manager) schedulePeriodicTick(sub *liveSubscription, caller ProviderCaller, interval time.Duration) {
	_, err := m.delayed.Schedule(interval, func() {
		sub.mu.Lock()
		stopped := sub.record.State == StateStopped
		lastPublished := sub.record.LastPublishedMs
		sub.mu.Unlock()
		if stopped {
			return
		}

		// Keep-alive periodic ticks only republish if nothing was sent
		// more recently than the interval itself; a pure periodic
		// subscription always republishes.
		if sub.record.Qos.Kind == qos.KindOnChangeWithKeepAlive &&
			time.Now().UnixMilli()-lastPublished < interval.Milliseconds() {
			m.schedulePeriodicTick(sub, caller, interval)
			return
		}

		value, readErr := caller.ReadAttribute()
		if readErr != nil {
			m.logger.Error("periodic read failed", "subscriptionId", sub.record.SubscriptionID, "error", readErr)
		} else {
			m.publishNow(sub, value)
		}
		m.schedulePeriodicTick(sub, caller, interval)
	})
	if err != nil {
		m.logger.Error("failed to schedule periodic tick", "subscriptionId", sub.record.SubscriptionID, "error", err)
	}
}

func (m *Manager) wireMulticast(sub *liveSubscription, caller ProviderCaller) error {
	if caller.RegisterMulticastListener == nil {
		return fmt.Errorf("%w: provider has no multicast listener", ccerrors.ErrInvalidArgument)
	}
	sub.unregister = caller.RegisterMulticastListener(func(value []byte) {
		m.publishMulticast(sub, value)
	})
	return nil
}

func (m *Manager) publishNow(sub *liveSubscription, value []byte) {
	sub.mu.Lock()
	sub.record.LastPublishedMs = time.Now().UnixMilli()
	sub.mu.Unlock()

	if m.metrics != nil {
		m.metrics.PublicationsSentTotal.WithLabelValues(kindLabel(sub.record.Qos.Kind)).Inc()
	}
	m.resetAlert(sub)
	m.pub.SendPublication(sub.record.SubscriberID, value, sub.record.Qos.PublicationTTL)
}

func (m *Manager) publishMulticast(sub *liveSubscription, value []byte) {
	if m.metrics != nil {
		m.metrics.PublicationsSentTotal.WithLabelValues(kindLabel(sub.record.Qos.Kind)).Inc()
	}
	m.pub.SendMulticast(sub.record.MulticastID, value, sub.record.Qos.PublicationTTL)
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

func (m *Manager) scheduleAlert(sub *liveSubscription) {
	if sub.record.Qos.AlertAfterInterval <= 0 {
		return
	}
	handle, err := m.delayed.Schedule(sub.record.Qos.AlertAfterInterval, func() {
		m.fireAlert(sub)
	})
	if err != nil {
		m.logger.Error("failed to schedule alert timer", "subscriptionId", sub.record.SubscriptionID, "error", err)
		return
	}
	sub.alertHandle = handle
}

func (m *Manager) resetAlert(sub *liveSubscription) {
	if sub.alertHandle != nil {
		sub.alertHandle.Unschedule()
		sub.alertHandle = nil
	}
	m.scheduleAlert(sub)
}

func (m *Manager) fireAlert(sub *liveSubscription) {
	if m.metrics != nil {
		m.metrics.SubscriptionAlertsTotal.Inc()
	}
	alert := fmt.Sprintf(`{"missedPublication":true,"subscriptionId":%q}`, sub.record.SubscriptionID)
	m.pub.SendPublication(sub.record.SubscriberID, []byte(alert), sub.record.Qos.PublicationTTL)
	m.scheduleAlert(sub)
}

func (m *Manager) scheduleExpiry(sub *liveSubscription) {
	if sub.record.Qos.ExpiryDateMs == 0 {
		return
	}
	remaining := time.Until(time.UnixMilli(sub.record.Qos.ExpiryDateMs))
	if remaining <= 0 {
		m.Remove(sub.record.SubscriptionID)
		return
	}
	handle, err := m.delayed.Schedule(remaining, func() {
		m.Remove(sub.record.SubscriptionID)
	})
	if err != nil {
		m.logger.Error("failed to schedule expiry timer", "subscriptionId", sub.record.SubscriptionID, "error", err)
		return
	}
	sub.expiryHandle = handle
}

// Remove unregisters sub's listeners, cancels its timers, and removes
// its persisted record. A no-op if subscriptionID is unknown.
func (m *Manager) Remove(subscriptionID string) {
	m.mu.Lock()
	sub, ok := m.live[subscriptionID]
	if ok {
		delete(m.live, subscriptionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.teardownLocked(sub)
	if err := m.persist(); err != nil {
		m.logger.Error("failed to persist after remove", "subscriptionId", subscriptionID, "error", err)
	}
}

func (m *Manager) teardownLocked(sub *liveSubscription) {
	sub.mu.Lock()
	sub.record.State = StateStopped
	sub.mu.Unlock()

	if sub.unregister != nil {
		sub.unregister()
	}
	if sub.alertHandle != nil {
		sub.alertHandle.Unschedule()
	}
	if sub.expiryHandle != nil {
		sub.expiryHandle.Unschedule()
	}
	if sub.pauseHandle != nil {
		sub.pauseHandle.Unschedule()
	}
}

func (m *Manager) persist() error {
	if m.store == nil {
		return nil
	}
	m.mu.Lock()
	records := make(map[string]Record, len(m.live))
	for id, sub := range m.live {
		records[id] = sub.record
	}
	m.mu.Unlock()
	return m.store.Save(records)
}

// Replay loads persisted records, purges those already expired, and
// re-wires the rest against whatever ProviderCaller resolve returns.
// Records whose provider no longer resolves are dropped and not
// re-persisted.
func (m *Manager) Replay(resolve func(providerID, name string) (ProviderCaller, bool)) error {
	if m.store == nil {
		return nil
	}
	records := make(map[string]Record)
	if err := m.store.Load(&records); err != nil {
		return fmt.Errorf("load persisted subscriptions: %w", err)
	}

	now := time.Now()
	for id, rec := range records {
		if rec.Qos.ExpiresAt(now) {
			continue
		}
		caller, ok := resolve(rec.ProviderID, rec.Name)
		if !ok {
			m.logger.Warn("dropping subscription with unresolvable provider on replay", "subscriptionId", id)
			continue
		}
		req := AddRequest{
			SubscriptionID: rec.SubscriptionID,
			ProviderID:     rec.ProviderID,
			SubscriberID:   rec.SubscriberID,
			Name:           rec.Name,
			Qos:            rec.Qos,
			FilterParams:   rec.FilterParams,
			MulticastID:    rec.MulticastID,
		}
		if err := m.Add(req, caller); err != nil {
			m.logger.Error("failed to re-wire subscription on replay", "subscriptionId", id, "error", err)
		}
	}
	return nil
}

// wireSubscriptionRequest is the inbound wire shape for
// HandleSubscriptionRequest. Only JSON-serializable fields appear
// here; the provider caller is resolved locally, never sent over the
// wire.
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

func (w wireSubscriptionRequest) toQos(kind qos.Kind) qos.Qos {
	return qos.Qos{
		Kind:               kind,
		MinInterval:        time.Duration(w.MinIntervalMs) * time.Millisecond,
		MaxInterval:        time.Duration(w.MaxIntervalMs) * time.Millisecond,
		Period:             time.Duration(w.PeriodMs) * time.Millisecond,
		AlertAfterInterval: time.Duration(w.AlertAfterIntervalMs) * time.Millisecond,
		ExpiryDateMs:       w.ExpiryDateMs,
		PublicationTTL:     time.Duration(w.PublicationTTLMs) * time.Millisecond,
	}
}

func kindFromWire(s string) (qos.Kind, error) {
	switch s {
	case "onChange":
		return qos.KindOnChange, nil
	case "onChangeWithKeepAlive":
		return qos.KindOnChangeWithKeepAlive, nil
	case "periodic":
		return qos.KindPeriodic, nil
	case "multicast":
		return qos.KindMulticast, nil
	default:
		return 0, fmt.Errorf("%w: unknown subscription kind %q", ccerrors.ErrInvalidArgument, s)
	}
}

// SetProviderResolver wires the lookup the dispatcher-facing Handle*
// methods use to turn a (providerId, name) pair into the hooks Add
// needs. Must be called before traffic flows through HandleSubscriptionRequest.
func (m *Manager) SetProviderResolver(resolve func(providerID, name string) (ProviderCaller, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolver = resolve
}

// HandleSubscriptionRequest implements dispatcher.SubscriptionRequestHandler.
func (m *Manager) HandleSubscriptionRequest(subscriberID string, payload []byte) {
	m.handleWireRequest(subscriberID, payload)
}

// HandleMulticastSubscriptionRequest implements
// dispatcher.SubscriptionRequestHandler.
func (m *Manager) HandleMulticastSubscriptionRequest(subscriberID string, payload []byte) {
	m.handleWireRequest(subscriberID, payload)
}

// HandleBroadcastSubscriptionRequest implements
// dispatcher.SubscriptionRequestHandler.
func (m *Manager) HandleBroadcastSubscriptionRequest(subscriberID string, payload []byte) {
	m.handleWireRequest(subscriberID, payload)
}

// HandleSubscriptionStop implements dispatcher.SubscriptionRequestHandler.
func (m *Manager) HandleSubscriptionStop(_ string, payload []byte) {
	var stop struct {
		SubscriptionID string `json:"subscriptionId"`
	}
	if err := json.Unmarshal(payload, &stop); err != nil {
		m.logger.Error("failed to decode subscription stop", "error", err)
		return
	}
	m.Remove(stop.SubscriptionID)
}

func (m *Manager) handleWireRequest(subscriberID string, payload []byte) {
	var wire wireSubscriptionRequest
	if err := json.Unmarshal(payload, &wire); err != nil {
		m.logger.Error("failed to decode subscription request", "error", err)
		return
	}
	kind, err := kindFromWire(wire.Kind)
	if err != nil {
		m.logger.Error("invalid subscription request", "error", err)
		return
	}

	m.mu.Lock()
	resolve := m.resolver
	m.mu.Unlock()
	if resolve == nil {
		m.logger.Error("no provider resolver configured", "subscriptionId", wire.SubscriptionID)
		return
	}
	caller, ok := resolve(wire.ProviderID, wire.Name)
	if !ok {
		m.logger.Warn("unknown provider for subscription request", "providerId", wire.ProviderID, "name", wire.Name)
		return
	}

	req := AddRequest{
		SubscriptionID: wire.SubscriptionID,
		ProviderID:     wire.ProviderID,
		SubscriberID:   subscriberID,
		Name:           wire.Name,
		Qos:            wire.toQos(kind),
		FilterParams:   wire.FilterParams,
		MulticastID:    wire.MulticastID,
	}
	if err := m.Add(req, caller); err != nil {
		m.logger.Error("failed to add subscription", "subscriptionId", wire.SubscriptionID, "error", err)
	}
}
