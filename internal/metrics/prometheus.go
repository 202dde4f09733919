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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every Prometheus collector the message plane updates.
// Components take a *Metrics (or nil) so they can run metrics-free in
// tests without nil-checking every call site.
type Metrics struct {
	RoutingTableSize      prometheus.Gauge
	RoutingTableEvictions prometheus.Counter

	QueueMessages       *prometheus.GaugeVec
	QueueBytes          *prometheus.GaugeVec
	QueueEvictionsTotal prometheus.Counter

	ReplyCallersOutstanding prometheus.Gauge
	ReplyCallersTimedOut    prometheus.Counter

	SubscriptionsActive        *prometheus.GaugeVec
	PublicationsSentTotal      *prometheus.CounterVec
	SubscriptionAlertsTotal    prometheus.Counter

	LCDCacheHitsTotal   prometheus.Counter
	LCDCacheMissesTotal prometheus.Counter
	LCDEntriesTotal     prometheus.Gauge
}

// NewMetrics constructs and registers every collector against the
// default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RoutingTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cc_routing_table_entries",
			Help: "Current number of routing table entries",
		}),
		RoutingTableEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc_routing_table_evictions_total",
			Help: "Total number of expired routing table entries evicted on lookup",
		}),
		QueueMessages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cc_message_queue_messages",
			Help: "Current number of queued messages per recipient",
		}, []string{"recipient"}),
		QueueBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cc_message_queue_bytes",
			Help: "Current total payload bytes queued per recipient",
		}, []string{"recipient"}),
		QueueEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc_message_queue_evictions_total",
			Help: "Total number of messages evicted to honor queue capacity",
		}),
		ReplyCallersOutstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cc_reply_callers_outstanding",
			Help: "Current number of requests awaiting a reply",
		}),
		ReplyCallersTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc_reply_callers_timed_out_total",
			Help: "Total number of reply callers that fired due to TTL expiry",
		}),
		SubscriptionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cc_subscriptions_active",
			Help: "Current number of active subscriptions by kind",
		}, []string{"kind"}),
		PublicationsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cc_publications_sent_total",
			Help: "Total number of publications sent by kind",
		}, []string{"kind"}),
		SubscriptionAlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc_subscription_alerts_total",
			Help: "Total number of missed-update alerts raised by the publication manager",
		}),
		LCDCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc_lcd_cache_hits_total",
			Help: "Total number of local capabilities directory lookups served from cache",
		}),
		LCDCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cc_lcd_cache_misses_total",
			Help: "Total number of local capabilities directory lookups that required a global query",
		}),
		LCDEntriesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cc_lcd_entries",
			Help: "Current number of entries held in the local capabilities directory",
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	prometheus.MustRegister(
		m.RoutingTableSize,
		m.RoutingTableEvictions,
		m.QueueMessages,
		m.QueueBytes,
		m.QueueEvictionsTotal,
		m.ReplyCallersOutstanding,
		m.ReplyCallersTimedOut,
		m.SubscriptionsActive,
		m.PublicationsSentTotal,
		m.SubscriptionAlertsTotal,
		m.LCDCacheHitsTotal,
		m.LCDCacheMissesTotal,
		m.LCDEntriesTotal,
	)
}
