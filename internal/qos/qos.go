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

// Package qos holds the subscription quality-of-service variants and
// the bounds the Publication and Subscription Managers clamp them to.
// Of the two overlapping qos generations the teacher's lineage
// inherited, this module keeps one bound per kind rather than
// branching on which generation a caller meant.
package qos

import "time"

const (
	// PeriodMin/PeriodMax bound a periodic subscription's tick.
	PeriodMin = 50 * time.Millisecond
	PeriodMax = 30 * 24 * time.Hour

	// AlertAfterIntervalMax bounds the missed-publication timer. Zero
	// means disabled and is always valid regardless of this bound.
	AlertAfterIntervalMax = 30 * 24 * time.Hour

	// PublicationTTLMin/PublicationTTLMax bound every publication's
	// own message TTL, independent of subscription kind.
	PublicationTTLMin = 100 * time.Millisecond
	PublicationTTLMax = 30 * 24 * time.Hour

	// MinIntervalFloor is the lower bound for minInterval. The
	// teacher's qos lineage disagreed on this across generations (0,
	// 50ms, 1000ms); zero is chosen here since nothing downstream
	// requires throttling on-change publications by default.
	MinIntervalFloor = 0 * time.Millisecond
)

// Kind discriminates the subscription qos tagged variant.
type Kind int

const (
	KindOnChange Kind = iota
	KindOnChangeWithKeepAlive
	KindPeriodic
	KindMulticast
)

// Qos is the subscription quality-of-service contract. Only the
// fields relevant to Kind are meaningful; Clamp enforces the
// documented bounds in place.
type Qos struct {
	Kind Kind

	MinInterval        time.Duration // on-change, on-change-with-keep-alive
	MaxInterval        time.Duration // on-change-with-keep-alive
	Period             time.Duration // periodic
	AlertAfterInterval time.Duration // armed for every kind; 0 disables; Clamp bounds it only for periodic and on-change-with-keep-alive

	ExpiryDateMs    int64 // absolute, ms since epoch UTC
	PublicationTTL  time.Duration

	// Multicast-only.
	Partitions []string
}

// Clamp enforces every documented bound in place: minInterval ≤
// maxInterval ≤ alertAfterInterval (when alertAfterInterval is set),
// period ∈ [PeriodMin, PeriodMax], alertAfterInterval == 0 or ∈
// [period, AlertAfterIntervalMax], publicationTtl ∈
// [PublicationTTLMin, PublicationTTLMax].
func (q *Qos) Clamp() {
	if q.MinInterval < MinIntervalFloor {
		q.MinInterval = MinIntervalFloor
	}

	switch q.Kind {
	case KindPeriodic:
		q.Period = clamp(q.Period, PeriodMin, PeriodMax)
		if q.AlertAfterInterval != 0 {
			q.AlertAfterInterval = clamp(q.AlertAfterInterval, q.Period, AlertAfterIntervalMax)
		}
	case KindOnChangeWithKeepAlive:
		if q.MaxInterval < q.MinInterval {
			q.MaxInterval = q.MinInterval
		}
		if q.AlertAfterInterval != 0 {
			q.AlertAfterInterval = clamp(q.AlertAfterInterval, q.MaxInterval, AlertAfterIntervalMax)
		}
	case KindOnChange, KindMulticast:
		// no additional bounds beyond minInterval and publicationTtl
	}

	q.PublicationTTL = clamp(q.PublicationTTL, PublicationTTLMin, PublicationTTLMax)
}

func clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// ExpiresAt reports whether now is at or past ExpiryDateMs. A zero
// ExpiryDateMs means "no expiry".
func (q Qos) ExpiresAt(now time.Time) bool {
	if q.ExpiryDateMs == 0 {
		return false
	}
	return q.ExpiryDateMs <= now.UnixMilli()
}
