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

// Package replycallers tracks outstanding requests awaiting a reply.
// Every caller fires at most once: either Take wins the race and
// returns it to the dispatcher, or the TTL timer wins and fires
// OnError(timeout) itself.
package replycallers

import (
	"sync"
	"time"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/metrics"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
)

// Caller is the continuation pair a request registers while it waits
// for its reply.
type Caller struct {
	OnSuccess func(payload []byte)
	OnError   func(err error)
}

type record struct {
	caller Caller
	handle *scheduler.Handle
}

// Directory is the reply caller directory. Use New.
type Directory struct {
	mu      sync.Mutex
	byID    map[string]*record
	delayed *scheduler.Delayed
	metrics *metrics.Metrics
}

// New constructs a directory backed by delayed for TTL timers. m may
// be nil.
func New(delayed *scheduler.Delayed, m *metrics.Metrics) *Directory {
	return &Directory{
		byID:    make(map[string]*record),
		delayed: delayed,
		metrics: m,
	}
}

// Add registers caller under requestReplyID and starts its TTL timer.
// If the timer fires before Take, caller.OnError(ccerrors.ErrTTLExpired)
// runs exactly once and the entry is removed.
func (d *Directory) Add(requestReplyID string, caller Caller, ttl time.Duration) error {
	rec := &record{caller: caller}

	handle, err := d.delayed.Schedule(ttl, func() {
		d.fireTimeout(requestReplyID)
	})
	if err != nil {
		return err
	}
	rec.handle = handle

	d.mu.Lock()
	d.byID[requestReplyID] = rec
	count := len(d.byID)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.ReplyCallersOutstanding.Set(float64(count))
	}
	return nil
}

func (d *Directory) fireTimeout(requestReplyID string) {
	d.mu.Lock()
	rec, ok := d.byID[requestReplyID]
	if ok {
		delete(d.byID, requestReplyID)
	}
	count := len(d.byID)
	d.mu.Unlock()

	if !ok {
		return
	}
	if d.metrics != nil {
		d.metrics.ReplyCallersOutstanding.Set(float64(count))
		d.metrics.ReplyCallersTimedOut.Inc()
	}
	rec.caller.OnError(ccerrors.ErrTTLExpired)
}

// Take returns and removes requestReplyID's caller, cancelling its
// timer. ok is false if the id is unknown (already taken, already
// timed out, or never registered).
func (d *Directory) Take(requestReplyID string) (Caller, bool) {
	d.mu.Lock()
	rec, ok := d.byID[requestReplyID]
	if ok {
		delete(d.byID, requestReplyID)
	}
	count := len(d.byID)
	d.mu.Unlock()

	if !ok {
		return Caller{}, false
	}
	rec.handle.Unschedule()
	if d.metrics != nil {
		d.metrics.ReplyCallersOutstanding.Set(float64(count))
	}
	return rec.caller, true
}
