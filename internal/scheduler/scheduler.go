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

// Package scheduler provides the delayed-execution primitive every
// timer in the message plane is built on (TTL expiry, subscription
// alerts, retry backoff) plus the worker pool that runs the callbacks
// off the I/O thread. Delayed wraps github.com/go-co-op/gocron/v2;
// Pool is a plain buffered-channel worker pool.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Delayed schedules one-shot callbacks. Unschedule is safe to call any
// number of times, including from within the firing callback itself.
type Delayed struct {
	sched gocron.Scheduler
}

// NewDelayed constructs and starts a delayed scheduler.
func NewDelayed() (*Delayed, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s.Start()
	return &Delayed{sched: s}, nil
}

// Handle identifies a scheduled callback for Unschedule.
type Handle struct {
	id   gocron.JobID
	once sync.Once
	d    *Delayed
}

// Schedule runs fn once, after delay elapses. The returned Handle's
// Unschedule cancels it if it hasn't fired yet.
func (d *Delayed) Schedule(delay time.Duration, fn func()) (*Handle, error) {
	job, err := d.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTimes(time.Now().Add(delay))),
		gocron.NewTask(fn),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule delayed job: %w", err)
	}
	return &Handle{id: job.ID(), d: d}, nil
}

// Unschedule cancels h if it has not already fired. Idempotent and
// safe to call from within the firing callback: the second and later
// calls are no-ops because of the sync.Once guard.
func (h *Handle) Unschedule() {
	h.once.Do(func() {
		_ = h.d.sched.RemoveJob(h.id)
	})
}

// Shutdown stops accepting new jobs and cancels everything pending.
func (d *Delayed) Shutdown() error {
	if err := d.sched.StopJobs(); err != nil {
		return fmt.Errorf("stop scheduler jobs: %w", err)
	}
	if err := d.sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	return nil
}
