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

package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func TestDelayedFiresAfterDelay(t *testing.T) {
	t.Parallel()
	d, err := scheduler.NewDelayed()
	require.NoError(t, err)
	defer d.Shutdown() //nolint:errcheck

	fired := make(chan struct{})
	_, err = d.Schedule(10*time.Millisecond, func() { close(fired) })
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire within timeout")
	}
}

func TestDelayedUnscheduleCancelsPendingJob(t *testing.T) {
	t.Parallel()
	d, err := scheduler.NewDelayed()
	require.NoError(t, err)
	defer d.Shutdown() //nolint:errcheck

	var fired atomic.Bool
	h, err := d.Schedule(50*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)

	h.Unschedule()
	h.Unschedule() // idempotent

	time.Sleep(100 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	t.Parallel()
	p := scheduler.NewPool(2)
	defer p.Shutdown()

	var count atomic.Int32
	const n = 20
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		p.Submit(func() {
			count.Add(1)
			done <- struct{}{}
		})
	}
	for i := 0; i < n; i++ {
		<-done
	}
	require.Equal(t, int32(n), count.Load())
}
