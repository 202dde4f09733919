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

package replycallers_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/replycallers"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func newDirectory(t *testing.T) *replycallers.Directory {
	t.Helper()
	d, err := scheduler.NewDelayed()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown() })
	return replycallers.New(d, nil)
}

func TestTakeReturnsCallerAndCancelsTimer(t *testing.T) {
	t.Parallel()
	dir := newDirectory(t)

	var errFired atomic.Bool
	err := dir.Add("req-1", replycallers.Caller{
		OnSuccess: func([]byte) {},
		OnError:   func(error) { errFired.Store(true) },
	}, 50*time.Millisecond)
	require.NoError(t, err)

	caller, ok := dir.Take("req-1")
	require.True(t, ok)
	require.NotNil(t, caller.OnSuccess)

	time.Sleep(100 * time.Millisecond)
	require.False(t, errFired.Load())

	_, ok = dir.Take("req-1")
	require.False(t, ok)
}

func TestTTLFiresOnErrorExactlyOnce(t *testing.T) {
	t.Parallel()
	dir := newDirectory(t)

	var calls atomic.Int32
	var lastErr error
	done := make(chan struct{})
	err := dir.Add("req-2", replycallers.Caller{
		OnSuccess: func([]byte) {},
		OnError: func(e error) {
			calls.Add(1)
			lastErr = e
			close(done)
		},
	}, 20*time.Millisecond)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout callback never fired")
	}

	require.Equal(t, int32(1), calls.Load())
	require.ErrorIs(t, lastErr, ccerrors.ErrTTLExpired)

	_, ok := dir.Take("req-2")
	require.False(t, ok)
}
