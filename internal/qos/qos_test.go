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

package qos_test

import (
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/qos"
	"github.com/stretchr/testify/require"
)

func TestClampPeriodicBelowMinimum(t *testing.T) {
	t.Parallel()
	q := qos.Qos{Kind: qos.KindPeriodic, Period: time.Millisecond, PublicationTTL: time.Second}
	q.Clamp()
	require.Equal(t, qos.PeriodMin, q.Period)
}

func TestClampPeriodicAboveMaximum(t *testing.T) {
	t.Parallel()
	q := qos.Qos{Kind: qos.KindPeriodic, Period: 365 * 24 * time.Hour, PublicationTTL: time.Second}
	q.Clamp()
	require.Equal(t, qos.PeriodMax, q.Period)
}

func TestClampAlertAfterIntervalNeverBelowPeriod(t *testing.T) {
	t.Parallel()
	q := qos.Qos{Kind: qos.KindPeriodic, Period: time.Minute, AlertAfterInterval: time.Second, PublicationTTL: time.Second}
	q.Clamp()
	require.Equal(t, time.Minute, q.AlertAfterInterval)
}

func TestClampAlertAfterIntervalZeroStaysDisabled(t *testing.T) {
	t.Parallel()
	q := qos.Qos{Kind: qos.KindPeriodic, Period: time.Minute, AlertAfterInterval: 0, PublicationTTL: time.Second}
	q.Clamp()
	require.Equal(t, time.Duration(0), q.AlertAfterInterval)
}

func TestClampOnChangeKeepAliveMaxIntervalNeverBelowMinInterval(t *testing.T) {
	t.Parallel()
	q := qos.Qos{Kind: qos.KindOnChangeWithKeepAlive, MinInterval: time.Second, MaxInterval: time.Millisecond, PublicationTTL: time.Second}
	q.Clamp()
	require.Equal(t, time.Second, q.MaxInterval)
}

func TestClampPublicationTTLBounds(t *testing.T) {
	t.Parallel()
	tooLow := qos.Qos{Kind: qos.KindOnChange, PublicationTTL: time.Millisecond}
	tooLow.Clamp()
	require.Equal(t, qos.PublicationTTLMin, tooLow.PublicationTTL)

	tooHigh := qos.Qos{Kind: qos.KindOnChange, PublicationTTL: 365 * 24 * time.Hour}
	tooHigh.Clamp()
	require.Equal(t, qos.PublicationTTLMax, tooHigh.PublicationTTL)
}

func TestExpiresAtZeroMeansNoExpiry(t *testing.T) {
	t.Parallel()
	q := qos.Qos{}
	require.False(t, q.ExpiresAt(time.Now()))
}
