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

package dispatcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joynr-go/cluster-controller/internal/accesscontrol"
	"github.com/joynr-go/cluster-controller/internal/ccerrors"
	"github.com/joynr-go/cluster-controller/internal/codec"
	"github.com/joynr-go/cluster-controller/internal/dispatcher"
	"github.com/joynr-go/cluster-controller/internal/message"
	"github.com/joynr-go/cluster-controller/internal/msgqueue"
	"github.com/joynr-go/cluster-controller/internal/replycallers"
	"github.com/joynr-go/cluster-controller/internal/router"
	"github.com/joynr-go/cluster-controller/internal/routingtable"
	"github.com/joynr-go/cluster-controller/internal/scheduler"
	"github.com/joynr-go/cluster-controller/internal/stubs"
	"github.com/stretchr/testify/require"
)

// denyAllChecker is an accesscontrol.Checker test double that denies
// every request.
type denyAllChecker struct{}

func (denyAllChecker) IsPermitted(context.Context, string, string, string) (bool, error) {
	return false, nil
}

// echoInterpreter is a RequestInterpreter loopback fixture: it either
// echoes the payload back or, for one-way calls, records the call.
type echoInterpreter struct {
	failWith   error
	oneWayHits chan []byte
}

func (e *echoInterpreter) Invoke(_ context.Context, payload []byte, callback func([]byte, error)) {
	if e.failWith != nil {
		callback(nil, e.failWith)
		return
	}
	callback(payload, nil)
}

func (e *echoInterpreter) InvokeOneWay(_ context.Context, payload []byte) {
	if e.oneWayHits != nil {
		e.oneWayHits <- payload
	}
}

// buildLoopback wires a dispatcher whose router loops every
// non-local, in-process-addressed message straight back into the same
// dispatcher's HandleInbound, simulating a two-party conversation in a
// single process for test purposes.
func buildLoopback(t *testing.T, localID string) (*dispatcher.Dispatcher, *routingtable.Table) {
	t.Helper()
	delayed, err := scheduler.NewDelayed()
	require.NoError(t, err)
	t.Cleanup(func() { _ = delayed.Shutdown() })

	table := routingtable.New(nil)
	queue := msgqueue.New(msgqueue.Caps{}, nil, nil)
	factory := stubs.NewFactory()
	c := codec.NewJSON()
	rcDir := replycallers.New(delayed, nil)

	var d *dispatcher.Dispatcher
	factory.RegisterMiddlewareFactory(&stubs.InProcessFactory{
		Deliver: func(encoded []byte) error {
			return d.HandleInbound(context.Background(), encoded)
		},
	})

	r := router.New(router.Config{
		LocalParticipantID: localID,
		MaxRetries:          0,
		Backoff:             router.Backoff{Base: time.Millisecond, Factor: 1, Cap: time.Millisecond},
		DeliverLocal: func(encoded []byte) {
			require.NoError(t, d.HandleInbound(context.Background(), encoded))
		},
	}, table, queue, factory, delayed, nil, nil, c)

	d = dispatcher.New(localID, c, r, rcDir, nil)
	return d, table
}

func TestSendRequestRoundTripsThroughInterpreter(t *testing.T) {
	t.Parallel()
	consumer, table := buildLoopback(t, "consumer")

	table.Add("provider-1", message.Address{Kind: message.AddressInProcess, ParticipantID: "provider-1"}, false, time.Now().Add(time.Hour).UnixMilli(), false)
	consumer.RegisterRequestInterpreter("provider-1", &echoInterpreter{})

	done := make(chan struct{})
	var gotReply []byte
	_, err := consumer.SendRequest("provider-1", []byte("ping"), time.Minute, func(reply []byte) {
		gotReply = reply
		close(done)
	}, func(error) { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reply never arrived")
	}
	require.Equal(t, []byte("ping"), gotReply)
}

func TestSendRequestInterpreterFailureReachesOnError(t *testing.T) {
	t.Parallel()
	consumer, table := buildLoopback(t, "consumer")

	table.Add("provider-1", message.Address{Kind: message.AddressInProcess, ParticipantID: "provider-1"}, false, time.Now().Add(time.Hour).UnixMilli(), false)
	boom := errors.New("method exploded")
	consumer.RegisterRequestInterpreter("provider-1", &echoInterpreter{failWith: boom})

	done := make(chan struct{})
	var gotErr error
	_, err := consumer.SendRequest("provider-1", []byte("ping"), time.Minute, func([]byte) { close(done) }, func(e error) {
		gotErr = e
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("error never arrived")
	}
	require.ErrorIs(t, gotErr, ccerrors.ErrProviderRuntime)
}

func TestHandleInboundRequestUnregisteredRecipientRepliesWithError(t *testing.T) {
	t.Parallel()
	consumer, table := buildLoopback(t, "consumer")
	table.Add("nobody", message.Address{Kind: message.AddressInProcess, ParticipantID: "nobody"}, false, time.Now().Add(time.Hour).UnixMilli(), false)

	done := make(chan struct{})
	var gotErr error
	_, err := consumer.SendRequest("nobody", []byte("ping"), time.Minute, func([]byte) { close(done) }, func(e error) {
		gotErr = e
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("error never arrived")
	}
	require.ErrorIs(t, gotErr, ccerrors.ErrProviderRuntime)
}

// TestAccessControlDeniesRequestBeforeInterpreter is the access
// control enforcement property: a Checker that denies a principal
// must stop the request from ever reaching the interpreter.
func TestAccessControlDeniesRequestBeforeInterpreter(t *testing.T) {
	t.Parallel()
	consumer, table := buildLoopback(t, "consumer")
	consumer.SetAccessControl(denyAllChecker{})

	table.Add("provider-1", message.Address{Kind: message.AddressInProcess, ParticipantID: "provider-1"}, false, time.Now().Add(time.Hour).UnixMilli(), false)
	hits := make(chan []byte, 1)
	consumer.RegisterRequestInterpreter("provider-1", &echoInterpreter{oneWayHits: hits})

	done := make(chan struct{})
	var gotErr error
	_, err := consumer.SendRequest("provider-1", []byte("ping"), time.Minute, func([]byte) { close(done) }, func(e error) {
		gotErr = e
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("error never arrived")
	}
	require.ErrorIs(t, gotErr, ccerrors.ErrProviderRuntime)

	select {
	case <-hits:
		t.Fatal("interpreter should not have been invoked")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetAccessControlNilRestoresNoop(t *testing.T) {
	t.Parallel()
	consumer, table := buildLoopback(t, "consumer")
	consumer.SetAccessControl(denyAllChecker{})
	consumer.SetAccessControl(nil)

	table.Add("provider-1", message.Address{Kind: message.AddressInProcess, ParticipantID: "provider-1"}, false, time.Now().Add(time.Hour).UnixMilli(), false)
	consumer.RegisterRequestInterpreter("provider-1", &echoInterpreter{})

	done := make(chan struct{})
	var gotReply []byte
	_, err := consumer.SendRequest("provider-1", []byte("ping"), time.Minute, func(reply []byte) {
		gotReply = reply
		close(done)
	}, func(error) { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reply never arrived")
	}
	require.Equal(t, []byte("ping"), gotReply)
}

var _ accesscontrol.Checker = denyAllChecker{}

func TestSendOneWayInvokesInterpreterWithoutReply(t *testing.T) {
	t.Parallel()
	consumer, table := buildLoopback(t, "consumer")
	table.Add("provider-1", message.Address{Kind: message.AddressInProcess, ParticipantID: "provider-1"}, false, time.Now().Add(time.Hour).UnixMilli(), false)

	hits := make(chan []byte, 1)
	consumer.RegisterRequestInterpreter("provider-1", &echoInterpreter{oneWayHits: hits})

	consumer.SendOneWay("provider-1", []byte("fire"), time.Minute)

	select {
	case got := <-hits:
		require.Equal(t, []byte("fire"), got)
	case <-time.After(time.Second):
		t.Fatal("one-way call never reached interpreter")
	}
}
