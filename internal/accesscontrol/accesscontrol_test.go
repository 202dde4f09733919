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

package accesscontrol_test

import (
	"context"
	"testing"

	"github.com/joynr-go/cluster-controller/internal/accesscontrol"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *accesscontrol.DBChecker {
	t.Helper()
	checker, err := accesscontrol.Open("", nil)
	require.NoError(t, err)
	return checker
}

func TestNoopCheckerAlwaysPermits(t *testing.T) {
	t.Parallel()
	var checker accesscontrol.Checker = accesscontrol.NoopChecker{}
	ok, err := checker.IsPermitted(context.Background(), "anyone", "anything", "invoke")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDBCheckerDeniesByDefault(t *testing.T) {
	t.Parallel()
	checker := open(t)
	ok, err := checker.IsPermitted(context.Background(), "alice", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDBCheckerExactGrantAllows(t *testing.T) {
	t.Parallel()
	checker := open(t)
	ctx := context.Background()
	require.NoError(t, checker.Grant(ctx, "alice", "provider-1", accesscontrol.OperationInvoke, accesscontrol.PermissionAllow))

	ok, err := checker.IsPermitted(ctx, "alice", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = checker.IsPermitted(ctx, "bob", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDBCheckerWildcardPrincipalGrantsEveryone(t *testing.T) {
	t.Parallel()
	checker := open(t)
	ctx := context.Background()
	require.NoError(t, checker.Grant(ctx, accesscontrol.Wildcard, "provider-1", accesscontrol.OperationInvoke, accesscontrol.PermissionAllow))

	ok, err := checker.IsPermitted(ctx, "anyone", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestDBCheckerExactDenyOverridesWildcardAllow is the "most specific
// row wins" property: a wildcard ALLOW for everyone plus an exact DENY
// for one principal must deny only that principal.
func TestDBCheckerExactDenyOverridesWildcardAllow(t *testing.T) {
	t.Parallel()
	checker := open(t)
	ctx := context.Background()
	require.NoError(t, checker.Grant(ctx, accesscontrol.Wildcard, "provider-1", accesscontrol.OperationInvoke, accesscontrol.PermissionAllow))
	require.NoError(t, checker.Grant(ctx, "mallory", "provider-1", accesscontrol.OperationInvoke, accesscontrol.PermissionDeny))

	ok, err := checker.IsPermitted(ctx, "mallory", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = checker.IsPermitted(ctx, "alice", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDBCheckerRevokeRemovesEntry(t *testing.T) {
	t.Parallel()
	checker := open(t)
	ctx := context.Background()
	require.NoError(t, checker.Grant(ctx, "alice", "provider-1", accesscontrol.OperationInvoke, accesscontrol.PermissionAllow))
	require.NoError(t, checker.Revoke(ctx, "alice", "provider-1", accesscontrol.OperationInvoke))

	ok, err := checker.IsPermitted(ctx, "alice", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDBCheckerOperationIsScoped(t *testing.T) {
	t.Parallel()
	checker := open(t)
	ctx := context.Background()
	require.NoError(t, checker.Grant(ctx, "alice", "provider-1", accesscontrol.OperationFireAndForget, accesscontrol.PermissionAllow))

	ok, err := checker.IsPermitted(ctx, "alice", "provider-1", accesscontrol.OperationInvoke)
	require.NoError(t, err)
	require.False(t, ok)
}
