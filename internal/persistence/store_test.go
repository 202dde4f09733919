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

package persistence_test

import (
	"path/filepath"
	"testing"

	"github.com/joynr-go/cluster-controller/internal/persistence"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count int
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := persistence.NewStore(path)

	require.NoError(t, store.Save(record{Name: "a", Count: 3}))

	var got record
	require.NoError(t, store.Load(&got))
	require.Equal(t, record{Name: "a", Count: 3}, got)
}

func TestLoadMissingFileIsNoOp(t *testing.T) {
	t.Parallel()
	store := persistence.NewStore(filepath.Join(t.TempDir(), "absent.json"))

	got := record{Name: "untouched"}
	require.NoError(t, store.Load(&got))
	require.Equal(t, record{Name: "untouched"}, got)
}

func TestSaveOverwritesPreviousContent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state.json")
	store := persistence.NewStore(path)

	require.NoError(t, store.Save(record{Name: "first"}))
	require.NoError(t, store.Save(record{Name: "second"}))

	var got record
	require.NoError(t, store.Load(&got))
	require.Equal(t, "second", got.Name)
}
