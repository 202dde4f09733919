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

func TestKeyValueStoreSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "participant-ids.properties")
	store := persistence.NewKeyValueStore(path)

	require.NoError(t, store.Save(map[string]string{
		"calculator.add": "uuid-1234",
		"thermostat":     "uuid-5678",
	}))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"calculator.add": "uuid-1234",
		"thermostat":     "uuid-5678",
	}, got)
}

func TestKeyValueStoreLoadMissingFileReturnsEmptyMap(t *testing.T) {
	t.Parallel()
	store := persistence.NewKeyValueStore(filepath.Join(t.TempDir(), "absent.properties"))

	got, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestKeyValueStoreSaveOverwritesPreviousContent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "multicast-receivers.properties")
	store := persistence.NewKeyValueStore(path)

	require.NoError(t, store.Save(map[string]string{"multicastA": "sub1,sub2"}))
	require.NoError(t, store.Save(map[string]string{"multicastB": "sub3"}))

	got, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"multicastB": "sub3"}, got)
}
