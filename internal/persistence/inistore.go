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

package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/ini.v1"
)

// KeyValueStore persists a flat string-to-string map as an INI file
// with a single unnamed section, one key per line. Used for the
// participant-id file (logical name -> participant id) and the
// multicast-receiver directory (multicast id -> comma-separated
// subscriber ids), both of which joynr documents as plain key/value
// files rather than structured JSON.
type KeyValueStore struct {
	mu   sync.Mutex
	path string
}

// NewKeyValueStore constructs a KeyValueStore backed by path. The
// containing directory is created lazily on the first Save.
func NewKeyValueStore(path string) *KeyValueStore {
	return &KeyValueStore{path: path}
}

// Save overwrites the file with entries, atomically.
func (s *KeyValueStore) Save(entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := ini.Empty()
	section := file.Section("")
	for k, v := range entries {
		section.NewKey(k, v)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create persistence directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := file.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("write temp persistence file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace persistence file: %w", err)
	}
	return nil
}

// Load reads the file at path into a fresh map. A missing file is
// treated as an empty store, matching Store.Load's fresh-install
// behavior.
func (s *KeyValueStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	file, err := ini.Load(s.path)
	if err != nil {
		return nil, fmt.Errorf("read persistence file: %w", err)
	}

	entries := make(map[string]string)
	for _, key := range file.Section("").Keys() {
		entries[key.Name()] = key.Value()
	}
	return entries, nil
}
