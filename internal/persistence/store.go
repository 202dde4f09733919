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

// Package persistence provides the write-replace JSON store every
// component that must survive a restart (subscription records, the
// local capabilities cache) persists through. One Store instance owns
// one file; callers round-trip whatever type they pass to Save/Load.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists a single JSON document to path, atomically.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore constructs a Store backed by path. The containing
// directory is created lazily on the first Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save serializes v and writes it to disk via a temp-file-then-rename,
// so a concurrent reader (or a crash mid-write) never observes a
// partially-written file.
func (s *Store) Save(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal persisted state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create persistence directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp persistence file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace persistence file: %w", err)
	}
	return nil
}

// Load deserializes the file at path into v. If the file does not
// exist, Load returns nil and leaves v unmodified — callers treat a
// fresh install the same as an empty persisted set.
func (s *Store) Load(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read persistence file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal persisted state: %w", err)
	}
	return nil
}
