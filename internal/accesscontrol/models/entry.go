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

// Package models holds the gorm-mapped rows of the access-control
// policy database.
package models

import "time"

// Entry is one master access-control entry: whether principal may
// perform operation against participantID. "*" in Principal or
// Operation matches any value; the most specific matching row wins.
type Entry struct {
	ID            uint      `gorm:"primarykey"`
	Principal     string    `gorm:"index:idx_acl_lookup,priority:1;not null"`
	ParticipantID string    `gorm:"index:idx_acl_lookup,priority:2;not null"`
	Operation     string    `gorm:"index:idx_acl_lookup,priority:3;not null"`
	Permission    string    `gorm:"not null"` // "ALLOW" or "DENY"
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName pins the table name independent of struct renames.
func (Entry) TableName() string {
	return "access_control_entries"
}
