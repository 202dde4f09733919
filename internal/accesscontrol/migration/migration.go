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

//nolint:golint,wrapcheck
package migration

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/joynr-go/cluster-controller/internal/accesscontrol/models"
	"gorm.io/gorm"
)

// Migrate brings the access-control database up to the current schema.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601010000",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Entry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Entry{})
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return err
	}

	return nil
}
