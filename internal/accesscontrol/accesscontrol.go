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

// Package accesscontrol decides whether a principal may invoke a
// participant, consulting a small relational policy database. The
// Dispatcher consults a Checker before handing an inbound request or
// one-way call to its registered request interpreter.
package accesscontrol

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glebarez/sqlite"
	"github.com/joynr-go/cluster-controller/internal/accesscontrol/migration"
	"github.com/joynr-go/cluster-controller/internal/accesscontrol/models"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Permission is the outcome a matching access-control entry grants.
type Permission string

const (
	PermissionAllow Permission = "ALLOW"
	PermissionDeny  Permission = "DENY"

	// Wildcard matches any principal or operation. Participant ids are
	// always matched exactly.
	Wildcard = "*"

	// OperationInvoke and OperationFireAndForget are the two
	// operations the Dispatcher checks before handing a message to a
	// request interpreter.
	OperationInvoke        = "invoke"
	OperationFireAndForget = "fireAndForget"
)

// Checker decides whether principal may perform operation against
// participantID.
type Checker interface {
	IsPermitted(ctx context.Context, principal, participantID, operation string) (bool, error)
}

// NoopChecker always permits; used when access control is disabled in
// configuration.
type NoopChecker struct{}

// IsPermitted always returns true.
func (NoopChecker) IsPermitted(context.Context, string, string, string) (bool, error) {
	return true, nil
}

// DBChecker is a gorm + gormigrate-backed Checker. The most specific
// matching row wins: exact principal beats wildcard principal,
// independently of exact/wildcard participant and operation; a row
// with no match at all denies by default.
type DBChecker struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating and migrating if necessary) a sqlite-backed
// access-control database at path. An empty path opens a private
// in-memory database, matching the teacher's own TEST-mode sqlite
// wiring.
func Open(path string, logger *slog.Logger) (*DBChecker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open access control database: %w", err)
	}
	if err := migration.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate access control database: %w", err)
	}
	return &DBChecker{db: db, logger: logger}, nil
}

// Close releases the underlying database connection.
func (c *DBChecker) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("access underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// IsPermitted looks up every entry whose principal and operation are
// either exact or wildcard matches for participantID, and returns the
// permission of the most specific one. Ties are broken in favor of
// DENY. No matching row denies.
func (c *DBChecker) IsPermitted(ctx context.Context, principal, participantID, operation string) (bool, error) {
	var entries []models.Entry
	err := c.db.WithContext(ctx).
		Where("participant_id = ?", participantID).
		Where("principal = ? OR principal = ?", principal, Wildcard).
		Where("operation = ? OR operation = ?", operation, Wildcard).
		Find(&entries).Error
	if err != nil {
		return false, fmt.Errorf("query access control entries: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	best := entries[0]
	for _, e := range entries[1:] {
		if specificity(e, principal, operation) > specificity(best, principal, operation) {
			best = e
		} else if specificity(e, principal, operation) == specificity(best, principal, operation) && e.Permission == string(PermissionDeny) {
			best = e
		}
	}
	return best.Permission == string(PermissionAllow), nil
}

// specificity scores an entry: 2 points for an exact principal match,
// 1 for an exact operation match. participantID is always exact
// because it's part of the WHERE clause.
func specificity(e models.Entry, principal, operation string) int {
	score := 0
	if e.Principal == principal {
		score += 2
	}
	if e.Operation == operation {
		score++
	}
	return score
}

// Grant inserts or updates the entry for (principal, participantID,
// operation), replacing any existing row for that key.
func (c *DBChecker) Grant(ctx context.Context, principal, participantID, operation string, permission Permission) error {
	var existing models.Entry
	err := c.db.WithContext(ctx).
		Where("principal = ? AND participant_id = ? AND operation = ?", principal, participantID, operation).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Permission = string(permission)
		if err := c.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return fmt.Errorf("update access control entry: %w", err)
		}
		return nil
	case gormIsNotFound(err):
		entry := models.Entry{
			Principal:     principal,
			ParticipantID: participantID,
			Operation:     operation,
			Permission:    string(permission),
		}
		if err := c.db.WithContext(ctx).Create(&entry).Error; err != nil {
			return fmt.Errorf("create access control entry: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("look up access control entry: %w", err)
	}
}

// Revoke deletes the entry for (principal, participantID, operation),
// if any.
func (c *DBChecker) Revoke(ctx context.Context, principal, participantID, operation string) error {
	err := c.db.WithContext(ctx).
		Where("principal = ? AND participant_id = ? AND operation = ?", principal, participantID, operation).
		Delete(&models.Entry{}).Error
	if err != nil {
		return fmt.Errorf("revoke access control entry: %w", err)
	}
	return nil
}

func gormIsNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}
