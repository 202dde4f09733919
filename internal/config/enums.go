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

package config

// LogLevel mirrors the JOYNR_LOG_LEVEL environment override named in the
// external interfaces section of the spec.
type LogLevel string

const (
	LogLevelTrace LogLevel = "TRACE"
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// DiscoveryScope controls how LCD.Lookup resolves local vs. global
// candidates.
type DiscoveryScope string

const (
	ScopeLocalOnly       DiscoveryScope = "LOCAL_ONLY"
	ScopeLocalThenGlobal DiscoveryScope = "LOCAL_THEN_GLOBAL"
	ScopeLocalAndGlobal  DiscoveryScope = "LOCAL_AND_GLOBAL"
	ScopeGlobalOnly      DiscoveryScope = "GLOBAL_ONLY"
)

// ProviderScope controls whether an LCD entry is advertised to the
// global directory.
type ProviderScope string

const (
	ProviderScopeLocal  ProviderScope = "LOCAL"
	ProviderScopeGlobal ProviderScope = "GLOBAL"
)

// ArbitrationStrategy names the candidate-selection strategies the
// arbitrator can apply.
type ArbitrationStrategy string

const (
	ArbitrationHighestPriority    ArbitrationStrategy = "highestPriority"
	ArbitrationLastSeen           ArbitrationStrategy = "lastSeen"
	ArbitrationKeyword            ArbitrationStrategy = "keyword"
	ArbitrationFixedParticipantID ArbitrationStrategy = "fixedParticipantId"
)
