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

// Package config holds the process-wide configuration loaded through
// configulator and passed by value into every component constructor.
package config

// Config is the root configuration loaded via
// configulator.FromContext[config.Config](ctx).Load() in cmd/clustercontrollerd.
type Config struct {
	LogLevel LogLevel
	Debug    bool

	ClusterController ClusterController
	LibJoynr          LibJoynr
	Messaging         Messaging
	WebSocket         WebSocket
	MQTT              MQTT
	Metrics           Metrics
	AccessControl     AccessControl
	Discovery         Discovery
}

// ClusterController holds the settings for the transports this process
// exposes to locally attached libjoynr runtimes.
type ClusterController struct {
	WSPort                                    int
	WSTLSPort                                 int
	MulticastReceiverDirectoryPersistenceFile string
}

// LibJoynr holds settings that mirror the in-process runtime side of the
// same settings file joynr documents for libjoynr.
type LibJoynr struct {
	ParticipantIDsPersistenceFile string
}

// Messaging holds settings shared by every transport stub.
type Messaging struct {
	BrokerURL                  string
	DiscoveryDirectoriesDomain string
	MaxTTLMs                   int64
	DefaultTTLMs               int64
}

// WebSocket configures the WebSocket client/server stub factories.
type WebSocket struct {
	ClusterControllerMessagingURL string
	ReconnectSleepTimeMs          int64
	TLSEncryption                 bool
	CertFile                      string
	KeyFile                       string
	CAFile                        string
}

// MQTT configures the MQTT stub factory.
type MQTT struct {
	Enabled        bool
	BrokerURL      string
	ClientIDPrefix string
	KeepAliveSecs  int
}

// Metrics configures the Prometheus exposition endpoint and, optionally,
// OTLP trace export.
type Metrics struct {
	Enabled      bool
	Bind         string
	Port         int
	OTLPEndpoint string
}

// AccessControl configures the local access-control policy database.
type AccessControl struct {
	Enabled      bool
	DatabasePath string
}

// Discovery holds the default QoS applied to LCD.Lookup calls that don't
// specify their own.
type Discovery struct {
	DefaultDiscoveryTimeoutMs int64
	DefaultRetryIntervalMs    int64
	DefaultCacheMaxAgeMs      int64
}
