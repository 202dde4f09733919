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

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrInvalidWSPort indicates that the cluster controller's WebSocket
	// listen port is not valid.
	ErrInvalidWSPort = errors.New("invalid cluster controller websocket port provided")
	// ErrInvalidWSTLSPort indicates that the cluster controller's TLS
	// WebSocket listen port is not valid.
	ErrInvalidWSTLSPort = errors.New("invalid cluster controller websocket tls port provided")
	// ErrMulticastDirectoryPathRequired indicates that the multicast
	// receiver directory persistence file path was left empty.
	ErrMulticastDirectoryPathRequired = errors.New("multicast receiver directory persistence file is required")
	// ErrParticipantIDsPathRequired indicates that the participant ID map
	// persistence file path was left empty.
	ErrParticipantIDsPathRequired = errors.New("participant ids persistence file is required")
	// ErrInvalidBrokerURL indicates that the messaging broker URL is not
	// set or malformed.
	ErrInvalidBrokerURL = errors.New("invalid messaging broker url provided")
	// ErrInvalidWSEncryptionConfig indicates that TLS was requested for
	// the WebSocket transport without certificate material.
	ErrInvalidWSEncryptionConfig = errors.New("websocket tls encryption enabled without cert, key, and ca files")
	// ErrInvalidMQTTBrokerURL indicates MQTT is enabled but has no broker
	// URL configured.
	ErrInvalidMQTTBrokerURL = errors.New("mqtt enabled without a broker url")
	// ErrInvalidMetricsBindAddress indicates that the provided metrics
	// server bind address is not valid.
	ErrInvalidMetricsBindAddress = errors.New("invalid metrics server bind address provided")
	// ErrInvalidMetricsPort indicates that the provided metrics server
	// port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidAccessControlPath indicates access control is enabled but
	// the database path was left empty.
	ErrInvalidAccessControlPath = errors.New("access control enabled without a database path")
	// ErrInvalidDiscoveryTimeout indicates a non-positive default
	// discovery timeout.
	ErrInvalidDiscoveryTimeout = errors.New("invalid default discovery timeout provided")
	// ErrInvalidDiscoveryRetryInterval indicates a non-positive default
	// retry interval, or one larger than the timeout it governs.
	ErrInvalidDiscoveryRetryInterval = errors.New("invalid default discovery retry interval provided")
	// ErrInvalidCacheMaxAge indicates a negative default cache max age.
	ErrInvalidCacheMaxAge = errors.New("invalid default discovery cache max age provided")
)

// Validate checks the ClusterController section.
func (c ClusterController) Validate() error {
	if c.WSPort <= 0 || c.WSPort > 65535 {
		return ErrInvalidWSPort
	}
	if c.WSTLSPort < 0 || c.WSTLSPort > 65535 {
		return ErrInvalidWSTLSPort
	}
	if c.MulticastReceiverDirectoryPersistenceFile == "" {
		return ErrMulticastDirectoryPathRequired
	}
	return nil
}

// Validate checks the LibJoynr section.
func (l LibJoynr) Validate() error {
	if l.ParticipantIDsPersistenceFile == "" {
		return ErrParticipantIDsPathRequired
	}
	return nil
}

// Validate checks the Messaging section.
func (m Messaging) Validate() error {
	if m.BrokerURL == "" {
		return ErrInvalidBrokerURL
	}
	return nil
}

// Validate checks the WebSocket section.
func (w WebSocket) Validate() error {
	if w.TLSEncryption && (w.CertFile == "" || w.KeyFile == "" || w.CAFile == "") {
		return ErrInvalidWSEncryptionConfig
	}
	return nil
}

// Validate checks the MQTT section.
func (m MQTT) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.BrokerURL == "" {
		return ErrInvalidMQTTBrokerURL
	}
	return nil
}

// Validate checks the Metrics section.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}
	if m.Bind == "" {
		return ErrInvalidMetricsBindAddress
	}
	if m.Port <= 0 || m.Port > 65535 {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate checks the AccessControl section.
func (a AccessControl) Validate() error {
	if !a.Enabled {
		return nil
	}
	if a.DatabasePath == "" {
		return ErrInvalidAccessControlPath
	}
	return nil
}

// Validate checks the Discovery section.
func (d Discovery) Validate() error {
	if d.DefaultDiscoveryTimeoutMs <= 0 {
		return ErrInvalidDiscoveryTimeout
	}
	if d.DefaultRetryIntervalMs <= 0 || d.DefaultRetryIntervalMs > d.DefaultDiscoveryTimeoutMs {
		return ErrInvalidDiscoveryRetryInterval
	}
	if d.DefaultCacheMaxAgeMs < 0 {
		return ErrInvalidCacheMaxAge
	}
	return nil
}

// Validate checks the whole configuration, delegating to each section.
func (c Config) Validate() error {
	switch c.LogLevel {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelFatal:
	default:
		return ErrInvalidLogLevel
	}

	if err := c.ClusterController.Validate(); err != nil {
		return err
	}
	if err := c.LibJoynr.Validate(); err != nil {
		return err
	}
	if err := c.Messaging.Validate(); err != nil {
		return err
	}
	if err := c.WebSocket.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.AccessControl.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	return nil
}
