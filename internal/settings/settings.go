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

// Package settings reads the joynr-style INI settings file and
// produces the internal/config.Config the core is built from. Unknown
// keys are ignored; JOYNR_LOG_LEVEL overrides whatever the file says.
package settings

import (
	"fmt"
	"os"

	"github.com/joynr-go/cluster-controller/internal/config"
	"gopkg.in/ini.v1"
)

func getString(section *ini.Section, key, fallback string) string {
	k := section.Key(key)
	if k.Value() == "" {
		return fallback
	}
	return k.Value()
}

func getInt(section *ini.Section, key string, fallback int) int {
	v, err := section.Key(key).Int()
	if err != nil {
		return fallback
	}
	return v
}

func getInt64(section *ini.Section, key string, fallback int64) int64 {
	v, err := section.Key(key).Int64()
	if err != nil {
		return fallback
	}
	return v
}

func getBool(section *ini.Section, key string, fallback bool) bool {
	v, err := section.Key(key).Bool()
	if err != nil {
		return fallback
	}
	return v
}

// Load reads path and returns the populated Config. path may not
// exist, in which case every field falls back to its documented
// default.
func Load(path string) (config.Config, error) {
	opts := ini.LoadOptions{Loose: true, AllowBooleanKeys: true}
	file, err := ini.LoadSources(opts, path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load settings file %s: %w", path, err)
	}

	cc := file.Section("cluster-controller")
	libjoynr := file.Section("lib-joynr")
	messaging := file.Section("messaging")
	ws := file.Section("websocket")
	mqtt := file.Section("mqtt")
	metrics := file.Section("metrics")
	accessControl := file.Section("access-control")
	discovery := file.Section("discovery")

	cfg := config.Config{
		LogLevel: logLevelFromEnv(config.LogLevelInfo),
		Debug:    getBool(file.Section(""), "debug", false),

		ClusterController: config.ClusterController{
			WSPort:                                    getInt(cc, "ws-port", 4242),
			WSTLSPort:                                 getInt(cc, "ws-tls-port", 4243),
			MulticastReceiverDirectoryPersistenceFile: getString(cc, "multicast-receiver-directory-persistence-file", "MulticastReceiverDirectory.persist"),
		},
		LibJoynr: config.LibJoynr{
			ParticipantIDsPersistenceFile: getString(libjoynr, "participant-ids-persistence-file", "ParticipantIDs.persist"),
		},
		Messaging: config.Messaging{
			BrokerURL:                  getString(messaging, "broker-url", "tcp://localhost:1883"),
			DiscoveryDirectoriesDomain: getString(messaging, "discovery-directories-domain", "io.joynr"),
			MaxTTLMs:                   getInt64(messaging, "max-ttl-ms", 2592000000),
			DefaultTTLMs:               getInt64(messaging, "default-ttl-ms", 60000),
		},
		WebSocket: config.WebSocket{
			ClusterControllerMessagingURL: getString(ws, "cluster-controller-messaging-url", ""),
			ReconnectSleepTimeMs:          getInt64(ws, "reconnect-sleep-time-ms", 1000),
			TLSEncryption:                 getBool(ws, "tls-encryption", false),
			CertFile:                      getString(ws, "certificate", ""),
			KeyFile:                       getString(ws, "certificate-key", ""),
			CAFile:                        getString(ws, "certificate-authority", ""),
		},
		MQTT: config.MQTT{
			Enabled:        getBool(mqtt, "enabled", false),
			BrokerURL:      getString(mqtt, "broker-url", ""),
			ClientIDPrefix: getString(mqtt, "client-id-prefix", "cc-"),
			KeepAliveSecs:  getInt(mqtt, "keep-alive-seconds", 30),
		},
		Metrics: config.Metrics{
			Enabled:      getBool(metrics, "enabled", false),
			Bind:         getString(metrics, "bind", "127.0.0.1"),
			Port:         getInt(metrics, "port", 9090),
			OTLPEndpoint: getString(metrics, "otlp-endpoint", ""),
		},
		AccessControl: config.AccessControl{
			Enabled:      getBool(accessControl, "enabled", false),
			DatabasePath: getString(accessControl, "database-path", "accesscontrol.sqlite3"),
		},
		Discovery: config.Discovery{
			DefaultDiscoveryTimeoutMs: getInt64(discovery, "default-discovery-timeout-ms", 30000),
			DefaultRetryIntervalMs:    getInt64(discovery, "default-retry-interval-ms", 1000),
			DefaultCacheMaxAgeMs:      getInt64(discovery, "default-cache-max-age-ms", 0),
		},
	}
	return cfg, nil
}

func logLevelFromEnv(fallback config.LogLevel) config.LogLevel {
	v := os.Getenv("JOYNR_LOG_LEVEL")
	if v == "" {
		return fallback
	}
	level := config.LogLevel(v)
	switch level {
	case config.LogLevelTrace, config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError, config.LogLevelFatal:
		return level
	default:
		return fallback
	}
}
