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

// Command provider is a worked example of building and advertising a
// joynr-style provider against an in-process cluster controller. It
// registers a "calculator" provider exposing a single "add" method and
// keeps the process alive until interrupted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/joynr-go/cluster-controller/internal/cc"
	"github.com/joynr-go/cluster-controller/internal/config"
	"github.com/joynr-go/cluster-controller/internal/lcd"
	"github.com/joynr-go/cluster-controller/internal/logging"
	"github.com/joynr-go/cluster-controller/internal/providerapi"
	"github.com/ztrue/shutdown"
)

type addParams struct {
	A int `json:"a"`
	B int `json:"b"`
}

func newCalculatorProvider() *providerapi.Provider {
	p := providerapi.New("calculator")
	p.RegisterMethod("add", func(_ context.Context, params json.RawMessage) ([]byte, error) {
		var args addParams
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, fmt.Errorf("decode add params: %w", err)
		}
		return json.Marshal(args.A + args.B)
	})
	return p
}

func main() {
	logger := logging.New(config.LogLevelInfo)

	cfg := config.Config{
		LibJoynr: config.LibJoynr{
			ParticipantIDsPersistenceFile: "provider-participant-ids.properties",
		},
		ClusterController: config.ClusterController{
			MulticastReceiverDirectoryPersistenceFile: "provider-multicast-receivers.properties",
		},
	}

	controller, err := cc.New(cfg, "provider-cc", logger)
	if err != nil {
		logger.Error("failed to build cluster controller", "error", err)
		os.Exit(1)
	}

	provider := newCalculatorProvider()
	controller.RegisterProvider(provider)
	controller.AdvertiseProvider(lcd.Entry{
		ParticipantID: provider.ParticipantID(),
		Domain:        "examples",
		InterfaceName: "calculator",
		ProviderQos:   lcd.ProviderQos{Scope: lcd.ScopeLocal},
	}, false, func() {
		logger.Info("calculator provider advertised", "participantId", provider.ParticipantID())
	}, func(err error) {
		logger.Error("failed to advertise calculator provider", "error", err)
	})

	stop := func(sig os.Signal) {
		logger.Warn("shutting down provider", "signal", sig)
		controller.Drain()
		if err := controller.Stop(); err != nil {
			logger.Error("failed to stop cluster controller cleanly", "error", err)
		}
	}

	defer stop(syscall.SIGINT)
	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
}
