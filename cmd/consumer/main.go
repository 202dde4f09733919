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

// Command consumer is a worked example of calling a provider's method
// through the consumer-facing request API. It registers the same
// "calculator" provider the provider example advertises, then calls
// its "add" method and prints the reply, exercising the full
// encode -> route -> invoke -> reply round trip in one process.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joynr-go/cluster-controller/internal/cc"
	"github.com/joynr-go/cluster-controller/internal/config"
	"github.com/joynr-go/cluster-controller/internal/consumerapi"
	"github.com/joynr-go/cluster-controller/internal/logging"
	"github.com/joynr-go/cluster-controller/internal/providerapi"
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
			ParticipantIDsPersistenceFile: "consumer-participant-ids.properties",
		},
		ClusterController: config.ClusterController{
			MulticastReceiverDirectoryPersistenceFile: "consumer-multicast-receivers.properties",
		},
	}

	controller, err := cc.New(cfg, "consumer-cc", logger)
	if err != nil {
		logger.Error("failed to build cluster controller", "error", err)
		os.Exit(1)
	}
	controller.RegisterProvider(newCalculatorProvider())

	done := make(chan struct{})
	_, err = consumerapi.SendRequest(controller.Dispatcher(), "calculator", "add", addParams{A: 2, B: 3}, 5*time.Second,
		func(reply []byte) {
			var sum int
			if err := json.Unmarshal(reply, &sum); err != nil {
				logger.Error("failed to decode add reply", "error", err)
			} else {
				fmt.Printf("calculator.add(2, 3) = %d\n", sum)
			}
			close(done)
		},
		func(err error) {
			logger.Error("add request failed", "error", err)
			close(done)
		},
	)
	if err != nil {
		logger.Error("failed to send add request", "error", err)
		os.Exit(1)
	}
	<-done

	controller.Drain()
	if err := controller.Stop(); err != nil {
		logger.Error("failed to stop cluster controller cleanly", "error", err)
	}
}
