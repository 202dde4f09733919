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

package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/joynr-go/cluster-controller/internal/cc"
	"github.com/joynr-go/cluster-controller/internal/config"
	"github.com/joynr-go/cluster-controller/internal/logging"
	"github.com/joynr-go/cluster-controller/internal/settings"
	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
)

// NewCommand builds the clustercontrollerd root command.
func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clustercontrollerd",
		Short:   "Run a joynr-style cluster controller message plane",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.Flags().String("settings-file", "", "path to a joynr-style cluster-controller.properties settings file; overrides the usual flag/env configuration when set")
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("clustercontrollerd %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	settingsFile, err := cmd.Flags().GetString("settings-file")
	if err != nil {
		return fmt.Errorf("failed to read settings-file flag: %w", err)
	}

	var cfg config.Config
	if settingsFile != "" {
		cfg, err = settings.Load(settingsFile)
		if err != nil {
			return fmt.Errorf("failed to load settings file: %w", err)
		}
	} else {
		c, err := configulator.FromContext[config.Config](ctx)
		if err != nil {
			return fmt.Errorf("failed to get config from context: %w", err)
		}

		cfg, err = c.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel)

	if cfg.Metrics.OTLPEndpoint != "" {
		shutdownTracer := initTracer(cfg, logger)
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error("failed to shut down tracer", "error", err)
			}
		}()
	}

	controller, err := cc.New(cfg, "", logger)
	if err != nil {
		return fmt.Errorf("failed to build cluster controller: %w", err)
	}

	if err := controller.Start(); err != nil {
		return fmt.Errorf("failed to start cluster controller: %w", err)
	}
	logger.Info("cluster controller started", "participantId", controller.ParticipantID())

	stop := func(sig os.Signal) {
		logger.Warn("shutting down due to signal", "signal", sig)

		wg := new(sync.WaitGroup)
		wg.Add(1)
		go func() {
			defer wg.Done()
			controller.Drain()
		}()

		const timeout = 10 * time.Second
		done := make(chan struct{})
		go func() {
			defer close(done)
			wg.Wait()
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			logger.Error("drain timed out, stopping anyway")
		}

		if err := controller.Stop(); err != nil {
			logger.Error("failed to stop cluster controller cleanly", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	defer stop(syscall.SIGINT)

	shutdown.AddWithParam(stop)
	shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	return nil
}
