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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/USA-RedDragon/configulator"
	rootcmd "github.com/joynr-go/cluster-controller/cmd/clustercontrollerd/cmd"
	"github.com/joynr-go/cluster-controller/internal/config"
	"github.com/joynr-go/cluster-controller/internal/sdk"
)

func main() {
	cmd := rootcmd.NewCommand(sdk.Version, sdk.GitCommit)

	conf := configulator.New[config.Config]()
	if err := conf.ConfigureCobra(cmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := conf.IntoContext(context.Background())
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
