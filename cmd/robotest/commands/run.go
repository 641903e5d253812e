// Copyright 2023 Turing Machines
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/davidroman0O/robotest"
	"github.com/spf13/cobra"
)

// newRunCommand creates the full run command
func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Wait for the board to boot, then smoke test its HTTP endpoints",
		Long: `Wait for the board to boot, then smoke test its HTTP endpoints.

The serial port is auto-detected unless --port is given. The board must print
"READY ip=<address>" within the ready timeout. GET /, GET /control and
GET /health are then checked in order; a failing /health is only a warning.`,
		Example: `  # Auto-detect the board and run all checks
  robotest run

  # Skip the serial handshake
  robotest run --ip 10.0.0.2 --summary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd)
		},
	}

	addRunFlags(cmd)
	cmd.Flags().String("ip", "", "Controller address; skips the serial handshake")

	return cmd
}

// newSmokeCommand creates the HTTP-only command
func newSmokeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Smoke test the HTTP endpoints of a board at a known address",
		Long:  "Smoke test the HTTP endpoints of a board at a known address, without touching serial.",
		Example: `  # The firmware's access point address
  robotest smoke --ip 10.0.0.2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd)
		},
	}

	addRunFlags(cmd)
	cmd.Flags().String("ip", "", "Controller address")
	cmd.MarkFlagRequired("ip")

	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("extended", false, "Also send a motor stop command to /drive")
	cmd.Flags().Bool("summary", false, "Render a summary table after the run")
}

// runChecks runs the sequence and reports it on the command's output
func runChecks(cmd *cobra.Command) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	summary, _ := cmd.Flags().GetBool("summary")
	logger := getLogger(cmd)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	runner := &robotest.Runner{
		Config: cfg,
		Glob:   globber,
		Open:   openSerial,
		Out:    out,
		Logger: logger,
	}

	report, err := runner.Run(ctx)
	if summary && report != nil && len(report.Results) > 0 {
		fmt.Fprintln(out)
		renderSummary(out, report)
	}
	if err != nil {
		printFailure(out, err)
		return ErrFailed
	}

	printSuccess(out)
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
