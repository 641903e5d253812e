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
	"fmt"
	"os"
	"os/signal"

	"github.com/davidroman0O/robotest"
	"github.com/spf13/cobra"
)

// newWaitCommand creates the handshake-only command
func newWaitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for the READY line and print the board's address",
		Long: `Wait for the READY line and print the board's address.

Serial output is echoed on stderr so that stdout carries only the address.`,
		Example: `  IP=$(robotest wait --ready-timeout 30s)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			logger := getLogger(cmd)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt)
			defer stop()

			port := cfg.Port
			if port == "" {
				var ok bool
				port, ok = robotest.FindPort(globber, cfg.Patterns...)
				if !ok {
					printFailureBanner(cmd.ErrOrStderr(), "BOARD NOT FOUND ❌", robotest.ErrNoDevice)
					return ErrFailed
				}
			}

			h := robotest.NewHandshake(
				robotest.WithOpener(openSerial),
				robotest.WithBaudRate(cfg.BaudRate),
				robotest.WithReadTimeout(cfg.ReadTimeout),
				robotest.WithReadyTimeout(cfg.ReadyTimeout),
				robotest.WithOutput(cmd.ErrOrStderr()),
				robotest.WithLogger(logger),
			)

			ip, err := h.Wait(ctx, port)
			if err != nil {
				printFailureBanner(cmd.ErrOrStderr(), "BOARD NOT READY ❌", err)
				return ErrFailed
			}

			fmt.Fprintln(cmd.OutOrStdout(), ip)
			return nil
		},
	}

	return cmd
}
