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
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/davidroman0O/robotest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newPortCommand creates the port selection command
func newPortCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "port",
		Short: "Select the board's serial port for upload, monitor and test",
		Long: `Select the board's serial port for upload, monitor and test.

USB modem devices are preferred over USB-serial adapters; within each kind the
lexicographically smallest path wins. The selection is written to the
UPLOAD_PORT, MONITOR_PORT and TEST_PORT slots.`,
		Example: `  # Print the selected port
  robotest port

  # Export the slots for the build tool
  eval "$(robotest port --export)"

  # Store the slots in a dotenv file
  robotest port --env-file .env.ports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			export, _ := cmd.Flags().GetBool("export")
			envFile, _ := cmd.Flags().GetString("env-file")
			pick, _ := cmd.Flags().GetBool("pick")
			strict, _ := cmd.Flags().GetBool("strict")
			patterns, _ := cmd.Flags().GetStringSlice("pattern")
			logger := getLogger(cmd)
			defer logger.Sync()

			// Status goes to stderr when stdout carries the exported slots
			status := cmd.OutOrStdout()
			if export {
				status = cmd.ErrOrStderr()
			}

			// Keys already in the env file are preserved
			env := robotest.EnvMap{}
			if envFile != "" {
				existing, err := robotest.ReadEnvMap(envFile)
				if err != nil {
					return err
				}
				env = existing
			}
			var port string
			var ok bool

			candidates := robotest.Candidates(globber, patterns...)
			logger.Debug("serial candidates", zap.Strings("ports", candidates))

			if pick && len(candidates) > 1 {
				chosen, err := pickPort(candidates)
				if err != nil {
					return fmt.Errorf("port selection cancelled: %w", err)
				}
				fmt.Fprintln(status, "Selected upload/test port:", chosen)
				robotest.ApplyPort(env, chosen)
				port, ok = chosen, true
			} else {
				port, ok = robotest.SelectPort(env, status,
					robotest.WithGlobber(globber),
					robotest.WithPatterns(patterns...),
				)
			}

			if !ok {
				if strict {
					return ErrFailed
				}
				return nil
			}
			logger.Debug("port selected", zap.String("port", port))

			if export {
				text, err := slotsOf(env).Marshal()
				if err != nil {
					return fmt.Errorf("failed to export port: %w", err)
				}
				for _, line := range exportLines(text) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}

			if envFile != "" {
				if err := env.Write(envFile); err != nil {
					return err
				}
				fmt.Fprintf(status, "Wrote %s\n", envFile)
			}

			return nil
		},
	}

	// Add flags
	cmd.Flags().Bool("export", false, "Print the selected slots as shell exports")
	cmd.Flags().String("env-file", "", "Write the selected slots to a dotenv file")
	cmd.Flags().Bool("pick", false, "Choose interactively when several devices are attached")
	cmd.Flags().Bool("strict", false, "Exit with status 1 when no device is found")

	return cmd
}

// pickPort asks the user to choose among candidates
func pickPort(candidates []string) (string, error) {
	chosen := candidates[0]
	err := huh.NewSelect[string]().
		Title("Several serial devices found").
		Description("Pick the board to upload to and test").
		Options(huh.NewOptions(candidates...)...).
		Value(&chosen).
		Run()
	if err != nil {
		return "", err
	}
	return chosen, nil
}

// exportLines turns dotenv output into shell export statements
func exportLines(dotenv string) []string {
	var lines []string
	for _, line := range strings.Split(dotenv, "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, "export "+line)
	}
	return lines
}

// slotsOf keeps only the port slots of env
func slotsOf(env robotest.EnvMap) robotest.EnvMap {
	slots := robotest.EnvMap{}
	for _, key := range []string{robotest.UploadPortKey, robotest.MonitorPortKey, robotest.TestPortKey} {
		if v, ok := env[key]; ok {
			slots[key] = v
		}
	}
	return slots
}
