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
	"errors"
	"fmt"

	"github.com/davidroman0O/robotest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrFailed is returned once a failure has already been reported on the console
var ErrFailed = errors.New("run failed")

// Replaced in tests
var (
	globber    robotest.Globber
	openSerial robotest.Opener = robotest.OpenSerial
)

// NewRootCommand creates a new root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "robotest",
		Short: "Hardware-in-the-loop checks for the robot controller",
		Long: `Hardware-in-the-loop checks for the robot controller.

robotest picks the board's serial port for the build tool, waits for the
firmware to announce "READY ip=<address>" over serial and then smoke tests
the controller's HTTP endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringP("port", "p", "", "Serial device to use instead of auto-detection")
	rootCmd.PersistentFlags().StringSlice("pattern", robotest.DefaultPatterns, "Device glob patterns, in preference order")
	rootCmd.PersistentFlags().Int("baud", robotest.DefaultBaudRate, "Serial baud rate")
	rootCmd.PersistentFlags().Duration("read-timeout", robotest.DefaultReadTimeout, "Timeout of a single serial read")
	rootCmd.PersistentFlags().Duration("ready-timeout", robotest.DefaultReadyTimeout, "Time allowed for the READY line")
	rootCmd.PersistentFlags().Duration("http-timeout", robotest.DefaultHTTPTimeout, "Timeout of each HTTP request")
	rootCmd.PersistentFlags().Int("http-port", robotest.DefaultHTTPPort, "Controller HTTP port")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(newPortCommand())
	rootCmd.AddCommand(newWaitCommand())
	rootCmd.AddCommand(newSmokeCommand())
	rootCmd.AddCommand(newRunCommand())

	return rootCmd
}

// getConfig builds a run configuration from command flags
func getConfig(cmd *cobra.Command) (robotest.Config, error) {
	port, _ := cmd.Flags().GetString("port")
	patterns, _ := cmd.Flags().GetStringSlice("pattern")
	baud, _ := cmd.Flags().GetInt("baud")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	readyTimeout, _ := cmd.Flags().GetDuration("ready-timeout")
	httpTimeout, _ := cmd.Flags().GetDuration("http-timeout")
	httpPort, _ := cmd.Flags().GetInt("http-port")

	if baud <= 0 {
		return robotest.Config{}, fmt.Errorf("invalid baud rate: %d", baud)
	}
	if readTimeout <= 0 || readyTimeout <= 0 || httpTimeout <= 0 {
		return robotest.Config{}, fmt.Errorf("timeouts must be positive")
	}
	if httpPort <= 0 || httpPort > 65535 {
		return robotest.Config{}, fmt.Errorf("invalid HTTP port: %d", httpPort)
	}

	cfg := robotest.Config{
		Port:         port,
		Patterns:     patterns,
		BaudRate:     baud,
		ReadTimeout:  readTimeout,
		ReadyTimeout: readyTimeout,
		HTTPTimeout:  httpTimeout,
		HTTPPort:     httpPort,
	}

	// Optional per-command flags
	if f := cmd.Flags().Lookup("ip"); f != nil {
		cfg.IP = f.Value.String()
	}
	if extended, err := cmd.Flags().GetBool("extended"); err == nil {
		cfg.Extended = extended
	}

	return cfg, nil
}

// getLogger creates the diagnostic logger from the debug flag
func getLogger(cmd *cobra.Command) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return robotest.NewLogger(debug)
}
