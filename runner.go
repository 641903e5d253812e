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

package robotest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the tunables of a full run. Zero values fall back to the
// package defaults.
type Config struct {
	// Port skips discovery when set
	Port string
	// IP skips the serial handshake when set
	IP       string
	HTTPPort int
	Patterns []string

	BaudRate     int
	ReadTimeout  time.Duration
	ReadyTimeout time.Duration
	HTTPTimeout  time.Duration

	// Extended adds the motor stop check
	Extended bool
}

func (c Config) withDefaults() Config {
	if len(c.Patterns) == 0 {
		c.Patterns = DefaultPatterns
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = DefaultHTTPPort
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	return c
}

// CheckError reports a failed fatal check
type CheckError struct {
	Result Result
}

func (e *CheckError) Error() string {
	return e.Result.Message
}

// Runner performs discovery, the READY handshake and the smoke checks
type Runner struct {
	Config Config

	Glob   Globber
	Open   Opener
	Out    io.Writer
	Logger *zap.Logger
}

// Run executes the whole sequence. The returned report holds whatever ran
// before a failure.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	cfg := r.Config.withDefaults()
	out := r.Out
	if out == nil {
		out = os.Stdout
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	report := &Report{}

	ip := cfg.IP
	if ip == "" {
		port, err := r.resolvePort(cfg)
		if err != nil {
			return report, err
		}
		report.Port = port

		options := []HandshakeOption{
			WithBaudRate(cfg.BaudRate),
			WithReadTimeout(cfg.ReadTimeout),
			WithReadyTimeout(cfg.ReadyTimeout),
			WithOutput(out),
			WithLogger(logger),
		}
		if r.Open != nil {
			options = append(options, WithOpener(r.Open))
		}

		ip, err = NewHandshake(options...).Wait(ctx, port)
		if err != nil {
			return report, err
		}
	}
	report.IP = ip

	client, err := NewClient(
		WithHost(ip),
		WithPort(cfg.HTTPPort),
		WithTimeout(cfg.HTTPTimeout),
	)
	if err != nil {
		return report, fmt.Errorf("failed to create client: %w", err)
	}

	checks := DefaultChecks()
	if cfg.Extended {
		checks = ExtendedChecks()
	}

	fmt.Fprint(out, "\n--- Running HTTP tests ---\n\n")
	logger.Debug("running checks", zap.String("base", client.BaseURL()), zap.Int("checks", len(checks)))

	report.Results = RunChecks(ctx, client, checks, out)
	// Interrupted runs fail even when only non-fatal checks were hit
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if failed := report.Fatal(); failed != nil {
		return report, &CheckError{Result: *failed}
	}

	return report, nil
}

func (r *Runner) resolvePort(cfg Config) (string, error) {
	if cfg.Port != "" {
		return cfg.Port, nil
	}
	port, ok := FindPort(r.Glob, cfg.Patterns...)
	if !ok {
		return "", fmt.Errorf("%w, expected %s", ErrNoDevice, strings.Join(cfg.Patterns, " or "))
	}
	return port, nil
}
