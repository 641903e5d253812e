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
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// BuildEnv is the build tool's configuration object. The selector only
// ever replaces whole values.
type BuildEnv interface {
	Replace(key, value string)
}

// EnvMap is a BuildEnv backed by a plain map, serialized as dotenv
type EnvMap map[string]string

// Replace sets key to value
func (e EnvMap) Replace(key, value string) {
	e[key] = value
}

// Marshal renders the map in dotenv format with keys sorted
func (e EnvMap) Marshal() (string, error) {
	return godotenv.Marshal(e)
}

// ReadEnvMap loads a dotenv file. A missing file yields an empty map.
func ReadEnvMap(path string) (EnvMap, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return EnvMap{}, nil
		}
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return EnvMap(values), nil
}

// Write stores the map as a dotenv file
func (e EnvMap) Write(path string) error {
	if err := godotenv.Write(e, path); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	return nil
}

type selectConfig struct {
	glob     Globber
	patterns []string
}

// SelectOption configures SelectPort
type SelectOption func(*selectConfig)

// WithGlobber replaces filepath.Glob during discovery
func WithGlobber(glob Globber) SelectOption {
	return func(c *selectConfig) {
		c.glob = glob
	}
}

// WithPatterns overrides the device patterns scanned
func WithPatterns(patterns ...string) SelectOption {
	return func(c *selectConfig) {
		c.patterns = patterns
	}
}

// SelectPort picks a serial device and writes it into the upload, monitor
// and test slots of env. A missing device is reported on out and leaves env
// untouched; it is never an error.
func SelectPort(env BuildEnv, out io.Writer, options ...SelectOption) (string, bool) {
	cfg := &selectConfig{patterns: DefaultPatterns}
	for _, option := range options {
		option(cfg)
	}
	if out == nil {
		out = os.Stdout
	}

	port, ok := FindPort(cfg.glob, cfg.patterns...)
	if !ok {
		fmt.Fprintf(out, "ERROR: No Arduino serial port found. Expected %s\n", strings.Join(cfg.patterns, " or "))
		return "", false
	}

	fmt.Fprintln(out, "Auto-selected upload/test port:", port)
	ApplyPort(env, port)

	return port, true
}

// ApplyPort writes port into the three build slots
func ApplyPort(env BuildEnv, port string) {
	env.Replace(UploadPortKey, port)
	env.Replace(MonitorPortKey, port)
	// Unit tests read their output from the test port
	env.Replace(TestPortKey, port)
}
