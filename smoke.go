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
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Check describes one endpoint assertion
type Check struct {
	Name  string
	Path  Endpoint
	Query url.Values
	// Want must appear in the response body
	Want string
	// Fatal checks abort the run when they fail
	Fatal bool

	StatusMessage string
	BodyMessage   string
}

// Target renders the request line shown on the console
func (c Check) Target() string {
	if len(c.Query) == 0 {
		return string(c.Path)
	}
	keys := make([]string, 0, len(c.Query))
	for key := range c.Query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, v := range c.Query[key] {
			parts = append(parts, key+"="+v)
		}
	}
	return string(c.Path) + "?" + strings.Join(parts, "&")
}

// RootCheck expects the controller page
func RootCheck() Check {
	return Check{
		Name:          "Root",
		Path:          EndpointRoot,
		Want:          "Robot Controller",
		Fatal:         true,
		StatusMessage: "Root endpoint failed",
		BodyMessage:   "Unexpected root HTML",
	}
}

// ControlCheck sends a message through /control
func ControlCheck(msg string) Check {
	return Check{
		Name:          "Control",
		Path:          EndpointControl,
		Query:         url.Values{"msg": []string{msg}},
		Want:          "OK",
		Fatal:         true,
		StatusMessage: "Control endpoint failed",
		BodyMessage:   "Control endpoint did not return OK",
	}
}

// HealthCheck probes /health. Older firmware lacks it, so it is not fatal.
func HealthCheck() Check {
	return Check{
		Name:          "Health",
		Path:          EndpointHealth,
		Want:          "OK",
		StatusMessage: "Health endpoint failed",
		BodyMessage:   "Health endpoint did not return OK",
	}
}

// DriveStopCheck commands both motors to zero throttle
func DriveStopCheck() Check {
	return Check{
		Name:          "Drive",
		Path:          EndpointDrive,
		Query:         url.Values{"x": []string{"0"}, "y": []string{"0"}, "t": []string{"0"}},
		Want:          "OK",
		StatusMessage: "Drive endpoint failed",
		BodyMessage:   "Drive endpoint did not return OK",
	}
}

// DefaultChecks returns Root, Control and Health in run order
func DefaultChecks() []Check {
	return []Check{RootCheck(), ControlCheck("hello world"), HealthCheck()}
}

// ExtendedChecks adds a motor stop command after the default checks
func ExtendedChecks() []Check {
	return append(DefaultChecks(), DriveStopCheck())
}

// Result is the outcome of a single check
type Result struct {
	Check   Check
	Passed  bool
	Status  int
	Message string
	Elapsed time.Duration
}

// Report collects check results in run order
type Report struct {
	IP      string
	Port    string
	Results []Result
}

// Fatal returns the first failed fatal result, if any
func (r *Report) Fatal() *Result {
	for i := range r.Results {
		if !r.Results[i].Passed && r.Results[i].Check.Fatal {
			return &r.Results[i]
		}
	}
	return nil
}

// Passed reports whether no fatal check failed
func (r *Report) Passed() bool {
	return r.Fatal() == nil
}

// Run performs the check and classifies the outcome
func (c Check) Run(ctx context.Context, client *Client) Result {
	start := time.Now()
	result := Result{Check: c}

	resp, err := client.Get(ctx, string(c.Path), c.Query)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	result.Status = resp.StatusCode
	switch {
	case resp.StatusCode != http.StatusOK:
		result.Message = fmt.Sprintf("%s (status %d)", c.StatusMessage, resp.StatusCode)
	case !strings.Contains(resp.Body, c.Want):
		result.Message = c.BodyMessage
	default:
		result.Passed = true
	}

	return result
}

// RunChecks runs checks in order and stops after the first fatal failure.
// Non-fatal failures are reported on out and the run continues.
func RunChecks(ctx context.Context, client *Client, checks []Check, out io.Writer) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		fmt.Fprintf(out, "Testing GET %s\n", check.Target())

		result := check.Run(ctx, client)
		results = append(results, result)

		if result.Passed {
			fmt.Fprintf(out, "✓ %s endpoint OK\n", check.Name)
			continue
		}
		if check.Fatal {
			fmt.Fprintf(out, "✗ %s\n", result.Message)
			break
		}
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(out, "%s endpoint skipped or failed: %s\n", check.Name, result.Message)
	}
	return results
}
