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
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/davidroman0O/robotest"
)

var (
	// Define styles for run banners
	passStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10")) // Green

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9")) // Red

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))
)

func printSuccess(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, passStyle.Render("ALL HTTP TESTS PASSED ✅"))
}

func printFailure(out io.Writer, err error) {
	printFailureBanner(out, "HTTP TEST FAILED ❌", err)
}

func printFailureBanner(out io.Writer, banner string, err error) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, failStyle.Render(banner))
	fmt.Fprintln(out, "Error:", err)
}

// renderSummary prints the per-check results as a markdown table
func renderSummary(out io.Writer, report *robotest.Report) {
	var md strings.Builder
	md.WriteString("# Smoke Test Summary\n\n")
	if report.Port != "" {
		md.WriteString(fmt.Sprintf("Serial port `%s`, ", report.Port))
	}
	md.WriteString(fmt.Sprintf("device `%s`\n\n", report.IP))
	md.WriteString("| Check | Request | Status | Result | Time |\n")
	md.WriteString("|-------|---------|--------|--------|------|\n")

	for _, r := range report.Results {
		status := "-"
		if r.Status != 0 {
			status = fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status))
		}
		md.WriteString(fmt.Sprintf("| **%s** | `GET %s` | %s | %s | %s |\n",
			r.Check.Name, r.Check.Target(), status, resultText(r), r.Elapsed.Round(time.Millisecond)))
	}

	// Set up the renderer with the terminal's theme
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fallback to plain markdown if renderer fails
		fmt.Fprintln(out, md.String())
		return
	}

	rendered, err := renderer.Render(md.String())
	if err != nil {
		fmt.Fprintln(out, md.String())
		return
	}

	fmt.Fprintln(out, headerStyle.Render("Results"))
	fmt.Fprint(out, rendered)
}

func resultText(r robotest.Result) string {
	switch {
	case r.Passed:
		return "pass"
	case r.Check.Fatal:
		return "FAIL: " + r.Message
	default:
		return "warn: " + r.Message
	}
}
