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
	"path/filepath"
	"sort"
)

// Globber lists filesystem entries matching a pattern
type Globber func(pattern string) ([]string, error)

// FindPort returns the first serial device matching the given patterns.
// Patterns are tried in order; within a pattern the lexicographically
// smallest match wins. A nil glob uses filepath.Glob and no patterns means
// DefaultPatterns.
func FindPort(glob Globber, patterns ...string) (string, bool) {
	if glob == nil {
		glob = filepath.Glob
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	for _, pattern := range patterns {
		matches, err := glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[0], true
	}

	return "", false
}

// Candidates returns every matching device, grouped by pattern order and
// sorted within each group. Duplicates across patterns are dropped.
func Candidates(glob Globber, patterns ...string) []string {
	if glob == nil {
		glob = filepath.Glob
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	seen := make(map[string]bool)
	var ports []string
	for _, pattern := range patterns {
		matches, err := glob(pattern)
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			ports = append(ports, m)
		}
	}

	return ports
}
