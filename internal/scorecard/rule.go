/*
Copyright (C) 2026  vectorcore contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
// Package scorecard is a label-pattern concurrency limiter: callers
// present a set of string tags, and a Scorecard either hands back a
// Ticket or refuses admission, per-bucket counters tracking how many
// live tickets currently match each rule's tag combination.
package scorecard

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Rule is (patterns, limit): every pattern must match some tag on the
// request for the rule to apply, and a request is admitted only while
// the matched-tag combination's live ticket count is strictly below
// limit.
type Rule struct {
	Patterns []glob.Glob
	raw      []string
	Limit    int
}

// ParseRules parses one rule per line, "PATTERN... LIMIT", blank
// lines and lines starting with '#' are skipped.
func ParseRules(r *bufio.Scanner) ([]Rule, error) {
	var rules []Rule
	lineNo := 0
	for r.Scan() {
		lineNo++
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("scorecard: line %d: expected PATTERN... LIMIT, got %q", lineNo, line)
		}
		limit, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return nil, fmt.Errorf("scorecard: line %d: invalid limit %q: %w", lineNo, fields[len(fields)-1], err)
		}
		patternStrs := fields[:len(fields)-1]
		patterns := make([]glob.Glob, 0, len(patternStrs))
		for _, p := range patternStrs {
			g, err := glob.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("scorecard: line %d: invalid pattern %q: %w", lineNo, p, err)
			}
			patterns = append(patterns, g)
		}
		rules = append(rules, Rule{Patterns: patterns, raw: patternStrs, Limit: limit})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

// ParseRulesFile opens path and parses its rule lines.
func ParseRulesFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRules(bufio.NewScanner(f))
}
