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
package scorecard

import (
	"bufio"
	"strings"
	"testing"
)

func mustParseRules(t *testing.T, text string) []Rule {
	t.Helper()
	rules, err := ParseRules(bufio.NewScanner(strings.NewReader(text)))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	return rules
}

// TestAdmissionLimit exercises spec scenario S5: a single rule
// [op:*, client:*] -> 10 admits exactly 10 concurrent tickets for one
// matched combination, the 11th fails, and releasing one ticket frees
// a slot for the next.
func TestAdmissionLimit(t *testing.T) {
	rules := mustParseRules(t, "op:* client:* 10\n")
	sc := New(rules, 4)

	var tickets []*Ticket
	for i := 0; i < 10; i++ {
		ticket, ok := sc.Track([]string{"op:read", "client:x"})
		if !ok {
			t.Fatalf("expected track #%d to succeed", i+1)
		}
		tickets = append(tickets, ticket)
	}

	if _, ok := sc.Track([]string{"op:read", "client:x"}); ok {
		t.Fatal("expected 11th track to be refused")
	}
	if sc.AbortedCount() != 1 {
		t.Errorf("expected aborted count 1, got %d", sc.AbortedCount())
	}

	sc.Untrack(tickets[0])
	if _, ok := sc.Track([]string{"op:read", "client:x"}); !ok {
		t.Fatal("expected track to succeed after releasing a slot")
	}
}

// TestNoRuleMatchIsNotTracked checks the deliberate divergence from
// unconditional accounting: tags that match no rule at all succeed
// without incrementing anything.
func TestNoRuleMatchIsNotTracked(t *testing.T) {
	rules := mustParseRules(t, "op:write 1\n")
	sc := New(rules, 2)

	ticket, ok := sc.Track([]string{"op:read"})
	if !ok {
		t.Fatal("expected an unmatched request to be admitted")
	}
	if len(ticket.acquisitions) != 0 {
		t.Errorf("expected zero acquisitions for an unmatched request, got %d", len(ticket.acquisitions))
	}
}

// TestFailedTrackRollsBackPartialAcquisitions verifies that when a
// second rule refuses admission, counters incremented by an earlier
// rule in the same track() call are rolled back.
func TestFailedTrackRollsBackPartialAcquisitions(t *testing.T) {
	rules := mustParseRules(t, "tenant:* 100\nop:write 1\n")
	sc := New(rules, 2)

	first, ok := sc.Track([]string{"tenant:a", "op:write"})
	if !ok {
		t.Fatal("expected first track to succeed")
	}

	if _, ok := sc.Track([]string{"tenant:a", "op:write"}); ok {
		t.Fatal("expected second track to be refused by the op:write limit")
	}

	if got := sc.Count(rules[0], []string{"tenant:a", "op:write"}); got != 1 {
		t.Errorf("expected tenant:* counter to remain at 1 after rollback, got %d", got)
	}

	sc.Untrack(first)
	if got := sc.Count(rules[0], []string{"tenant:a", "op:write"}); got != 0 {
		t.Errorf("expected tenant:* counter to be 0 after untrack, got %d", got)
	}
}

func TestParseRulesSkipsBlankAndCommentLines(t *testing.T) {
	rules := mustParseRules(t, "\n# comment\nop:* 5\n")
	if len(rules) != 1 {
		t.Fatalf("expected 1 parsed rule, got %d", len(rules))
	}
	if rules[0].Limit != 5 {
		t.Errorf("expected limit 5, got %d", rules[0].Limit)
	}
}
