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
	"runtime"
	"sync"
	"sync/atomic"
)

// bucket holds one mutex-guarded counter map. Splitting the keyspace
// across t*t buckets keeps lock contention local instead of taking
// one global lock.
type bucket struct {
	mu       sync.Mutex
	counters map[tagHash128]int
}

// Scorecard is a traffic admission controller: track()/untrack() pairs
// bracket a unit of work; admission is refused once any applicable
// rule's matched-combination counter has already reached its limit.
type Scorecard struct {
	buckets []bucket
	rules   atomic.Pointer[[]Rule]

	abortedCount atomic.Int64
}

// New builds a Scorecard with t*t buckets. threadEstimate of 0 uses
// runtime.NumCPU().
func New(rules []Rule, threadEstimate int) *Scorecard {
	if threadEstimate <= 0 {
		threadEstimate = runtime.NumCPU()
	}
	n := threadEstimate * threadEstimate
	if n < 1 {
		n = 1
	}
	sc := &Scorecard{buckets: make([]bucket, n)}
	for i := range sc.buckets {
		sc.buckets[i].counters = make(map[tagHash128]int)
	}
	sc.rules.Store(&rules)
	return sc
}

// SetRules atomically swaps the active rule set. In-flight tickets
// keep referencing the bucket/key they were issued against, so a
// reload never orphans an outstanding untrack().
func (sc *Scorecard) SetRules(rules []Rule) {
	sc.rules.Store(&rules)
}

// acquisition is one (bucket index, key) pair a ticket incremented.
type acquisition struct {
	bucketIdx int
	key       tagHash128
}

// Ticket is returned by a successful track() and must be passed to
// untrack() exactly once to release its counters.
type Ticket struct {
	acquisitions []acquisition
}

// AbortedCount reports how many track() calls have failed admission.
func (sc *Scorecard) AbortedCount() int64 { return sc.abortedCount.Load() }

// Track attempts to admit tags. Rules whose patterns don't all match
// some tag are simply not evaluated; a request matching no rule at
// all is not tracked, which is this scorecard's deliberate divergence
// from unconditional accounting: callers who want every request
// counted must add a catch-all rule.
func (sc *Scorecard) Track(tags []string) (*Ticket, bool) {
	rules := *sc.rules.Load()
	var acquisitions []acquisition

	for _, rule := range rules {
		combos, applies := combinationsFor(rule, tags)
		if !applies {
			continue
		}
		for _, combo := range combos {
			idx := combo.bucketIndex(len(sc.buckets))
			b := &sc.buckets[idx]
			b.mu.Lock()
			if b.counters[combo] >= rule.Limit {
				b.mu.Unlock()
				sc.rollback(acquisitions)
				sc.abortedCount.Add(1)
				return nil, false
			}
			b.counters[combo]++
			b.mu.Unlock()
			acquisitions = append(acquisitions, acquisition{bucketIdx: idx, key: combo})
		}
	}

	return &Ticket{acquisitions: acquisitions}, true
}

// Untrack releases every counter t's Track incremented.
func (sc *Scorecard) Untrack(t *Ticket) {
	if t == nil {
		return
	}
	sc.release(t.acquisitions)
}

func (sc *Scorecard) rollback(acquisitions []acquisition) {
	sc.release(acquisitions)
}

func (sc *Scorecard) release(acquisitions []acquisition) {
	for _, a := range acquisitions {
		b := &sc.buckets[a.bucketIdx]
		b.mu.Lock()
		if c := b.counters[a.key]; c <= 1 {
			delete(b.counters, a.key)
		} else {
			b.counters[a.key] = c - 1
		}
		b.mu.Unlock()
	}
}

// Count returns the live counter value for tags under rule, for tests
// and for the "per-bucket counters equal the number of live tickets"
// invariant.
func (sc *Scorecard) Count(rule Rule, tags []string) int {
	combos, applies := combinationsFor(rule, tags)
	if !applies || len(combos) == 0 {
		return 0
	}
	combo := combos[0]
	b := &sc.buckets[combo.bucketIndex(len(sc.buckets))]
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters[combo]
}

// combinationsFor enumerates the Cartesian product of per-pattern tag
// matches and XORs each combination into a single counter key,
// de-duplicating identical keys within the rule.
func combinationsFor(rule Rule, tags []string) ([]tagHash128, bool) {
	matchSets := make([][]tagHash128, len(rule.Patterns))
	for i, pat := range rule.Patterns {
		var matched []tagHash128
		for _, tag := range tags {
			if pat.Match(tag) {
				matched = append(matched, hashTag(tag))
			}
		}
		if len(matched) == 0 {
			return nil, false
		}
		matchSets[i] = matched
	}

	seen := make(map[tagHash128]bool)
	var combos []tagHash128
	var recurse func(i int, acc tagHash128)
	recurse = func(i int, acc tagHash128) {
		if i == len(matchSets) {
			if !seen[acc] {
				seen[acc] = true
				combos = append(combos, acc)
			}
			return
		}
		for _, h := range matchSets[i] {
			recurse(i+1, acc.xor(h))
		}
	}
	recurse(0, tagHash128{})

	return combos, true
}
