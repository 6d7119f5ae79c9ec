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
package cachemgr

import (
	"sync"
	"testing"
	"time"
)

func TestManagerEvictsOldestUnderBudgetPressure(t *testing.T) {
	var mu sync.Mutex
	evicted := make(map[string]bool)
	lastUsed := map[string]time.Time{
		"a": time.Now().Add(-3 * time.Hour),
		"b": time.Now().Add(-2 * time.Hour),
		"c": time.Now().Add(-1 * time.Hour),
	}

	cleanup := func(key any) {
		mu.Lock()
		evicted[key.(string)] = true
		mu.Unlock()
	}
	getLastUsed := func(key any) time.Time { return lastUsed[key.(string)] }

	m := NewManager(100)
	m.AddItem("a", 0, 40, cleanup, getLastUsed)
	m.AddItem("b", 0, 40, cleanup, getLastUsed)
	m.AddItem("c", 0, 40, cleanup, getLastUsed)

	// total resident is 120 > budget 100, so eviction must have run
	// down to 75 (oldest first: "a").
	mu.Lock()
	defer mu.Unlock()
	if !evicted["a"] {
		t.Errorf("expected oldest item %q to be evicted under budget pressure", "a")
	}
	if evicted["c"] {
		t.Error("newest item should not have been evicted")
	}
}

func TestManagerRemoveIsImmediate(t *testing.T) {
	removed := make(chan struct{}, 1)
	cleanup := func(key any) { removed <- struct{}{} }
	getLastUsed := func(key any) time.Time { return time.Now() }

	m := NewManager(1000)
	m.AddItem("x", 0, 10, cleanup, getLastUsed)
	m.Remove("x")

	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("expected cleanup to run synchronously with Remove")
	}

	if got := m.Occupied(); got != 0 {
		t.Errorf("expected 0 occupied bytes after removal, got %d", got)
	}
}

func TestManagerReplacesExistingKey(t *testing.T) {
	var mu sync.Mutex
	cleanupCount := 0
	cleanup := func(key any) {
		mu.Lock()
		cleanupCount++
		mu.Unlock()
	}
	getLastUsed := func(key any) time.Time { return time.Now() }

	m := NewManager(1000)
	m.AddItem("k", 0, 10, cleanup, getLastUsed)
	m.AddItem("k", 0, 20, cleanup, getLastUsed)

	if got := m.Occupied(); got != 20 {
		t.Errorf("expected replaced item's size 20, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if cleanupCount != 1 {
		t.Errorf("expected exactly one cleanup call for the replaced item, got %d", cleanupCount)
	}
}

func TestBoundedMapEvictsLeastRecentlyUsed(t *testing.T) {
	m, err := NewBoundedMap[string, int](2)
	if err != nil {
		t.Fatalf("NewBoundedMap: %v", err)
	}
	m.Add("a", 1)
	m.Add("b", 2)
	m.Add("c", 3) // evicts "a"

	if _, ok := m.Get("a"); ok {
		t.Error("expected \"a\" to have been evicted")
	}
	if v, ok := m.Get("b"); !ok || v != 2 {
		t.Errorf("expected \"b\"=2 to still be present, got %v, %v", v, ok)
	}
	if m.Len() != 2 {
		t.Errorf("expected length 2, got %d", m.Len())
	}
}
