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
// Package cachemgr provides the weight-budgeted Manager used by the
// vector-index provider cache and the count-bounded BoundedMap used by
// the blockstore's FTS candidate cache. In Manager a single goroutine
// serializes every
// mutation so the "at most one resident item per key" fairness
// invariant never races with an eviction sweep.
package cachemgr

import (
	"sort"
	"time"
)

// Kind distinguishes what is resident for a given key so the manager
// can report per-kind occupancy for the provider cache's
// (collectionID, Kind) keying.
type Kind int

type residentItem struct {
	key           any
	kind          Kind
	size          int64
	effectiveTime time.Time
	cleanup       func(key any)
	getLastUsed   func(key any) time.Time
}

// Manager keeps a byte budget over arbitrary keyed
// handles (in this module, the vector-index provider's index handles). Every
// mutation is funneled through a single goroutine via opChan,
// so Add/Remove/cleanup never interleave.
type Manager struct {
	budget  int64
	current int64

	items    []residentItem
	indexMap map[any]int

	opChan chan managerOp
}

type managerOp struct {
	add  *residentItem
	del  any
	done chan struct{}
}

// NewManager creates a Manager with the given byte budget.
func NewManager(budget int64) *Manager {
	m := &Manager{
		budget:   budget,
		indexMap: make(map[any]int),
		opChan:   make(chan managerOp, 1024),
	}
	go m.run()
	return m
}

// AddItem registers key as resident, evicting older items if the
// budget is exceeded after insertion.
func (m *Manager) AddItem(key any, kind Kind, size int64, cleanup func(key any), getLastUsed func(key any) time.Time) {
	item := &residentItem{
		key:           key,
		kind:          kind,
		size:          size,
		cleanup:       cleanup,
		getLastUsed:   getLastUsed,
		effectiveTime: time.Now(),
	}
	done := make(chan struct{})
	m.opChan <- managerOp{add: item, done: done}
	<-done
}

// Remove evicts key immediately, regardless of budget pressure.
func (m *Manager) Remove(key any) {
	done := make(chan struct{})
	m.opChan <- managerOp{del: key, done: done}
	<-done
}

func (m *Manager) run() {
	for op := range m.opChan {
		if op.add != nil {
			m.add(op.add)
		} else if op.del != nil {
			m.remove(op.del)
		}
		if op.done != nil {
			close(op.done)
		}
	}
}

func (m *Manager) add(item *residentItem) {
	if idx, ok := m.indexMap[item.key]; ok {
		old := m.items[idx]
		old.cleanup(old.key)
		m.current -= old.size
		m.items[idx] = *item
	} else {
		idx := len(m.items)
		m.items = append(m.items, *item)
		m.indexMap[item.key] = idx
	}
	m.current += item.size

	if m.current > m.budget {
		m.evict()
	}
}

func (m *Manager) remove(key any) {
	idx, ok := m.indexMap[key]
	if !ok {
		return
	}
	item := m.items[idx]
	item.cleanup(item.key)
	m.current -= item.size

	lastIdx := len(m.items) - 1
	if idx != lastIdx {
		m.items[idx] = m.items[lastIdx]
		m.indexMap[m.items[idx].key] = idx
	}
	m.items = m.items[:lastIdx]
	delete(m.indexMap, key)
}

// evict frees memory down to 75% of budget, oldest-access-time first.
func (m *Manager) evict() {
	if m.current <= m.budget {
		return
	}
	target := m.budget * 75 / 100

	for i := range m.items {
		m.items[i].effectiveTime = m.items[i].getLastUsed(m.items[i].key)
	}
	sort.Slice(m.items, func(i, j int) bool {
		return m.items[i].effectiveTime.Before(m.items[j].effectiveTime)
	})

	i := 0
	for m.current > target && i < len(m.items) {
		item := m.items[i]
		item.cleanup(item.key)
		m.current -= item.size
		delete(m.indexMap, item.key)
		i++
	}

	m.items = m.items[i:]
	for idx, item := range m.items {
		m.indexMap[item.key] = idx
	}
}

// Occupied reports current resident bytes, for metrics and tests.
func (m *Manager) Occupied() int64 {
	done := make(chan struct{})
	var out int64
	m.opChan <- managerOp{add: nil, del: nil, done: done}
	<-done
	// current is only ever mutated inside run(), so reading it right
	// after a round trip through opChan is safe without a lock.
	out = m.current
	return out
}
