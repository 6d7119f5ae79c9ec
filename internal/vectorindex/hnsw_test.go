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
package vectorindex

import (
	"context"
	"testing"
)

func gridVector(x, y float32) []float32 { return []float32{x, y} }

func TestHNSWQueryReturnsNearestNeighbor(t *testing.T) {
	cfg := DefaultHNSWConfig()
	cfg.MaxElements = 100
	idx := NewHNSW(cfg)

	points := map[uint64][]float32{
		1: gridVector(0, 0),
		2: gridVector(10, 10),
		3: gridVector(10.5, 10.5),
		4: gridVector(-5, -5),
	}
	for id, v := range points {
		if err := idx.Add(id, v); err != nil {
			t.Fatalf("Add(%d): %v", id, err)
		}
	}

	results, err := idx.Query(context.Background(), gridVector(10.2, 10.2), 1, nil, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || (results[0].ID != 2 && results[0].ID != 3) {
		t.Fatalf("expected nearest neighbor to be 2 or 3, got %+v", results)
	}
}

func TestHNSWDeleteExcludesFromQuery(t *testing.T) {
	idx := NewHNSW(DefaultHNSWConfig())
	for id, v := range map[uint64][]float32{1: gridVector(0, 0), 2: gridVector(1, 1)} {
		if err := idx.Add(id, v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := idx.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := idx.Query(context.Background(), gridVector(0, 0), 2, nil, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, r := range results {
		if r.ID == 1 {
			t.Fatalf("deleted id 1 should not appear in results: %+v", results)
		}
	}
}

func TestHNSWQueryRespectsAllowDisallow(t *testing.T) {
	idx := NewHNSW(DefaultHNSWConfig())
	for id, v := range map[uint64][]float32{1: gridVector(0, 0), 2: gridVector(0.1, 0.1), 3: gridVector(0.2, 0.2)} {
		if err := idx.Add(id, v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	results, err := idx.Query(context.Background(), gridVector(0, 0), 3, []uint64{2, 3}, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, r := range results {
		if r.ID == 1 {
			t.Fatalf("id 1 excluded from allow-list should not appear: %+v", results)
		}
	}

	results, err = idx.Query(context.Background(), gridVector(0, 0), 3, nil, []uint64{1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, r := range results {
		if r.ID == 1 {
			t.Fatalf("disallowed id 1 should not appear: %+v", results)
		}
	}
}

func TestHNSWSaveLoadRoundTrip(t *testing.T) {
	idx := NewHNSW(DefaultHNSWConfig())
	for id, v := range map[uint64][]float32{1: gridVector(0, 0), 2: gridVector(5, 5), 3: gridVector(-3, 2)} {
		if err := idx.Add(id, v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	buf, err := idx.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewHNSW(DefaultHNSWConfig())
	if err := loaded.Load(buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for id, want := range map[uint64][]float32{1: gridVector(0, 0), 2: gridVector(5, 5), 3: gridVector(-3, 2)} {
		got, ok := loaded.Get(id)
		if !ok {
			t.Fatalf("expected id %d to round-trip", id)
		}
		if got[0] != want[0] || got[1] != want[1] {
			t.Errorf("id %d: want %v, got %v", id, want, got)
		}
	}
}

func TestHNSWAddRejectsDimensionMismatch(t *testing.T) {
	idx := NewHNSW(DefaultHNSWConfig())
	if err := idx.Add(1, gridVector(0, 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(2, []float32{1, 2, 3}); err == nil {
		t.Fatal("expected dimension mismatch to be rejected")
	}
}

func TestHNSWResizeRejectsBelowOccupancy(t *testing.T) {
	idx := NewHNSW(DefaultHNSWConfig())
	if err := idx.Add(1, gridVector(0, 0)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Resize(0); err == nil {
		t.Fatal("expected resize below occupancy to fail")
	}
}
