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
package versiongraph

import (
	"testing"
	"time"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

func buildLinearGraph(t *testing.T, collectionID coretypes.CollectionID, createdAt []time.Time) *Graph {
	t.Helper()
	g := newGraph()
	prev := -1
	for i, at := range createdAt {
		idx := g.addNode(Node{CollectionID: collectionID, Version: int64(i), Status: StatusAlive, CreatedAt: at})
		if prev >= 0 {
			g.addEdge(prev, idx)
		}
		prev = idx
	}
	return g
}

func TestComputeVersionsToDeleteKeepsRecentAndPostCutoff(t *testing.T) {
	now := time.Now()
	collectionID := coretypes.CollectionID(coretypes.NewUUID())
	// v0..v4 created at 48h,24h,12h,1h,0h ago; cutoff is 6h ago.
	g := buildLinearGraph(t, collectionID, []time.Time{
		now.Add(-48 * time.Hour),
		now.Add(-24 * time.Hour),
		now.Add(-12 * time.Hour),
		now.Add(-1 * time.Hour),
		now,
	})

	dbNames := map[coretypes.CollectionID]string{collectionID: "test_db"}
	result, err := ComputeVersionsToDelete(g, nil, now.Add(-6*time.Hour), 1, dbNames)
	if err != nil {
		t.Fatalf("ComputeVersionsToDelete: %v", err)
	}
	versions := result[collectionID].Versions
	want := map[int64]Action{0: ActionDelete, 1: ActionDelete, 2: ActionDelete, 3: ActionKeep, 4: ActionKeep}
	for v, action := range want {
		if versions[v] != action {
			t.Errorf("version %d: got %v, want %v", v, versions[v], action)
		}
	}
}

func TestComputeVersionsToDeleteSoftDeletedCollectionDeletesEverything(t *testing.T) {
	now := time.Now()
	collectionID := coretypes.CollectionID(coretypes.NewUUID())
	g := buildLinearGraph(t, collectionID, []time.Time{now.Add(-48 * time.Hour), now})

	dbNames := map[coretypes.CollectionID]string{collectionID: "test_db"}
	soft := map[coretypes.CollectionID]bool{collectionID: true}
	result, err := ComputeVersionsToDelete(g, soft, now.Add(-6*time.Hour), 1, dbNames)
	if err != nil {
		t.Fatalf("ComputeVersionsToDelete: %v", err)
	}
	versions := result[collectionID].Versions
	if versions[0] != ActionDelete || versions[1] != ActionDelete {
		t.Fatalf("expected every version deleted for a soft-deleted collection, got %+v", versions)
	}
}

func TestComputeVersionsToDeleteFiltersCollectionsMissingFromDatabaseNames(t *testing.T) {
	now := time.Now()
	withDB := coretypes.CollectionID(coretypes.NewUUID())
	withoutDB := coretypes.CollectionID(coretypes.NewUUID())

	g := newGraph()
	a0 := g.addNode(Node{CollectionID: withDB, Version: 0, Status: StatusAlive, CreatedAt: now.Add(-48 * time.Hour)})
	a1 := g.addNode(Node{CollectionID: withDB, Version: 1, Status: StatusAlive, CreatedAt: now})
	g.addEdge(a0, a1)
	b0 := g.addNode(Node{CollectionID: withoutDB, Version: 0, Status: StatusAlive, CreatedAt: now.Add(-48 * time.Hour)})
	b1 := g.addNode(Node{CollectionID: withoutDB, Version: 1, Status: StatusAlive, CreatedAt: now})
	g.addEdge(b0, b1)

	dbNames := map[coretypes.CollectionID]string{withDB: "test_db"}
	result, err := ComputeVersionsToDelete(g, nil, now.Add(-6*time.Hour), 1, dbNames)
	if err != nil {
		t.Fatalf("ComputeVersionsToDelete: %v", err)
	}
	if _, ok := result[withDB]; !ok {
		t.Errorf("expected %v in output", withDB)
	}
	if _, ok := result[withoutDB]; ok {
		t.Errorf("expected %v filtered out of output", withoutDB)
	}
}
