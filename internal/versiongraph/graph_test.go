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
	"context"
	"testing"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

type fakeStore struct {
	versionFiles map[string]*VersionFile
	lineageFiles map[string]*LineageFile
}

func (f *fakeStore) FetchVersionFile(ctx context.Context, path string) (*VersionFile, error) {
	return f.versionFiles[path], nil
}
func (f *fakeStore) FetchLineageFile(ctx context.Context, path string) (*LineageFile, error) {
	return f.lineageFiles[path], nil
}

type fakeSysDB struct {
	paths map[coretypes.CollectionID]string
}

func (f *fakeSysDB) VersionFilePath(ctx context.Context, id coretypes.CollectionID) (string, error) {
	return f.paths[id], nil
}

func TestConstructSimpleGraph(t *testing.T) {
	collectionID := coretypes.CollectionID(coretypes.NewUUID())
	store := &fakeStore{versionFiles: map[string]*VersionFile{
		"v": {CollectionID: collectionID, Versions: []VersionEntry{{Version: 1}, {Version: 2}}},
	}}

	g, err := Construct(context.Background(), store, &fakeSysDB{}, collectionID, "v", "")
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if g.NodeCount() != 2 {
		t.Fatalf("expected 2 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.EdgeCount())
	}
}

// TestConstructForkTreeIsOrderIndependent builds the fork tree
//
//	A v0 -> A v1 -> B v0(forked from A v1) -> B v1 -> D v0(forked from B v1)
//	                A v1 -> C v0 (forked from A v1)
//
// and checks that starting construction from any of the four
// collections yields the same node/edge counts.
func TestConstructForkTreeIsOrderIndependent(t *testing.T) {
	a := coretypes.CollectionID(coretypes.NewUUID())
	b := coretypes.CollectionID(coretypes.NewUUID())
	c := coretypes.CollectionID(coretypes.NewUUID())
	d := coretypes.CollectionID(coretypes.NewUUID())

	versionFiles := map[string]*VersionFile{
		"a": {CollectionID: a, Versions: []VersionEntry{{Version: 0}, {Version: 1}}},
		"b": {CollectionID: b, Versions: []VersionEntry{{Version: 0}, {Version: 1}}},
		"c": {CollectionID: c, Versions: []VersionEntry{{Version: 0}}},
		"d": {CollectionID: d, Versions: []VersionEntry{{Version: 0}}},
	}
	lineage := &LineageFile{Dependencies: []VersionDependency{
		{SourceCollection: a, SourceVersion: 1, TargetCollection: b},
		{SourceCollection: b, SourceVersion: 1, TargetCollection: d},
		{SourceCollection: a, SourceVersion: 1, TargetCollection: c},
	}}
	store := &fakeStore{versionFiles: versionFiles, lineageFiles: map[string]*LineageFile{
		"a-lineage": lineage, "b-lineage": lineage, "c-lineage": lineage, "d-lineage": lineage,
	}}
	sysdb := &fakeSysDB{paths: map[coretypes.CollectionID]string{a: "a", b: "b", c: "c", d: "d"}}

	for _, start := range []struct {
		id   coretypes.CollectionID
		path string
	}{{a, "a"}, {b, "b"}, {c, "c"}, {d, "d"}} {
		g, err := Construct(context.Background(), store, sysdb, start.id, start.path, start.path+"-lineage")
		if err != nil {
			t.Fatalf("Construct starting at %v: %v", start.id, err)
		}
		if g.NodeCount() != 6 {
			t.Fatalf("starting at %v: expected 6 nodes, got %d", start.id, g.NodeCount())
		}
		if g.EdgeCount() != 5 {
			t.Fatalf("starting at %v: expected 5 edges, got %d", start.id, g.EdgeCount())
		}
	}
}

func TestConstructDeletedDependencyBecomesDeletedNode(t *testing.T) {
	a := coretypes.CollectionID(coretypes.NewUUID())
	b := coretypes.CollectionID(coretypes.NewUUID())

	store := &fakeStore{
		versionFiles: map[string]*VersionFile{
			"a": {CollectionID: a, Versions: []VersionEntry{{Version: 0}}},
			// b's own version file has been pruned; its v0 only exists as
			// a lineage reference, so it should surface as a Deleted node.
		},
		lineageFiles: map[string]*LineageFile{
			"a-lineage": {Dependencies: []VersionDependency{{SourceCollection: a, SourceVersion: 0, TargetCollection: b}}},
		},
	}
	sysdb := &fakeSysDB{paths: map[coretypes.CollectionID]string{b: "b-missing"}}
	store.versionFiles["b-missing"] = &VersionFile{CollectionID: b}

	g, err := Construct(context.Background(), store, sysdb, a, "a", "a-lineage")
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if g.NodeCount() != 2 {
		t.Fatalf("expected 2 nodes, got %d", g.NodeCount())
	}
	var foundDeleted bool
	for _, n := range g.Nodes() {
		if n.CollectionID == b && n.Version == 0 && n.Status == StatusDeleted {
			foundDeleted = true
		}
	}
	if !foundDeleted {
		t.Fatalf("expected b@0 to surface as a Deleted node")
	}
}
