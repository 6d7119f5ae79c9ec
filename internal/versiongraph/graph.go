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

	"github.com/google/btree"

	"github.com/launix-de/vectorcore/internal/corelog"
	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Store fetches the raw version/lineage files construction needs.
type Store interface {
	FetchVersionFile(ctx context.Context, path string) (*VersionFile, error)
	FetchLineageFile(ctx context.Context, path string) (*LineageFile, error)
}

// SysDB resolves the version-file path for a collection referenced by
// a lineage file but not otherwise known to the caller.
type SysDB interface {
	VersionFilePath(ctx context.Context, collectionID coretypes.CollectionID) (string, error)
}

type versionRecord struct {
	version int64
	alive   bool
}

func (r versionRecord) Less(other btree.Item) bool {
	return r.version < other.(versionRecord).version
}

// Construct builds the full version graph reachable from collectionID
// by fetching its version file, following its lineage file (if any) to
// every forked collection's version file, and asserting the resulting
// graph is a single weakly-connected component. Starting construction
// at any node of a connected fork tree yields the same graph.
func Construct(ctx context.Context, store Store, sysdb SysDB, collectionID coretypes.CollectionID, versionFilePath, lineageFilePath string) (*Graph, error) {
	versionFiles := make(map[coretypes.CollectionID]*VersionFile)

	vf, err := store.FetchVersionFile(ctx, versionFilePath)
	if err != nil {
		return nil, err
	}
	versionFiles[collectionID] = vf

	var deps []VersionDependency
	if lineageFilePath != "" {
		lf, err := store.FetchLineageFile(ctx, lineageFilePath)
		if err != nil {
			return nil, err
		}
		deps = lf.Dependencies

		seen := map[coretypes.CollectionID]bool{collectionID: true}
		for _, dep := range deps {
			for _, other := range [2]coretypes.CollectionID{dep.SourceCollection, dep.TargetCollection} {
				if seen[other] {
					continue
				}
				seen[other] = true
				path, err := sysdb.VersionFilePath(ctx, other)
				if err != nil {
					return nil, err
				}
				otherFile, err := store.FetchVersionFile(ctx, path)
				if err != nil {
					return nil, err
				}
				versionFiles[other] = otherFile
			}
		}
	}

	byCollection := make(map[coretypes.CollectionID]*btree.BTree)
	entryByKey := make(map[nodeKey]VersionEntry)
	ensureSet := func(id coretypes.CollectionID) *btree.BTree {
		if t, ok := byCollection[id]; ok {
			return t
		}
		t := btree.New(8)
		byCollection[id] = t
		return t
	}

	for collectionID, file := range versionFiles {
		set := ensureSet(collectionID)
		for _, v := range file.Versions {
			set.ReplaceOrInsert(versionRecord{version: v.Version, alive: true})
			entryByKey[nodeKey{collectionID, v.Version}] = v
		}
	}

	for _, dep := range deps {
		sourceSet := ensureSet(dep.SourceCollection)
		if sourceSet.Get(versionRecord{version: dep.SourceVersion}) == nil {
			sourceSet.ReplaceOrInsert(versionRecord{version: dep.SourceVersion, alive: false})
		}
		targetSet := ensureSet(dep.TargetCollection)
		if targetSet.Get(versionRecord{version: 0}) == nil {
			targetSet.ReplaceOrInsert(versionRecord{version: 0, alive: false})
		}
	}

	g := newGraph()
	nodeIndex := make(map[nodeKey]int)
	for collectionID, set := range byCollection {
		prev := -1
		set.Ascend(func(item btree.Item) bool {
			rec := item.(versionRecord)
			key := nodeKey{collectionID, rec.version}
			status := StatusDeleted
			createdAt := entryByKey[key].CreatedAt
			if rec.alive {
				status = StatusAlive
			}
			idx := g.addNode(Node{CollectionID: collectionID, Version: rec.version, Status: status, CreatedAt: createdAt})
			nodeIndex[key] = idx
			if prev >= 0 {
				g.addEdge(prev, idx)
			}
			prev = idx
			return true
		})
	}

	for _, dep := range deps {
		sourceIdx, ok := nodeIndex[nodeKey{dep.SourceCollection, dep.SourceVersion}]
		if !ok {
			return nil, coretypes.New(coretypes.KindInternal, "versiongraph.Construct", "expected source node not found while constructing graph")
		}
		targetIdx, ok := nodeIndex[nodeKey{dep.TargetCollection, 0}]
		if !ok {
			return nil, coretypes.New(coretypes.KindInternal, "versiongraph.Construct", "expected target node not found while constructing graph")
		}
		g.addEdge(sourceIdx, targetIdx)
	}

	if components := g.weaklyConnectedComponents(); components != 1 {
		corelog.Errorf("versiongraph: graph rooted at %s splits into %d components; refusing to GC against it", collectionID, components)
		return nil, coretypes.New(coretypes.KindInternal, "versiongraph.Construct", "version graph is not a single connected component")
	}

	return g, nil
}
