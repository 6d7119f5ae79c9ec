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
	"time"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Action is the disposition GC assigns to one collection version.
type Action int

const (
	ActionKeep Action = iota
	ActionDelete
)

// CollectionVersions is one collection's per-version GC decision,
// along with the database name it was resolved against (callers use
// this to scope concurrent GC runs to a single database).
type CollectionVersions struct {
	DatabaseName string
	Versions     map[int64]Action
}

type liveVersion struct {
	version   int64
	createdAt time.Time
}

// ComputeVersionsToDelete walks the graph in topological order,
// collects each collection's live (Alive-status) versions, and marks
// versions for deletion per collection: the most recent
// minVersionsToKeep are always kept; among the rest, a version is
// deleted only if it was created before cutoffTime (a version created
// after cutoff is never deleted, regardless of count). Soft-deleted
// collections have every version marked for deletion. Collections
// absent from databaseNames are dropped from the output entirely.
func ComputeVersionsToDelete(g *Graph, softDeleted map[coretypes.CollectionID]bool, cutoffTime time.Time, minVersionsToKeep int, databaseNames map[coretypes.CollectionID]string) (map[coretypes.CollectionID]CollectionVersions, error) {
	order := g.topologicalOrder()
	if len(order) != len(g.nodes) {
		return nil, coretypes.New(coretypes.KindInternal, "versiongraph.ComputeVersionsToDelete", "version graph has a cycle")
	}

	live := make(map[coretypes.CollectionID][]liveVersion)
	for _, idx := range order {
		n := g.nodes[idx]
		if n.Status != StatusAlive {
			continue
		}
		live[n.CollectionID] = append(live[n.CollectionID], liveVersion{version: n.Version, createdAt: n.CreatedAt})
	}

	out := make(map[coretypes.CollectionID]map[int64]Action, len(live))
	for collectionID, versions := range live {
		actions := make(map[int64]Action, len(versions))
		for _, v := range versions {
			actions[v.version] = ActionKeep
		}

		if softDeleted[collectionID] {
			for v := range actions {
				actions[v] = ActionDelete
			}
			out[collectionID] = actions
			continue
		}

		eligible := versions
		if len(eligible) > minVersionsToKeep {
			eligible = eligible[:len(eligible)-minVersionsToKeep]
		} else {
			eligible = nil
		}
		for _, v := range eligible {
			if v.createdAt.Before(cutoffTime) {
				actions[v.version] = ActionDelete
			}
		}
		out[collectionID] = actions
	}

	result := make(map[coretypes.CollectionID]CollectionVersions, len(out))
	for collectionID, actions := range out {
		dbName, ok := databaseNames[collectionID]
		if !ok {
			continue
		}
		result[collectionID] = CollectionVersions{DatabaseName: dbName, Versions: actions}
	}
	return result, nil
}
