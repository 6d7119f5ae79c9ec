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
// Package versiongraph builds the cross-collection version dependency
// graph and decides which versions and files a garbage-collection pass
// may reclaim, per the construct/compute-versions/compute-unused-files
// pipeline.
package versiongraph

import (
	"time"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// legacyHNSWFiles are the four on-disk files the read-compatibility
// HNSW layout writes per index, expanded from a single HNSW path
// whenever that path belongs to a version being deleted.
var legacyHNSWFiles = [4]string{"header.bin", "data_level0.bin", "length.bin", "link_lists.bin"}

// SegmentInfo maps a file kind ("data", "metadata", "hnsw_index", ...)
// to the storage paths a compacted version wrote for that kind. The
// "hnsw_index"/"usearch" kinds are treated specially by
// ComputeUnusedFiles: their paths are never diffed against the next
// version, only expanded into legacy HNSW file prefixes.
type SegmentInfo map[string][]string

const (
	FileKindHNSW    = "hnsw_index"
	FileKindUSearch = "usearch"
)

// VersionEntry is one recorded version of a collection.
type VersionEntry struct {
	Version     int64
	CreatedAt   time.Time
	SegmentInfo SegmentInfo
}

// VersionFile is a collection's full recorded version history.
type VersionFile struct {
	CollectionID coretypes.CollectionID
	Versions     []VersionEntry
}

// VersionDependency records that target_collection's version 0 was
// forked from source_collection at source_version, one edge of a
// lineage file.
type VersionDependency struct {
	SourceCollection coretypes.CollectionID
	SourceVersion    int64
	TargetCollection coretypes.CollectionID
}

// LineageFile lists every fork dependency reachable from the
// collection the lineage file belongs to.
type LineageFile struct {
	Dependencies []VersionDependency
}

// Status is whether a version still exists or was already removed by
// a prior GC pass (inferred from it being referenced but absent from
// any fetched version file).
type Status int

const (
	StatusDeleted Status = iota
	StatusAlive
)

// Node is one (collection, version) vertex. CreatedAt is the zero
// time for Deleted nodes.
type Node struct {
	CollectionID coretypes.CollectionID
	Version      int64
	Status       Status
	CreatedAt    time.Time
}

// Graph is an arena of nodes plus index-based adjacency lists with no
// pointer cycles, so the whole structure is trivially copyable and
// safe to range over while mutating elsewhere.
type Graph struct {
	nodes    []Node
	outEdges [][]int // outEdges[i] holds indices of nodes i has an edge to
	inDegree []int
	index    map[nodeKey]int
}

type nodeKey struct {
	collection coretypes.CollectionID
	version    int64
}

func newGraph() *Graph {
	return &Graph{index: make(map[nodeKey]int)}
}

func (g *Graph) addNode(n Node) int {
	key := nodeKey{n.CollectionID, n.Version}
	if i, ok := g.index[key]; ok {
		return i
	}
	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.outEdges = append(g.outEdges, nil)
	g.inDegree = append(g.inDegree, 0)
	g.index[key] = i
	return i
}

func (g *Graph) addEdge(from, to int) {
	g.outEdges[from] = append(g.outEdges[from], to)
	g.inDegree[to]++
}

// NodeCount returns the number of vertices in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of directed edges in the graph.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, es := range g.outEdges {
		n += len(es)
	}
	return n
}

// Nodes returns every vertex in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// weaklyConnectedComponents counts the graph's weakly connected
// components by treating every edge as undirected.
func (g *Graph) weaklyConnectedComponents() int {
	n := len(g.nodes)
	undirected := make([][]int, n)
	for i, es := range g.outEdges {
		for _, j := range es {
			undirected[i] = append(undirected[i], j)
			undirected[j] = append(undirected[j], i)
		}
	}

	seen := make([]bool, n)
	components := 0
	for start := 0; start < n; start++ {
		if seen[start] {
			continue
		}
		components++
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range undirected[cur] {
				if !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}
	}
	return components
}

// topologicalOrder returns node indices via Kahn's algorithm. The
// construction only ever adds edges from an earlier version to its
// successor or from a fork point to a target's version 0, so the
// graph is guaranteed acyclic; a cycle here indicates caller-supplied
// data is corrupt, surfaced as a short slice rather than a panic.
func (g *Graph) topologicalOrder() []int {
	inDegree := make([]int, len(g.nodes))
	copy(inDegree, g.inDegree)

	var ready []int
	for i, d := range inDegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(g.nodes))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, next := range g.outEdges[cur] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return order
}
