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
// hnsw.go is a from-scratch, single-process HNSW (Hierarchical
// Navigable Small World) graph: layered
// skip-list-like graph, greedy descent from the top layer down to an
// ef-bounded beam search at layer 0, closest-M neighbor selection on
// insert. Engines in this space usually wrap hnswlib through FFI;
// nothing in the retrieved module pack exposes that surface to Go, so
// this package implements the algorithm directly instead.
package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

type hnswNode struct {
	id        uint64
	vector    []float32
	level     int
	neighbors [][]uint64 // neighbors[l] = peer ids at layer l
	deleted   bool
}

// HNSW is a concurrency-safe approximate nearest neighbor graph over
// float32 vectors, satisfying Index.
type HNSW struct {
	mu sync.RWMutex

	cfg      HNSWConfig
	distance distanceFunc
	rng      *rand.Rand

	dim       int
	nodes     map[uint64]*hnswNode
	entryID   uint64
	hasEntry  bool
	levelMult float64
}

// NewHNSW constructs an empty graph with the given configuration. dim
// is discovered from the first Add call and fixed thereafter.
func NewHNSW(cfg HNSWConfig) *HNSW {
	if cfg.M <= 0 {
		cfg.M = DefaultHNSWConfig().M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultHNSWConfig().EfConstruction
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultHNSWConfig().EfSearch
	}
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = DefaultHNSWConfig().MaxElements
	}
	return &HNSW{
		cfg:       cfg,
		distance:  distanceFor(cfg.Metric),
		rng:       rand.New(rand.NewSource(cfg.RandomSeed)),
		nodes:     make(map[uint64]*hnswNode),
		levelMult: 1 / math.Log(float64(cfg.M)),
	}
}

func (h *HNSW) randomLevel() int {
	level := int(math.Floor(-math.Log(h.rng.Float64()+1e-12) * h.levelMult))
	if level > 32 {
		level = 32
	}
	return level
}

// Add inserts or replaces the vector stored under id.
func (h *HNSW) Add(id uint64, vector []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dim == 0 {
		h.dim = len(vector)
	}
	if len(vector) != h.dim {
		return coretypes.New(coretypes.KindInvalidArgument, "vectorindex.HNSW.Add", fmt.Sprintf("vector has dimension %d, index expects %d", len(vector), h.dim))
	}
	if len(h.nodes) >= h.cfg.MaxElements {
		if _, exists := h.nodes[id]; !exists {
			return coretypes.New(coretypes.KindResourceExhausted, "vectorindex.HNSW.Add", "hnsw index is at capacity")
		}
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)

	level := h.randomLevel()
	node := &hnswNode{id: id, vector: stored, level: level, neighbors: make([][]uint64, level+1)}

	if !h.hasEntry {
		h.nodes[id] = node
		h.entryID = id
		h.hasEntry = true
		return nil
	}

	entry := h.entryID
	entryNode := h.nodes[entry]
	curDist := h.distance(stored, entryNode.vector)
	cur := entry

	for l := entryNode.level; l > level; l-- {
		cur, curDist = h.greedyDescend(cur, curDist, stored, l)
	}

	h.nodes[id] = node

	for l := min(level, entryNode.level); l >= 0; l-- {
		candidates := h.searchLayer(stored, cur, h.cfg.EfConstruction, l, id)
		selected := h.selectNeighbors(candidates, h.cfg.M)
		node.neighbors[l] = selected
		for _, peer := range selected {
			h.connect(peer, id, l)
		}
		if len(candidates) > 0 {
			cur = candidates[0].ID
		}
	}

	if level > entryNode.level {
		h.entryID = id
	}
	return nil
}

func (h *HNSW) greedyDescend(cur uint64, curDist float32, target []float32, layer int) (uint64, float32) {
	for {
		improved := false
		node := h.nodes[cur]
		if layer >= len(node.neighbors) {
			return cur, curDist
		}
		for _, peer := range node.neighbors[layer] {
			pn, ok := h.nodes[peer]
			if !ok || pn.deleted {
				continue
			}
			d := h.distance(target, pn.vector)
			if d < curDist {
				curDist = d
				cur = peer
				improved = true
			}
		}
		if !improved {
			return cur, curDist
		}
	}
}

// searchLayer runs a greedy beam search of width ef starting from
// entry at the given layer, returning up to ef nearest candidates
// sorted by ascending distance. exclude, if nonzero, is never returned.
func (h *HNSW) searchLayer(target []float32, entry uint64, ef int, layer int, exclude uint64) []SearchResult {
	visited := map[uint64]bool{entry: true}
	entryNode := h.nodes[entry]
	entryDist := h.distance(target, entryNode.vector)

	candidates := []SearchResult{{ID: entry, Distance: entryDist}}
	var results []SearchResult
	if (exclude == 0 || entry != exclude) && !entryNode.deleted {
		results = append(results, SearchResult{ID: entry, Distance: entryDist})
	}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
		best := candidates[0]
		candidates = candidates[1:]

		if len(results) >= ef {
			worst := worstOf(results)
			if best.Distance > worst {
				break
			}
		}

		node := h.nodes[best.ID]
		if layer >= len(node.neighbors) {
			continue
		}
		for _, peer := range node.neighbors[layer] {
			if visited[peer] {
				continue
			}
			visited[peer] = true
			pn, ok := h.nodes[peer]
			if !ok {
				continue
			}
			d := h.distance(target, pn.vector)
			candidates = append(candidates, SearchResult{ID: peer, Distance: d})
			if (exclude == 0 || peer != exclude) && !pn.deleted {
				results = append(results, SearchResult{ID: peer, Distance: d})
			}
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > ef {
		results = results[:ef]
	}
	return results
}

func worstOf(results []SearchResult) float32 {
	worst := results[0].Distance
	for _, r := range results {
		if r.Distance > worst {
			worst = r.Distance
		}
	}
	return worst
}

// selectNeighbors keeps the m closest candidates (a simplification of
// hnswlib's heuristic diversity-aware selection).
func (h *HNSW) selectNeighbors(candidates []SearchResult, m int) []uint64 {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	ids := make([]uint64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}

func (h *HNSW) connect(id uint64, peer uint64, layer int) {
	node, ok := h.nodes[id]
	if !ok || layer >= len(node.neighbors) {
		return
	}
	for _, existing := range node.neighbors[layer] {
		if existing == peer {
			return
		}
	}
	node.neighbors[layer] = append(node.neighbors[layer], peer)
	if len(node.neighbors[layer]) > h.cfg.M*2 {
		// re-rank by distance to node and trim back to M, the same
		// overflow handling hnswlib applies on degree-bound breach.
		type scored struct {
			id uint64
			d  float32
		}
		scoredPeers := make([]scored, 0, len(node.neighbors[layer]))
		for _, p := range node.neighbors[layer] {
			if pn, ok := h.nodes[p]; ok {
				scoredPeers = append(scoredPeers, scored{p, h.distance(node.vector, pn.vector)})
			}
		}
		sort.Slice(scoredPeers, func(i, j int) bool { return scoredPeers[i].d < scoredPeers[j].d })
		if len(scoredPeers) > h.cfg.M {
			scoredPeers = scoredPeers[:h.cfg.M]
		}
		trimmed := make([]uint64, len(scoredPeers))
		for i, s := range scoredPeers {
			trimmed[i] = s.id
		}
		node.neighbors[layer] = trimmed
	}
}

// Delete tombstones id; its graph edges are left in place (as dangling
// references that are skipped during traversal) rather than
// repaired.
func (h *HNSW) Delete(id uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	node, ok := h.nodes[id]
	if !ok {
		return coretypes.New(coretypes.KindNotFound, "vectorindex.HNSW.Delete", "id not present in index")
	}
	node.deleted = true
	return nil
}

// Query returns the k nearest live, allowed neighbors of vector.
func (h *HNSW) Query(ctx context.Context, vector []float32, k int, allow, disallow []uint64) ([]SearchResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !h.hasEntry {
		return nil, nil
	}
	if len(vector) != h.dim {
		return nil, coretypes.New(coretypes.KindInvalidArgument, "vectorindex.HNSW.Query", fmt.Sprintf("query vector has dimension %d, index expects %d", len(vector), h.dim))
	}

	allowSet := toSet(allow)
	disallowSet := toSet(disallow)

	entry := h.entryID
	entryNode := h.nodes[entry]
	cur := entry
	curDist := h.distance(vector, entryNode.vector)
	for l := entryNode.level; l > 0; l-- {
		cur, curDist = h.greedyDescend(cur, curDist, vector, l)
	}

	ef := h.cfg.EfSearch
	if ef < k {
		ef = k
	}
	candidates := h.searchLayer(vector, cur, ef, 0, 0)

	var out []SearchResult
	for _, c := range candidates {
		node := h.nodes[c.ID]
		if node.deleted {
			continue
		}
		if len(allowSet) > 0 && !allowSet[c.ID] {
			continue
		}
		if disallowSet[c.ID] {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func toSet(ids []uint64) map[uint64]bool {
	if len(ids) == 0 {
		return nil
	}
	s := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// Get returns the stored vector for id, if present. Tombstoned
// entries still serve reads until compaction physically removes them.
func (h *HNSW) Get(id uint64) ([]float32, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	node, ok := h.nodes[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(node.vector))
	copy(out, node.vector)
	return out, true
}

// Len returns the number of live (non-tombstoned) entries.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, node := range h.nodes {
		if !node.deleted {
			n++
		}
	}
	return n
}

// Capacity returns the configured maximum element count.
func (h *HNSW) Capacity() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg.MaxElements
}

// Resize grows (never shrinks below current occupancy) the index's
// element budget.
func (h *HNSW) Resize(newCapacity int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if newCapacity < len(h.nodes) {
		return coretypes.New(coretypes.KindInvalidArgument, "vectorindex.HNSW.Resize", "cannot resize below current occupancy")
	}
	h.cfg.MaxElements = newCapacity
	return nil
}

// persistedNode and persistedGraph are the JSON wire form Save/Load
// round-trip through; nothing outside this package depends on the
// byte layout, only on round-tripping Save's output.
type persistedNode struct {
	ID        uint64     `json:"id"`
	Vector    []float32  `json:"vector"`
	Level     int        `json:"level"`
	Neighbors [][]uint64 `json:"neighbors"`
	Deleted   bool       `json:"deleted"`
}

type persistedGraph struct {
	Config   HNSWConfig      `json:"config"`
	Dim      int             `json:"dim"`
	EntryID  uint64          `json:"entry_id"`
	HasEntry bool            `json:"has_entry"`
	Nodes    []persistedNode `json:"nodes"`
}

// Save serializes the full graph.
func (h *HNSW) Save() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	g := persistedGraph{Config: h.cfg, Dim: h.dim, EntryID: h.entryID, HasEntry: h.hasEntry}
	for _, node := range h.nodes {
		g.Nodes = append(g.Nodes, persistedNode{
			ID: node.id, Vector: node.vector, Level: node.level,
			Neighbors: node.neighbors, Deleted: node.deleted,
		})
	}
	return json.Marshal(g)
}

// Load replaces the graph's contents with a previously Saved one.
func (h *HNSW) Load(data []byte) error {
	var g persistedGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return coretypes.Wrap(coretypes.KindInternal, "vectorindex.HNSW.Load", "corrupt persisted graph", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.cfg = g.Config
	h.distance = distanceFor(g.Config.Metric)
	h.dim = g.Dim
	h.entryID = g.EntryID
	h.hasEntry = g.HasEntry
	h.nodes = make(map[uint64]*hnswNode, len(g.Nodes))
	for _, n := range g.Nodes {
		h.nodes[n.ID] = &hnswNode{id: n.ID, vector: n.Vector, level: n.Level, neighbors: n.Neighbors, deleted: n.Deleted}
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
