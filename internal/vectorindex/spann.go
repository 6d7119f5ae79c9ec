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
// spann.go is a simplified SPANN: an HNSW graph over cluster
// centroids drives coarse routing, and each centroid keeps a posting
// list of the point ids assigned to it. The posting lists are held as
// in-memory maps serialized whole on Save rather than true
// blockstore-backed incremental deltas, a scope simplification noted
// in the project's grounding ledger.
package vectorindex

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// SPANNConfig configures centroid routing.
type SPANNConfig struct {
	Metric         Metric
	NumProbes      int // how many nearest centroids to fan out a query to
	MaxElements    int
	MaxPostingSize int // points per centroid before a new centroid is promoted
	CentroidHNSW   HNSWConfig // config for the coarse centroid graph
}

// DefaultSPANNConfig mirrors DefaultHNSWConfig's defaults with a
// small fixed probe count.
func DefaultSPANNConfig() SPANNConfig {
	return SPANNConfig{
		Metric:         MetricEuclidean,
		NumProbes:      8,
		MaxElements:    1000,
		MaxPostingSize: 128,
		CentroidHNSW:   DefaultHNSWConfig(),
	}
}

// SPANN is the composite index satisfying Index.
type SPANN struct {
	cfg      SPANNConfig
	distance distanceFunc

	centroids      *HNSW
	nextCentroidID uint64

	postings map[uint64][]uint64    // centroidID -> point ids
	vectors  map[uint64][]float32   // point id -> vector
	deleted  map[uint64]bool
	dim      int
}

// NewSPANN constructs an empty composite index.
func NewSPANN(cfg SPANNConfig) *SPANN {
	if cfg.NumProbes <= 0 {
		cfg.NumProbes = DefaultSPANNConfig().NumProbes
	}
	if cfg.MaxElements <= 0 {
		cfg.MaxElements = DefaultSPANNConfig().MaxElements
	}
	if cfg.MaxPostingSize <= 0 {
		cfg.MaxPostingSize = DefaultSPANNConfig().MaxPostingSize
	}
	centroidCfg := cfg.CentroidHNSW
	centroidCfg.Metric = cfg.Metric
	return &SPANN{
		cfg:       cfg,
		distance:  distanceFor(cfg.Metric),
		centroids: NewHNSW(centroidCfg),
		postings:  make(map[uint64][]uint64),
		vectors:   make(map[uint64][]float32),
		deleted:   make(map[uint64]bool),
	}
}

// Add routes vector to its nearest centroid, promoting vector itself
// to a new centroid if none exists yet.
func (s *SPANN) Add(id uint64, vector []float32) error {
	if s.dim == 0 {
		s.dim = len(vector)
	}
	if len(vector) != s.dim {
		return coretypes.New(coretypes.KindInvalidArgument, "vectorindex.SPANN.Add", "vector dimension mismatch")
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	s.vectors[id] = stored
	delete(s.deleted, id)

	if s.centroids.Len() == 0 {
		cid := s.nextCentroidID
		s.nextCentroidID++
		if err := s.centroids.Add(cid, stored); err != nil {
			return err
		}
		s.postings[cid] = append(s.postings[cid], id)
		return nil
	}

	hits, err := s.centroids.Query(context.Background(), stored, 1, nil, nil)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return coretypes.New(coretypes.KindInternal, "vectorindex.SPANN.Add", "centroid routing returned no candidates")
	}
	cid := hits[0].ID
	if len(s.postings[cid]) >= s.cfg.MaxPostingSize {
		// the nearest cluster is full: promote this vector to a new
		// centroid so routing stays balanced as the index grows.
		newCID := s.nextCentroidID
		s.nextCentroidID++
		if err := s.centroids.Add(newCID, stored); err != nil {
			return err
		}
		s.postings[newCID] = append(s.postings[newCID], id)
		return nil
	}
	s.postings[cid] = append(s.postings[cid], id)
	return nil
}

// Delete tombstones id; it is skipped by future queries but its
// posting-list entry is left in place until the owning centroid is
// next rebuilt.
func (s *SPANN) Delete(id uint64) error {
	if _, ok := s.vectors[id]; !ok {
		return coretypes.New(coretypes.KindNotFound, "vectorindex.SPANN.Delete", "id not present in index")
	}
	s.deleted[id] = true
	return nil
}

// Query probes the NumProbes nearest centroids and exact-ranks every
// live candidate found across their posting lists.
func (s *SPANN) Query(ctx context.Context, vector []float32, k int, allow, disallow []uint64) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.centroids.Len() == 0 {
		return nil, nil
	}
	probes := s.cfg.NumProbes
	centroidHits, err := s.centroids.Query(ctx, vector, probes, nil, nil)
	if err != nil {
		return nil, err
	}

	allowSet := toSet(allow)
	disallowSet := toSet(disallow)

	seen := make(map[uint64]bool)
	var results []SearchResult
	for _, ch := range centroidHits {
		for _, id := range s.postings[ch.ID] {
			if seen[id] || s.deleted[id] {
				continue
			}
			seen[id] = true
			if len(allowSet) > 0 && !allowSet[id] {
				continue
			}
			if disallowSet[id] {
				continue
			}
			results = append(results, SearchResult{ID: id, Distance: s.distance(vector, s.vectors[id])})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Get returns the stored vector for id.
func (s *SPANN) Get(id uint64) ([]float32, bool) {
	v, ok := s.vectors[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Len returns the number of live points across all posting lists.
func (s *SPANN) Len() int {
	n := 0
	for id := range s.vectors {
		if !s.deleted[id] {
			n++
		}
	}
	return n
}

func (s *SPANN) Capacity() int { return s.cfg.MaxElements }

func (s *SPANN) Resize(newCapacity int) error {
	if newCapacity < s.Len() {
		return coretypes.New(coretypes.KindInvalidArgument, "vectorindex.SPANN.Resize", "cannot resize below current occupancy")
	}
	s.cfg.MaxElements = newCapacity
	return s.centroids.Resize(newCapacity)
}

type persistedSPANN struct {
	Config         SPANNConfig         `json:"config"`
	Centroids      json.RawMessage     `json:"centroids"`
	NextCentroidID uint64              `json:"next_centroid_id"`
	Postings       map[uint64][]uint64 `json:"postings"`
	Vectors        map[uint64][]float32 `json:"vectors"`
	Deleted        map[uint64]bool     `json:"deleted"`
	Dim            int                 `json:"dim"`
}

// Save serializes the centroid graph and every posting list/vector.
func (s *SPANN) Save() ([]byte, error) {
	centroidBuf, err := s.centroids.Save()
	if err != nil {
		return nil, err
	}
	return json.Marshal(persistedSPANN{
		Config: s.cfg, Centroids: centroidBuf, NextCentroidID: s.nextCentroidID,
		Postings: s.postings, Vectors: s.vectors, Deleted: s.deleted, Dim: s.dim,
	})
}

// Load replaces the index's contents with a previously Saved one.
func (s *SPANN) Load(data []byte) error {
	var p persistedSPANN
	if err := json.Unmarshal(data, &p); err != nil {
		return coretypes.Wrap(coretypes.KindInternal, "vectorindex.SPANN.Load", "corrupt persisted spann index", err)
	}

	centroids := NewHNSW(p.Config.CentroidHNSW)
	if err := centroids.Load(p.Centroids); err != nil {
		return err
	}

	s.cfg = p.Config
	s.distance = distanceFor(p.Config.Metric)
	s.centroids = centroids
	s.nextCentroidID = p.NextCentroidID
	s.postings = p.Postings
	s.vectors = p.Vectors
	s.deleted = p.Deleted
	s.dim = p.Dim
	if s.postings == nil {
		s.postings = make(map[uint64][]uint64)
	}
	if s.vectors == nil {
		s.vectors = make(map[uint64][]float32)
	}
	if s.deleted == nil {
		s.deleted = make(map[uint64]bool)
	}
	return nil
}
