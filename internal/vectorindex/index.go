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
// Package vectorindex implements the core's approximate nearest
// neighbor indexes: a hand-written HNSW graph (no cgo hnswlib
// binding to lean on
// here), RaBitQ binary quantization, and a SPANN composite index
// built from an HNSW over cluster centroids plus in-memory posting
// lists; the posting lists are not stored in the blockstore.
package vectorindex

import (
	"context"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Metric is the distance function an index was built with.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricCosine
	MetricInnerProduct
)

// SearchResult is one hit from Query: an internal id and its distance
// under the index's metric.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// Index is the contract both HNSW and SPANN implement: add, delete,
// query with optional allow/deny lists, point lookup, occupancy,
// resize, and persistence.
type Index interface {
	Add(id uint64, vector []float32) error
	Delete(id uint64) error
	Query(ctx context.Context, vector []float32, k int, allow, disallow []uint64) ([]SearchResult, error)
	Get(id uint64) ([]float32, bool)
	Len() int
	Capacity() int
	Resize(newCapacity int) error
	Save() ([]byte, error)
	Load(data []byte) error
}

// HNSWConfig carries the graph parameters. NewHNSW replaces any
// non-positive M, EfConstruction, EfSearch or MaxElements with the
// DefaultHNSWConfig value.
type HNSWConfig struct {
	MaxElements    int
	M              int
	EfConstruction int
	EfSearch       int
	RandomSeed     int64
	PersistPath    string
	Metric         Metric
}

// DefaultHNSWConfig is the fallback when a collection does not
// override the graph parameters.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{
		MaxElements:    1000,
		M:              16,
		EfConstruction: 100,
		EfSearch:       10,
		RandomSeed:     0,
		Metric:         MetricEuclidean,
	}
}

// BlockID aliases the shared core type for readability in this package.
type BlockID = coretypes.BlockID
