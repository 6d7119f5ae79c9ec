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
package blockstore

import (
	"sort"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Delta accumulates inserts and removals against a base block. A
// single writer's operations are serialized by the caller holding the
// Delta; concurrent writers fork from a committed base instead of
// sharing one.
type Delta struct {
	base    *Block
	inserts map[string]Row   // keyed by CompositeKey.String-ish composite
	removed map[string]bool
}

func compositeKeyString(prefix string, key []byte) string {
	return prefix + "\x00" + string(key)
}

// NewDelta starts a Delta against base, which may be nil for a
// from-scratch block.
func NewDelta(base *Block) *Delta {
	return &Delta{base: base, inserts: make(map[string]Row), removed: make(map[string]bool)}
}

// Put stages an insert or overwrite.
func (d *Delta) Put(prefix string, key, value []byte) {
	k := compositeKeyString(prefix, key)
	delete(d.removed, k)
	d.inserts[k] = Row{Prefix: prefix, Key: key, Value: value}
}

// Delete stages a removal.
func (d *Delta) Delete(prefix string, key []byte) {
	k := compositeKeyString(prefix, key)
	delete(d.inserts, k)
	d.removed[k] = true
}

// defaultMaxBlockSizeBytes bounds a single committed block when the
// caller passes Commit a non-positive size.
const defaultMaxBlockSizeBytes = 8 << 20

// CommitResult is what Commit produces: one or more newly built
// blocks (more than one when the delta exceeded the max block size),
// each with its encoded IPC bytes ready to persist.
type CommitResult struct {
	Blocks  []*Block
	Encoded [][]byte
}

// Commit materializes the delta against its base (if any) and splits
// the result into blocks no larger than maxBlockSize.
func (d *Delta) Commit(maxBlockSize int64) (*CommitResult, error) {
	if maxBlockSize <= 0 {
		maxBlockSize = defaultMaxBlockSizeBytes
	}

	merged := make(map[string]Row)
	if d.base != nil {
		for i := 0; i < d.base.Len(); i++ {
			row := d.base.rowAt(i)
			merged[compositeKeyString(row.Prefix, row.Key)] = row
		}
	}
	for k := range d.removed {
		delete(merged, k)
	}
	for k, row := range d.inserts {
		merged[k] = row
	}

	rows := make([]Row, 0, len(merged))
	for _, row := range merged {
		rows = append(rows, row)
	}
	// rows must be globally sorted before a split so the resulting
	// blocks cover disjoint key ranges.
	sort.Slice(rows, func(i, j int) bool {
		return CompositeKey{rows[i].Prefix, rows[i].Key}.Compare(CompositeKey{rows[j].Prefix, rows[j].Key}) < 0
	})

	// a first pass builds one block to measure size, then splits by
	// row count proportionally if it exceeds the budget; blocks are
	// immutable once built, so an exact byte-accurate split would
	// require rebuilding repeatedly; this approximation is good enough
	// for the bound to hold in practice.
	if len(rows) == 0 {
		id := coretypes.NewUUID()
		block, encoded, err := BuildBlock(coretypes.BlockID(id), nil)
		if err != nil {
			return nil, err
		}
		return &CommitResult{Blocks: []*Block{block}, Encoded: [][]byte{encoded}}, nil
	}

	probe, probeEncoded, err := BuildBlock(coretypes.BlockID(coretypes.NewUUID()), rows)
	if err != nil {
		return nil, err
	}
	if probe.SizeBytes() <= maxBlockSize {
		return &CommitResult{Blocks: []*Block{probe}, Encoded: [][]byte{probeEncoded}}, nil
	}

	numParts := int(probe.SizeBytes()/maxBlockSize) + 1
	probe.Release()
	chunkSize := (len(rows) + numParts - 1) / numParts

	var result CommitResult
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		block, encoded, err := BuildBlock(coretypes.BlockID(coretypes.NewUUID()), rows[start:end])
		if err != nil {
			return nil, err
		}
		result.Blocks = append(result.Blocks, block)
		result.Encoded = append(result.Encoded, encoded)
	}
	return &result, nil
}
