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
package compaction

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/metadata"
)

// materializePartition folds one partition's records into their final
// per-id state. nextOffsetID is shared across every partition in the
// batch so newly added ids get dense, collision-free offset ids
// regardless of which partition happened to add them.
func materializePartition(partition []metadata.LogRecord, snapshot RecordSnapshot, nextOffsetID *atomic.Uint64) map[string]*MaterializedRecord {
	out := make(map[string]*MaterializedRecord, len(partition))
	for _, rec := range partition {
		existing, ok := out[rec.ID]
		if !ok {
			offsetID, onDisk := uint64(0), false
			if snapshot != nil {
				offsetID, onDisk = snapshot.Lookup(rec.ID)
			}
			if !onDisk {
				offsetID = nextOffsetID.Add(1)
			}
			existing = &MaterializedRecord{OffsetID: offsetID}
			out[rec.ID] = existing
		}
		applyLogRecord(existing, rec)
	}
	return out
}

// applyLogRecord folds one log record onto a materialized record's
// running state: later seq ids win, metadata keys merge (explicit
// nulls still mean "delete this key", resolved by the metadata writer
// downstream), and a delete clears metadata/document but keeps the
// offset id so a later add reusing the same batch is consistent.
func applyLogRecord(m *MaterializedRecord, rec metadata.LogRecord) {
	m.SeqID = rec.SeqID
	m.Operation = rec.Operation
	switch rec.Operation {
	case metadata.OpDelete:
		m.Metadata = nil
		m.Document = nil
		m.Vector = nil
		return
	}
	if rec.Metadata != nil {
		if m.Metadata == nil {
			m.Metadata = make(metadata.UpdateMetadata)
		}
		for k, v := range rec.Metadata {
			m.Metadata[k] = v
		}
	}
	if rec.Document != nil {
		m.Document = rec.Document
	}
	if rec.Embedding != nil {
		m.Vector = rec.Embedding
	}
}

// mergeMaterialized folds src onto dst in place, applying src's
// entries in partition order so cross-partition updates to the same
// id still resolve last-seq-id-wins.
func mergeMaterialized(dst, src map[string]*MaterializedRecord) {
	for id, rec := range src {
		existing, ok := dst[id]
		if !ok || rec.SeqID >= existing.SeqID {
			dst[id] = rec
		}
	}
}

// BackfillDetector reports whether a materialized record needs a
// downstream embedding-function backfill before it can be written.
// Left nil, no record ever triggers a backfill.
type BackfillDetector func(id string, rec *MaterializedRecord) bool

// materialize fans the batch's partitions out across an errgroup,
// applying each partition independently against a read-only snapshot
// of the record segment, then merges results.
func materialize(ctx context.Context, partitions [][]metadata.LogRecord, snapshot RecordSnapshot, detector BackfillDetector) (map[string]*MaterializedRecord, map[string]*MaterializedRecord, error) {
	var nextOffsetID atomic.Uint64
	partial := make([]map[string]*MaterializedRecord, len(partitions))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range partitions {
		i, p := i, p
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = coretypes.FromPanic("compaction.materialize", r)
				}
			}()
			if gctx.Err() != nil {
				return gctx.Err()
			}
			partial[i] = materializePartition(p, snapshot, &nextOffsetID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	merged := make(map[string]*MaterializedRecord)
	for _, p := range partial {
		mergeMaterialized(merged, p)
	}

	if detector == nil {
		return merged, nil, nil
	}
	backfill := make(map[string]*MaterializedRecord)
	for id, rec := range merged {
		if detector(id, rec) {
			backfill[id] = rec
		}
	}
	if len(backfill) > 0 {
		return merged, backfill, nil
	}
	return merged, nil, nil
}
