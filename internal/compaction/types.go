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
// Package compaction turns accumulated log records into a new segment
// version: fetch the pending range from the log, partition it,
// materialize each partition's final per-id state against a read-only
// snapshot of the existing record segment, flush new writers, and
// advance the collection in sysdb.
package compaction

import (
	"context"

	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/metadata"
)

// Segments names the on-disk/object-store paths a version's writers
// produced, one per segment kind.
type Segments struct {
	RecordPath   string
	MetadataPath string
	VectorPath   string
}

// CollectionSnapshot is what sysdb hands the orchestrator at Pending.
type CollectionSnapshot struct {
	ID          coretypes.CollectionID
	LogPosition coretypes.LogPosition
	Version     uint64
	Segments    Segments
}

// SysDB is the control-plane handle the orchestrator reads the
// starting state from and reports the finished state to. A real
// implementation talks to a separate metadata service; tests use an
// in-memory fake.
type SysDB interface {
	FetchCollection(ctx context.Context, id coretypes.CollectionID) (CollectionSnapshot, error)
	UpdateCollection(ctx context.Context, id coretypes.CollectionID, newLogPosition coretypes.LogPosition, newVersion uint64, newSegments Segments) error
}

// LogSource fetches a batch of committed log records starting at
// startOffset (exclusive of everything before it). witnessedOffset is
// the highest offset the log actually holds for this collection,
// independent of how many records this particular batch returned;
// the orchestrator compares it against what sysdb expects to detect
// a missing-fetch condition.
type LogSource interface {
	FetchLog(ctx context.Context, collectionID coretypes.CollectionID, startOffset coretypes.LogPosition, batchSize int) (records []metadata.LogRecord, witnessedOffset coretypes.LogPosition, err error)
}

// RecordSource reads the entire existing record segment, used instead
// of LogSource when a compaction is a full rebuild.
type RecordSource interface {
	ScanAll(ctx context.Context, collectionID coretypes.CollectionID) ([]metadata.LogRecord, error)
}

// RecordSnapshot is the read-only view of the existing record segment
// that Materialize applies partitions against: it resolves a user id
// already on disk to its dense offset id.
type RecordSnapshot interface {
	Lookup(userID string) (offsetID uint64, ok bool)
}

// WriterSet is where a finished compaction's materialized output is
// flushed. A real implementation owns the record/metadata/vector
// segment writers; tests use an in-memory fake.
type WriterSet interface {
	WriteRecords(ctx context.Context, records map[string]*MaterializedRecord) (path string, err error)
	WriteMetadata(ctx context.Context, records map[string]*MaterializedRecord) (path string, err error)
	WriteVectors(ctx context.Context, records map[string]*MaterializedRecord) (path string, err error)
}

// MaterializedRecord is a single id's final state after folding every
// log record that touched it within the compacted range.
type MaterializedRecord struct {
	OffsetID  uint64
	Operation metadata.Operation
	SeqID     uint64
	Metadata  metadata.UpdateMetadata
	Document  *string
	Vector    []float32
}

// OutcomeKind distinguishes a compaction's terminal result.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeEmptyRebuild
	OutcomeRequireCompactionOffsetRepair
	OutcomeRequireFunctionBackfill
)

// Outcome is the typed result of a single Compact call, keeping the
// RequireCompactionOffsetRepair and RequireFunctionBackfill conditions
// as distinguished variants
// instead of collapsing them into a generic error.
type Outcome struct {
	Kind OutcomeKind

	NewLogPosition coretypes.LogPosition
	NewVersion     uint64
	NewSegments    Segments

	WitnessedOffset coretypes.LogPosition // set when Kind == OutcomeRequireCompactionOffsetRepair
	BackfillBatch   map[string]*MaterializedRecord // set when Kind == OutcomeRequireFunctionBackfill
}
