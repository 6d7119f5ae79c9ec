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

	"github.com/launix-de/vectorcore/internal/corelog"
	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/dispatcher"
	"github.com/launix-de/vectorcore/internal/metadata"
)

// Config carries the compaction tunables.
type Config struct {
	MaxCompactionSize int
	FetchLogBatchSize int
	MaxPartitionSize  int
}

func DefaultConfig() Config {
	return Config{MaxCompactionSize: 100_000, FetchLogBatchSize: 1000, MaxPartitionSize: 1000}
}

// Orchestrator drives a single collection's compaction job from log
// fetch to sysdb registration. One outstanding job per collection is
// the caller's responsibility to serialize; Orchestrator itself is
// stateless across calls.
type Orchestrator struct {
	SysDB        SysDB
	LogSource    LogSource
	RecordSource RecordSource // only consulted when Compact is called with rebuild=true
	Snapshot     RecordSnapshot
	Writers      WriterSet
	Dispatcher   *dispatcher.Dispatcher // optional; nil skips prefetch
	Detector     BackfillDetector       // optional
	Config       Config
}

// Compact runs one compaction job to completion or to a typed
// non-success Outcome. A panic anywhere in the job is recovered into a
// KindPanic error; Compact never re-enters a terminal state once it
// has returned.
func (o *Orchestrator) Compact(ctx context.Context, collectionID coretypes.CollectionID, rebuild bool) (result Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = Outcome{}, coretypes.FromPanic("compaction.Orchestrator.Compact", r)
		}
	}()

	snap, err := o.SysDB.FetchCollection(ctx, collectionID)
	if err != nil {
		return Outcome{}, err
	}

	o.prefetch(ctx, snap.Segments)

	var records []metadata.LogRecord
	if rebuild {
		records, err = o.RecordSource.ScanAll(ctx, collectionID)
		if err != nil {
			return Outcome{}, err
		}
		if len(records) == 0 {
			return Outcome{Kind: OutcomeEmptyRebuild, NewLogPosition: snap.LogPosition, NewVersion: snap.Version}, nil
		}
	} else {
		var repair *Outcome
		records, repair, err = o.fetchLog(ctx, collectionID, snap.LogPosition)
		if err != nil {
			return Outcome{}, err
		}
		if repair != nil {
			return *repair, nil
		}
		if len(records) == 0 {
			return Outcome{Kind: OutcomeSuccess, NewLogPosition: snap.LogPosition, NewVersion: snap.Version, NewSegments: snap.Segments}, nil
		}
	}

	partitions := partitionRecords(records, o.Config.MaxPartitionSize)
	merged, backfill, err := materialize(ctx, partitions, o.Snapshot, o.Detector)
	if err != nil {
		return Outcome{}, err
	}
	if backfill != nil {
		return Outcome{Kind: OutcomeRequireFunctionBackfill, BackfillBatch: backfill}, nil
	}

	newSegments, err := o.flush(ctx, merged)
	if err != nil {
		return Outcome{}, err
	}

	newLogPosition := snap.LogPosition + coretypes.LogPosition(len(records))
	newVersion := snap.Version + 1
	if err := o.SysDB.UpdateCollection(ctx, collectionID, newLogPosition, newVersion, newSegments); err != nil {
		return Outcome{}, err
	}
	corelog.Infof("compaction: %s advanced to log_position=%d version=%d (%d records)", collectionID, newLogPosition, newVersion, len(records))
	return Outcome{Kind: OutcomeSuccess, NewLogPosition: newLogPosition, NewVersion: newVersion, NewSegments: newSegments}, nil
}

// fetchLog pulls batches starting at log_position+1 up to
// MaxCompactionSize records, detecting the "sysdb says there should be
// records but the log has none" condition along the way.
func (o *Orchestrator) fetchLog(ctx context.Context, collectionID coretypes.CollectionID, logPosition coretypes.LogPosition) ([]metadata.LogRecord, *Outcome, error) {
	var all []metadata.LogRecord
	cursor := logPosition + 1
	first := true

	for len(all) < o.Config.MaxCompactionSize {
		batchSize := o.Config.FetchLogBatchSize
		if remaining := o.Config.MaxCompactionSize - len(all); batchSize > remaining {
			batchSize = remaining
		}
		batch, witnessed, err := o.LogSource.FetchLog(ctx, collectionID, cursor, batchSize)
		if err != nil {
			return nil, nil, err
		}
		if len(batch) == 0 {
			// Only the very first, empty fetch can expose a missing-fetch
			// condition: the log's own highest offset trailing sysdb's
			// already-committed log_position means the log lost data
			// sysdb believes was compacted. Later empty batches just mean
			// "nothing new since the last batch we drained".
			if first && witnessed < logPosition {
				corelog.Errorf("compaction: log for %s tops out at offset %d but sysdb committed %d; offset repair required", collectionID, witnessed, logPosition)
				return nil, &Outcome{Kind: OutcomeRequireCompactionOffsetRepair, WitnessedOffset: witnessed}, nil
			}
			break
		}
		first = false
		all = append(all, batch...)
		cursor += coretypes.LogPosition(len(batch))
		if len(batch) < batchSize {
			break
		}
	}
	return all, nil, nil
}

// prefetch spawns best-effort, detached cache-warming tasks for the
// collection's existing segment blocks; a nil Dispatcher or a rejected
// task is silently ignored.
func (o *Orchestrator) prefetch(ctx context.Context, segs Segments) {
	if o.Dispatcher == nil {
		return
	}
	for _, path := range []string{segs.RecordPath, segs.MetadataPath, segs.VectorPath} {
		if path == "" {
			continue
		}
		path := path
		o.Dispatcher.SubmitCPU(ctx, func(ctx context.Context) (any, error) {
			// warms whatever block cache backs path; result is discarded.
			return path, nil
		})
	}
}

func (o *Orchestrator) flush(ctx context.Context, merged map[string]*MaterializedRecord) (Segments, error) {
	recordPath, err := o.Writers.WriteRecords(ctx, merged)
	if err != nil {
		return Segments{}, err
	}
	metadataPath, err := o.Writers.WriteMetadata(ctx, merged)
	if err != nil {
		return Segments{}, err
	}
	vectorPath, err := o.Writers.WriteVectors(ctx, merged)
	if err != nil {
		return Segments{}, err
	}
	return Segments{RecordPath: recordPath, MetadataPath: metadataPath, VectorPath: vectorPath}, nil
}
