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
package wal

import (
	"github.com/launix-de/vectorcore/internal/coretypes"
)

// FragmentSeqNo and LogPosition alias the shared core types so callers
// outside this package don't need to import coretypes separately.
type FragmentSeqNo = coretypes.FragmentSeqNo
type LogPosition = coretypes.LogPosition
type Setsum = coretypes.Setsum

// FragmentPointer is what a manifest references: the fragment's
// object key plus the metadata needed to reason about GC and
// ordering without re-reading the fragment body.
type FragmentPointer struct {
	SeqNo         FragmentSeqNo
	StartPosition LogPosition
	NumRecords    uint64
	NumBytes      uint64
	Setsum        Setsum
	Path          string
}

// SnapshotPointer references an installed snapshot object by its
// content-addressed key.
type SnapshotPointer struct {
	Setsum        Setsum
	StartPosition LogPosition
	Limit         LogPosition
	SeqNoLimit    FragmentSeqNo // one past the highest fragment seq_no under this snapshot
	NumRecords    uint64
	Path          string
}

// Snapshot is the body of a snapshot object: a run of fragments and/or
// nested snapshot pointers, kept below a bounded fan-out.
type Snapshot struct {
	Fragments []FragmentPointer
	Children  []SnapshotPointer
	Setsum    Setsum
}

// topLevelItem is either a bare fragment pointer or a snapshot
// pointer at the top of the manifest's tree. Exactly one of the two
// fields is non-nil.
type topLevelItem struct {
	Fragment *FragmentPointer
	Snapshot *SnapshotPointer
}

func (t topLevelItem) startPosition() LogPosition {
	if t.Fragment != nil {
		return t.Fragment.StartPosition
	}
	return t.Snapshot.StartPosition
}

func (t topLevelItem) setsum() Setsum {
	if t.Fragment != nil {
		return t.Fragment.Setsum
	}
	return t.Snapshot.Setsum
}

// Manifest is the authoritative current state of one collection's log.
type Manifest struct {
	InitialOffset LogPosition
	InitialSeqNo  FragmentSeqNo
	Items         []topLevelItem
	Collected     Setsum // accumulated setsum of everything ever garbage-collected
}

// setsum folds the manifest's live items into a single checksum, used
// to verify apply_garbage's "setsum + collected unchanged" invariant.
func (m *Manifest) setsum() Setsum {
	var total Setsum
	for _, item := range m.Items {
		total = total.XOR(item.setsum())
	}
	return total
}

// SnapshotOptions configures when do_work folds a run of top-level
// fragments into a snapshot.
type SnapshotOptions struct {
	Threshold int // number of top-level items (fragments and snapshot pointers) that triggers a fold
}

// Garbage is the output of compute_garbage: what to drop, what new
// snapshots to install first, and where the log head moves to.
type Garbage struct {
	FragmentsToDropStart FragmentSeqNo
	FragmentsToDropLimit FragmentSeqNo
	SnapshotsToDrop       []SnapshotPointer
	SnapshotsToMake       []Snapshot
	SnapshotForRoot       *Snapshot
	SetsumToDiscard       Setsum
	FirstToKeep           LogPosition
}
