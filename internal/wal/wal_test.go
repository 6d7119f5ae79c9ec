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
	"context"
	"testing"
	"time"

	"github.com/launix-de/vectorcore/internal/objectstore"
)

func mustNewManager(t *testing.T, store objectstore.Store, prefix string, opts SnapshotOptions) *Manager {
	t.Helper()
	mgr, err := NewManager(context.Background(), store, prefix, opts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr
}

func publishRecords(t *testing.T, mgr *Manager, records []LogRecord) FragmentPointer {
	t.Helper()
	seq, pos, err := mgr.AssignTimestamp(uint64(len(records)))
	if err != nil {
		t.Fatalf("AssignTimestamp: %v", err)
	}
	encoded, err := EncodeFragment(records)
	if err != nil {
		t.Fatalf("EncodeFragment: %v", err)
	}
	var setsum Setsum
	for _, r := range records {
		setsum = setsum.XOR(hashRecord(r))
	}
	ptr := FragmentPointer{
		SeqNo:         seq,
		StartPosition: pos,
		NumRecords:    uint64(len(records)),
		NumBytes:      uint64(len(encoded)),
		Setsum:        setsum,
	}
	if err := mgr.PublishFragment(ptr); err != nil {
		t.Fatalf("PublishFragment: %v", err)
	}
	return ptr
}

func TestAssignTimestampIsMonotone(t *testing.T) {
	mgr := mustNewManager(t, objectstore.NewMemStore(), "col1", SnapshotOptions{})

	seq1, pos1, err := mgr.AssignTimestamp(3)
	if err != nil {
		t.Fatalf("AssignTimestamp: %v", err)
	}
	seq2, pos2, err := mgr.AssignTimestamp(2)
	if err != nil {
		t.Fatalf("AssignTimestamp: %v", err)
	}
	if seq2 <= seq1 {
		t.Errorf("expected seq2 > seq1, got %d, %d", seq1, seq2)
	}
	if pos2 != pos1+3 {
		t.Errorf("expected pos2 == pos1+3, got pos1=%d pos2=%d", pos1, pos2)
	}
}

func TestPublishFragmentAppliesContiguousRun(t *testing.T) {
	mgr := mustNewManager(t, objectstore.NewMemStore(), "col1", SnapshotOptions{})

	ptr := publishRecords(t, mgr, []LogRecord{{Key: []byte("a"), Value: []byte("1"), Timestamp: 1}})

	mgr.mu.Lock()
	items := mgr.stable.Items
	mgr.mu.Unlock()

	if len(items) != 1 || items[0].Fragment == nil || items[0].Fragment.SeqNo != ptr.SeqNo {
		t.Fatalf("expected manifest to contain the published fragment, got %+v", items)
	}
}

func TestRecoverRepublishesOrphanedFragments(t *testing.T) {
	store := objectstore.NewMemStore()
	mgr := mustNewManager(t, store, "col1", SnapshotOptions{})

	seq, pos, err := mgr.AssignTimestamp(1)
	if err != nil {
		t.Fatalf("AssignTimestamp: %v", err)
	}
	records := []LogRecord{{Key: []byte("orphan"), Value: []byte("v"), Timestamp: 1}}
	encoded, err := EncodeFragment(records)
	if err != nil {
		t.Fatalf("EncodeFragment: %v", err)
	}
	// simulate a crash after the fragment body landed but before
	// publish_fragment's manifest rewrite.
	if _, err := store.Put(context.Background(), mgr.key(fragmentKey(seq)), encoded); err != nil {
		t.Fatalf("Put fragment: %v", err)
	}
	_ = pos

	if err := mgr.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	mgr.mu.Lock()
	items := mgr.stable.Items
	mgr.mu.Unlock()
	if len(items) != 1 || items[0].Fragment == nil || items[0].Fragment.SeqNo != seq {
		t.Fatalf("expected recover to publish the orphaned fragment, got %+v", items)
	}
}

func TestComputeGarbageDropsFragmentsBeforeCutoff(t *testing.T) {
	store := objectstore.NewMemStore()
	mgr := mustNewManager(t, store, "col1", SnapshotOptions{})

	publishRecords(t, mgr, []LogRecord{{Key: []byte("a"), Value: []byte("1"), Timestamp: 1}})
	publishRecords(t, mgr, []LogRecord{{Key: []byte("b"), Value: []byte("2"), Timestamp: 2}})

	mgr.mu.Lock()
	manifest := mgr.stable
	mgr.mu.Unlock()

	g, err := ComputeGarbage(context.Background(), store, "col1", manifest, LogPosition(1))
	if err != nil {
		t.Fatalf("ComputeGarbage: %v", err)
	}
	if g.FragmentsToDropLimit-g.FragmentsToDropStart != 1 {
		t.Errorf("expected exactly one fragment dropped, got range [%d,%d)", g.FragmentsToDropStart, g.FragmentsToDropLimit)
	}

	if err := mgr.ApplyGarbage(*g); err != nil {
		t.Fatalf("ApplyGarbage: %v", err)
	}

	mgr.mu.Lock()
	after := mgr.stable
	mgr.mu.Unlock()
	if len(after.Items) != 1 {
		t.Fatalf("expected 1 remaining item after garbage apply, got %d", len(after.Items))
	}
}

func TestComputeGarbageRejectsEmptyResult(t *testing.T) {
	store := objectstore.NewMemStore()
	mgr := mustNewManager(t, store, "col1", SnapshotOptions{})
	publishRecords(t, mgr, []LogRecord{{Key: []byte("a"), Value: []byte("1"), Timestamp: 1}})

	mgr.mu.Lock()
	manifest := mgr.stable
	mgr.mu.Unlock()

	if _, err := ComputeGarbage(context.Background(), store, "col1", manifest, LogPosition(0)); err != ErrEmptyGarbage {
		t.Fatalf("expected ErrEmptyGarbage, got %v", err)
	}
}

func TestSnapshotInstallIdempotent(t *testing.T) {
	store := objectstore.NewMemStore()
	mgr := mustNewManager(t, store, "col1", SnapshotOptions{})

	snap := Snapshot{Setsum: Setsum{1, 2, 3}}
	if err := mgr.SnapshotInstall(context.Background(), snap); err != nil {
		t.Fatalf("first SnapshotInstall: %v", err)
	}
	if err := mgr.SnapshotInstall(context.Background(), snap); err != nil {
		t.Fatalf("second identical SnapshotInstall should succeed, got %v", err)
	}
}

func TestDoWorkFoldsIntoSnapshotAtThreshold(t *testing.T) {
	store := objectstore.NewMemStore()
	mgr := mustNewManager(t, store, "col1", SnapshotOptions{Threshold: 2})

	publishRecords(t, mgr, []LogRecord{{Key: []byte("a"), Value: []byte("1"), Timestamp: 1}})
	publishRecords(t, mgr, []LogRecord{{Key: []byte("b"), Value: []byte("2"), Timestamp: 2}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mgr.mu.Lock()
		n := len(mgr.stable.Items)
		mgr.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mgr.mu.Lock()
	items := mgr.stable.Items
	mgr.mu.Unlock()
	if len(items) != 1 || items[0].Snapshot == nil {
		t.Fatalf("expected the two fragments to be folded into a single snapshot, got %+v", items)
	}
}
