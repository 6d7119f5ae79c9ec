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
	"errors"
	"sort"
	"sync"

	"github.com/launix-de/vectorcore/internal/corelog"
	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/objectstore"
)

// ErrLogContentionDurable is returned to every waiter in a do_work
// batch when the manifest's conditional write loses a race. Partial
// success across a batch is impossible: either the whole batch's
// fragments land in the new manifest, or none do and callers retry.
var ErrLogContentionDurable = coretypes.New(coretypes.KindAborted, "wal.Manager.do_work", "manifest compare-and-swap lost a race")

// ErrEmptyGarbage is returned by ApplyGarbage for a Garbage value with
// nothing to drop.
var ErrEmptyGarbage = coretypes.New(coretypes.KindInvalidArgument, "wal.Manager.apply_garbage", "garbage set is empty")

// ErrSetsumDivergence marks a corrupted garbage apply: setsum +
// collected changed across the operation, which must never happen.
var ErrSetsumDivergence = coretypes.New(coretypes.KindInternal, "wal.applyGarbageToManifest", "setsum diverged across garbage apply")

type stagedFragment struct {
	ptr  FragmentPointer
	done chan error
}

type stagedGarbage struct {
	g    Garbage
	done chan error
}

// Manager is the single-process manifest manager for one collection's
// log: it stages incoming fragments, batches them into manifest
// rewrites, and folds runs of fragments into snapshots.
type Manager struct {
	store    objectstore.Store
	prefix   string
	snapOpts SnapshotOptions

	mu                sync.Mutex
	stable            Manifest
	stableEtag        string
	fragments         []stagedFragment
	garbage           *stagedGarbage
	nextLogPosition   LogPosition
	nextSeqNoToAssign FragmentSeqNo
	nextSeqNoToApply  FragmentSeqNo

	workCh chan struct{}
}

// NewManager loads (or creates) the manifest at <prefix>/manifest/MANIFEST
// and starts the background do_work loop.
func NewManager(ctx context.Context, store objectstore.Store, prefix string, snapOpts SnapshotOptions) (*Manager, error) {
	mgr := &Manager{
		store:    store,
		prefix:   prefix,
		snapOpts: snapOpts,
		workCh:   make(chan struct{}, 1),
	}

	key := mgr.key(manifestKey)
	data, etag, err := store.Get(ctx, key)
	if errors.Is(err, objectstore.ErrNotFound) {
		empty := Manifest{}
		encoded := encodeManifest(empty)
		newEtag, err := store.PutIfAbsent(ctx, key, encoded)
		if err != nil && !errors.Is(err, objectstore.ErrPrecondition) {
			return nil, err
		}
		if err != nil {
			data, etag, err = store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
		} else {
			data, etag = encoded, newEtag
		}
	} else if err != nil {
		return nil, err
	}

	manifest, err := decodeManifest(data)
	if err != nil {
		return nil, err
	}
	mgr.stable = manifest
	mgr.stableEtag = etag
	mgr.nextLogPosition = manifestEnd(manifest)
	mgr.nextSeqNoToAssign = manifest.InitialSeqNo
	mgr.nextSeqNoToApply = manifest.InitialSeqNo
	for _, item := range manifest.Items {
		var end FragmentSeqNo
		if item.Fragment != nil {
			end = item.Fragment.SeqNo + 1
		} else {
			end = item.Snapshot.SeqNoLimit
		}
		if end > mgr.nextSeqNoToAssign {
			mgr.nextSeqNoToAssign = end
		}
		if end > mgr.nextSeqNoToApply {
			mgr.nextSeqNoToApply = end
		}
	}

	go mgr.loop(context.Background())
	return mgr, nil
}

// manifestEnd is the first offset past everything the manifest
// references, i.e. where the next fragment starts.
func manifestEnd(m Manifest) LogPosition {
	end := m.InitialOffset
	for _, item := range m.Items {
		var e LogPosition
		if item.Fragment != nil {
			e = item.Fragment.StartPosition + LogPosition(item.Fragment.NumRecords)
		} else {
			e = item.Snapshot.Limit
		}
		if e > end {
			end = e
		}
	}
	return end
}

func (m *Manager) key(name string) string {
	if m.prefix == "" {
		return name
	}
	return m.prefix + "/" + name
}

// AssignTimestamp atomically reserves n consecutive log offsets and
// the next fragment sequence number.
func (m *Manager) AssignTimestamp(n uint64) (FragmentSeqNo, LogPosition, error) {
	if n == 0 {
		return 0, 0, coretypes.New(coretypes.KindInvalidArgument, "wal.Manager.assign_timestamp", "n must be > 0")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.nextSeqNoToAssign
	pos := m.nextLogPosition
	m.nextSeqNoToAssign++
	m.nextLogPosition += LogPosition(n)
	return seq, pos, nil
}

// PublishFragment stages a fragment and blocks until do_work has
// either applied it into a durable manifest or reports contention.
func (m *Manager) PublishFragment(ptr FragmentPointer) error {
	done := make(chan error, 1)
	m.mu.Lock()
	m.fragments = append(m.fragments, stagedFragment{ptr: ptr, done: done})
	m.mu.Unlock()
	m.kick()
	return <-done
}

func (m *Manager) kick() {
	select {
	case m.workCh <- struct{}{}:
	default:
	}
}

func (m *Manager) loop(ctx context.Context) {
	for range m.workCh {
		m.doWork(ctx)
	}
}

// doWork pulls all staged fragments, sorts by seq_no, applies the
// contiguous run starting at next_seq_no_to_apply, and folds the
// result into at most one manifest write.
func (m *Manager) doWork(ctx context.Context) {
	m.mu.Lock()
	pending := m.fragments
	m.fragments = nil
	garbage := m.garbage
	m.garbage = nil
	m.mu.Unlock()

	if len(pending) == 0 && garbage == nil {
		return
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ptr.SeqNo < pending[j].ptr.SeqNo })

	m.mu.Lock()
	next := m.nextSeqNoToApply
	manifest := m.stable
	etag := m.stableEtag
	m.mu.Unlock()

	var applied []stagedFragment
	var postponed []stagedFragment
	for _, sf := range pending {
		if sf.ptr.SeqNo == next {
			manifest.Items = append(manifest.Items, topLevelItem{Fragment: &sf.ptr})
			applied = append(applied, sf)
			next++
		} else {
			postponed = append(postponed, sf)
		}
	}

	if garbage != nil {
		if err := applyGarbageToManifest(&manifest, garbage.g); err != nil {
			garbage.done <- err
			garbage = nil
		}
	}

	var folded *Snapshot
	if m.snapOpts.Threshold > 0 {
		folded = foldTopLevelIntoSnapshot(&manifest, m.snapOpts.Threshold)
	}

	if len(applied) == 0 && garbage == nil {
		m.mu.Lock()
		m.fragments = append(postponed, m.fragments...)
		m.mu.Unlock()
		return
	}

	if folded != nil {
		if _, err := m.store.PutIfAbsent(ctx, m.key(snapshotKey(folded.Setsum)), encodeSnapshot(*folded)); err != nil && !errors.Is(err, objectstore.ErrPrecondition) {
			for _, sf := range applied {
				sf.done <- err
			}
			for _, sf := range postponed {
				sf.done <- err
			}
			if garbage != nil {
				garbage.done <- err
			}
			return
		}
	}
	if garbage != nil {
		for _, s := range garbage.g.SnapshotsToMake {
			if _, err := m.store.PutIfAbsent(ctx, m.key(snapshotKey(s.Setsum)), encodeSnapshot(s)); err != nil && !errors.Is(err, objectstore.ErrPrecondition) {
				garbage.done <- err
				garbage = nil
				break
			}
		}
	}

	encoded := encodeManifest(manifest)
	newEtag, err := m.store.PutIfMatch(ctx, m.key(manifestKey), encoded, etag)
	if err != nil {
		corelog.Warnf("wal: manifest CAS under %q lost a race, failing %d staged fragments", m.prefix, len(applied)+len(postponed))
		// Partial success is impossible: every waiter in this batch,
		// applied or merely postponed, retries at a higher level.
		for _, sf := range applied {
			sf.done <- ErrLogContentionDurable
		}
		for _, sf := range postponed {
			sf.done <- ErrLogContentionDurable
		}
		if garbage != nil {
			garbage.done <- ErrLogContentionDurable
		}
		return
	}

	m.mu.Lock()
	m.stable = manifest
	m.stableEtag = newEtag
	m.nextSeqNoToApply = next
	m.fragments = append(postponed, m.fragments...)
	m.mu.Unlock()

	for _, sf := range applied {
		sf.done <- nil
	}
	if garbage != nil {
		garbage.done <- nil
	}

	if len(postponed) > 0 || garbage != nil {
		m.kick()
	}
}

// ApplyGarbage merges g into the next manifest write.
func (m *Manager) ApplyGarbage(g Garbage) error {
	if g.FragmentsToDropStart == g.FragmentsToDropLimit && len(g.SnapshotsToDrop) == 0 {
		return ErrEmptyGarbage
	}
	done := make(chan error, 1)
	m.mu.Lock()
	m.garbage = &stagedGarbage{g: g, done: done}
	m.mu.Unlock()
	m.kick()
	return <-done
}

// SnapshotInstall performs a create-if-not-exist PUT at the
// content-addressed snapshot path. Losing the race to an identical
// snapshot is success, not an error.
func (m *Manager) SnapshotInstall(ctx context.Context, s Snapshot) error {
	key := m.key(snapshotKey(s.Setsum))
	encoded := encodeSnapshot(s)
	_, err := m.store.PutIfAbsent(ctx, key, encoded)
	if errors.Is(err, objectstore.ErrPrecondition) {
		return nil
	}
	return err
}

// Recover probes for fragments written beyond the manifest (the
// writer crashed after uploading a fragment body but before
// publish_fragment's manifest rewrite landed) and republishes them.
func (m *Manager) Recover(ctx context.Context) error {
	m.mu.Lock()
	next := m.nextSeqNoToApply
	m.mu.Unlock()

	objs, err := m.store.List(ctx, m.key(logPrefix))
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(objs))
	for _, o := range objs {
		found[o.Key] = true
	}

	for seq := next; ; seq++ {
		key := m.key(fragmentKey(seq))
		if !found[key] {
			break
		}
		data, _, err := m.store.Get(ctx, key)
		if err != nil {
			return err
		}
		records, err := DecodeFragment(data)
		if err != nil {
			return err
		}
		var setsum Setsum
		for _, r := range records {
			setsum = setsum.XOR(hashRecord(r))
		}
		// The orphaned fragment continues the log exactly where the
		// durable manifest ends; its offsets may or may not still be
		// reserved in this process, so derive the start from the
		// manifest rather than re-assigning.
		m.mu.Lock()
		pos := manifestEnd(m.stable)
		if end := pos + LogPosition(len(records)); end > m.nextLogPosition {
			m.nextLogPosition = end
		}
		if seq+1 > m.nextSeqNoToAssign {
			m.nextSeqNoToAssign = seq + 1
		}
		m.mu.Unlock()
		corelog.Infof("wal: recover republishing orphaned fragment seq=%d (%d records) under %q", seq, len(records), m.prefix)
		if err := m.PublishFragment(FragmentPointer{
			SeqNo:         seq,
			StartPosition: pos,
			NumRecords:    uint64(len(records)),
			NumBytes:      uint64(len(data)),
			Setsum:        setsum,
			Path:          key,
		}); err != nil {
			return err
		}
	}
	return nil
}
