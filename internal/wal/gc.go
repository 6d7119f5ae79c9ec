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

	"github.com/launix-de/vectorcore/internal/objectstore"
)

// ComputeGarbage walks the manifest's top-level items in log order
// (splitting any top-level snapshot that straddles the cutoff, one
// level deep) to build the
// drop/keep plan for ApplyGarbage. Every garbage-collected offset is
// <= firstToKeep.
func ComputeGarbage(ctx context.Context, store objectstore.Store, prefix string, manifest Manifest, firstToKeep LogPosition) (*Garbage, error) {
	g := &Garbage{FirstToKeep: firstToKeep}
	anyDrop := false

	keyOf := func(name string) string {
		if prefix == "" {
			return name
		}
		return prefix + "/" + name
	}

	for _, item := range manifest.Items {
		switch {
		case item.Fragment != nil:
			frag := item.Fragment
			end := frag.StartPosition + LogPosition(frag.NumRecords)
			if end <= firstToKeep {
				if g.FragmentsToDropLimit == 0 || frag.SeqNo+1 > g.FragmentsToDropLimit {
					g.FragmentsToDropLimit = frag.SeqNo + 1
				}
				if !anyDrop || frag.SeqNo < g.FragmentsToDropStart {
					g.FragmentsToDropStart = frag.SeqNo
				}
				anyDrop = true
				g.SetsumToDiscard = g.SetsumToDiscard.XOR(frag.Setsum)
			}
			// a fragment straddling the cutoff is never split: fragments
			// are the atomic unit of the log, so it is simply kept.

		case item.Snapshot != nil:
			snap := item.Snapshot
			if snap.Limit <= firstToKeep {
				g.SnapshotsToDrop = append(g.SnapshotsToDrop, *snap)
				g.SetsumToDiscard = g.SetsumToDiscard.XOR(snap.Setsum)
				anyDrop = true
				continue
			}
			if snap.StartPosition >= firstToKeep {
				continue // entirely after the cutoff: untouched
			}

			// straddles the cutoff: split.
			data, _, err := store.Get(ctx, keyOf(snapshotKey(snap.Setsum)))
			if err != nil {
				return nil, err
			}
			body, err := decodeSnapshot(data)
			if err != nil {
				return nil, err
			}
			kept, discarded := splitSnapshot(body, firstToKeep)
			g.SetsumToDiscard = g.SetsumToDiscard.XOR(discarded)
			g.SnapshotsToDrop = append(g.SnapshotsToDrop, *snap)
			g.SnapshotsToMake = append(g.SnapshotsToMake, kept)
			anyDrop = true
		}
	}

	if !anyDrop {
		return nil, ErrEmptyGarbage
	}
	return g, nil
}

// splitSnapshot splits a straddling snapshot over its direct fragments
// and child pointers, returning a new snapshot containing only what
// remains live, plus the setsum of what was discarded. A child
// snapshot that itself straddles the cutoff is kept whole; its body is
// not read or split.
func splitSnapshot(s Snapshot, firstToKeep LogPosition) (kept Snapshot, discarded Setsum) {
	for _, frag := range s.Fragments {
		end := frag.StartPosition + LogPosition(frag.NumRecords)
		if end <= firstToKeep {
			discarded = discarded.XOR(frag.Setsum)
			continue
		}
		kept.Fragments = append(kept.Fragments, frag)
	}
	for _, child := range s.Children {
		if child.Limit <= firstToKeep {
			discarded = discarded.XOR(child.Setsum)
			continue
		}
		kept.Children = append(kept.Children, child)
	}
	for _, frag := range kept.Fragments {
		kept.Setsum = kept.Setsum.XOR(frag.Setsum)
	}
	for _, child := range kept.Children {
		kept.Setsum = kept.Setsum.XOR(child.Setsum)
	}
	return kept, discarded
}

// applyGarbageToManifest verifies setsum+collected is unchanged by the
// drop, then rewrites the manifest's top-level items and, if the log
// head moved, its initial_offset/initial_seq_no.
func applyGarbageToManifest(m *Manifest, g Garbage) error {
	before := m.setsum().XOR(m.Collected)

	var remaining []topLevelItem
	dropSnapshots := make(map[Setsum]bool, len(g.SnapshotsToDrop))
	for _, s := range g.SnapshotsToDrop {
		dropSnapshots[s.Setsum] = true
	}
	for _, item := range m.Items {
		if item.Fragment != nil {
			if item.Fragment.SeqNo >= g.FragmentsToDropStart && item.Fragment.SeqNo < g.FragmentsToDropLimit {
				continue
			}
			remaining = append(remaining, item)
			continue
		}
		if dropSnapshots[item.Snapshot.Setsum] {
			continue
		}
		remaining = append(remaining, item)
	}
	for i := range g.SnapshotsToMake {
		made := g.SnapshotsToMake[i]
		start, limit := snapshotBounds(made)
		remaining = append(remaining, topLevelItem{Snapshot: &SnapshotPointer{
			Setsum:        made.Setsum,
			StartPosition: start,
			Limit:         limit,
			SeqNoLimit:    snapshotSeqLimit(made),
			NumRecords:    countSnapshotRecords(made),
			Path:          snapshotKey(made.Setsum),
		}})
	}

	m.Items = remaining
	m.Collected = m.Collected.XOR(g.SetsumToDiscard)

	after := m.setsum().XOR(m.Collected)
	if before != after {
		return ErrSetsumDivergence
	}

	if g.FirstToKeep > m.InitialOffset {
		m.InitialOffset = g.FirstToKeep
	}
	if g.FragmentsToDropLimit > m.InitialSeqNo {
		m.InitialSeqNo = g.FragmentsToDropLimit
	}
	return nil
}

// snapshotBounds returns the half-open offset interval a snapshot body
// covers, taken over its fragments and child pointers.
func snapshotBounds(s Snapshot) (start, limit LogPosition) {
	first := true
	visit := func(lo, hi LogPosition) {
		if first || lo < start {
			start = lo
		}
		if first || hi > limit {
			limit = hi
		}
		first = false
	}
	for _, f := range s.Fragments {
		visit(f.StartPosition, f.StartPosition+LogPosition(f.NumRecords))
	}
	for _, c := range s.Children {
		visit(c.StartPosition, c.Limit)
	}
	return start, limit
}

// snapshotSeqLimit is one past the highest fragment seq_no under a
// snapshot body.
func snapshotSeqLimit(s Snapshot) FragmentSeqNo {
	var limit FragmentSeqNo
	for _, f := range s.Fragments {
		if f.SeqNo+1 > limit {
			limit = f.SeqNo + 1
		}
	}
	for _, c := range s.Children {
		if c.SeqNoLimit > limit {
			limit = c.SeqNoLimit
		}
	}
	return limit
}

func countSnapshotRecords(s Snapshot) uint64 {
	var n uint64
	for _, f := range s.Fragments {
		n += f.NumRecords
	}
	for _, c := range s.Children {
		n += c.NumRecords
	}
	return n
}

// foldTopLevelIntoSnapshot folds a run of top-level fragments into a
// single snapshot once the top-level item count reaches threshold,
// rewriting the manifest to reference the snapshot in their place.
// The folded snapshot body is returned so the caller can install it
// before the manifest CAS lands; a nil return means nothing folded.
func foldTopLevelIntoSnapshot(m *Manifest, threshold int) *Snapshot {
	if len(m.Items) < threshold {
		return nil
	}
	var folded Snapshot
	for _, item := range m.Items {
		if item.Fragment != nil {
			folded.Fragments = append(folded.Fragments, *item.Fragment)
		} else {
			folded.Children = append(folded.Children, *item.Snapshot)
		}
	}
	for _, f := range folded.Fragments {
		folded.Setsum = folded.Setsum.XOR(f.Setsum)
	}
	for _, c := range folded.Children {
		folded.Setsum = folded.Setsum.XOR(c.Setsum)
	}

	start := m.Items[0].startPosition()
	last := m.Items[len(m.Items)-1]
	var limit LogPosition
	if last.Fragment != nil {
		limit = last.Fragment.StartPosition + LogPosition(last.Fragment.NumRecords)
	} else {
		limit = last.Snapshot.Limit
	}

	m.Items = []topLevelItem{{Snapshot: &SnapshotPointer{
		Setsum:        folded.Setsum,
		StartPosition: start,
		Limit:         limit,
		SeqNoLimit:    snapshotSeqLimit(folded),
		NumRecords:    countSnapshotRecords(folded),
		Path:          snapshotKey(folded.Setsum),
	}}}
	return &folded
}
