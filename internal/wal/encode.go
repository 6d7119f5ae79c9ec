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
	"crypto/sha256"
	"encoding/json"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// wireManifest/wireSnapshot are the JSON-on-the-wire shapes. Manifests
// are small (a bounded number of top-level items after snapshotting),
// so JSON keeps this readable for operators inspecting a manifest by
// hand; fragment bodies are what actually need a binary/columnar
// format and use parquet instead.

type wireTopLevelItem struct {
	Fragment *FragmentPointer `json:"fragment,omitempty"`
	Snapshot *SnapshotPointer `json:"snapshot,omitempty"`
}

type wireManifest struct {
	InitialOffset uint64             `json:"initial_offset"`
	InitialSeqNo  uint64             `json:"initial_seq_no"`
	Items         []wireTopLevelItem `json:"items"`
	Collected     [32]byte           `json:"collected"`
}

func encodeManifest(m Manifest) []byte {
	w := wireManifest{
		InitialOffset: uint64(m.InitialOffset),
		InitialSeqNo:  uint64(m.InitialSeqNo),
		Collected:     m.Collected,
	}
	for _, item := range m.Items {
		w.Items = append(w.Items, wireTopLevelItem{Fragment: item.Fragment, Snapshot: item.Snapshot})
	}
	data, err := json.Marshal(w)
	if err != nil {
		panic(err) // wireManifest has no unmarshalable fields; a failure here is a programming error
	}
	return data
}

func decodeManifest(data []byte) (Manifest, error) {
	if len(data) == 0 {
		return Manifest{}, nil
	}
	var w wireManifest
	if err := json.Unmarshal(data, &w); err != nil {
		return Manifest{}, coretypes.Wrap(coretypes.KindInternal, "wal.decodeManifest", "corrupt manifest body", err)
	}
	m := Manifest{
		InitialOffset: LogPosition(w.InitialOffset),
		InitialSeqNo:  FragmentSeqNo(w.InitialSeqNo),
		Collected:     w.Collected,
	}
	for _, item := range w.Items {
		m.Items = append(m.Items, topLevelItem{Fragment: item.Fragment, Snapshot: item.Snapshot})
	}
	return m, nil
}

func encodeSnapshot(s Snapshot) []byte {
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return data
}

func decodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, coretypes.Wrap(coretypes.KindInternal, "wal.decodeSnapshot", "corrupt snapshot body", err)
	}
	return s, nil
}

// hashRecord folds one record into the per-record hash the setsum XORs
// together: order-insensitivity only holds if every record hashes to
// an independent, uniformly distributed value.
func hashRecord(r LogRecord) Setsum {
	h := sha256.New()
	h.Write(r.Key)
	h.Write(r.Value)
	var tsBuf [8]byte
	for i := range tsBuf {
		tsBuf[i] = byte(r.Timestamp >> (8 * i))
	}
	h.Write(tsBuf[:])
	var out Setsum
	copy(out[:], h.Sum(nil))
	return out
}
