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
// Package wal implements the write-ahead log over object storage: a
// single compare-and-swap manifest, append-only fragments, and
// snapshots that fold runs of fragments into a bounded-fan-out tree,
// all laid out under the object keys below.
package wal

import (
	"encoding/hex"
	"fmt"
)

// Key layout under a collection's log prefix.
//
//	<prefix>/manifest/MANIFEST
//	<prefix>/log/Bucket=<16hex>/FragmentSeqNo=<16hex>.parquet
//	<prefix>/snapshot/SNAPSHOT.<64hex-setsum>
const (
	manifestKey        = "manifest/MANIFEST"
	logPrefix          = "log/"
	snapshotDir        = "snapshot/"
	fragmentsPerBucket = 1 << 16
)

func fragmentBucket(seq FragmentSeqNo) uint64 {
	return uint64(seq) / fragmentsPerBucket
}

// fragmentKey returns the object key a fragment with the given
// sequence number is stored at.
func fragmentKey(seq FragmentSeqNo) string {
	return fmt.Sprintf("%sBucket=%016x/FragmentSeqNo=%016x.parquet", logPrefix, fragmentBucket(seq), uint64(seq))
}

// snapshotKey returns the content-addressed key for a snapshot with
// the given setsum.
func snapshotKey(setsum [32]byte) string {
	return fmt.Sprintf("%sSNAPSHOT.%s", snapshotDir, hex.EncodeToString(setsum[:]))
}
