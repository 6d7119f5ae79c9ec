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
// Package blockstore is the immutable, sorted storage unit underneath
// the vector index's posting lists and the metadata segment's
// secondary structures: an Arrow-IPC-encoded block of (prefix, key,
// value) rows plus a sparse root index mapping min-key to block id.
package blockstore

import (
	"bytes"

	"github.com/google/uuid"
)

// CompositeKey is the (prefix, key) pair every block row is sorted
// by. Prefix groups rows the way a column family would; key orders
// within a prefix.
type CompositeKey struct {
	Prefix string
	Key    []byte
}

// Compare orders composite keys by prefix first, then by key bytes.
func (k CompositeKey) Compare(o CompositeKey) int {
	if k.Prefix != o.Prefix {
		if k.Prefix < o.Prefix {
			return -1
		}
		return 1
	}
	return bytes.Compare(k.Key, o.Key)
}

// SparseEntry is one row of a blockstore's root sparse index: the
// smallest composite key present in the referenced block.
type SparseEntry struct {
	MinKey  CompositeKey
	BlockID uuid.UUID
}
