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
package coretypes

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// LogPosition is a 64-bit offset in a collection's logical log. Zero
// means "empty". It is strictly monotonic per collection.
type LogPosition uint64

// FragmentSeqNo orders fragments for at-most-once application.
type FragmentSeqNo uint64

// Setsum is a 256-bit commutative XOR-sum checksum over record hashes.
// XOR makes it order-insensitive: concatenation and merge are both a
// plain XOR of the two operands.
type Setsum [32]byte

// XOR returns a ^ b without mutating either operand.
func (a Setsum) XOR(b Setsum) Setsum {
	var out Setsum
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// IsZero reports whether the setsum is the all-zero identity element.
func (a Setsum) IsZero() bool {
	for _, b := range a {
		if b != 0 {
			return false
		}
	}
	return true
}

// uuidCounter backs NewUUID below, grounded on storage/fast_uuid.go's
// non-cryptographic UUIDv4-shaped generator: on busy compactor/GC
// hosts startup entropy stalls are a real cost and none of the ids
// minted here (block, fragment-local, index-handle) need to resist a
// cryptographic adversary.
var uuidCounter uint64 = uint64(time.Now().UnixNano())

// NewUUID returns a UUIDv4-shaped value without relying on crypto/rand.
func NewUUID() uuid.UUID {
	ctr := atomic.AddUint64(&uuidCounter, 1)
	now := uint64(time.Now().UnixNano())
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], ctr)
	binary.LittleEndian.PutUint64(b[8:16], ctr^now^(now<<17))
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b)
}

// CollectionID identifies a collection across components.
type CollectionID uuid.UUID

func (c CollectionID) String() string { return uuid.UUID(c).String() }

// BlockID identifies an immutable blockstore block.
type BlockID uuid.UUID

func (b BlockID) String() string { return uuid.UUID(b).String() }
