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
package scorecard

import (
	"github.com/dchest/siphash"
)

// sipKey is a fixed key: buckets only need to be consistent within a
// single process, never portable or adversary-resistant, so a fixed
// key (rather than one randomized at startup) keeps ticket hashes
// reproducible across a Scorecard's rule reloads.
var sipKey0, sipKey1 uint64 = 0x5343524b30304b31, 0x434f524543415244

// tagHash128 hashes a tag string into a 128-bit value via two SipHash-2-4
// passes (the standard way to widen a 64-bit SipHash to 128 bits: hash
// twice with related keys and concatenate).
type tagHash128 struct {
	hi, lo uint64
}

func hashTag(tag string) tagHash128 {
	lo := siphash.Hash(sipKey0, sipKey1, []byte(tag))
	hi := siphash.Hash(sipKey1, sipKey0, []byte(tag))
	return tagHash128{hi: hi, lo: lo}
}

func (h tagHash128) xor(o tagHash128) tagHash128 {
	return tagHash128{hi: h.hi ^ o.hi, lo: h.lo ^ o.lo}
}

// bucketIndex maps a combination hash into [0, buckets).
func (h tagHash128) bucketIndex(buckets int) int {
	return int(h.lo % uint64(buckets))
}
