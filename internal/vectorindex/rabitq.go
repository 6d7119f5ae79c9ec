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
// rabitq.go implements RaBitQ-style binary quantization: vectors are
// recentered around a fixed center point, reduced to one sign bit per
// dimension, and paired with the recentered vector's L2 norm so the
// original magnitude can be approximately recovered. The code layout
// is keyed to a caller-supplied quantization center and
// Code::size(d) = (d+7)/8 + 4.
package vectorindex

import (
	"encoding/binary"
	"math"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Code is a quantized vector: one packed sign bit per dimension plus
// the trailing 4-byte big-endian float32 norm of the recentered
// vector, matching Code::size(d) = (d+7)/8 + 4 bytes.
type Code []byte

// CodeSize returns the packed byte length of a Code over d dimensions.
func CodeSize(d int) int {
	return (d+7)/8 + 4
}

// Quantize centers vector on center, keeps the sign of every
// dimension, and appends the recentered vector's norm.
func Quantize(vector, center []float32) (Code, error) {
	if len(vector) != len(center) {
		return nil, coretypes.New(coretypes.KindInvalidArgument, "vectorindex.Quantize", "vector and center dimension mismatch")
	}
	d := len(vector)
	code := make(Code, CodeSize(d))

	var sumSq float64
	for i := 0; i < d; i++ {
		diff := vector[i] - center[i]
		sumSq += float64(diff) * float64(diff)
		if diff >= 0 {
			code[i/8] |= 1 << uint(i%8)
		}
	}
	norm := float32(math.Sqrt(sumSq))
	binary.BigEndian.PutUint32(code[(d+7)/8:], math.Float32bits(norm))
	return code, nil
}

// Reconstruct recovers an approximate vector from a Code: each
// dimension's sign is scaled so that the reconstructed recentered
// vector's expected norm matches the stored norm, then re-centered.
func Reconstruct(code Code, center []float32) ([]float32, error) {
	d := len(center)
	if len(code) != CodeSize(d) {
		return nil, coretypes.New(coretypes.KindInvalidArgument, "vectorindex.Reconstruct", "code length does not match center dimension")
	}
	norm := math.Float32frombits(binary.BigEndian.Uint32(code[(d+7)/8:]))
	perDim := float32(norm) / float32(math.Sqrt(float64(d)))

	out := make([]float32, d)
	for i := 0; i < d; i++ {
		bit := (code[i/8] >> uint(i%8)) & 1
		sign := float32(-1)
		if bit == 1 {
			sign = 1
		}
		out[i] = center[i] + sign*perDim
	}
	return out, nil
}

// CodeDistance approximates the configured metric's distance between
// two codes by reconstructing both vectors and comparing those, which
// is sufficient for the coarse ranking RaBitQ is used for (exact
// distances are recomputed against raw vectors for the final top-k in
// callers that keep both representations).
func CodeDistance(metric Metric, a, b Code, center []float32) (float32, error) {
	va, err := Reconstruct(a, center)
	if err != nil {
		return 0, err
	}
	vb, err := Reconstruct(b, center)
	if err != nil {
		return 0, err
	}
	return distanceFor(metric)(va, vb), nil
}
