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
package vectorindex

import (
	"math"
	"math/rand"
	"testing"
)

func TestCodeSizeMatchesFormula(t *testing.T) {
	cases := map[int]int{1: 5, 7: 5, 8: 5, 9: 6, 1024: 132}
	for d, want := range cases {
		if got := CodeSize(d); got != want {
			t.Errorf("CodeSize(%d) = %d, want %d", d, got, want)
		}
	}
}

func TestQuantizeReconstructApproximatesOriginal(t *testing.T) {
	center := make([]float32, 16)
	src := rand.New(rand.NewSource(1))
	vector := make([]float32, 16)
	for i := range vector {
		vector[i] = float32(src.NormFloat64())
	}

	code, err := Quantize(vector, center)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}
	if len(code) != CodeSize(16) {
		t.Fatalf("expected code length %d, got %d", CodeSize(16), len(code))
	}

	recon, err := Reconstruct(code, center)
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}

	var origNorm, reconNorm float64
	for i := range vector {
		origNorm += float64(vector[i]) * float64(vector[i])
		reconNorm += float64(recon[i]) * float64(recon[i])
	}
	origNorm = math.Sqrt(origNorm)
	reconNorm = math.Sqrt(reconNorm)

	if math.Abs(origNorm-reconNorm)/origNorm > 0.05 {
		t.Errorf("reconstructed norm %v diverges too far from original %v", reconNorm, origNorm)
	}
}

func TestCodeDistancePreservesRelativeOrder(t *testing.T) {
	center := []float32{0, 0}
	near := []float32{1, 0}
	far := []float32{10, 10}
	query := []float32{1.1, 0.1}

	codeNear, _ := Quantize(near, center)
	codeFar, _ := Quantize(far, center)
	codeQuery, _ := Quantize(query, center)

	dNear, err := CodeDistance(MetricEuclidean, codeQuery, codeNear, center)
	if err != nil {
		t.Fatalf("CodeDistance near: %v", err)
	}
	dFar, err := CodeDistance(MetricEuclidean, codeQuery, codeFar, center)
	if err != nil {
		t.Fatalf("CodeDistance far: %v", err)
	}
	if dNear >= dFar {
		t.Errorf("expected quantized distance to the near point (%v) to be less than to the far point (%v)", dNear, dFar)
	}
}
