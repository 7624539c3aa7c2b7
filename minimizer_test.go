// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package kmtricks

import "testing"

func TestIsAADisallowed(t *testing.T) {
	cases := []struct {
		mer  string
		want bool
	}{
		{"ACGT", false},
		{"AACG", false}, // AA touches the first position, allowed
		{"CGAA", false}, // AA touches the last position, allowed
		{"CAAC", true},  // AA strictly interior, disallowed
		{"AAAA", true},  // positions 1-2 are strictly interior
	}
	for _, c := range cases {
		if got := isAADisallowed([]byte(c.mer)); got != c.want {
			t.Errorf("isAADisallowed(%q) = %v, want %v", c.mer, got, c.want)
		}
	}
}

func TestMinimizerWindowRejectsOutOfRangeM(t *testing.T) {
	km, _ := Encode([]byte("ACGTACGT"))
	cases := []int{3, 16, km.K, km.K + 1}
	for _, m := range cases {
		mn, pos := MinimizerWindow(km, m)
		if mn != DefaultMinimizer || pos != -1 {
			t.Errorf("MinimizerWindow(k=%d, m=%d) = (%v, %d), want (DefaultMinimizer, -1)", km.K, m, mn, pos)
		}
	}
}

func TestMinimizerWindowPicksSmallestAllowedCanonicalWindow(t *testing.T) {
	seq := "GCTAGGCATCGA"
	m := 4
	km, err := Encode([]byte(seq))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, gotPos := MinimizerWindow(km, m)

	var wantCode uint64
	wantPos := -1
	wantSet := false
	for i := 0; i+m <= len(seq); i++ {
		window := seq[i : i+m]
		if isAADisallowed([]byte(window)) {
			continue
		}
		code, ok := encodeSmall([]byte(window))
		if !ok {
			continue
		}
		canon := canonicalSmall(code, m)
		if !wantSet || canon < wantCode {
			wantCode, wantPos, wantSet = canon, i, true
		}
	}
	if !wantSet {
		t.Fatalf("test setup produced no allowed window")
	}
	if uint64(got) != wantCode || gotPos != wantPos {
		t.Errorf("MinimizerWindow = (%d, %d), want (%d, %d)", got, gotPos, wantCode, wantPos)
	}
}

func TestMinimStringRoundTrip(t *testing.T) {
	m := 6
	window := "ACGTAC"
	code, ok := encodeSmall([]byte(window))
	if !ok {
		t.Fatalf("encodeSmall(%q) failed", window)
	}
	mn := Minim(code)
	if got := mn.String(m); got != window {
		t.Errorf("Minim.String() = %q, want %q", got, window)
	}
}

func TestMinimStringDefaultMinimizer(t *testing.T) {
	if got := DefaultMinimizer.String(4); got != "*" {
		t.Errorf("DefaultMinimizer.String() = %q, want \"*\"", got)
	}
}
