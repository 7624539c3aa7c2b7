// Copyright © 2018 Wei Shen <shenwei356@gmail.com>
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

import (
	"bytes"
	"testing"
)

func TestHistFileRoundTrip(t *testing.T) {
	h := NewHistogram(1, 10)
	for _, c := range []uint64{1, 2, 3, 10, 30, 0, 11, 5, 5, 5} {
		h.Inc(c)
	}
	var buf bytes.Buffer
	if err := WriteHistFile(&buf, h); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadHistFile(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Lower != h.Lower || got.Upper != h.Upper {
		t.Errorf("bounds mismatch: got [%d,%d], want [%d,%d]", got.Lower, got.Upper, h.Lower, h.Upper)
	}
	if got.UniqCount != h.UniqCount || got.TotalCount != h.TotalCount {
		t.Errorf("counts mismatch: got (%d,%d), want (%d,%d)", got.UniqCount, got.TotalCount, h.UniqCount, h.TotalCount)
	}
	if len(got.Unique) != len(h.Unique) || len(got.Total) != len(h.Total) {
		t.Fatalf("array length mismatch")
	}
	for i := range h.Unique {
		if got.Unique[i] != h.Unique[i] || got.Total[i] != h.Total[i] {
			t.Errorf("bucket %d mismatch: got (%d,%d), want (%d,%d)", i, got.Unique[i], got.Total[i], h.Unique[i], h.Total[i])
		}
	}
	if !got.Conserved() {
		t.Errorf("round-tripped histogram not conserved")
	}
}
