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
	"io"
	"testing"
)

func mustEncode(t *testing.T, s string) Kmer {
	t.Helper()
	km, err := Encode([]byte(s))
	if err != nil {
		t.Fatalf("Encode(%q): %v", s, err)
	}
	return km
}

func TestKmerFileWriterReader(t *testing.T) {
	k := 12
	seqs := []string{
		"AAAAAAAAAAAA",
		"AAAAAAAAAAAC",
		"CCCCCCCCCCCC",
		"GGGGGGGGGGGG",
	}
	var kms []Kmer
	for _, s := range seqs {
		kms = append(kms, mustEncode(t, s))
	}

	var buf bytes.Buffer
	w := NewKmerFileWriter(&buf, k, Count16, false)
	for i, km := range kms {
		if err := w.Write(km, uint32(i+1)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := NewKmerFileReader(&buf)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if r.K != k {
		t.Fatalf("K = %d, want %d", r.K, k)
	}
	var got []KmerRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != len(kms) {
		t.Fatalf("got %d records, want %d", len(got), len(kms))
	}
	for i, rec := range got {
		if !rec.Kmer.Equal(kms[i]) {
			t.Errorf("record %d: kmer mismatch", i)
		}
		if rec.Count != uint32(i+1) {
			t.Errorf("record %d: count = %d, want %d", i, rec.Count, i+1)
		}
	}
}

func TestKmerFileCompressedRoundTrip(t *testing.T) {
	k := 12
	kms := []Kmer{
		mustEncode(t, "AAAAAAAAAAAC"),
		mustEncode(t, "ACACACACACAC"),
		mustEncode(t, "CCCCCCCCCCCC"),
	}

	var buf bytes.Buffer
	w := NewKmerFileWriter(&buf, k, Count8, true)
	for i, km := range kms {
		if err := w.Write(km, uint32(i+1)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := NewKmerFileReader(&buf)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	for i, want := range kms {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		if !rec.Kmer.Equal(want) {
			t.Errorf("record %d: kmer mismatch", i)
		}
		if rec.Count != uint32(i+1) {
			t.Errorf("record %d: count = %d, want %d", i, rec.Count, i+1)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestKmerFileWriterRejectsNonAscending(t *testing.T) {
	k := 8
	var buf bytes.Buffer
	w := NewKmerFileWriter(&buf, k, Count8, false)
	a := mustEncode(t, "CCCCCCCC")
	b := mustEncode(t, "AAAAAAAA")
	if err := w.Write(a, 1); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := w.Write(b, 1); err == nil {
		t.Fatalf("expected error writing non-ascending key")
	}
}

func TestKmerFileWriterEmptyProducesValidHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewKmerFileWriter(&buf, 16, Count8, false)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	r, err := NewKmerFileReader(&buf)
	if err != nil {
		t.Fatalf("new reader on empty file: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF on empty file, got %v", err)
	}
}

func TestWidthFor(t *testing.T) {
	cases := []struct {
		maxC uint32
		want CountWidth
	}{
		{0, Count8}, {255, Count8}, {256, Count16}, {65535, Count16}, {65536, Count32},
	}
	for _, c := range cases {
		if got := WidthFor(c.maxC); got != c.want {
			t.Errorf("WidthFor(%d) = %d, want %d", c.maxC, got, c.want)
		}
	}
}

func TestSaturate(t *testing.T) {
	if got := saturate(300, 255); got != 255 {
		t.Errorf("saturate(300, 255) = %d, want 255", got)
	}
	if got := saturate(10, 255); got != 10 {
		t.Errorf("saturate(10, 255) = %d, want 10", got)
	}
}
