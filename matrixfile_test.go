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
	"errors"
	"testing"
)

func TestCountMatrixWriterKmerMode(t *testing.T) {
	km1, _ := Encode([]byte("AAAACCCC"))
	km2, _ := Encode([]byte("ACGTACGT"))
	var buf bytes.Buffer
	mw := NewCountMatrixWriter(&buf, 3, Count8, false, 8)
	for _, row := range []MatrixRow{
		{Kmer: km1, Counts: []uint32{1, 0, 7}},
		{Kmer: km2, Counts: []uint32{0, 255, 2}},
	} {
		if err := mw.WriteRow(row); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicMatrix)); err != nil {
		t.Fatalf("header: %v", err)
	}
	pre := make([]byte, 7) // hash flag, width, k, n
	if _, err := r.Read(pre); err != nil {
		t.Fatalf("preamble: %v", err)
	}
	if pre[0] != 0 {
		t.Errorf("hash flag = %d, want 0", pre[0])
	}
	if CountWidth(pre[1]) != Count8 {
		t.Errorf("width = %d, want %d", pre[1], Count8)
	}
	if pre[2] != 8 {
		t.Errorf("k = %d, want 8", pre[2])
	}
	if n := be.Uint32(pre[3:]); n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	// each record: one 8-byte key word + 3 one-byte counts
	rec := make([]byte, 11)
	if _, err := r.Read(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if be.Uint64(rec) != km1.Words[0] {
		t.Errorf("key = %#x, want %#x", be.Uint64(rec), km1.Words[0])
	}
	if rec[8] != 1 || rec[9] != 0 || rec[10] != 7 {
		t.Errorf("counts = %v, want [1 0 7]", rec[8:])
	}
	if _, err := r.Read(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec[8] != 0 || rec[9] != 255 || rec[10] != 2 {
		t.Errorf("counts = %v, want [0 255 2]", rec[8:])
	}
	if r.Len() != 0 {
		t.Errorf("%d trailing bytes", r.Len())
	}
}

func TestCountMatrixWriterHashMode(t *testing.T) {
	var buf bytes.Buffer
	mw := NewCountMatrixWriter(&buf, 2, Count16, true, 0)
	if err := mw.WriteRow(MatrixRow{Key: 0xdeadbeef, Counts: []uint32{3, 65535}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicMatrix)); err != nil {
		t.Fatalf("header: %v", err)
	}
	pre := make([]byte, 7)
	if _, err := r.Read(pre); err != nil {
		t.Fatalf("preamble: %v", err)
	}
	if pre[0] != 1 {
		t.Errorf("hash flag = %d, want 1", pre[0])
	}
	rec := make([]byte, 12) // u64 key + 2 u16 counts
	if _, err := r.Read(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if be.Uint64(rec) != 0xdeadbeef {
		t.Errorf("key = %#x, want 0xdeadbeef", be.Uint64(rec))
	}
	if be.Uint16(rec[8:]) != 3 || be.Uint16(rec[10:]) != 65535 {
		t.Errorf("counts = %v, want [3 65535]", rec[8:])
	}
}

func TestCountMatrixRoundTrip(t *testing.T) {
	km1, _ := Encode([]byte("AAAACCCCGG"))
	km2, _ := Encode([]byte("ACGTACGTAC"))
	rows := []MatrixRow{
		{Kmer: km1, Counts: []uint32{9, 0}},
		{Kmer: km2, Counts: []uint32{0, 300}},
	}
	var buf bytes.Buffer
	mw := NewCountMatrixWriter(&buf, 2, Count16, false, 10)
	for _, row := range rows {
		if err := mw.WriteRow(row); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	mr, err := NewCountMatrixReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if mr.N != 2 || mr.K != 10 || mr.HashMode || mr.Width != Count16 {
		t.Fatalf("preamble: N=%d K=%d hash=%v width=%d", mr.N, mr.K, mr.HashMode, mr.Width)
	}
	for i, want := range rows {
		got, err := mr.Next()
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if !got.Kmer.Equal(want.Kmer) {
			t.Errorf("row %d key = %s, want %s", i, got.Kmer, want.Kmer)
		}
		for s := range want.Counts {
			if got.Counts[s] != want.Counts[s] {
				t.Errorf("row %d counts[%d] = %d, want %d", i, s, got.Counts[s], want.Counts[s])
			}
		}
	}
	if _, err := mr.Next(); err == nil {
		t.Fatal("expected EOF after last row")
	}
}

func TestCountMatrixWriterCountLenMismatch(t *testing.T) {
	var buf bytes.Buffer
	mw := NewCountMatrixWriter(&buf, 4, Count8, true, 0)
	err := mw.WriteRow(MatrixRow{Key: 1, Counts: []uint32{1, 2}})
	if err == nil {
		t.Fatal("expected error for wrong counts length")
	}
	var e *Error
	if !errors.As(err, &e) || e.Kind != Logic {
		t.Fatalf("kind = %v, want Logic", err)
	}
	// the writer is now poisoned
	if err2 := mw.WriteRow(MatrixRow{Key: 2, Counts: []uint32{1, 2, 3, 4}}); err2 == nil {
		t.Fatal("expected sticky error after mismatch")
	}
}

func TestPresenceMatrixWriter(t *testing.T) {
	km, _ := Encode([]byte("ACGTACGT"))
	var buf bytes.Buffer
	pw := NewPresenceMatrixWriter(&buf, 3, false, 8)
	if err := pw.WriteRow(MatrixRow{Kmer: km, Counts: []uint32{5, 0, 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicPAMatrix)); err != nil {
		t.Fatalf("header: %v", err)
	}
	pre := make([]byte, 6) // hash flag, k, n
	if _, err := r.Read(pre); err != nil {
		t.Fatalf("preamble: %v", err)
	}
	if pre[0] != 0 || pre[1] != 8 {
		t.Errorf("preamble = %v", pre[:2])
	}
	rec := make([]byte, 16) // key word + one 64-bit bitset word
	if _, err := r.Read(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	bits := be.Uint64(rec[8:])
	if bits != 0b101 {
		t.Errorf("bits = %#b, want 101", bits)
	}
}

func TestBitMatrixWriterRowMajor(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBitMatrixWriter(&buf, 4, 3, false)
	rows := [][]bool{
		{true, false, false},
		{false, false, false},
		{false, true, true},
		{true, true, false},
	}
	for i, present := range rows {
		if err := bw.WriteHashRow(uint64(i), present); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicBitMatrix)); err != nil {
		t.Fatalf("header: %v", err)
	}
	pre := make([]byte, 13) // transpose flag, nHash u64, n u32
	if _, err := r.Read(pre); err != nil {
		t.Fatalf("preamble: %v", err)
	}
	if pre[0] != 0 {
		t.Errorf("transpose flag = %d, want 0", pre[0])
	}
	if w := be.Uint64(pre[1:]); w != 4 {
		t.Errorf("nHash = %d, want 4", w)
	}
	if n := be.Uint32(pre[9:]); n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	want := []uint64{0b001, 0, 0b110, 0b011}
	word := make([]byte, 8)
	for i, w := range want {
		if _, err := r.Read(word); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if got := be.Uint64(word); got != w {
			t.Errorf("row %d = %#b, want %#b", i, got, w)
		}
	}
	if r.Len() != 0 {
		t.Errorf("%d trailing bytes", r.Len())
	}
}

func TestBitMatrixWriterTranspose(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBitMatrixWriter(&buf, 16, 2, true)
	// sample 0 holds hashes {0, 9}, sample 1 holds {9, 15}
	if err := bw.WriteHashRow(0, []bool{true, false}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := bw.WriteHashRow(9, []bool{true, true}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := bw.WriteHashRow(15, []bool{false, true}); err != nil {
		t.Fatalf("row: %v", err)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicBitMatrix)); err != nil {
		t.Fatalf("header: %v", err)
	}
	pre := make([]byte, 13)
	if _, err := r.Read(pre); err != nil {
		t.Fatalf("preamble: %v", err)
	}
	if pre[0] != 1 {
		t.Errorf("transpose flag = %d, want 1", pre[0])
	}
	// two bytes per sample row (16 hashes)
	row := make([]byte, 2)
	if _, err := r.Read(row); err != nil {
		t.Fatalf("sample 0: %v", err)
	}
	if got := [2]byte{row[0], row[1]}; got != [2]byte{1 << 0, 1 << (9 - 8)} {
		t.Errorf("sample 0 = %v", got)
	}
	if _, err := r.Read(row); err != nil {
		t.Fatalf("sample 1: %v", err)
	}
	if got := [2]byte{row[0], row[1]}; got != [2]byte{0, 1<<(9-8) | 1<<(15-8)} {
		t.Errorf("sample 1 = %v", got)
	}
	if r.Len() != 0 {
		t.Errorf("%d trailing bytes", r.Len())
	}
}
