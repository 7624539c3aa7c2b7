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

func TestHashFileWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewHashFileWriter(&buf, Count32)
	records := []HashRecord{{Hash: 10, Count: 1}, {Hash: 20, Count: 2}, {Hash: 1000, Count: 3}}
	for _, rec := range records {
		if err := w.Write(rec.Hash, rec.Count); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadHashFile(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i, rec := range got {
		if rec != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, rec, records[i])
		}
	}
}

func TestHashFileWriterRejectsNonAscending(t *testing.T) {
	var buf bytes.Buffer
	w := NewHashFileWriter(&buf, Count8)
	if err := w.Write(5, 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(5, 1); err == nil {
		t.Fatalf("expected error on duplicate/non-ascending hash")
	}
}

func TestHashFileRejectsCountBeyondWidth(t *testing.T) {
	// Counting saturates at MAX_C before anything reaches the writer, so
	// a count that overflows the file's declared slot width can only
	// mean a mismatched or corrupt file.
	var buf bytes.Buffer
	w := NewHashFileWriter(&buf, Count8)
	if err := w.Write(42, 300); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := ReadHashFile(&buf); err == nil {
		t.Fatal("expected error for count 300 in a 1-byte count slot")
	}
}

func TestHashFileEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewHashFileWriter(&buf, Count8)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, err := ReadHashFile(&buf)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records, want 0", len(got))
	}
}
