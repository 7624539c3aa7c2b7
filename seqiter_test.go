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

func TestSliceSequenceReaderYieldsThenEOF(t *testing.T) {
	seqs := [][]byte{[]byte("ACGT"), []byte("TTTT")}
	r := NewSliceSequenceReader(seqs)
	for i, want := range seqs {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next() %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Next() %d = %q, want %q", i, got, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after exhausting sequences, got %v", err)
	}
}

func TestSuperkSplitterProcessAll(t *testing.T) {
	k, m := 8, 4
	pm := singlePartitionMap(m)
	var buf bytes.Buffer
	writers := []*SuperkBlockWriter{NewSuperkBlockWriter(&buf, k, false)}
	s := NewSuperkSplitter(k, m, pm, writers)

	r := NewSliceSequenceReader([][]byte{
		[]byte("ACGTACGTACGT"),
		[]byte("TTTTGGGGCCCCAAAA"),
	})
	if err := s.ProcessAll(r); err != nil {
		t.Fatalf("process all: %v", err)
	}
	infos, err := s.Close(func(p int) (int64, error) { return 0, nil })
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	want := uint64((12 - k + 1) + (16 - k + 1))
	if infos[0].NumKmers != want {
		t.Errorf("NumKmers = %d, want %d", infos[0].NumKmers, want)
	}
}
