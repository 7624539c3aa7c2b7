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

// buildSuperkFile runs a real SuperkSplitter over seq and returns the
// resulting single-partition superk file bytes, so counter tests exercise
// the real splitter -> counter boundary instead of hand-built fixtures.
func buildSuperkFile(t *testing.T, k, m int, seq []byte) []byte {
	t.Helper()
	pm := singlePartitionMap(m)
	var buf bytes.Buffer
	writers := []*SuperkBlockWriter{NewSuperkBlockWriter(&buf, k, false)}
	s := NewSuperkSplitter(k, m, pm, writers)
	if err := s.ProcessSequence(seq); err != nil {
		t.Fatalf("process sequence: %v", err)
	}
	if _, err := s.Close(func(p int) (int64, error) { return 0, nil }); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func countersAgree(t *testing.T, k, m int, seq []byte) {
	t.Helper()
	raw := buildSuperkFile(t, k, m, seq)

	hasher, err := NewHasher(HashXXHash)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	r1, err := NewSuperkBlockReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	pcHash := &PartitionCounter{K: k, M: m, Hasher: hasher, Strategy: StrategyHashMap, MaxC: 255, Width: Count8}
	hashMap, _, err := pcHash.Count(r1)
	if err != nil {
		t.Fatalf("count (hashmap): %v", err)
	}

	r2, err := NewSuperkBlockReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	pcSort := &PartitionCounter{K: k, M: m, Hasher: hasher, Strategy: StrategySort, MaxC: 255, Width: Count8}
	_, sorted, err := pcSort.Count(r2)
	if err != nil {
		t.Fatalf("count (sort): %v", err)
	}

	if len(hashMap) != len(sorted) {
		t.Fatalf("hashmap strategy produced %d distinct k-mers, sort strategy produced %d", len(hashMap), len(sorted))
	}
	for _, e := range sorted {
		entry, ok := hashMap[e.km.String()]
		if !ok {
			t.Fatalf("k-mer %s present in sort-strategy output but not hashmap-strategy output", e.km.String())
		}
		if entry.count != e.count {
			t.Errorf("k-mer %s: hashmap count %d != sort count %d", e.km.String(), entry.count, e.count)
		}
	}
}

func TestPartitionCounterStrategiesAgree(t *testing.T) {
	countersAgree(t, 8, 4, []byte("ACGTACGTACGTACGTACGTACGTACGT"))
}

func TestPartitionCounterFilterAndEmitKmer(t *testing.T) {
	k, m := 8, 4
	raw := buildSuperkFile(t, k, m, []byte("ACGTACGTACGTACGT"))
	r, err := NewSuperkBlockReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	hist := NewHistogram(1, 100)
	pc := &PartitionCounter{K: k, M: m, Strategy: StrategySort, AbundanceMin: 1, MaxC: 255, Width: Count8, Histogram: hist}
	_, sorted, err := pc.Count(r)
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	var out bytes.Buffer
	w := NewKmerFileWriter(&out, k, Count8, false)
	if err := pc.FilterAndEmitKmer(sorted, w); err != nil {
		t.Fatalf("filter and emit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if !hist.Conserved() {
		t.Errorf("histogram not conserved after FilterAndEmitKmer")
	}

	reader, err := NewKmerFileReader(&out)
	if err != nil {
		t.Fatalf("new kmer file reader: %v", err)
	}
	var n int
	for {
		if _, err := reader.Next(); err != nil {
			break
		}
		n++
	}
	if n != len(sorted) {
		t.Errorf("wrote %d records, want %d (AbundanceMin=1 keeps everything)", n, len(sorted))
	}
}

func TestPartitionCounterAbundanceMinFilters(t *testing.T) {
	k, m := 8, 4
	raw := buildSuperkFile(t, k, m, []byte("ACGTACGTACGTACGTACGTACGT"))
	r, err := NewSuperkBlockReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	pc := &PartitionCounter{K: k, M: m, Strategy: StrategySort, AbundanceMin: 1000, MaxC: 255, Width: Count8}
	_, sorted, err := pc.Count(r)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	var out bytes.Buffer
	w := NewKmerFileWriter(&out, k, Count8, false)
	if err := pc.FilterAndEmitKmer(sorted, w); err != nil {
		t.Fatalf("filter and emit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reader, err := NewKmerFileReader(&out)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if _, err := reader.Next(); err == nil {
		t.Fatalf("expected no records to survive an unreachable abundance_min")
	}
}
