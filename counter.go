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
	"io"
	"sort"

	"github.com/twotwotwo/sorts"
	"github.com/twotwotwo/sorts/sortutil"
)

// PartitionCounter handles one (sample, partition) task: it reads a
// superk file, reconstructs every k-mer, aggregates counts, and emits a
// sorted per-partition count file under an abundance-min filter.
type PartitionCounter struct {
	K, M         int
	Hasher       Hasher
	Seed         uint64
	W            uint64 // hash window size (total_hash_space / P)
	Partition    int
	Mode         CountMode
	Strategy     CountingStrategy
	AbundanceMin uint32
	MaxC         uint32
	Width        CountWidth
	Histogram    *Histogram // optional; nil disables histogram emission
}

type kmerCount struct {
	km    Kmer
	count uint64
}

type kmerCountSlice []kmerCount

func (s kmerCountSlice) Len() int      { return len(s) }
func (s kmerCountSlice) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s kmerCountSlice) Less(i, j int) bool { return s[i].km.Compare(s[j].km) < 0 }

// Count reads every super-k-mer from r, reconstructs the k-mers it
// encodes, and aggregates true counts in memory. The dense-hash-map vs
// sort-then-aggregate choice only affects how the
// aggregation below is performed; both produce the same multiset.
func (pc *PartitionCounter) Count(r *SuperkBlockReader) (map[string]kmerCount, []kmerCount, error) {
	switch pc.Strategy {
	case StrategySort:
		s, err := pc.countBySort(r)
		return nil, s, err
	default:
		m, err := pc.countByHashMap(r)
		return m, nil, err
	}
}

// countByHashMap aggregates with a Go map keyed by the k-mer's decoded
// string form (Go's built-in map is itself open-addressing internally).
func (pc *PartitionCounter) countByHashMap(r *SuperkBlockReader) (map[string]kmerCount, error) {
	counts := make(map[string]kmerCount)
	for {
		sk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, km := range reconstructKmers(sk, pc.K) {
			canon := Canonical(km)
			key := canon.String()
			entry := counts[key]
			entry.km = canon
			entry.count++
			counts[key] = entry
		}
	}
	return counts, nil
}

// countBySort packs every reconstructed canonical k-mer into a slice and
// sorts it with twotwotwo/sorts' parallel quicksort, then aggregates
// equal runs.
func (pc *PartitionCounter) countBySort(r *SuperkBlockReader) ([]kmerCount, error) {
	var flat []Kmer
	for {
		sk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, km := range reconstructKmers(sk, pc.K) {
			flat = append(flat, Canonical(km))
		}
	}
	sorts.Quicksort(kmerSortSlice(flat))

	out := make([]kmerCount, 0, len(flat))
	for i := 0; i < len(flat); {
		j := i + 1
		for j < len(flat) && flat[j].Equal(flat[i]) {
			j++
		}
		out = append(out, kmerCount{km: flat[i], count: uint64(j - i)})
		i = j
	}
	return out, nil
}

type kmerSortSlice []Kmer

func (s kmerSortSlice) Len() int           { return len(s) }
func (s kmerSortSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s kmerSortSlice) Less(i, j int) bool { return s[i].Compare(s[j]) < 0 }

// reconstructKmers expands one super-k-mer back into every k-mer it
// represents.
func reconstructKmers(sk SuperKmer, k int) []Kmer {
	out := make([]Kmer, 0, sk.Count)
	for i := 0; i < int(sk.Count); i++ {
		km, err := Encode(sk.Nucleotides[i : i+k])
		if err != nil {
			continue
		}
		out = append(out, km)
	}
	return out
}

// FilterAndEmitKmer applies abundance_min / MAX_C / histogram and
// writes the surviving records to w, in ascending k-mer order. Hash mode
// uses FilterAndEmitHash instead.
func (pc *PartitionCounter) FilterAndEmitKmer(entries []kmerCount, w *KmerFileWriter) error {
	sort.Sort(kmerCountSlice(entries))
	for _, e := range entries {
		if pc.Histogram != nil {
			pc.Histogram.Inc(e.count)
		}
		if e.count < uint64(pc.AbundanceMin) {
			continue
		}
		if err := w.Write(e.km, saturate(e.count, pc.MaxC)); err != nil {
			return err
		}
	}
	return nil
}

// FilterAndEmitHash hashes every surviving (post-filter) k-mer into the
// partition's hash window and emits a hash partition file. Hash mode
// accepts lossy collisions: two distinct k-mers landing on the same hash
// sum their counts.
func (pc *PartitionCounter) FilterAndEmitHash(entries []kmerCount, w *HashFileWriter) error {
	merged := make(map[uint64]uint64, len(entries))
	for _, e := range entries {
		if pc.Histogram != nil {
			pc.Histogram.Inc(e.count)
		}
		if e.count < uint64(pc.AbundanceMin) {
			continue
		}
		h := pc.Hasher.Hash(e.km, pc.Seed)
		wh := WindowHash(h, pc.Partition, pc.W)
		merged[wh] += e.count
	}
	keys := make([]uint64, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sortutil.Uint64s(keys)
	for _, k := range keys {
		if err := w.Write(k, saturate(merged[k], pc.MaxC)); err != nil {
			return err
		}
	}
	return nil
}

// FilterAndEmitVector builds the vector-mode bitset: bit
// (hash - p*W) set iff the surviving count >= abundance_min(s).
func (pc *PartitionCounter) FilterAndEmitVector(entries []kmerCount) BitVector {
	v := NewBitVector(pc.W)
	for _, e := range entries {
		if pc.Histogram != nil {
			pc.Histogram.Inc(e.count)
		}
		if e.count < uint64(pc.AbundanceMin) {
			continue
		}
		h := pc.Hasher.Hash(e.km, pc.Seed)
		wh := WindowHash(h, pc.Partition, pc.W)
		idx := wh - uint64(pc.Partition)*pc.W
		if idx < pc.W {
			v.Set(idx)
		}
	}
	return v
}
