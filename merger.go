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

	"github.com/clausecker/pospop"
)

// cursorState tracks one sample's position within a partition merge.
type cursorState int

const (
	csInitial cursorState = iota
	csReady
	csEmpty
	csDone
)

// mergeCursor tracks one sample's position in its (s, p) kmer-file stream.
type mergeCursor struct {
	state cursorState
	km    Kmer
	count uint32
	r     *KmerFileReader
}

// open transitions Initial -> Empty (nil reader: the (s, p) file is
// missing, e.g. the sample had no k-mers routed to this partition), Done
// (the file holds no records) or Ready(key, count). Empty and Done are
// both exhausted states to done().
func (c *mergeCursor) open() error {
	if c.r == nil {
		c.state = csEmpty
		return nil
	}
	return c.advance()
}

// advance transitions Ready(key, count) -> Ready(key', count') or Done.
func (c *mergeCursor) advance() error {
	rec, err := c.r.Next()
	if err == io.EOF {
		c.state = csDone
		return nil
	}
	if err != nil {
		return err
	}
	c.km, c.count = rec.Kmer, rec.Count
	c.state = csReady
	return nil
}

// done reports whether the cursor can no longer contribute a row.
func (c *mergeCursor) done() bool { return c.state == csDone || c.state == csEmpty }

// SoftMinFunc returns the per-sample soft threshold, given the sample
// index.
type SoftMinFunc func(sample int) uint32

// SoftMinSingle applies one threshold to every sample.
func SoftMinSingle(v uint32) SoftMinFunc {
	return func(int) uint32 { return v }
}

// SoftMinPerSample resolves thresholds from a fixed per-sample table,
// indexed by FoF order. Samples beyond the table get threshold 0.
func SoftMinPerSample(vals []uint32) SoftMinFunc {
	return func(s int) uint32 {
		if s < 0 || s >= len(vals) {
			return 0
		}
		return vals[s]
	}
}

// SoftMinFromHistograms derives sample s's threshold from its abundance
// histogram: the abundance at which the cumulative unique count exceeds
// fraction p of the sample's distinct k-mers. Every threshold is resolved
// up front into a fixed per-sample slot. A nil histogram yields 0.
func SoftMinFromHistograms(hists []*Histogram, p float64) SoftMinFunc {
	vals := make([]uint32, len(hists))
	for s, h := range hists {
		if h != nil {
			vals[s] = uint32(h.CumulativeCutoff(p))
		}
	}
	return SoftMinPerSample(vals)
}

// MergePolicy bundles the three filters applied to every assembled row,
// in order.
type MergePolicy struct {
	SoftMin    SoftMinFunc
	Recurrence int     // r: drop if fewer than r samples survive soft thresholding
	ShareMin   float64 // sigma in [0,1]: drop if nonzero-fraction < sigma
}

// Apply runs the three-stage merge policy in place on counts and reports
// whether the row survives.
func (mp *MergePolicy) Apply(counts []uint32) bool {
	nonzero := 0
	for s := range counts {
		if mp.SoftMin != nil && counts[s] < mp.SoftMin(s) {
			counts[s] = 0
		}
		if counts[s] > 0 {
			nonzero++
		}
	}
	if mp.Recurrence > 0 && nonzero < mp.Recurrence {
		return false
	}
	if mp.ShareMin > 0 {
		share := float64(nonzero) / float64(len(counts))
		if share < mp.ShareMin {
			return false
		}
	}
	return true
}

// PartitionMerger handles one partition merge task, performing an N-way
// sorted merge of every sample's (s, p) kmer file into a single matrix
// row stream, in key-ascending order.
type PartitionMerger struct {
	K         int
	Partition int
	Policy    MergePolicy
	cursors   []*mergeCursor
}

// NewPartitionMerger builds a merger over one reader per sample (nil
// entries mean the (s, p) file is missing for that sample, and are
// treated as an empty count file).
func NewPartitionMerger(k, partition int, readers []*KmerFileReader, policy MergePolicy) (*PartitionMerger, error) {
	pm := &PartitionMerger{K: k, Partition: partition, Policy: policy, cursors: make([]*mergeCursor, len(readers))}
	for i, r := range readers {
		c := &mergeCursor{r: r}
		if err := c.open(); err != nil {
			return nil, err
		}
		pm.cursors[i] = c
	}
	return pm, nil
}

// minKey finds the smallest key among non-Done cursors and reports
// whether any remain.
func (pm *PartitionMerger) minKey() (Kmer, bool) {
	var min Kmer
	found := false
	for _, c := range pm.cursors {
		if c.done() {
			continue
		}
		if !found || c.km.Compare(min) < 0 {
			min = c.km
			found = true
		}
	}
	return min, found
}

// Next assembles the next merged row. Returns
// io.EOF once every cursor is Done.
func (pm *PartitionMerger) Next() (Kmer, []uint32, error) {
	kstar, found := pm.minKey()
	if !found {
		return Kmer{}, nil, io.EOF
	}
	counts := make([]uint32, len(pm.cursors))
	for i, c := range pm.cursors {
		if c.state == csReady && c.km.Equal(kstar) {
			counts[i] = c.count
			if err := c.advance(); err != nil {
				return Kmer{}, nil, err
			}
		}
	}
	return kstar, counts, nil
}

// MergeAll drains the merger, applies the merge policy to every assembled
// row, and emits surviving rows via emit. The same inputs, FoF order,
// partition map and policy always produce the same output, since keys
// are strictly ascending per cursor and counts
// are indexed by sample id rather than by cursor arrival order).
func (pm *PartitionMerger) MergeAll(emit func(km Kmer, counts []uint32) error) error {
	for {
		km, counts, err := pm.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !pm.Policy.Apply(counts) {
			continue
		}
		if err := emit(km, counts); err != nil {
			return err
		}
	}
}

// SampleColumnTotals computes, for packed presence rows (one []byte per
// merged row, bit j of byte j/8 = sample j present, LSB first), the
// number of rows each sample is set in. It uses clausecker/pospop's
// positional popcount kernel, accumulating per-bit-position counts
// byte-offset by byte-offset across every row, rather than a per-bit Go
// loop.
//
// pospop.Count8's counts[i] tallies bit 1<<i, so sample j's count lives
// at acc[j/8][j%8].
func SampleColumnTotals(rows [][]byte, nSamples int) []uint32 {
	rowBytes := (nSamples + 7) / 8
	acc := make([][8]int, rowBytes)
	for _, row := range rows {
		for b := 0; b < rowBytes && b < len(row); b++ {
			pospop.Count8(&acc[b], row[b:b+1])
		}
	}
	out := make([]uint32, nSamples)
	for j := 0; j < nSamples; j++ {
		out[j] = uint32(acc[j/8][j%8])
	}
	return out
}
