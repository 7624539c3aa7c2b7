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

// Histogram is the per-sample abundance histogram: unique/total arrays
// over [lower, upper] plus four out-of-bounds counters.
type Histogram struct {
	Lower, Upper uint64
	Unique       []uint64 // Unique[c-Lower] = #distinct k-mers with true count c
	Total        []uint64 // Total[c-Lower]  = c * Unique[c-Lower]

	UniqCount  uint64
	TotalCount uint64

	OOBLowerUnique uint64
	OOBUpperUnique uint64
	OOBLowerTotal  uint64
	OOBUpperTotal  uint64
}

// NewHistogram allocates H(s) for the inclusive range [lower, upper].
func NewHistogram(lower, upper uint64) *Histogram {
	n := upper - lower + 1
	return &Histogram{
		Lower:  lower,
		Upper:  upper,
		Unique: make([]uint64, n),
		Total:  make([]uint64, n),
	}
}

// Inc records one k-mer's true count before any abundance_min
// filtering is applied.
func (h *Histogram) Inc(count uint64) {
	h.UniqCount++
	h.TotalCount += count
	switch {
	case count < h.Lower:
		h.OOBLowerUnique++
		h.OOBLowerTotal += count
	case count > h.Upper:
		h.OOBUpperUnique++
		h.OOBUpperTotal += count
	default:
		h.Unique[count-h.Lower]++
		h.Total[count-h.Lower] += count
	}
}

// Conserved checks the conservation invariant:
// sum(c*unique[c]) + oob_total == total k-mer count before threshold.
func (h *Histogram) Conserved() bool {
	var sum uint64
	for i, u := range h.Unique {
		sum += uint64(h.Lower+uint64(i)) * u
	}
	sum += h.OOBLowerTotal + h.OOBUpperTotal
	return sum == h.TotalCount
}

// AutoCutoff is the smoothing-based solid-cutoff heuristic: detect the
// first local minimum of a triangularly smoothed histogram following the
// first increase, cap it at the abundance where the cumulative
// eliminated-occurrence ratio reaches 25%, and report that abundance as
// the solid threshold, the smoothed running maximum past it as the
// first coverage peak, and the sum of unique counts at or above the
// cutoff as the solid k-mer count. Follows GATB's
// Histogram::compute_threshold (weights 0.2/0.6/0.2, elimination-ratio
// ceiling, falling back to minAuto when the curve never turns upward).
func (h *Histogram) AutoCutoff(minAuto uint64) (cutoff, firstPeak uint64, nbSolid uint64) {
	n := len(h.Unique)
	if n < 2 {
		return minAuto, 0, h.sumFrom(minAuto)
	}
	smoothed := make([]float64, n)
	at := func(i int) float64 {
		if i < 0 || i >= n {
			return 0
		}
		return float64(h.Unique[i])
	}
	smoothed[0] = 0.6*at(0) + 0.4*at(1)
	for i := 1; i < n-1; i++ {
		smoothed[i] = 0.2*at(i-1) + 0.6*at(i) + 0.2*at(i+1)
	}
	smoothed[n-1] = 0.6*at(n-1) + 0.4*at(n-2)

	indexFirstIncrease := -1
	indexMaxAfter := -1
	var maxVal float64
	for i := 1; i < n; i++ {
		if indexFirstIncrease == -1 && smoothed[i-1] < smoothed[i] {
			indexFirstIncrease = i - 1
		}
		if indexFirstIncrease >= 0 && smoothed[i] > maxVal {
			maxVal = smoothed[i]
			indexMaxAfter = i
		}
	}
	if indexFirstIncrease == -1 {
		return minAuto, 0, h.sumFrom(minAuto)
	}

	minVal := smoothed[indexFirstIncrease]
	indexMin := indexFirstIncrease
	for i := indexFirstIncrease; i <= indexMaxAfter; i++ {
		if smoothed[i] < minVal {
			minVal = smoothed[i]
			indexMin = i
		}
	}

	cutoff = h.Lower + uint64(indexMin)

	// Elimination-ratio ceiling: the smallest abundance whose cumulative
	// eliminated-occurrence share reaches 25% caps the smoothing-based
	// cutoff, so a noisy minimum never discards more than a quarter of
	// all occurrences. Applied before the minAuto floor.
	maxCutoff := h.Upper + 1
	var sumAll uint64
	for _, t := range h.Total {
		sumAll += t
	}
	sumAll += h.OOBLowerTotal + h.OOBUpperTotal
	if sumAll > 0 {
		sumElim := h.OOBLowerTotal
		for i, t := range h.Total {
			sumElim += t
			if float64(sumElim)/float64(sumAll) >= 0.25 {
				maxCutoff = h.Lower + uint64(i) + 1
				break
			}
		}
	}
	if cutoff > maxCutoff {
		cutoff = maxCutoff
	}

	if cutoff < minAuto {
		cutoff = minAuto
	}
	firstPeak = h.Lower + uint64(indexMaxAfter)
	nbSolid = h.sumFrom(cutoff)
	return cutoff, firstPeak, nbSolid
}

// CumulativeCutoff returns the smallest abundance whose cumulative
// unique count, accumulated upward from Lower, exceeds fraction p of the
// sample's distinct k-mers. Returns Lower when the histogram is empty.
func (h *Histogram) CumulativeCutoff(p float64) uint64 {
	if h.UniqCount == 0 {
		return h.Lower
	}
	target := p * float64(h.UniqCount)
	cum := float64(h.OOBLowerUnique)
	for i, u := range h.Unique {
		cum += float64(u)
		if cum > target {
			return h.Lower + uint64(i)
		}
	}
	return h.Upper
}

func (h *Histogram) sumFrom(cutoff uint64) uint64 {
	var sum uint64
	for i, u := range h.Unique {
		if h.Lower+uint64(i) >= cutoff {
			sum += u
		}
	}
	sum += h.OOBUpperUnique
	return sum
}
