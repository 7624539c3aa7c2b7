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

// Minim is a canonical m-mer (m <= 15), packed in a uint64 the same way
// a single-word k-mer is packed (m never exceeds 32, so the single-word
// scheme is reused verbatim rather than routed through the multi-word
// Kmer type).
type Minim uint64

// DefaultMinimizer is the sentinel minimizer value: a
// k-mer whose every m-mer window is disallowed maps here instead, and is
// routed to a dedicated overflow partition.
const DefaultMinimizer Minim = ^Minim(0)

// encodeSmall packs an ACGT byte slice (len <= 32) into a uint64, high bit
// first, one 2-bit code per base.
func encodeSmall(s []byte) (uint64, bool) {
	var code uint64
	for i := range s {
		c, ok := base2bit(s[i])
		if !ok {
			return 0, false
		}
		code = (code << 2) | c
	}
	return code, true
}

func decodeSmall(code uint64, m int) []byte {
	out := make([]byte, m)
	for i := m - 1; i >= 0; i-- {
		out[i] = bit2base[code&3]
		code >>= 2
	}
	return out
}

func revcompSmall(code uint64, m int) uint64 {
	var c uint64
	for i := 0; i < m; i++ {
		c <<= 2
		c |= complementBase(code & 3)
		code >>= 2
	}
	return c
}

func canonicalSmall(code uint64, m int) uint64 {
	rc := revcompSmall(code, m)
	if rc < code {
		return rc
	}
	return code
}

// isAADisallowed reports whether the m-mer contains "AA" (two consecutive
// A bases) at a strictly interior position — i.e. not overlapping either
// the first or the last base of the window. This is the ASCII-level form
// of a packed-bit test equivalent to
// "((~(x|x>>2))>>1 & x) & ((1<<2(m-2))-1) & 0x55...55 == 0": both detect
// a 4-bit all-zero (AA, since A=00) cluster that doesn't touch either end
// of the window.
func isAADisallowed(mer []byte) bool {
	m := len(mer)
	for i := 0; i+1 < m; i++ {
		if mer[i] != 'A' || mer[i+1] != 'A' {
			continue
		}
		// allowed only if this AA pair touches a terminal position
		if i == 0 || i+1 == m-1 {
			continue
		}
		return true
	}
	return false
}

// MinimizerWindow finds the minimizer of a canonical k-mer: the
// lexicographically smallest *allowed* canonical m-mer among the k-m+1
// windows of km, plus its 0-based position. If every window is
// disallowed, it returns (DefaultMinimizer, -1).
func MinimizerWindow(km Kmer, m int) (Minim, int) {
	if m < 4 || m > 15 || m >= km.K {
		return DefaultMinimizer, -1
	}
	seq := Decode(km)
	best := DefaultMinimizer
	bestPos := -1
	for i := 0; i+m <= len(seq); i++ {
		window := seq[i : i+m]
		if isAADisallowed(window) {
			continue
		}
		code, ok := encodeSmall(window)
		if !ok {
			continue
		}
		canon := canonicalSmall(code, m)
		if best == DefaultMinimizer || canon < uint64(best) {
			best = Minim(canon)
			bestPos = i
		}
	}
	return best, bestPos
}

// String renders a Minim as ASCII, given its length m.
func (mn Minim) String(m int) string {
	if mn == DefaultMinimizer {
		return "*"
	}
	return string(decodeSmall(uint64(mn), m))
}
