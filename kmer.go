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

// Package kmtricks computes and manipulates k-mer count matrices across
// many input sequencing samples.
package kmtricks

import "errors"

// ErrIllegalBase means a byte outside {A,C,G,T} (upper or lower case) was
// found where a k-mer or m-mer was expected.
var ErrIllegalBase = errors.New("kmtricks: illegal base")

// ErrKRange means k is outside [8, 255].
var ErrKRange = errors.New("kmtricks: k must be in [8, 255]")

// ErrMRange means m is outside [4, 15] or m >= k.
var ErrMRange = errors.New("kmtricks: m must be in [4, 15] and m < k")

// MinK and MaxK bound the supported k-mer length.
const (
	MinK = 8
	MaxK = 255
)

// wordsFor returns the number of 64-bit words needed to hold a k-mer of
// length k packed 2 bits per base.
func wordsFor(k int) int {
	return (k + 31) / 32
}

// Kmer is a packed 2-bit k-mer, stored high-order-zero-padded across
// ceil(k/32) 64-bit words, most-significant word first: a
// runtime-k-parameterized packed array supporting arbitrary k, rather
// than a single fixed-width word capped at k<=32.
type Kmer struct {
	K     int
	Words []uint64
}

// NewKmer allocates a zeroed Kmer for the given k.
func NewKmer(k int) Kmer {
	return Kmer{K: k, Words: make([]uint64, wordsFor(k))}
}

// base2bit maps an ACGT byte (either case) to its 2-bit code:
// A=0, C=1, T=2, G=3.
func base2bit(b byte) (uint64, bool) {
	switch b {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'T', 't':
		return 2, true
	case 'G', 'g':
		return 3, true
	default:
		return 0, false
	}
}

var bit2base = [4]byte{'A', 'C', 'T', 'G'}

// Encode packs an ASCII nucleotide slice of length k into a Kmer. Any
// non-ACGT byte yields ErrIllegalBase; upstream (SuperkSplitter) treats
// that as a forced super-k-mer boundary.
func Encode(seq []byte) (Kmer, error) {
	k := len(seq)
	if k < MinK || k > MaxK {
		return Kmer{}, ErrKRange
	}
	km := NewKmer(k)
	for i := 0; i < k; i++ {
		code, ok := base2bit(seq[i])
		if !ok {
			return Kmer{}, ErrIllegalBase
		}
		km.shiftInPlace2(code)
	}
	return km, nil
}

// shiftInPlace2 shifts the whole word array left by 2 bits and ORs code
// into the low 2 bits, masking any overflow into the padding.
func (km *Kmer) shiftInPlace2(code uint64) {
	n := len(km.Words)
	carry := uint64(0)
	for i := n - 1; i >= 0; i-- {
		next := km.Words[i] >> 62
		km.Words[i] = (km.Words[i] << 2) | carry
		carry = next
	}
	km.Words[n-1] |= code
	km.maskPadding()
}

// maskPadding clears any bits above the k-th base in the most significant
// word, keeping the high-order padding invariant.
func (km *Kmer) maskPadding() {
	n := len(km.Words)
	bitsInTop := uint(km.K-(n-1)*32) * 2
	if bitsInTop >= 64 {
		return
	}
	km.Words[0] &= (uint64(1) << bitsInTop) - 1
}

// Decode returns the ASCII representation of a Kmer.
func Decode(km Kmer) []byte {
	out := make([]byte, km.K)
	tmp := Kmer{K: km.K, Words: append([]uint64(nil), km.Words...)}
	for i := km.K - 1; i >= 0; i-- {
		code := tmp.Words[len(tmp.Words)-1] & 3
		out[i] = bit2base[code]
		tmp.shiftRight2()
	}
	return out
}

func (km *Kmer) shiftRight2() {
	n := len(km.Words)
	carry := uint64(0)
	for i := 0; i < n; i++ {
		next := km.Words[i] & 3
		km.Words[i] = (km.Words[i] >> 2) | (carry << 62)
		carry = next
	}
}

// shiftInTop2 shifts the whole word array right by 2 bits (dropping the
// last base) and installs code as the new first base, in the top 2-bit
// slot below the padding. Appending base b to a window's forward form
// and prepending complement(b) to its reverse-complement form are the
// two halves of one rolling canonical-k-mer step.
func (km *Kmer) shiftInTop2(code uint64) {
	km.shiftRight2()
	n := len(km.Words)
	bitsInTop := uint(km.K-(n-1)*32) * 2
	km.Words[0] |= code << (bitsInTop - 2)
}

// String returns the ASCII representation of the k-mer.
func (km Kmer) String() string { return string(Decode(km)) }

// Equal reports whether two Kmers have the same length and content.
func (km Kmer) Equal(o Kmer) bool {
	if km.K != o.K || len(km.Words) != len(o.Words) {
		return false
	}
	for i := range km.Words {
		if km.Words[i] != o.Words[i] {
			return false
		}
	}
	return true
}

// Compare returns -1, 0, 1 comparing km and o lexicographically over their
// packed words, i.e. base by base under the 2-bit code order A<C<T<G
// (not ASCII order, where G sorts before T), since both share the same
// MSB-first packing and padding.
func (km Kmer) Compare(o Kmer) int {
	for i := range km.Words {
		if km.Words[i] < o.Words[i] {
			return -1
		}
		if km.Words[i] > o.Words[i] {
			return 1
		}
	}
	return 0
}

// complementBase flips a 2-bit code under A<->T, C<->G.
// A=0,C=1,T=2,G=3 so complement is XOR with 2 (A<->T: 0^2=2, C<->G: 1^2=3).
func complementBase(code uint64) uint64 { return code ^ 2 }

// Complement returns the complement of km (bases flipped, order unchanged).
func Complement(km Kmer) Kmer {
	out := NewKmer(km.K)
	for i, w := range km.Words {
		var c uint64
		for j := 0; j < 32; j++ {
			shift := uint(62 - 2*j)
			code := (w >> shift) & 3
			c |= complementBase(code) << shift
		}
		out.Words[i] = c
	}
	out.maskPadding()
	return out
}

// Reverse returns km with base order reversed (bases unchanged).
func Reverse(km Kmer) Kmer {
	seq := Decode(km)
	for i, j := 0, len(seq)-1; i < j; i, j = i+1, j-1 {
		seq[i], seq[j] = seq[j], seq[i]
	}
	out, _ := Encode(seq)
	return out
}

// RevComp returns the reverse complement of km: it decodes km, writes the
// complement of each base (A<->T, C<->G) in reverse order, and re-encodes.
func RevComp(km Kmer) Kmer {
	seq := Decode(km)
	out := make([]byte, len(seq))
	for i, b := range seq {
		rc, _ := base2bit(b)
		rc = complementBase(rc)
		out[len(seq)-1-i] = bit2base[rc]
	}
	k, _ := Encode(out)
	return k
}

// Canonical returns min(km, revcomp(km)) — the lexicographic minimum of
// the k-mer and its reverse complement.
func Canonical(km Kmer) Kmer {
	rc := RevComp(km)
	if rc.Compare(km) < 0 {
		return rc
	}
	return km
}
