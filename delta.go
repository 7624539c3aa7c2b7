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

// encodeAscendingDeltas implements the "p4nd1" encoding: a
// strictly-ascending u64 stream is stored as its first value
// followed by (value[i]-value[i-1]-1) deltas, varint-packed. The "-1" bias
// lets a delta of zero (impossible for a strictly ascending stream,
// since two hashes in one partition are never equal) still use the
// smallest varint encoding for the common "next hash" case.
func encodeAscendingDeltas(values []uint64) []byte {
	buf := make([]byte, 0, len(values)*2+8)
	buf = putUvarint(buf, uint64(len(values)))
	var prev uint64
	for i, v := range values {
		if i == 0 {
			buf = putUvarint(buf, v)
		} else {
			buf = putUvarint(buf, v-prev-1)
		}
		prev = v
	}
	return buf
}

// decodeAscendingDeltas is the inverse of encodeAscendingDeltas.
func decodeAscendingDeltas(buf []byte) ([]uint64, error) {
	n, off := getUvarint(buf)
	if off == 0 {
		return nil, NewError(Format, "delta.decode", "", errShortBuffer)
	}
	out := make([]uint64, 0, n)
	var prev uint64
	for i := uint64(0); i < n; i++ {
		if off >= len(buf) {
			return nil, NewError(Format, "delta.decode", "", errShortBuffer)
		}
		d, w := getUvarint(buf[off:])
		if w == 0 {
			return nil, NewError(Format, "delta.decode", "", errShortBuffer)
		}
		off += w
		var v uint64
		if i == 0 {
			v = d
		} else {
			v = prev + d + 1
		}
		out = append(out, v)
		prev = v
	}
	return out, nil
}

// encodeZigzagCounts implements "p4nz": a stream of (typically small,
// signed-looking saturating) counts, zigzag + varint packed. Used for the
// count column of a compressed hash partition.
func encodeZigzagCounts(counts []int64) []byte {
	buf := make([]byte, 0, len(counts)*2+8)
	buf = putUvarint(buf, uint64(len(counts)))
	for _, c := range counts {
		buf = putUvarint(buf, zigzagEncode(c))
	}
	return buf
}

func decodeZigzagCounts(buf []byte) ([]int64, error) {
	n, off := getUvarint(buf)
	if off == 0 {
		return nil, NewError(Format, "delta.decode", "", errShortBuffer)
	}
	out := make([]int64, 0, n)
	for i := uint64(0); i < n; i++ {
		if off >= len(buf) {
			return nil, NewError(Format, "delta.decode", "", errShortBuffer)
		}
		z, w := getUvarint(buf[off:])
		if w == 0 {
			return nil, NewError(Format, "delta.decode", "", errShortBuffer)
		}
		off += w
		out = append(out, zigzagDecode(z))
	}
	return out, nil
}
