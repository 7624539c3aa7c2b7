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

import "testing"

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range values {
		buf := putUvarint(nil, v)
		got, n := getUvarint(buf)
		if n != len(buf) {
			t.Errorf("getUvarint(%d) consumed %d bytes, want %d", v, n, len(buf))
		}
		if got != v {
			t.Errorf("getUvarint(putUvarint(%d)) = %d", v, got)
		}
	}
}

func TestUvarintMultipleValuesInSequence(t *testing.T) {
	var buf []byte
	values := []uint64{5, 500, 70000, 1}
	for _, v := range values {
		buf = putUvarint(buf, v)
	}
	off := 0
	for _, want := range values {
		got, n := getUvarint(buf[off:])
		if n == 0 {
			t.Fatalf("getUvarint failed at offset %d", off)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
		off += n
	}
}

func TestGetUvarintShortBuffer(t *testing.T) {
	// A buffer where every byte has the continuation bit set never
	// terminates, so getUvarint must report 0 bytes consumed.
	buf := []byte{0x80, 0x80, 0x80}
	if _, n := getUvarint(buf); n != 0 {
		t.Errorf("getUvarint(truncated) consumed %d bytes, want 0", n)
	}
}

func TestZigzagRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 2, -2, 1 << 30, -(1 << 30)}
	for _, v := range values {
		if got := zigzagDecode(zigzagEncode(v)); got != v {
			t.Errorf("zigzagDecode(zigzagEncode(%d)) = %d", v, got)
		}
	}
}

func TestZigzagSmallMagnitudesStaySmall(t *testing.T) {
	if zigzagEncode(0) != 0 {
		t.Errorf("zigzagEncode(0) = %d, want 0", zigzagEncode(0))
	}
	if zigzagEncode(-1) != 1 {
		t.Errorf("zigzagEncode(-1) = %d, want 1", zigzagEncode(-1))
	}
	if zigzagEncode(1) != 2 {
		t.Errorf("zigzagEncode(1) = %d, want 2", zigzagEncode(1))
	}
}
