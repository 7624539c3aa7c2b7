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

func TestBitVectorSetTest(t *testing.T) {
	v := NewBitVector(100)
	v.Set(0)
	v.Set(63)
	v.Set(64)
	v.Set(99)
	for _, i := range []uint64{0, 63, 64, 99} {
		if !v.Test(i) {
			t.Errorf("bit %d expected set", i)
		}
	}
	for _, i := range []uint64{1, 62, 65, 98} {
		if v.Test(i) {
			t.Errorf("bit %d expected unset", i)
		}
	}
}

func TestVectorFileRoundTrip(t *testing.T) {
	v := NewBitVector(200)
	for _, i := range []uint64{1, 2, 100, 199} {
		v.Set(i)
	}
	var buf bytes.Buffer
	if err := WriteVectorFile(&buf, v); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadVectorFile(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.N != v.N {
		t.Fatalf("N = %d, want %d", got.N, v.N)
	}
	for i := uint64(0); i < v.N; i++ {
		if got.Test(i) != v.Test(i) {
			t.Errorf("bit %d mismatch", i)
		}
	}
}

func TestVectorFilePayloadOffset(t *testing.T) {
	v := NewBitVector(64)
	v.Set(5)
	var buf bytes.Buffer
	if err := WriteVectorFile(&buf, v); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw := buf.Bytes()
	off, err := vectorFilePayloadOffset(raw)
	if err != nil {
		t.Fatalf("payload offset: %v", err)
	}
	if off != fileHeaderSize+8 {
		t.Errorf("offset = %d, want %d", off, fileHeaderSize+8)
	}
	payload := raw[off:]
	if len(payload) != len(v.Bits)*8 {
		t.Errorf("payload length = %d, want %d", len(payload), len(v.Bits)*8)
	}
}
