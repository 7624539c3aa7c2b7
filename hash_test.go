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

import "testing"

func TestNewHasherResolvesAllNames(t *testing.T) {
	for _, name := range []HasherName{HashXXHash, HashHighway, HashNtHash, ""} {
		h, err := NewHasher(name)
		if err != nil {
			t.Fatalf("NewHasher(%q): %v", name, err)
		}
		if name != "" && h.Name() != name {
			t.Errorf("NewHasher(%q).Name() = %q", name, h.Name())
		}
	}
}

func TestNewHasherRejectsUnknownName(t *testing.T) {
	if _, err := NewHasher("not-a-real-hasher"); err == nil {
		t.Fatalf("expected error for unknown hasher name")
	}
}

func TestHasherDeterministic(t *testing.T) {
	km, _ := Encode([]byte("ACGTACGTACGT"))
	for _, name := range []HasherName{HashXXHash, HashHighway, HashNtHash} {
		h, err := NewHasher(name)
		if err != nil {
			t.Fatalf("NewHasher(%q): %v", name, err)
		}
		a := h.Hash(km, 42)
		b := h.Hash(km, 42)
		if a != b {
			t.Errorf("%s hash not deterministic: %d != %d", name, a, b)
		}
	}
}

func TestHasherSeedChangesOutput(t *testing.T) {
	km, _ := Encode([]byte("ACGTACGTACGT"))
	h, err := NewHasher(HashXXHash)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	if h.Hash(km, 0) == h.Hash(km, 1) {
		t.Errorf("expected different seeds to (almost certainly) change the hash output")
	}
}

func TestWindowHashFoldsIntoPartitionRange(t *testing.T) {
	w := uint64(1000)
	for p := 0; p < 5; p++ {
		for _, h := range []uint64{0, 1, w - 1, w, w + 1, 1 << 40} {
			wh := WindowHash(h, p, w)
			lo := uint64(p) * w
			hi := lo + w
			if wh < lo || wh >= hi {
				t.Errorf("WindowHash(%d, %d, %d) = %d, want in [%d, %d)", h, p, w, wh, lo, hi)
			}
		}
	}
}
