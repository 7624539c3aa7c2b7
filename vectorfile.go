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
	"encoding/binary"
	"fmt"
	"io"
)

// BitVector is a fixed-size bitset, used both for a single vector(s, p)
// file (W bits covering the hash window [pW, (p+1)W)) and for the
// presence-absence / Bloom bit matrices PartitionMerger emits.
type BitVector struct {
	Bits []uint64
	N    uint64
}

// NewBitVector allocates a zeroed bitset of n bits.
func NewBitVector(n uint64) BitVector {
	return BitVector{Bits: make([]uint64, (n+63)/64), N: n}
}

func (v BitVector) Set(i uint64) {
	v.Bits[i/64] |= 1 << (i % 64)
}

func (v BitVector) Test(i uint64) bool {
	return v.Bits[i/64]&(1<<(i%64)) != 0
}

// WriteVectorFile writes the vector(s, p) bitset with the shared file
// header and a W-bit-count preamble.
func WriteVectorFile(w io.Writer, v BitVector) error {
	h := FileHeader{Version: FormatVersion, Compressed: false, TypeMagic: typeMagicBytes(typeMagicVector)}
	if err := writeFileHeader(w, h); err != nil {
		return err
	}
	if err := binary.Write(w, be, v.N); err != nil {
		return NewError(IO, "vectorfile.write", "", err)
	}
	buf := make([]byte, len(v.Bits)*8)
	for i, word := range v.Bits {
		be.PutUint64(buf[i*8:], word)
	}
	if _, err := w.Write(buf); err != nil {
		return NewError(IO, "vectorfile.write", "", err)
	}
	return nil
}

// fileHeaderSize is the fixed byte length of writeFileHeader's output:
// 8-byte common magic + 4-byte version + 1-byte compressed flag + 8-byte
// per-type magic (format.go's FileHeader layout comment).
const fileHeaderSize = 21

// vectorFilePayloadOffset returns the byte offset of a vector file's raw
// bitset payload (after the shared header and the 8-byte N preamble),
// for BloomAssembler's mmap range-copy fast path, which must skip the
// same bytes ReadVectorFile consumes without decoding them.
func vectorFilePayloadOffset(buf []byte) (int, error) {
	off := fileHeaderSize + 8
	if len(buf) < off {
		return 0, NewError(Format, "vectorfile.payload", "", fmt.Errorf("file too short: %d bytes", len(buf)))
	}
	if !bytes.Equal(buf[:8], fileMagic[:]) {
		return 0, NewError(Format, "vectorfile.payload", "", fmt.Errorf("bad magic"))
	}
	return off, nil
}

// ReadVectorFile reads a vector(s, p) file written by WriteVectorFile.
func ReadVectorFile(r io.Reader) (BitVector, error) {
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicVector)); err != nil {
		return BitVector{}, err
	}
	var n uint64
	if err := binary.Read(r, be, &n); err != nil {
		return BitVector{}, NewError(IO, "vectorfile.read", "", err)
	}
	v := NewBitVector(n)
	buf := make([]byte, len(v.Bits)*8)
	if _, err := io.ReadFull(r, buf); err != nil {
		return BitVector{}, NewError(IO, "vectorfile.read", "", fmt.Errorf("truncated vector: %w", err))
	}
	for i := range v.Bits {
		v.Bits[i] = be.Uint64(buf[i*8:])
	}
	return v, nil
}
