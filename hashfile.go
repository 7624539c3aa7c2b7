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
	"encoding/binary"
	"fmt"
	"io"
)

// HashRecord is one (hash, count) pair of a hash partition file.
type HashRecord struct {
	Hash  uint64
	Count uint32
}

// HashFileWriter writes a hash partition file. Unlike KmerFileWriter it
// buffers one partition's worth of records and emits them as a single
// p4nd1/p4nz compressed block on Close, laid out as:
//
//	u64 n | u64 hash_bytes | hash_bytes (p4nd1) | u64 count_bytes | count_bytes (p4nz)
//
// Hashes inside one partition are strictly ascending, which is
// exactly what encodeAscendingDeltas is built for.
type HashFileWriter struct {
	w      io.Writer
	width  CountWidth
	hashes []uint64
	counts []int64
	last   uint64
	has    bool
	err    error
}

func NewHashFileWriter(w io.Writer, width CountWidth) *HashFileWriter {
	return &HashFileWriter{w: w, width: width}
}

func (hw *HashFileWriter) Write(hash uint64, count uint32) error {
	if hw.err != nil {
		return hw.err
	}
	if hw.has && hash <= hw.last {
		hw.err = NewError(Logic, "hashfile.write", "", invariantViolation("hashfile.write: non-ascending key"))
		return hw.err
	}
	hw.hashes = append(hw.hashes, hash)
	hw.counts = append(hw.counts, int64(count))
	hw.last = hash
	hw.has = true
	return nil
}

// Close encodes and flushes all buffered records. A hash file with no
// records still writes a valid empty header (n=0).
func (hw *HashFileWriter) Close() error {
	if hw.err != nil {
		return hw.err
	}
	h := FileHeader{Version: FormatVersion, Compressed: true, TypeMagic: typeMagicBytes(typeMagicHash)}
	if err := writeFileHeader(hw.w, h); err != nil {
		return err
	}
	if _, err := hw.w.Write([]byte{byte(hw.width)}); err != nil {
		return NewError(IO, "hashfile.close", "", err)
	}
	hashBytes := encodeAscendingDeltas(hw.hashes)
	countBytes := encodeZigzagCounts(hw.counts)
	if err := binary.Write(hw.w, be, uint64(len(hw.hashes))); err != nil {
		return NewError(IO, "hashfile.close", "", err)
	}
	if err := binary.Write(hw.w, be, uint64(len(hashBytes))); err != nil {
		return NewError(IO, "hashfile.close", "", err)
	}
	if _, err := hw.w.Write(hashBytes); err != nil {
		return NewError(IO, "hashfile.close", "", err)
	}
	if err := binary.Write(hw.w, be, uint64(len(countBytes))); err != nil {
		return NewError(IO, "hashfile.close", "", err)
	}
	if _, err := hw.w.Write(countBytes); err != nil {
		return NewError(IO, "hashfile.close", "", err)
	}
	return nil
}

// ReadHashFile reads a complete hash partition file written by
// HashFileWriter. Hash files are small enough per partition to decode
// whole rather than streamed record-by-record (unlike kmer files, which
// can be large and are read incrementally).
func ReadHashFile(r io.Reader) ([]HashRecord, error) {
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicHash)); err != nil {
		return nil, err
	}
	var widthByte [1]byte
	if _, err := io.ReadFull(r, widthByte[:]); err != nil {
		return nil, NewError(IO, "hashfile.read", "", err)
	}
	width := CountWidth(widthByte[0])
	switch width {
	case Count8, Count16, Count32:
	default:
		return nil, NewError(Format, "hashfile.read", "", fmt.Errorf("illegal count width %d", widthByte[0]))
	}

	var n, hlen, clen uint64
	if err := binary.Read(r, be, &n); err != nil {
		return nil, NewError(IO, "hashfile.read", "", err)
	}
	if err := binary.Read(r, be, &hlen); err != nil {
		return nil, NewError(IO, "hashfile.read", "", err)
	}
	hbuf := make([]byte, hlen)
	if _, err := io.ReadFull(r, hbuf); err != nil {
		return nil, NewError(IO, "hashfile.read", "", err)
	}
	if err := binary.Read(r, be, &clen); err != nil {
		return nil, NewError(IO, "hashfile.read", "", err)
	}
	cbuf := make([]byte, clen)
	if _, err := io.ReadFull(r, cbuf); err != nil {
		return nil, NewError(IO, "hashfile.read", "", err)
	}

	hashes, err := decodeAscendingDeltas(hbuf)
	if err != nil {
		return nil, err
	}
	counts, err := decodeZigzagCounts(cbuf)
	if err != nil {
		return nil, err
	}
	if uint64(len(hashes)) != n || uint64(len(counts)) != n {
		return nil, NewError(Format, "hashfile.read", "", fmt.Errorf("record count mismatch"))
	}
	// Counts are varint-coded, so width doesn't drive decoding; it still
	// bounds the legal count domain for this file.
	maxCount := int64(1)<<(8*uint(width)) - 1
	out := make([]HashRecord, n)
	for i := range out {
		if counts[i] < 0 || counts[i] > maxCount {
			return nil, NewError(Format, "hashfile.read", "", fmt.Errorf("count %d exceeds the file's %d-byte count slot", counts[i], width))
		}
		out[i] = HashRecord{Hash: hashes[i], Count: uint32(counts[i])}
	}
	return out, nil
}
