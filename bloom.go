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
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// bloomHeaderSize is the fixed, 16-byte-rounded header size holding
// every field up through the single vector-info record (92 bytes of
// fields, rounded up); no name table is used so it never grows.
const bloomHeaderSize = 96

// bloomKindSimple is the only Bloom kind BloomAssembler emits.
const bloomKindSimple uint32 = 1

// bloomMagicUnset and bloomMagicSet implement an "unset-then-set" atomic
// publication scheme: the header is written with the unset
// magic first, and only overwritten with the set magic once every vector
// byte has been flushed, so a reader that opens the file mid-write sees
// an unambiguously incomplete header rather than truncated vector data
// under a valid-looking magic.
const (
	bloomMagicUnset uint64 = 0
	bloomMagicSet   uint64 = 0x626c6f6f6d666b74 // "bloomfkt"
)

// BloomAssembler concatenates, for one sample, the vector files
// (s, 0..P-1) of exactly W bits each into a single simple Bloom filter
// file of P*W bits, prefixed by a fixed header.
type BloomAssembler struct {
	P int
	W uint64
}

func (ba *BloomAssembler) totalBits() uint64 { return uint64(ba.P) * ba.W }

// writeHeader writes the bloomHeaderSize-byte header with the given
// magic. Called twice: once with bloomMagicUnset before any vector bytes
// are written, and once with bloomMagicSet after every vector byte has
// been flushed.
func (ba *BloomAssembler) writeHeader(w io.WriterAt, magic uint64) error {
	buf := make([]byte, bloomHeaderSize)
	be.PutUint64(buf[0:8], magic)
	be.PutUint32(buf[8:12], bloomHeaderSize)
	be.PutUint32(buf[12:16], FormatVersion)
	be.PutUint32(buf[16:20], bloomKindSimple)
	be.PutUint32(buf[20:24], 1)              // number of hash functions
	be.PutUint64(buf[24:32], 0)              // hash seed 1
	be.PutUint64(buf[32:40], 0)              // hash seed 2
	be.PutUint64(buf[40:48], ba.totalBits()) // hash modulus
	be.PutUint64(buf[48:56], ba.totalBits()) // number of bits
	be.PutUint32(buf[56:60], 1)              // number of vectors
	// Vector info record:
	// compressor=uncompressed(0), name offset=0, byte offset=header size,
	// number of bytes = P*W/8 + 8, filter-info = 0.
	be.PutUint32(buf[60:64], 0)
	be.PutUint32(buf[64:68], 0)
	be.PutUint64(buf[68:76], uint64(bloomHeaderSize))
	be.PutUint64(buf[76:84], ba.totalBits()/8+8)
	be.PutUint64(buf[84:92], 0) // filter-info
	_, err := w.WriteAt(buf, 0)
	if err != nil {
		return NewError(IO, "bloom.header", "", err)
	}
	return nil
}

// writeBitCount writes the 8-byte bit-length word that precedes the raw
// bitset bytes; the vector-info record's byte count (P*W/8 + 8) includes
// it.
func (ba *BloomAssembler) writeBitCount(out *os.File) error {
	var buf [8]byte
	be.PutUint64(buf[:], ba.totalBits())
	if _, err := out.Write(buf[:]); err != nil {
		return NewError(IO, "bloom.assemble", "", err)
	}
	return nil
}

// AssembleBuffered reads every vector file into a buffer, then writes
// header + buffer.
func (ba *BloomAssembler) AssembleBuffered(out *os.File, vectorPaths []string) error {
	if err := ba.writeHeader(out, bloomMagicUnset); err != nil {
		return err
	}
	if _, err := out.Seek(bloomHeaderSize, io.SeekStart); err != nil {
		return NewError(IO, "bloom.assemble", "", err)
	}
	if err := ba.writeBitCount(out); err != nil {
		return err
	}
	for _, path := range vectorPaths {
		if err := ba.appendVectorFile(out, path); err != nil {
			return err
		}
	}
	return ba.writeHeader(out, bloomMagicSet)
}

// appendEmptyWindow stands in for a missing or empty vector file: a
// sample with no k-mer routed to that partition contributes an all-zero
// window of the same byte length a written vector would have.
func (ba *BloomAssembler) appendEmptyWindow(out *os.File) error {
	zero := make([]byte, (ba.W+63)/64*8)
	if _, err := out.Write(zero); err != nil {
		return NewError(IO, "bloom.assemble", "", err)
	}
	return nil
}

func (ba *BloomAssembler) appendVectorFile(out *os.File, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return ba.appendEmptyWindow(out)
	}
	if err != nil {
		return NewError(IO, "bloom.assemble", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return NewError(IO, "bloom.assemble", path, err)
	}
	if info.Size() == 0 {
		return ba.appendEmptyWindow(out)
	}
	bv, err := ReadVectorFile(f)
	if err != nil {
		return err
	}
	raw := make([]byte, len(bv.Bits)*8)
	for i, word := range bv.Bits {
		binary.BigEndian.PutUint64(raw[i*8:], word)
	}
	if _, err := out.Write(raw); err != nil {
		return NewError(IO, "bloom.assemble", path, err)
	}
	return nil
}

// AssembleMmap is a zero-copy range-copy of each vector file's mapped
// bytes into the output, via edsrzf/mmap-go, in place of a buffered
// read. It must produce byte-identical output to AssembleBuffered for
// the same inputs.
func (ba *BloomAssembler) AssembleMmap(out *os.File, vectorPaths []string) error {
	if err := ba.writeHeader(out, bloomMagicUnset); err != nil {
		return err
	}
	if _, err := out.Seek(bloomHeaderSize, io.SeekStart); err != nil {
		return NewError(IO, "bloom.assemble", "", err)
	}
	if err := ba.writeBitCount(out); err != nil {
		return err
	}
	for _, path := range vectorPaths {
		if err := ba.appendVectorFileMmap(out, path); err != nil {
			return err
		}
	}
	return ba.writeHeader(out, bloomMagicSet)
}

func (ba *BloomAssembler) appendVectorFileMmap(out *os.File, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return ba.appendEmptyWindow(out)
	}
	if err != nil {
		return NewError(IO, "bloom.assemble", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return NewError(IO, "bloom.assemble", path, err)
	}
	if info.Size() == 0 {
		return ba.appendEmptyWindow(out)
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return NewError(IO, "bloom.assemble", path, err)
	}
	defer m.Unmap()

	// The vector file's payload sits after its shared file header and
	// bit-count preamble (vectorfile.go); skip to the raw bitset bytes
	// the same way ReadVectorFile does, then range-copy the remainder.
	payloadOff, err := vectorFilePayloadOffset(m)
	if err != nil {
		return err
	}
	if _, err := out.Write(m[payloadOff:]); err != nil {
		return NewError(IO, "bloom.assemble", path, err)
	}
	return nil
}
