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

	"github.com/cespare/xxhash"
)

// FormatVersion is the binary format version written into every file
// header. Bump it when a layout changes in an incompatible way.
const FormatVersion uint32 = 1

// fileMagic is the common 8-byte magic every kmtricks binary file opens
// with, shared across kmer/hash/vector/hist/matrix/superk files and the
// PartitionMap.
var fileMagic = [8]byte{'k', 'm', 't', 'r', 'i', 'c', 'k', 's'}

// Per-type magics, one per file kind (little-endian 64-bit). Each is
// written after the common header
// so a misrouted file (e.g. a hash file opened as a kmer file) is
// rejected immediately rather than silently misparsed.
const (
	typeMagicKmer      uint64 = 0x72656d6b
	typeMagicHash      uint64 = 0x68736168
	typeMagicMatrix    uint64 = 0x6b5f78697274616d
	typeMagicPAMatrix  uint64 = 0x6b5f74616d6170
	typeMagicVector    uint64 = 0x726f74636576
	typeMagicBitMatrix uint64 = 0x74616d746962
	typeMagicHist      uint64 = 0x747369686b
	typeMagicSuperk    uint64 = 0x6b7265707573
	typeMagicPartMap   uint64 = 0x3078313233343536
)

func typeMagicBytes(v uint64) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b
}

var be = binary.BigEndian

// FileHeader is the common prefix of every kmtricks binary file:
//
//	offset  bytes  field
//	0       8      common magic ("kmtricks")
//	8       4      format version
//	12      1      compressed flag (0/1, LZ4 per block, see lz4block.go)
//	13      8      per-type magic
//
// 21 bytes total, with a per-type magic appended to catch
// truncation/corruption and reject a misrouted file immediately.
type FileHeader struct {
	Version    uint32
	Compressed bool
	TypeMagic  [8]byte
}

func writeFileHeader(w io.Writer, h FileHeader) error {
	if err := binary.Write(w, be, fileMagic); err != nil {
		return err
	}
	if err := binary.Write(w, be, h.Version); err != nil {
		return err
	}
	var c uint8
	if h.Compressed {
		c = 1
	}
	if err := binary.Write(w, be, c); err != nil {
		return err
	}
	return binary.Write(w, be, h.TypeMagic)
}

func readFileHeader(r io.Reader, wantType [8]byte) (FileHeader, error) {
	var h FileHeader
	var m [8]byte
	if err := binary.Read(r, be, &m); err != nil {
		return h, NewError(IO, "format.readHeader", "", err)
	}
	if m != fileMagic {
		return h, NewError(Format, "format.readHeader", "", fmt.Errorf("bad magic %q", m))
	}
	if err := binary.Read(r, be, &h.Version); err != nil {
		return h, NewError(IO, "format.readHeader", "", err)
	}
	if h.Version != FormatVersion {
		return h, NewError(Format, "format.readHeader", "", fmt.Errorf("unsupported version %d", h.Version))
	}
	var c uint8
	if err := binary.Read(r, be, &c); err != nil {
		return h, NewError(IO, "format.readHeader", "", err)
	}
	h.Compressed = c != 0
	if err := binary.Read(r, be, &h.TypeMagic); err != nil {
		return h, NewError(IO, "format.readHeader", "", err)
	}
	if h.TypeMagic != wantType {
		return h, NewError(Format, "format.readHeader", "", fmt.Errorf("type magic mismatch: got %q want %q", h.TypeMagic, wantType))
	}
	return h, nil
}

// blockChecksum is the xxhash64 of a block's raw (pre-compression) bytes,
// written after every block so a reader can detect corruption without
// decoding the block's contents first.
func blockChecksum(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// writeBlock writes one length-prefixed, optionally LZ4-compressed block
// followed by its checksum: u32 storedLen | bytes | u64 checksum(raw).
func writeBlock(w io.Writer, raw []byte, compressed bool) error {
	payload := raw
	if compressed {
		c, err := lz4Compress(raw)
		if err != nil {
			return err
		}
		payload = c
	}
	if err := binary.Write(w, be, uint32(len(payload))); err != nil {
		return NewError(IO, "format.writeBlock", "", err)
	}
	if _, err := w.Write(payload); err != nil {
		return NewError(IO, "format.writeBlock", "", err)
	}
	if err := binary.Write(w, be, blockChecksum(raw)); err != nil {
		return NewError(IO, "format.writeBlock", "", err)
	}
	return nil
}

// readBlock reads one block written by writeBlock, decompressing and
// checksum-verifying it.
func readBlock(r io.Reader, compressed bool) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, be, &n); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, NewError(IO, "format.readBlock", "", err)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, NewError(IO, "format.readBlock", "", err)
	}
	var want uint64
	if err := binary.Read(r, be, &want); err != nil {
		return nil, NewError(IO, "format.readBlock", "", err)
	}
	raw := payload
	if compressed {
		d, err := lz4Decompress(payload)
		if err != nil {
			return nil, err
		}
		raw = d
	}
	if blockChecksum(raw) != want {
		return nil, NewError(Format, "format.readBlock", "", fmt.Errorf("block checksum mismatch"))
	}
	return raw, nil
}
