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

// SuperKmer is one maximal run of consecutive k-mers sharing a minimizer.
// Count is the number of k-mers it represents, always in [1, 255]; its
// nucleotide length is k + (Count - 1).
type SuperKmer struct {
	Nucleotides []byte // ASCII ACGT, length k+Count-1
	Count       uint8
}

// packNucleotides packs an ASCII nucleotide slice 2 bits per base,
// big-endian within each byte (4 bases/byte), with a leading partial byte
// holding the remainder when length%4 != 0.
func packNucleotides(seq []byte) ([]byte, error) {
	n := len(seq)
	rem := n % 4
	nbytes := n / 4
	if rem != 0 {
		nbytes++
	}
	out := make([]byte, nbytes)
	pos := 0
	if rem != 0 {
		var b byte
		for i := 0; i < rem; i++ {
			c, ok := base2bit(seq[pos])
			if !ok {
				return nil, ErrIllegalBase
			}
			b = (b << 2) | byte(c)
			pos++
		}
		out[0] = b
	}
	for byteIdx := boolToInt(rem != 0); byteIdx < nbytes; byteIdx++ {
		var b byte
		for j := 0; j < 4; j++ {
			c, ok := base2bit(seq[pos])
			if !ok {
				return nil, ErrIllegalBase
			}
			b = (b << 2) | byte(c)
			pos++
		}
		out[byteIdx] = b
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// unpackNucleotides is the inverse of packNucleotides, given the known
// total base count n.
func unpackNucleotides(packed []byte, n int) []byte {
	out := make([]byte, n)
	rem := n % 4
	pos := 0
	idx := 0
	if rem != 0 {
		b := packed[0]
		for i := rem - 1; i >= 0; i-- {
			out[idx+i] = bit2base[b&3]
			b >>= 2
		}
		idx += rem
		pos = 1
	}
	for ; pos < len(packed); pos++ {
		b := packed[pos]
		for i := 3; i >= 0; i-- {
			out[idx+i] = bit2base[b&3]
			b >>= 2
		}
		idx += 4
	}
	return out
}

// SuperkBlockWriter writes a superk partition file: the file header and
// a 1-byte k, then a sequence of self-delimiting blocks, each
// `u32 block_size | [u8 count][packed nucleotides]* | u64 xxhash64
// checksum` (see writeBlock), flushed once the in-memory buffer
// reaches capacity C (default 32 KiB).
type SuperkBlockWriter struct {
	w           io.Writer
	k           int
	capacity    int
	compressed  bool
	buf         []byte
	wroteHeader bool
	err         error
}

const defaultSuperkBlockCapacity = 32 * 1024

func NewSuperkBlockWriter(w io.Writer, k int, compressed bool) *SuperkBlockWriter {
	return &SuperkBlockWriter{w: w, k: k, capacity: defaultSuperkBlockCapacity, compressed: compressed}
}

// Append adds one super-k-mer to the pending block, flushing first if it
// would overflow capacity.
func (sw *SuperkBlockWriter) Append(sk SuperKmer) error {
	if sw.err != nil {
		return sw.err
	}
	if sk.Count == 0 || int(sk.Count) > 255 {
		sw.err = NewError(Logic, "superkfile.append", "", fmt.Errorf("k-mer count %d out of [1,255]", sk.Count))
		return sw.err
	}
	packed, err := packNucleotides(sk.Nucleotides)
	if err != nil {
		sw.err = NewError(Format, "superkfile.append", "", err)
		return sw.err
	}
	if len(sw.buf)+1+len(packed) > sw.capacity && len(sw.buf) > 0 {
		if err := sw.flush(); err != nil {
			return err
		}
	}
	sw.buf = append(sw.buf, sk.Count)
	sw.buf = append(sw.buf, packed...)
	return nil
}

func (sw *SuperkBlockWriter) flush() error {
	if !sw.wroteHeader {
		hdr := FileHeader{Version: FormatVersion, Compressed: sw.compressed, TypeMagic: typeMagicBytes(typeMagicSuperk)}
		if err := writeFileHeader(sw.w, hdr); err != nil {
			sw.err = err
			return err
		}
		if _, err := sw.w.Write([]byte{byte(sw.k)}); err != nil {
			sw.err = NewError(IO, "superkfile.flush", "", err)
			return sw.err
		}
		sw.wroteHeader = true
	}
	if len(sw.buf) == 0 {
		return nil
	}
	if err := writeBlock(sw.w, sw.buf, sw.compressed); err != nil {
		sw.err = err
		return err
	}
	sw.buf = sw.buf[:0]
	return nil
}

// Close flushes any pending partial block and, for an empty file, still
// writes a valid header.
func (sw *SuperkBlockWriter) Close() error {
	if sw.err != nil {
		return sw.err
	}
	if err := sw.flush(); err != nil {
		return err
	}
	if !sw.wroteHeader {
		hdr := FileHeader{Version: FormatVersion, Compressed: sw.compressed, TypeMagic: typeMagicBytes(typeMagicSuperk)}
		if err := writeFileHeader(sw.w, hdr); err != nil {
			return err
		}
		if _, err := sw.w.Write([]byte{byte(sw.k)}); err != nil {
			return NewError(IO, "superkfile.close", "", err)
		}
		sw.wroteHeader = true
	}
	return nil
}

// SuperkBlockReader reads a superk partition file block-by-block,
// reconstructing every SuperKmer it holds.
type SuperkBlockReader struct {
	r          io.Reader
	K          int
	compressed bool
	pending    []byte
}

func NewSuperkBlockReader(r io.Reader) (*SuperkBlockReader, error) {
	h, err := readFileHeader(r, typeMagicBytes(typeMagicSuperk))
	if err != nil {
		return nil, err
	}
	var kb [1]byte
	if _, err := io.ReadFull(r, kb[:]); err != nil {
		return nil, NewError(IO, "superkfile.open", "", err)
	}
	return &SuperkBlockReader{r: r, K: int(kb[0]), compressed: h.Compressed}, nil
}

// Next returns the next super-k-mer, reading and decoding blocks from the
// underlying stream as needed, or io.EOF when the file is exhausted.
func (sr *SuperkBlockReader) Next() (SuperKmer, error) {
	for len(sr.pending) == 0 {
		block, err := readBlock(sr.r, sr.compressed)
		if err == io.EOF {
			return SuperKmer{}, io.EOF
		}
		if err != nil {
			return SuperKmer{}, err
		}
		sr.pending = block
	}
	count := sr.pending[0]
	n := sr.K + int(count) - 1
	nbytes := n / 4
	if n%4 != 0 {
		nbytes++
	}
	if len(sr.pending) < 1+nbytes {
		return SuperKmer{}, NewError(Format, "superkfile.next", "", fmt.Errorf("truncated super-k-mer record"))
	}
	packed := sr.pending[1 : 1+nbytes]
	sr.pending = sr.pending[1+nbytes:]
	return SuperKmer{Nucleotides: unpackNucleotides(packed, n), Count: count}, nil
}

// SuperKmerBinInfo is one partition's entry in the manifest
// SuperkSplitter writes on close.
type SuperKmerBinInfo struct {
	Partition  int
	NumKmers   uint64
	NumBytes   uint64
}

// WriteSuperKmerBinInfoFile writes the per-sample manifest listing, for
// each partition, the total k-mer count and file size. The count stage
// does not read it back: PartitionCounter's dense-hash-map versus
// sort-then-aggregate choice comes from the run config's strategy.
func WriteSuperKmerBinInfoFile(w io.Writer, infos []SuperKmerBinInfo) error {
	if err := binary.Write(w, be, uint32(len(infos))); err != nil {
		return NewError(IO, "superkinfo.write", "", err)
	}
	for _, info := range infos {
		if err := binary.Write(w, be, uint32(info.Partition)); err != nil {
			return NewError(IO, "superkinfo.write", "", err)
		}
		if err := binary.Write(w, be, info.NumKmers); err != nil {
			return NewError(IO, "superkinfo.write", "", err)
		}
		if err := binary.Write(w, be, info.NumBytes); err != nil {
			return NewError(IO, "superkinfo.write", "", err)
		}
	}
	return nil
}

// ReadSuperKmerBinInfoFile reads a manifest written by
// WriteSuperKmerBinInfoFile.
func ReadSuperKmerBinInfoFile(r io.Reader) ([]SuperKmerBinInfo, error) {
	var n uint32
	if err := binary.Read(r, be, &n); err != nil {
		return nil, NewError(IO, "superkinfo.read", "", err)
	}
	out := make([]SuperKmerBinInfo, n)
	for i := range out {
		var p uint32
		if err := binary.Read(r, be, &p); err != nil {
			return nil, NewError(IO, "superkinfo.read", "", err)
		}
		out[i].Partition = int(p)
		if err := binary.Read(r, be, &out[i].NumKmers); err != nil {
			return nil, NewError(IO, "superkinfo.read", "", err)
		}
		if err := binary.Read(r, be, &out[i].NumBytes); err != nil {
			return nil, NewError(IO, "superkinfo.read", "", err)
		}
	}
	return out, nil
}
