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

// MatrixKind selects a PartitionMerger output format.
type MatrixKind int

const (
	MatrixCount MatrixKind = iota
	MatrixPA
	MatrixBF
	MatrixBFC
	MatrixBFT
)

func (k MatrixKind) typeMagic() uint64 {
	switch k {
	case MatrixPA:
		return typeMagicPAMatrix
	case MatrixBF, MatrixBFC, MatrixBFT:
		return typeMagicBitMatrix
	default:
		return typeMagicMatrix
	}
}

// MatrixRow is one merged row: a key (k-mer or hash, caller's choice of
// representation) plus one count per sample.
type MatrixRow struct {
	Key    uint64 // used in hash mode; ignored (zero) in k-mer mode
	Kmer   Kmer   // used in k-mer mode
	Counts []uint32
}

// CountMatrixWriter writes the `count` output format: (key, counts[N])
// packed with per-sample CountSlot width, in key-ascending order.
type CountMatrixWriter struct {
	w           io.Writer
	n           int
	width       CountWidth
	hashMode    bool
	k           int
	wroteHeader bool
	err         error
}

func NewCountMatrixWriter(w io.Writer, n int, width CountWidth, hashMode bool, k int) *CountMatrixWriter {
	return &CountMatrixWriter{w: w, n: n, width: width, hashMode: hashMode, k: k}
}

func (mw *CountMatrixWriter) writeHeaderOnce() error {
	if mw.wroteHeader {
		return nil
	}
	hdr := FileHeader{Version: FormatVersion, Compressed: false, TypeMagic: typeMagicBytes(MatrixCount.typeMagic())}
	if err := writeFileHeader(mw.w, hdr); err != nil {
		return err
	}
	var hashByte uint8
	if mw.hashMode {
		hashByte = 1
	}
	if _, err := mw.w.Write([]byte{hashByte, byte(mw.width), byte(mw.k)}); err != nil {
		return NewError(IO, "matrixfile.header", "", err)
	}
	if err := binary.Write(mw.w, be, uint32(mw.n)); err != nil {
		return NewError(IO, "matrixfile.header", "", err)
	}
	mw.wroteHeader = true
	return nil
}

// WriteRow appends one merged row.
func (mw *CountMatrixWriter) WriteRow(row MatrixRow) error {
	if mw.err != nil {
		return mw.err
	}
	if len(row.Counts) != mw.n {
		mw.err = NewError(Logic, "matrixfile.write", "", fmt.Errorf("expected %d counts, got %d", mw.n, len(row.Counts)))
		return mw.err
	}
	if err := mw.writeHeaderOnce(); err != nil {
		mw.err = err
		return err
	}
	var buf []byte
	if mw.hashMode {
		buf = make([]byte, 8)
		be.PutUint64(buf, row.Key)
	} else {
		buf = make([]byte, 0, 8*len(row.Kmer.Words))
		for _, word := range row.Kmer.Words {
			buf = append(buf, byte(word>>56), byte(word>>48), byte(word>>40), byte(word>>32), byte(word>>24), byte(word>>16), byte(word>>8), byte(word))
		}
	}
	for _, c := range row.Counts {
		buf = putCount(buf, mw.width, c)
	}
	if _, err := mw.w.Write(buf); err != nil {
		mw.err = NewError(IO, "matrixfile.write", "", err)
		return mw.err
	}
	return nil
}

func (mw *CountMatrixWriter) Close() error {
	if mw.err != nil {
		return mw.err
	}
	return mw.writeHeaderOnce()
}

// CountMatrixReader reads back a count matrix written by
// CountMatrixWriter, record by record.
type CountMatrixReader struct {
	r        io.Reader
	N        int
	Width    CountWidth
	HashMode bool
	K        int
	words    int
}

func NewCountMatrixReader(r io.Reader) (*CountMatrixReader, error) {
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicMatrix)); err != nil {
		return nil, err
	}
	pre := make([]byte, 7)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, NewError(IO, "matrixfile.read", "", err)
	}
	mr := &CountMatrixReader{
		r:        r,
		HashMode: pre[0] != 0,
		Width:    CountWidth(pre[1]),
		K:        int(pre[2]),
		N:        int(be.Uint32(pre[3:])),
	}
	if !mr.HashMode {
		mr.words = wordsFor(mr.K)
	}
	return mr, nil
}

// Next returns the next merged row, or io.EOF past the last one.
func (mr *CountMatrixReader) Next() (MatrixRow, error) {
	keyBytes := 8
	if !mr.HashMode {
		keyBytes = 8 * mr.words
	}
	buf := make([]byte, keyBytes+int(mr.Width)*mr.N)
	if _, err := io.ReadFull(mr.r, buf); err != nil {
		if err == io.EOF {
			return MatrixRow{}, io.EOF
		}
		return MatrixRow{}, NewError(Format, "matrixfile.read", "", err)
	}
	row := MatrixRow{Counts: make([]uint32, mr.N)}
	if mr.HashMode {
		row.Key = be.Uint64(buf)
	} else {
		row.Kmer = NewKmer(mr.K)
		for i := range row.Kmer.Words {
			row.Kmer.Words[i] = be.Uint64(buf[i*8:])
		}
	}
	off := keyBytes
	for s := 0; s < mr.N; s++ {
		c, n := getCount(buf[off:], mr.Width)
		row.Counts[s] = c
		off += n
	}
	return row, nil
}

// PresenceMatrixWriter writes the `pa` output format: (key, bitset[N]).
type PresenceMatrixWriter struct {
	w           io.Writer
	n           int
	hashMode    bool
	k           int
	wroteHeader bool
	err         error
}

func NewPresenceMatrixWriter(w io.Writer, n int, hashMode bool, k int) *PresenceMatrixWriter {
	return &PresenceMatrixWriter{w: w, n: n, hashMode: hashMode, k: k}
}

func (pw *PresenceMatrixWriter) writeHeaderOnce() error {
	if pw.wroteHeader {
		return nil
	}
	hdr := FileHeader{Version: FormatVersion, Compressed: false, TypeMagic: typeMagicBytes(MatrixPA.typeMagic())}
	if err := writeFileHeader(pw.w, hdr); err != nil {
		return err
	}
	var hashByte uint8
	if pw.hashMode {
		hashByte = 1
	}
	if _, err := pw.w.Write([]byte{hashByte, byte(pw.k)}); err != nil {
		return NewError(IO, "matrixfile.header", "", err)
	}
	if err := binary.Write(pw.w, be, uint32(pw.n)); err != nil {
		return NewError(IO, "matrixfile.header", "", err)
	}
	pw.wroteHeader = true
	return nil
}

func (pw *PresenceMatrixWriter) WriteRow(row MatrixRow) error {
	if pw.err != nil {
		return pw.err
	}
	if err := pw.writeHeaderOnce(); err != nil {
		pw.err = err
		return err
	}
	var buf []byte
	if pw.hashMode {
		buf = make([]byte, 8)
		be.PutUint64(buf, row.Key)
	} else {
		buf = make([]byte, 0, 8*len(row.Kmer.Words))
		for _, word := range row.Kmer.Words {
			buf = append(buf, byte(word>>56), byte(word>>48), byte(word>>40), byte(word>>32), byte(word>>24), byte(word>>16), byte(word>>8), byte(word))
		}
	}
	bits := NewBitVector(uint64(pw.n))
	for i, c := range row.Counts {
		if c > 0 {
			bits.Set(uint64(i))
		}
	}
	bbuf := make([]byte, len(bits.Bits)*8)
	for i, word := range bits.Bits {
		be.PutUint64(bbuf[i*8:], word)
	}
	buf = append(buf, bbuf...)
	if _, err := pw.w.Write(buf); err != nil {
		pw.err = NewError(IO, "matrixfile.write", "", err)
		return pw.err
	}
	return nil
}

func (pw *PresenceMatrixWriter) Close() error {
	if pw.err != nil {
		return pw.err
	}
	return pw.writeHeaderOnce()
}

// BitMatrixWriter writes `bf`/`bfc`/`bft`: a bit-matrix of
// hash-window rows by sample columns. bft stores it transposed
// (sample-major); bf/bfc store it row-major (hash-major). Rows are
// emitted in ascending hash-window order.
type BitMatrixWriter struct {
	w           io.Writer
	nHash       uint64 // W, the hash window size of this partition
	n           int    // sample count
	transpose   bool
	wroteHeader bool
	rows        [][]byte // row-major accumulation buffer when transposing
	err         error
}

func NewBitMatrixWriter(w io.Writer, nHash uint64, n int, transpose bool) *BitMatrixWriter {
	bw := &BitMatrixWriter{w: w, nHash: nHash, n: n, transpose: transpose}
	if transpose {
		bw.rows = make([][]byte, n)
		rowBytes := (nHash + 7) / 8
		for i := range bw.rows {
			bw.rows[i] = make([]byte, rowBytes)
		}
	}
	return bw
}

func (bw *BitMatrixWriter) writeHeaderOnce() error {
	if bw.wroteHeader {
		return nil
	}
	hdr := FileHeader{Version: FormatVersion, Compressed: false, TypeMagic: typeMagicBytes(MatrixBF.typeMagic())}
	if err := writeFileHeader(bw.w, hdr); err != nil {
		return err
	}
	var t uint8
	if bw.transpose {
		t = 1
	}
	if _, err := bw.w.Write([]byte{t}); err != nil {
		return NewError(IO, "matrixfile.header", "", err)
	}
	if err := binary.Write(bw.w, be, bw.nHash); err != nil {
		return NewError(IO, "matrixfile.header", "", err)
	}
	if err := binary.Write(bw.w, be, uint32(bw.n)); err != nil {
		return NewError(IO, "matrixfile.header", "", err)
	}
	bw.wroteHeader = true
	return nil
}

// WriteHashRow writes one row of the hash window for hash hashIndex,
// present[j] being sample j's presence bit. Rows with no sample present
// are written too; without transpose, rows are appended in call order
// and hashIndex is not recorded.
func (bw *BitMatrixWriter) WriteHashRow(hashIndex uint64, present []bool) error {
	if bw.err != nil {
		return bw.err
	}
	if err := bw.writeHeaderOnce(); err != nil {
		bw.err = err
		return err
	}
	if bw.transpose {
		for j, p := range present {
			if p {
				bw.rows[j][hashIndex/8] |= 1 << (hashIndex % 8)
			}
		}
		return nil
	}
	row := NewBitVector(uint64(bw.n))
	for j, p := range present {
		if p {
			row.Set(uint64(j))
		}
	}
	buf := make([]byte, len(row.Bits)*8)
	for i, word := range row.Bits {
		be.PutUint64(buf[i*8:], word)
	}
	if _, err := bw.w.Write(buf); err != nil {
		bw.err = NewError(IO, "matrixfile.write", "", err)
		return bw.err
	}
	return nil
}

// Close flushes the sample-major rows when transposing (bft).
func (bw *BitMatrixWriter) Close() error {
	if bw.err != nil {
		return bw.err
	}
	if err := bw.writeHeaderOnce(); err != nil {
		return err
	}
	if bw.transpose {
		for _, row := range bw.rows {
			if _, err := bw.w.Write(row); err != nil {
				return NewError(IO, "matrixfile.write", "", err)
			}
		}
	}
	return nil
}
