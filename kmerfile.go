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
	"fmt"
	"io"

	"github.com/pierrec/lz4"
)

// CountWidth is the on-disk width of one CountSlot, selected at configure
// time from the run's MAX_C.
type CountWidth uint8

const (
	Count8  CountWidth = 1
	Count16 CountWidth = 2
	Count32 CountWidth = 4
)

// WidthFor picks the narrowest CountWidth that can hold maxC without
// saturating below it.
func WidthFor(maxC uint32) CountWidth {
	switch {
	case maxC <= 0xff:
		return Count8
	case maxC <= 0xffff:
		return Count16
	default:
		return Count32
	}
}

// saturate clamps a true count to the configured MAX_C.
func saturate(count uint64, maxC uint32) uint32 {
	if count > uint64(maxC) {
		return maxC
	}
	return uint32(count)
}

func putCount(buf []byte, w CountWidth, v uint32) []byte {
	switch w {
	case Count8:
		return append(buf, byte(v))
	case Count16:
		return append(buf, byte(v>>8), byte(v))
	default:
		return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

func getCount(buf []byte, w CountWidth) (uint32, int) {
	switch w {
	case Count8:
		return uint32(buf[0]), 1
	case Count16:
		return uint32(buf[0])<<8 | uint32(buf[1]), 2
	default:
		return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), 4
	}
}

// KmerRecord is one (key, count) pair of a kmer partition file.
type KmerRecord struct {
	Kmer  Kmer
	Count uint32
}

// KmerFileWriter writes a kmer partition file: sequential
// ⌈k/32⌉·8-byte-key + CountSlot-byte-count records, in strictly ascending
// key order,
// optionally LZ4-wrapped as the second layer.
//
// The header is written lazily, on the first record, or by Close when no
// record was written, so an empty partition (sample routed no k-mer to
// it) produces a valid header-only file.
type KmerFileWriter struct {
	w           io.Writer
	rec         io.Writer // record destination: w, or the LZ4 layer over w
	zw          *lz4.Writer
	k           int
	width       CountWidth
	compressed  bool
	wroteHeader bool
	last        *Kmer
	err         error
}

func NewKmerFileWriter(w io.Writer, k int, width CountWidth, compressed bool) *KmerFileWriter {
	return &KmerFileWriter{w: w, k: k, width: width, compressed: compressed}
}

func (kw *KmerFileWriter) Write(km Kmer, count uint32) error {
	if kw.err != nil {
		return kw.err
	}
	if km.K != kw.k {
		kw.err = NewError(Logic, "kmerfile.write", "", fmt.Errorf("k mismatch: file is k=%d, record is k=%d", kw.k, km.K))
		return kw.err
	}
	if kw.last != nil && km.Compare(*kw.last) <= 0 {
		kw.err = NewError(Logic, "kmerfile.write", "", invariantViolation("kmerfile.write: non-ascending key"))
		return kw.err
	}
	if !kw.wroteHeader {
		h := FileHeader{Version: FormatVersion, Compressed: kw.compressed, TypeMagic: typeMagicBytes(typeMagicKmer)}
		if err := writeFileHeader(kw.w, h); err != nil {
			kw.err = err
			return err
		}
		if err := writeKmerFilePreamble(kw.w, kw.k, kw.width); err != nil {
			kw.err = err
			return err
		}
		if kw.compressed {
			kw.zw = lz4.NewWriter(kw.w)
			kw.rec = kw.zw
		} else {
			kw.rec = kw.w
		}
		kw.wroteHeader = true
	}
	buf := make([]byte, 0, 8*len(km.Words)+4)
	for _, word := range km.Words {
		buf = append(buf, byte(word>>56), byte(word>>48), byte(word>>40), byte(word>>32), byte(word>>24), byte(word>>16), byte(word>>8), byte(word))
	}
	buf = putCount(buf, kw.width, count)
	if _, err := kw.rec.Write(buf); err != nil {
		kw.err = NewError(IO, "kmerfile.write", "", err)
		return kw.err
	}
	k2 := km
	kw.last = &k2
	return nil
}

// Close flushes the LZ4 layer when one is open, or writes the header for
// an empty (no records ever written) file, so a missing or empty (s, p)
// partition output still parses as a valid, empty file rather than a
// truncated one.
func (kw *KmerFileWriter) Close() error {
	if kw.err != nil {
		return kw.err
	}
	if kw.wroteHeader {
		if kw.zw != nil {
			if err := kw.zw.Close(); err != nil {
				return NewError(IO, "kmerfile.close", "", err)
			}
		}
		return nil
	}
	h := FileHeader{Version: FormatVersion, Compressed: kw.compressed, TypeMagic: typeMagicBytes(typeMagicKmer)}
	if err := writeFileHeader(kw.w, h); err != nil {
		return err
	}
	return writeKmerFilePreamble(kw.w, kw.k, kw.width)
}

func writeKmerFilePreamble(w io.Writer, k int, width CountWidth) error {
	buf := []byte{byte(k), byte(width)}
	_, err := w.Write(buf)
	if err != nil {
		return NewError(IO, "kmerfile.preamble", "", err)
	}
	return nil
}

// KmerFileReader reads a kmer partition file written by KmerFileWriter.
type KmerFileReader struct {
	r     io.Reader
	K     int
	Width CountWidth
	nw    int
}

func NewKmerFileReader(r io.Reader) (*KmerFileReader, error) {
	h, err := readFileHeader(r, typeMagicBytes(typeMagicKmer))
	if err != nil {
		return nil, err
	}
	pre := make([]byte, 2)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, NewError(IO, "kmerfile.preamble", "", err)
	}
	k := int(pre[0])
	width := CountWidth(pre[1])
	if h.Compressed {
		r = lz4.NewReader(r)
	}
	return &KmerFileReader{r: r, K: k, Width: width, nw: wordsFor(k)}, nil
}

// Next reads the next record, or returns io.EOF.
func (kr *KmerFileReader) Next() (KmerRecord, error) {
	keyBuf := make([]byte, 8*kr.nw)
	if _, err := io.ReadFull(kr.r, keyBuf); err != nil {
		if err == io.EOF {
			return KmerRecord{}, io.EOF
		}
		return KmerRecord{}, NewError(IO, "kmerfile.next", "", err)
	}
	words := make([]uint64, kr.nw)
	for i := range words {
		b := keyBuf[i*8:]
		words[i] = uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
			uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
	}
	cbuf := make([]byte, kr.Width)
	if _, err := io.ReadFull(kr.r, cbuf); err != nil {
		return KmerRecord{}, NewError(Format, "kmerfile.next", "", fmt.Errorf("truncated record: %w", err))
	}
	count, _ := getCount(cbuf, kr.Width)
	return KmerRecord{Kmer: Kmer{K: kr.K, Words: words}, Count: count}, nil
}
