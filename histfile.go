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
)

// WriteHistFile serializes H(s) after the shared file header as u64
// fields: lower, upper, the unique and total k-mer counts, the four OOB
// counters, the bucket count n, then n (unique, total) pairs, one per
// abundance bucket.
func WriteHistFile(w io.Writer, h *Histogram) error {
	hdr := FileHeader{Version: FormatVersion, Compressed: false, TypeMagic: typeMagicBytes(typeMagicHist)}
	if err := writeFileHeader(w, hdr); err != nil {
		return err
	}
	fields := []uint64{
		h.Lower, h.Upper, h.UniqCount, h.TotalCount,
		h.OOBLowerUnique, h.OOBUpperUnique, h.OOBLowerTotal, h.OOBUpperTotal,
		uint64(len(h.Unique)),
	}
	for _, f := range fields {
		if err := binary.Write(w, be, f); err != nil {
			return NewError(IO, "histfile.write", "", err)
		}
	}
	for i := range h.Unique {
		if err := binary.Write(w, be, h.Unique[i]); err != nil {
			return NewError(IO, "histfile.write", "", err)
		}
		if err := binary.Write(w, be, h.Total[i]); err != nil {
			return NewError(IO, "histfile.write", "", err)
		}
	}
	return nil
}

// ReadHistFile reads a histogram file written by WriteHistFile.
func ReadHistFile(r io.Reader) (*Histogram, error) {
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicHist)); err != nil {
		return nil, err
	}
	var lower, upper, uniqCount, totalCount uint64
	var oobLU, oobUU, oobLT, oobUT uint64
	var n uint64
	for _, dst := range []*uint64{&lower, &upper, &uniqCount, &totalCount, &oobLU, &oobUU, &oobLT, &oobUT, &n} {
		if err := binary.Read(r, be, dst); err != nil {
			return nil, NewError(IO, "histfile.read", "", err)
		}
	}
	h := &Histogram{
		Lower: lower, Upper: upper,
		UniqCount: uniqCount, TotalCount: totalCount,
		OOBLowerUnique: oobLU, OOBUpperUnique: oobUU,
		OOBLowerTotal: oobLT, OOBUpperTotal: oobUT,
		Unique: make([]uint64, n),
		Total:  make([]uint64, n),
	}
	for i := uint64(0); i < n; i++ {
		if err := binary.Read(r, be, &h.Unique[i]); err != nil {
			return nil, NewError(IO, "histfile.read", "", err)
		}
		if err := binary.Read(r, be, &h.Total[i]); err != nil {
			return nil, NewError(IO, "histfile.read", "", err)
		}
	}
	return h, nil
}
