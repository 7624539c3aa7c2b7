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

package cmd

import (
	"io"

	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/kmtricks-go/kmtricks"
)

// fastxSequenceReader adapts a sample's FASTA/FASTQ files (possibly several,
// e.g. paired-end) to kmtricks.SequenceReader, handing one raw sequence
// (record.Seq.Seq) at a time across file boundaries.
type fastxSequenceReader struct {
	paths  []string
	pos    int
	reader *fastx.Reader
}

// newFastxSequenceReader builds a reader over paths in order; the first
// file is opened eagerly so a bad path fails fast.
func newFastxSequenceReader(paths []string) (*fastxSequenceReader, error) {
	r := &fastxSequenceReader{paths: paths}
	if err := r.openNext(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *fastxSequenceReader) openNext() error {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
	for r.pos < len(r.paths) {
		path := r.paths[r.pos]
		r.pos++
		fr, err := fastx.NewDefaultReader(path)
		if err != nil {
			return kmtricks.NewError(kmtricks.IO, "seqreader.open", path, err)
		}
		r.reader = fr
		return nil
	}
	return io.EOF
}

// Next implements kmtricks.SequenceReader.
func (r *fastxSequenceReader) Next() ([]byte, error) {
	for {
		if r.reader == nil {
			return nil, io.EOF
		}
		record, err := r.reader.Read()
		if err == io.EOF {
			if openErr := r.openNext(); openErr != nil {
				if openErr == io.EOF {
					return nil, io.EOF
				}
				return nil, openErr
			}
			continue
		}
		if err != nil {
			return nil, kmtricks.NewError(kmtricks.IO, "seqreader.read", "", err)
		}
		seq := make([]byte, len(record.Seq.Seq))
		copy(seq, record.Seq.Seq)
		return seq, nil
	}
}

func (r *fastxSequenceReader) Close() {
	if r.reader != nil {
		r.reader.Close()
	}
}
