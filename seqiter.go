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

import "io"

// SequenceReader is the external collaborator the core consumes: a
// sequence iterator yielding ASCII nucleotide buffers, leaving
// FASTA/FASTQ parsing itself to the caller. The CLI layer's real
// implementation wraps shenwei356/bio/seqio/fastx; this interface is
// all SuperkSplitter depends on.
type SequenceReader interface {
	// Next returns the next sequence's raw ASCII bytes (upper or lower
	// case, any non-ACGT byte included verbatim), or io.EOF when
	// exhausted.
	Next() ([]byte, error)
}

// sliceSequenceReader is a minimal in-memory SequenceReader, used by
// tests and by any caller that already holds sequences in memory.
type sliceSequenceReader struct {
	seqs [][]byte
	pos  int
}

// NewSliceSequenceReader adapts a slice of raw sequences to SequenceReader.
func NewSliceSequenceReader(seqs [][]byte) SequenceReader {
	return &sliceSequenceReader{seqs: seqs}
}

func (s *sliceSequenceReader) Next() ([]byte, error) {
	if s.pos >= len(s.seqs) {
		return nil, io.EOF
	}
	seq := s.seqs[s.pos]
	s.pos++
	return seq, nil
}
