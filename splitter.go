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
	"io"
	"sync"
	"sync/atomic"
)

// SuperkSplitter consumes a sequence iterator for one sample and routes
// super-k-mers into per-partition writer bags. A splitter is shared by
// every goroutine processing one sample's sequences concurrently;
// partitionLocks serializes writes to each partition's shared writer.
type SuperkSplitter struct {
	K, M int
	PM   *PartitionMap

	writers        []*SuperkBlockWriter
	partitionLocks []sync.Mutex
	kmerCounts     []int64 // atomic, one counter per partition
}

// NewSuperkSplitter builds a splitter over one writer per partition
// (len(writers) must equal pm.P).
func NewSuperkSplitter(k, m int, pm *PartitionMap, writers []*SuperkBlockWriter) *SuperkSplitter {
	return &SuperkSplitter{
		K: k, M: m, PM: pm,
		writers:        writers,
		partitionLocks: make([]sync.Mutex, len(writers)),
		kmerCounts:     make([]int64, len(writers)),
	}
}

// run accumulates the super-k-mer currently being extended.
type superkRun struct {
	nucleotides []byte
	partition   int
	count       uint8
}

// ProcessSequence consumes one sequence, splitting it into super-k-mers
// and routing each to its partition's writer. The k-mer state is
// rolling: the forward and reverse-complement forms are each updated by
// one 2-bit shift per base, and the canonical form is whichever compares
// smaller. The minimizer is rescanned per shift rather than cached by
// position, since canonicalization can flip strand between consecutive
// windows and a flipped window shares no positional relation with the
// previous one.
// Safe to call concurrently from multiple goroutines processing
// different sequences of the same sample.
func (s *SuperkSplitter) ProcessSequence(seq []byte) error {
	if len(seq) < s.K {
		return nil
	}
	fwd := NewKmer(s.K)
	rc := NewKmer(s.K)
	filled := 0
	var run *superkRun
	for i := 0; i < len(seq); i++ {
		code, ok := base2bit(seq[i])
		if !ok {
			// Non-ACGT forces a super-k-mer boundary.
			if run != nil {
				if err := s.flush(run); err != nil {
					return err
				}
				run = nil
			}
			filled = 0
			continue
		}
		fwd.shiftInPlace2(code)
		rc.shiftInTop2(complementBase(code))
		if filled < s.K {
			filled++
			if filled < s.K {
				continue
			}
		}
		canon := fwd
		if rc.Compare(fwd) < 0 {
			canon = rc
		}
		mu, _ := MinimizerWindow(canon, s.M)
		partition := s.PM.PartitionOf(mu)
		window := seq[i+1-s.K : i+1]

		if run == nil {
			run = &superkRun{nucleotides: append([]byte(nil), window...), partition: partition, count: 1}
			continue
		}
		if partition != run.partition || run.count == 255 {
			if err := s.flush(run); err != nil {
				return err
			}
			run = &superkRun{nucleotides: append([]byte(nil), window...), partition: partition, count: 1}
			continue
		}
		run.nucleotides = append(run.nucleotides, seq[i])
		run.count++
	}
	if run != nil {
		return s.flush(run)
	}
	return nil
}

func (s *SuperkSplitter) flush(run *superkRun) error {
	p := run.partition
	s.partitionLocks[p].Lock()
	defer s.partitionLocks[p].Unlock()
	if err := s.writers[p].Append(SuperKmer{Nucleotides: run.nucleotides, Count: run.count}); err != nil {
		return err
	}
	atomic.AddInt64(&s.kmerCounts[p], int64(run.count))
	return nil
}

// Close flushes and closes every partition writer, returning the
// manifest entries WriteSuperKmerBinInfoFile expects.
func (s *SuperkSplitter) Close(fileSizer func(partition int) (int64, error)) ([]SuperKmerBinInfo, error) {
	infos := make([]SuperKmerBinInfo, len(s.writers))
	for p, w := range s.writers {
		if err := w.Close(); err != nil {
			return nil, err
		}
		var size int64
		if fileSizer != nil {
			sz, err := fileSizer(p)
			if err != nil {
				return nil, err
			}
			size = sz
		}
		infos[p] = SuperKmerBinInfo{
			Partition: p,
			NumKmers:  uint64(atomic.LoadInt64(&s.kmerCounts[p])),
			NumBytes:  uint64(size),
		}
	}
	return infos, nil
}

// ProcessAll drains r sequence by sequence (single-threaded convenience
// wrapper; callers wanting concurrency fan out ProcessSequence calls
// across a worker pool themselves).
func (s *SuperkSplitter) ProcessAll(r SequenceReader) error {
	for {
		seq, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewError(IO, "splitter.processall", "", err)
		}
		if err := s.ProcessSequence(seq); err != nil {
			return err
		}
	}
}
