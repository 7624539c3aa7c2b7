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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	gzip "github.com/klauspost/pgzip"
)

// outStream opens file for writing (stdout for "-"), wrapping it in a
// gzip writer when the caller asks for it or the name ends in .gz.
func outStream(file string, gzipped bool) (*bufio.Writer, io.WriteCloser, *os.File, error) {
	var w *os.File
	if file == "-" {
		w = os.Stdout
	} else {
		var err error
		w, err = os.Create(file)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open output file: %s", err)
		}
	}

	gzipped = gzipped || strings.HasSuffix(file, ".gz")
	if gzipped {
		gw := gzip.NewWriter(w)
		return bufio.NewWriter(gw), gw, w, nil
	}
	return bufio.NewWriter(w), w, w, nil
}

// inStream opens file for reading (stdin for "-"), transparently
// decompressing it when its first bytes carry the gzip magic.
func inStream(file string) (*bufio.Reader, *os.File, error) {
	var r *os.File
	if file == "-" {
		r = os.Stdin
	} else {
		var err error
		r, err = os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open input file: %s", err)
		}
	}

	br := bufio.NewReader(r)
	gzipped, err := isGzip(br)
	if err != nil {
		return nil, nil, fmt.Errorf("check gzip: %s", err)
	}
	if gzipped {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip reader: %s", err)
		}
		return bufio.NewReader(gr), r, nil
	}
	return br, r, nil
}

var gzipMagic = []byte{0x1f, 0x8b}

// isGzip peeks at b's next two bytes without consuming them.
func isGzip(b *bufio.Reader) (bool, error) {
	return checkBytes(b, gzipMagic)
}

// checkBytes reports whether b's next len(buf) bytes equal buf.
func checkBytes(b *bufio.Reader, buf []byte) (bool, error) {
	peeked, err := b.Peek(len(buf))
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	for i, c := range buf {
		if peeked[i] != c {
			return false, nil
		}
	}
	return true, nil
}
