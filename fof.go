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
	"strings"

	"github.com/shenwei356/breader"
)

// Sample is one logical input: a stable string id plus the paths passed
// to the external sequence reader. Index
// is the sample's position in FoF order, which fixes the sample index
// for the whole run.
type Sample struct {
	ID    string
	Paths []string
	Index int
}

// FoF is the parsed File-of-Files manifest: one sample
// per line, `id : path1 [; path2 ...]`, with comment (#) and blank lines
// tolerated the way the original kmtricks FoF parser does.
type FoF struct {
	Samples []Sample
	byID    map[string]int
}

// IndexOf returns a sample's fixed FoF-order index, or -1 if id is unknown.
func (f *FoF) IndexOf(id string) int {
	if i, ok := f.byID[id]; ok {
		return i
	}
	return -1
}

// ParseFoF reads a File-of-Files. Blank lines and lines starting with '#'
// (after trimming whitespace) are skipped. Every other line must match
// `id : path1 [; path2 ...]`.
//
// Parsing is done with a parseFunc fed to breader.NewBufferedReader,
// consumed from the reader's Ch channel.
func ParseFoF(path string) (*FoF, error) {
	type rawLine struct {
		line string
	}
	parseFunc := func(line string) (interface{}, bool, error) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			return nil, false, nil
		}
		return rawLine{line: trimmed}, true, nil
	}

	reader, err := breader.NewBufferedReader(path, 1, 100, parseFunc)
	if err != nil {
		return nil, NewError(IO, "fof.parse", path, err)
	}

	fof := &FoF{byID: make(map[string]int)}
	var data interface{}
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, NewError(Format, "fof.parse", path, chunk.Err)
		}
		for _, data = range chunk.Data {
			sample, err := parseFoFLine(data.(rawLine).line)
			if err != nil {
				return nil, NewError(Config, "fof.parse", path, err)
			}
			if _, dup := fof.byID[sample.ID]; dup {
				return nil, NewError(Config, "fof.parse", path, fmt.Errorf("duplicate sample id %q", sample.ID))
			}
			sample.Index = len(fof.Samples)
			fof.byID[sample.ID] = sample.Index
			fof.Samples = append(fof.Samples, sample)
		}
	}
	if len(fof.Samples) == 0 {
		return nil, NewError(Config, "fof.parse", path, fmt.Errorf("empty File-of-Files"))
	}
	return fof, nil
}

func parseFoFLine(line string) (Sample, error) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return Sample{}, fmt.Errorf("malformed FoF line (expected \"id : path[;path...]\"): %q", line)
	}
	id := strings.TrimSpace(line[:idx])
	if id == "" {
		return Sample{}, fmt.Errorf("empty sample id in FoF line: %q", line)
	}
	rest := line[idx+1:]
	var paths []string
	for _, p := range strings.Split(rest, ";") {
		p = strings.TrimSpace(p)
		if p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return Sample{}, fmt.Errorf("sample %q has no input path", id)
	}
	return Sample{ID: id, Paths: paths}, nil
}
