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
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/iafan/cwalk"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/shenwei356/util/pathutil"
)

// RunDirectory is an explicit context object carrying the run root and
// its path conventions, threaded through every stage instead of looked
// up from a package-level registry.
type RunDirectory struct {
	Root string
}

// NewRunDirectory resolves root (expanding a leading "~" via go-homedir)
// and returns its RunDirectory.
func NewRunDirectory(root string) (*RunDirectory, error) {
	expanded, err := homedir.Expand(root)
	if err != nil {
		return nil, NewError(Config, "rundir.new", root, err)
	}
	return &RunDirectory{Root: expanded}, nil
}

func (rd *RunDirectory) path(parts ...string) string {
	return filepath.Join(append([]string{rd.Root}, parts...)...)
}

func (rd *RunDirectory) FoFCopy() string       { return rd.path("kmtricks.fof") }
func (rd *RunDirectory) ConfigDir() string     { return rd.path("config") }
func (rd *RunDirectory) RepartitionDir() string { return rd.path("repartition") }
func (rd *RunDirectory) PartitionMapFile() string {
	return rd.path("repartition", "partition_map.bin")
}
func (rd *RunDirectory) HashInfoFile() string { return rd.path("hash.info") }
func (rd *RunDirectory) MinimizersFile(p int) string {
	return rd.path("minimizers", fmt.Sprintf("minimizers.%d", p))
}

func (rd *RunDirectory) SuperkDir(sampleID string) string {
	return rd.path("superkmers", sampleID)
}

func (rd *RunDirectory) SuperkFile(sampleID string, p int) string {
	return filepath.Join(rd.SuperkDir(sampleID), strconv.Itoa(p))
}

func (rd *RunDirectory) SuperkInfoFile(sampleID string) string {
	return filepath.Join(rd.SuperkDir(sampleID), "info.bin")
}

func (rd *RunDirectory) CountsPartitionDir(p int) string {
	return rd.path("counts", fmt.Sprintf("partition_%d", p))
}

// CountsFile returns the path of one (sample, partition) count file, in
// kmer or hash mode, with the optional lz4/p4 compression suffix.
func (rd *RunDirectory) CountsFile(sampleID string, p int, mode CountMode, compressed bool) string {
	ext := "kmer"
	if mode == ModeHash || mode == ModeVector {
		ext = "hash"
	}
	suffix := ""
	if compressed {
		if mode == ModeHash {
			suffix = ".p4"
		} else {
			suffix = ".lz4"
		}
	}
	return filepath.Join(rd.CountsPartitionDir(p), sampleID+"."+ext+suffix)
}

func (rd *RunDirectory) VectorFile(sampleID string, p int) string {
	return filepath.Join(rd.CountsPartitionDir(p), sampleID+".vec")
}

func (rd *RunDirectory) MatricesDir() string { return rd.path("matrices") }

// MatrixFile returns the merged output path for partition p in the given
// MatrixKind.
func (rd *RunDirectory) MatrixFile(p int, kind MatrixKind) string {
	exts := map[MatrixKind]string{
		MatrixCount: "count",
		MatrixPA:    "pa",
		MatrixBF:    "cmbf",
		MatrixBFC:   "cmbf",
		MatrixBFT:   "rmbf",
	}
	return rd.path("matrices", fmt.Sprintf("matrix_%d.%s", p, exts[kind]))
}

func (rd *RunDirectory) FiltersDir() string { return rd.path("filters") }

func (rd *RunDirectory) BloomFile(sampleID string) string {
	return filepath.Join(rd.FiltersDir(), sampleID+".bf")
}

func (rd *RunDirectory) HistogramsDir() string { return rd.path("histograms") }

func (rd *RunDirectory) HistogramFile(sampleID string) string {
	return filepath.Join(rd.HistogramsDir(), sampleID+".hist")
}

// allDirs lists every directory EnsureLayout must create.
func (rd *RunDirectory) allDirs() []string {
	return []string{
		rd.ConfigDir(), rd.RepartitionDir(), rd.path("superkmers"),
		rd.path("counts"), rd.MatricesDir(), rd.FiltersDir(),
		rd.HistogramsDir(), rd.path("minimizers"),
	}
}

// EnsureLayout creates the run directory's full subtree.
func (rd *RunDirectory) EnsureLayout() error {
	for _, d := range rd.allDirs() {
		if err := os.MkdirAll(d, 0755); err != nil {
			return NewError(IO, "rundir.ensure", d, err)
		}
	}
	return nil
}

// StageComplete reports whether a file already exists and is non-empty;
// callers use it to tell a missing or empty stage output from a written
// one.
func (rd *RunDirectory) StageComplete(path string) (bool, error) {
	ok, err := pathutil.Exists(path)
	if err != nil {
		return false, NewError(IO, "rundir.stagecomplete", path, err)
	}
	if !ok {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, NewError(IO, "rundir.stagecomplete", path, err)
	}
	return info.Size() > 0, nil
}

// RemoveSuperkmers deletes the superkmers/ tree. Super-k-mer files only
// exist between the superk and count stages; the pipeline calls this
// once every count task has finished, unless the run retains
// temporaries.
func (rd *RunDirectory) RemoveSuperkmers() error {
	if err := os.RemoveAll(rd.path("superkmers")); err != nil {
		return NewError(IO, "rundir.cleanup", rd.path("superkmers"), err)
	}
	return nil
}

// RemoveCounts deletes the counts/ tree once its last consumer (merge,
// or format in vector mode) has finished.
func (rd *RunDirectory) RemoveCounts() error {
	if err := os.RemoveAll(rd.path("counts")); err != nil {
		return NewError(IO, "rundir.cleanup", rd.path("counts"), err)
	}
	return nil
}

// CountExistingCountFiles walks the counts/ tree with cwalk's
// parallel filepath.Walk and reports how many (sample, partition)
// outputs already exist, used by the pipeline driver to report resume
// progress without re-counting every partition synchronously.
func (rd *RunDirectory) CountExistingCountFiles() (int64, error) {
	var n int64
	var mu sync.Mutex
	var walkErr error
	err := cwalk.Walk(rd.path("counts"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			mu.Lock()
			walkErr = err
			mu.Unlock()
			return nil
		}
		if !info.IsDir() {
			atomic.AddInt64(&n, 1)
		}
		return nil
	})
	if err != nil {
		return 0, NewError(IO, "rundir.walk", rd.path("counts"), err)
	}
	if walkErr != nil {
		return 0, NewError(IO, "rundir.walk", rd.path("counts"), walkErr)
	}
	return n, nil
}
