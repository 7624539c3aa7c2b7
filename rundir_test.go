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
	"os"
	"path/filepath"
	"testing"
)

func TestRunDirectoryEnsureLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "run")
	rd, err := NewRunDirectory(root)
	if err != nil {
		t.Fatalf("new run directory: %v", err)
	}
	if err := rd.EnsureLayout(); err != nil {
		t.Fatalf("ensure layout: %v", err)
	}
	for _, d := range []string{
		rd.ConfigDir(), rd.RepartitionDir(), rd.MatricesDir(), rd.FiltersDir(), rd.HistogramsDir(),
	} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("expected directory %s to exist: %v", d, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", d)
		}
	}
}

func TestRunDirectoryPathConventions(t *testing.T) {
	rd, err := NewRunDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("new run directory: %v", err)
	}
	if got := rd.SuperkFile("A1", 3); filepath.Base(got) != "3" {
		t.Errorf("SuperkFile basename = %q, want \"3\"", filepath.Base(got))
	}
	if got := rd.CountsFile("A1", 0, ModeKmer, false); filepath.Ext(got) != ".kmer" {
		t.Errorf("CountsFile(kmer, uncompressed) ext = %q, want .kmer", filepath.Ext(got))
	}
	if got := rd.CountsFile("A1", 0, ModeKmer, true); filepath.Ext(got) != ".lz4" {
		t.Errorf("CountsFile(kmer, compressed) ext = %q, want .lz4", filepath.Ext(got))
	}
	if got := rd.CountsFile("A1", 0, ModeHash, true); filepath.Ext(got) != ".p4" {
		t.Errorf("CountsFile(hash, compressed) ext = %q, want .p4", filepath.Ext(got))
	}
	if got := rd.MatrixFile(2, MatrixPA); filepath.Base(got) != "matrix_2.pa" {
		t.Errorf("MatrixFile(PA) = %q, want matrix_2.pa", filepath.Base(got))
	}
	if got := rd.BloomFile("A1"); filepath.Base(got) != "A1.bf" {
		t.Errorf("BloomFile = %q, want A1.bf", filepath.Base(got))
	}
}

func TestRunDirectoryStageComplete(t *testing.T) {
	rd, err := NewRunDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("new run directory: %v", err)
	}
	missing := filepath.Join(rd.Root, "does-not-exist")
	ok, err := rd.StageComplete(missing)
	if err != nil {
		t.Fatalf("stage complete (missing): %v", err)
	}
	if ok {
		t.Errorf("expected StageComplete=false for a missing file")
	}

	empty := filepath.Join(rd.Root, "empty.bin")
	if err := os.MkdirAll(rd.Root, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	ok, err = rd.StageComplete(empty)
	if err != nil {
		t.Fatalf("stage complete (empty): %v", err)
	}
	if ok {
		t.Errorf("expected StageComplete=false for a zero-byte file")
	}

	nonEmpty := filepath.Join(rd.Root, "nonempty.bin")
	if err := os.WriteFile(nonEmpty, []byte{1, 2, 3}, 0644); err != nil {
		t.Fatalf("write nonempty file: %v", err)
	}
	ok, err = rd.StageComplete(nonEmpty)
	if err != nil {
		t.Fatalf("stage complete (nonempty): %v", err)
	}
	if !ok {
		t.Errorf("expected StageComplete=true for a nonempty file")
	}
}
