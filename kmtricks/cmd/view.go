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
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kmtricks-go/kmtricks"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "dump merged count matrices as text",
	Long: `view renders the binary count matrix of one partition (or every
partition) as tab-separated text: the key (k-mer sequence, or hash value
in hash mode) followed by one count per sample, in FoF order. Output goes
to stdout by default; an output file ending in .gz is gzip-compressed.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		if opt.RunDir == "" {
			checkError(fmt.Errorf("--run-dir is required"))
		}
		partitionFlag := getFlagInt(cmd, "partition")
		outFile := getFlagString(cmd, "out-file")
		gzipped := getFlagBool(cmd, "gzip")

		rd, err := kmtricks.NewRunDirectory(opt.RunDir)
		checkError(err)
		cfg, err := kmtricks.LoadRunConfig(opt.RunDir)
		checkError(err)
		fof, err := kmtricks.ParseFoF(rd.FoFCopy())
		checkError(err)

		partitions := make([]int, 0, cfg.P)
		if partitionFlag >= 0 {
			partitions = append(partitions, partitionFlag)
		} else {
			for p := 0; p < cfg.P; p++ {
				partitions = append(partitions, p)
			}
		}

		w, closer, file, err := outStream(outFile, gzipped)
		checkError(err)
		defer func() {
			checkError(w.Flush())
			checkError(closer.Close())
			if closer != io.WriteCloser(file) {
				checkError(file.Close())
			}
		}()

		ids := make([]string, len(fof.Samples))
		for _, s := range fof.Samples {
			ids[s.Index] = s.ID
		}
		fmt.Fprintf(w, "#key\t%s\n", strings.Join(ids, "\t"))

		for _, p := range partitions {
			checkError(viewPartition(rd, p, w))
		}
	},
}

func init() {
	RootCmd.AddCommand(viewCmd)

	viewCmd.Flags().Int("partition", -1, "dump only this partition (-1 = every partition)")
	viewCmd.Flags().StringP("out-file", "o", "-", `output file ("-" for stdout)`)
	viewCmd.Flags().Bool("gzip", false, "gzip the output regardless of file extension")
}

func viewPartition(rd *kmtricks.RunDirectory, p int, w io.Writer) error {
	path := rd.MatrixFile(p, kmtricks.MatrixCount)
	f, err := os.Open(path)
	if err != nil {
		return kmtricks.NewError(kmtricks.IO, "view.open", path, err)
	}
	defer f.Close()

	mr, err := kmtricks.NewCountMatrixReader(f)
	if err != nil {
		return err
	}
	fields := make([]string, 0, mr.N+1)
	for {
		row, err := mr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields = fields[:0]
		if mr.HashMode {
			fields = append(fields, strconv.FormatUint(row.Key, 10))
		} else {
			fields = append(fields, row.Kmer.String())
		}
		for _, c := range row.Counts {
			fields = append(fields, strconv.FormatUint(uint64(c), 10))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, "\t")); err != nil {
			return kmtricks.NewError(kmtricks.IO, "view.write", path, err)
		}
	}
}
