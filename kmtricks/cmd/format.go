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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmtricks-go/kmtricks"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "assemble per-sample Bloom filters from vector partitions",
	Long: `format concatenates, for every sample, its vector(s, 0..P-1) files into
a single Bloom filter file under filters/, prefixed by the shared header,
suitable for downstream index tools.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		if opt.RunDir == "" {
			checkError(fmt.Errorf("--run-dir is required"))
		}
		useMmap := getFlagBool(cmd, "mmap")

		started := time.Now()
		rd, err := kmtricks.NewRunDirectory(opt.RunDir)
		checkError(err)
		cfg, err := kmtricks.LoadRunConfig(opt.RunDir)
		checkError(err)
		fof, err := kmtricks.ParseFoF(rd.FoFCopy())
		checkError(err)
		checkError(os.MkdirAll(rd.FiltersDir(), 0755))

		ba := &kmtricks.BloomAssembler{P: cfg.P, W: cfg.HashW}

		for _, sample := range fof.Samples {
			vectorPaths := make([]string, cfg.P)
			for p := 0; p < cfg.P; p++ {
				vectorPaths[p] = rd.VectorFile(sample.ID, p)
			}

			out, err := os.Create(rd.BloomFile(sample.ID))
			checkError(err)

			if useMmap {
				err = ba.AssembleMmap(out, vectorPaths)
			} else {
				err = ba.AssembleBuffered(out, vectorPaths)
			}
			checkError(err)
			checkError(out.Close())
			log.Infof("assembled Bloom filter for sample %s", sample.ID)
		}

		log.Infof("format done in %s", time.Since(started))
	},
}

func init() {
	RootCmd.AddCommand(formatCmd)

	formatCmd.Flags().Bool("mmap", false, "use the mmap-based zero-copy assembly path instead of buffered reads")
}
