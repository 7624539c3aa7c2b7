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

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/stable"
	"github.com/spf13/cobra"

	"github.com/kmtricks-go/kmtricks"
)

var infoCmd = &cobra.Command{
	Use:     "info",
	Aliases: []string{"stats"},
	Short:   "summarize a run directory's configuration and per-sample histograms",
	Long: `info prints the run's configuration (k, m, partitions, mode) and, for
every sample with a completed count stage, its distinct and total k-mer
counts read back from histograms/<sample>.hist.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		if opt.RunDir == "" {
			checkError(fmt.Errorf("--run-dir is required"))
		}

		rd, err := kmtricks.NewRunDirectory(opt.RunDir)
		checkError(err)
		cfg, err := kmtricks.LoadRunConfig(opt.RunDir)
		checkError(err)
		fof, err := kmtricks.ParseFoF(rd.FoFCopy())
		checkError(err)

		fmt.Fprintf(os.Stderr, "k=%d m=%d partitions=%d mode=%s hasher=%s\n",
			cfg.K, cfg.M, cfg.P, cfg.Mode, cfg.Hasher)

		style := &stable.TableStyle{
			Name:      "plain",
			HeaderRow: stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			DataRow:   stable.RowStyle{Begin: "", Sep: "  ", End: ""},
			Padding:   "",
		}

		columns := []stable.Column{
			{Header: "sample"},
			{Header: "counted", Align: stable.AlignLeft},
			{Header: "distinct", Align: stable.AlignRight},
			{Header: "total", Align: stable.AlignRight},
			{Header: "oob-lower", Align: stable.AlignRight},
			{Header: "oob-upper", Align: stable.AlignRight},
		}
		tbl := stable.New()
		tbl.HeaderWithFormat(columns)

		for _, sample := range fof.Samples {
			row := make([]interface{}, 0, len(columns))
			row = append(row, sample.ID)

			histPath := rd.HistogramFile(sample.ID)
			ok, err := rd.StageComplete(histPath)
			checkError(err)
			if !ok {
				row = append(row, "no", "-", "-", "-", "-")
				tbl.AddRow(row)
				continue
			}

			f, err := os.Open(histPath)
			checkError(err)
			hist, err := kmtricks.ReadHistFile(f)
			checkError(err)
			checkError(f.Close())

			row = append(row, "yes",
				humanize.Comma(int64(hist.UniqCount)),
				humanize.Comma(int64(hist.TotalCount)),
				humanize.Comma(int64(hist.OOBLowerUnique)),
				humanize.Comma(int64(hist.OOBUpperUnique)),
			)
			tbl.AddRow(row)
		}

		os.Stdout.Write(tbl.Render(style))
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)
}
