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
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/kmtricks-go/kmtricks"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "aggregate super-k-mers into per-sample, per-partition count files",
	Long: `count reads every (sample, partition) super-k-mer block written by
superk, reconstructs and aggregates k-mer counts, applies the
abundance-min filter, and emits a sorted count (or hash, or vector) file
per (sample, partition), plus one abundance histogram per sample.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		if opt.RunDir == "" {
			checkError(fmt.Errorf("--run-dir is required"))
		}

		started := time.Now()
		rd, err := kmtricks.NewRunDirectory(opt.RunDir)
		checkError(err)
		cfg, err := kmtricks.LoadRunConfig(opt.RunDir)
		checkError(err)
		fof, err := kmtricks.ParseFoF(rd.FoFCopy())
		checkError(err)

		hasher, err := kmtricks.NewHasher(cfg.Hasher)
		checkError(err)

		for p := 0; p < cfg.P; p++ {
			checkError(os.MkdirAll(rd.CountsPartitionDir(p), 0755))
		}

		progress := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar := progress.AddBar(int64(len(fof.Samples)),
			mpb.PrependDecorators(decor.Name("count"), decor.CountersNoUnit("%d / %d")),
			mpb.AppendDecorators(decor.Name("ETA: "), decor.EwmaETA(decor.ET_STYLE_GO, 60)),
		)

		jobs := make(chan kmtricks.Sample, len(fof.Samples))
		for _, s := range fof.Samples {
			jobs <- s
		}
		close(jobs)

		errCh := make(chan error, opt.NumCPUs)
		done := make(chan int, opt.NumCPUs)
		for w := 0; w < opt.NumCPUs; w++ {
			go func() {
				for sample := range jobs {
					t0 := time.Now()
					if err := countSample(rd, cfg, hasher, sample); err != nil {
						select {
						case errCh <- err:
						default:
						}
					}
					bar.Increment()
					bar.DecoratorEwmaUpdate(time.Since(t0))
				}
				done <- 1
			}()
		}
		for w := 0; w < opt.NumCPUs; w++ {
			<-done
		}
		progress.Wait()
		close(errCh)
		for err := range errCh {
			checkError(err)
		}

		log.Infof("count done in %s", time.Since(started))
	},
}

func init() {
	RootCmd.AddCommand(countCmd)
}

// countSample runs a PartitionCounter over every partition of one
// sample's super-k-mer files, sequentially, sharing a single Histogram
// across partitions, since one per-sample abundance histogram covers all
// of a sample's partitions.
func countSample(rd *kmtricks.RunDirectory, cfg *kmtricks.RunConfig, hasher kmtricks.Hasher, sample kmtricks.Sample) error {
	hist := kmtricks.NewHistogram(cfg.HistLower, cfg.HistUpper)

	for p := 0; p < cfg.P; p++ {
		if err := countPartition(rd, cfg, hasher, sample, p, hist); err != nil {
			return err
		}
	}

	histFile, err := os.Create(rd.HistogramFile(sample.ID))
	if err != nil {
		return kmtricks.NewError(kmtricks.IO, "count.histfile", rd.HistogramFile(sample.ID), err)
	}
	defer histFile.Close()
	return kmtricks.WriteHistFile(histFile, hist)
}

func countPartition(rd *kmtricks.RunDirectory, cfg *kmtricks.RunConfig, hasher kmtricks.Hasher, sample kmtricks.Sample, p int, hist *kmtricks.Histogram) error {
	skPath := rd.SuperkFile(sample.ID, p)
	ok, err := rd.StageComplete(skPath)
	if err != nil {
		return err
	}
	if !ok {
		return nil // no super-k-mers were routed to this partition for this sample
	}

	skFile, err := os.Open(skPath)
	if err != nil {
		return kmtricks.NewError(kmtricks.IO, "count.open", skPath, err)
	}
	defer skFile.Close()
	skReader, err := kmtricks.NewSuperkBlockReader(skFile)
	if err != nil {
		return err
	}

	pc := &kmtricks.PartitionCounter{
		K: cfg.K, M: cfg.M, Hasher: hasher, Seed: cfg.Seed, W: cfg.HashW,
		Partition: p, Mode: cfg.Mode, Strategy: cfg.Strategy,
		AbundanceMin: cfg.AbundanceMin, MaxC: cfg.MaxC, Width: cfg.CountWidth(),
		Histogram: hist,
	}

	byKey, sorted, err := pc.Count(skReader)
	if err != nil {
		return err
	}
	entries := sorted
	if entries == nil {
		for _, v := range byKey {
			entries = append(entries, v)
		}
	}

	outPath := rd.CountsFile(sample.ID, p, cfg.Mode, cfg.Compress)
	if cfg.Mode == kmtricks.ModeVector {
		outPath = rd.VectorFile(sample.ID, p)
	}
	outFile, err := os.Create(outPath)
	if err != nil {
		return kmtricks.NewError(kmtricks.IO, "count.create", outPath, err)
	}
	defer outFile.Close()

	switch cfg.Mode {
	case kmtricks.ModeHash:
		hw := kmtricks.NewHashFileWriter(outFile, cfg.CountWidth())
		if err := pc.FilterAndEmitHash(entries, hw); err != nil {
			return err
		}
		return hw.Close()
	case kmtricks.ModeVector:
		v := pc.FilterAndEmitVector(entries)
		return kmtricks.WriteVectorFile(outFile, v)
	default:
		kw := kmtricks.NewKmerFileWriter(outFile, cfg.K, cfg.CountWidth(), cfg.Compress)
		if err := pc.FilterAndEmitKmer(entries, kw); err != nil {
			return err
		}
		return kw.Close()
	}
}
