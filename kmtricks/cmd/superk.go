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

var superkCmd = &cobra.Command{
	Use:   "superk",
	Short: "split every sample's sequences into super-k-mers routed by partition",
	Long: `superk reads the partition map built by repart and, for every sample in
the File-of-Files, splits its sequences into super-k-mers and writes one
block file per (sample, partition) under superkmers/.`,
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

		pmFile, err := os.Open(rd.PartitionMapFile())
		checkError(err)
		pm, err := kmtricks.DeserializePartitionMap(pmFile)
		checkError(err)
		checkError(pmFile.Close())

		progress := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar := progress.AddBar(int64(len(fof.Samples)),
			mpb.PrependDecorators(decor.Name("superk"), decor.CountersNoUnit("%d / %d")),
			mpb.AppendDecorators(decor.Name("ETA: "), decor.EwmaETA(decor.ET_STYLE_GO, 60)),
		)

		type job struct{ sample kmtricks.Sample }
		jobs := make(chan job, len(fof.Samples))
		for _, s := range fof.Samples {
			jobs <- job{sample: s}
		}
		close(jobs)

		errCh := make(chan error, opt.NumCPUs)
		done := make(chan int, opt.NumCPUs)
		for w := 0; w < opt.NumCPUs; w++ {
			go func() {
				for j := range jobs {
					t0 := time.Now()
					if err := splitSample(rd, cfg, pm, j.sample); err != nil {
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

		log.Infof("superk done in %s", time.Since(started))
	},
}

func init() {
	RootCmd.AddCommand(superkCmd)
}

// splitSample runs SuperkSplitter over one sample's sequences, writing
// superkmers/<sample>/<partition> block files plus the sample's
// SuperKmerBinInfo manifest.
func splitSample(rd *kmtricks.RunDirectory, cfg *kmtricks.RunConfig, pm *kmtricks.PartitionMap, sample kmtricks.Sample) error {
	if err := os.MkdirAll(rd.SuperkDir(sample.ID), 0755); err != nil {
		return kmtricks.NewError(kmtricks.IO, "superk.mkdir", rd.SuperkDir(sample.ID), err)
	}

	writers := make([]*kmtricks.SuperkBlockWriter, cfg.P)
	files := make([]*os.File, cfg.P)
	for p := 0; p < cfg.P; p++ {
		f, err := os.Create(rd.SuperkFile(sample.ID, p))
		if err != nil {
			return kmtricks.NewError(kmtricks.IO, "superk.create", rd.SuperkFile(sample.ID, p), err)
		}
		files[p] = f
		writers[p] = kmtricks.NewSuperkBlockWriter(f, cfg.K, cfg.Compress)
	}

	splitter := kmtricks.NewSuperkSplitter(cfg.K, cfg.M, pm, writers)

	r, err := newFastxSequenceReader(sample.Paths)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := splitter.ProcessAll(r); err != nil {
		return err
	}

	infos, err := splitter.Close(func(p int) (int64, error) {
		info, err := files[p].Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	})
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := f.Close(); err != nil {
			return kmtricks.NewError(kmtricks.IO, "superk.close", f.Name(), err)
		}
	}

	infoFile, err := os.Create(rd.SuperkInfoFile(sample.ID))
	if err != nil {
		return kmtricks.NewError(kmtricks.IO, "superk.infofile", rd.SuperkInfoFile(sample.ID), err)
	}
	defer infoFile.Close()
	return kmtricks.WriteSuperKmerBinInfoFile(infoFile, infos)
}
