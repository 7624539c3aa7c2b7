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

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "run repart, superk, count, merge and format back to back",
	Long: `pipeline drives the full repart -> superk -> count -> merge -> format
sequence in one invocation. Every stage runs on each invocation; outputs
left by an earlier run are overwritten, not reused.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		if opt.RunDir == "" {
			checkError(fmt.Errorf("--run-dir is required"))
		}

		fofPath := getFlagString(cmd, "fof")
		k := getFlagPositiveInt(cmd, "kmer-len")
		m := getFlagPositiveInt(cmd, "minimizer-len")
		p := getFlagNonNegativeInt(cmd, "partitions")
		sampleStride := getFlagPositiveInt(cmd, "sample-stride")
		hasherName := getFlagString(cmd, "hasher")
		mode := getFlagString(cmd, "mode")
		abundanceMin := getFlagUint32(cmd, "abundance-min")
		kindFlag := getFlagString(cmd, "matrix-kind")
		skipFormat := getFlagBool(cmd, "skip-format")
		keepTmp := getFlagBool(cmd, "keep-tmp")

		started := time.Now()

		fof, err := kmtricks.ParseFoF(fofPath)
		checkError(err)

		rd, err := kmtricks.NewRunDirectory(opt.RunDir)
		checkError(err)
		checkError(rd.EnsureLayout())

		log.Info("stage 1/5: repart")
		counts, err := sampleMinimizers(fof, k, m, sampleStride)
		checkError(err)
		if p == 0 {
			p = autoPartitions(len(counts), opt.NumCPUs, ramBudgetDefaultMB)
		}
		pm, err := kmtricks.BuildPartitionMap(counts, m, p, kmtricks.PolicyUnordered)
		checkError(err)
		pmFile, err := os.Create(rd.PartitionMapFile())
		checkError(err)
		checkError(pm.Serialize(pmFile))
		checkError(pmFile.Close())
		checkError(writeMinimizerLists(rd, pm, counts, p, m))
		hashWindow := (uint64(1) << 34) / uint64(p)
		if hashWindow == 0 {
			hashWindow = 1
		}
		checkError(writeHashInfo(rd, p, hashWindow))

		cfg := &kmtricks.RunConfig{
			K: k, M: m, P: p,
			Policy: kmtricks.PolicyUnordered, Hasher: kmtricks.HasherName(hasherName),
			HashW: hashWindow, MaxC: 255,
			Mode: kmtricks.CountMode(mode), Strategy: kmtricks.StrategyHashMap,
			AbundanceMin: abundanceMin, HistLower: 1, HistUpper: 10000,
			Recurrence: 1, ShareMin: 0,
			Threads: opt.NumCPUs, RAMBudgetMB: ramBudgetDefaultMB, FoFPath: fofPath,
		}
		checkError(cfg.Validate())
		checkError(cfg.SaveYAML(opt.RunDir))
		checkError(kmtricks.WriteRunInfos(opt.RunDir, len(fof.Samples), started))
		checkError(kmtricks.WriteBuildInfos(opt.RunDir, VERSION))
		checkError(copyFile(fofPath, rd.FoFCopy()))

		log.Info("stage 2/5: superk")
		runConcurrent(fof.Samples, opt.NumCPUs, func(s kmtricks.Sample) error {
			return splitSample(rd, cfg, pm, s)
		})

		log.Info("stage 3/5: count")
		hasher, err := kmtricks.NewHasher(cfg.Hasher)
		checkError(err)
		for p := 0; p < cfg.P; p++ {
			checkError(os.MkdirAll(rd.CountsPartitionDir(p), 0755))
		}
		if n, err := rd.CountExistingCountFiles(); err == nil && n > 0 {
			log.Infof("count: %d count files from an earlier run present; every sample is counted again", n)
		}
		runConcurrent(fof.Samples, opt.NumCPUs, func(s kmtricks.Sample) error {
			return countSample(rd, cfg, hasher, s)
		})
		if !keepTmp {
			checkError(rd.RemoveSuperkmers())
		}

		log.Info("stage 4/5: merge")
		checkError(os.MkdirAll(rd.MatricesDir(), 0755))
		kind, err := parseMatrixKind(kindFlag)
		checkError(err)
		policy := kmtricks.MergePolicy{SoftMin: kmtricks.SoftMinSingle(1), Recurrence: cfg.Recurrence, ShareMin: cfg.ShareMin}
		partitions := make([]int, cfg.P)
		for i := range partitions {
			partitions[i] = i
		}
		runConcurrentInt(partitions, opt.NumCPUs, func(p int) error {
			return mergePartition(rd, cfg, fof, p, kind, policy)
		})

		if !skipFormat && cfg.Mode == kmtricks.ModeVector {
			log.Info("stage 5/5: format")
			checkError(os.MkdirAll(rd.FiltersDir(), 0755))
			ba := &kmtricks.BloomAssembler{P: cfg.P, W: cfg.HashW}
			for _, sample := range fof.Samples {
				vectorPaths := make([]string, cfg.P)
				for p := 0; p < cfg.P; p++ {
					vectorPaths[p] = rd.VectorFile(sample.ID, p)
				}
				out, err := os.Create(rd.BloomFile(sample.ID))
				checkError(err)
				checkError(ba.AssembleBuffered(out, vectorPaths))
				checkError(out.Close())
			}
		} else {
			log.Info("stage 5/5: format skipped (--skip-format set, or not running in vector mode)")
		}
		// In vector mode with format skipped, the vector files under
		// counts/ are the run's final artifact, not a temporary.
		if !keepTmp && !(cfg.Mode == kmtricks.ModeVector && skipFormat) {
			checkError(rd.RemoveCounts())
		}

		log.Infof("pipeline done in %s", time.Since(started))
	},
}

const ramBudgetDefaultMB = 4096

func init() {
	RootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().StringP("fof", "i", "", "file-of-files (id : path1[;path2...] per line)")
	pipelineCmd.Flags().IntP("kmer-len", "k", 31, "k-mer length")
	pipelineCmd.Flags().IntP("minimizer-len", "m", 10, "minimizer length")
	pipelineCmd.Flags().IntP("partitions", "p", 0, "partition count (0 = auto from RAM budget)")
	pipelineCmd.Flags().Int("sample-stride", 10, "sample every Nth sequence when gathering minimizer frequencies")
	pipelineCmd.Flags().String("hasher", string(kmtricks.HashXXHash), "hash function: xxhash, highway, nthash")
	pipelineCmd.Flags().String("mode", string(kmtricks.ModeKmer), "counting mode: kmer, hash, vector")
	pipelineCmd.Flags().Uint32("abundance-min", 2, "minimum abundance to keep a k-mer")
	pipelineCmd.Flags().String("matrix-kind", "count", "output format: count, pa, bf, bfc, bft")
	pipelineCmd.Flags().Bool("skip-format", false, "skip the final Bloom-assembly stage even in vector mode")
	pipelineCmd.Flags().Bool("keep-tmp", false, "retain super-k-mer and per-partition count files after their last consuming stage")

	checkError(pipelineCmd.MarkFlagRequired("fof"))
}

// runConcurrent fans work across a fixed-size worker pool, collecting
// the first error via checkError.
func runConcurrent(items []kmtricks.Sample, workers int, fn func(kmtricks.Sample) error) {
	jobs := make(chan kmtricks.Sample, len(items))
	for _, it := range items {
		jobs <- it
	}
	close(jobs)

	errCh := make(chan error, workers)
	done := make(chan int, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for it := range jobs {
				if err := fn(it); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}
			done <- 1
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	close(errCh)
	for err := range errCh {
		checkError(err)
	}
}

func runConcurrentInt(items []int, workers int, fn func(int) error) {
	jobs := make(chan int, len(items))
	for _, it := range items {
		jobs <- it
	}
	close(jobs)

	errCh := make(chan error, workers)
	done := make(chan int, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for it := range jobs {
				if err := fn(it); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}
			done <- 1
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	close(errCh)
	for err := range errCh {
		checkError(err)
	}
}
