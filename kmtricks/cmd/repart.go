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
	"io/ioutil"
	"math"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kmtricks-go/kmtricks"
)

// bytesPerDistinctKmer estimates the in-memory footprint (key + count +
// overhead) of one entry in a partition counter's hash map, used by
// autoPartitions to size P from a RAM budget.
const bytesPerDistinctKmer = 48

var repartCmd = &cobra.Command{
	Use:   "repart",
	Short: "build the partition map from a sampled minimizer frequency table",
	Long: `repart reads the File-of-Files, samples minimizers from a fraction of
input sequences, and builds the deterministic minimizer -> partition map
every later stage depends on. It also lays out the run directory and
persists the run-wide configuration.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		fofPath := getFlagString(cmd, "fof")
		k := getFlagPositiveInt(cmd, "kmer-len")
		m := getFlagPositiveInt(cmd, "minimizer-len")
		p := getFlagNonNegativeInt(cmd, "partitions")
		orderedFlag := getFlagBool(cmd, "ordered")
		sampleStride := getFlagPositiveInt(cmd, "sample-stride")
		hasherName := getFlagString(cmd, "hasher")
		seed := getFlagUint64(cmd, "seed")
		hashBits := getFlagPositiveInt(cmd, "hash-bits")
		maxCount := getFlagUint32(cmd, "max-count")
		mode := getFlagString(cmd, "mode")
		strategy := getFlagString(cmd, "strategy")
		abundanceMin := getFlagUint32(cmd, "abundance-min")
		histLower := getFlagUint64(cmd, "hist-lower")
		histUpper := getFlagUint64(cmd, "hist-upper")
		recurrence := getFlagNonNegativeInt(cmd, "recurrence-min")
		shareMin := getFlagFloat64(cmd, "share-min")
		ramBudgetMB := getFlagUint64(cmd, "ram-budget-mb")
		compress := getFlagBool(cmd, "compress")

		if opt.RunDir == "" {
			checkError(fmt.Errorf("--run-dir is required"))
		}

		started := time.Now()

		log.Infof("parsing file-of-files: %s", fofPath)
		fof, err := kmtricks.ParseFoF(fofPath)
		checkError(err)
		log.Infof("%d samples found", len(fof.Samples))

		rd, err := kmtricks.NewRunDirectory(opt.RunDir)
		checkError(err)
		checkError(rd.EnsureLayout())

		if _, err := kmtricks.NewHasher(kmtricks.HasherName(hasherName)); err != nil {
			checkError(err)
		}

		log.Infof("sampling minimizers (stride=%d)", sampleStride)
		counts, err := sampleMinimizers(fof, k, m, sampleStride)
		checkError(err)
		log.Infof("%d distinct minimizers sampled", len(counts))

		if p == 0 {
			p = autoPartitions(len(counts), opt.NumCPUs, ramBudgetMB)
			log.Infof("auto-selected partitions: %d", p)
		}

		policy := kmtricks.PolicyUnordered
		if orderedFlag {
			policy = kmtricks.PolicyOrdered
		}
		pm, err := kmtricks.BuildPartitionMap(counts, m, p, policy)
		checkError(err)

		pmFile, err := os.Create(rd.PartitionMapFile())
		checkError(err)
		checkError(pm.Serialize(pmFile))
		checkError(pmFile.Close())

		checkError(writeMinimizerLists(rd, pm, counts, p, m))

		// hash-bits sizes the *total* hash space; each partition's window W
		// is that space divided by P.
		hashWindow := (uint64(1) << uint(hashBits)) / uint64(p)
		if hashWindow == 0 {
			hashWindow = 1
		}
		checkError(writeHashInfo(rd, p, hashWindow))

		cfg := &kmtricks.RunConfig{
			K: k, M: m, P: p,
			Policy: policy, Hasher: kmtricks.HasherName(hasherName), Seed: seed,
			HashW: hashWindow, MaxC: maxCount,
			Mode: kmtricks.CountMode(mode), Strategy: kmtricks.CountingStrategy(strategy),
			AbundanceMin: abundanceMin, HistLower: histLower, HistUpper: histUpper,
			Recurrence: recurrence, ShareMin: shareMin,
			Threads: opt.NumCPUs, RAMBudgetMB: ramBudgetMB, Compress: compress,
			FoFPath: fofPath,
		}
		checkError(cfg.Validate())
		checkError(cfg.SaveYAML(opt.RunDir))
		checkError(kmtricks.WriteRunInfos(opt.RunDir, len(fof.Samples), started))
		checkError(kmtricks.WriteBuildInfos(opt.RunDir, VERSION))
		checkError(copyFile(fofPath, rd.FoFCopy()))

		log.Infof("repart done in %s", time.Since(started))
	},
}

func init() {
	RootCmd.AddCommand(repartCmd)

	repartCmd.Flags().StringP("fof", "i", "", "file-of-files (id : path1[;path2...] per line)")
	repartCmd.Flags().IntP("kmer-len", "k", 31, "k-mer length")
	repartCmd.Flags().IntP("minimizer-len", "m", 10, "minimizer length")
	repartCmd.Flags().IntP("partitions", "p", 0, "partition count (0 = auto from RAM budget)")
	repartCmd.Flags().Bool("ordered", false, "use the lexicographic partition policy instead of frequency-balanced")
	repartCmd.Flags().Int("sample-stride", 10, "sample every Nth sequence when gathering minimizer frequencies")
	repartCmd.Flags().String("hasher", string(kmtricks.HashXXHash), "hash function: xxhash, highway, nthash")
	repartCmd.Flags().Uint64("seed", 0, "hash seed")
	repartCmd.Flags().Int("hash-bits", 34, "log2 of the total hash space, divided across partitions into each one's hash window")
	repartCmd.Flags().Uint32("max-count", 255, "MAX_C saturation cap")
	repartCmd.Flags().String("mode", string(kmtricks.ModeKmer), "counting mode: kmer, hash, vector")
	repartCmd.Flags().String("strategy", string(kmtricks.StrategyHashMap), "counting strategy: hashmap, sort")
	repartCmd.Flags().Uint32("abundance-min", 2, "minimum abundance to keep a k-mer")
	repartCmd.Flags().Uint64("hist-lower", 1, "histogram lower bound")
	repartCmd.Flags().Uint64("hist-upper", 10000, "histogram upper bound")
	repartCmd.Flags().Int("recurrence-min", 1, "minimum number of samples a row must survive in to be kept")
	repartCmd.Flags().Float64("share-min", 0, "minimum nonzero-sample fraction to keep a row")
	repartCmd.Flags().Uint64("ram-budget-mb", 4096, "RAM budget in MB, divided across --threads workers")
	repartCmd.Flags().Bool("compress", false, "LZ4-compress count/superk block files")

	checkError(repartCmd.MarkFlagRequired("fof"))
}

// sampleMinimizers scans every sampleStride-th sequence of every sample,
// building the minimizer occurrence table repart's PartitionMap is built
// from.
func sampleMinimizers(fof *kmtricks.FoF, k, m, sampleStride int) (map[kmtricks.Minim]uint32, error) {
	counts := make(map[kmtricks.Minim]uint32)
	for _, sample := range fof.Samples {
		r, err := newFastxSequenceReader(sample.Paths)
		if err != nil {
			return nil, err
		}
		i := 0
		for {
			seq, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				r.Close()
				return nil, err
			}
			if i%sampleStride == 0 {
				for start := 0; start+k <= len(seq); start++ {
					km, err := kmtricks.Encode(seq[start : start+k])
					if err != nil {
						continue
					}
					mn, _ := kmtricks.MinimizerWindow(kmtricks.Canonical(km), m)
					counts[mn]++
				}
			}
			i++
		}
		r.Close()
	}
	return counts, nil
}

// autoPartitions derives P from the estimated distinct k-mer count and
// the per-worker RAM budget, when the caller leaves the partition count
// unset. The sampled minimizer count is a (very rough) stand-in for
// the estimated number of distinct k-mers, since every k-mer maps to
// exactly one sampled or unsampled minimizer and partitions track
// minimizers 1:1.
func autoPartitions(distinctMinimizers, threads int, ramBudgetMB uint64) int {
	if threads <= 0 {
		threads = 1
	}
	perWorkerBytes := (ramBudgetMB * 1024 * 1024) / uint64(threads)
	if perWorkerBytes == 0 {
		return 1
	}
	capacityPerWorker := perWorkerBytes / bytesPerDistinctKmer
	if capacityPerWorker == 0 {
		capacityPerWorker = 1
	}
	estimatedKmers := uint64(distinctMinimizers) * 100 // rough minimizer-to-kmer fan-out
	p := int(math.Ceil(float64(estimatedKmers) / float64(capacityPerWorker)))
	if p < 1 {
		p = 1
	}
	if p > 65535 {
		p = 65535
	}
	return p
}

// writeMinimizerLists writes minimizers/minimizers.<p> for every
// partition: the sorted list of minimizers routed there.
func writeMinimizerLists(rd *kmtricks.RunDirectory, pm *kmtricks.PartitionMap, counts map[kmtricks.Minim]uint32, p, m int) error {
	buckets := make([][]kmtricks.Minim, p)
	for mn := range counts {
		part := pm.PartitionOf(mn)
		buckets[part] = append(buckets[part], mn)
	}
	for _, mns := range buckets {
		sort.Slice(mns, func(i, j int) bool { return mns[i] < mns[j] })
	}
	for part, mns := range buckets {
		f, err := os.Create(rd.MinimizersFile(part))
		if err != nil {
			return err
		}
		for _, mn := range mns {
			if _, err := fmt.Fprintln(f, mn.String(m)); err != nil {
				f.Close()
				return err
			}
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// writeHashInfo writes hash.info: the hash window W and partition count
// P every hash/vector-mode stage reads back.
func writeHashInfo(rd *kmtricks.RunDirectory, p int, hashWindow uint64) error {
	content := fmt.Sprintf("partitions=%d\nhash_window=%d\n", p, hashWindow)
	return ioutil.WriteFile(rd.HashInfoFile(), []byte(content), 0644)
}

// copyFile copies the input FoF into the run directory, transparently
// decompressing a gzipped source so kmtricks.fof is always plain text.
func copyFile(src, dst string) error {
	r, f, err := inStream(src)
	if err != nil {
		return err
	}
	defer f.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}
