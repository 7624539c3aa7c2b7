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
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"

	"github.com/kmtricks-go/kmtricks"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "N-way merge one partition's per-sample count files across all samples",
	Long: `merge performs a sorted N-way merge across samples: for a single
partition (or every partition, if --partition is omitted), it combines
every sample's count/hash file into one matrix, applying the soft-min,
recurrence and share-min policies.`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		if opt.RunDir == "" {
			checkError(fmt.Errorf("--run-dir is required"))
		}

		kindFlag := getFlagString(cmd, "matrix-kind")
		partitionFlag := getFlagInt(cmd, "partition")
		softMin := getFlagUint32(cmd, "soft-min")
		softMinFile := getFlagString(cmd, "soft-min-file")
		softMinFrac := getFlagFloat64(cmd, "soft-min-fraction")

		started := time.Now()
		rd, err := kmtricks.NewRunDirectory(opt.RunDir)
		checkError(err)
		cfg, err := kmtricks.LoadRunConfig(opt.RunDir)
		checkError(err)
		fof, err := kmtricks.ParseFoF(rd.FoFCopy())
		checkError(err)
		checkError(os.MkdirAll(rd.MatricesDir(), 0755))

		kind, err := parseMatrixKind(kindFlag)
		checkError(err)

		partitions := make([]int, 0, cfg.P)
		if partitionFlag >= 0 {
			partitions = append(partitions, partitionFlag)
		} else {
			for p := 0; p < cfg.P; p++ {
				partitions = append(partitions, p)
			}
		}

		var softMinFn kmtricks.SoftMinFunc
		switch {
		case softMinFile != "":
			vals, err := parseSoftMinFile(softMinFile, fof)
			checkError(err)
			softMinFn = kmtricks.SoftMinPerSample(vals)
		case softMinFrac > 0:
			hists := make([]*kmtricks.Histogram, len(fof.Samples))
			for _, s := range fof.Samples {
				f, err := os.Open(rd.HistogramFile(s.ID))
				if err != nil {
					checkError(kmtricks.NewError(kmtricks.IO, "merge.hist", rd.HistogramFile(s.ID), err))
				}
				h, err := kmtricks.ReadHistFile(f)
				f.Close()
				checkError(err)
				hists[s.Index] = h
			}
			softMinFn = kmtricks.SoftMinFromHistograms(hists, softMinFrac)
		default:
			softMinFn = kmtricks.SoftMinSingle(softMin)
		}

		policy := kmtricks.MergePolicy{
			SoftMin:    softMinFn,
			Recurrence: cfg.Recurrence,
			ShareMin:   cfg.ShareMin,
		}

		progress := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar := progress.AddBar(int64(len(partitions)),
			mpb.PrependDecorators(decor.Name("merge"), decor.CountersNoUnit("%d / %d")),
			mpb.AppendDecorators(decor.Name("ETA: "), decor.EwmaETA(decor.ET_STYLE_GO, 60)),
		)

		jobs := make(chan int, len(partitions))
		for _, p := range partitions {
			jobs <- p
		}
		close(jobs)

		errCh := make(chan error, opt.NumCPUs)
		done := make(chan int, opt.NumCPUs)
		for w := 0; w < opt.NumCPUs; w++ {
			go func() {
				for p := range jobs {
					t0 := time.Now()
					if err := mergePartition(rd, cfg, fof, p, kind, policy); err != nil {
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

		log.Infof("merge done in %s", time.Since(started))
	},
}

func init() {
	RootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().String("matrix-kind", "count", "output format: count, pa, bf, bfc, bft")
	mergeCmd.Flags().Int("partition", -1, "merge only this partition (-1 = every partition)")
	mergeCmd.Flags().Uint32("soft-min", 1, "per-sample soft abundance threshold applied before recurrence/share-min")
	mergeCmd.Flags().String("soft-min-file", "", "per-sample soft thresholds, `id : value` per line (overrides --soft-min)")
	mergeCmd.Flags().Float64("soft-min-fraction", 0, "derive each sample's soft threshold from its histogram: abundance at which the cumulative unique fraction exceeds this value")
}

// parseSoftMinFile reads per-sample soft thresholds, `id : value` per
// line, into a FoF-order table. Samples missing from the file keep
// threshold 0.
func parseSoftMinFile(path string, fof *kmtricks.FoF) ([]uint32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, kmtricks.NewError(kmtricks.IO, "merge.softmin", path, err)
	}
	vals := make([]uint32, len(fof.Samples))
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, kmtricks.NewError(kmtricks.Config, "merge.softmin", path, fmt.Errorf("malformed line %q", line))
		}
		id := strings.TrimSpace(parts[0])
		idx := fof.IndexOf(id)
		if idx < 0 {
			return nil, kmtricks.NewError(kmtricks.Config, "merge.softmin", path, fmt.Errorf("unknown sample %q", id))
		}
		v, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return nil, kmtricks.NewError(kmtricks.Config, "merge.softmin", path, fmt.Errorf("bad threshold for %q: %v", id, err))
		}
		vals[idx] = uint32(v)
	}
	return vals, nil
}

func parseMatrixKind(s string) (kmtricks.MatrixKind, error) {
	switch s {
	case "count":
		return kmtricks.MatrixCount, nil
	case "pa":
		return kmtricks.MatrixPA, nil
	case "bf":
		return kmtricks.MatrixBF, nil
	case "bfc":
		return kmtricks.MatrixBFC, nil
	case "bft":
		return kmtricks.MatrixBFT, nil
	default:
		return 0, fmt.Errorf("unknown matrix kind %q", s)
	}
}

func mergePartition(rd *kmtricks.RunDirectory, cfg *kmtricks.RunConfig, fof *kmtricks.FoF, p int, kind kmtricks.MatrixKind, policy kmtricks.MergePolicy) error {
	out, err := os.Create(rd.MatrixFile(p, kind))
	if err != nil {
		return kmtricks.NewError(kmtricks.IO, "merge.create", rd.MatrixFile(p, kind), err)
	}
	defer out.Close()

	switch kind {
	case kmtricks.MatrixBF, kmtricks.MatrixBFC, kmtricks.MatrixBFT:
		return mergeBitMatrix(rd, cfg, fof, p, kind, out)
	default:
		if cfg.Mode == kmtricks.ModeHash {
			return mergeHashMatrix(rd, cfg, fof, p, kind, policy, out)
		}
		return mergeKmerMatrix(rd, cfg, fof, p, kind, policy, out)
	}
}

// paTotals accumulates packed presence rows in batches and reports
// per-sample column totals via SampleColumnTotals, without holding the
// whole matrix in memory.
type paTotals struct {
	n      int
	rows   [][]byte
	totals []uint32
}

func newPATotals(n int) *paTotals {
	return &paTotals{n: n, totals: make([]uint32, n)}
}

func (a *paTotals) add(counts []uint32) {
	row := make([]byte, (a.n+7)/8)
	for j, c := range counts {
		if c > 0 {
			row[j/8] |= 1 << (j % 8)
		}
	}
	a.rows = append(a.rows, row)
	if len(a.rows) == 8192 {
		a.flush()
	}
}

func (a *paTotals) flush() {
	if len(a.rows) == 0 {
		return
	}
	for j, t := range kmtricks.SampleColumnTotals(a.rows, a.n) {
		a.totals[j] += t
	}
	a.rows = a.rows[:0]
}

// mergeKmerMatrix drives PartitionMerger (merger.go) across every
// sample's (s, p) kmer file.
func mergeKmerMatrix(rd *kmtricks.RunDirectory, cfg *kmtricks.RunConfig, fof *kmtricks.FoF, p int, kind kmtricks.MatrixKind, policy kmtricks.MergePolicy, out *os.File) error {
	readers := make([]*kmtricks.KmerFileReader, len(fof.Samples))
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, sample := range fof.Samples {
		path := rd.CountsFile(sample.ID, p, kmtricks.ModeKmer, cfg.Compress)
		ok, err := rd.StageComplete(path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return kmtricks.NewError(kmtricks.IO, "merge.open", path, err)
		}
		files = append(files, f)
		r, err := kmtricks.NewKmerFileReader(f)
		if err != nil {
			return err
		}
		readers[sample.Index] = r
	}

	merger, err := kmtricks.NewPartitionMerger(cfg.K, p, readers, policy)
	if err != nil {
		return err
	}

	var writer interface {
		WriteRow(kmtricks.MatrixRow) error
		Close() error
	}
	if kind == kmtricks.MatrixPA {
		writer = kmtricks.NewPresenceMatrixWriter(out, len(fof.Samples), false, cfg.K)
	} else {
		writer = kmtricks.NewCountMatrixWriter(out, len(fof.Samples), cfg.CountWidth(), false, cfg.K)
	}

	var totals *paTotals
	if kind == kmtricks.MatrixPA {
		totals = newPATotals(len(fof.Samples))
	}
	if err := merger.MergeAll(func(km kmtricks.Kmer, counts []uint32) error {
		if totals != nil {
			totals.add(counts)
		}
		return writer.WriteRow(kmtricks.MatrixRow{Kmer: km, Counts: counts})
	}); err != nil {
		return err
	}
	if totals != nil {
		totals.flush()
		log.Infof("partition %d: per-sample presence totals %v", p, totals.totals)
	}
	return writer.Close()
}

// mergeHashMatrix performs the hash-mode equivalent of PartitionMerger:
// an N-way sorted merge over every sample's whole-file-read
// HashRecord slice, since hash files have no incremental cursor reader.
func mergeHashMatrix(rd *kmtricks.RunDirectory, cfg *kmtricks.RunConfig, fof *kmtricks.FoF, p int, kind kmtricks.MatrixKind, policy kmtricks.MergePolicy, out *os.File) error {
	type cursor struct {
		recs []kmtricks.HashRecord
		pos  int
	}
	cursors := make([]cursor, len(fof.Samples))
	for _, sample := range fof.Samples {
		path := rd.CountsFile(sample.ID, p, kmtricks.ModeHash, cfg.Compress)
		ok, err := rd.StageComplete(path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return kmtricks.NewError(kmtricks.IO, "merge.open", path, err)
		}
		recs, err := kmtricks.ReadHashFile(f)
		f.Close()
		if err != nil {
			return err
		}
		cursors[sample.Index] = cursor{recs: recs}
	}

	var writer interface {
		WriteRow(kmtricks.MatrixRow) error
		Close() error
	}
	var totals *paTotals
	if kind == kmtricks.MatrixPA {
		writer = kmtricks.NewPresenceMatrixWriter(out, len(fof.Samples), true, 0)
		totals = newPATotals(len(fof.Samples))
	} else {
		writer = kmtricks.NewCountMatrixWriter(out, len(fof.Samples), cfg.CountWidth(), true, 0)
	}

	for {
		found := false
		var minKey uint64
		for i := range cursors {
			c := &cursors[i]
			if c.pos >= len(c.recs) {
				continue
			}
			if !found || c.recs[c.pos].Hash < minKey {
				minKey = c.recs[c.pos].Hash
				found = true
			}
		}
		if !found {
			break
		}
		counts := make([]uint32, len(fof.Samples))
		for i := range cursors {
			c := &cursors[i]
			if c.pos < len(c.recs) && c.recs[c.pos].Hash == minKey {
				counts[i] = c.recs[c.pos].Count
				c.pos++
			}
		}
		if !policy.Apply(counts) {
			continue
		}
		if totals != nil {
			totals.add(counts)
		}
		if err := writer.WriteRow(kmtricks.MatrixRow{Key: minKey, Counts: counts}); err != nil {
			return err
		}
	}
	if totals != nil {
		totals.flush()
		log.Infof("partition %d: per-sample presence totals %v", p, totals.totals)
	}
	return writer.Close()
}

// mergeBitMatrix builds the bf/bfc/bft output: row i is hash i of the
// hash window of partition p, column j is sample j's vector file bit i,
// transposed for bft.
func mergeBitMatrix(rd *kmtricks.RunDirectory, cfg *kmtricks.RunConfig, fof *kmtricks.FoF, p int, kind kmtricks.MatrixKind, out *os.File) error {
	vectors := make([]kmtricks.BitVector, len(fof.Samples))
	for _, sample := range fof.Samples {
		path := rd.VectorFile(sample.ID, p)
		ok, err := rd.StageComplete(path)
		if err != nil {
			return err
		}
		if !ok {
			vectors[sample.Index] = kmtricks.NewBitVector(cfg.HashW)
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return kmtricks.NewError(kmtricks.IO, "merge.open", path, err)
		}
		v, err := kmtricks.ReadVectorFile(f)
		f.Close()
		if err != nil {
			return err
		}
		vectors[sample.Index] = v
	}

	// Every hash position 0..W-1 is written, including all-absent rows:
	// a row's position in the stream is its hash index, so skipping empty
	// rows would desynchronize the positional bitmap BloomAssembler later
	// reassembles into a per-sample Bloom filter.
	bw := kmtricks.NewBitMatrixWriter(out, cfg.HashW, len(fof.Samples), kind == kmtricks.MatrixBFT)
	present := make([]bool, len(fof.Samples))
	for i := uint64(0); i < cfg.HashW; i++ {
		for j, v := range vectors {
			present[j] = v.Test(i)
		}
		if err := bw.WriteHashRow(i, present); err != nil {
			return err
		}
	}
	return bw.Close()
}
