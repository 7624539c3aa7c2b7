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
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

// CountMode selects what PartitionCounter keys its output by.
type CountMode string

const (
	ModeKmer   CountMode = "kmer"
	ModeHash   CountMode = "hash"
	ModeVector CountMode = "vector"
)

// CountingStrategy selects PartitionCounter's in-memory aggregation
// algorithm, fixed at configure time for the whole run.
type CountingStrategy string

const (
	StrategyHashMap CountingStrategy = "hashmap"
	StrategySort    CountingStrategy = "sort"
)

// RunConfig is the run-wide parameter set every stage reads, persisted
// under config/options.yaml rather than held only as process flags,
// since every stage of the repart/superk/count/merge/format pipeline
// runs as a separate invocation and must agree.
type RunConfig struct {
	K int `yaml:"k"`
	M int `yaml:"m"`
	P int `yaml:"partitions"`

	Policy   PartitionPolicy  `yaml:"policy"`
	Hasher   HasherName       `yaml:"hasher"`
	Seed     uint64           `yaml:"seed"`
	HashW    uint64           `yaml:"hash_window"`
	MaxC     uint32           `yaml:"max_count"`
	Mode     CountMode        `yaml:"mode"`
	Strategy CountingStrategy `yaml:"strategy"`

	AbundanceMin  uint32 `yaml:"abundance_min"`
	HistLower     uint64 `yaml:"hist_lower"`
	HistUpper     uint64 `yaml:"hist_upper"`
	Recurrence    int    `yaml:"recurrence_min"`
	ShareMin      float64 `yaml:"share_min"`

	Threads     int    `yaml:"threads"`
	RAMBudgetMB uint64 `yaml:"ram_budget_mb"`
	Compress    bool   `yaml:"compress"`

	FoFPath string `yaml:"fof_path"`
}

// Validate rejects illegal k, m, partition counts and abundance bounds
// with Config-kind errors before any stage starts.
func (c *RunConfig) Validate() error {
	if c.K < MinK || c.K > MaxK {
		return NewError(Config, "config.validate", "", fmt.Errorf("k=%d out of [%d,%d]", c.K, MinK, MaxK))
	}
	if c.M < 4 || c.M > 15 || c.M >= c.K {
		return NewError(Config, "config.validate", "", fmt.Errorf("m=%d invalid for k=%d", c.M, c.K))
	}
	if c.P <= 0 {
		return NewError(Config, "config.validate", "", fmt.Errorf("partitions must be positive, got %d", c.P))
	}
	if c.MaxC == 0 {
		return NewError(Config, "config.validate", "", fmt.Errorf("max_count must be positive"))
	}
	if c.HistLower > c.HistUpper {
		return NewError(Config, "config.validate", "", fmt.Errorf("hist_lower=%d above hist_upper=%d", c.HistLower, c.HistUpper))
	}
	if c.ShareMin < 0 || c.ShareMin > 1 {
		return NewError(Config, "config.validate", "", fmt.Errorf("share_min=%f must be in [0,1]", c.ShareMin))
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	return nil
}

// CountWidth derives the on-disk CountSlot width from MaxC.
func (c *RunConfig) CountWidth() CountWidth { return WidthFor(c.MaxC) }

// SaveYAML persists the config to config/options.yaml, the run
// directory's standard config location.
func (c *RunConfig) SaveYAML(dir string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return NewError(Format, "config.save", dir, err)
	}
	path := filepath.Join(dir, "config", "options.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return NewError(IO, "config.save", path, err)
	}
	if err := ioutil.WriteFile(path, b, 0644); err != nil {
		return NewError(IO, "config.save", path, err)
	}
	return c.saveOptionsTxt(dir)
}

// saveOptionsTxt writes config/../options.txt, a flat key=value text
// mirror of the YAML config, kept alongside it as a plain-text run log.
func (c *RunConfig) saveOptionsTxt(dir string) error {
	path := filepath.Join(dir, "options.txt")
	lines := fmt.Sprintf(
		"k=%d\nm=%d\npartitions=%d\npolicy=%d\nhasher=%s\nseed=%d\nhash_window=%d\nmax_count=%d\nmode=%s\nstrategy=%s\nabundance_min=%d\nhist_lower=%d\nhist_upper=%d\nrecurrence_min=%d\nshare_min=%f\nthreads=%d\nram_budget_mb=%d\ncompress=%t\nfof_path=%s\n",
		c.K, c.M, c.P, c.Policy, c.Hasher, c.Seed, c.HashW, c.MaxC, c.Mode, c.Strategy,
		c.AbundanceMin, c.HistLower, c.HistUpper, c.Recurrence, c.ShareMin, c.Threads, c.RAMBudgetMB, c.Compress, c.FoFPath,
	)
	if err := ioutil.WriteFile(path, []byte(lines), 0644); err != nil {
		return NewError(IO, "config.save", path, err)
	}
	return nil
}

// LoadRunConfig reads config/options.yaml written by SaveYAML.
func LoadRunConfig(dir string) (*RunConfig, error) {
	path := filepath.Join(dir, "config", "options.yaml")
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, NewError(IO, "config.load", path, err)
	}
	var c RunConfig
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, NewError(Format, "config.load", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// WriteRunInfos writes run_infos.txt: run-level provenance, separate from options.txt's parameter echo.
func WriteRunInfos(dir string, nSamples int, started time.Time) error {
	path := filepath.Join(dir, "run_infos.txt")
	content := fmt.Sprintf("nb_samples=%d\nstarted_at=%s\n", nSamples, started.UTC().Format(time.RFC3339))
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		return NewError(IO, "config.runinfos", path, err)
	}
	return nil
}

// WriteBuildInfos writes build_infos.txt: the binary's own version
// stamp, separate from per-run parameters.
func WriteBuildInfos(dir, version string) error {
	path := filepath.Join(dir, "build_infos.txt")
	content := fmt.Sprintf("version=%s\nformat_version=%d\n", version, FormatVersion)
	if err := ioutil.WriteFile(path, []byte(content), 0644); err != nil {
		return NewError(IO, "config.buildinfos", path, err)
	}
	return nil
}
