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
	"runtime"

	"github.com/mattn/go-colorable"
	"github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

var log *logging.Logger

func init() {
	format := logging.MustStringFormatter(
		`%{color}[%{level:.4s}]%{color:reset} %{message}`,
	)
	var backend *logging.LogBackend
	if runtime.GOOS == "windows" {
		backend = logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	backendFormatter := logging.NewBackendFormatter(backend, format)
	logging.SetBackend(backendFormatter)
	log = logging.MustGetLogger("kmtricks")
}

// Options bundles the persistent flags every subcommand reads.
type Options struct {
	NumCPUs int
	Verbose bool
	RunDir  string
}

func getOptions(cmd *cobra.Command) *Options {
	opt := &Options{
		NumCPUs: getFlagPositiveInt(cmd, "threads"),
		Verbose: getFlagBool(cmd, "verbose"),
		RunDir:  getFlagString(cmd, "run-dir"),
	}
	if opt.NumCPUs > runtime.NumCPU() {
		log.Warningf("threads (%d) is larger than the number of CPUs (%d)", opt.NumCPUs, runtime.NumCPU())
	}
	runtime.GOMAXPROCS(opt.NumCPUs)
	return opt
}

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func flagError(flag string, err error) error {
	return fmt.Errorf("invalid flag: %s, %s", flag, err)
}

func getFlagString(cmd *cobra.Command, flag string) string {
	value, err := cmd.Flags().GetString(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	return value
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	value, err := cmd.Flags().GetStringSlice(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	return value
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	value, err := cmd.Flags().GetBool(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	return value
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	return value
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	if value <= 0 {
		checkError(fmt.Errorf("value of flag %s should be greater than 0", flag))
	}
	return value
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	if value < 0 {
		checkError(fmt.Errorf("value of flag %s should be greater than or equal to 0", flag))
	}
	return value
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	value, err := cmd.Flags().GetFloat64(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	return value
}

func getFlagUint32(cmd *cobra.Command, flag string) uint32 {
	value, err := cmd.Flags().GetUint32(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	return value
}

func getFlagUint64(cmd *cobra.Command, flag string) uint64 {
	value, err := cmd.Flags().GetUint64(flag)
	if err != nil {
		checkError(flagError(flag, err))
	}
	return value
}
