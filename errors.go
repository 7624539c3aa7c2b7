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

import "fmt"

// Kind classifies a kmtricks error into one of the five taxonomy buckets.
type Kind int

// Error kinds, in the order the pipeline usually discovers them.
const (
	IO Kind = iota
	Format
	Config
	Resource
	Logic
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io"
	case Format:
		return "format"
	case Config:
		return "config"
	case Resource:
		return "resource"
	case Logic:
		return "logic"
	default:
		return "unknown"
	}
}

// Error carries enough context for a stage coordinator to print a useful
// diagnostic: the operation, the file it happened on, and a byte offset
// when one is known.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	Offset int64
	Err    error
}

func (e *Error) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("kmtricks: %s: %s (%s, offset %d): %v", e.Kind, e.Op, e.Path, e.Offset, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("kmtricks: %s: %s (%s): %v", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("kmtricks: %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error with no offset information.
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Logic errors are reserved for invariant violations (e.g. non-ascending
// keys written to a partition file) that indicate a bug rather than bad
// input; the caller is expected to dump diagnostics and abort the run.
func invariantViolation(op string, args ...interface{}) error {
	return &Error{Kind: Logic, Op: op, Err: fmt.Errorf("invariant violated: %v", args)}
}
