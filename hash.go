// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
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
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/minio/highwayhash"
	"github.com/will-rowe/nthash"
)

// HasherName identifies one of the three hash functions the on-disk hash
// format supports. The choice is fixed at configure time and recorded in
// config/options.yaml: every stage reading or writing hash partitions of a
// run must agree on it.
type HasherName string

// The three named hashers.
const (
	HashXXHash   HasherName = "xxhash"
	HashHighway  HasherName = "highway"
	HashNtHash   HasherName = "nthash"
	defaultSeed             = 0
)

// Hasher hashes a Kmer to a uint64, given a run-wide seed.
type Hasher interface {
	Name() HasherName
	Hash(km Kmer, seed uint64) uint64
}

// NewHasher resolves a HasherName to a concrete Hasher.
func NewHasher(name HasherName) (Hasher, error) {
	switch name {
	case HashXXHash, "":
		return xxhashHasher{}, nil
	case HashHighway:
		return highwayHasher{}, nil
	case HashNtHash:
		return ntHasher{}, nil
	default:
		return nil, NewError(Config, "hash.select", "", fmt.Errorf("unknown hasher %q", name))
	}
}

func kmerBytes(km Kmer) []byte {
	b := make([]byte, 8*len(km.Words))
	for i, w := range km.Words {
		binary.BigEndian.PutUint64(b[i*8:], w)
	}
	return b
}

// xxhashHasher wraps cespare/xxhash (also used as the block-integrity
// checksum throughout the binary formats, see format.go).
type xxhashHasher struct{}

func (xxhashHasher) Name() HasherName { return HashXXHash }

func (xxhashHasher) Hash(km Kmer, seed uint64) uint64 {
	return xxhash.Sum64(kmerBytes(km)) ^ seed
}

// highwayHasher wraps minio/highwayhash, seeded with a 32-byte key derived
// from the run seed (highwayhash requires a fixed-size key).
type highwayHasher struct{}

func (highwayHasher) Name() HasherName { return HashHighway }

func (highwayHasher) Hash(km Kmer, seed uint64) uint64 {
	var key [32]byte
	binary.BigEndian.PutUint64(key[:8], seed)
	h, err := highwayhash.New64(key[:])
	if err != nil {
		// key is always 32 bytes; New64 only fails on bad key length.
		panic(err)
	}
	h.Write(kmerBytes(km))
	return h.Sum64()
}

// ntHasher wraps will-rowe/nthash's one-shot hashing of a fixed window,
// selectable as a named hasher for hash partitions.
type ntHasher struct{}

func (ntHasher) Name() HasherName { return HashNtHash }

func (ntHasher) Hash(km Kmer, seed uint64) uint64 {
	seq := Decode(km)
	h, err := nthash.NewHasher(&seq, uint(len(seq)))
	if err != nil {
		return xxhash.Sum64(seq) ^ seed
	}
	code, ok := h.Next(false)
	if !ok {
		return xxhash.Sum64(seq) ^ seed
	}
	return code ^ seed
}

// WindowHash folds a 64-bit hash into the window [p*W, (p+1)*W) owned by
// partition p.
func WindowHash(h uint64, p int, w uint64) uint64 {
	return (h % w) + uint64(p)*w
}
