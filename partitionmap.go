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
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// partitionMapMagic guards both the header and the footer of a serialized
// PartitionMap.
const partitionMapMagic uint32 = 0x12345678

// PartitionPolicy selects how minimizers are distributed across
// partitions at repart time.
type PartitionPolicy int

const (
	// PolicyUnordered sorts minimizers by decreasing sampled frequency and
	// distributes them round-robin, balancing per-partition load.
	PolicyUnordered PartitionPolicy = iota
	// PolicyOrdered sorts minimizers lexicographically and chunks them
	// into P contiguous ranges.
	PolicyOrdered
)

// PartitionMap is the deterministic total function minimizer -> partition
// id in [0, P), built once per run from a minimizer frequency sample.
type PartitionMap struct {
	P      int
	M      int // minimizer length, for bounds/iteration only
	table  map[Minim]uint16
	freq   map[Minim]uint32 // present only when built with PolicyUnordered
	policy PartitionPolicy
}

// BuildPartitionMap assigns every minimizer present in counts (a sampled
// minimizer -> occurrence-count map, as gathered by repart) to one of P
// partitions under policy.
func BuildPartitionMap(counts map[Minim]uint32, m, p int, policy PartitionPolicy) (*PartitionMap, error) {
	if p <= 0 {
		return nil, NewError(Config, "partitionmap.build", "", fmt.Errorf("P must be positive, got %d", p))
	}
	pm := &PartitionMap{P: p, M: m, table: make(map[Minim]uint16, len(counts)), policy: policy}

	minims := make([]Minim, 0, len(counts))
	for mn := range counts {
		minims = append(minims, mn)
	}

	switch policy {
	case PolicyOrdered:
		sort.Slice(minims, func(i, j int) bool { return minims[i] < minims[j] })
		n := len(minims)
		for i, mn := range minims {
			// P contiguous lexicographic ranges, as evenly sized as
			// possible: chunkIndex = i * P / n.
			chunk := i * p / max1(n)
			if chunk >= p {
				chunk = p - 1
			}
			pm.table[mn] = uint16(chunk)
		}
	default: // PolicyUnordered
		sort.Slice(minims, func(i, j int) bool {
			if counts[minims[i]] != counts[minims[j]] {
				return counts[minims[i]] > counts[minims[j]]
			}
			return minims[i] < minims[j]
		})
		pm.freq = make(map[Minim]uint32, len(minims))
		for i, mn := range minims {
			pm.table[mn] = uint16(i % p)
			pm.freq[mn] = uint32(i)
		}
	}
	return pm, nil
}

func max1(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// PartitionOf returns partition_of(M). Minimizers never sampled during
// construction (including DefaultMinimizer) are routed to the last
// partition, P-1, which also holds the sampled minimizers BuildPartitionMap
// assigned there; it is not reserved for them.
func (pm *PartitionMap) PartitionOf(mn Minim) int {
	if mn == DefaultMinimizer {
		return pm.P - 1
	}
	if p, ok := pm.table[mn]; ok {
		return int(p)
	}
	return pm.P - 1
}

// Serialize writes the PartitionMap with a magic-guarded header and
// footer.
func (pm *PartitionMap) Serialize(w io.Writer) error {
	hdr := FileHeader{Version: FormatVersion, Compressed: false, TypeMagic: typeMagicBytes(typeMagicPartMap)}
	if err := writeFileHeader(w, hdr); err != nil {
		return err
	}
	if err := binary.Write(w, be, partitionMapMagic); err != nil {
		return NewError(IO, "partitionmap.write", "", err)
	}
	if err := binary.Write(w, be, uint32(pm.P)); err != nil {
		return NewError(IO, "partitionmap.write", "", err)
	}
	if err := binary.Write(w, be, uint32(pm.M)); err != nil {
		return NewError(IO, "partitionmap.write", "", err)
	}
	if err := binary.Write(w, be, uint8(pm.policy)); err != nil {
		return NewError(IO, "partitionmap.write", "", err)
	}
	if err := binary.Write(w, be, uint32(len(pm.table))); err != nil {
		return NewError(IO, "partitionmap.write", "", err)
	}
	// Stable iteration order: sort keys so re-serialization is
	// byte-identical.
	keys := make([]Minim, 0, len(pm.table))
	for k := range pm.table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, mn := range keys {
		if err := binary.Write(w, be, uint64(mn)); err != nil {
			return NewError(IO, "partitionmap.write", "", err)
		}
		if err := binary.Write(w, be, pm.table[mn]); err != nil {
			return NewError(IO, "partitionmap.write", "", err)
		}
	}
	if pm.policy == PolicyUnordered {
		for _, mn := range keys {
			if err := binary.Write(w, be, pm.freq[mn]); err != nil {
				return NewError(IO, "partitionmap.write", "", err)
			}
		}
	}
	if err := binary.Write(w, be, partitionMapMagic); err != nil {
		return NewError(IO, "partitionmap.write", "", err)
	}
	return nil
}

// DeserializePartitionMap reads a PartitionMap written by Serialize,
// rejecting the file if either magic-guarded boundary is corrupt.
func DeserializePartitionMap(r io.Reader) (*PartitionMap, error) {
	if _, err := readFileHeader(r, typeMagicBytes(typeMagicPartMap)); err != nil {
		return nil, err
	}
	var headMagic uint32
	if err := binary.Read(r, be, &headMagic); err != nil {
		return nil, NewError(IO, "partitionmap.read", "", err)
	}
	if headMagic != partitionMapMagic {
		return nil, NewError(Format, "partitionmap.read", "", fmt.Errorf("bad header magic"))
	}
	var p, m uint32
	var policyByte uint8
	var n uint32
	for _, dst := range []interface{}{&p, &m} {
		if err := binary.Read(r, be, dst); err != nil {
			return nil, NewError(IO, "partitionmap.read", "", err)
		}
	}
	if err := binary.Read(r, be, &policyByte); err != nil {
		return nil, NewError(IO, "partitionmap.read", "", err)
	}
	if err := binary.Read(r, be, &n); err != nil {
		return nil, NewError(IO, "partitionmap.read", "", err)
	}
	pm := &PartitionMap{P: int(p), M: int(m), policy: PartitionPolicy(policyByte), table: make(map[Minim]uint16, n)}
	keys := make([]Minim, n)
	for i := uint32(0); i < n; i++ {
		var mn uint64
		var part uint16
		if err := binary.Read(r, be, &mn); err != nil {
			return nil, NewError(IO, "partitionmap.read", "", err)
		}
		if err := binary.Read(r, be, &part); err != nil {
			return nil, NewError(IO, "partitionmap.read", "", err)
		}
		keys[i] = Minim(mn)
		pm.table[Minim(mn)] = part
	}
	if pm.policy == PolicyUnordered {
		pm.freq = make(map[Minim]uint32, n)
		for i := uint32(0); i < n; i++ {
			var f uint32
			if err := binary.Read(r, be, &f); err != nil {
				return nil, NewError(IO, "partitionmap.read", "", err)
			}
			pm.freq[keys[i]] = f
		}
	}
	var footMagic uint32
	if err := binary.Read(r, be, &footMagic); err != nil {
		return nil, NewError(IO, "partitionmap.read", "", err)
	}
	if footMagic != partitionMapMagic {
		return nil, NewError(Format, "partitionmap.read", "", fmt.Errorf("bad footer magic: corrupt partition map"))
	}
	return pm, nil
}
