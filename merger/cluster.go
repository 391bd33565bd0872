// elMerge: a high-performance tool for merging structural variant call sets.
// Copyright (c) 2024-2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elmerge/blob/master/LICENSE.txt>.

package merger

import (
	"math/bits"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elmerge/intervals"
	"github.com/exascience/elmerge/sv"
	"github.com/exascience/elmerge/utils"
)

// A Cluster groups calls that describe the same underlying
// rearrangement. Members keep the deterministic record order.
type Cluster struct {
	Members []*sv.Record
}

// recordLess is the canonical record order: chromosome pair, both
// positions, tool name, then call identifier. Clustering and output
// are deterministic because every phase processes records in this
// order.
func recordLess(a, b *sv.Record) bool {
	if an, bn := utils.SymbolName(a.A.Chrom), utils.SymbolName(b.A.Chrom); an != bn {
		return an < bn
	}
	if a.A.Pos != b.A.Pos {
		return a.A.Pos < b.A.Pos
	}
	if an, bn := utils.SymbolName(a.B.Chrom), utils.SymbolName(b.B.Chrom); an != bn {
		return an < bn
	}
	if a.B.Pos != b.B.Pos {
		return a.B.Pos < b.B.Pos
	}
	if an, bn := utils.SymbolName(a.Tool), utils.SymbolName(b.Tool); an != bn {
		return an < bn
	}
	return a.ID < b.ID
}

// SortRecords establishes the canonical record order in place.
func SortRecords(records []*sv.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return recordLess(records[i], records[j])
	})
}

// A typeSet is a bitmask over the typed members of a component.
// Unknown-typed members contribute no bit, so they stay with
// whichever typed component absorbs them first.
type typeSet uint8

func typeSetOf(t sv.Type) typeSet {
	if t == sv.Unknown {
		return 0
	}
	return 1 << t
}

// compatible reports whether every typed member of one component is
// compatible with every typed member of the other.
func (s typeSet) compatible(other typeSet, policy *Policy) bool {
	for a := s; a != 0; a &= a - 1 {
		ta := sv.Type(bits.TrailingZeros8(uint8(a)))
		for b := other; b != 0; b &= b - 1 {
			if !policy.Compatible(ta, sv.Type(bits.TrailingZeros8(uint8(b)))) {
				return false
			}
		}
	}
	return true
}

// unionFind implements union by size with path halving. Overlap of
// tolerance windows is not transitive, so matched pairs are folded
// into connected components instead of checking every member against
// every other. Each root carries the typeSet of its component: a
// union that would co-locate incompatible typed members is refused,
// so an unknown-typed call close to two incompatible typed calls
// cannot bridge them into one cluster.
type unionFind struct {
	parent, size []int
	types        []typeSet
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
		types:  make([]typeSet, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(i, j int, policy *Policy) {
	ri, rj := uf.find(i), uf.find(j)
	if ri == rj {
		return
	}
	if !uf.types[ri].compatible(uf.types[rj], policy) {
		return
	}
	if uf.size[ri] < uf.size[rj] {
		ri, rj = rj, ri
	}
	uf.parent[rj] = ri
	uf.size[ri] += uf.size[rj]
	uf.types[ri] |= uf.types[rj]
}

// spanOf returns the closed reference interval covered by an
// intra-chromosomal event, valid only after Normalize.
func spanOf(rec *sv.Record) (int32, int32) {
	return rec.A.Pos, rec.B.Pos
}

// pairMatches applies the full pairwise test: type compatibility,
// orientation agreement, and the optional span guards. Breakpoint
// proximity has already been established by the index query.
func pairMatches(a, b *sv.Record, policy *Policy) bool {
	if !policy.Compatible(a.Type, b.Type) {
		return false
	}
	switch {
	case a.Type == sv.Inversion && b.Type == sv.Inversion:
		// Inversions only merge when their strand configurations
		// agree, so 3'-to-3' and 5'-to-5' junctions stay apart.
		if a.A.Reverse != b.A.Reverse || a.B.Reverse != b.B.Reverse {
			return false
		}
	case a.Type == sv.Breakend && b.Type == sv.Breakend:
		// Two breakends describe the same junction when their
		// orientations are equal, or mirrored on both sides: a
		// reciprocal pair of BND lines reports one rearrangement.
		same := a.A.Reverse == b.A.Reverse && a.B.Reverse == b.B.Reverse
		reciprocal := a.A.Reverse != b.A.Reverse && a.B.Reverse != b.B.Reverse
		if !same && !reciprocal {
			return false
		}
	}
	if a.Intra() && b.Intra() && a.Type != sv.Insertion && b.Type != sv.Insertion {
		sizeA, sizeB := a.Size(), b.Size()
		if policy.MaxLengthRatio > 0 && sizeA > 0 && sizeB > 0 {
			if sizeA < sizeB {
				sizeA, sizeB = sizeB, sizeA
			}
			if float64(sizeA) > policy.MaxLengthRatio*float64(sizeB) {
				return false
			}
		}
		if policy.MinJaccard > 0 && sizeA > 0 && sizeB > 0 {
			aLo, aHi := spanOf(a)
			bLo, bHi := spanOf(b)
			lo, hi := aLo, aHi
			if bLo > lo {
				lo = bLo
			}
			if bHi < hi {
				hi = bHi
			}
			if hi < lo {
				return false
			}
			intersection := int64(hi) - int64(lo) + 1
			union := int64(aHi) - int64(aLo) + int64(bHi) - int64(bLo) + 2 - intersection
			if float64(intersection) < policy.MinJaccard*float64(union) {
				return false
			}
		}
	}
	return true
}

// clusterGroup clusters one partition of records, given as ascending
// indices into the full record slice. All records in a partition
// share their chromosome pair (and sample, when partitioning by
// sample). Inter-chromosomal junctions get a doubled tolerance
// because both sides are imprecise independently.
func clusterGroup(records []*sv.Record, ids []int, policy *Policy, interChromosomal bool) []*Cluster {
	if len(ids) == 1 {
		return []*Cluster{{Members: []*sv.Record{records[ids[0]]}}}
	}
	tolerance := policy.Tolerance
	if interChromosomal {
		tolerance *= 2
	}
	index := intervals.NewIndex()
	for local, id := range ids {
		rec := records[id]
		lo, hi := rec.A.Window(tolerance)
		index.Insert(rec.A.Chrom, intervals.SideA, intervals.Interval{Start: lo, End: hi}, local)
		lo, hi = rec.B.Window(tolerance)
		index.Insert(rec.B.Chrom, intervals.SideB, intervals.Interval{Start: lo, End: hi}, local)
	}
	index.Freeze()
	uf := newUnionFind(len(ids))
	for local, id := range ids {
		uf.types[local] = typeSetOf(records[id].Type)
	}
	onA := bitset.New(uint(len(ids)))
	var candidates []int
	for local, id := range ids {
		rec := records[id]
		lo, hi := rec.A.Window(tolerance)
		candidates = index.Query(rec.A.Chrom, intervals.SideA, intervals.Interval{Start: lo, End: hi}, candidates[:0])
		onA.ClearAll()
		for _, c := range candidates {
			onA.Set(uint(c))
		}
		lo, hi = rec.B.Window(tolerance)
		candidates = index.Query(rec.B.Chrom, intervals.SideB, intervals.Interval{Start: lo, End: hi}, candidates[:0])
		for _, c := range candidates {
			// Both sides must be close, and the pair test must pass.
			if c > local && onA.Test(uint(c)) && pairMatches(rec, records[ids[c]], policy) {
				uf.union(local, c, policy)
			}
		}
	}
	// Collect components in first-member order; members stay in the
	// canonical record order because ids is ascending.
	clusterOf := make(map[int]int)
	var clusters []*Cluster
	for local, id := range ids {
		root := uf.find(local)
		at, ok := clusterOf[root]
		if !ok {
			at = len(clusters)
			clusterOf[root] = at
			clusters = append(clusters, &Cluster{})
		}
		clusters[at].Members = append(clusters[at].Members, records[id])
	}
	return clusters
}

type partitionKey struct {
	chromA, chromB, sample utils.Symbol
}

func partitionKeyLess(a, b partitionKey) bool {
	if an, bn := utils.SymbolName(a.chromA), utils.SymbolName(b.chromA); an != bn {
		return an < bn
	}
	if an, bn := utils.SymbolName(a.chromB), utils.SymbolName(b.chromB); an != bn {
		return an < bn
	}
	return utils.SymbolName(a.sample) < utils.SymbolName(b.sample)
}

// BuildClusters partitions the records by chromosome (pair) and
// clusters the partitions. Intra-chromosomal partitions are
// independent and run in parallel; the inter-chromosomal partitions
// follow sequentially, in sorted key order, so the result is
// deterministic. The input slice is sorted in place into the
// canonical record order.
func BuildClusters(records []*sv.Record, policy *Policy) []*Cluster {
	SortRecords(records)
	groups := make(map[partitionKey][]int)
	var intraKeys, interKeys []partitionKey
	for i, rec := range records {
		key := partitionKey{chromA: rec.A.Chrom, chromB: rec.B.Chrom}
		if policy.CrossSample == PartitionBySample {
			key.sample = rec.Sample
		}
		if _, ok := groups[key]; !ok {
			if rec.Intra() {
				intraKeys = append(intraKeys, key)
			} else {
				interKeys = append(interKeys, key)
			}
		}
		groups[key] = append(groups[key], i)
	}
	sort.Slice(intraKeys, func(i, j int) bool { return partitionKeyLess(intraKeys[i], intraKeys[j]) })
	sort.Slice(interKeys, func(i, j int) bool { return partitionKeyLess(interKeys[i], interKeys[j]) })
	intraClusters := make([][]*Cluster, len(intraKeys))
	parallel.Range(0, len(intraKeys), 1, func(low, high int) {
		for k := low; k < high; k++ {
			intraClusters[k] = clusterGroup(records, groups[intraKeys[k]], policy, false)
		}
	})
	var clusters []*Cluster
	for _, partition := range intraClusters {
		clusters = append(clusters, partition...)
	}
	for _, key := range interKeys {
		clusters = append(clusters, clusterGroup(records, groups[key], policy, true)...)
	}
	return clusters
}
