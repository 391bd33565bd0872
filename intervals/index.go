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

package intervals

import (
	"log"
	"sort"

	"github.com/exascience/pargo/parallel"
	psort "github.com/exascience/pargo/sort"

	"github.com/exascience/elmerge/utils"
)

// Side distinguishes the two breakpoints of a record in the index.
// Both sides are indexed separately: depending on the variant type, a
// query may need to check A against A, or A against B.
type Side uint8

// The two breakpoint sides.
const (
	SideA Side = iota
	SideB
)

type entry struct {
	window Interval
	rec    int
}

type stableEntrySorter []entry

func (s stableEntrySorter) SequentialSort(i, j int) {
	entries := s[i:j]
	sort.SliceStable(entries, func(j, k int) bool {
		if entries[j].window.Start != entries[k].window.Start {
			return entries[j].window.Start < entries[k].window.Start
		}
		return entries[j].rec < entries[k].rec
	})
}

func (s stableEntrySorter) NewTemp() psort.StableSorter {
	return stableEntrySorter(make([]entry, len(s)))
}

func (s stableEntrySorter) Len() int {
	return len(s)
}

func (s stableEntrySorter) Less(i, j int) bool {
	if s[i].window.Start != s[j].window.Start {
		return s[i].window.Start < s[j].window.Start
	}
	return s[i].rec < s[j].rec
}

func (s stableEntrySorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stableEntrySorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

type shard struct {
	entries  []entry
	maxWidth int32
}

type shardKey struct {
	chrom utils.Symbol
	side  Side
}

// An Index answers "which records have a breakpoint whose confidence
// window intersects a query interval on this chromosome and side" in
// better than linear time per query. It is built during a single
// insert pass and must be frozen before the first query; inserting
// after Freeze or querying before it is a phase error and panics.
// This build/query phase separation is what makes the index safe to
// read from parallel matching passes without locking.
type Index struct {
	shards map[shardKey]*shard
	frozen bool
}

// NewIndex returns an empty, unfrozen index.
func NewIndex() *Index {
	return &Index{shards: make(map[shardKey]*shard)}
}

// Insert adds the confidence window of one breakpoint of record rec.
func (idx *Index) Insert(chrom utils.Symbol, side Side, window Interval, rec int) {
	if idx.frozen {
		log.Panic("insert into a frozen interval index")
	}
	key := shardKey{chrom, side}
	s := idx.shards[key]
	if s == nil {
		s = new(shard)
		idx.shards[key] = s
	}
	s.entries = append(s.entries, entry{window, rec})
	if width := window.End - window.Start; width > s.maxWidth {
		s.maxWidth = width
	}
}

// Freeze sorts the index shards and enables queries. Shards are
// sorted in parallel; the index is read-only afterwards.
func (idx *Index) Freeze() {
	if idx.frozen {
		return
	}
	idx.frozen = true
	shards := make([]*shard, 0, len(idx.shards))
	for _, s := range idx.shards {
		shards = append(shards, s)
	}
	parallel.Range(0, len(shards), 1, func(low, high int) {
		for i := low; i < high; i++ {
			psort.StableSort(stableEntrySorter(shards[i].entries))
		}
	})
}

// Query appends to out the records whose indexed window on the given
// chromosome and side intersects query, in deterministic (window
// start, record) order, and returns the extended slice. The entries
// are sorted by window start, so the scan starts at the first entry
// that could still reach the query interval (bounded by the widest
// window in the shard) and stops at the first entry starting beyond
// its end.
func (idx *Index) Query(chrom utils.Symbol, side Side, query Interval, out []int) []int {
	if !idx.frozen {
		log.Panic("query against an unfrozen interval index")
	}
	s := idx.shards[shardKey{chrom, side}]
	if s == nil {
		return out
	}
	entries := s.entries
	first := sort.Search(len(entries), func(i int) bool {
		return entries[i].window.Start >= query.Start-s.maxWidth
	})
	for i := first; i < len(entries); i++ {
		if entries[i].window.Start > query.End {
			break
		}
		if entries[i].window.Overlaps(query) {
			out = append(out, entries[i].rec)
		}
	}
	return out
}

// Len returns the number of indexed breakpoint windows.
func (idx *Index) Len() (n int) {
	for _, s := range idx.shards {
		n += len(s.entries)
	}
	return n
}
