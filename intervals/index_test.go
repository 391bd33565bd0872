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
	"math/rand"
	"sort"
	"testing"

	"github.com/exascience/elmerge/utils"
)

func TestOverlaps(t *testing.T) {
	if !(Interval{2, 5}).Overlaps(Interval{2, 5}) {
		t.Error("Overlaps 1 failed")
	}
	if !(Interval{2, 5}).Overlaps(Interval{5, 8}) {
		t.Error("Overlaps 2 failed")
	}
	if !(Interval{5, 8}).Overlaps(Interval{2, 5}) {
		t.Error("Overlaps 3 failed")
	}
	if (Interval{2, 5}).Overlaps(Interval{6, 8}) {
		t.Error("Overlaps 4 failed")
	}
	if (Interval{6, 8}).Overlaps(Interval{2, 5}) {
		t.Error("Overlaps 5 failed")
	}
}

func idsEqual(ids1, ids2 []int) bool {
	if len(ids1) != len(ids2) {
		return false
	}
	for i, id := range ids1 {
		if id != ids2[i] {
			return false
		}
	}
	return true
}

func TestIndexQuery(t *testing.T) {
	chr1 := utils.Intern("chr1")
	chr2 := utils.Intern("chr2")
	index := NewIndex()
	index.Insert(chr1, SideA, Interval{950, 1050}, 0)
	index.Insert(chr1, SideA, Interval{970, 1070}, 1)
	index.Insert(chr1, SideA, Interval{2000, 2100}, 2)
	index.Insert(chr2, SideA, Interval{950, 1050}, 3)
	index.Insert(chr1, SideB, Interval{950, 1050}, 4)
	index.Freeze()

	if index.Len() != 5 {
		t.Error("IndexQuery 1 failed")
	}
	if !idsEqual(index.Query(chr1, SideA, Interval{1000, 1000}, nil), []int{0, 1}) {
		t.Error("IndexQuery 2 failed")
	}
	if !idsEqual(index.Query(chr1, SideA, Interval{1060, 1999}, nil), []int{1}) {
		t.Error("IndexQuery 3 failed")
	}
	if !idsEqual(index.Query(chr1, SideA, Interval{3000, 3100}, nil), nil) {
		t.Error("IndexQuery 4 failed")
	}
	if !idsEqual(index.Query(chr2, SideA, Interval{1000, 1000}, nil), []int{3}) {
		t.Error("IndexQuery 5 failed")
	}
	if !idsEqual(index.Query(chr1, SideB, Interval{1000, 1000}, nil), []int{4}) {
		t.Error("IndexQuery 6 failed")
	}
	if !idsEqual(index.Query(utils.Intern("chrX"), SideA, Interval{1000, 1000}, nil), nil) {
		t.Error("IndexQuery 7 failed")
	}
}

func TestIndexWideEntries(t *testing.T) {
	chr1 := utils.Intern("chr1")
	index := NewIndex()
	// a wide entry far to the left must still be found
	index.Insert(chr1, SideA, Interval{100, 100000}, 0)
	index.Insert(chr1, SideA, Interval{50000, 50100}, 1)
	index.Freeze()
	if !idsEqual(index.Query(chr1, SideA, Interval{99000, 99100}, nil), []int{0}) {
		t.Error("IndexWideEntries 1 failed")
	}
	if !idsEqual(index.Query(chr1, SideA, Interval{50050, 50060}, nil), []int{0, 1}) {
		t.Error("IndexWideEntries 2 failed")
	}
}

func TestIndexRandomized(t *testing.T) {
	chr1 := utils.Intern("chr1")
	windows := make([]Interval, 2000)
	index := NewIndex()
	for i := range windows {
		start := int32(rand.Intn(100000))
		windows[i] = Interval{start, start + int32(rand.Intn(200))}
		index.Insert(chr1, SideA, windows[i], i)
	}
	index.Freeze()
	for trial := 0; trial < 200; trial++ {
		start := int32(rand.Intn(100000))
		query := Interval{start, start + int32(rand.Intn(500))}
		var expected []int
		for i, window := range windows {
			if window.Overlaps(query) {
				expected = append(expected, i)
			}
		}
		got := index.Query(chr1, SideA, query, nil)
		sort.Ints(got)
		if !idsEqual(got, expected) {
			t.Fatal("IndexRandomized failed")
		}
	}
}
