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

package sv

import (
	"strings"
	"testing"

	"github.com/exascience/elmerge/utils"
)

func TestBEDWriter(t *testing.T) {
	del := &Record{
		ID:   "del1",
		Type: Deletion,
		A:    Breakpoint{Chrom: utils.Intern("chr1"), Pos: 1000},
		B:    Breakpoint{Chrom: utils.Intern("chr1"), Pos: 1500},
		Qual: 60,
	}
	ins := &Record{
		ID:   "ins1",
		Type: Insertion,
		A:    Breakpoint{Chrom: utils.Intern("chr2"), Pos: 500, Reverse: true},
		B:    Breakpoint{Chrom: utils.Intern("chr2"), Pos: 500},
		Qual: -1,
	}
	tra := &Record{
		ID:   "tra1",
		Type: Breakend,
		A:    Breakpoint{Chrom: utils.Intern("chr1"), Pos: 2000},
		B:    Breakpoint{Chrom: utils.Intern("chr3"), Pos: 700},
		Qual: -1,
	}

	var buf strings.Builder
	out := NewBEDWriter(&buf, false)
	out.Write(del)
	out.Write(ins)
	out.Write(tra)
	if err := out.Flush(); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatal("BEDWriter 1 failed: ", len(lines))
	}
	if lines[0] != "chr1\t999\t1500\tdel1_DEL\t60\t+" {
		t.Error("BEDWriter 2 failed: ", lines[0])
	}
	// an insertion occupies a single base
	if lines[1] != "chr2\t499\t500\tins1_INS\t.\t-" {
		t.Error("BEDWriter 3 failed: ", lines[1])
	}
	// an inter-chromosomal junction is reported at its first breakpoint
	if lines[2] != "chr1\t1999\t2000\ttra1_TRA\t.\t+" {
		t.Error("BEDWriter 4 failed: ", lines[2])
	}

	buf.Reset()
	out = NewBEDWriter(&buf, true)
	out.Write(del)
	if err := out.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "chr1\t999\t1500\n" {
		t.Error("BEDWriter 5 failed: ", buf.String())
	}
}
