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
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/exascience/elmerge/utils"
)

const testSVCF = "##fileformat=SVCFv1.1\n" +
	"##source=testsuite\n" +
	"##contig=<ID=chr1,length=248956422>\n" +
	"##contig=<ID=chr2,length=242193529>\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE1\n" +
	"chr1\t1000\tdel1\tN\t<DEL>\t60\tPASS\tSVTYPE=DEL;END=1500;CIPOS=-10,10\tGT:SC:CO\t0/1:delly:chr1_1000-chr1_1500\n" +
	"chr1\t2000\tins1\tN\t<INS>\t.\tPASS\tSVTYPE=INS;END=2000;SVLEN=-42\tGT\t0/1\n" +
	"badline\n" +
	"chr1\tx\tbad2\tN\t<DEL>\t.\tPASS\tSVTYPE=DEL;END=10\tGT\t0/1\n" +
	"chr1\t3000\ttra1\tN\tN[chr2:500[\t.\tPASS\tSVTYPE=TRA;CHR2=chr2;END=500;STRAND=+-\tGT:SC:CO\t0/1:lumpy:chr1_3000-chr2_500\n"

func TestParseSVCF(t *testing.T) {
	rdr, err := NewSVCFReader(strings.NewReader(testSVCF), "test.svcf", "caller")
	if err != nil {
		t.Fatal(err)
	}
	hdr := rdr.Header()
	if hdr.Sample != "SAMPLE1" {
		t.Error("ParseSVCF header 1 failed")
	}
	if hdr.FileFormat != SVCFFormatVersionLine {
		t.Error("ParseSVCF header 2 failed")
	}
	if hdr.Reference.Length(utils.Intern("chr1")) != 248956422 {
		t.Error("ParseSVCF header 3 failed")
	}
	if hdr.Meta["source"] != "testsuite" {
		t.Error("ParseSVCF header 4 failed")
	}

	del, err := rdr.Read()
	if err != nil {
		t.Fatal(err)
	}
	if del.ID != "del1" || del.Type != Deletion {
		t.Error("ParseSVCF 1 failed")
	}
	if del.A.Pos != 1000 || del.B.Pos != 1500 {
		t.Error("ParseSVCF 2 failed")
	}
	if del.A.CILo != -10 || del.A.CIHi != 10 {
		t.Error("ParseSVCF 3 failed")
	}
	if del.Qual != 60 {
		t.Error("ParseSVCF 4 failed")
	}
	if del.Tool != utils.Intern("delly") {
		t.Error("ParseSVCF 5 failed")
	}
	if del.Sample != utils.Intern("SAMPLE1") {
		t.Error("ParseSVCF 6 failed")
	}

	ins, err := rdr.Read()
	if err != nil {
		t.Fatal(err)
	}
	if ins.Type != Insertion || ins.InsLen != 42 {
		t.Error("ParseSVCF 7 failed")
	}
	if ins.Qual >= 0 {
		t.Error("ParseSVCF 8 failed")
	}
	if ins.Tool != utils.Intern("caller") {
		t.Error("ParseSVCF 9 failed")
	}

	tra, err := rdr.Read()
	if err != nil {
		t.Fatal(err)
	}
	if tra.Type != Breakend || tra.Intra() {
		t.Error("ParseSVCF 10 failed")
	}
	if tra.A.Chrom != utils.Intern("chr1") || tra.A.Pos != 3000 {
		t.Error("ParseSVCF 11 failed")
	}
	if tra.B.Chrom != utils.Intern("chr2") || tra.B.Pos != 500 {
		t.Error("ParseSVCF 12 failed")
	}
	if tra.A.Reverse || !tra.B.Reverse {
		t.Error("ParseSVCF 13 failed")
	}

	if _, err := rdr.Read(); err != io.EOF {
		t.Error("ParseSVCF 14 failed")
	}
	if rdr.Warnings().Count != 2 {
		t.Error("ParseSVCF 15 failed: ", rdr.Warnings().Count)
	}
}

func TestSVCFReadAll(t *testing.T) {
	rdr, err := NewSVCFReader(strings.NewReader(testSVCF), "test.svcf", "caller")
	if err != nil {
		t.Fatal(err)
	}
	records, err := rdr.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatal("SVCFReadAll 1 failed: ", len(records))
	}
	if records[0].ID != "del1" || records[1].ID != "ins1" || records[2].ID != "tra1" {
		t.Error("SVCFReadAll 2 failed")
	}
	if rdr.Warnings().Count != 2 {
		t.Error("SVCFReadAll 3 failed: ", rdr.Warnings().Count)
	}
}

func TestSVCFHeaderErrors(t *testing.T) {
	if _, err := NewSVCFReader(strings.NewReader("##fileformat=VCFv4.2\n#CHROM\n"), "test.svcf", ""); err == nil {
		t.Error("SVCFHeaderErrors 1 failed")
	} else if _, ok := err.(*UnsupportedFormat); !ok {
		t.Error("SVCFHeaderErrors 2 failed")
	}
	if _, err := NewSVCFReader(strings.NewReader("##fileformat=SVCFv1.1\n##source=x\n"), "test.svcf", ""); err == nil {
		t.Error("SVCFHeaderErrors 3 failed")
	}
}

func TestParseCoordinates(t *testing.T) {
	chromA, posA, chromB, posB, err := parseCoordinates("chr1_1000-chr2_500")
	if err != nil {
		t.Fatal(err)
	}
	if chromA != "chr1" || posA != 1000 || chromB != "chr2" || posB != 500 {
		t.Error("ParseCoordinates 1 failed")
	}
	// chromosome names may contain underscores
	chromA, posA, _, _, err = parseCoordinates("chr1_gl000191_random_10-chr1_gl000191_random_20")
	if err != nil {
		t.Fatal(err)
	}
	if chromA != "chr1_gl000191_random" || posA != 10 {
		t.Error("ParseCoordinates 2 failed")
	}
	if _, _, _, _, err := parseCoordinates("chr11000"); err == nil {
		t.Error("ParseCoordinates 3 failed")
	}
}

func TestParseCIPair(t *testing.T) {
	lo, hi, err := parseCIPair("-50,30")
	if err != nil || lo != -50 || hi != 30 {
		t.Error("ParseCIPair 1 failed")
	}
	if _, _, err := parseCIPair("50"); err == nil {
		t.Error("ParseCIPair 2 failed")
	}
}

func TestSVCFWriter(t *testing.T) {
	rec := &ConsensusRecord{
		Record: Record{
			ID:   "elmerge_DEL_1",
			Type: Deletion,
			A:    Breakpoint{Chrom: utils.Intern("chr1"), Pos: 1000, CILo: -20, CIHi: 20},
			B:    Breakpoint{Chrom: utils.Intern("chr1"), Pos: 1500},
			Qual: 60,
			Tool: utils.Intern("delly"),
		},
		Support:   2,
		Tools:     []utils.Symbol{utils.Intern("delly"), utils.Intern("manta")},
		MemberIDs: []string{"del1", "del2"},
	}
	var buf bytes.Buffer
	out := NewSVCFWriter(&buf, NewReference(), "SAMPLE1")
	out.Write(rec)
	if err := out.Flush(); err != nil {
		t.Fatal(err)
	}

	rdr, err := NewSVCFReader(strings.NewReader(buf.String()), "out.svcf", "")
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := rdr.Read()
	if err != nil {
		t.Fatal(err)
	}
	if parsed.ID != "elmerge_DEL_1" || parsed.Type != Deletion {
		t.Error("SVCFWriter 1 failed")
	}
	if parsed.A.Pos != 1000 || parsed.B.Pos != 1500 {
		t.Error("SVCFWriter 2 failed")
	}
	if parsed.A.CILo != -20 || parsed.A.CIHi != 20 {
		t.Error("SVCFWriter 3 failed")
	}
	if rdr.Warnings().Count != 0 {
		t.Error("SVCFWriter 4 failed")
	}
}
