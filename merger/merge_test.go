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
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/exascience/elmerge/sv"
	"github.com/exascience/elmerge/utils"
)

func makeRecord(id, tool, chrom string, pos, end int32, typ sv.Type) *sv.Record {
	rec := &sv.Record{
		ID:   id,
		Type: typ,
		A:    sv.Breakpoint{Chrom: utils.Intern(chrom), Pos: pos},
		B:    sv.Breakpoint{Chrom: utils.Intern(chrom), Pos: end},
		Qual: -1,
		Tool: utils.Intern(tool),
	}
	rec.Normalize()
	return rec
}

func TestThreeCallerDeletion(t *testing.T) {
	records := []*sv.Record{
		makeRecord("d1", "delly", "chr1", 1000, 1500, sv.Deletion),
		makeRecord("d2", "manta", "chr1", 1020, 1520, sv.Deletion),
		makeRecord("d3", "lumpy", "chr1", 980, 1480, sv.Deletion),
	}
	policy := DefaultPolicy()
	clusters := BuildClusters(records, policy)
	if len(clusters) != 1 {
		t.Fatal("ThreeCallerDeletion 1 failed: ", len(clusters))
	}
	consensus := BuildConsensus(clusters[0], policy)
	if consensus.Support != 3 || len(consensus.Tools) != 3 {
		t.Error("ThreeCallerDeletion 2 failed")
	}
	if consensus.A.Pos != 1000 || consensus.B.Pos != 1500 {
		t.Error("ThreeCallerDeletion 3 failed")
	}
	if consensus.Type != sv.Deletion {
		t.Error("ThreeCallerDeletion 4 failed")
	}
	if consensus.TypeVotes != nil {
		t.Error("ThreeCallerDeletion 5 failed")
	}
	// the consensus interval envelops the member positions
	if consensus.A.Pos+consensus.A.CILo > 980 || consensus.A.Pos+consensus.A.CIHi < 1020 {
		t.Error("ThreeCallerDeletion 6 failed")
	}
	if len(consensus.SizeHypotheses) != 0 {
		t.Error("ThreeCallerDeletion 7 failed")
	}
}

func TestNoMergeAcrossTypes(t *testing.T) {
	ins := makeRecord("i1", "delly", "chr2", 500, 500, sv.Insertion)
	ins.InsLen = 100
	del := makeRecord("d1", "manta", "chr2", 505, 520, sv.Deletion)
	clusters := BuildClusters([]*sv.Record{ins, del}, DefaultPolicy())
	if len(clusters) != 2 {
		t.Error("NoMergeAcrossTypes 1 failed: ", len(clusters))
	}

	// an explicit compatibility declaration lifts the restriction
	policy := DefaultPolicy()
	policy.SetCompatible(sv.Insertion, sv.Deletion, true)
	clusters = BuildClusters([]*sv.Record{ins, del}, policy)
	if len(clusters) != 1 {
		t.Error("NoMergeAcrossTypes 2 failed: ", len(clusters))
	}
}

func TestUnknownDoesNotBridgeIncompatibleTypes(t *testing.T) {
	// the unknown call overlaps both typed calls; it must follow the
	// first one and not pull the incompatible pair into one cluster
	records := []*sv.Record{
		makeRecord("del1", "delly", "chr1", 1000, 1500, sv.Deletion),
		makeRecord("unk1", "manta", "chr1", 1005, 1505, sv.Unknown),
		makeRecord("dup1", "lumpy", "chr1", 1010, 1510, sv.Duplication),
	}
	policy := DefaultPolicy()
	clusters := BuildClusters(records, policy)
	if len(clusters) != 2 {
		t.Fatal("UnknownBridge 1 failed: ", len(clusters))
	}
	if len(clusters[0].Members) != 2 ||
		clusters[0].Members[0].Type != sv.Deletion ||
		clusters[0].Members[1].Type != sv.Unknown {
		t.Error("UnknownBridge 2 failed: ", clusters[0].Members)
	}
	if len(clusters[1].Members) != 1 || clusters[1].Members[0].Type != sv.Duplication {
		t.Error("UnknownBridge 3 failed: ", clusters[1].Members)
	}
	// no cluster may contain two members of incompatible types
	for _, cluster := range clusters {
		for i, a := range cluster.Members {
			for _, b := range cluster.Members[i+1:] {
				if !policy.Compatible(a.Type, b.Type) {
					t.Error("UnknownBridge 4 failed: ", a.Type, b.Type)
				}
			}
		}
	}
}

func TestChainClustering(t *testing.T) {
	// a overlaps b, b overlaps c, a does not overlap c: connectivity
	// still puts all three in one cluster
	records := []*sv.Record{
		makeRecord("a", "delly", "chr1", 1000, 2000, sv.Deletion),
		makeRecord("b", "manta", "chr1", 1090, 2090, sv.Deletion),
		makeRecord("c", "lumpy", "chr1", 1180, 2180, sv.Deletion),
	}
	clusters := BuildClusters(records, DefaultPolicy())
	if len(clusters) != 1 {
		t.Error("ChainClustering 1 failed: ", len(clusters))
	}
	if len(clusters[0].Members) != 3 {
		t.Error("ChainClustering 2 failed")
	}
}

func TestBothSidesMustMatch(t *testing.T) {
	// start positions are close, end positions are not
	records := []*sv.Record{
		makeRecord("a", "delly", "chr1", 1000, 2000, sv.Deletion),
		makeRecord("b", "manta", "chr1", 1010, 5000, sv.Deletion),
	}
	clusters := BuildClusters(records, DefaultPolicy())
	if len(clusters) != 2 {
		t.Error("BothSidesMustMatch 1 failed: ", len(clusters))
	}
}

func TestSingletonPassthrough(t *testing.T) {
	rec := makeRecord("solo", "delly", "chr3", 7000, 7800, sv.Duplication)
	rec.A.CILo, rec.A.CIHi = -15, 15
	rec.Qual = 33
	policy := DefaultPolicy()
	clusters := BuildClusters([]*sv.Record{rec}, policy)
	if len(clusters) != 1 {
		t.Fatal("SingletonPassthrough 1 failed")
	}
	consensus := BuildConsensus(clusters[0], policy)
	if consensus.Support != 1 || len(consensus.Tools) != 1 {
		t.Error("SingletonPassthrough 2 failed")
	}
	if consensus.A != rec.A || consensus.B != rec.B {
		t.Error("SingletonPassthrough 3 failed")
	}
	if consensus.Qual != 33 || consensus.Type != sv.Duplication {
		t.Error("SingletonPassthrough 4 failed")
	}
	if consensus.TypeVotes != nil || consensus.SizeHypotheses != nil {
		t.Error("SingletonPassthrough 5 failed")
	}
}

func TestTypeVote(t *testing.T) {
	policy := DefaultPolicy()
	records := []*sv.Record{
		makeRecord("a", "delly", "chr1", 1000, 1500, sv.Deletion),
		makeRecord("b", "manta", "chr1", 1010, 1510, sv.Deletion),
		makeRecord("c", "lumpy", "chr1", 1020, 1520, sv.Unknown),
	}
	clusters := BuildClusters(records, policy)
	if len(clusters) != 1 {
		t.Fatal("TypeVote 1 failed")
	}
	consensus := BuildConsensus(clusters[0], policy)
	if consensus.Type != sv.Deletion {
		t.Error("TypeVote 2 failed")
	}
	// Unknown members abstain; the vote was unanimous
	if consensus.TypeVotes != nil {
		t.Error("TypeVote 3 failed")
	}

	// an exact tie goes to the priority order
	policy.SetCompatible(sv.Deletion, sv.Duplication, true)
	records = []*sv.Record{
		makeRecord("a", "delly", "chr1", 1000, 1500, sv.Duplication),
		makeRecord("b", "manta", "chr1", 1010, 1515, sv.Deletion),
	}
	clusters = BuildClusters(records, policy)
	if len(clusters) != 1 {
		t.Fatal("TypeVote 4 failed")
	}
	consensus = BuildConsensus(clusters[0], policy)
	if consensus.Type != sv.Deletion {
		t.Error("TypeVote 5 failed")
	}
	if len(consensus.TypeVotes) != 2 {
		t.Error("TypeVote 6 failed")
	}
	if len(consensus.SizeHypotheses) != 2 {
		t.Error("TypeVote 7 failed")
	}
}

func TestInversionOrientation(t *testing.T) {
	inv1 := makeRecord("a", "delly", "chr1", 1000, 2000, sv.Inversion)
	inv2 := makeRecord("b", "manta", "chr1", 1010, 2010, sv.Inversion)
	inv2.A.Reverse = true
	clusters := BuildClusters([]*sv.Record{inv1, inv2}, DefaultPolicy())
	if len(clusters) != 2 {
		t.Error("InversionOrientation 1 failed")
	}

	inv2.A.Reverse = false
	clusters = BuildClusters([]*sv.Record{inv1, inv2}, DefaultPolicy())
	if len(clusters) != 1 {
		t.Error("InversionOrientation 2 failed")
	}
}

func makeBreakend(id, tool string, posA, posB int32, revA, revB bool) *sv.Record {
	rec := &sv.Record{
		ID:   id,
		Type: sv.Breakend,
		A:    sv.Breakpoint{Chrom: utils.Intern("chr1"), Pos: posA, Reverse: revA},
		B:    sv.Breakpoint{Chrom: utils.Intern("chr2"), Pos: posB, Reverse: revB},
		Qual: -1,
		Tool: utils.Intern(tool),
	}
	rec.Normalize()
	return rec
}

func TestBreakendClustering(t *testing.T) {
	// 80 bp apart on both sides: beyond the base tolerance, within
	// the doubled inter-chromosomal tolerance
	bnd1 := makeBreakend("a", "delly", 1000, 5000, false, true)
	bnd2 := makeBreakend("b", "manta", 1080, 5080, false, true)
	clusters := BuildClusters([]*sv.Record{bnd1, bnd2}, DefaultPolicy())
	if len(clusters) != 1 {
		t.Error("BreakendClustering 1 failed: ", len(clusters))
	}

	// a reciprocal mate pair reports the same junction
	recip := makeBreakend("c", "lumpy", 1010, 5010, true, false)
	clusters = BuildClusters([]*sv.Record{bnd1, recip}, DefaultPolicy())
	if len(clusters) != 1 {
		t.Error("BreakendClustering 2 failed")
	}

	// flipped on one side only is a different junction
	other := makeBreakend("d", "lumpy", 1010, 5010, true, true)
	clusters = BuildClusters([]*sv.Record{bnd1, other}, DefaultPolicy())
	if len(clusters) != 2 {
		t.Error("BreakendClustering 3 failed")
	}
}

func TestCrossSampleModes(t *testing.T) {
	rec1 := makeRecord("a", "delly", "chr1", 1000, 1500, sv.Deletion)
	rec1.Sample = utils.Intern("S1")
	rec2 := makeRecord("b", "delly", "chr1", 1010, 1510, sv.Deletion)
	rec2.Sample = utils.Intern("S2")

	policy := DefaultPolicy()
	clusters := BuildClusters([]*sv.Record{rec1, rec2}, policy)
	if len(clusters) != 1 {
		t.Error("CrossSampleModes 1 failed")
	}

	policy.CrossSample = PartitionBySample
	clusters = BuildClusters([]*sv.Record{rec1, rec2}, policy)
	if len(clusters) != 2 {
		t.Error("CrossSampleModes 2 failed")
	}
}

func TestSpanGuards(t *testing.T) {
	small := makeRecord("a", "delly", "chr1", 1000, 1100, sv.Deletion)
	large := makeRecord("b", "manta", "chr1", 1010, 3000, sv.Deletion)
	policy := DefaultPolicy()
	policy.Tolerance = 5000
	clusters := BuildClusters([]*sv.Record{small, large}, policy)
	if len(clusters) != 1 {
		t.Fatal("SpanGuards 1 failed")
	}
	policy.MaxLengthRatio = 1.5
	clusters = BuildClusters([]*sv.Record{small, large}, policy)
	if len(clusters) != 2 {
		t.Error("SpanGuards 2 failed")
	}

	policy = DefaultPolicy()
	policy.Tolerance = 5000
	policy.MinJaccard = 0.8
	clusters = BuildClusters([]*sv.Record{small, large}, policy)
	if len(clusters) != 2 {
		t.Error("SpanGuards 3 failed")
	}
}

func shuffledCopy(records []*sv.Record, seed int64) []*sv.Record {
	out := make([]*sv.Record, len(records))
	for i, rec := range records {
		clone := *rec
		out[i] = &clone
	}
	rand.New(rand.NewSource(seed)).Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func TestDeterminism(t *testing.T) {
	var records []*sv.Record
	for i := int32(0); i < 50; i++ {
		records = append(records,
			makeRecord("x", "delly", "chr1", 1000+i*200, 2000+i*200, sv.Deletion),
			makeRecord("y", "manta", "chr1", 1010+i*200, 2010+i*200, sv.Deletion),
		)
	}
	policy := DefaultPolicy()
	first := BuildClusters(shuffledCopy(records, 1), policy)
	second := BuildClusters(shuffledCopy(records, 2), policy)
	if len(first) != len(second) {
		t.Fatal("Determinism 1 failed")
	}
	for i := range first {
		c1 := BuildConsensus(first[i], policy)
		c2 := BuildConsensus(second[i], policy)
		if c1.A != c2.A || c1.B != c2.B || c1.Support != c2.Support {
			t.Fatal("Determinism 2 failed")
		}
	}
}

func TestRemergeIdempotent(t *testing.T) {
	records := []*sv.Record{
		makeRecord("d1", "delly", "chr1", 1000, 1500, sv.Deletion),
		makeRecord("d2", "manta", "chr1", 1020, 1520, sv.Deletion),
		makeRecord("u1", "delly", "chr2", 9000, 9400, sv.Duplication),
	}
	policy := DefaultPolicy()
	clusters := BuildClusters(records, policy)
	var consensus []*sv.Record
	for _, cluster := range clusters {
		rec := BuildConsensus(cluster, policy).Record
		consensus = append(consensus, &rec)
	}
	again := BuildClusters(consensus, policy)
	if len(again) != len(clusters) {
		t.Fatal("RemergeIdempotent 1 failed")
	}
	for i, cluster := range again {
		if len(cluster.Members) != 1 {
			t.Fatal("RemergeIdempotent 2 failed")
		}
		redone := BuildConsensus(cluster, policy)
		if redone.A.Pos != consensus[i].A.Pos || redone.B.Pos != consensus[i].B.Pos {
			t.Error("RemergeIdempotent 3 failed")
		}
	}
}

const mergeTestSVCFHeader = "##fileformat=SVCFv1.1\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tS1\n"

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	delly := writeTestFile(t, dir, "delly.svcf", mergeTestSVCFHeader+
		"chr1\t1000\tdel1\tN\t<DEL>\t60\tPASS\tSVTYPE=DEL;END=1500\tGT\t0/1\n"+
		"chr2\t4000\tdup1\tN\t<DUP>\t.\tPASS\tSVTYPE=DUP;END=9000\tGT\t0/1\n")
	manta := writeTestFile(t, dir, "manta.svcf", mergeTestSVCFHeader+
		"chr1\t1020\tdelA\tN\t<DEL>\t50\tPASS\tSVTYPE=DEL;END=1520\tGT\t0/1\n"+
		"not a record\n")

	inputs := []sv.Input{{Filename: delly}, {Filename: manta}}
	set, err := Merge(inputs, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Records) != 2 {
		t.Fatal("Merge 1 failed: ", len(set.Records))
	}
	del := set.Records[0]
	if del.ID != "elmerge_DEL_1" || del.Support != 2 {
		t.Error("Merge 2 failed: ", del.ID)
	}
	if del.A.Pos != 1000 || del.B.Pos != 1500 {
		t.Error("Merge 3 failed")
	}
	if del.Qual != 60 {
		t.Error("Merge 4 failed")
	}
	if len(del.Tools) != 2 {
		t.Error("Merge 5 failed")
	}
	dup := set.Records[1]
	if dup.ID != "elmerge_DUP_1" || dup.Support != 1 {
		t.Error("Merge 6 failed")
	}
	if set.Summary.Records != 3 || set.Summary.Consensus != 2 {
		t.Error("Merge 7 failed")
	}
	if set.Summary.Files[1].Warnings != 1 {
		t.Error("Merge 8 failed")
	}
	if set.Summary.RunID == "" {
		t.Error("Merge 9 failed")
	}
}

func TestMergeSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	good := writeTestFile(t, dir, "good.svcf", mergeTestSVCFHeader+
		"chr1\t1000\tdel1\tN\t<DEL>\t60\tPASS\tSVTYPE=DEL;END=1500\tGT\t0/1\n")
	bad := writeTestFile(t, dir, "bad.svcf", "##fileformat=VCFv4.2\nnope\n")

	set, err := Merge([]sv.Input{{Filename: good}, {Filename: bad}}, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Records) != 1 {
		t.Error("MergeSkipsBadFiles 1 failed")
	}
	if set.Summary.Files[1].Err == nil {
		t.Error("MergeSkipsBadFiles 2 failed")
	}
}

func TestMergeRejectsConflictingPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.SetCompatible(sv.Duplication, sv.Insertion, true)
	policy.SetCompatible(sv.Insertion, sv.Duplication, false)
	if _, err := Merge(nil, policy); err == nil {
		t.Error("MergeRejectsConflictingPolicy failed")
	}
}
