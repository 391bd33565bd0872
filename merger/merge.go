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
	"fmt"
	"log"
	"sort"

	"github.com/exascience/pargo/parallel"
	"github.com/google/uuid"

	"github.com/exascience/elmerge/sv"
	"github.com/exascience/elmerge/utils"
)

// A FileSummary reports how one input file fared during ingestion.
type FileSummary struct {
	Filename string
	Tool     string
	Records  int
	Warnings int
	Err      error
}

// A RunSummary describes a completed merge: a unique run identifier
// for the logs, the per-file ingestion outcomes, and the record,
// cluster, and consensus counts.
type RunSummary struct {
	RunID     string
	Files     []FileSummary
	Records   int
	Clusters  int
	Consensus int
}

// A ConsensusSet is the result of a merge. Records holds the
// consensus calls in their canonical output order and can be ranged
// over any number of times.
type ConsensusSet struct {
	Records []*sv.ConsensusRecord
	Summary *RunSummary
}

// consensusLess is the canonical output order: chromosome pair, both
// positions, type, then the member identifiers as a final tie-break.
func consensusLess(a, b *sv.ConsensusRecord) bool {
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
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	for i := 0; i < len(a.MemberIDs) && i < len(b.MemberIDs); i++ {
		if a.MemberIDs[i] != b.MemberIDs[i] {
			return a.MemberIDs[i] < b.MemberIDs[i]
		}
	}
	return len(a.MemberIDs) < len(b.MemberIDs)
}

// Merge ingests the input files, clusters the surviving records, and
// reduces every cluster to a consensus call. The policy is validated
// before any file is opened. A file-level failure skips that file
// with a logged warning; the merge continues with the rest. The
// output is fully deterministic for a given set of inputs and policy:
// consensus identifiers are ordinals assigned in output order, and
// the run identifier only ever appears in the summary and the logs.
func Merge(inputs []sv.Input, policy *Policy) (*ConsensusSet, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	summary := &RunSummary{RunID: uuid.New().String()}
	log.Printf("merge run %v: %v input file(s)", summary.RunID, len(inputs))
	results := sv.ParseFiles(inputs)
	var records []*sv.Record
	for _, result := range results {
		fs := FileSummary{
			Filename: result.Input.Filename,
			Tool:     result.Input.ToolName(),
			Err:      result.Err,
		}
		if result.Err != nil {
			log.Printf("skipping input file %v: %v", result.Input.Filename, result.Err)
		} else {
			fs.Records = len(result.Records)
			if result.Warnings != nil {
				fs.Warnings = result.Warnings.Count
				for _, w := range result.Warnings.Kept {
					log.Printf("%v: %v", result.Input.Filename, w)
				}
				if dropped := result.Warnings.Count - len(result.Warnings.Kept); dropped > 0 {
					log.Printf("%v: %v further warning(s) not shown", result.Input.Filename, dropped)
				}
			}
			records = append(records, result.Records...)
		}
		summary.Files = append(summary.Files, fs)
	}
	summary.Records = len(records)
	clusters := BuildClusters(records, policy)
	summary.Clusters = len(clusters)
	consensus := make([]*sv.ConsensusRecord, len(clusters))
	parallel.Range(0, len(clusters), 1, func(low, high int) {
		for i := low; i < high; i++ {
			consensus[i] = BuildConsensus(clusters[i], policy)
		}
	})
	sort.SliceStable(consensus, func(i, j int) bool {
		return consensusLess(consensus[i], consensus[j])
	})
	counters := make(map[sv.Type]int)
	for _, record := range consensus {
		counters[record.Type]++
		record.ID = fmt.Sprintf("%v_%v_%v", utils.ProgramName, record.Type, counters[record.Type])
	}
	summary.Consensus = len(consensus)
	log.Printf("merge run %v: %v record(s) in %v cluster(s), %v consensus call(s)",
		summary.RunID, summary.Records, summary.Clusters, summary.Consensus)
	return &ConsensusSet{Records: consensus, Summary: summary}, nil
}
