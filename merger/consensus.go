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
	"sort"

	"github.com/samber/lo"

	"github.com/exascience/elmerge/sv"
	"github.com/exascience/elmerge/utils"
)

// lowerMedian returns the lower median of the values: the middle
// element for odd counts, the lower of the two middle elements for
// even counts. Unlike an averaged median it always returns a
// position an actual caller reported, so no interpolated breakpoint
// is invented. The input is not modified.
func lowerMedian(values []int32) int32 {
	sorted := make([]int32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(len(sorted)-1)/2]
}

// voteType runs the majority vote over the member types. Unknown
// members abstain. Exact ties go to the type ranked higher in the
// policy's priority order. The returned votes are sorted by count,
// then by priority rank.
func voteType(members []*sv.Record, policy *Policy) (sv.Type, []sv.TypeVote) {
	counts := make(map[sv.Type]int)
	for _, member := range members {
		if member.Type != sv.Unknown {
			counts[member.Type]++
		}
	}
	if len(counts) == 0 {
		return sv.Unknown, nil
	}
	votes := make([]sv.TypeVote, 0, len(counts))
	for t, count := range counts {
		votes = append(votes, sv.TypeVote{Type: t, Count: count})
	}
	sort.Slice(votes, func(i, j int) bool {
		if votes[i].Count != votes[j].Count {
			return votes[i].Count > votes[j].Count
		}
		return policy.priorityRank(votes[i].Type) < policy.priorityRank(votes[j].Type)
	})
	return votes[0].Type, votes
}

// consensusBreakpoint places one side of the consensus call: the
// lower-median position of the member breakpoints, with a confidence
// interval that envelops every member's own interval.
func consensusBreakpoint(members []*sv.Record, side func(*sv.Record) *sv.Breakpoint) sv.Breakpoint {
	positions := make([]int32, len(members))
	for i, member := range members {
		positions[i] = side(member).Pos
	}
	pos := lowerMedian(positions)
	result := sv.Breakpoint{Chrom: side(members[0]).Chrom, Pos: pos}
	for _, member := range members {
		bp := side(member)
		if d := bp.Pos + bp.CILo - pos; d < result.CILo {
			result.CILo = d
		}
		if d := bp.Pos + bp.CIHi - pos; d > result.CIHi {
			result.CIHi = d
		}
	}
	return result
}

// BuildConsensus reduces one cluster to its consensus record. The
// representative type is the majority vote, positions are per-side
// lower medians, and the size is recomputed from the consensus
// breakpoints rather than voted on, so the emitted call is always
// internally consistent. Singleton clusters pass through unchanged,
// apart from provenance.
func BuildConsensus(cluster *Cluster, policy *Policy) *sv.ConsensusRecord {
	members := cluster.Members
	consensus := &sv.ConsensusRecord{
		Record:  *members[0],
		Support: len(members),
	}
	for _, member := range members {
		consensus.Tools = append(consensus.Tools, member.Tool)
		consensus.MemberIDs = append(consensus.MemberIDs, member.ID)
		if member.Qual > consensus.Qual {
			consensus.Qual = member.Qual
		}
	}
	consensus.Tools = lo.Uniq(consensus.Tools)
	sort.Slice(consensus.Tools, func(i, j int) bool {
		return utils.SymbolName(consensus.Tools[i]) < utils.SymbolName(consensus.Tools[j])
	})
	if len(members) == 1 {
		return consensus
	}
	repType, votes := voteType(members, policy)
	consensus.Type = repType
	if len(votes) > 1 {
		consensus.TypeVotes = votes
	}
	consensus.A = consensusBreakpoint(members, func(r *sv.Record) *sv.Breakpoint { return &r.A })
	consensus.B = consensusBreakpoint(members, func(r *sv.Record) *sv.Breakpoint { return &r.B })
	// Orientation and evidence come from the first member that voted
	// for the winning type.
	for _, member := range members {
		if member.Type == repType {
			consensus.A.Reverse = member.A.Reverse
			consensus.B.Reverse = member.B.Reverse
			consensus.Evidence = member.Evidence
			consensus.Tool = member.Tool
			consensus.Sample = member.Sample
			break
		}
	}
	if repType == sv.Insertion {
		var insLens []int32
		for _, member := range members {
			if member.InsLen > 0 {
				insLens = append(insLens, member.InsLen)
			}
		}
		if len(insLens) > 0 {
			consensus.InsLen = lowerMedian(insLens)
		} else {
			consensus.InsLen = 0
		}
	} else {
		consensus.InsLen = 0
	}
	sizes := make([]int32, len(members))
	for i, member := range members {
		sizes[i] = member.Size()
	}
	if distinct := lo.Uniq(sizes); len(distinct) > 1 {
		sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })
		consensus.SizeHypotheses = distinct
	}
	return consensus
}
