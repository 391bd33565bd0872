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

// Package sv provides the canonical in-memory representation of
// structural variant calls, and parsers and writers for the supported
// call file formats (SVCF, VCF, BEDPE).
package sv

import (
	"fmt"

	"github.com/exascience/elmerge/utils"
)

// Type is an enumeration type for the canonical structural variant
// classes. Tool-specific type vocabularies are mapped onto this
// enumeration by the parsers; labels without a canonical mapping
// become Unknown rather than failing, so that records can still be
// clustered by position and orientation alone.
type Type uint8

// The canonical structural variant classes.
const (
	Unknown Type = iota
	Deletion
	Duplication
	Inversion
	Insertion
	Breakend // translocations and unresolved breakend pairs
)

var typeStrings = []string{"UNK", "DEL", "DUP", "INV", "INS", "TRA"}

func (t Type) String() string {
	if int(t) < len(typeStrings) {
		return typeStrings[t]
	}
	return typeStrings[Unknown]
}

// typeLabels maps the type vocabularies of the supported callers onto
// the canonical enumeration. This is an explicit lookup table, not
// runtime inspection of the records.
var typeLabels = map[string]Type{
	"DEL":        Deletion,
	"DEL:ME":     Deletion,
	"DUP":        Duplication,
	"DUP:TANDEM": Duplication,
	"DUP:INT":    Duplication,
	"INV":        Inversion,
	"INS":        Insertion,
	"INS:ME":     Insertion,
	"INS:NOVEL":  Insertion,
	"TRA":        Breakend,
	"BND":        Breakend,
	"TRN":        Breakend,
}

// ParseType maps a tool-specific type label onto the canonical
// enumeration. Labels without a mapping yield Unknown.
func ParseType(label string) Type {
	if t, ok := typeLabels[label]; ok {
		return t
	}
	return Unknown
}

// ParseTypeStrict is like ParseType, but reports whether the label
// has a canonical mapping. The canonical names themselves (including
// "UNK") are always accepted. It is used for configuration values,
// where an unknown label is a policy error rather than missing data.
func ParseTypeStrict(label string) (Type, bool) {
	if label == "UNK" {
		return Unknown, true
	}
	t, ok := typeLabels[label]
	return t, ok
}

// Types lists the typed (non-Unknown) classes in their default
// priority order.
func Types() []Type {
	return []Type{Deletion, Duplication, Inversion, Insertion, Breakend}
}

// A Breakpoint is one endpoint of a structural variant: a 1-based
// position on a chromosome, with a confidence interval expressed as
// signed offsets around the position (CILo <= 0 <= CIHi), and an
// orientation flag that is meaningful for inversions and breakends.
// Breakpoints are treated as immutable values once constructed.
type Breakpoint struct {
	Chrom   utils.Symbol
	Pos     int32
	CILo    int32
	CIHi    int32
	Reverse bool
}

// Window returns the closed interval covered by the breakpoint's
// confidence interval. A breakpoint that reports no uncertainty gets
// the given symmetric tolerance instead, so that precise calls from
// different tools can still be matched against each other.
func (b Breakpoint) Window(tolerance int32) (lo, hi int32) {
	if b.CILo == 0 && b.CIHi == 0 {
		return b.Pos - tolerance, b.Pos + tolerance
	}
	return b.Pos + b.CILo, b.Pos + b.CIHi
}

// A Record is the canonical representation of one structural variant
// call as reported by a single source tool. After consensus building,
// a record may instead represent the agreement of several tools; see
// ConsensusRecord.
type Record struct {
	ID     string
	Type   Type
	A, B   Breakpoint
	InsLen int32   // inserted sequence length, for insertions
	Qual   float64 // < 0 when the caller reported none
	Tool   utils.Symbol
	Sample utils.Symbol
	// Evidence preserves the raw INFO payload of the source record.
	// It is carried along for provenance and never interpreted.
	Evidence utils.SmallMap
}

// Intra reports whether both breakpoints lie on the same chromosome.
func (r *Record) Intra() bool {
	return r.A.Chrom == r.B.Chrom
}

// Size returns the reported size of the variant, derived from its
// breakpoints: end - start for intra-chromosomal events, the inserted
// sequence length for insertions, and 0 for inter-chromosomal
// breakends, where a linear size has no meaning.
func (r *Record) Size() int32 {
	switch {
	case r.Type == Insertion:
		return r.InsLen
	case !r.Intra():
		return 0
	default:
		return r.B.Pos - r.A.Pos
	}
}

// Normalize establishes the breakpoint ordering convention: for
// intra-chromosomal records A.Pos <= B.Pos, and for inter-chromosomal
// records the breakpoint on the lexicographically smaller chromosome
// comes first. Matching and output rely on this convention.
func (r *Record) Normalize() {
	if r.A.Chrom == r.B.Chrom {
		if r.B.Pos < r.A.Pos {
			r.A, r.B = r.B, r.A
		}
		return
	}
	if *r.B.Chrom < *r.A.Chrom {
		r.A, r.B = r.B, r.A
	}
}

// Validate checks the record invariants against the given reference
// dictionary. It returns an *InvalidRecord error describing the first
// violation, or nil. Validation has no side effects.
func (r *Record) Validate(ref *Reference) error {
	if r.A.Chrom == nil || r.B.Chrom == nil {
		return invalidf(r.ID, "missing chromosome")
	}
	if r.Tool == nil {
		return invalidf(r.ID, "missing source tool")
	}
	for _, bp := range []Breakpoint{r.A, r.B} {
		if bp.Pos < 1 {
			return invalidf(r.ID, "position %v out of range on %v", bp.Pos, *bp.Chrom)
		}
		if bp.CILo > 0 || bp.CIHi < 0 {
			return invalidf(r.ID, "inverted confidence interval [%v,%v]", bp.CILo, bp.CIHi)
		}
		if ref != nil {
			if !ref.Known(bp.Chrom) {
				return invalidf(r.ID, "unknown chromosome %v", *bp.Chrom)
			}
			if length := ref.Length(bp.Chrom); length > 0 && bp.Pos > length {
				return invalidf(r.ID, "position %v beyond end of %v (%v)", bp.Pos, *bp.Chrom, length)
			}
		}
	}
	if r.Intra() && r.A.Pos > r.B.Pos {
		return invalidf(r.ID, "unnormalized breakpoints %v > %v", r.A.Pos, r.B.Pos)
	}
	if r.Type == Insertion && r.InsLen < 0 {
		return invalidf(r.ID, "negative insertion length %v", r.InsLen)
	}
	return nil
}

// TypeVote records how many cluster members carried a given type.
type TypeVote struct {
	Type  Type
	Count int
}

// A ConsensusRecord is the single representative call emitted for one
// cluster of matching records, augmented with provenance: the set of
// contributing tools, the support count, and the conflicting type and
// size hypotheses when the members disagreed.
type ConsensusRecord struct {
	Record
	Support   int
	Tools     []utils.Symbol
	MemberIDs []string
	// TypeVotes and SizeHypotheses are only populated when the
	// cluster members actually disagreed.
	TypeVotes      []TypeVote
	SizeHypotheses []int32
}

// A Reference is the dictionary of chromosome names (and lengths,
// when declared) that record validation checks against. A reference
// without any declared contig accepts every chromosome name; this is
// the permissive mode used when an input file carries no contig
// header lines.
type Reference struct {
	contigs map[utils.Symbol]int32
	order   []utils.Symbol
}

// NewReference returns an empty, permissive reference dictionary.
func NewReference() *Reference {
	return &Reference{contigs: make(map[utils.Symbol]int32)}
}

// AddContig declares a chromosome, with length 0 meaning unknown.
func (ref *Reference) AddContig(name string, length int32) {
	sym := utils.Intern(name)
	if _, ok := ref.contigs[sym]; !ok {
		ref.order = append(ref.order, sym)
	}
	ref.contigs[sym] = length
}

// Known reports whether the chromosome is acceptable under this
// reference dictionary.
func (ref *Reference) Known(chrom utils.Symbol) bool {
	if len(ref.contigs) == 0 {
		return chrom != nil && *chrom != "" && *chrom != "."
	}
	_, ok := ref.contigs[chrom]
	return ok
}

// Length returns the declared length of the chromosome, or 0.
func (ref *Reference) Length(chrom utils.Symbol) int32 {
	return ref.contigs[chrom]
}

// Contigs returns the declared chromosomes in declaration order.
func (ref *Reference) Contigs() []utils.Symbol {
	return ref.order
}

func (t Type) alt() string {
	return fmt.Sprintf("<%v>", t)
}
