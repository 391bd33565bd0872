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

// Package merger matches structural variant calls from independent
// tools into clusters that describe the same rearrangement, and
// reduces every cluster to a single consensus call with provenance.
package merger

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/exascience/elmerge/sv"
)

// CrossSampleMode controls whether calls from different samples may
// end up in the same cluster.
type CrossSampleMode int

// The cross-sample modes.
const (
	MergeAcrossSamples CrossSampleMode = iota
	PartitionBySample
)

// ParseCrossSampleMode maps a configuration value onto a mode.
func ParseCrossSampleMode(s string) (CrossSampleMode, error) {
	switch s {
	case "", "merge", "merge_across_samples":
		return MergeAcrossSamples, nil
	case "partition", "partition_by_sample":
		return PartitionBySample, nil
	default:
		return 0, &PolicyConflict{Reason: fmt.Sprintf("unknown cross-sample mode %v", s)}
	}
}

// A PolicyConflict error rejects a merge policy that is internally
// contradictory. It is raised by Validate before any input file is
// read: a contradictory policy cannot be resolved deterministically,
// so the run must not start.
type PolicyConflict struct {
	Reason string
}

func (e *PolicyConflict) Error() string {
	return fmt.Sprintf("clustering policy conflict: %v", e.Reason)
}

type typePair struct {
	a, b sv.Type
}

// A Policy bundles the tunable matching rules: the symmetric
// tolerance window applied to breakpoints without their own
// confidence interval, overrides of the default cross-type
// compatibility, the optional span guards, the cross-sample mode,
// and the priority order used to break majority-vote ties.
type Policy struct {
	// Tolerance is the symmetric window, in base pairs, substituted
	// for an absent confidence interval.
	Tolerance int32
	// TypePriority breaks exact ties in the majority type vote. It
	// must name every typed class exactly once.
	TypePriority []sv.Type
	CrossSample  CrossSampleMode
	// MaxLengthRatio and MinJaccard are optional span guards for
	// intra-chromosomal events; 0 disables them.
	MaxLengthRatio float64
	MinJaccard     float64

	// compat holds directed cross-type declarations; identical types
	// and Unknown are always compatible and may not be overridden.
	compat map[typePair]bool
}

// DefaultPolicy returns the policy used when no configuration file is
// given: 50 bp tolerance, no cross-type compatibility, merging across
// samples, and the documented default priority order.
func DefaultPolicy() *Policy {
	return &Policy{
		Tolerance:    50,
		TypePriority: sv.Types(),
		CrossSample:  MergeAcrossSamples,
	}
}

// SetCompatible declares a directed cross-type compatibility
// statement, as read from the configuration.
func (p *Policy) SetCompatible(a, b sv.Type, compatible bool) {
	if p.compat == nil {
		p.compat = make(map[typePair]bool)
	}
	p.compat[typePair{a, b}] = compatible
}

// Compatible reports whether two types may share a cluster under this
// policy. Identical types are always compatible, Unknown is
// compatible with everything, and any other cross-type combination is
// forbidden unless the table declares otherwise.
func (p *Policy) Compatible(a, b sv.Type) bool {
	if a == b || a == sv.Unknown || b == sv.Unknown {
		return true
	}
	if v, ok := p.compat[typePair{a, b}]; ok {
		return v
	}
	return p.compat[typePair{b, a}]
}

// Validate checks the policy for internal contradictions. It must be
// called (and pass) before any input file is read.
func (p *Policy) Validate() error {
	if p.Tolerance < 0 {
		return &PolicyConflict{Reason: fmt.Sprintf("negative breakpoint tolerance %v", p.Tolerance)}
	}
	if p.MaxLengthRatio != 0 && p.MaxLengthRatio < 1 {
		return &PolicyConflict{Reason: fmt.Sprintf("maximum length ratio %v below 1", p.MaxLengthRatio)}
	}
	if p.MinJaccard < 0 || p.MinJaccard > 1 {
		return &PolicyConflict{Reason: fmt.Sprintf("minimum Jaccard index %v outside [0,1]", p.MinJaccard)}
	}
	seen := make(map[sv.Type]bool)
	for _, t := range p.TypePriority {
		if t == sv.Unknown {
			return &PolicyConflict{Reason: "UNK has no place in the type priority order"}
		}
		if seen[t] {
			return &PolicyConflict{Reason: fmt.Sprintf("duplicate %v in the type priority order", t)}
		}
		seen[t] = true
	}
	for _, t := range sv.Types() {
		if !seen[t] {
			return &PolicyConflict{Reason: fmt.Sprintf("type priority order does not rank %v", t)}
		}
	}
	for pair, v := range p.compat {
		if pair.a == pair.b {
			return &PolicyConflict{Reason: fmt.Sprintf("compatibility of %v with itself is fixed and cannot be declared", pair.a)}
		}
		if pair.a == sv.Unknown || pair.b == sv.Unknown {
			return &PolicyConflict{Reason: "compatibility of UNK is fixed and cannot be declared"}
		}
		if w, ok := p.compat[typePair{pair.b, pair.a}]; ok && w != v {
			return &PolicyConflict{Reason: fmt.Sprintf("%v/%v declared compatible and incompatible at the same time", pair.a, pair.b)}
		}
	}
	return nil
}

// priorityRank returns the tie-break rank of a type, lower is better.
func (p *Policy) priorityRank(t sv.Type) int {
	for i, candidate := range p.TypePriority {
		if candidate == t {
			return i
		}
	}
	return len(p.TypePriority)
}

// policyFile is the TOML shape of a policy configuration file.
type policyFile struct {
	BreakpointTolerance *int32   `toml:"breakpoint-tolerance"`
	CrossSampleMode     string   `toml:"cross-sample-mode"`
	TypePriority        []string `toml:"type-priority"`
	MaxLengthRatio      float64  `toml:"max-length-ratio"`
	MinJaccard          float64  `toml:"min-jaccard"`
	Compatible          []struct {
		A          string `toml:"a"`
		B          string `toml:"b"`
		Compatible *bool  `toml:"compatible"`
	} `toml:"compatible"`
}

// LoadPolicy reads a TOML policy file on top of the defaults and
// validates the result.
func LoadPolicy(filename string) (*Policy, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	policy, err := parsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("%v, while loading policy file %v", err, filename)
	}
	return policy, nil
}

func parsePolicy(data []byte) (*Policy, error) {
	var file policyFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	policy := DefaultPolicy()
	if file.BreakpointTolerance != nil {
		policy.Tolerance = *file.BreakpointTolerance
	}
	mode, err := ParseCrossSampleMode(file.CrossSampleMode)
	if err != nil {
		return nil, err
	}
	policy.CrossSample = mode
	policy.MaxLengthRatio = file.MaxLengthRatio
	policy.MinJaccard = file.MinJaccard
	if len(file.TypePriority) > 0 {
		policy.TypePriority = nil
		for _, label := range file.TypePriority {
			t, ok := sv.ParseTypeStrict(label)
			if !ok {
				return nil, &PolicyConflict{Reason: fmt.Sprintf("unknown type %v in the priority order", label)}
			}
			policy.TypePriority = append(policy.TypePriority, t)
		}
	}
	for _, pair := range file.Compatible {
		a, okA := sv.ParseTypeStrict(pair.A)
		b, okB := sv.ParseTypeStrict(pair.B)
		if !okA || !okB {
			return nil, &PolicyConflict{Reason: fmt.Sprintf("unknown type in compatibility declaration %v/%v", pair.A, pair.B)}
		}
		compatible := true
		if pair.Compatible != nil {
			compatible = *pair.Compatible
		}
		policy.SetCompatible(a, b, compatible)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}
