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
	"testing"

	"github.com/exascience/elmerge/sv"
)

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	if err := policy.Validate(); err != nil {
		t.Error("DefaultPolicy 1 failed: ", err)
	}
	if policy.Tolerance != 50 {
		t.Error("DefaultPolicy 2 failed")
	}
	if !policy.Compatible(sv.Deletion, sv.Deletion) {
		t.Error("DefaultPolicy 3 failed")
	}
	if !policy.Compatible(sv.Unknown, sv.Inversion) {
		t.Error("DefaultPolicy 4 failed")
	}
	if policy.Compatible(sv.Deletion, sv.Duplication) {
		t.Error("DefaultPolicy 5 failed")
	}
}

func TestPolicyValidate(t *testing.T) {
	policy := DefaultPolicy()
	policy.Tolerance = -1
	if err := policy.Validate(); err == nil {
		t.Error("PolicyValidate 1 failed")
	}

	policy = DefaultPolicy()
	policy.TypePriority = []sv.Type{sv.Deletion, sv.Deletion, sv.Inversion, sv.Insertion, sv.Breakend}
	if err := policy.Validate(); err == nil {
		t.Error("PolicyValidate 2 failed")
	}

	policy = DefaultPolicy()
	policy.TypePriority = []sv.Type{sv.Deletion}
	if err := policy.Validate(); err == nil {
		t.Error("PolicyValidate 3 failed")
	}

	policy = DefaultPolicy()
	policy.SetCompatible(sv.Duplication, sv.Insertion, true)
	policy.SetCompatible(sv.Insertion, sv.Duplication, false)
	err := policy.Validate()
	if err == nil {
		t.Error("PolicyValidate 4 failed")
	}
	if _, ok := err.(*PolicyConflict); !ok {
		t.Error("PolicyValidate 5 failed")
	}

	policy = DefaultPolicy()
	policy.SetCompatible(sv.Deletion, sv.Deletion, false)
	if err := policy.Validate(); err == nil {
		t.Error("PolicyValidate 6 failed")
	}

	policy = DefaultPolicy()
	policy.SetCompatible(sv.Unknown, sv.Deletion, false)
	if err := policy.Validate(); err == nil {
		t.Error("PolicyValidate 7 failed")
	}

	policy = DefaultPolicy()
	policy.SetCompatible(sv.Duplication, sv.Insertion, true)
	if err := policy.Validate(); err != nil {
		t.Error("PolicyValidate 8 failed: ", err)
	}
	if !policy.Compatible(sv.Insertion, sv.Duplication) {
		t.Error("PolicyValidate 9 failed")
	}
}

func TestParsePolicy(t *testing.T) {
	policy, err := parsePolicy([]byte(`
breakpoint-tolerance = 100
cross-sample-mode = "partition"
type-priority = ["INS", "DEL", "DUP", "INV", "TRA"]
max-length-ratio = 1.5
min-jaccard = 0.7

[[compatible]]
a = "DUP"
b = "INS"
`))
	if err != nil {
		t.Fatal(err)
	}
	if policy.Tolerance != 100 {
		t.Error("ParsePolicy 1 failed")
	}
	if policy.CrossSample != PartitionBySample {
		t.Error("ParsePolicy 2 failed")
	}
	if policy.priorityRank(sv.Insertion) != 0 {
		t.Error("ParsePolicy 3 failed")
	}
	if policy.MaxLengthRatio != 1.5 || policy.MinJaccard != 0.7 {
		t.Error("ParsePolicy 4 failed")
	}
	if !policy.Compatible(sv.Insertion, sv.Duplication) {
		t.Error("ParsePolicy 5 failed")
	}

	if _, err := parsePolicy([]byte(`type-priority = ["DEL", "CNV"]`)); err == nil {
		t.Error("ParsePolicy 6 failed")
	}

	if _, err := parsePolicy([]byte(`
[[compatible]]
a = "DUP"
b = "INS"

[[compatible]]
a = "INS"
b = "DUP"
compatible = false
`)); err == nil {
		t.Error("ParsePolicy 7 failed")
	}

	if _, err := parsePolicy([]byte(`breakpoint-tolerance = "lots"`)); err == nil {
		t.Error("ParsePolicy 8 failed")
	}
}
