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

// Package intervals implements the interval arithmetic used for
// matching breakpoint confidence windows, and a per-chromosome,
// per-breakpoint-side index for range queries over them.
package intervals

// Interval is a closed interval with a start and an end position.
// Breakpoint confidence windows are closed on both ends: two windows
// that merely touch are overlap candidates.
type Interval struct {
	Start, End int32
}

// Overlaps reports whether the two closed intervals intersect. The
// relation is reflexive and symmetric, but not transitive; resolving
// that non-transitivity is the clusterer's job, not the index's.
func (interval Interval) Overlaps(other Interval) bool {
	return interval.Start <= other.End && other.Start <= interval.End
}
