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
	"bufio"
	"io"
	"strconv"
)

// A BEDWriter formats records as single-interval BED lines: chrom,
// 0-based half-open interval, name, score, and the strand of the
// first breakpoint. Insertions and inter-chromosomal junctions occupy
// a single base at the first breakpoint. In minimal mode only the
// first three columns are written.
type BEDWriter struct {
	w       *bufio.Writer
	minimal bool
}

// NewBEDWriter returns a writer for BED output.
func NewBEDWriter(w io.Writer, minimal bool) *BEDWriter {
	return &BEDWriter{w: bufio.NewWriter(w), minimal: minimal}
}

// Write formats one record as a BED line.
func (out *BEDWriter) Write(rec *Record) {
	start := int64(rec.A.Pos) - 1
	end := int64(rec.B.Pos)
	if rec.Type == Insertion || !rec.Intra() {
		end = start + 1
	}
	buf := make([]byte, 0, 128)
	buf = append(buf, *rec.A.Chrom...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, start, 10)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, end, 10)
	if !out.minimal {
		buf = append(buf, '\t')
		buf = append(buf, rec.ID...)
		buf = append(buf, '_')
		buf = append(buf, rec.Type.String()...)
		buf = append(buf, '\t')
		if rec.Qual < 0 {
			buf = append(buf, '.')
		} else {
			buf = strconv.AppendFloat(buf, rec.Qual, 'g', -1, 64)
		}
		buf = append(buf, '\t')
		if rec.A.Reverse {
			buf = append(buf, '-')
		} else {
			buf = append(buf, '+')
		}
	}
	buf = append(buf, '\n')
	_, _ = out.w.Write(buf)
}

// Flush flushes buffered output.
func (out *BEDWriter) Flush() error {
	return out.w.Flush()
}
