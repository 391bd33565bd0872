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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brentp/xopen"

	"github.com/exascience/elmerge/utils"
)

// A BEDPEReader reads SV records from a BEDPE breakpoint-pair file:
// chrom1 start1 end1 chrom2 start2 end2 [name score strand1 strand2
// [type]]. The interval halves are interpreted as the confidence
// windows of the two breakpoints. See
// https://bedtools.readthedocs.io/en/latest/content/general-usage.html
type BEDPEReader struct {
	rd       *bufio.Reader
	closer   io.Closer
	tool     utils.Symbol
	warnings *Warnings
	line     int
}

// OpenBEDPE opens a BEDPE file, possibly gzip-compressed.
func OpenBEDPE(filename, tool string) (*BEDPEReader, error) {
	file, err := xopen.Ropen(filename)
	if err != nil {
		return nil, err
	}
	reader := NewBEDPEReader(file, filename, tool)
	reader.closer = file
	return reader, nil
}

// NewBEDPEReader returns a reader for BEDPE content. BEDPE has no
// header schema to validate; every line stands on its own.
func NewBEDPEReader(r io.Reader, filename, tool string) *BEDPEReader {
	rd, ok := r.(*bufio.Reader)
	if !ok {
		rd = bufio.NewReader(r)
	}
	return &BEDPEReader{
		rd:       rd,
		tool:     utils.Intern(tool),
		warnings: &Warnings{Filename: filename},
	}
}

// Warnings returns the accumulated per-line warnings.
func (r *BEDPEReader) Warnings() *Warnings {
	return r.warnings
}

// Close closes the underlying file, if any.
func (r *BEDPEReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Read returns the next record, skipping comment and track lines and
// counting malformed ones, or io.EOF.
func (r *BEDPEReader) Read() (*Record, error) {
	for {
		line, err := getLine(r.rd)
		if err != nil {
			return nil, err
		}
		r.line++
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") ||
			strings.HasPrefix(line, "browser") {
			continue
		}
		rec, err := parseBEDPELine(line, r.tool)
		if err != nil {
			r.warnings.Addf(r.line, "%v, while parsing BEDPE record %v", err, line)
			continue
		}
		return rec, nil
	}
}

// ReadAll drains the reader.
func (r *BEDPEReader) ReadAll() ([]*Record, error) {
	var records []*Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// bedpeBreakpoint converts a 0-based half-open BEDPE interval into a
// breakpoint at the interval start with the interval extent as its
// confidence window.
func bedpeBreakpoint(chrom string, start, end int64) Breakpoint {
	bp := Breakpoint{Chrom: utils.Intern(chrom), Pos: int32(start) + 1}
	if width := int32(end - start - 1); width > 0 {
		bp.CIHi = width
	}
	return bp
}

func parseBEDPELine(line string, tool utils.Symbol) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 6 {
		return nil, fmt.Errorf("truncated record with %v columns", len(fields))
	}
	var pos [4]int64
	for i, field := range []string{fields[1], fields[2], fields[4], fields[5]} {
		value, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %v", field)
		}
		pos[i] = value
	}
	rec := &Record{
		Qual: -1,
		Tool: tool,
		A:    bedpeBreakpoint(fields[0], pos[0], pos[1]),
		B:    bedpeBreakpoint(fields[3], pos[2], pos[3]),
	}
	if len(fields) > 6 {
		rec.ID = fields[6]
	}
	if len(fields) > 7 && fields[7] != "." && fields[7] != "" {
		if score, err := strconv.ParseFloat(fields[7], 64); err == nil {
			rec.Qual = score
		}
	}
	if len(fields) > 9 {
		rec.A.Reverse = fields[8] == "-"
		rec.B.Reverse = fields[9] == "-"
	}
	if len(fields) > 10 {
		rec.Type = ParseType(fields[10])
	}
	if rec.Type == Unknown && rec.A.Chrom != rec.B.Chrom {
		rec.Type = Breakend
	}
	rec.Normalize()
	if err := rec.Validate(nil); err != nil {
		return nil, err
	}
	return rec, nil
}

// A BEDPEWriter formats records as BEDPE breakpoint pairs, one line
// per record, with the confidence windows as the interval halves.
type BEDPEWriter struct {
	w *bufio.Writer
}

// NewBEDPEWriter returns a writer for BEDPE output.
func NewBEDPEWriter(w io.Writer) *BEDPEWriter {
	return &BEDPEWriter{w: bufio.NewWriter(w)}
}

func appendBEDPEHalf(buf []byte, bp Breakpoint) []byte {
	buf = append(buf, *bp.Chrom...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(bp.Pos+bp.CILo)-1, 10)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(bp.Pos+bp.CIHi), 10)
	buf = append(buf, '\t')
	return buf
}

// Write formats one record as a BEDPE line.
func (out *BEDPEWriter) Write(rec *Record) {
	buf := make([]byte, 0, 128)
	buf = appendBEDPEHalf(buf, rec.A)
	buf = appendBEDPEHalf(buf, rec.B)
	buf = append(buf, rec.ID...)
	buf = append(buf, '\t')
	if rec.Qual < 0 {
		buf = append(buf, '.')
	} else {
		buf = strconv.AppendFloat(buf, rec.Qual, 'g', -1, 64)
	}
	buf = append(buf, '\t')
	strand := strandString(rec.A, rec.B)
	buf = append(buf, strand[0], '\t', strand[1], '\t')
	buf = append(buf, rec.Type.String()...)
	buf = append(buf, '\n')
	_, _ = out.w.Write(buf)
}

// Flush flushes buffered output.
func (out *BEDPEWriter) Flush() error {
	return out.w.Flush()
}
