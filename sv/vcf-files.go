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
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/brentp/vcfgo"
	"github.com/brentp/xopen"

	"github.com/exascience/elmerge/utils"
)

// A VCFReader reads SV records from a standard VCF file as emitted by
// the supported callers. Like the SVCF reader it is lazy and
// single-pass.
type VCFReader struct {
	rdr      *vcfgo.Reader
	closer   io.Closer
	tool     utils.Symbol
	sample   utils.Symbol
	warnings *Warnings
}

// OpenVCF opens a VCF file, possibly gzip-compressed. A header that
// vcfgo cannot parse returns an *UnsupportedFormat error.
func OpenVCF(filename, tool string) (*VCFReader, error) {
	file, err := xopen.Ropen(filename)
	if err != nil {
		return nil, err
	}
	rdr, err := vcfgo.NewReader(file, true)
	if err != nil {
		_ = file.Close()
		return nil, &UnsupportedFormat{Filename: filename, Reason: err.Error()}
	}
	sample := tool
	if names := rdr.Header.SampleNames; len(names) > 0 {
		sample = names[0]
	}
	return &VCFReader{
		rdr:      rdr,
		closer:   file,
		tool:     utils.Intern(tool),
		sample:   utils.Intern(sample),
		warnings: &Warnings{Filename: filename},
	}, nil
}

// Warnings returns the accumulated per-record warnings.
func (r *VCFReader) Warnings() *Warnings {
	return r.warnings
}

// Close closes the underlying file.
func (r *VCFReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// errNotStructural marks a well-formed variant line that simply is
// not a structural variant call, such as a SNP in a mixed VCF. These
// are skipped without a warning.
var errNotStructural = errors.New("not a structural variant call")

// Read returns the next record, silently skipping non-SV variant
// lines, counting variants that cannot be parsed as valid SV calls,
// or io.EOF.
func (r *VCFReader) Read() (*Record, error) {
	for {
		variant := r.rdr.Read()
		if variant == nil {
			return nil, io.EOF
		}
		rec, err := r.convert(variant)
		// vcfgo collects its own syntax complaints; fold them into
		// the warnings and keep going
		if verr := r.rdr.Error(); verr != nil {
			r.warnings.Addf(int(variant.LineNumber), "%v", verr)
			r.rdr.Clear()
		}
		if err == errNotStructural {
			continue
		}
		if err != nil {
			r.warnings.Addf(int(variant.LineNumber), "%v, while parsing VCF variant at %v:%v", err, variant.Chromosome, variant.Pos)
			continue
		}
		return rec, nil
	}
}

// ReadAll drains the reader.
func (r *VCFReader) ReadAll() ([]*Record, error) {
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

// infoValueInt coerces the dynamically typed values vcfgo produces
// for INFO entries into an integer.
func infoValueInt(value interface{}) (int32, bool) {
	switch v := value.(type) {
	case int:
		return int32(v), true
	case int64:
		return int32(v), true
	case float64:
		return int32(v), true
	case float32:
		return int32(v), true
	case string:
		i, err := strconv.ParseInt(v, 10, 32)
		return int32(i), err == nil
	case []interface{}:
		if len(v) > 0 {
			return infoValueInt(v[0])
		}
	case []int:
		if len(v) > 0 {
			return int32(v[0]), true
		}
	}
	return 0, false
}

func infoValuePair(value interface{}) (lo, hi int32, ok bool) {
	switch v := value.(type) {
	case []int:
		if len(v) == 2 {
			return int32(v[0]), int32(v[1]), true
		}
	case []interface{}:
		if len(v) == 2 {
			lo, ok1 := infoValueInt(v[0])
			hi, ok2 := infoValueInt(v[1])
			return lo, hi, ok1 && ok2
		}
	case string:
		lo, hi, err := parseCIPair(v)
		return lo, hi, err == nil
	}
	return 0, 0, false
}

func infoValueString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []interface{}:
		if len(v) > 0 {
			return infoValueString(v[0])
		}
	case []string:
		if len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}

var breakendAltRegexp = regexp.MustCompile(`([\[\]])([^:\[\]]+):([0-9]+)[\[\]]`)

// parseBreakendAlt interprets the VCF breakend bracket notation,
// returning the mate coordinate and the orientations of both sides.
// N[chr:pos[ and N]chr:pos] read the junction in the forward
// direction of the local breakpoint; a leading bracket reverses it.
// The bracket direction gives the orientation of the mate side.
func parseBreakendAlt(alt string) (chrom string, pos int32, revA, revB, ok bool) {
	groups := breakendAltRegexp.FindStringSubmatch(alt)
	if groups == nil {
		return "", 0, false, false, false
	}
	p, err := strconv.ParseInt(groups[3], 10, 32)
	if err != nil {
		return "", 0, false, false, false
	}
	revA = strings.HasPrefix(alt, "[") || strings.HasPrefix(alt, "]")
	revB = groups[1] == "]"
	return groups[2], int32(p), revA, revB, true
}

// convert maps one vcfgo variant onto the canonical record model.
func (r *VCFReader) convert(variant *vcfgo.Variant) (*Record, error) {
	rec := &Record{
		ID:     variant.Id(),
		Qual:   float64(variant.Quality),
		Tool:   r.tool,
		Sample: r.sample,
	}
	if variant.Quality == 0 {
		rec.Qual = -1
	}
	info := variant.Info()
	for _, key := range info.Keys() {
		if value, err := info.Get(key); err == nil {
			if s, ok := infoValueString(value); ok {
				rec.Evidence.Set(utils.Intern(key), s)
			}
		}
	}

	svtype := ""
	if value, err := info.Get("SVTYPE"); err == nil {
		svtype, _ = infoValueString(value)
	}
	if svtype == "" {
		return nil, errNotStructural
	}
	rec.Type = ParseType(svtype)

	rec.A = Breakpoint{Chrom: utils.Intern(variant.Chromosome), Pos: int32(variant.Pos)}
	rec.B = rec.A

	alt := ""
	if alts := variant.Alt(); len(alts) > 0 {
		alt = alts[0]
	}
	if chrom, pos, revA, revB, ok := parseBreakendAlt(alt); ok {
		rec.Type = Breakend
		rec.A.Reverse = revA
		rec.B = Breakpoint{Chrom: utils.Intern(chrom), Pos: pos, Reverse: revB}
	} else {
		if value, err := info.Get("END"); err == nil {
			if end, ok := infoValueInt(value); ok {
				rec.B.Pos = end
			}
		}
		if value, err := info.Get("CHR2"); err == nil {
			if chr2, ok := infoValueString(value); ok && chr2 != "" {
				rec.B.Chrom = utils.Intern(chr2)
			}
		}
		if value, err := info.Get("STRANDS"); err == nil {
			if strands, ok := infoValueString(value); ok {
				if revA, revB, ok := parseStrandPair(strands); ok {
					rec.A.Reverse = revA
					rec.B.Reverse = revB
				}
			}
		}
	}

	if value, err := info.Get("SVLEN"); err == nil {
		if svlen, ok := infoValueInt(value); ok {
			if svlen < 0 {
				svlen = -svlen
			}
			switch rec.Type {
			case Insertion:
				rec.InsLen = svlen
			case Deletion, Duplication, Inversion:
				if rec.B.Pos == rec.A.Pos {
					rec.B.Pos = rec.A.Pos + svlen
				}
			}
		}
	}
	if value, err := info.Get("CIPOS"); err == nil {
		if lo, hi, ok := infoValuePair(value); ok {
			rec.A.CILo, rec.A.CIHi = lo, hi
		}
	}
	if value, err := info.Get("CIEND"); err == nil {
		if lo, hi, ok := infoValuePair(value); ok {
			rec.B.CILo, rec.B.CIHi = lo, hi
		}
	}

	rec.Normalize()
	if err := rec.Validate(nil); err != nil {
		return nil, err
	}
	return rec, nil
}
