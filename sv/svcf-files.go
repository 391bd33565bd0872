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
	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/elmerge/utils"
)

// The supported SVCF file format version. SVCF is the normalized,
// VCF-shaped interchange format for single-sample SV call sets; see
// the README for a description of its columns.
const (
	SVCFFormatVersion           = "SVCFv1.1"
	SVCFFormatVersionLine       = "##fileformat=SVCFv1.1"
	svcfFormatVersionLinePrefix = "##fileformat=SVCF"
)

// Commonly used SVCF INFO and FORMAT entries.
var (
	SVTYPE  = utils.Intern("SVTYPE")
	END     = utils.Intern("END")
	SVLEN   = utils.Intern("SVLEN")
	CHR2    = utils.Intern("CHR2")
	STRAND  = utils.Intern("STRAND")
	CIPOS   = utils.Intern("CIPOS")
	CIEND   = utils.Intern("CIEND")
	SUPPORT = utils.Intern("SUPPORT")
	SC      = utils.Intern("SC")
	CO      = utils.Intern("CO")
)

// SVCFHeader is the parsed header section of an SVCF file.
type SVCFHeader struct {
	FileFormat string
	Reference  *Reference
	Sample     string
	// Meta holds the other ##key=value meta lines, first occurrence
	// wins.
	Meta utils.StringMap
}

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	switch {
	case err == nil:
		line = strings.TrimSuffix(line[:len(line)-1], "\r")
	case err == io.EOF && line != "":
		err = nil
	}
	return
}

// parseContigLine parses a "##contig=<ID=chr1,length=248956422>" meta
// line into the reference dictionary. Contig lines that do not follow
// this shape are ignored; they cannot invalidate the header.
func parseContigLine(line string, ref *Reference) {
	var sc StringScanner
	sc.Reset(line)
	if _, found := sc.readUntilByte('<'); !found {
		return
	}
	var id string
	var length int64
	for sc.Len() > 0 {
		key, ok := sc.readUntilByte('=')
		if !ok {
			return
		}
		value := sc.readUntilBytes([]byte{',', '>'})
		sc.index++
		switch key {
		case "ID":
			id = value
		case "length":
			length, _ = strconv.ParseInt(value, 10, 32)
		}
	}
	if id != "" {
		ref.AddContig(id, int32(length))
	}
}

// ParseSVCFHeader parses the header section of an SVCF file: the
// file format line, all meta-information lines, and the column line.
// A header that does not declare the SVCF format, or that ends before
// the column line, is a schema-level failure.
func ParseSVCFHeader(reader *bufio.Reader) (hdr *SVCFHeader, lines int, err error) {
	line, err := getLine(reader)
	if err != nil {
		return nil, 0, err
	}
	lines++
	if !strings.HasPrefix(line, svcfFormatVersionLinePrefix) {
		return nil, 0, fmt.Errorf("invalid first line in an SVCF file: %v", line)
	}
	hdr = &SVCFHeader{FileFormat: line, Reference: NewReference(), Meta: utils.StringMap{}}
	for {
		data, e := reader.Peek(1)
		if e != nil || data[0] != '#' {
			return nil, 0, fmt.Errorf("unexpected end of SVCF header")
		}
		line, err = getLine(reader)
		if err != nil {
			return nil, 0, err
		}
		lines++
		if strings.HasPrefix(line, "##") {
			if strings.HasPrefix(line, "##contig=") {
				parseContigLine(line, hdr.Reference)
			} else if eq := strings.IndexByte(line, '='); eq > 2 && !strings.HasPrefix(line[eq+1:], "<") {
				hdr.Meta.SetUniqueEntry(line[2:eq], line[eq+1:])
			}
			continue
		}
		// the column line ends the header
		columns := strings.Split(line, "\t")
		if len(columns) < 10 || columns[0] != "#CHROM" {
			return nil, 0, fmt.Errorf("invalid SVCF column line: %v", line)
		}
		hdr.Sample = columns[9]
		return hdr, lines, nil
	}
}

// An SVCFReader reads records from one SVCF file. It is a lazy,
// single-pass reader: Read returns records one at a time and io.EOF
// at the end of the file. Reopen the file to reparse.
type SVCFReader struct {
	hdr      *SVCFHeader
	rd       *bufio.Reader
	closer   io.Closer
	tool     utils.Symbol
	sample   utils.Symbol
	ref      *Reference
	warnings *Warnings
	line     int
}

// OpenSVCF opens an SVCF file, possibly gzip-compressed, and parses
// its header. tool is the source tool identifier used for records
// that carry no SC entry of their own. A header-level failure returns
// an *UnsupportedFormat error and no reader.
func OpenSVCF(filename, tool string) (*SVCFReader, error) {
	file, err := xopen.Ropen(filename)
	if err != nil {
		return nil, err
	}
	reader, err := NewSVCFReader(file, filename, tool)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// NewSVCFReader parses the SVCF header from r and returns a reader
// for the record section.
func NewSVCFReader(r io.Reader, filename, tool string) (*SVCFReader, error) {
	rd, ok := r.(*bufio.Reader)
	if !ok {
		rd = bufio.NewReader(r)
	}
	hdr, lines, err := ParseSVCFHeader(rd)
	if err != nil {
		return nil, &UnsupportedFormat{Filename: filename, Reason: err.Error()}
	}
	return &SVCFReader{
		hdr:      hdr,
		rd:       rd,
		tool:     utils.Intern(tool),
		sample:   utils.Intern(hdr.Sample),
		ref:      hdr.Reference,
		warnings: &Warnings{Filename: filename},
		line:     lines,
	}, nil
}

// Header returns the parsed header section.
func (r *SVCFReader) Header() *SVCFHeader {
	return r.hdr
}

// Warnings returns the accumulated per-line warnings.
func (r *SVCFReader) Warnings() *Warnings {
	return r.warnings
}

// Close closes the underlying file, if any.
func (r *SVCFReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Read returns the next record of the file, skipping and counting
// malformed lines and invalid records, or io.EOF.
func (r *SVCFReader) Read() (*Record, error) {
	for {
		line, err := getLine(r.rd)
		if err != nil {
			return nil, err
		}
		r.line++
		if line == "" {
			continue
		}
		rec, err := parseSVCFLine(line, r.tool, r.sample, r.ref)
		if err != nil {
			r.warnings.Addf(r.line, "%v, while parsing SVCF record %v", err, line)
			continue
		}
		return rec, nil
	}
}

// ReadAll parses the remaining record section with parallel worker
// tasks, preserving file order. Warnings raised inside the workers
// reference the offending line text instead of a line number.
func (r *SVCFReader) ReadAll() ([]*Record, error) {
	type batch struct {
		records  []*Record
		warnings Warnings
	}
	var records []*Record
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(r.rd))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		out := new(batch)
		for _, line := range lines {
			if line == "" {
				continue
			}
			rec, err := parseSVCFLine(line, r.tool, r.sample, r.ref)
			if err != nil {
				out.warnings.Addf(0, "%v, while parsing SVCF record %v", err, line)
				continue
			}
			out.records = append(out.records, rec)
		}
		return out
	})))
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		out := data.(*batch)
		records = append(records, out.records...)
		r.warnings.Merge(&out.warnings)
		return data
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// parseInfo splits a VCF-style INFO column into a SmallMap, keeping
// values as raw strings. Flags without a value are stored as true.
func parseInfo(info string) (m utils.SmallMap) {
	var sc StringScanner
	sc.Reset(info)
	for sc.Len() > 0 {
		entry := sc.readUntilBytes([]byte{';'})
		sc.index++
		if entry == "" {
			continue
		}
		if eq := strings.IndexByte(entry, '='); eq >= 0 {
			m.Set(utils.Intern(entry[:eq]), entry[eq+1:])
		} else {
			m.Set(utils.Intern(entry), true)
		}
	}
	return m
}

func infoString(m utils.SmallMap, key utils.Symbol) (string, bool) {
	value, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

func infoInt(m utils.SmallMap, key utils.Symbol) (int32, bool) {
	s, ok := infoString(m, key)
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(i), true
}

// parseCIPair parses a "-50,30" confidence interval value.
func parseCIPair(s string) (lo, hi int32, err error) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return 0, 0, fmt.Errorf("invalid confidence interval %v", s)
	}
	l, err := strconv.ParseInt(s[:comma], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.ParseInt(s[comma+1:], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return int32(l), int32(h), nil
}

// parseCoordinates parses a CO sample entry of the form
// "chrA_posA-chrB_posB".
func parseCoordinates(co string) (chromA string, posA int32, chromB string, posB int32, err error) {
	dash := strings.IndexByte(co, '-')
	if dash < 0 {
		err = fmt.Errorf("invalid CO entry %v", co)
		return
	}
	parse := func(s string) (string, int32, error) {
		sep := strings.LastIndexByte(s, '_')
		if sep < 0 {
			return "", 0, fmt.Errorf("invalid CO entry %v", co)
		}
		pos, err := strconv.ParseInt(s[sep+1:], 10, 32)
		if err != nil {
			return "", 0, err
		}
		return s[:sep], int32(pos), nil
	}
	if chromA, posA, err = parse(co[:dash]); err != nil {
		return
	}
	chromB, posB, err = parse(co[dash+1:])
	return
}

// parseStrandPair interprets a STRAND entry like "+-" as the
// orientation flags of both breakpoints.
func parseStrandPair(s string) (revA, revB, ok bool) {
	if len(s) != 2 {
		return false, false, false
	}
	classify := func(c byte) (bool, bool) {
		switch c {
		case '+':
			return false, true
		case '-':
			return true, true
		}
		return false, false
	}
	revA, ok = classify(s[0])
	if !ok {
		return false, false, false
	}
	revB, ok = classify(s[1])
	return revA, revB, ok
}

// parseSVCFLine converts one SVCF record line into a canonical
// Record. It returns an error for malformed lines and for records
// that violate the model invariants; both are recoverable at file
// granularity.
func parseSVCFLine(line string, tool, sample utils.Symbol, ref *Reference) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 10 {
		return nil, fmt.Errorf("truncated record with %v columns", len(fields))
	}
	pos, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid position %v", fields[1])
	}
	rec := &Record{
		ID:     fields[2],
		Qual:   -1,
		Tool:   tool,
		Sample: sample,
	}
	if fields[5] != "." && fields[5] != "" {
		if qual, err := strconv.ParseFloat(fields[5], 64); err == nil {
			rec.Qual = qual
		}
	}
	rec.Evidence = parseInfo(fields[7])

	if svtype, ok := infoString(rec.Evidence, SVTYPE); ok {
		rec.Type = ParseType(svtype)
	}

	rec.A = Breakpoint{Chrom: utils.Intern(fields[0]), Pos: int32(pos)}
	rec.B = rec.A
	if end, ok := infoInt(rec.Evidence, END); ok {
		rec.B.Pos = end
	}
	if chr2, ok := infoString(rec.Evidence, CHR2); ok {
		rec.B.Chrom = utils.Intern(chr2)
	}

	// sample entries override the coarse INFO coordinates
	keys := strings.Split(fields[8], ":")
	values := strings.Split(fields[9], ":")
	for i, key := range keys {
		if i >= len(values) {
			break
		}
		switch key {
		case "SC":
			if values[i] != "" && values[i] != "." {
				rec.Tool = utils.Intern(values[i])
			}
		case "CO":
			chromA, posA, chromB, posB, err := parseCoordinates(values[i])
			if err != nil {
				return nil, err
			}
			rec.A.Chrom = utils.Intern(chromA)
			rec.A.Pos = posA
			rec.B.Chrom = utils.Intern(chromB)
			rec.B.Pos = posB
		}
	}

	if ci, ok := infoString(rec.Evidence, CIPOS); ok {
		if rec.A.CILo, rec.A.CIHi, err = parseCIPair(ci); err != nil {
			return nil, err
		}
	}
	if ci, ok := infoString(rec.Evidence, CIEND); ok {
		if rec.B.CILo, rec.B.CIHi, err = parseCIPair(ci); err != nil {
			return nil, err
		}
	}
	if strand, ok := infoString(rec.Evidence, STRAND); ok {
		if revA, revB, ok := parseStrandPair(strand); ok {
			rec.A.Reverse = revA
			rec.B.Reverse = revB
		}
	}
	if svlen, ok := infoInt(rec.Evidence, SVLEN); ok {
		if rec.Type == Insertion {
			rec.InsLen = svlen
			if rec.InsLen < 0 {
				rec.InsLen = -rec.InsLen
			}
		}
	}

	rec.Normalize()
	if err := rec.Validate(ref); err != nil {
		return nil, err
	}
	return rec, nil
}

// An SVCFWriter formats consensus records as an SVCF file. The
// writer performs buffered output; Flush must be called when done.
type SVCFWriter struct {
	w *bufio.Writer
}

// NewSVCFWriter writes an SVCF header for the given reference
// dictionary and sample name, and returns a writer for the records.
func NewSVCFWriter(w io.Writer, ref *Reference, sample string) *SVCFWriter {
	out := &SVCFWriter{w: bufio.NewWriter(w)}
	fmt.Fprintln(out.w, SVCFFormatVersionLine)
	fmt.Fprintf(out.w, "##source=%v %v\n", utils.ProgramName, utils.ProgramVersion)
	if ref != nil {
		for _, chrom := range ref.Contigs() {
			if length := ref.Length(chrom); length > 0 {
				fmt.Fprintf(out.w, "##contig=<ID=%v,length=%v>\n", *chrom, length)
			} else {
				fmt.Fprintf(out.w, "##contig=<ID=%v>\n", *chrom)
			}
		}
	}
	fmt.Fprintln(out.w, "##INFO=<ID=SVTYPE,Number=1,Type=String,Description=\"Type of structural variant\">")
	fmt.Fprintln(out.w, "##INFO=<ID=END,Number=1,Type=Integer,Description=\"End position of the variant\">")
	fmt.Fprintln(out.w, "##INFO=<ID=SVLEN,Number=1,Type=Integer,Description=\"Length of the variant\">")
	fmt.Fprintln(out.w, "##INFO=<ID=CHR2,Number=1,Type=String,Description=\"Chromosome of the second breakpoint\">")
	fmt.Fprintln(out.w, "##INFO=<ID=STRAND,Number=1,Type=String,Description=\"Breakpoint orientations\">")
	fmt.Fprintln(out.w, "##INFO=<ID=CIPOS,Number=2,Type=Integer,Description=\"Confidence interval around POS\">")
	fmt.Fprintln(out.w, "##INFO=<ID=CIEND,Number=2,Type=Integer,Description=\"Confidence interval around END\">")
	fmt.Fprintln(out.w, "##INFO=<ID=SUPPORT,Number=1,Type=Integer,Description=\"Number of merged calls supporting this record\">")
	fmt.Fprintln(out.w, "##INFO=<ID=TOOLS,Number=.,Type=String,Description=\"Contributing source tools\">")
	fmt.Fprintln(out.w, "##INFO=<ID=TYPE_VOTES,Number=.,Type=String,Description=\"Conflicting type hypotheses as type:count\">")
	fmt.Fprintln(out.w, "##INFO=<ID=SIZE_RANGE,Number=.,Type=Integer,Description=\"Conflicting size hypotheses\">")
	fmt.Fprintln(out.w, "##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">")
	fmt.Fprintln(out.w, "##FORMAT=<ID=SC,Number=1,Type=String,Description=\"Source tools\">")
	fmt.Fprintln(out.w, "##FORMAT=<ID=CO,Number=1,Type=String,Description=\"Breakpoint coordinates\">")
	if sample == "" {
		sample = "SAMPLE"
	}
	fmt.Fprintf(out.w, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\t%v\n", sample)
	return out
}

func strandString(a, b Breakpoint) string {
	strand := func(reverse bool) byte {
		if reverse {
			return '-'
		}
		return '+'
	}
	return string([]byte{strand(a.Reverse), strand(b.Reverse)})
}

// Write formats one consensus record as an SVCF line.
func (out *SVCFWriter) Write(rec *ConsensusRecord) {
	buf := make([]byte, 0, 256)
	buf = append(buf, *rec.A.Chrom...)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(rec.A.Pos), 10)
	buf = append(buf, '\t')
	buf = append(buf, rec.ID...)
	buf = append(buf, "\tN\t"...)
	if rec.Type == Breakend && !rec.Intra() {
		buf = append(buf, formatBreakendAlt(rec.A, rec.B)...)
	} else {
		buf = append(buf, rec.Type.alt()...)
	}
	buf = append(buf, '\t')
	if rec.Qual < 0 {
		buf = append(buf, '.')
	} else {
		buf = strconv.AppendFloat(buf, rec.Qual, 'g', -1, 64)
	}
	buf = append(buf, "\tPASS\t"...)
	buf = appendInfo(buf, rec)
	buf = append(buf, "\tGT:SC:CO\t./.:"...)
	for i, tool := range rec.Tools {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, *tool...)
	}
	buf = append(buf, ':')
	buf = appendCoordinates(buf, rec.A, rec.B)
	buf = append(buf, '\n')
	_, _ = out.w.Write(buf)
}

func appendInfo(buf []byte, rec *ConsensusRecord) []byte {
	buf = append(buf, "SVTYPE="...)
	buf = append(buf, rec.Type.String()...)
	buf = append(buf, ";END="...)
	buf = strconv.AppendInt(buf, int64(rec.B.Pos), 10)
	buf = append(buf, ";SVLEN="...)
	buf = strconv.AppendInt(buf, int64(rec.Size()), 10)
	if !rec.Intra() {
		buf = append(buf, ";CHR2="...)
		buf = append(buf, *rec.B.Chrom...)
	}
	buf = append(buf, ";STRAND="...)
	buf = append(buf, strandString(rec.A, rec.B)...)
	if rec.A.CILo != 0 || rec.A.CIHi != 0 {
		buf = append(buf, ";CIPOS="...)
		buf = strconv.AppendInt(buf, int64(rec.A.CILo), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(rec.A.CIHi), 10)
	}
	if rec.B.CILo != 0 || rec.B.CIHi != 0 {
		buf = append(buf, ";CIEND="...)
		buf = strconv.AppendInt(buf, int64(rec.B.CILo), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(rec.B.CIHi), 10)
	}
	buf = append(buf, ";SUPPORT="...)
	buf = strconv.AppendInt(buf, int64(rec.Support), 10)
	buf = append(buf, ";TOOLS="...)
	for i, tool := range rec.Tools {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, *tool...)
	}
	if len(rec.TypeVotes) > 0 {
		buf = append(buf, ";TYPE_VOTES="...)
		for i, vote := range rec.TypeVotes {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, vote.Type.String()...)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, int64(vote.Count), 10)
		}
	}
	if len(rec.SizeHypotheses) > 0 {
		buf = append(buf, ";SIZE_RANGE="...)
		for i, size := range rec.SizeHypotheses {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = strconv.AppendInt(buf, int64(size), 10)
		}
	}
	return buf
}

func appendCoordinates(buf []byte, a, b Breakpoint) []byte {
	buf = append(buf, *a.Chrom...)
	buf = append(buf, '_')
	buf = strconv.AppendInt(buf, int64(a.Pos), 10)
	buf = append(buf, '-')
	buf = append(buf, *b.Chrom...)
	buf = append(buf, '_')
	buf = strconv.AppendInt(buf, int64(b.Pos), 10)
	return buf
}

// formatBreakendAlt renders the VCF breakend bracket notation for an
// inter-chromosomal junction, from the perspective of breakpoint a.
func formatBreakendAlt(a, b Breakpoint) string {
	mate := fmt.Sprintf("%v:%v", *b.Chrom, b.Pos)
	switch {
	case !a.Reverse && !b.Reverse:
		return fmt.Sprintf("N[%v[", mate)
	case !a.Reverse && b.Reverse:
		return fmt.Sprintf("N]%v]", mate)
	case a.Reverse && !b.Reverse:
		return fmt.Sprintf("[%v[N", mate)
	default:
		return fmt.Sprintf("]%v]N", mate)
	}
}

// Flush flushes buffered output.
func (out *SVCFWriter) Flush() error {
	return out.w.Flush()
}
