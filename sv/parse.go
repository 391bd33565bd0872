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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/exascience/pargo/parallel"
)

// Format identifies a supported input call file format.
type Format int

// The supported input formats.
const (
	UnknownFormat Format = iota
	SVCF
	VCF
	BEDPE
)

// ParseFormat maps an explicit format tag onto a Format.
func ParseFormat(tag string) Format {
	switch strings.ToLower(tag) {
	case "svcf":
		return SVCF
	case "vcf":
		return VCF
	case "bedpe":
		return BEDPE
	default:
		return UnknownFormat
	}
}

// DetectFormat identifies the format of a call file by its extension,
// looking through a trailing .gz.
func DetectFormat(filename string) Format {
	name := strings.ToLower(filename)
	name = strings.TrimSuffix(name, ".gz")
	switch filepath.Ext(name) {
	case ".svcf":
		return SVCF
	case ".vcf":
		return VCF
	case ".bedpe":
		return BEDPE
	default:
		return UnknownFormat
	}
}

// A RecordReader is a lazy, finite, single-pass sequence of records
// parsed from one input file. It is not restartable; reopen the
// source to reparse.
type RecordReader interface {
	// Read returns the next record, or io.EOF when the sequence is
	// exhausted. Malformed records are skipped, not returned.
	Read() (*Record, error)
	// ReadAll drains the remaining sequence.
	ReadAll() ([]*Record, error)
	// Warnings reports the skipped records seen so far.
	Warnings() *Warnings
	Close() error
}

// Open opens a call file for the given source tool in the given
// format, with UnknownFormat meaning detection by file extension.
func Open(filename, tool string, format Format) (RecordReader, error) {
	if format == UnknownFormat {
		format = DetectFormat(filename)
	}
	switch format {
	case SVCF:
		return OpenSVCF(filename, tool)
	case VCF:
		return OpenVCF(filename, tool)
	case BEDPE:
		return OpenBEDPE(filename, tool)
	default:
		return nil, &UnsupportedFormat{
			Filename: filename,
			Reason:   fmt.Sprintf("cannot identify the format of %v; use an explicit format tag", filepath.Base(filename)),
		}
	}
}

// An Input names one call file to ingest: its path, the source tool
// identifier its records are attributed to, and an optional explicit
// format tag.
type Input struct {
	Filename string
	Tool     string
	Format   Format
}

// ToolName derives the source tool identifier from the filename when
// none was given explicitly.
func (in Input) ToolName() string {
	if in.Tool != "" {
		return in.Tool
	}
	name := filepath.Base(in.Filename)
	name = strings.TrimSuffix(name, ".gz")
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// A FileResult is the outcome of ingesting one input file: its
// records and warnings, or the error that rejected the whole file.
type FileResult struct {
	Input    Input
	Records  []*Record
	Warnings *Warnings
	Err      error
}

// ParseFiles ingests the given call files with parallel worker tasks,
// one independent record sequence per file, merged afterward by the
// caller. A file-level failure (unreadable file, unsupported format)
// is recorded in its FileResult; the other files are still processed.
func ParseFiles(inputs []Input) []FileResult {
	results := make([]FileResult, len(inputs))
	parallel.Range(0, len(inputs), 1, func(low, high int) {
		for i := low; i < high; i++ {
			results[i] = parseFile(inputs[i])
		}
	})
	return results
}

func parseFile(input Input) FileResult {
	result := FileResult{Input: input}
	reader, err := Open(input.Filename, input.ToolName(), input.Format)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() {
		if nerr := reader.Close(); result.Err == nil {
			result.Err = nerr
		}
	}()
	result.Records, result.Err = reader.ReadAll()
	result.Warnings = reader.Warnings()
	return result
}
