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

import "fmt"

// An InvalidRecord error rejects a single record whose data
// invariants are violated. It is fatal to that record only; parsers
// count it as a warning and continue with the rest of the file.
type InvalidRecord struct {
	ID     string
	Reason string
}

func (e *InvalidRecord) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid record: %v", e.Reason)
	}
	return fmt.Sprintf("invalid record %v: %v", e.ID, e.Reason)
}

func invalidf(id, format string, args ...interface{}) *InvalidRecord {
	return &InvalidRecord{ID: id, Reason: fmt.Sprintf(format, args...)}
}

// An UnsupportedFormat error rejects an input file whose header or
// schema cannot be read. It is fatal to that file; other input files
// of the same run are still processed.
type UnsupportedFormat struct {
	Filename string
	Reason   string
}

func (e *UnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported format in %v: %v", e.Filename, e.Reason)
}

// A ParseWarning describes one skipped line of an input file.
type ParseWarning struct {
	Line    int
	Message string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("line %v: %v", w.Line, w.Message)
}

// maximum number of warning messages kept per file; the count keeps
// growing beyond this.
const maxKeptWarnings = 20

// Warnings accumulates the recoverable per-line problems of one input
// file. Malformed or invalid records are skipped and counted here,
// and processing continues.
type Warnings struct {
	Filename string
	Count    int
	Kept     []ParseWarning
}

// Addf records a warning for the given input line.
func (w *Warnings) Addf(line int, format string, args ...interface{}) {
	w.Count++
	if len(w.Kept) < maxKeptWarnings {
		w.Kept = append(w.Kept, ParseWarning{Line: line, Message: fmt.Sprintf(format, args...)})
	}
}

// Merge folds the warnings of o into w. Used when a file is parsed in
// parallel batches.
func (w *Warnings) Merge(o *Warnings) {
	w.Count += o.Count
	for _, kept := range o.Kept {
		if len(w.Kept) >= maxKeptWarnings {
			break
		}
		w.Kept = append(w.Kept, kept)
	}
}
