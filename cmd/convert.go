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

package cmd

import (
	"bufio"
	"flag"
	"log"
	"os"

	"github.com/exascience/elmerge/internal"
	"github.com/exascience/elmerge/sv"
)

// SvcfToBedpeHelp is the help string for this command.
const SvcfToBedpeHelp = "svcf-to-bedpe parameters:\n" +
	"elmerge svcf-to-bedpe svcf-file bedpe-file\n" +
	"[--log-path path]\n"

// SvcfToBedHelp is the help string for this command.
const SvcfToBedHelp = "svcf-to-bed parameters:\n" +
	"elmerge svcf-to-bed svcf-file bed-file\n" +
	"[--minimal]\n" +
	"[--log-path path]\n"

// SvcfToBed implements the elmerge svcf-to-bed command.
func SvcfToBed() error {
	var (
		minimal bool
		logPath string
	)

	var flags flag.FlagSet
	flags.BoolVar(&minimal, "minimal", false, "write only the chrom, start, and end columns")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 4, SvcfToBedHelp)

	input := getFilename(os.Args[2], SvcfToBedHelp)
	output := getFilename(os.Args[3], SvcfToBedHelp)

	setLogOutput(logPath)

	rdr, err := sv.OpenSVCF(input, "")
	if err != nil {
		return err
	}
	defer func() { _ = rdr.Close() }()
	records, err := rdr.ReadAll()
	if err != nil {
		return err
	}

	file := internal.FileCreate(output)
	defer internal.Close(file)
	buf := bufio.NewWriter(file)
	out := sv.NewBEDWriter(buf, minimal)
	for _, rec := range records {
		out.Write(rec)
	}
	if err := out.Flush(); err != nil {
		return err
	}

	if warnings := rdr.Warnings(); warnings != nil && warnings.Count > 0 {
		log.Printf("Skipped %v malformed record(s) in %v.\n", warnings.Count, input)
	}
	log.Printf("Converted %v record(s) to %v.\n", len(records), output)

	return nil
}

// SvcfToBedpe implements the elmerge svcf-to-bedpe command.
func SvcfToBedpe() error {
	var logPath string

	var flags flag.FlagSet
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 4, SvcfToBedpeHelp)

	input := getFilename(os.Args[2], SvcfToBedpeHelp)
	output := getFilename(os.Args[3], SvcfToBedpeHelp)

	setLogOutput(logPath)

	rdr, err := sv.OpenSVCF(input, "")
	if err != nil {
		return err
	}
	defer func() { _ = rdr.Close() }()
	records, err := rdr.ReadAll()
	if err != nil {
		return err
	}

	file := internal.FileCreate(output)
	defer internal.Close(file)
	buf := bufio.NewWriter(file)
	out := sv.NewBEDPEWriter(buf)
	for _, rec := range records {
		out.Write(rec)
	}
	if err := out.Flush(); err != nil {
		return err
	}

	if warnings := rdr.Warnings(); warnings != nil && warnings.Count > 0 {
		log.Printf("Skipped %v malformed record(s) in %v.\n", warnings.Count, input)
	}
	log.Printf("Converted %v record(s) to %v.\n", len(records), output)

	return nil
}
