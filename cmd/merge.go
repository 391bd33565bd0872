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
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/exascience/elmerge/internal"
	"github.com/exascience/elmerge/merger"
	"github.com/exascience/elmerge/sv"
	"github.com/exascience/elmerge/utils"
)

// MergeHelp is the help string for this command.
const MergeHelp = "\nmerge parameters:\n" +
	"elmerge merge sv-file [sv-file...] sv-output-file\n" +
	"[--config file]\n" +
	"[--tolerance n]\n" +
	"[--cross-sample-mode merge|partition]\n" +
	"[--input-format svcf|vcf|bedpe]\n" +
	"[--output-format svcf|bedpe]\n" +
	"[--tools name[,name...]]\n" +
	"[--sample-name name]\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

// Merge implements the elmerge merge command.
func Merge() error {
	var (
		config, crossSampleMode   string
		inputFormat, outputFormat string
		tools, sampleName         string
		profile, logPath          string
		tolerance, nrOfThreads    int
		timed                     bool
	)

	var flags flag.FlagSet

	flags.StringVar(&config, "config", "", "load the clustering policy from the specified TOML file")
	flags.IntVar(&tolerance, "tolerance", -1, "breakpoint tolerance window in base pairs")
	flags.StringVar(&crossSampleMode, "cross-sample-mode", "", "whether calls from different samples may merge")
	flags.StringVar(&inputFormat, "input-format", "", "format of the input files, default determined by file extensions")
	flags.StringVar(&outputFormat, "output-format", "", "format of the output file, default determined by file extension")
	flags.StringVar(&tools, "tools", "", "comma-separated source tool names, one per input file, default derived from filenames")
	flags.StringVar(&sampleName, "sample-name", "", "sample name for the output header")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	// All leading non-flag parameters are filenames: at least one
	// input and the output.
	nextFlag := 2
	for nextFlag < len(os.Args) && !strings.HasPrefix(os.Args[nextFlag], "-") {
		nextFlag++
	}
	if nextFlag < 4 {
		if nextFlag < len(os.Args) {
			getFilename(os.Args[nextFlag], MergeHelp)
		}
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, MergeHelp)
		os.Exit(1)
	}
	inputFiles := os.Args[2 : nextFlag-1]
	output := os.Args[nextFlag-1]

	parseFlags(flags, nextFlag, MergeHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	for _, input := range inputFiles {
		if !checkExist("", input) {
			sanityChecksFailed = true
		}
	}
	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if config != "" && !checkExist("--config", config) {
		sanityChecksFailed = true
	}
	if !checkFormat("--input-format", inputFormat) {
		sanityChecksFailed = true
	}
	if outputFormat != "" {
		switch format := sv.ParseFormat(outputFormat); format {
		case sv.SVCF, sv.BEDPE:
		default:
			log.Printf("Error: Invalid output format %v.\n", outputFormat)
			sanityChecksFailed = true
		}
	}
	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}
	if nrOfThreads < 0 {
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
		sanityChecksFailed = true
	}

	var toolNames []string
	if tools != "" {
		toolNames = strings.Split(tools, ",")
		if len(toolNames) != len(inputFiles) {
			log.Printf("Error: %v tool name(s) given for %v input file(s).\n", len(toolNames), len(inputFiles))
			sanityChecksFailed = true
		}
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, MergeHelp)
		os.Exit(1)
	}

	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	}

	policy := merger.DefaultPolicy()
	if config != "" {
		p, err := merger.LoadPolicy(config)
		if err != nil {
			return err
		}
		policy = p
	}
	if tolerance >= 0 {
		policy.Tolerance = int32(tolerance)
	}
	if crossSampleMode != "" {
		mode, err := merger.ParseCrossSampleMode(crossSampleMode)
		if err != nil {
			return err
		}
		policy.CrossSample = mode
	}

	inputs := make([]sv.Input, len(inputFiles))
	for i, filename := range inputFiles {
		inputs[i] = sv.Input{Filename: filename, Format: sv.ParseFormat(inputFormat)}
		if toolNames != nil {
			inputs[i].Tool = strings.TrimSpace(toolNames[i])
		}
	}

	if err := policy.Validate(); err != nil {
		return err
	}

	var set *merger.ConsensusSet

	timedRun(timed, profile, "Merging call sets.", 1, func() {
		s, err := merger.Merge(inputs, policy)
		if err != nil {
			log.Panic(err)
		}
		set = s
	})
	timedRun(timed, profile, "Writing consensus calls.", 2, func() {
		writeConsensus(output, outputFormat, sampleName, set)
	})

	for _, fs := range set.Summary.Files {
		if fs.Err != nil {
			log.Printf("Input file %v was skipped: %v.\n", fs.Filename, fs.Err)
		} else if fs.Warnings > 0 {
			log.Printf("Input file %v: %v record(s), %v warning(s).\n", fs.Filename, fs.Records, fs.Warnings)
		}
	}
	log.Printf("Wrote %v consensus call(s) to %v.\n", set.Summary.Consensus, output)

	return nil
}

// writeConsensus writes the consensus calls in the requested output
// format, defaulting to the format suggested by the output filename,
// and to SVCF when the extension is not telling.
func writeConsensus(output, outputFormat, sampleName string, set *merger.ConsensusSet) {
	format := sv.ParseFormat(outputFormat)
	if format == sv.UnknownFormat {
		format = sv.DetectFormat(output)
	}
	file := internal.FileCreate(output)
	defer internal.Close(file)
	buf := bufio.NewWriter(file)
	switch format {
	case sv.BEDPE:
		out := sv.NewBEDPEWriter(buf)
		for _, rec := range set.Records {
			out.Write(&rec.Record)
		}
		if err := out.Flush(); err != nil {
			log.Panic(err)
		}
	default:
		if sampleName == "" {
			sampleName = consensusSampleName(set)
		}
		out := sv.NewSVCFWriter(buf, sv.NewReference(), sampleName)
		for _, rec := range set.Records {
			out.Write(rec)
		}
		if err := out.Flush(); err != nil {
			log.Panic(err)
		}
	}
}

func consensusSampleName(set *merger.ConsensusSet) string {
	for _, rec := range set.Records {
		if rec.Sample != nil {
			return utils.SymbolName(rec.Sample)
		}
	}
	return "SAMPLE"
}
