/*
NAME
  main.go

DESCRIPTION
  mzconvert converts between mzML and sqMass, streaming spectra and
  chromatograms through the shared ms data model without buffering a
  whole run in memory.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mzconvert is a CLI that streams a run from mzML to sqMass or
// vice versa, driven by file extension.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/massflow/mzflow/config"
	"github.com/massflow/mzflow/container/mzml"
	"github.com/massflow/mzflow/container/sqmass"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
)

const pkg = "mzconvert: "

// Logging configuration, mirroring cmd/rv's.
const (
	logPath      = "mzconvert.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

func main() {
	in := flag.String("in", "", "input file (.mzML or .sqMass)")
	out := flag.String("out", "", "output file (.mzML or .sqMass)")
	msLevels := flag.String("ms_levels", "", "comma-separated ms level whitelist, e.g. 1,2")
	numpress := flag.String("numpress", "none", "numpress kind for both the m/z and intensity axes: none, linear, pic, slof")
	zlib := flag.Bool("zlib", true, "zlib-compress binary arrays")
	indexed := flag.Bool("indexed", true, "write trailing index/checksum (mzML output only)")
	flag.Parse()

	fileLog := &lumberjack.Logger{Filename: logPath, MaxSize: logMaxSize, MaxBackups: logMaxBackup, MaxAge: logMaxAge}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	if *in == "" || *out == "" {
		log.Error(pkg + "both -in and -out are required")
		os.Exit(mzerr.ExitCode(mzerr.New(mzerr.Configuration, "missing -in/-out")))
	}

	err := run(log, *in, *out, *msLevels, *numpress, *zlib, *indexed)
	if err != nil {
		log.Error(pkg+"conversion failed", "error", err.Error())
		os.Exit(mzerr.ExitCode(err))
	}
	log.Info(pkg + "conversion complete")
}

func run(log logging.Logger, inPath, outPath, msLevels, numpress string, zlib, indexed bool) error {
	levels, err := parseLevels(msLevels)
	if err != nil {
		return err
	}
	numpressKind, err := parseNumpress(numpress)
	if err != nil {
		return err
	}

	opts, err := config.NewPeakFileOptions(log,
		config.WithMSLevels(levels...),
		config.WithMZCodec(config.AxisCodec{Precision64: true, NumpressKind: numpressKind, ZlibCompression: zlib}),
		config.WithIntensityCodec(config.AxisCodec{Precision64: false, NumpressKind: numpressKind, ZlibCompression: zlib}),
		config.WithIndexing(indexed),
	)
	if err != nil {
		return err
	}

	reader, closeIn, err := openReader(inPath, log)
	if err != nil {
		return err
	}
	defer closeIn()

	writer, closeOut, err := openWriter(outPath, log, opts)
	if err != nil {
		return err
	}
	defer closeOut()

	return reader.Walk(writer.ConsumeSpectrum, writer.ConsumeChromatogram)
}

// streamReader abstracts over mzml.Reader and sqmass.Reader's differing
// call shapes into a single Walk entrypoint.
type streamReader interface {
	Walk(onSpectrum func(ms.Spectrum) error, onChromatogram func(ms.Chromatogram) error) error
}

type sqmassReaderAdapter struct{ r *sqmass.Reader }

func (a sqmassReaderAdapter) Walk(onSpectrum func(ms.Spectrum) error, onChromatogram func(ms.Chromatogram) error) error {
	if err := a.r.Spectra(onSpectrum); err != nil {
		return err
	}
	return a.r.Chromatograms(onChromatogram)
}

type streamWriter interface {
	ConsumeSpectrum(ms.Spectrum) error
	ConsumeChromatogram(ms.Chromatogram) error
	Close() error
}

func openReader(path string, log logging.Logger) (streamReader, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mzml":
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, mzerr.Wrap(mzerr.IO, "opening input", err)
		}
		return mzml.NewReader(f, log), func() { f.Close() }, nil
	case ".sqmass", ".db", ".sqlite":
		r, err := sqmass.NewReader(path, log)
		if err != nil {
			return nil, nil, err
		}
		return sqmassReaderAdapter{r}, func() { r.Close() }, nil
	default:
		return nil, nil, mzerr.New(mzerr.Configuration, fmt.Sprintf("unrecognized input extension: %s", path))
	}
}

func openWriter(path string, log logging.Logger, opts config.PeakFileOptions) (streamWriter, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mzml":
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, mzerr.Wrap(mzerr.IO, "creating output", err)
		}
		w, err := mzml.NewWriter(f, log, opts)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		if err := w.SetExperimentalSettings(ms.Settings{SourceFile: path}); err != nil {
			f.Close()
			return nil, nil, err
		}
		return w, func() { w.Close() }, nil
	case ".sqmass", ".db", ".sqlite":
		os.Remove(path)
		w, err := sqmass.NewWriter(path, log, opts, ms.Settings{SourceFile: path})
		if err != nil {
			return nil, nil, err
		}
		return w, func() { w.Close() }, nil
	default:
		return nil, nil, mzerr.New(mzerr.Configuration, fmt.Sprintf("unrecognized output extension: %s", path))
	}
}

func parseLevels(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	var levels []int
	for _, part := range strings.Split(s, ",") {
		var l int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &l); err != nil {
			return nil, mzerr.Wrap(mzerr.Configuration, "parsing -ms_levels", err)
		}
		levels = append(levels, l)
	}
	return levels, nil
}

func parseNumpress(s string) (int, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return config.NumpressNone, nil
	case "linear":
		return config.NumpressLinear, nil
	case "pic":
		return config.NumpressPic, nil
	case "slof":
		return config.NumpressSlof, nil
	default:
		return 0, mzerr.New(mzerr.Configuration, fmt.Sprintf("unknown -numpress value: %s", s))
	}
}
