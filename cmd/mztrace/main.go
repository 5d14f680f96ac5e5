/*
NAME
  main.go

DESCRIPTION
  mztrace batch-detects mass traces across a directory of mzML runs,
  writing one CSV of trace summaries per input file. In -watch mode it
  runs as a daemon, picking up newly-dropped mzML files and reporting
  liveness to systemd.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mztrace is a CLI that runs mass-trace detection over a
// directory of mzML files, in either one-shot batch mode or a watched
// daemon mode.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/massflow/mzflow/container/mzml"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
	"github.com/massflow/mzflow/trace"
)

const pkg = "mztrace: "

const (
	logPath      = "mztrace.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

func main() {
	inDir := flag.String("in", "", "directory of mzML files to process")
	outDir := flag.String("out", "", "directory to write per-file trace CSVs")
	watch := flag.Bool("watch", false, "run as a daemon, watching -in for new mzML files")
	workers := flag.Int("workers", 4, "parallel worker count")
	mzTolPPM := flag.Float64("mz_tolerance_ppm", 10, "m/z tolerance in ppm for trace extension")
	minTraceLen := flag.Float64("min_trace_length", 5, "minimum trace rt span in seconds")
	minPeaks := flag.Int("min_peaks", 5, "minimum peaks per trace")
	intensityFloor := flag.Float64("intensity_floor", 1000, "minimum apex intensity to seed a trace")
	maxGapScans := flag.Int("max_gap_scans", 1, "maximum consecutive missed scans before a trace stops growing")
	quant := flag.String("quant", "area", "quantification method: area or median")
	flag.Parse()

	fileLog := &lumberjack.Logger{Filename: logPath, MaxSize: logMaxSize, MaxBackups: logMaxBackup, MaxAge: logMaxAge}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	if *inDir == "" || *outDir == "" {
		log.Error(pkg + "both -in and -out are required")
		os.Exit(mzerr.ExitCode(mzerr.New(mzerr.Configuration, "missing -in/-out")))
	}

	q, err := parseQuant(*quant)
	if err != nil {
		log.Error(pkg+"bad -quant value", "error", err.Error())
		os.Exit(mzerr.ExitCode(err))
	}
	params := trace.Params{
		MZTolerancePPM: *mzTolPPM, MinTraceLength: *minTraceLen, MinPeaks: *minPeaks,
		IntensityFloor: *intensityFloor, MaxGapScans: *maxGapScans, Quant: q,
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Error(pkg+"could not create output directory", "error", err.Error())
		os.Exit(mzerr.ExitCode(mzerr.Wrap(mzerr.IO, "creating output directory", err)))
	}

	if *watch {
		runDaemon(log, *inDir, *outDir, params, *workers)
		return
	}

	if err := runBatch(log, *inDir, *outDir, params, *workers); err != nil {
		log.Error(pkg+"batch run failed", "error", err.Error())
		os.Exit(mzerr.ExitCode(err))
	}
	log.Info(pkg + "batch run complete")
}

func parseQuant(s string) (ms.QuantMethod, error) {
	switch strings.ToLower(s) {
	case "area", "":
		return ms.QuantArea, nil
	case "median":
		return ms.QuantMedian, nil
	default:
		return 0, mzerr.New(mzerr.Configuration, fmt.Sprintf("unknown -quant value: %s", s))
	}
}

func runBatch(log logging.Logger, inDir, outDir string, params trace.Params, workers int) error {
	paths, err := mzMLFiles(inDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Info(pkg + "no mzML files found")
		return nil
	}

	perFile := make([][]ms.Spectrum, len(paths))
	for i, p := range paths {
		spectra, err := readSpectra(p, log)
		if err != nil {
			return err
		}
		perFile[i] = spectra
	}

	results := trace.DetectParallel(perFile, params, workers)
	for i, traces := range results {
		if err := writeCSV(outDir, paths[i], traces); err != nil {
			return err
		}
		log.Info(pkg+"processed file", "file", paths[i], "traces", len(traces))
	}
	return nil
}

// runDaemon watches inDir for newly-created mzML files, processing each
// as it arrives, and notifies systemd's watchdog on the interval it
// requests (a no-op under a non-systemd supervisor).
func runDaemon(log logging.Logger, inDir, outDir string, params trace.Params, workers int) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(pkg+"could not create watcher", "error", err.Error())
	}
	defer watcher.Close()

	if err := watcher.Add(inDir); err != nil {
		log.Fatal(pkg+"could not watch input directory", "error", err.Error())
	}

	daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info(pkg+"watching for new mzML files", "dir", inDir)

	var watchdogTicker *time.Ticker
	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		watchdogTicker = time.NewTicker(interval / 2)
		defer watchdogTicker.Stop()
	}
	var watchdogC <-chan time.Time
	if watchdogTicker != nil {
		watchdogC = watchdogTicker.C
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !strings.EqualFold(filepath.Ext(ev.Name), ".mzml") {
				continue
			}
			spectra, err := readSpectra(ev.Name, log)
			if err != nil {
				log.Error(pkg+"could not process file", "file", ev.Name, "error", err.Error())
				continue
			}
			traces := trace.Detect(spectra, params)
			if err := writeCSV(outDir, ev.Name, traces); err != nil {
				log.Error(pkg+"could not write output", "file", ev.Name, "error", err.Error())
				continue
			}
			log.Info(pkg+"processed file", "file", ev.Name, "traces", len(traces))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error(pkg+"watcher error", "error", err.Error())
		case <-watchdogC:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}

func mzMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mzerr.Wrap(mzerr.IO, "reading input directory", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mzml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}

func readSpectra(path string, log logging.Logger) ([]ms.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mzerr.Wrap(mzerr.IO, "opening "+path, err)
	}
	defer f.Close()

	r := mzml.NewReader(f, log)
	var spectra []ms.Spectrum
	err = r.Spectra(func(s ms.Spectrum) error {
		spectra = append(spectra, s)
		return nil
	})
	if err != nil {
		return nil, mzerr.Wrap(mzerr.IO, "reading "+path, err)
	}
	return spectra, nil
}

func writeCSV(outDir, inPath string, traces []ms.MassTrace) error {
	name := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath)) + ".traces.csv"
	f, err := os.Create(filepath.Join(outDir, name))
	if err != nil {
		return mzerr.Wrap(mzerr.IO, "creating trace csv", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"centroid_mz", "centroid_rt", "fwhm", "quantity", "mz_stddev", "npeaks"}); err != nil {
		return mzerr.Wrap(mzerr.IO, "writing csv header", err)
	}
	for _, tr := range traces {
		row := []string{
			strconv.FormatFloat(tr.CentroidMZ, 'f', 6, 64),
			strconv.FormatFloat(tr.CentroidRT, 'f', 4, 64),
			strconv.FormatFloat(tr.FWHM, 'f', 4, 64),
			strconv.FormatFloat(tr.Quantity, 'f', 2, 64),
			strconv.FormatFloat(tr.MZStdDev, 'f', 8, 64),
			strconv.Itoa(len(tr.Peaks)),
		}
		if err := w.Write(row); err != nil {
			return mzerr.Wrap(mzerr.IO, "writing csv row", err)
		}
	}
	return nil
}
