/*
NAME
  main.go

DESCRIPTION
  mzcorrect rewrites MS2 precursor m/z values in an mzML run, using
  whichever correction modes are requested: nearest MS1 peak, highest-
  intensity MS1 peak in a window, or nearest feature in a feature map.
  At least one mode is required.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mzcorrect is a CLI that corrects MS2 precursor m/z values
// recorded against the wrong centroid.
package main

import (
	"encoding/csv"
	"flag"
	"io"
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/utils/logging"

	"github.com/massflow/mzflow/config"
	"github.com/massflow/mzflow/container/mzml"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
	"github.com/massflow/mzflow/precursor"
)

const pkg = "mzcorrect: "

const (
	logPath      = "mzcorrect.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = false
)

func main() {
	in := flag.String("in", "", "input mzML file")
	out := flag.String("out", "", "output mzML file")
	outCSV := flag.String("out_csv", "", "optional CSV of corrections applied")

	nearestPeakTol := flag.Float64("nearest_peak:mz_tolerance", 0, "nearest-peak mode tolerance; <= 0 disables this mode")
	nearestPeakUnit := flag.String("nearest_peak:mz_tolerance_unit", "ppm", "ppm or Da")

	highestIntensityTol := flag.Float64("highest_intensity_peak:mz_tolerance", 0, "highest-intensity-peak mode tolerance; <= 0 disables this mode")
	highestIntensityUnit := flag.String("highest_intensity_peak:mz_tolerance_unit", "ppm", "ppm or Da")

	featureIn := flag.String("feature:in", "", "featureXML-equivalent path; enables feature-based correction")
	featureTol := flag.Float64("feature:mz_tolerance", 5.0, "feature-mode m/z tolerance")
	featureUnit := flag.String("feature:mz_tolerance_unit", "ppm", "ppm or Da")
	featureRTTol := flag.Float64("feature:rt_tolerance", 0.0, "feature-mode rt tolerance in seconds")
	featureMaxTrace := flag.Int("feature:max_trace", 2, "highest isotope trace index considered")
	believeCharge := flag.Bool("feature:believe_charge", false, "require matching charge between precursor and feature")
	keepOriginal := flag.Bool("feature:keep_original", false, "keep the uncorrected spectrum alongside corrected copies")
	assignAllMatching := flag.Bool("feature:assign_all_matching", false, "emit one corrected copy per matching feature")
	flag.Parse()

	fileLog := &lumberjack.Logger{Filename: logPath, MaxSize: logMaxSize, MaxBackups: logMaxBackup, MaxAge: logMaxAge}
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)

	if *in == "" || *out == "" {
		log.Error(pkg + "both -in and -out are required")
		os.Exit(mzerr.ExitCode(mzerr.New(mzerr.Configuration, "missing -in/-out")))
	}

	nearestPeakEnabled := *nearestPeakTol > 0
	highestIntensityEnabled := *highestIntensityTol > 0
	featureEnabled := *featureIn != ""
	if !nearestPeakEnabled && !highestIntensityEnabled && !featureEnabled {
		log.Error(pkg + "no correction method requested")
		os.Exit(mzerr.ExitCode(mzerr.New(mzerr.Configuration, "at least one of -nearest_peak:mz_tolerance, -highest_intensity_peak:mz_tolerance, -feature:in must be set")))
	}

	err := run(log, runParams{
		in:     *in,
		out:    *out,
		outCSV: *outCSV,

		nearestPeakEnabled: nearestPeakEnabled,
		nearestPeakTol:     *nearestPeakTol,
		nearestPeakUnit:    parseUnit(*nearestPeakUnit),

		highestIntensityEnabled: highestIntensityEnabled,
		highestIntensityTol:     *highestIntensityTol,
		highestIntensityUnit:    parseUnit(*highestIntensityUnit),

		featureEnabled: featureEnabled,
		featureIn:      *featureIn,
		featureParams: precursor.FeatureParams{
			MZTolerance:       *featureTol,
			MZUnit:            parseUnit(*featureUnit),
			RTTolerance:       *featureRTTol,
			MaxTrace:          *featureMaxTrace,
			BelieveCharge:     *believeCharge,
			KeepOriginal:      *keepOriginal,
			AssignAllMatching: *assignAllMatching,
		},
	})
	if err != nil {
		log.Error(pkg+"correction failed", "error", err.Error())
		os.Exit(mzerr.ExitCode(err))
	}
	log.Info(pkg + "correction complete")
}

func parseUnit(s string) precursor.MZUnit {
	if s == "Da" || s == "da" {
		return precursor.UnitDa
	}
	return precursor.UnitPPM
}

type runParams struct {
	in, out, outCSV string

	nearestPeakEnabled bool
	nearestPeakTol     float64
	nearestPeakUnit    precursor.MZUnit

	highestIntensityEnabled bool
	highestIntensityTol     float64
	highestIntensityUnit    precursor.MZUnit

	featureEnabled bool
	featureIn      string
	featureParams  precursor.FeatureParams
}

func run(log logging.Logger, p runParams) error {
	spectra, err := readSpectra(p.in, log)
	if err != nil {
		return err
	}

	var corrections []precursor.Correction
	if p.nearestPeakEnabled {
		corrections = append(corrections, precursor.CorrectToNearestMS1Peak(spectra, p.nearestPeakTol, p.nearestPeakUnit)...)
	}
	if p.highestIntensityEnabled {
		corrections = append(corrections, precursor.CorrectToHighestIntensityMS1Peak(spectra, p.highestIntensityTol, p.highestIntensityUnit)...)
	}
	if p.featureEnabled {
		fm, err := readFeatureMap(p.featureIn, log)
		if err != nil {
			return err
		}
		var featureCorrections []precursor.Correction
		spectra, featureCorrections, err = precursor.CorrectToNearestFeature(spectra, fm, p.featureParams)
		if err != nil {
			return err
		}
		corrections = append(corrections, featureCorrections...)
	}

	if p.outCSV != "" {
		if err := writeCorrectionsCSV(p.outCSV, corrections); err != nil {
			return err
		}
	}

	return writeSpectra(p.out, log, spectra)
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

// readFeatureMap is a placeholder: this repository doesn't implement a
// featureXML-equivalent reader, so feature-based correction currently
// requires callers embedding this package to supply their own
// ms.FeatureMap rather than a file path. The CLI mode is wired for
// parameter-surface completeness and a future reader.
func readFeatureMap(path string, log logging.Logger) (ms.FeatureMap, error) {
	return ms.FeatureMap{}, mzerr.New(mzerr.Configuration, "feature-based correction requires a feature map reader not yet implemented for -feature:in="+path)
}

func writeSpectra(path string, log logging.Logger, spectra []ms.Spectrum) error {
	f, err := os.Create(path)
	if err != nil {
		return mzerr.Wrap(mzerr.IO, "creating output", err)
	}
	defer f.Close()

	opts, err := config.NewPeakFileOptions(log)
	if err != nil {
		return err
	}
	w, err := mzml.NewWriter(f, log, opts)
	if err != nil {
		return err
	}
	if err := w.SetExperimentalSettings(ms.Settings{SourceFile: path}); err != nil {
		return err
	}
	for _, s := range spectra {
		if err := w.ConsumeSpectrum(s); err != nil {
			return err
		}
	}
	return w.Close()
}

func writeCorrectionsCSV(path string, corrections []precursor.Correction) error {
	f, err := os.Create(path)
	if err != nil {
		return mzerr.Wrap(mzerr.IO, "creating corrections csv", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"spectrum_index", "rt", "delta_mz", "new_mz"}); err != nil {
		return mzerr.Wrap(mzerr.IO, "writing csv header", err)
	}
	for _, c := range corrections {
		row := []string{
			strconv.Itoa(c.SpectrumIndex),
			strconv.FormatFloat(c.RT, 'f', 4, 64),
			strconv.FormatFloat(c.DeltaMZ, 'f', 6, 64),
			strconv.FormatFloat(c.NewMZ, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return mzerr.Wrap(mzerr.IO, "writing csv row", err)
		}
	}
	return nil
}
