/*
NAME
  types.go

DESCRIPTION
  types.go defines the data model shared by every stage of the pipeline:
  spectra and chromatograms flowing out of the streaming consumer chain
  (container/mzml, container/sqmass), mass traces built by trace,
  features and consensus features consumed by align/pose,
  align/pairfinder and precursor.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ms holds the mass-spectrometry data model shared across the
// mzflow pipeline: peaks, spectra, chromatograms, mass traces, features
// and consensus features.
package ms

// Peak1D is a single (m/z, intensity) pair within a Spectrum.
type Peak1D struct {
	MZ        float64
	Intensity float32
}

// Peak2D is an atomic centroid at a given retention time, the unit
// consumed by the mass-trace detector. Immutable after read.
type Peak2D struct {
	RT        float64
	MZ        float64
	Intensity float32
}

// Precursor describes one MS2 precursor ion recorded against a spectrum.
type Precursor struct {
	MZ                   float64
	Charge               int
	IsolationWindowLower float64
	IsolationWindowUpper float64
}

// Spectrum is an ordered sequence of 1D peaks plus the metadata needed to
// place it in a run. Peaks are sorted by m/z ascending; MSLevel is always
// >= 1.
type Spectrum struct {
	NativeID   string
	RT         float64
	MSLevel    int
	Polarity   string
	Precursors []Precursor
	Peaks      []Peak1D
}

// ChromPoint is one (rt, intensity) sample of a Chromatogram.
type ChromPoint struct {
	RT        float64
	Intensity float32
}

// Chromatogram is an ordered sequence of (rt, intensity) points; RT is
// strictly increasing.
type Chromatogram struct {
	NativeID    string
	PrecursorMZ float64
	ProductMZ   float64
	Points      []ChromPoint
}

// Settings carries the experimental metadata a Consumer records once,
// before any spectra or chromatograms are consumed.
type Settings struct {
	RunID      string
	SampleName string
	SourceFile string
}

// QuantMethod selects how a MassTrace's intensity is summarized.
type QuantMethod int

const (
	QuantArea QuantMethod = iota
	QuantMedian
)

// MassTrace is an ordered (by rt) sequence of Peak2D representing one ion
// across time, plus the derived quantities the detector computes once
// growth stops.
type MassTrace struct {
	Peaks []Peak2D

	CentroidMZ float64
	CentroidRT float64

	// FWHM is expressed in seconds; FWHMStart/FWHMEnd are an inclusive
	// index range into Peaks.
	FWHM      float64
	FWHMStart int
	FWHMEnd   int

	// Smoothed holds an optional smoothed-intensity buffer, one entry
	// per peak, used in place of raw intensity for fwhm estimation.
	Smoothed []float64

	Quant    QuantMethod
	Quantity float64
	MZStdDev float64
}

// Identification is a minimal stand-in for a peptide identification: the
// set of best-hit sequences used by the identity-compatibility guard in
// align/pairfinder. Nothing downstream inspects sequence content beyond
// set membership.
type Identification struct {
	Sequences []string
}

// Feature is an RT x m/z bounding hull plus intensity and zero or more
// identifications. Owned by exactly one FeatureMap at a time.
type Feature struct {
	ID    int
	RT    float64
	MZ    float64
	RTMin float64
	RTMax float64
	MZMin float64
	MZMax float64

	Intensity float64
	Charge    int

	// Traces holds the per-isotope mass traces composing this feature,
	// in ascending isotope order; Traces[0] is the monoisotopic trace.
	Traces []MassTrace

	Identifications []Identification
}

// FeatureMap owns a set of Features from one run.
type FeatureMap struct {
	Features []*Feature
}

// ConsensusFeature groups features across maps under a shared quality.
// Handles reference constituent features by map index; they are not
// copies.
type ConsensusFeature struct {
	MZ        float64
	RT        float64
	Intensity float64
	Quality   float64

	// Handles maps a source map index (0 or 1 for a pairwise match) to
	// the feature contributed from that map.
	Handles map[int]*Feature
}

// ConsensusMap owns a set of ConsensusFeatures, including unpaired
// singletons with Quality 0.
type ConsensusMap struct {
	Features []*ConsensusFeature
}
