/*
NAME
  precursor.go

DESCRIPTION
  precursor.go implements precursor m/z correction against the preceding
  MS1 spectrum (nearest peak, or highest-intensity peak in a window) and
  against a feature map (nearest enclosing mass trace, with optional
  charge belief and copy-vs-overwrite policy).

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package precursor corrects MS2 precursor m/z values recorded against the
// wrong centroid, using either the surrounding MS1 spectrum or a feature
// map as ground truth.
package precursor

import (
	"math"
	"sort"

	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
)

// MZUnit selects whether a tolerance is interpreted in ppm or Da.
type MZUnit int

const (
	UnitPPM MZUnit = iota
	UnitDa
)

func toleranceDa(mz float64, tol float64, unit MZUnit) float64 {
	if unit == UnitPPM {
		return mz * tol * 1e-6
	}
	return tol
}

// Correction records one corrected precursor: the spectrum it belongs to,
// the delta applied, the new m/z and the spectrum's rt.
type Correction struct {
	SpectrumIndex int
	DeltaMZ       float64
	NewMZ         float64
	RT            float64
}

// CorrectToNearestMS1Peak rewrites each MS2 spectrum's first precursor m/z
// to the nearest centroided peak, within tol, in the most recent preceding
// MS1 spectrum. Spectra are modified in place; spectra is assumed ordered
// by rt.
func CorrectToNearestMS1Peak(spectra []ms.Spectrum, tol float64, unit MZUnit) []Correction {
	var corrections []Correction
	lastMS1 := -1
	for i := range spectra {
		if spectra[i].MSLevel == 1 {
			lastMS1 = i
			continue
		}
		if lastMS1 < 0 || len(spectra[i].Precursors) == 0 {
			continue
		}
		prec := &spectra[i].Precursors[0]
		pi, ok := nearestPeak(spectra[lastMS1].Peaks, prec.MZ, toleranceDa(prec.MZ, tol, unit))
		if !ok {
			continue
		}
		newMZ := spectra[lastMS1].Peaks[pi].MZ
		corrections = append(corrections, Correction{
			SpectrumIndex: i, DeltaMZ: newMZ - prec.MZ, NewMZ: newMZ, RT: spectra[i].RT,
		})
		prec.MZ = newMZ
	}
	return corrections
}

// CorrectToHighestIntensityMS1Peak rewrites each MS2 spectrum's first
// precursor m/z to the highest-intensity centroided peak within a +-tol
// window of the recorded precursor m/z, in the most recent preceding MS1
// spectrum.
func CorrectToHighestIntensityMS1Peak(spectra []ms.Spectrum, tol float64, unit MZUnit) []Correction {
	var corrections []Correction
	lastMS1 := -1
	for i := range spectra {
		if spectra[i].MSLevel == 1 {
			lastMS1 = i
			continue
		}
		if lastMS1 < 0 || len(spectra[i].Precursors) == 0 {
			continue
		}
		prec := &spectra[i].Precursors[0]
		window := toleranceDa(prec.MZ, tol, unit)
		pi, ok := highestIntensityInWindow(spectra[lastMS1].Peaks, prec.MZ, window)
		if !ok {
			continue
		}
		newMZ := spectra[lastMS1].Peaks[pi].MZ
		corrections = append(corrections, Correction{
			SpectrumIndex: i, DeltaMZ: newMZ - prec.MZ, NewMZ: newMZ, RT: spectra[i].RT,
		})
		prec.MZ = newMZ
	}
	return corrections
}

func nearestPeak(peaks []ms.Peak1D, target, tol float64) (int, bool) {
	best := -1
	bestDelta := math.Inf(1)
	for i, pk := range peaks {
		delta := math.Abs(pk.MZ - target)
		if delta > tol {
			continue
		}
		if delta < bestDelta {
			bestDelta = delta
			best = i
		}
	}
	return best, best >= 0
}

func highestIntensityInWindow(peaks []ms.Peak1D, target, halfWidth float64) (int, bool) {
	best := -1
	var bestIntensity float32 = -1
	for i, pk := range peaks {
		if math.Abs(pk.MZ-target) > halfWidth {
			continue
		}
		if pk.Intensity > bestIntensity {
			bestIntensity = pk.Intensity
			best = i
		}
	}
	return best, best >= 0
}

// FeatureParams configures feature-based precursor correction.
type FeatureParams struct {
	MZTolerance       float64
	MZUnit            MZUnit
	RTTolerance       float64
	MaxTrace          int
	BelieveCharge     bool
	KeepOriginal      bool
	AssignAllMatching bool
}

// CorrectToNearestFeature matches each MS2 precursor to enclosing features
// in fm, correcting m/z (and, unless BelieveCharge forbids it, charge) to
// the matched feature. When AssignAllMatching is set and more than one
// feature matches, one corrected copy of the spectrum is appended per
// match; otherwise only the nearest match is used. KeepOriginal controls
// whether the uncorrected spectrum is retained alongside the corrected
// copies. Returns the (possibly lengthened) spectrum slice and the
// corrections applied.
func CorrectToNearestFeature(spectra []ms.Spectrum, fm ms.FeatureMap, params FeatureParams) ([]ms.Spectrum, []Correction, error) {
	if params.MaxTrace < 0 {
		return nil, nil, mzerr.New(mzerr.IllegalArgument, "max trace must be non-negative")
	}

	var out []ms.Spectrum
	var corrections []Correction

	for i, s := range spectra {
		if s.MSLevel != 2 || len(s.Precursors) == 0 {
			out = append(out, s)
			continue
		}
		prec := s.Precursors[0]
		matches := matchingFeatures(fm, s.RT, prec, params)

		if len(matches) == 0 {
			out = append(out, s)
			continue
		}
		if !params.AssignAllMatching && len(matches) > 1 {
			matches = matches[:1]
		}

		if params.KeepOriginal {
			out = append(out, s)
		}
		for _, f := range matches {
			corrected := s
			corrected.Precursors = append([]ms.Precursor(nil), s.Precursors...)
			corrected.Precursors[0].MZ = f.MZ
			if !params.BelieveCharge {
				corrected.Precursors[0].Charge = f.Charge
			}
			out = append(out, corrected)
			corrections = append(corrections, Correction{
				SpectrumIndex: i, DeltaMZ: f.MZ - prec.MZ, NewMZ: f.MZ, RT: s.RT,
			})
		}
	}
	return out, corrections, nil
}

// matchingFeatures returns the features in fm whose rt range encloses rt
// (with tolerance) and whose monoisotopic-through-MaxTrace m/z matches
// prec.MZ within tolerance, sorted by m/z distance to prec.MZ ascending.
func matchingFeatures(fm ms.FeatureMap, rt float64, prec ms.Precursor, params FeatureParams) []*ms.Feature {
	type candidate struct {
		f     *ms.Feature
		delta float64
	}
	var candidates []candidate

	for _, f := range fm.Features {
		if rt < f.RTMin-params.RTTolerance || rt > f.RTMax+params.RTTolerance {
			continue
		}
		if params.BelieveCharge && f.Charge != prec.Charge {
			continue
		}

		maxTrace := params.MaxTrace
		if maxTrace >= len(f.Traces) {
			maxTrace = len(f.Traces) - 1
		}
		for t := 0; t <= maxTrace && t < len(f.Traces); t++ {
			mz := f.Traces[t].CentroidMZ
			tol := toleranceDa(prec.MZ, params.MZTolerance, params.MZUnit)
			if delta := math.Abs(mz - prec.MZ); delta <= tol {
				candidates = append(candidates, candidate{f: f, delta: delta})
				break
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].delta < candidates[j].delta })
	out := make([]*ms.Feature, len(candidates))
	for i, c := range candidates {
		out[i] = c.f
	}
	return out
}
