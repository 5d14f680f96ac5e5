/*
NAME
  precursor_test.go

DESCRIPTION
  precursor_test.go contains tests for the precursor package.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package precursor

import (
	"math"
	"testing"

	"github.com/massflow/mzflow/ms"
)

func ms1(id string, rt float64, peaks ...ms.Peak1D) ms.Spectrum {
	return ms.Spectrum{NativeID: id, RT: rt, MSLevel: 1, Peaks: peaks}
}

func ms2(id string, rt, precMZ float64) ms.Spectrum {
	return ms.Spectrum{NativeID: id, RT: rt, MSLevel: 2, Precursors: []ms.Precursor{{MZ: precMZ}}}
}

// TestCorrectToNearestMS1PeakScenarioS6 exercises scenario S6: an MS1 peak
// at 500.1234 within +-5ppm of a recorded precursor of 500.1240 is
// rewritten to 500.1234 and the delta is recorded.
func TestCorrectToNearestMS1PeakScenarioS6(t *testing.T) {
	spectra := []ms.Spectrum{
		ms1("scan=1", 10, ms.Peak1D{MZ: 500.1234, Intensity: 1000}),
		ms2("scan=2", 10.1, 500.1240),
	}

	corrections := CorrectToNearestMS1Peak(spectra, 5, UnitPPM)
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	c := corrections[0]
	if math.Abs(c.NewMZ-500.1234) > 1e-9 {
		t.Errorf("NewMZ = %v, want 500.1234", c.NewMZ)
	}
	wantDelta := 500.1234 - 500.1240
	if math.Abs(c.DeltaMZ-wantDelta) > 1e-9 {
		t.Errorf("DeltaMZ = %v, want %v", c.DeltaMZ, wantDelta)
	}
	if got := spectra[1].Precursors[0].MZ; math.Abs(got-500.1234) > 1e-9 {
		t.Errorf("spectrum precursor not rewritten, got %v", got)
	}
}

func TestCorrectToNearestMS1PeakOutsideToleranceSkipped(t *testing.T) {
	spectra := []ms.Spectrum{
		ms1("scan=1", 10, ms.Peak1D{MZ: 501.0, Intensity: 1000}),
		ms2("scan=2", 10.1, 500.1240),
	}
	corrections := CorrectToNearestMS1Peak(spectra, 5, UnitPPM)
	if len(corrections) != 0 {
		t.Fatalf("got %d corrections, want 0 (peak outside tolerance)", len(corrections))
	}
	if got := spectra[1].Precursors[0].MZ; got != 500.1240 {
		t.Errorf("precursor mz changed unexpectedly: %v", got)
	}
}

func TestCorrectToHighestIntensityMS1Peak(t *testing.T) {
	spectra := []ms.Spectrum{
		ms1("scan=1", 10,
			ms.Peak1D{MZ: 500.120, Intensity: 500},
			ms.Peak1D{MZ: 500.130, Intensity: 5000},
		),
		ms2("scan=2", 10.1, 500.125),
	}
	corrections := CorrectToHighestIntensityMS1Peak(spectra, 0.02, UnitDa)
	if len(corrections) != 1 {
		t.Fatalf("got %d corrections, want 1", len(corrections))
	}
	if got := spectra[1].Precursors[0].MZ; math.Abs(got-500.130) > 1e-9 {
		t.Errorf("expected highest-intensity peak 500.130 chosen, got %v", got)
	}
}

func feature(id int, rtMin, rtMax, mz float64, charge int) *ms.Feature {
	return &ms.Feature{
		ID: id, RTMin: rtMin, RTMax: rtMax, MZ: mz, Charge: charge,
		Traces: []ms.MassTrace{{CentroidMZ: mz}, {CentroidMZ: mz + 1.0034}},
	}
}

func TestCorrectToNearestFeatureOverwritesInPlace(t *testing.T) {
	spectra := []ms.Spectrum{
		ms2("scan=1", 100, 500.01),
	}
	fm := ms.FeatureMap{Features: []*ms.Feature{feature(1, 95, 105, 500.0, 2)}}

	params := FeatureParams{MZTolerance: 0.02, MZUnit: UnitDa, MaxTrace: 1}
	out, corrections, err := CorrectToNearestFeature(spectra, fm, params)
	if err != nil {
		t.Fatalf("CorrectToNearestFeature: %v", err)
	}
	if len(out) != 1 || len(corrections) != 1 {
		t.Fatalf("got %d spectra, %d corrections, want 1, 1", len(out), len(corrections))
	}
	if got := out[0].Precursors[0].MZ; got != 500.0 {
		t.Errorf("corrected mz = %v, want 500.0", got)
	}
}

func TestCorrectToNearestFeatureKeepOriginalAndAssignAllMatching(t *testing.T) {
	spectra := []ms.Spectrum{ms2("scan=1", 100, 500.005)}
	fm := ms.FeatureMap{Features: []*ms.Feature{
		feature(1, 95, 105, 500.0, 2),
		feature(2, 95, 105, 500.01, 3),
	}}

	params := FeatureParams{
		MZTolerance: 0.02, MZUnit: UnitDa, MaxTrace: 1,
		KeepOriginal: true, AssignAllMatching: true,
	}
	out, corrections, err := CorrectToNearestFeature(spectra, fm, params)
	if err != nil {
		t.Fatalf("CorrectToNearestFeature: %v", err)
	}
	// original + 2 corrected copies.
	if len(out) != 3 {
		t.Fatalf("got %d spectra, want 3 (original + 2 matches)", len(out))
	}
	if len(corrections) != 2 {
		t.Fatalf("got %d corrections, want 2", len(corrections))
	}
	if out[0].Precursors[0].MZ != 500.005 {
		t.Errorf("original spectrum precursor mutated, got %v", out[0].Precursors[0].MZ)
	}
}

func TestCorrectToNearestFeatureBelieveChargeFiltersCandidates(t *testing.T) {
	spectra := []ms.Spectrum{ms2("scan=1", 100, 500.005)}
	spectra[0].Precursors[0].Charge = 2
	fm := ms.FeatureMap{Features: []*ms.Feature{
		feature(1, 95, 105, 500.0, 3),
	}}

	params := FeatureParams{MZTolerance: 0.02, MZUnit: UnitDa, MaxTrace: 1, BelieveCharge: true}
	out, corrections, err := CorrectToNearestFeature(spectra, fm, params)
	if err != nil {
		t.Fatalf("CorrectToNearestFeature: %v", err)
	}
	if len(corrections) != 0 {
		t.Fatalf("got %d corrections, want 0 (charge mismatch should block match)", len(corrections))
	}
	if len(out) != 1 {
		t.Fatalf("got %d spectra, want 1 (unmatched original passed through)", len(out))
	}
}
