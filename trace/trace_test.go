/*
NAME
  trace_test.go

DESCRIPTION
  trace_test.go contains tests for the trace package.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package trace

import (
	"sort"
	"testing"

	"github.com/massflow/mzflow/ms"
)

func spectrum(nativeID string, msLevel int, rt float64, peaks ...ms.Peak1D) ms.Spectrum {
	return ms.Spectrum{NativeID: nativeID, MSLevel: msLevel, RT: rt, Peaks: peaks}
}

func peak(mz float64, intensity float32) ms.Peak1D { return ms.Peak1D{MZ: mz, Intensity: intensity} }

func TestDetectBasicTrace(t *testing.T) {
	spectra := []ms.Spectrum{
		spectrum("s1", 1, 1.0, peak(500.0, 100), peak(700.0, 10)),
		spectrum("s2", 1, 2.0, peak(500.001, 120), peak(900.0, 5)),
		spectrum("s3", 1, 3.0, peak(499.999, 90)),
	}
	params := Params{MZTolerancePPM: 20, MinTraceLength: 1, MinPeaks: 2, MaxGapScans: 1}

	traces := Detect(spectra, params)
	var found bool
	for _, tr := range traces {
		if len(tr.Peaks) == 3 {
			found = true
			if tr.CentroidMZ < 499.9 || tr.CentroidMZ > 500.1 {
				t.Errorf("centroid mz = %v, want ~500", tr.CentroidMZ)
			}
		}
	}
	if !found {
		t.Fatalf("expected a 3-peak trace around m/z 500, got %+v", traces)
	}
}

func TestDetectSkipsNonMS1(t *testing.T) {
	spectra := []ms.Spectrum{
		spectrum("s1", 1, 1.0, peak(500, 100)),
		spectrum("s2", 2, 1.5, peak(500, 1000)),
		spectrum("s3", 1, 2.0, peak(500.001, 110)),
	}
	params := Params{MZTolerancePPM: 20, MinTraceLength: 0, MinPeaks: 2, MaxGapScans: 0}

	traces := Detect(spectra, params)
	if len(traces) != 1 || len(traces[0].Peaks) != 2 {
		t.Fatalf("expected one 2-peak trace ignoring the MS2 scan, got %+v", traces)
	}
}

func TestDetectSinglePeakTraceBypassesFWHM(t *testing.T) {
	spectra := []ms.Spectrum{
		spectrum("s1", 1, 5.0, peak(300, 50)),
	}
	params := Params{MZTolerancePPM: 10, MinTraceLength: 0, MinPeaks: 1}

	traces := Detect(spectra, params)
	if len(traces) != 1 {
		t.Fatalf("expected one trace, got %d", len(traces))
	}
	tr := traces[0]
	if tr.FWHMStart != 0 || tr.FWHMEnd != 0 || tr.FWHM != 0 {
		t.Errorf("single-peak trace should have zeroed fwhm fields, got %+v", tr)
	}
	if tr.Quantity != 50 {
		t.Errorf("single-peak trace quantity = %v, want 50", tr.Quantity)
	}
}

func TestDetectRejectsShortTraces(t *testing.T) {
	spectra := []ms.Spectrum{
		spectrum("s1", 1, 1.0, peak(400, 10)),
		spectrum("s2", 1, 1.1, peak(400.001, 12)),
	}
	params := Params{MZTolerancePPM: 20, MinTraceLength: 5, MinPeaks: 1}

	traces := Detect(spectra, params)
	if len(traces) != 0 {
		t.Fatalf("expected rejection by min trace length, got %+v", traces)
	}
}

func TestDetectMedianQuant(t *testing.T) {
	spectra := []ms.Spectrum{
		spectrum("s1", 1, 1.0, peak(500, 10)),
		spectrum("s2", 1, 2.0, peak(500, 100)),
		spectrum("s3", 1, 3.0, peak(500, 20)),
	}
	params := Params{MZTolerancePPM: 20, MinTraceLength: 0, MinPeaks: 1, Quant: ms.QuantMedian}

	traces := Detect(spectra, params)
	if len(traces) != 1 {
		t.Fatalf("expected one trace, got %d", len(traces))
	}
	// Only the apex (100) is at or above half-max (50), so the fwhm window
	// is that single peak and its median is 100.
	if traces[0].Quantity != 100 {
		t.Errorf("median quantity = %v, want 100", traces[0].Quantity)
	}
}

func TestDetectParallelMatchesSequential(t *testing.T) {
	files := [][]ms.Spectrum{
		{spectrum("a1", 1, 1.0, peak(500, 50)), spectrum("a2", 1, 2.0, peak(500.001, 60))},
		{spectrum("b1", 1, 1.0, peak(600, 40))},
	}
	params := Params{MZTolerancePPM: 20, MinTraceLength: 0, MinPeaks: 1}

	want := make([][]ms.MassTrace, len(files))
	for i, f := range files {
		want[i] = Detect(f, params)
	}
	got := DetectParallel(files, params, 2)

	if len(got) != len(want) {
		t.Fatalf("got %d files, want %d", len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Errorf("file %d: got %d traces, want %d", i, len(got[i]), len(want[i]))
		}
	}
}

func TestByRTOrdering(t *testing.T) {
	traces := []ms.MassTrace{
		{CentroidRT: 5},
		{CentroidRT: 1},
		{CentroidRT: 3},
	}
	sort.Sort(ByRT(traces))
	for i := 1; i < len(traces); i++ {
		if traces[i-1].CentroidRT > traces[i].CentroidRT {
			t.Fatalf("traces not sorted by rt: %+v", traces)
		}
	}
}
