/*
NAME
  sqmass_test.go

DESCRIPTION
  sqmass_test.go contains tests for the sqmass package.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package sqmass

import (
	"path/filepath"
	"testing"

	"github.com/massflow/mzflow/codec/binarray"
	"github.com/massflow/mzflow/config"
	"github.com/massflow/mzflow/ms"
)

type dumbLogger struct{}

func (dumbLogger) SetLevel(int8)                           {}
func (dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dumbLogger) Debug(msg string, args ...interface{})   {}
func (dumbLogger) Info(msg string, args ...interface{})    {}
func (dumbLogger) Warning(msg string, args ...interface{}) {}
func (dumbLogger) Error(msg string, args ...interface{})   {}
func (dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestCompressionFor(t *testing.T) {
	cases := []struct {
		cv   binarray.CVParams
		want Compression
	}{
		{binarray.CVParams{Compression: binarray.CVNoCompression}, CompressionNone},
		{binarray.CVParams{Compression: binarray.CVZlibCompression}, CompressionZlib},
		{binarray.CVParams{Numpress: binarray.CVNumpressLinear}, CompressionNumpressLinear},
		{binarray.CVParams{Numpress: binarray.CVNumpressPic}, CompressionNumpressPic},
		{binarray.CVParams{Numpress: binarray.CVNumpressSlof}, CompressionNumpressSlof},
	}
	for _, c := range cases {
		if got := compressionFor(c.cv); got != c.want {
			t.Errorf("compressionFor(%+v) = %v, want %v", c.cv, got, c.want)
		}
	}
}

func TestWriterRejectsLowPrecisionUncompressed(t *testing.T) {
	dir := t.TempDir()
	opts := config.PeakFileOptions{
		MZCodec:        config.AxisCodec{Precision64: true},
		IntensityCodec: config.AxisCodec{Precision64: false},
		StreamPoolSize: 10,
	}
	_, err := NewWriter(filepath.Join(dir, "test.sqMass"), dumbLogger{}, opts, ms.Settings{RunID: "run1"})
	if err == nil {
		t.Fatal("expected configuration error for 32-bit uncompressed intensity axis")
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	opts := config.PeakFileOptions{
		MZCodec:        config.AxisCodec{Precision64: true},
		IntensityCodec: config.AxisCodec{Precision64: true},
		StreamPoolSize: 2,
	}
	path := filepath.Join(dir, "test.sqMass")
	w, err := NewWriter(path, dumbLogger{}, opts, ms.Settings{RunID: "run1", SampleName: "sample"})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	want := []ms.Spectrum{
		{NativeID: "s1", MSLevel: 1, RT: 1.0, Peaks: []ms.Peak1D{{MZ: 100.25, Intensity: 10}, {MZ: 200.5, Intensity: 20}}},
		{NativeID: "s2", MSLevel: 2, RT: 2.0, Precursors: []ms.Precursor{{MZ: 150.1, Charge: 2}},
			Peaks: []ms.Peak1D{{MZ: 50, Intensity: 1}}},
	}
	for _, s := range want {
		if err := w.ConsumeSpectrum(s); err != nil {
			t.Fatalf("ConsumeSpectrum: %v", err)
		}
	}
	wantChrom := ms.Chromatogram{NativeID: "c1", Points: []ms.ChromPoint{{RT: 0, Intensity: 5}, {RT: 1, Intensity: 6}}}
	if err := w.ConsumeChromatogram(wantChrom); err != nil {
		t.Fatalf("ConsumeChromatogram: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(path, dumbLogger{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	var gotSpectra []ms.Spectrum
	if err := r.Spectra(func(s ms.Spectrum) error {
		gotSpectra = append(gotSpectra, s)
		return nil
	}); err != nil {
		t.Fatalf("Spectra: %v", err)
	}
	if len(gotSpectra) != len(want) {
		t.Fatalf("got %d spectra, want %d", len(gotSpectra), len(want))
	}
	for i := range want {
		if gotSpectra[i].NativeID != want[i].NativeID {
			t.Errorf("spectrum %d: got id %q, want %q", i, gotSpectra[i].NativeID, want[i].NativeID)
		}
		if len(gotSpectra[i].Peaks) != len(want[i].Peaks) {
			t.Errorf("spectrum %d: got %d peaks, want %d", i, len(gotSpectra[i].Peaks), len(want[i].Peaks))
			continue
		}
		for j := range want[i].Peaks {
			if gotSpectra[i].Peaks[j].MZ != want[i].Peaks[j].MZ {
				t.Errorf("spectrum %d peak %d: got mz %v, want %v", i, j, gotSpectra[i].Peaks[j].MZ, want[i].Peaks[j].MZ)
			}
		}
	}

	var gotChroms []ms.Chromatogram
	if err := r.Chromatograms(func(c ms.Chromatogram) error {
		gotChroms = append(gotChroms, c)
		return nil
	}); err != nil {
		t.Fatalf("Chromatograms: %v", err)
	}
	if len(gotChroms) != 1 || gotChroms[0].NativeID != "c1" {
		t.Fatalf("got chromatograms %+v, want one named c1", gotChroms)
	}
}
