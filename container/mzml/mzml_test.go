/*
NAME
  mzml_test.go

DESCRIPTION
  mzml_test.go contains tests for the mzml package.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mzml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

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

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func newOpts(t *testing.T) config.PeakFileOptions {
	t.Helper()
	opts, err := config.NewPeakFileOptions(dumbLogger{},
		config.WithMZCodec(config.AxisCodec{Precision64: true}),
		config.WithIntensityCodec(config.AxisCodec{Precision64: false}),
	)
	if err != nil {
		t.Fatalf("NewPeakFileOptions: %v", err)
	}
	return opts
}

func TestWriterStateMachine(t *testing.T) {
	buf := &bytes.Buffer{}
	w, err := NewWriter(nopCloser{buf}, dumbLogger{}, newOpts(t))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	spec := ms.Spectrum{NativeID: "spec1", MSLevel: 1, RT: 1.5, Peaks: []ms.Peak1D{{MZ: 100, Intensity: 10}}}
	if err := w.ConsumeSpectrum(spec); err == nil {
		t.Fatal("expected protocol misuse error consuming spectrum before settings set")
	}

	if err := w.SetExperimentalSettings(ms.Settings{RunID: "run1"}); err != nil {
		t.Fatalf("SetExperimentalSettings: %v", err)
	}
	if err := w.SetExperimentalSettings(ms.Settings{RunID: "run1"}); err == nil {
		t.Fatal("expected protocol misuse error on second SetExperimentalSettings call")
	}

	w.SetExpectedSize(1, 1)
	if err := w.ConsumeSpectrum(spec); err != nil {
		t.Fatalf("ConsumeSpectrum: %v", err)
	}

	chrom := ms.Chromatogram{NativeID: "chrom1", Points: []ms.ChromPoint{{RT: 0, Intensity: 5}, {RT: 1, Intensity: 6}}}
	if err := w.ConsumeChromatogram(chrom); err != nil {
		t.Fatalf("ConsumeChromatogram: %v", err)
	}

	if err := w.ConsumeSpectrum(spec); err == nil {
		t.Fatal("expected protocol misuse error consuming spectrum after chromatogram writing began")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(buf.String(), "<spectrum id=\"spec1\"") {
		t.Error("expected output to contain serialized spectrum")
	}
	if !strings.Contains(buf.String(), "<chromatogram id=\"chrom1\"") {
		t.Error("expected output to contain serialized chromatogram")
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := newOpts(t)
	w, err := NewWriter(nopCloser{buf}, dumbLogger{}, opts, Indexed(true))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.SetExperimentalSettings(ms.Settings{RunID: "run1"}); err != nil {
		t.Fatalf("SetExperimentalSettings: %v", err)
	}
	w.SetExpectedSize(2, 0)

	want := []ms.Spectrum{
		{NativeID: "s1", MSLevel: 1, RT: 1.0, Peaks: []ms.Peak1D{{MZ: 100.5, Intensity: 10}, {MZ: 200.25, Intensity: 20}}},
		{NativeID: "s2", MSLevel: 2, RT: 2.0, Precursors: []ms.Precursor{{MZ: 150.1, Charge: 2}},
			Peaks: []ms.Peak1D{{MZ: 50, Intensity: 1}}},
	}
	for _, s := range want {
		if err := w.ConsumeSpectrum(s); err != nil {
			t.Fatalf("ConsumeSpectrum: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), dumbLogger{})
	var got []ms.Spectrum
	if err := r.Spectra(func(s ms.Spectrum) error {
		got = append(got, s)
		return nil
	}); err != nil {
		t.Fatalf("Spectra: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-tripped spectra mismatch (-want +got):\n%s", diff)
	}
}

func TestNullProcessors(t *testing.T) {
	s := ms.Spectrum{NativeID: "s", Peaks: []ms.Peak1D{{MZ: 1, Intensity: 1}}}
	if got := NullSpectrumProcessor(s); got.Peaks != nil {
		t.Errorf("expected nil peaks, got %v", got.Peaks)
	}
	c := ms.Chromatogram{NativeID: "c", Points: []ms.ChromPoint{{RT: 1, Intensity: 1}}}
	if got := NullChromatogramProcessor(c); got.Points != nil {
		t.Errorf("expected nil points, got %v", got.Points)
	}
}
