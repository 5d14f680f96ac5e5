/*
NAME
  mzml.go

DESCRIPTION
  mzml.go defines the Consumer contract shared by every mzML/sqMass
  back-end: a push-based pipeline that records experimental settings
  once, accepts spectra then chromatograms in that order, and finalises
  on Close.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mzml implements a streaming mzML writer and reader on top of
// the shared Consumer contract: push spectra and chromatograms in, get a
// valid mzML file out, with Numpress/zlib/Base64 encoding per axis via
// codec/binarray.
package mzml

import (
	"io"

	"github.com/massflow/mzflow/ms"
)

// Consumer is the push-based contract implemented by every writer
// back-end (mzml.Writer, sqmass.Writer). SetExperimentalSettings must be
// called before any ConsumeSpectrum/ConsumeChromatogram call;
// ConsumeChromatogram, once called, permanently forbids further
// ConsumeSpectrum calls on the same Consumer.
type Consumer interface {
	SetExperimentalSettings(ms.Settings) error
	SetExpectedSize(nSpectra, nChromatograms int)
	ConsumeSpectrum(ms.Spectrum) error
	ConsumeChromatogram(ms.Chromatogram) error
	io.Closer
}

// SpectrumProcessFunc transforms a spectrum before it is serialized.
type SpectrumProcessFunc func(ms.Spectrum) ms.Spectrum

// ChromatogramProcessFunc transforms a chromatogram before it is
// serialized.
type ChromatogramProcessFunc func(ms.Chromatogram) ms.Chromatogram

// PlainSpectrumProcessor passes a spectrum through unchanged.
func PlainSpectrumProcessor(s ms.Spectrum) ms.Spectrum { return s }

// NullSpectrumProcessor discards a spectrum's peaks, keeping only its
// metadata; used to strip payload while preserving run structure.
func NullSpectrumProcessor(s ms.Spectrum) ms.Spectrum {
	s.Peaks = nil
	return s
}

// PlainChromatogramProcessor passes a chromatogram through unchanged.
func PlainChromatogramProcessor(c ms.Chromatogram) ms.Chromatogram { return c }

// NullChromatogramProcessor discards a chromatogram's points, keeping
// only its metadata.
func NullChromatogramProcessor(c ms.Chromatogram) ms.Chromatogram {
	c.Points = nil
	return c
}
