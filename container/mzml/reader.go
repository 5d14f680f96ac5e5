/*
NAME
  reader.go

DESCRIPTION
  reader.go implements Reader, the pull side of the mzML container: a
  single forward pass over an io.Reader that decodes <spectrum> and
  <chromatogram> elements lazily, handing each to a caller-supplied
  callback instead of building the whole run in memory.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mzml

import (
	"encoding/xml"
	"io"

	"github.com/ausocean/utils/logging"

	"github.com/massflow/mzflow/codec/binarray"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
)

type precursorXML struct {
	MZ     float64 `xml:"mz,attr"`
	Charge int     `xml:"charge,attr"`
}

type binaryDataArrayXML struct {
	CVParam struct {
		Precision   string `xml:"precision,attr"`
		Compression string `xml:"compression,attr"`
		Numpress    string `xml:"numpress,attr"`
	} `xml:"cvParam"`
	Binary string `xml:"binary"`
}

func (b binaryDataArrayXML) decode() ([]float64, error) {
	cv := binarray.CVParams{Precision: b.CVParam.Precision, Compression: b.CVParam.Compression, Numpress: b.CVParam.Numpress}
	return binarray.DecodeAxis(binarray.AxisMZOrTime, []byte(b.Binary), cv)
}

type spectrumXML struct {
	XMLName          xml.Name             `xml:"spectrum"`
	ID               string               `xml:"id,attr"`
	MSLevel          int                  `xml:"msLevel,attr"`
	RT               float64              `xml:"retentionTime,attr"`
	Precursors       []precursorXML       `xml:"precursor"`
	BinaryDataArrays []binaryDataArrayXML `xml:"binaryDataArray"`
}

type chromatogramXML struct {
	XMLName          xml.Name             `xml:"chromatogram"`
	ID               string               `xml:"id,attr"`
	PrecursorMZ      float64              `xml:"precursorMz,attr"`
	ProductMZ        float64              `xml:"productMz,attr"`
	BinaryDataArrays []binaryDataArrayXML `xml:"binaryDataArray"`
}

// Reader decodes an mzML stream produced by Writer, one spectrum or
// chromatogram at a time.
type Reader struct {
	dec *xml.Decoder
	log logging.Logger
}

// NewReader returns a Reader pulling from src.
func NewReader(src io.Reader, log logging.Logger) *Reader {
	return &Reader{dec: xml.NewDecoder(src), log: log}
}

// Walk scans the stream once, calling onSpectrum for each spectrum and
// onChromatogram for each chromatogram, in file order. Either callback
// may be nil, in which case matching elements are skipped without being
// decoded.
func (r *Reader) Walk(onSpectrum func(ms.Spectrum) error, onChromatogram func(ms.Chromatogram) error) error {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return mzerr.Wrap(mzerr.IO, "reading mzml token", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "spectrum":
			if onSpectrum == nil {
				if err := r.dec.Skip(); err != nil {
					return mzerr.Wrap(mzerr.IO, "skipping spectrum", err)
				}
				continue
			}
			var sx spectrumXML
			if err := r.dec.DecodeElement(&sx, &se); err != nil {
				return mzerr.Wrap(mzerr.IO, "decoding spectrum", err)
			}
			s, err := sx.toSpectrum()
			if err != nil {
				return mzerr.Wrap(mzerr.IO, "decoding spectrum binary arrays", err)
			}
			if err := onSpectrum(s); err != nil {
				return err
			}
		case "chromatogram":
			if onChromatogram == nil {
				if err := r.dec.Skip(); err != nil {
					return mzerr.Wrap(mzerr.IO, "skipping chromatogram", err)
				}
				continue
			}
			var cx chromatogramXML
			if err := r.dec.DecodeElement(&cx, &se); err != nil {
				return mzerr.Wrap(mzerr.IO, "decoding chromatogram", err)
			}
			c, err := cx.toChromatogram()
			if err != nil {
				return mzerr.Wrap(mzerr.IO, "decoding chromatogram binary arrays", err)
			}
			if err := onChromatogram(c); err != nil {
				return err
			}
		}
	}
}

// Spectra is a convenience wrapper around Walk that skips chromatograms.
func (r *Reader) Spectra(fn func(ms.Spectrum) error) error {
	return r.Walk(fn, nil)
}

// Chromatograms is a convenience wrapper around Walk that skips spectra.
func (r *Reader) Chromatograms(fn func(ms.Chromatogram) error) error {
	return r.Walk(nil, fn)
}

func (sx spectrumXML) toSpectrum() (ms.Spectrum, error) {
	if len(sx.BinaryDataArrays) != 2 {
		return ms.Spectrum{}, mzerr.New(mzerr.IO, "spectrum does not have exactly two binary data arrays")
	}
	mzs, err := sx.BinaryDataArrays[0].decode()
	if err != nil {
		return ms.Spectrum{}, err
	}
	intensities, err := sx.BinaryDataArrays[1].decode()
	if err != nil {
		return ms.Spectrum{}, err
	}
	if len(mzs) != len(intensities) {
		return ms.Spectrum{}, mzerr.New(mzerr.IO, "mismatched mz/intensity array lengths")
	}

	s := ms.Spectrum{NativeID: sx.ID, MSLevel: sx.MSLevel, RT: sx.RT}
	s.Peaks = make([]ms.Peak1D, len(mzs))
	for i := range mzs {
		s.Peaks[i] = ms.Peak1D{MZ: mzs[i], Intensity: float32(intensities[i])}
	}
	for _, p := range sx.Precursors {
		s.Precursors = append(s.Precursors, ms.Precursor{MZ: p.MZ, Charge: p.Charge})
	}
	return s, nil
}

func (cx chromatogramXML) toChromatogram() (ms.Chromatogram, error) {
	if len(cx.BinaryDataArrays) != 2 {
		return ms.Chromatogram{}, mzerr.New(mzerr.IO, "chromatogram does not have exactly two binary data arrays")
	}
	rts, err := cx.BinaryDataArrays[0].decode()
	if err != nil {
		return ms.Chromatogram{}, err
	}
	intensities, err := cx.BinaryDataArrays[1].decode()
	if err != nil {
		return ms.Chromatogram{}, err
	}
	if len(rts) != len(intensities) {
		return ms.Chromatogram{}, mzerr.New(mzerr.IO, "mismatched rt/intensity array lengths")
	}

	c := ms.Chromatogram{NativeID: cx.ID, PrecursorMZ: cx.PrecursorMZ, ProductMZ: cx.ProductMZ}
	c.Points = make([]ms.ChromPoint, len(rts))
	for i := range rts {
		c.Points[i] = ms.ChromPoint{RT: rts[i], Intensity: float32(intensities[i])}
	}
	return c, nil
}
