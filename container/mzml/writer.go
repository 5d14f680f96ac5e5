/*
NAME
  writer.go

DESCRIPTION
  writer.go implements Writer, an mzML Consumer modeled directly on
  container/mts.Encoder: a struct holding an io.WriteCloser destination,
  a logging.Logger, and a small explicit state machine enforcing the
  contract in mzml.go. NewWriter takes the same func(*Writer) error
  functional-option shape as mts.NewEncoder.

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
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/ausocean/utils/logging"

	"github.com/massflow/mzflow/codec/binarray"
	"github.com/massflow/mzflow/config"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
)

type state int

const (
	stateInit state = iota
	stateReady
	stateWritingSpectra
	stateWritingChromatograms
	stateClosed
)

// countingWriter tracks the number of bytes written through it, so a
// Writer can record the byte offset of each <spectrum>/<chromatogram>
// open tag for the trailing index.
type countingWriter struct {
	w      io.Writer
	offset int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.offset += int64(n)
	return n, err
}

type indexEntry struct {
	id     string
	offset int64
}

// Writer implements Consumer for mzML.
type Writer struct {
	dst  io.WriteCloser
	hash hash.Hash
	cw   *countingWriter
	log  logging.Logger

	state state

	indexed             bool
	extraDataProcessing string
	spectrumProcess     SpectrumProcessFunc
	chromatogramProcess ChromatogramProcessFunc

	mzCodec        config.AxisCodec
	intensityCodec config.AxisCodec

	expectedSpectra       int
	expectedChromatograms int
	writtenSpectra        int
	writtenChromatograms  int

	spectrumIndex     []indexEntry
	chromatogramIndex []indexEntry
}

// NewWriter returns a Writer that serializes mzML to dst using the axis
// codec configuration from opts, applying any functional options.
func NewWriter(dst io.WriteCloser, log logging.Logger, opts config.PeakFileOptions, options ...func(*Writer) error) (*Writer, error) {
	h := sha1.New()
	w := &Writer{
		dst:                 dst,
		hash:                h,
		log:                 log,
		state:               stateInit,
		spectrumProcess:     PlainSpectrumProcessor,
		chromatogramProcess: PlainChromatogramProcessor,
		mzCodec:             opts.MZCodec,
		intensityCodec:      opts.IntensityCodec,
	}
	w.cw = &countingWriter{w: io.MultiWriter(dst, h)}

	for _, option := range options {
		if err := option(w); err != nil {
			return nil, mzerr.Wrap(mzerr.Configuration, "applying mzml writer option", err)
		}
	}
	log.Debug("mzml writer options applied", "indexed", w.indexed)
	return w, nil
}

// Indexed enables a trailing <indexList>/<fileChecksum>.
func Indexed(b bool) func(*Writer) error {
	return func(w *Writer) error { w.indexed = b; return nil }
}

// ExtraDataProcessing stamps an additional dataProcessing accession onto
// every consumed spectrum/chromatogram's metadata.
func ExtraDataProcessing(name string) func(*Writer) error {
	return func(w *Writer) error { w.extraDataProcessing = name; return nil }
}

// WithSpectrumProcessor overrides the hook run on every spectrum before
// serialization.
func WithSpectrumProcessor(fn SpectrumProcessFunc) func(*Writer) error {
	return func(w *Writer) error { w.spectrumProcess = fn; return nil }
}

// WithChromatogramProcessor overrides the hook run on every chromatogram
// before serialization.
func WithChromatogramProcessor(fn ChromatogramProcessFunc) func(*Writer) error {
	return func(w *Writer) error { w.chromatogramProcess = fn; return nil }
}

// SetExperimentalSettings writes the mzML header and transitions
// Init->Ready. It may only be called once.
func (w *Writer) SetExperimentalSettings(s ms.Settings) error {
	if w.state != stateInit {
		return mzerr.New(mzerr.ProtocolMisuse, "experimental settings already set")
	}
	w.log.Debug("writing mzml header", "run", s.RunID)
	if err := w.writeString(fmt.Sprintf(
		"<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<indexedmzML>\n<mzML>\n<run id=%q sampleName=%q sourceFile=%q>\n",
		s.RunID, s.SampleName, s.SourceFile)); err != nil {
		return mzerr.Wrap(mzerr.IO, "writing mzml header", err)
	}
	w.state = stateReady
	return nil
}

// SetExpectedSize records the counts stamped on the opening
// <spectrumList>/<chromatogramList> tags.
func (w *Writer) SetExpectedSize(nSpectra, nChromatograms int) {
	w.expectedSpectra = nSpectra
	w.expectedChromatograms = nChromatograms
}

// ConsumeSpectrum serializes one spectrum. It is an error to call this
// after chromatogram writing has begun.
func (w *Writer) ConsumeSpectrum(s ms.Spectrum) error {
	switch w.state {
	case stateInit:
		return mzerr.New(mzerr.ProtocolMisuse, "consumeSpectrum before experimental settings set")
	case stateWritingChromatograms, stateClosed:
		return mzerr.New(mzerr.ProtocolMisuse, "consumeSpectrum after chromatogram writing began")
	case stateReady:
		if err := w.writeString(fmt.Sprintf("<spectrumList count=\"%d\">\n", w.expectedSpectra)); err != nil {
			return mzerr.Wrap(mzerr.IO, "opening spectrumList", err)
		}
		w.state = stateWritingSpectra
	}

	s = w.spectrumProcess(s)
	w.log.Debug("consuming spectrum", "nativeID", s.NativeID, "peaks", len(s.Peaks))

	w.spectrumIndex = append(w.spectrumIndex, indexEntry{id: s.NativeID, offset: w.cw.offset})

	if err := w.writeSpectrum(s); err != nil {
		return mzerr.Wrap(mzerr.IO, "writing spectrum", err)
	}
	w.writtenSpectra++
	return nil
}

// ConsumeChromatogram serializes one chromatogram, closing the spectrum
// list if it is still open.
func (w *Writer) ConsumeChromatogram(c ms.Chromatogram) error {
	switch w.state {
	case stateInit:
		return mzerr.New(mzerr.ProtocolMisuse, "consumeChromatogram before experimental settings set")
	case stateClosed:
		return mzerr.New(mzerr.ProtocolMisuse, "consumeChromatogram after close")
	case stateWritingSpectra:
		if err := w.writeString("</spectrumList>\n"); err != nil {
			return mzerr.Wrap(mzerr.IO, "closing spectrumList", err)
		}
		fallthrough
	case stateReady:
		if err := w.writeString(fmt.Sprintf("<chromatogramList count=\"%d\">\n", w.expectedChromatograms)); err != nil {
			return mzerr.Wrap(mzerr.IO, "opening chromatogramList", err)
		}
		w.state = stateWritingChromatograms
	}

	c = w.chromatogramProcess(c)
	w.log.Debug("consuming chromatogram", "nativeID", c.NativeID, "points", len(c.Points))

	w.chromatogramIndex = append(w.chromatogramIndex, indexEntry{id: c.NativeID, offset: w.cw.offset})

	if err := w.writeChromatogram(c); err != nil {
		return mzerr.Wrap(mzerr.IO, "writing chromatogram", err)
	}
	w.writtenChromatograms++
	return nil
}

// Close finalises whichever list is open, writes the index if enabled,
// and closes the underlying destination. Close is idempotent-safe to
// call on a partially-written file: whatever was consumed is finalised
// with a valid index.
func (w *Writer) Close() error {
	if w.state == stateClosed {
		return nil
	}
	w.log.Debug("closing mzml writer", "spectra", w.writtenSpectra, "chromatograms", w.writtenChromatograms)

	switch w.state {
	case stateWritingSpectra:
		if err := w.writeString("</spectrumList>\n"); err != nil {
			return mzerr.Wrap(mzerr.IO, "closing spectrumList", err)
		}
	case stateWritingChromatograms:
		if err := w.writeString("</chromatogramList>\n"); err != nil {
			return mzerr.Wrap(mzerr.IO, "closing chromatogramList", err)
		}
	}
	if err := w.writeString("</run>\n</mzML>\n"); err != nil {
		return mzerr.Wrap(mzerr.IO, "closing run", err)
	}

	if w.indexed {
		if err := w.writeIndex(); err != nil {
			return err
		}
	}

	if err := w.writeString("</indexedmzML>\n"); err != nil {
		return mzerr.Wrap(mzerr.IO, "closing indexedmzML", err)
	}

	w.state = stateClosed
	return w.dst.Close()
}

func (w *Writer) writeIndex() error {
	if err := w.writeString("<indexList count=\"2\">\n<index name=\"spectrum\">\n"); err != nil {
		return mzerr.Wrap(mzerr.IO, "opening spectrum index", err)
	}
	for _, e := range w.spectrumIndex {
		if err := w.writeString(fmt.Sprintf("<offset idRef=%q>%d</offset>\n", e.id, e.offset)); err != nil {
			return mzerr.Wrap(mzerr.IO, "writing spectrum index entry", err)
		}
	}
	if err := w.writeString("</index>\n<index name=\"chromatogram\">\n"); err != nil {
		return mzerr.Wrap(mzerr.IO, "opening chromatogram index", err)
	}
	for _, e := range w.chromatogramIndex {
		if err := w.writeString(fmt.Sprintf("<offset idRef=%q>%d</offset>\n", e.id, e.offset)); err != nil {
			return mzerr.Wrap(mzerr.IO, "writing chromatogram index entry", err)
		}
	}
	if err := w.writeString("</index>\n</indexList>\n"); err != nil {
		return mzerr.Wrap(mzerr.IO, "closing indexList", err)
	}

	// The checksum covers everything written up to but excluding this
	// element, so it is written directly to dst, bypassing the hash.
	sum := hex.EncodeToString(w.hash.Sum(nil))
	if _, err := io.WriteString(w.dst, fmt.Sprintf("<fileChecksum>%s</fileChecksum>\n", sum)); err != nil {
		return mzerr.Wrap(mzerr.IO, "writing file checksum", err)
	}
	return nil
}

func (w *Writer) writeSpectrum(s ms.Spectrum) error {
	if err := w.writeString(fmt.Sprintf("<spectrum id=%q msLevel=\"%d\" retentionTime=\"%g\">\n",
		s.NativeID, s.MSLevel, s.RT)); err != nil {
		return err
	}
	for _, p := range s.Precursors {
		if err := w.writeString(fmt.Sprintf("<precursor mz=\"%g\" charge=\"%d\"/>\n", p.MZ, p.Charge)); err != nil {
			return err
		}
	}
	if w.extraDataProcessing != "" {
		if err := w.writeString(fmt.Sprintf("<dataProcessing name=%q/>\n", w.extraDataProcessing)); err != nil {
			return err
		}
	}

	mzs := make([]float64, len(s.Peaks))
	intensities := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		mzs[i] = p.MZ
		intensities[i] = float64(p.Intensity)
	}
	if err := w.writeBinaryArray(binarray.AxisMZOrTime, mzs, w.mzCodec); err != nil {
		return err
	}
	if err := w.writeBinaryArray(binarray.AxisIntensity, intensities, w.intensityCodec); err != nil {
		return err
	}
	return w.writeString("</spectrum>\n")
}

func (w *Writer) writeChromatogram(c ms.Chromatogram) error {
	if err := w.writeString(fmt.Sprintf("<chromatogram id=%q precursorMz=\"%g\" productMz=\"%g\">\n",
		c.NativeID, c.PrecursorMZ, c.ProductMZ)); err != nil {
		return err
	}
	if w.extraDataProcessing != "" {
		if err := w.writeString(fmt.Sprintf("<dataProcessing name=%q/>\n", w.extraDataProcessing)); err != nil {
			return err
		}
	}

	rts := make([]float64, len(c.Points))
	intensities := make([]float64, len(c.Points))
	for i, p := range c.Points {
		rts[i] = p.RT
		intensities[i] = float64(p.Intensity)
	}
	if err := w.writeBinaryArray(binarray.AxisMZOrTime, rts, w.mzCodec); err != nil {
		return err
	}
	if err := w.writeBinaryArray(binarray.AxisIntensity, intensities, w.intensityCodec); err != nil {
		return err
	}
	return w.writeString("</chromatogram>\n")
}

func (w *Writer) writeBinaryArray(axis binarray.Axis, xs []float64, codec config.AxisCodec) error {
	encoded, cv, err := binarray.EncodeAxis(axis, xs, codec)
	if err != nil {
		return err
	}
	if err := w.writeString(fmt.Sprintf(
		"<binaryDataArray encodedLength=\"%d\">\n<cvParam precision=%q compression=%q numpress=%q/>\n<binary>",
		len(encoded), cv.Precision, cv.Compression, cv.Numpress)); err != nil {
		return err
	}
	if err := w.write(encoded); err != nil {
		return err
	}
	return w.writeString("</binary>\n</binaryDataArray>\n")
}

func (w *Writer) writeString(s string) error { return w.write([]byte(s)) }

func (w *Writer) write(p []byte) error {
	_, err := w.cw.Write(p)
	return err
}
