/*
NAME
  config.go

DESCRIPTION
  config.go contains the configuration settings shared across the mzflow
  pipeline: PeakFileOptions (user-facing filter/precision settings for
  streaming mzML/sqMass I/O) and per-axis Numpress/compression settings.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for the mzflow
// streaming pipeline.
package config

import (
	"github.com/ausocean/utils/logging"

	"github.com/massflow/mzflow/mzerr"
)

// Enums for Numpress encoding selection, mirrored from spec section 4.1.
const (
	NumpressNone = iota
	NumpressLinear
	NumpressPic
	NumpressSlof
)

// MS level filter; zero value means no filtering.
type MSLevelFilter struct {
	// Levels, if non-empty, is a whitelist of acceptable ms levels.
	Levels []int
}

// Allows reports whether level is acceptable under f. A nil/empty filter
// allows everything.
func (f MSLevelFilter) Allows(level int) bool {
	if len(f.Levels) == 0 {
		return true
	}
	for _, l := range f.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// Window is an inclusive [Min, Max] numeric range filter. A zero-value
// Window (Min == Max == 0) is treated as "no filtering".
type Window struct {
	Min, Max float64
}

// Active reports whether w constrains anything.
func (w Window) Active() bool { return w.Min != 0 || w.Max != 0 }

// Contains reports whether v lies within w. Only meaningful when w is
// Active.
func (w Window) Contains(v float64) bool { return v >= w.Min && v <= w.Max }

// AxisCodec holds the per-axis (m/z or RT vs. intensity) binary encoding
// configuration consumed by codec/binarray.
type AxisCodec struct {
	// NumpressKind selects NumpressNone/Linear/Pic/Slof for this axis.
	NumpressKind int

	// NumpressFixedPoint, if > 0, overrides fixed-point estimation.
	NumpressFixedPoint float64

	// NumpressMassAccuracy, when > 0, drives the mass-accuracy-targeted
	// fixed-point estimator (linear only).
	NumpressMassAccuracy float64

	// NumpressTolerance, when > 0, requests round-trip verification
	// after encoding; verification failure falls back to uncompressed
	// output.
	NumpressTolerance float64

	// ZlibCompression toggles zlib compression of the (possibly
	// Numpress-encoded) bytes, independent of Numpress.
	ZlibCompression bool

	// Precision64 selects 64-bit float precision when Numpress is
	// disabled; ignored when NumpressKind != NumpressNone.
	Precision64 bool
}

// PeakFileOptions is the user-facing filter/precision configuration for a
// streaming mzML or sqMass pipeline. It is immutable once a pipeline
// starts: there is no Update method, only constructors and functional
// options, mirroring the immutability invariant from the data model.
type PeakFileOptions struct {
	RT        Window
	MZ        Window
	Intensity Window
	MSLevels  MSLevelFilter

	MZCodec        AxisCodec
	IntensityCodec AxisCodec

	// StreamPoolSize bounds how many spectra/chromatograms a back-end
	// writer batches before flushing (e.g. one sqMass transaction).
	StreamPoolSize int

	// Logger is used throughout the pipeline for structured logging.
	Logger logging.Logger

	// Indexed controls whether an mzML writer emits a trailing
	// <indexList>/<fileChecksum>.
	Indexed bool
}

// Option configures a PeakFileOptions at construction time.
type Option func(*PeakFileOptions) error

// NewPeakFileOptions builds a PeakFileOptions from defaults plus options,
// and validates the result.
func NewPeakFileOptions(log logging.Logger, opts ...Option) (PeakFileOptions, error) {
	o := PeakFileOptions{
		StreamPoolSize: 1000,
		Logger:         log,
		MZCodec:        AxisCodec{Precision64: true},
		IntensityCodec: AxisCodec{Precision64: false},
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return PeakFileOptions{}, mzerr.Wrap(mzerr.Configuration, "applying option", err)
		}
	}
	if err := o.Validate(); err != nil {
		return PeakFileOptions{}, err
	}
	return o, nil
}

// WithRTWindow restricts the retention-time range retained by the pipeline.
func WithRTWindow(min, max float64) Option {
	return func(o *PeakFileOptions) error { o.RT = Window{Min: min, Max: max}; return nil }
}

// WithMZWindow restricts the m/z range retained by the pipeline.
func WithMZWindow(min, max float64) Option {
	return func(o *PeakFileOptions) error { o.MZ = Window{Min: min, Max: max}; return nil }
}

// WithMSLevels restricts consumed spectra to the given ms levels.
func WithMSLevels(levels ...int) Option {
	return func(o *PeakFileOptions) error { o.MSLevels = MSLevelFilter{Levels: levels}; return nil }
}

// WithMZCodec sets the Numpress/precision configuration for the m/z and RT
// axes.
func WithMZCodec(c AxisCodec) Option {
	return func(o *PeakFileOptions) error { o.MZCodec = c; return nil }
}

// WithIntensityCodec sets the Numpress/precision configuration for the
// intensity axis.
func WithIntensityCodec(c AxisCodec) Option {
	return func(o *PeakFileOptions) error { o.IntensityCodec = c; return nil }
}

// WithStreamPoolSize sets the writer batch size.
func WithStreamPoolSize(n int) Option {
	return func(o *PeakFileOptions) error {
		if n <= 0 {
			return mzerr.New(mzerr.Configuration, "stream pool size must be positive")
		}
		o.StreamPoolSize = n
		return nil
	}
}

// WithIndexing enables a trailing index/checksum on mzML output.
func WithIndexing(b bool) Option {
	return func(o *PeakFileOptions) error { o.Indexed = b; return nil }
}

// Validate checks for configuration errors, mirroring revid's
// Config.Validate shape (one validation pass applying defaults/checks).
func (o *PeakFileOptions) Validate() error {
	if o.Logger == nil {
		return mzerr.New(mzerr.Configuration, "logger must be set")
	}
	if o.StreamPoolSize <= 0 {
		o.StreamPoolSize = 1000
	}
	for _, c := range []AxisCodec{o.MZCodec, o.IntensityCodec} {
		switch c.NumpressKind {
		case NumpressNone, NumpressLinear, NumpressPic, NumpressSlof:
		default:
			return mzerr.New(mzerr.Configuration, "unknown numpress kind")
		}
		if c.NumpressTolerance < 0 {
			return mzerr.New(mzerr.Configuration, "numpress tolerance must be non-negative")
		}
	}
	return nil
}
